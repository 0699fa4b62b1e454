package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath = "/etc/datamapper"
	ConfigFileName    = "datamapper.yml"

	DefaultRepositoryName = "default"
)

// Adapter names accepted in repository configuration
const (
	AdapterMemory   = "memory"
	AdapterPostgres = "postgres"
	AdapterSQLite   = "sqlite"
)

// RepositoryConfig selects the adapter of one repository
type RepositoryConfig struct {
	Adapter string `yaml:"adapter" json:"adapter" validate:"required,oneof=memory postgres sqlite"`
	URL     string `yaml:"url" json:"url" validate:"required_unless=Adapter memory"`
}

// Config holds all datamapper settings
type Config struct {
	// DefaultRepository names the repository used when none is given
	DefaultRepository string `yaml:"default_repository" json:"default_repository" validate:"required"`

	// Repositories maps repository names to adapters
	Repositories map[string]RepositoryConfig `yaml:"repositories" json:"repositories" validate:"required,min=1,dive"`

	// SchemaPath is the YAML model definition file or directory
	SchemaPath string `yaml:"schema_path" json:"schema_path"`

	// LogLevel is a zerolog level name
	LogLevel string `yaml:"log_level" json:"log_level" validate:"oneof=trace debug info warn error fatal panic disabled"`

	// LogFormat is json or console
	LogFormat string `yaml:"log_format" json:"log_format" validate:"oneof=json console"`

	// SlowQueryThresholdMS is the duration after which SQL statements are logged as slow
	SlowQueryThresholdMS int `yaml:"slow_query_threshold_ms" json:"slow_query_threshold_ms" validate:"gte=0"`

	// BindAddress is the address the browsing server listens on
	BindAddress string `yaml:"bind_address" json:"bind_address" validate:"required,ip"`

	// Port is the port the browsing server listens on
	Port int `yaml:"port" json:"port" validate:"gte=1,lte=65535"`

	// sources tracks where each value came from
	sources map[string]string

	// configFilePath is the path to the config file
	configFilePath string
}

// Attribute represents a configuration attribute with its value and source
type Attribute struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Source string `json:"source"`
}

// Global singleton config
var (
	globalConfig *Config
	configMu     sync.RWMutex
)

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	configMu.RLock()
	if globalConfig != nil {
		configMu.RUnlock()
		return globalConfig
	}
	configMu.RUnlock()

	configMu.Lock()
	defer configMu.Unlock()

	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			globalConfig = newDefault()
		} else {
			globalConfig = cfg
		}
	}
	return globalConfig
}

// Reload reloads the configuration from file and environment
func Reload() error {
	cfg, err := Load()
	if err != nil {
		return err
	}

	configMu.Lock()
	globalConfig = cfg
	configMu.Unlock()
	return nil
}

// newDefault returns a config with default values
func newDefault() *Config {
	return &Config{
		DefaultRepository: DefaultRepositoryName,
		Repositories: map[string]RepositoryConfig{
			DefaultRepositoryName: {Adapter: AdapterMemory},
		},
		LogLevel:             "info",
		LogFormat:            "json",
		SlowQueryThresholdMS: 200,
		BindAddress:          "127.0.0.1",
		Port:                 8080,
		sources:              make(map[string]string),
	}
}

// Load loads configuration from file and environment variables
// Environment variables take precedence over file values
func Load() (*Config, error) {
	config := newDefault()

	for _, name := range attributeNames() {
		config.sources[name] = "default"
	}

	configPath := os.Getenv("DM_CONFIG_PATH")
	if configPath == "" {
		configPath = DefaultConfigPath
	}
	config.configFilePath = filepath.Join(configPath, ConfigFileName)

	if data, err := os.ReadFile(config.configFilePath); err == nil {
		var fileConfig Config
		if err := yaml.Unmarshal(data, &fileConfig); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", config.configFilePath, err)
		}
		config.applyFileConfig(&fileConfig)
	}

	if err := config.applyEnvConfig(); err != nil {
		return nil, err
	}
	return config, nil
}

func attributeNames() []string {
	return []string{
		"default_repository", "repositories", "schema_path",
		"log_level", "log_format", "slow_query_threshold_ms",
		"bind_address", "port",
	}
}

func (c *Config) applyFileConfig(file *Config) {
	if file.DefaultRepository != "" {
		c.DefaultRepository = file.DefaultRepository
		c.sources["default_repository"] = "file"
	}
	if len(file.Repositories) > 0 {
		c.Repositories = file.Repositories
		c.sources["repositories"] = "file"
	}
	if file.SchemaPath != "" {
		c.SchemaPath = file.SchemaPath
		c.sources["schema_path"] = "file"
	}
	if file.LogLevel != "" {
		c.LogLevel = file.LogLevel
		c.sources["log_level"] = "file"
	}
	if file.LogFormat != "" {
		c.LogFormat = file.LogFormat
		c.sources["log_format"] = "file"
	}
	if file.SlowQueryThresholdMS != 0 {
		c.SlowQueryThresholdMS = file.SlowQueryThresholdMS
		c.sources["slow_query_threshold_ms"] = "file"
	}
	if file.BindAddress != "" {
		c.BindAddress = file.BindAddress
		c.sources["bind_address"] = "file"
	}
	if file.Port != 0 {
		c.Port = file.Port
		c.sources["port"] = "file"
	}
}

func (c *Config) applyEnvConfig() error {
	if val := os.Getenv("DM_DEFAULT_REPOSITORY"); val != "" {
		c.DefaultRepository = val
		c.sources["default_repository"] = "environment"
	}
	if val := os.Getenv("DATABASE_URL"); val != "" {
		adapter, err := AdapterForURL(val)
		if err != nil {
			return err
		}
		repositories := make(map[string]RepositoryConfig, len(c.Repositories)+1)
		for name, repo := range c.Repositories {
			repositories[name] = repo
		}
		repositories[c.DefaultRepository] = RepositoryConfig{Adapter: adapter, URL: val}
		c.Repositories = repositories
		c.sources["repositories"] = "environment"
	}
	if val := os.Getenv("DM_SCHEMA_PATH"); val != "" {
		c.SchemaPath = val
		c.sources["schema_path"] = "environment"
	}
	if val := os.Getenv("DM_LOG_LEVEL"); val != "" {
		c.LogLevel = strings.ToLower(val)
		c.sources["log_level"] = "environment"
	}
	if val := os.Getenv("DM_LOG_FORMAT"); val != "" {
		c.LogFormat = strings.ToLower(val)
		c.sources["log_format"] = "environment"
	}
	if val := os.Getenv("DM_SLOW_QUERY_THRESHOLD_MS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			c.SlowQueryThresholdMS = i
			c.sources["slow_query_threshold_ms"] = "environment"
		}
	}
	if val := os.Getenv("BIND_ADDRESS"); val != "" {
		c.BindAddress = val
		c.sources["bind_address"] = "environment"
	}
	if val := os.Getenv("PORT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			c.Port = i
			c.sources["port"] = "environment"
		}
	}
	return nil
}

// AdapterForURL returns the adapter name for a database URL scheme.
func AdapterForURL(url string) (string, error) {
	scheme, _, ok := strings.Cut(url, "://")
	if !ok {
		return "", fmt.Errorf("database URL %q has no scheme", url)
	}
	switch scheme {
	case "postgres", "postgresql":
		return AdapterPostgres, nil
	case "sqlite", "sqlite3", "file":
		return AdapterSQLite, nil
	case "memory":
		return AdapterMemory, nil
	}
	return "", fmt.Errorf("unsupported database URL scheme %q", scheme)
}

// ConfigFilePath returns the path to the config file
func (c *Config) ConfigFilePath() string {
	return c.configFilePath
}

// Source returns the source of a configuration attribute
func (c *Config) Source(name string) string {
	if c.sources == nil {
		return "default"
	}
	if s, ok := c.sources[name]; ok {
		return s
	}
	return "default"
}

// SlowQueryThreshold returns the slow query threshold as a duration
func (c *Config) SlowQueryThreshold() time.Duration {
	return time.Duration(c.SlowQueryThresholdMS) * time.Millisecond
}

// ListenAddress returns the host:port the server binds to
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.BindAddress, c.Port)
}

// RepositoryNames returns the configured repository names, sorted
func (c *Config) RepositoryNames() []string {
	names := make([]string, 0, len(c.Repositories))
	for name := range c.Repositories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, ok := c.Repositories[c.DefaultRepository]; !ok {
		return fmt.Errorf("invalid configuration: default repository %q is not configured", c.DefaultRepository)
	}
	return nil
}

// Attributes returns all configuration attributes with their values and sources
func (c *Config) Attributes() []Attribute {
	repositories := make([]string, 0, len(c.Repositories))
	for _, name := range c.RepositoryNames() {
		repositories = append(repositories, name+"="+c.Repositories[name].Adapter)
	}
	return []Attribute{
		{Name: "default_repository", Value: c.DefaultRepository, Source: c.Source("default_repository")},
		{Name: "repositories", Value: strings.Join(repositories, ","), Source: c.Source("repositories")},
		{Name: "schema_path", Value: c.SchemaPath, Source: c.Source("schema_path")},
		{Name: "log_level", Value: c.LogLevel, Source: c.Source("log_level")},
		{Name: "log_format", Value: c.LogFormat, Source: c.Source("log_format")},
		{Name: "slow_query_threshold_ms", Value: strconv.Itoa(c.SlowQueryThresholdMS), Source: c.Source("slow_query_threshold_ms")},
		{Name: "bind_address", Value: c.BindAddress, Source: c.Source("bind_address")},
		{Name: "port", Value: strconv.Itoa(c.Port), Source: c.Source("port")},
	}
}

// FormatText returns a text representation of the configuration
func (c *Config) FormatText() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Config file: %s\n\n", c.configFilePath))
	sb.WriteString(fmt.Sprintf("%-30s %-40s %s\n", "NAME", "VALUE", "SOURCE"))
	sb.WriteString(fmt.Sprintf("%-30s %-40s %s\n", "----", "-----", "------"))

	for _, attr := range c.Attributes() {
		value := attr.Value
		if value == "" {
			value = "(not set)"
		}
		sb.WriteString(fmt.Sprintf("%-30s %-40s %s\n", attr.Name, value, attr.Source))
	}
	return sb.String()
}

// FormatJSON returns a JSON representation of the configuration
func (c *Config) FormatJSON() (string, error) {
	result := map[string]interface{}{
		"config_file": c.configFilePath,
		"attributes":  c.Attributes(),
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
