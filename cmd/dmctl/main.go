package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/doodlesbykumbi/datamapper-in-go/pkg/config"
	"github.com/doodlesbykumbi/datamapper-in-go/pkg/datamapper"
	"github.com/doodlesbykumbi/datamapper-in-go/pkg/db"
	"github.com/doodlesbykumbi/datamapper-in-go/pkg/logging"
	"github.com/doodlesbykumbi/datamapper-in-go/pkg/schema"
)

var rootCmd = &cobra.Command{
	Use:   "dmctl",
	Short: "Browse and serve mapped models",
	Long: `Browse and serve models mapped onto relational and in-memory repositories.

Configuration is read from $DM_CONFIG_PATH/datamapper.yml and the environment.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A missing .env file is fine.
		_ = godotenv.Load()
	},
}

func init() {
	rootCmd.PersistentFlags().String("schema", "", "model definition file or directory (overrides schema_path)")
	rootCmd.PersistentFlags().Bool("memory", false, "back every repository with an in-memory store")
}

// environment is everything a command needs to work with mapped models.
type environment struct {
	cfg    *config.Config
	log    zerolog.Logger
	mapper *datamapper.Mapper
	schema *schema.Schema
	path   string
	close  func()
}

// loadEnvironment loads configuration, sets up repositories and applies
// the model definitions.
func loadEnvironment(cmd *cobra.Command) (*environment, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if memory, _ := cmd.Flags().GetBool("memory"); memory {
		for name := range cfg.Repositories {
			cfg.Repositories[name] = config.RepositoryConfig{Adapter: config.AdapterMemory}
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: os.Stderr})
	if err != nil {
		return nil, err
	}

	path, _ := cmd.Flags().GetString("schema")
	if path == "" {
		path = cfg.SchemaPath
	}
	if path == "" {
		return nil, fmt.Errorf("no schema: set schema_path, DM_SCHEMA_PATH or --schema")
	}
	s, err := schema.Load(path)
	if err != nil {
		return nil, err
	}

	mapper := newMapper(cfg, log)
	conns, err := db.Setup(mapper, cfg, log)
	if err != nil {
		return nil, err
	}
	if err := s.Apply(mapper); err != nil {
		db.Close(conns)
		return nil, err
	}

	return &environment{
		cfg:    cfg,
		log:    log,
		mapper: mapper,
		schema: s,
		path:   path,
		close:  func() { db.Close(conns) },
	}, nil
}

func newMapper(cfg *config.Config, log zerolog.Logger) *datamapper.Mapper {
	return datamapper.New(
		datamapper.WithLogger(log),
		datamapper.WithDefaultRepositoryName(cfg.DefaultRepository),
	)
}

// remap builds a mapper for s that shares the repositories of env.mapper.
func (env *environment) remap(s *schema.Schema) (*datamapper.Mapper, error) {
	mapper := newMapper(env.cfg, env.log)
	for _, name := range env.mapper.RepositoryNames() {
		adapter, err := env.mapper.Adapter(name)
		if err != nil {
			return nil, err
		}
		mapper.Setup(name, adapter)
	}
	if err := s.Apply(mapper); err != nil {
		return nil, err
	}
	return mapper, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
