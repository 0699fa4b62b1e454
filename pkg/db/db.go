package db

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	gormadapter "github.com/doodlesbykumbi/datamapper-in-go/pkg/adapter/gorm"
	"github.com/doodlesbykumbi/datamapper-in-go/pkg/adapter/memory"
	"github.com/doodlesbykumbi/datamapper-in-go/pkg/config"
	"github.com/doodlesbykumbi/datamapper-in-go/pkg/datamapper"
	"github.com/doodlesbykumbi/datamapper-in-go/pkg/logging"
)

// Config holds database connection configuration
type Config struct {
	// URL is the database connection URL (defaults to DATABASE_URL env var)
	URL string
	// Logger receives SQL logs; nil keeps GORM silent
	Logger *zerolog.Logger
	// SlowThreshold marks statements as slow in the SQL log
	SlowThreshold time.Duration
}

// Connect establishes a database connection.
// If no URL is provided, it reads from DATABASE_URL environment variable.
// postgres:// URLs use the postgres dialector; sqlite:// and file: URLs
// use sqlite.
func Connect(cfg Config) (*gorm.DB, error) {
	dbURL := cfg.URL
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	adapter, err := config.AdapterForURL(dbURL)
	if err != nil {
		return nil, err
	}
	var dialector gorm.Dialector
	switch adapter {
	case config.AdapterPostgres:
		dialector = postgres.New(postgres.Config{
			DSN:                  dbURL,
			PreferSimpleProtocol: true, // disables implicit prepared statement usage
		})
	case config.AdapterSQLite:
		dialector = sqlite.Open(SQLitePath(dbURL))
	default:
		return nil, fmt.Errorf("%s URLs have no database", adapter)
	}

	var gormLogger logger.Interface = logger.Default.LogMode(logger.Silent)
	if cfg.Logger != nil {
		gormLogger = logging.NewGormLogger(*cfg.Logger, cfg.SlowThreshold)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// SQLitePath returns the file path of a sqlite URL.
func SQLitePath(url string) string {
	for _, prefix := range []string{"sqlite3://", "sqlite://", "file://"} {
		if strings.HasPrefix(url, prefix) {
			return strings.TrimPrefix(url, prefix)
		}
	}
	return url
}

// URL returns the database URL from environment.
// Returns empty string if DATABASE_URL is not set.
func URL() string {
	return os.Getenv("DATABASE_URL")
}

// Setup registers an adapter on mapper for every repository in cfg. It
// returns the opened connections so callers can close them.
func Setup(mapper *datamapper.Mapper, cfg *config.Config, log zerolog.Logger) ([]*gorm.DB, error) {
	var opened []*gorm.DB
	for _, name := range cfg.RepositoryNames() {
		repo := cfg.Repositories[name]
		if repo.Adapter == config.AdapterMemory {
			mapper.Setup(name, memory.New())
			continue
		}
		conn, err := Connect(Config{URL: repo.URL, Logger: &log, SlowThreshold: cfg.SlowQueryThreshold()})
		if err != nil {
			Close(opened)
			return nil, fmt.Errorf("repository %s: %w", name, err)
		}
		opened = append(opened, conn)
		mapper.Setup(name, gormadapter.New(conn))
		log.Debug().Str("repository", name).Str("adapter", repo.Adapter).Msg("repository set up")
	}
	return opened, nil
}

// Close closes connections opened by Setup.
func Close(conns []*gorm.DB) {
	for _, conn := range conns {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
