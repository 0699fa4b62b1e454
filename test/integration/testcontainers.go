package integration

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	gormadapter "github.com/doodlesbykumbi/datamapper-in-go/pkg/adapter/gorm"
	"github.com/doodlesbykumbi/datamapper-in-go/pkg/adapter/memory"
	"github.com/doodlesbykumbi/datamapper-in-go/pkg/datamapper"
	"github.com/doodlesbykumbi/datamapper-in-go/pkg/db"
	"github.com/doodlesbykumbi/datamapper-in-go/pkg/schema"
	"github.com/doodlesbykumbi/datamapper-in-go/pkg/server"
	"github.com/doodlesbykumbi/datamapper-in-go/pkg/server/endpoints"
)

// Backends the feature suite runs against
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// TestContext holds all the resources needed for integration tests
type TestContext struct {
	Backend     string
	DB          *gorm.DB // nil for the memory backend
	Container   testcontainers.Container
	DatabaseURL string
	Schema      *schema.Schema
	Server      *server.Server
	HTTP        *httptest.Server
	HTTPClient  *http.Client
}

// NewTestContext creates a test context for backend. The postgres backend
// starts a PostgreSQL testcontainer and migrates it.
func NewTestContext(ctx context.Context, backend string) (*TestContext, error) {
	projectRoot, err := findProjectRoot()
	if err != nil {
		return nil, fmt.Errorf("failed to find project root: %w", err)
	}
	s, err := schema.Load(filepath.Join(projectRoot, "db", "schema", "library.yml"))
	if err != nil {
		return nil, err
	}

	tc := &TestContext{
		Backend:    backend,
		Schema:     s,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}

	if backend == BackendPostgres {
		if err := tc.startPostgres(ctx, filepath.Join(projectRoot, "db", "migrations")); err != nil {
			tc.Close(ctx)
			return nil, err
		}
	}

	tc.Server = server.NewServer(datamapper.New(), zerolog.Nop(), "127.0.0.1", "0")
	endpoints.RegisterAll(tc.Server)
	tc.HTTP = httptest.NewServer(tc.Server.Handler())
	return tc, nil
}

func (tc *TestContext) startPostgres(ctx context.Context, migrationsDir string) error {
	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("library_test"),
		tcpostgres.WithUsername("library"),
		tcpostgres.WithPassword("library"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to start postgres container: %w", err)
	}
	tc.Container = pgContainer

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return fmt.Errorf("failed to get connection string: %w", err)
	}
	tc.DatabaseURL = connStr

	if err := runMigrations(connStr, migrationsDir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	tc.DB, err = db.Connect(db.Config{URL: connStr})
	return err
}

// NewMapper returns a mapper over empty storage with the library models
// defined, and serves it over HTTP.
func (tc *TestContext) NewMapper() (*datamapper.Mapper, error) {
	mapper := datamapper.New()
	switch tc.Backend {
	case BackendMemory:
		mapper.Setup(datamapper.DefaultRepositoryName, memory.New())
	case BackendPostgres:
		if err := tc.DB.Exec(`TRUNCATE book_editors, books, authors, editors RESTART IDENTITY CASCADE`).Error; err != nil {
			return nil, err
		}
		mapper.Setup(datamapper.DefaultRepositoryName, gormadapter.New(tc.DB))
	default:
		return nil, fmt.Errorf("unknown backend %q", tc.Backend)
	}
	if err := tc.Schema.Apply(mapper); err != nil {
		return nil, err
	}
	tc.Server.SetMapper(mapper)
	return mapper, nil
}

// Close cleans up all test resources
func (tc *TestContext) Close(ctx context.Context) {
	if tc.HTTP != nil {
		tc.HTTP.Close()
	}
	if tc.DB != nil {
		db.Close([]*gorm.DB{tc.DB})
	}
	if tc.Container != nil {
		_ = tc.Container.Terminate(ctx)
	}
}

// findProjectRoot locates the project root directory
func findProjectRoot() (string, error) {
	paths := []string{
		"../..",
		"..",
		".",
	}

	for _, p := range paths {
		goMod := filepath.Join(p, "go.mod")
		if _, err := os.Stat(goMod); err == nil {
			return filepath.Abs(p)
		}
	}

	return "", fmt.Errorf("project root not found (looking for go.mod)")
}

// runMigrations applies every migration in migrationsDir
func runMigrations(dbURL, migrationsDir string) error {
	m, err := migrate.New("file://"+migrationsDir, dbURL)
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
