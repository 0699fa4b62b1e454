package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/doodlesbykumbi/datamapper-in-go/pkg/config"
	"github.com/doodlesbykumbi/datamapper-in-go/pkg/db"
)

const defaultMigrationsPath = "db/migrations"

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the database",
	Long:  `Manage the schema of a PostgreSQL repository with SQL migrations.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = cmd.Help()
		return fmt.Errorf("command 'db' requires a subcommand (migrate, down, status)")
	},
}

// dbMigrateCmd represents the db migrate command
var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create and/or upgrade the database schema",
	Long: `Create and/or upgrade the database schema.

This command runs all pending migrations from the migrations directory.

Example:
  dmctl db migrate --migrations ./db/migrations`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := createMigrateInstance(cmd)
		if err != nil {
			return err
		}
		defer func() { _, _ = m.Close() }()

		version, dirty, _ := m.Version()
		fmt.Fprintf(cmd.OutOrStdout(), "Current version: %d (dirty: %v)\n", version, dirty)

		if err := m.Up(); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				fmt.Fprintln(cmd.OutOrStdout(), "No migrations to run - database is up to date")
				return nil
			}
			return fmt.Errorf("migration failed: %w", err)
		}

		newVersion, _, _ := m.Version()
		fmt.Fprintf(cmd.OutOrStdout(), "Migrated to version: %d\n", newVersion)
		return nil
	},
}

var dbMigrateDownCmd = &cobra.Command{
	Use:   "down [steps]",
	Short: "Rollback database migrations",
	Long: `Rollback database migrations.

This command rolls back the specified number of migrations (default: 1).

Example:
  dmctl db down      # Rollback 1 migration
  dmctl db down 3    # Rollback 3 migrations`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps := 1
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return fmt.Errorf("invalid number of steps %q", args[0])
			}
			steps = n
		}

		m, err := createMigrateInstance(cmd)
		if err != nil {
			return err
		}
		defer func() { _, _ = m.Close() }()

		fmt.Fprintf(cmd.OutOrStdout(), "Rolling back %d migration(s)...\n", steps)
		if err := m.Steps(-steps); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}

		version, _, _ := m.Version()
		fmt.Fprintf(cmd.OutOrStdout(), "Rolled back to version: %d\n", version)
		return nil
	},
}

var dbMigrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current migration version",
	Long:  `Show the current database migration version.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := createMigrateInstance(cmd)
		if err != nil {
			return err
		}
		defer func() { _, _ = m.Close() }()

		version, dirty, err := m.Version()
		if err != nil {
			if errors.Is(err, migrate.ErrNilVersion) {
				fmt.Fprintln(cmd.OutOrStdout(), "No migrations have been applied yet")
				return nil
			}
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Current version: %d\n", version)
		if dirty {
			fmt.Fprintln(cmd.OutOrStdout(), "Warning: Database is in a dirty state")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbMigrateDownCmd)
	dbCmd.AddCommand(dbMigrateStatusCmd)

	dbCmd.PersistentFlags().String("migrations", defaultMigrationsPath, "migrations directory")
	dbCmd.PersistentFlags().StringP("repository", "r", "", "repository to migrate (default from configuration)")
}

// migrationURL returns the URL of the PostgreSQL repository to migrate.
func migrationURL(cmd *cobra.Command) (string, error) {
	cfg, err := config.Load()
	if err != nil {
		return "", fmt.Errorf("failed to load configuration: %w", err)
	}
	name, _ := cmd.Flags().GetString("repository")
	if name == "" {
		name = cfg.DefaultRepository
	}
	repo, ok := cfg.Repositories[name]
	if !ok {
		if url := db.URL(); url != "" && name == cfg.DefaultRepository {
			return url, nil
		}
		return "", fmt.Errorf("repository %q is not configured", name)
	}
	if repo.Adapter != config.AdapterPostgres {
		return "", fmt.Errorf("repository %q uses the %s adapter; migrations need postgres", name, repo.Adapter)
	}
	return repo.URL, nil
}

func createMigrateInstance(cmd *cobra.Command) (*migrate.Migrate, error) {
	url, err := migrationURL(cmd)
	if err != nil {
		return nil, err
	}
	path, _ := cmd.Flags().GetString("migrations")
	m, err := migrate.New("file://"+path, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}
