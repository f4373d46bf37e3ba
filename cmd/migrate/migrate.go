// Package migrate applies the PostgreSQL schema migrations.
package migrate

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // postgres driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // file source driver
	"github.com/spf13/cobra"

	"github.com/jonesrussell/marketplace/internal/config"
)

// defaultMigrationsDir is relative to the working directory.
const defaultMigrationsDir = "migrations"

// Command returns the migrate command with its up, down and version
// subcommands.
func Command(load func() (*config.Config, error)) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", defaultMigrationsDir, "migrations directory")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrate(load, dir, func(m *migrate.Migrate) error {
					return report(cmd.OutOrStdout(), "up", m.Up())
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrate(load, dir, func(m *migrate.Migrate) error {
					return report(cmd.OutOrStdout(), "down", m.Steps(-1))
				})
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrate(load, dir, func(m *migrate.Migrate) error {
					version, dirty, err := m.Version()
					if errors.Is(err, migrate.ErrNilVersion) {
						fmt.Fprintln(cmd.OutOrStdout(), "no migrations applied")
						return nil
					}
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
					return nil
				})
			},
		},
	)

	return cmd
}

func withMigrate(load func() (*config.Config, error), dir string, fn func(*migrate.Migrate) error) error {
	cfg, err := load()
	if err != nil {
		return err
	}

	if abs, absErr := filepath.Abs(dir); absErr == nil {
		dir = abs
	}

	m, err := migrate.New("file://"+dir, cfg.Database.URL())
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	return fn(m)
}

func report(out io.Writer, direction string, err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		fmt.Fprintln(out, "No migrations to apply")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration %s failed: %w", direction, err)
	}
	fmt.Fprintf(out, "Migration %s completed successfully\n", direction)
	return nil
}
