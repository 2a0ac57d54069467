package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/joao-fontenele/storefront/internal/identity"
)

const (
	schemaVersion = 1
	seedVersion   = 2
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, nil))

func newMigrate(cmd *cobra.Command) (*migrate.Migrate, error) {
	postgresURL := os.Getenv("POSTGRES_URL")
	if postgresURL == "" {
		return nil, errors.New("POSTGRES_URL environment variable is required")
	}
	path, err := cmd.Flags().GetString("path")
	if err != nil {
		return nil, err
	}

	m, err := migrate.New(path, postgresURL)
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, nil
}

func closeMigrate(m *migrate.Migrate) {
	if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
		logger.Warn("failed to close migrate", "source_error", srcErr, "database_error", dbErr)
	}
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newMigrate(cmd)
		if err != nil {
			return err
		}
		defer closeMigrate(m)

		schemaOnly, _ := cmd.Flags().GetBool("schema-only")
		if schemaOnly {
			err = m.Migrate(schemaVersion)
		} else {
			err = m.Up()
		}
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("no pending migrations")
			return nil
		}
		if err != nil {
			return fmt.Errorf("migration up failed: %w", err)
		}

		logger.Info("migrations applied successfully")
		return nil
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newMigrate(cmd)
		if err != nil {
			return err
		}
		defer closeMigrate(m)

		steps, _ := cmd.Flags().GetInt("steps")
		if steps < 1 {
			return errors.New("--steps must be at least 1")
		}

		err = m.Steps(-steps)
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("no migrations to rollback")
			return nil
		}
		if err != nil {
			return fmt.Errorf("migration down failed: %w", err)
		}

		logger.Info("migrations rolled back successfully", "steps", steps)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the applied migration version",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newMigrate(cmd)
		if err != nil {
			return err
		}
		defer closeMigrate(m)

		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			logger.Info("no migrations applied yet")
			return nil
		}
		if err != nil {
			return fmt.Errorf("get version: %w", err)
		}

		logger.Info("current migration version", "version", version, "dirty", dirty)
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the demo catalog (migrates through the seed version)",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newMigrate(cmd)
		if err != nil {
			return err
		}
		defer closeMigrate(m)

		version, _, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			return fmt.Errorf("get version: %w", err)
		}
		if version >= seedVersion {
			logger.Info("demo catalog already loaded", "version", version)
			return nil
		}

		if err := m.Migrate(seedVersion); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("seed failed: %w", err)
		}

		logger.Info("demo catalog loaded")
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Issue a development bearer token signed with JWT_SECRET",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := os.Getenv("JWT_SECRET")
		if secret == "" {
			return errors.New("JWT_SECRET environment variable is required")
		}

		ttl, _ := cmd.Flags().GetDuration("ttl")
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}

		token, err := identity.NewJWTResolver(secret).IssueToken(args[0], ttl)
		if err != nil {
			return fmt.Errorf("issue token: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}
