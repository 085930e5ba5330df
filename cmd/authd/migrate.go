// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/authd/internal/store"
)

// NewMigrateCmd creates the migrate subcommand. Without a subcommand it
// applies every pending migration.
func NewMigrateCmd() *cobra.Command {
	return newMigrateCmdWithDeps(nil)
}

func newMigrateCmdWithDeps(deps *MigrateDeps) *cobra.Command {
	if deps == nil {
		deps = &MigrateDeps{}
	}
	if deps.MigratorFactory == nil {
		deps.MigratorFactory = func(url string) (Migrator, error) {
			m, err := store.NewMigrator(url)
			if err != nil {
				return nil, err
			}
			return m, nil
		}
	}

	up := func(cmd *cobra.Command, _ []string) error {
		return withMigrator(cmd, deps, func(m Migrator) error {
			cmd.Println("Running migrations...")
			if err := m.Up(); err != nil {
				return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
			}
			cmd.Println("Migrations completed successfully")
			return nil
		})
	}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Apply, roll back or inspect the credential store schema. POSTGRES_URL is required.`,
		RunE:  up,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE:  up,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				if err := m.Down(); err != nil {
					return oops.Code("MIGRATION_FAILED").With("operation", "roll back migrations").Wrap(err)
				}
				cmd.Println("All migrations rolled back")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				status, err := m.Status()
				if err != nil {
					return err
				}
				cmd.Println(formatMigrationStatus(status))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied and clear the dirty flag",
		Long: `Force records VERSION as the applied migration without running any SQL.
Use it to recover after a migration failed part way through.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, deps, func(m Migrator) error {
				if err := m.Force(version); err != nil {
					return err
				}
				cmd.Printf("Forced migration version %d\n", version)
				return nil
			})
		},
	})

	return cmd
}

// withMigrator opens a migrator from the resolved configuration, runs fn and
// closes the migrator.
func withMigrator(cmd *cobra.Command, deps *MigrateDeps, fn func(Migrator) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := requirePostgres(cfg); err != nil {
		return err
	}

	m, err := deps.MigratorFactory(cfg.PostgresURL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "open migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			slog.Warn("error closing migrator", "error", closeErr)
		}
	}()

	return fn(m)
}

// parseForceVersion parses a non-negative migration version.
func parseForceVersion(s string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(s, "%d", &version); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Wrap(err)
	}
	if version < 0 {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("version must be non-negative")
	}
	return version, nil
}

func formatMigrationStatus(s *store.MigrationStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current version: %d", s.Version)
	if s.Dirty {
		b.WriteString(" (dirty)")
	}
	fmt.Fprintf(&b, "\nLatest version:  %d\n", s.Latest)
	if len(s.Pending) == 0 {
		b.WriteString("Pending:         none")
		return b.String()
	}
	pending := make([]string, len(s.Pending))
	for i, v := range s.Pending {
		pending[i] = fmt.Sprintf("%06d", v)
	}
	b.WriteString("Pending:         " + strings.Join(pending, ", "))
	return b.String()
}
