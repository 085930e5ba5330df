// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/authd/internal/config"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the authd CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authd",
		Short: "authd - token authentication service",
		Long: `authd issues opaque bearer tokens for verified credentials and
resolves them back to user ids with a sliding three-day expiry.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/authd/config.yaml)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewUserCmd())
	cmd.AddCommand(NewHashCmd())
	cmd.AddCommand(NewSessionCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewCertsCmd())

	return cmd
}

// loadConfig resolves the layered configuration for cmd. Inherited
// persistent flags are merged into cmd.Flags() by cobra before RunE.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.Flags(), configFile)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// requireRedis is the validation used by commands that only touch the
// session cache.
func requireRedis(cfg *config.Config) error {
	if cfg.RedisURL == "" {
		return oops.Code("CONFIG_INVALID").With("field", "redis-url").Errorf("REDIS_URL is required")
	}
	return nil
}

// requirePostgres is the validation used by commands that only touch the
// credential store.
func requirePostgres(cfg *config.Config) error {
	if cfg.PostgresURL == "" {
		return oops.Code("CONFIG_INVALID").With("field", "postgres-url").Errorf("POSTGRES_URL is required")
	}
	return nil
}
