// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/authd/internal/auth"
	"github.com/holomush/authd/internal/auth/postgres"
	"github.com/holomush/authd/internal/store"
)

// NewUserCmd creates the user subcommand tree used to provision credentials.
func NewUserCmd() *cobra.Command {
	return newUserCmdWithDeps(nil)
}

func newUserCmdWithDeps(deps *UserDeps) *cobra.Command {
	if deps == nil {
		deps = &UserDeps{}
	}
	if deps.PoolOpener == nil {
		deps.PoolOpener = defaultPoolOpener
	}

	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage credentials",
		Long: `Create, re-key and remove credentials in the credential store.
Passwords are read from the first line of standard input.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add USERNAME",
		Short: "Create a credential and print its user id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := hashFromInput(cmd.InOrStdin())
			if err != nil {
				return err
			}
			return withCredentials(cmd, deps, func(ctx context.Context, repo *postgres.CredentialRepository) error {
				id, err := repo.Create(ctx, args[0], hash)
				if err != nil {
					return err
				}
				cmd.Printf("Created user %q with id %d\n", args[0], id)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "passwd USERNAME",
		Short: "Replace a credential's password",
		Long:  `Replace the stored hash. Existing sessions stay valid until they expire.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := hashFromInput(cmd.InOrStdin())
			if err != nil {
				return err
			}
			return withCredentials(cmd, deps, func(ctx context.Context, repo *postgres.CredentialRepository) error {
				if err := repo.UpdatePassword(ctx, args[0], hash); err != nil {
					return err
				}
				cmd.Printf("Updated password for %q\n", args[0])
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete USERNAME",
		Short: "Remove a credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCredentials(cmd, deps, func(ctx context.Context, repo *postgres.CredentialRepository) error {
				if err := repo.Delete(ctx, args[0]); err != nil {
					return err
				}
				cmd.Printf("Deleted user %q\n", args[0])
				return nil
			})
		},
	})

	return cmd
}

// NewHashCmd creates the hash subcommand, which prints the argon2id hash of
// the password read from standard input.
func NewHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash",
		Short: "Hash a password read from standard input",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			hash, err := hashFromInput(cmd.InOrStdin())
			if err != nil {
				return err
			}
			cmd.Println(hash)
			return nil
		},
	}
}

// readPassword returns the first line of r without its line ending.
func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", oops.Code("PASSWORD_READ_FAILED").Wrap(err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", auth.ErrEmptyPassword
	}
	return password, nil
}

func hashFromInput(r io.Reader) (string, error) {
	password, err := readPassword(r)
	if err != nil {
		return "", err
	}
	return auth.NewArgon2idHasher(auth.DefaultArgon2idParams).Hash(password)
}

func withCredentials(cmd *cobra.Command, deps *UserDeps, fn func(context.Context, *postgres.CredentialRepository) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := requirePostgres(cfg); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	pool, err := deps.PoolOpener(ctx, cfg.PostgresURL, store.PoolOptions{
		MaxConns:       1,
		ConnectRetries: uint64(max(cfg.ConnectRetries, 0)), //nolint:gosec // clamped non-negative
	})
	if err != nil {
		return oops.With("operation", "connect to credential store").Wrap(err)
	}
	defer pool.Close()

	return fn(ctx, postgres.NewCredentialRepository(pool))
}
