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

	"github.com/holomush/authd/internal/auth/redis"
)

// NewSessionCmd creates the session subcommand tree.
func NewSessionCmd() *cobra.Command {
	return newSessionCmdWithDeps(nil)
}

func newSessionCmdWithDeps(deps *SessionDeps) *cobra.Command {
	if deps == nil {
		deps = &SessionDeps{}
	}
	if deps.RedisDialer == nil {
		deps.RedisDialer = redis.Dial
	}

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage issued sessions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "revoke",
		Short: "Revoke a token read from standard input",
		Long: `Remove the session for the token on the first line of standard input.
The token stops authenticating immediately. Revoking an unknown or expired
token is not an error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := readToken(cmd.InOrStdin())
			if err != nil {
				return err
			}
			return withSessions(cmd, deps, func(ctx context.Context, cache *redis.SessionCache) error {
				existed, err := cache.Delete(ctx, token)
				if err != nil {
					return oops.With("operation", "revoke session").Wrap(err)
				}
				if existed {
					cmd.Println("Session revoked")
				} else {
					cmd.Println("No such session")
				}
				return nil
			})
		},
	})

	return cmd
}

// readToken returns the first line of r, trimmed of surrounding space.
func readToken(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", oops.Code("TOKEN_READ_FAILED").Wrap(err)
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return "", oops.Code("TOKEN_REQUIRED").Errorf("token cannot be empty")
	}
	return token, nil
}

func withSessions(cmd *cobra.Command, deps *SessionDeps, fn func(context.Context, *redis.SessionCache) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := requireRedis(cfg); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	client, err := deps.RedisDialer(ctx, cfg.RedisURL, redis.DialOptions{
		PoolSize:       1,
		ConnectRetries: uint64(max(cfg.ConnectRetries, 0)), //nolint:gosec // clamped non-negative
	})
	if err != nil {
		return oops.With("operation", "connect to session cache").Wrap(err)
	}
	defer func() { _ = client.Close() }()

	return fn(ctx, redis.NewSessionCache(client))
}
