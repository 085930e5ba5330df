// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package store owns the PostgreSQL connection pool and the credential schema.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// PoolOptions tune the credential pool.
type PoolOptions struct {
	// MaxConns caps concurrent connections. Zero keeps the pgx default.
	MaxConns int32

	// ConnectRetries is how many extra ping attempts Open makes before giving up.
	ConnectRetries uint64

	// RetryBase is the first backoff interval. Zero means 250ms.
	RetryBase time.Duration
}

const maxRetryInterval = 5 * time.Second

// Open parses databaseURL, builds a pool and waits until the database answers
// a ping, retrying with capped exponential backoff.
func Open(ctx context.Context, databaseURL string, opts PoolOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("STORE_CONFIG_INVALID").
			With("operation", "parse database url").
			Wrap(err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("STORE_CONNECT_FAILED").
			With("operation", "create pool").
			Wrap(err)
	}

	base := opts.RetryBase
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	backoff := retry.WithMaxRetries(opts.ConnectRetries,
		retry.WithCappedDuration(maxRetryInterval, retry.NewExponential(base)))

	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if pingErr := pool.Ping(ctx); pingErr != nil {
			slog.WarnContext(ctx, "postgres ping failed", "attempt", attempt, "error", pingErr)
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("STORE_CONNECT_FAILED").
			With("operation", "ping").
			With("attempts", attempt).
			Wrap(err)
	}
	return pool, nil
}
