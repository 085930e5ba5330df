// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package redis

import (
	"context"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// DialOptions tune Dial.
type DialOptions struct {
	// PoolSize overrides the go-redis default when positive.
	PoolSize int

	// ConnectRetries is how many extra PING attempts Dial makes.
	ConnectRetries uint64

	// RetryBase is the first backoff interval. Zero means 250ms.
	RetryBase time.Duration
}

// Dial parses a redis:// or rediss:// URL, creates a client and waits until
// the server answers PING.
func Dial(ctx context.Context, url string, opts DialOptions) (*goredis.Client, error) {
	clientOpts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, oops.Code("REDIS_CONFIG_INVALID").
			With("operation", "parse redis url").
			Wrap(err)
	}
	if opts.PoolSize > 0 {
		clientOpts.PoolSize = opts.PoolSize
	}
	client := goredis.NewClient(clientOpts)

	base := opts.RetryBase
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	backoff := retry.WithMaxRetries(opts.ConnectRetries,
		retry.WithCappedDuration(5*time.Second, retry.NewExponential(base)))

	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if pingErr := client.Ping(ctx).Err(); pingErr != nil {
			slog.WarnContext(ctx, "redis ping failed", "attempt", attempt, "error", pingErr)
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		_ = client.Close() //nolint:errcheck // connect error takes precedence
		return nil, oops.Code("REDIS_CONNECT_FAILED").
			With("operation", "ping").
			With("attempts", attempt).
			Wrap(err)
	}
	return client, nil
}
