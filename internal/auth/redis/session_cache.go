// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package redis implements auth.SessionCache on Redis.
package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/holomush/authd/internal/auth"
)

// DefaultKeyPrefix namespaces session keys.
const DefaultKeyPrefix = "session:"

// SessionCache stores token to user id mappings as plain decimal strings
// under prefix+token, with Redis handling expiry.
type SessionCache struct {
	client goredis.Cmdable
	prefix string
}

var _ auth.SessionCache = (*SessionCache)(nil)

// Option configures a SessionCache.
type Option func(*SessionCache)

// WithKeyPrefix overrides DefaultKeyPrefix.
func WithKeyPrefix(prefix string) Option {
	return func(c *SessionCache) {
		c.prefix = prefix
	}
}

// NewSessionCache creates a SessionCache over client.
func NewSessionCache(client goredis.Cmdable, opts ...Option) *SessionCache {
	c := &SessionCache{client: client, prefix: DefaultKeyPrefix}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *SessionCache) key(token string) string {
	return c.prefix + token
}

// Set writes the mapping with SET ... EX ttl, overwriting any previous value.
func (c *SessionCache) Set(ctx context.Context, token string, userID uint64, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key(token), strconv.FormatUint(userID, 10), ttl).Err(); err != nil {
		return oops.Code(auth.CodeDependencyUnavailable).
			With("operation", "session set").
			Wrap(err)
	}
	return nil
}

// GetAndRefresh reads the mapping and resets its expiry in one GETEX.
func (c *SessionCache) GetAndRefresh(ctx context.Context, token string, ttl time.Duration) (uint64, bool, error) {
	raw, err := c.client.GetEx(ctx, c.key(token), ttl).Result()
	if errors.Is(err, goredis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, oops.Code(auth.CodeDependencyUnavailable).
			With("operation", "session getex").
			Wrap(err)
	}

	userID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false, oops.Code(auth.CodeDataIntegrity).
			With("operation", "parse cached user id").
			Wrap(err)
	}
	return userID, true, nil
}

// Delete removes the mapping and reports whether it existed. A missing token
// is not an error.
func (c *SessionCache) Delete(ctx context.Context, token string) (bool, error) {
	n, err := c.client.Del(ctx, c.key(token)).Result()
	if err != nil {
		return false, oops.Code(auth.CodeDependencyUnavailable).
			With("operation", "session delete").
			Wrap(err)
	}
	return n > 0, nil
}
