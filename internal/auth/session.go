// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"time"
)

// SessionTTL is the lifetime of a session, applied at issue and on every
// successful Authenticate.
const SessionTTL = 259200 * time.Second // 3 days

// Session is a live token to user binding.
type Session struct {
	Token     string
	UserID    uint64
	ExpiresAt time.Time
}

// SessionCache stores token to user id mappings with expiry.
// Implementations must be safe for concurrent use.
type SessionCache interface {
	// Set creates or overwrites the mapping for token, expiring after ttl.
	Set(ctx context.Context, token string, userID uint64, ttl time.Duration) error

	// GetAndRefresh atomically reads the user id for token and resets its
	// expiry to ttl. A missing or expired token returns found=false and no error.
	GetAndRefresh(ctx context.Context, token string, ttl time.Duration) (userID uint64, found bool, err error)
}
