// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"strings"

	"github.com/samber/oops"
)

// Username constraints.
const (
	UsernameMaxLen = 64
)

// UserIdentity is a provisioned account as held by the credential store.
type UserIdentity struct {
	ID           uint64
	Username     string
	PasswordHash string
}

// CredentialStore looks up provisioned accounts.
type CredentialStore interface {
	// GetByUsername returns the identity for username.
	// Returns an error wrapping ErrNotFound when no such account exists.
	GetByUsername(ctx context.Context, username string) (*UserIdentity, error)
}

// ValidateUsername checks the shape of a username at provisioning time.
func ValidateUsername(username string) error {
	if username == "" {
		return oops.Code("AUTH_INVALID_USERNAME").Errorf("username cannot be empty")
	}
	if len(username) > UsernameMaxLen {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("length", len(username)).
			Errorf("username exceeds %d bytes", UsernameMaxLen)
	}
	if strings.TrimSpace(username) != username {
		return oops.Code("AUTH_INVALID_USERNAME").Errorf("username cannot have leading or trailing whitespace")
	}
	return nil
}
