// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"github.com/google/uuid"
	"github.com/samber/oops"
)

// TokenGenerator produces bearer tokens.
type TokenGenerator interface {
	NewToken() (string, error)
}

// UUIDTokenGenerator issues random (version 4) UUIDs in canonical 36-character
// form, carrying 122 bits from crypto/rand.
//
// Tokens are not checked for uniqueness before use.
type UUIDTokenGenerator struct{}

// NewToken returns a fresh token.
func (UUIDTokenGenerator) NewToken() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", oops.Code("AUTH_TOKEN_GENERATE_FAILED").
			With("operation", "uuid.NewRandom").
			Wrap(err)
	}
	return id.String(), nil
}
