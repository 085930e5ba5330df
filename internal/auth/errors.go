// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrUnavailable is the opaque error returned across the service boundary for
// every internal failure. Callers see no cause detail.
var ErrUnavailable = errors.New("authentication backend unavailable")

// Error classification codes.
const (
	// CodeDependencyUnavailable marks connectivity or protocol failures
	// against the credential store or session cache.
	CodeDependencyUnavailable = "AUTH_DEPENDENCY_UNAVAILABLE"

	// CodeDataIntegrity marks stored data that cannot be interpreted, such as
	// a malformed password hash or a non-numeric cached user id.
	CodeDataIntegrity = "AUTH_DATA_INTEGRITY"

	// CodeInvalidHash is set by PasswordHasher.Verify for unparseable hashes.
	CodeInvalidHash = "AUTH_INVALID_HASH"
)

// IsUnavailable reports whether err is an opaque service failure.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// ErrorCode returns the oops code attached to err, or fallback when none is set.
func ErrorCode(err error, fallback string) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		if code, ok := oopsErr.Code().(string); ok && code != "" {
			return code
		}
	}
	return fallback
}
