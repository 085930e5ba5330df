// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth implements the authd token protocol.
//
// # Operations
//
// [Service] exposes the two protocol operations:
//   - IssueToken - verifies a username/password pair and issues an opaque bearer token
//   - Authenticate - resolves a bearer token to a user id, sliding its expiry forward
//
// # Collaborators
//
// Service is constructed with explicit handles for its collaborators:
//   - CredentialStore - durable username to (id, password hash) lookup
//   - SessionCache - ephemeral token to user id mapping with TTL
//   - PasswordHasher - argon2id verification
//   - TokenGenerator - random token strings
//
// Concrete adapters live in the postgres and redis subpackages.
//
// # Failures
//
// User mistakes (unknown username, wrong password, unknown or expired token) are
// reported through [StatusFail] and never as errors. Every other failure is logged
// with its cause and returned as an error wrapping [ErrUnavailable] that carries
// only a classification code.
package auth
