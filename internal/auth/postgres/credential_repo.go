// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package postgres implements auth.CredentialStore on PostgreSQL.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/holomush/authd/internal/auth"
)

// ErrUsernameTaken is returned by Create when the username already exists.
var ErrUsernameTaken = errors.New("username already taken")

// pool is the subset of *pgxpool.Pool used here, so pgxmock can stand in.
type pool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// CredentialRepository implements auth.CredentialStore using PostgreSQL.
type CredentialRepository struct {
	pool pool
}

var _ auth.CredentialStore = (*CredentialRepository)(nil)

// NewCredentialRepository creates a new CredentialRepository.
func NewCredentialRepository(p pool) *CredentialRepository {
	return &CredentialRepository{pool: p}
}

// GetByUsername retrieves the identity for an exact username match.
func (r *CredentialRepository) GetByUsername(ctx context.Context, username string) (*auth.UserIdentity, error) {
	var (
		id   int64
		hash string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, password_hash FROM credentials WHERE username = $1`,
		username,
	).Scan(&id, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.With("username", username).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code(auth.CodeDependencyUnavailable).
			With("operation", "get credential by username").
			Wrap(err)
	}
	if id < 0 {
		return nil, oops.Code(auth.CodeDataIntegrity).
			With("username", username).
			Errorf("negative user id %d", id)
	}

	return &auth.UserIdentity{
		ID:           uint64(id),
		Username:     username,
		PasswordHash: hash,
	}, nil
}

// Create provisions a new account and returns its assigned id.
func (r *CredentialRepository) Create(ctx context.Context, username, passwordHash string) (uint64, error) {
	if err := auth.ValidateUsername(username); err != nil {
		return 0, err
	}

	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO credentials (username, password_hash, password_updated_at)
		 VALUES ($1, $2, now())
		 RETURNING id`,
		username, passwordHash,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, oops.Code("CREDENTIAL_USERNAME_TAKEN").
				With("username", username).
				Wrap(ErrUsernameTaken)
		}
		return 0, oops.Code("CREDENTIAL_CREATE_FAILED").
			With("operation", "insert credential").
			With("username", username).
			Wrap(err)
	}
	return uint64(id), nil //nolint:gosec // identity column is positive
}

// UpdatePassword replaces the stored hash for username.
func (r *CredentialRepository) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE credentials
		 SET password_hash = $2, password_updated_at = now(), updated_at = now()
		 WHERE username = $1`,
		username, passwordHash,
	)
	if err != nil {
		return oops.Code("CREDENTIAL_UPDATE_FAILED").
			With("operation", "update password").
			With("username", username).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.With("username", username).Wrap(auth.ErrNotFound)
	}
	return nil
}

// Delete removes the account for username. Live sessions are not revoked and
// expire on their own.
func (r *CredentialRepository) Delete(ctx context.Context, username string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM credentials WHERE username = $1`, username)
	if err != nil {
		return oops.Code("CREDENTIAL_DELETE_FAILED").
			With("operation", "delete credential").
			With("username", username).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.With("username", username).Wrap(auth.ErrNotFound)
	}
	return nil
}
