// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/authd/internal/auth"
	"github.com/holomush/authd/pkg/errutil"
)

func newMockRepo(t *testing.T) (*CredentialRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return NewCredentialRepository(mock), mock
}

func TestCredentialRepository_GetByUsername(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		want      *auth.UserIdentity
		wantIs    error
		wantCode  string
	}{
		{
			name: "found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT id, password_hash FROM credentials`).
					WithArgs("alice").
					WillReturnRows(pgxmock.NewRows([]string{"id", "password_hash"}).
						AddRow(int64(42), "$argon2id$stored"))
			},
			want: &auth.UserIdentity{ID: 42, Username: "alice", PasswordHash: "$argon2id$stored"},
		},
		{
			name: "missing maps to ErrNotFound",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT id, password_hash FROM credentials`).
					WithArgs("alice").
					WillReturnError(pgx.ErrNoRows)
			},
			wantIs: auth.ErrNotFound,
		},
		{
			name: "connection failure is a dependency error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT id, password_hash FROM credentials`).
					WithArgs("alice").
					WillReturnError(errors.New("connection refused"))
			},
			wantCode: auth.CodeDependencyUnavailable,
		},
		{
			name: "negative id is a data integrity error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT id, password_hash FROM credentials`).
					WithArgs("alice").
					WillReturnRows(pgxmock.NewRows([]string{"id", "password_hash"}).
						AddRow(int64(-1), "hash"))
			},
			wantCode: auth.CodeDataIntegrity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepo(t)
			tt.setupMock(mock)

			got, err := repo.GetByUsername(ctx, "alice")
			switch {
			case tt.wantIs != nil:
				assert.Nil(t, got)
				assert.ErrorIs(t, err, tt.wantIs)
			case tt.wantCode != "":
				assert.Nil(t, got)
				errutil.AssertErrorCode(t, err, tt.wantCode)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestCredentialRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("returns assigned id", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(`INSERT INTO credentials`).
			WithArgs("alice", "hash").
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

		id, err := repo.Create(ctx, "alice", "hash")
		require.NoError(t, err)
		assert.Equal(t, uint64(7), id)
	})

	t.Run("duplicate username", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(`INSERT INTO credentials`).
			WithArgs("alice", "hash").
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "credentials_username_key"})

		_, err := repo.Create(ctx, "alice", "hash")
		require.ErrorIs(t, err, ErrUsernameTaken)
		errutil.AssertErrorCode(t, err, "CREDENTIAL_USERNAME_TAKEN")
	})

	t.Run("other database error", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(`INSERT INTO credentials`).
			WithArgs("alice", "hash").
			WillReturnError(errors.New("disk full"))

		_, err := repo.Create(ctx, "alice", "hash")
		errutil.AssertErrorCode(t, err, "CREDENTIAL_CREATE_FAILED")
		errutil.AssertErrorContext(t, err, "username", "alice")
	})

	t.Run("invalid username never reaches the database", func(t *testing.T) {
		repo, _ := newMockRepo(t)

		_, err := repo.Create(ctx, " padded ", "hash")
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_USERNAME")
	})
}

func TestCredentialRepository_UpdatePassword(t *testing.T) {
	ctx := context.Background()

	t.Run("updates existing", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec(`UPDATE credentials`).
			WithArgs("alice", "newhash").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.UpdatePassword(ctx, "alice", "newhash"))
	})

	t.Run("unknown user", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec(`UPDATE credentials`).
			WithArgs("ghost", "newhash").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		assert.ErrorIs(t, repo.UpdatePassword(ctx, "ghost", "newhash"), auth.ErrNotFound)
	})

	t.Run("database error", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec(`UPDATE credentials`).
			WithArgs("alice", "newhash").
			WillReturnError(errors.New("timeout"))

		errutil.AssertErrorCode(t, repo.UpdatePassword(ctx, "alice", "newhash"), "CREDENTIAL_UPDATE_FAILED")
	})
}

func TestCredentialRepository_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes existing", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec(`DELETE FROM credentials`).
			WithArgs("alice").
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		require.NoError(t, repo.Delete(ctx, "alice"))
	})

	t.Run("unknown user", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec(`DELETE FROM credentials`).
			WithArgs("ghost").
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		assert.ErrorIs(t, repo.Delete(ctx, "ghost"), auth.ErrNotFound)
	})
}
