// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/holomush/authd/internal/auth"
	"github.com/holomush/authd/internal/auth/postgres"
	"github.com/holomush/authd/internal/store"
)

// testPool is the shared database pool for integration tests.
var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("authd_test"),
		tcpostgres.WithUsername("authd"),
		tcpostgres.WithPassword("authd"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		panic("failed to start postgres container: " + err.Error())
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		panic("failed to get connection string: " + err.Error())
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		panic("failed to create migrator: " + err.Error())
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		_ = container.Terminate(ctx)
		panic("failed to run migrations: " + err.Error())
	}
	_ = migrator.Close()

	pool, err := store.Open(ctx, connStr, store.PoolOptions{MaxConns: 4})
	if err != nil {
		_ = container.Terminate(ctx)
		panic("failed to open pool: " + err.Error())
	}
	testPool = pool

	code := m.Run()

	pool.Close()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func TestCredentialRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewCredentialRepository(testPool)

	id, err := repo.Create(ctx, "lifecycle_user", "hash-v1")
	require.NoError(t, err)
	assert.NotZero(t, id)
	t.Cleanup(func() {
		_, _ = testPool.Exec(ctx, `DELETE FROM credentials WHERE id = $1`, id)
	})

	got, err := repo.GetByUsername(ctx, "lifecycle_user")
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "hash-v1", got.PasswordHash)

	_, err = repo.Create(ctx, "lifecycle_user", "other")
	require.ErrorIs(t, err, postgres.ErrUsernameTaken)

	require.NoError(t, repo.UpdatePassword(ctx, "lifecycle_user", "hash-v2"))
	got, err = repo.GetByUsername(ctx, "lifecycle_user")
	require.NoError(t, err)
	assert.Equal(t, "hash-v2", got.PasswordHash)

	require.NoError(t, repo.Delete(ctx, "lifecycle_user"))
	_, err = repo.GetByUsername(ctx, "lifecycle_user")
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestCredentialRepository_UsernameIsCaseSensitive(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewCredentialRepository(testPool)

	id, err := repo.Create(ctx, "CaseUser", "hash")
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = testPool.Exec(ctx, `DELETE FROM credentials WHERE id = $1`, id)
	})

	_, err = repo.GetByUsername(ctx, "caseuser")
	assert.ErrorIs(t, err, auth.ErrNotFound)
}
