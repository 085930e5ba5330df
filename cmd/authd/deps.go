// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/holomush/authd/internal/auth/redis"
	"github.com/holomush/authd/internal/dualstack"
	"github.com/holomush/authd/internal/observability"
	"github.com/holomush/authd/internal/rpc"
	"github.com/holomush/authd/internal/store"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// PoolOpener connects to the credential store.
	// Default: store.Open
	PoolOpener func(ctx context.Context, url string, opts store.PoolOptions) (CredentialPool, error)

	// RedisDialer connects to the session cache.
	// Default: redis.Dial
	RedisDialer func(ctx context.Context, url string, opts redis.DialOptions) (*goredis.Client, error)

	// ListenerFactory binds the RPC listener.
	// Default: dualstack.Listen
	ListenerFactory func(ctx context.Context, b dualstack.Bind) (net.Listener, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker, cs ...prometheus.Collector) ObservabilityServer

	// Started is called with the bound listener once the health service
	// reports SERVING.
	Started func(addr net.Addr)
}

// UserDeps contains injectable dependencies for the user commands.
type UserDeps struct {
	// PoolOpener connects to the credential store.
	// Default: store.Open
	PoolOpener func(ctx context.Context, url string, opts store.PoolOptions) (CredentialPool, error)
}

// SessionDeps contains injectable dependencies for the session commands.
type SessionDeps struct {
	// RedisDialer connects to the session cache.
	// Default: redis.Dial
	RedisDialer func(ctx context.Context, url string, opts redis.DialOptions) (*goredis.Client, error)
}

// MigrateDeps contains injectable dependencies for the migrate commands.
type MigrateDeps struct {
	// MigratorFactory opens a migrator for a database URL.
	// Default: store.NewMigrator
	MigratorFactory func(url string) (Migrator, error)
}

// StatusDeps contains injectable dependencies for the status command.
type StatusDeps struct {
	// ClientFactory creates a health-checking client.
	// Default: rpc.NewClient
	ClientFactory func(cfg rpc.ClientConfig) (HealthChecker, error)
}

// CredentialPool wraps the methods used from pgxpool.Pool.
type CredentialPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	Close()
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// Migrator interface wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Force(version int) error
	Status() (*store.MigrationStatus, error)
	Close() error
}

// HealthChecker interface wraps the methods used from rpc.Client.
type HealthChecker interface {
	Check(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error)
	Close() error
}

func defaultPoolOpener(ctx context.Context, url string, opts store.PoolOptions) (CredentialPool, error) {
	pool, err := store.Open(ctx, url, opts)
	if err != nil {
		return nil, err
	}
	return pool, nil
}
