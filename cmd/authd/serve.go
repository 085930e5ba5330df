// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	cryptotls "crypto/tls"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/holomush/authd/internal/auth"
	"github.com/holomush/authd/internal/auth/postgres"
	"github.com/holomush/authd/internal/auth/redis"
	"github.com/holomush/authd/internal/config"
	"github.com/holomush/authd/internal/dualstack"
	"github.com/holomush/authd/internal/logging"
	"github.com/holomush/authd/internal/observability"
	"github.com/holomush/authd/internal/rpc"
	"github.com/holomush/authd/internal/store"
	"github.com/holomush/authd/internal/tls"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the authentication service",
		Long: `Serve IssueToken and Authenticate over gRPC on one port bound on
both IPv6 and IPv4. REDIS_URL and POSTGRES_URL are required.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServeWithDeps(ctx, cmd, cfg, nil)
		},
	}
}

// runServeWithDeps starts the service with injectable dependencies and blocks
// until ctx is cancelled or the RPC server fails. If deps is nil, default
// implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, cfg *config.Config, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.PoolOpener == nil {
		deps.PoolOpener = defaultPoolOpener
	}
	if deps.RedisDialer == nil {
		deps.RedisDialer = redis.Dial
	}
	if deps.ListenerFactory == nil {
		deps.ListenerFactory = func(ctx context.Context, b dualstack.Bind) (net.Listener, error) {
			return dualstack.Listen(ctx, b)
		}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker, cs ...prometheus.Collector) ObservabilityServer {
			return observability.NewServer(addr, ready, cs...)
		}
	}

	if err := cfg.Validate(); err != nil {
		return oops.With("operation", "validate configuration").Wrap(err)
	}

	logger, err := logging.Setup("authd", version, cfg.LogFormat, cfg.LogLevel, cmd.ErrOrStderr())
	if err != nil {
		return oops.With("operation", "set up logging").Wrap(err)
	}
	slog.SetDefault(logger)

	var serverTLS *cryptotls.Config
	if cfg.TLSEnabled() {
		serverTLS, err = tls.LoadServerTLS(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return err
		}
	}

	logger.InfoContext(ctx, "starting authd",
		"port", cfg.Port,
		"bind_ipv6", cfg.BindIPv6,
		"bind_ipv4", cfg.BindIPv4,
		"tls", serverTLS != nil,
	)

	retries := uint64(cfg.ConnectRetries) //nolint:gosec // validated non-negative
	pool, err := deps.PoolOpener(ctx, cfg.PostgresURL, store.PoolOptions{
		MaxConns:       int32(cfg.PGMaxConns), //nolint:gosec // validated non-negative
		ConnectRetries: retries,
	})
	if err != nil {
		return oops.With("operation", "connect to credential store").Wrap(err)
	}
	defer pool.Close()
	logger.InfoContext(ctx, "connected to credential store")

	rdb, err := deps.RedisDialer(ctx, cfg.RedisURL, redis.DialOptions{
		PoolSize:       cfg.RedisPoolSize,
		ConnectRetries: retries,
	})
	if err != nil {
		return oops.With("operation", "connect to session cache").Wrap(err)
	}
	defer func() {
		if closeErr := rdb.Close(); closeErr != nil {
			logger.Warn("error closing session cache client", "error", closeErr)
		}
	}()
	logger.InfoContext(ctx, "connected to session cache")

	svc, err := auth.NewService(
		postgres.NewCredentialRepository(pool),
		redis.NewSessionCache(rdb),
		auth.NewArgon2idHasher(auth.DefaultArgon2idParams),
		auth.UUIDTokenGenerator{},
		auth.WithLogger(logger),
	)
	if err != nil {
		return oops.With("operation", "create auth service").Wrap(err)
	}

	grpcServer := rpc.NewGRPCServer(rpc.ServerConfig{
		TLSConfig:  serverTLS,
		IssueRate:  cfg.IssueRate,
		IssueBurst: cfg.IssueBurst,
		Logger:     logger,
	})
	rpc.RegisterAuthServiceServer(grpcServer, rpc.NewAuthServer(svc))
	health := rpc.NewHealth()
	health.Register(grpcServer)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var obsServer ObservabilityServer
	if cfg.MetricsAddr != "" {
		collectors := append(rpc.Collectors(), observability.BuildInfo(version))
		obsServer = deps.ObservabilityServerFactory(cfg.MetricsAddr, health.Ready, collectors...)
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.With("operation", "start observability server").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
	}

	listener, err := deps.ListenerFactory(ctx, dualstack.Bind{
		IPv6: cfg.BindIPv6,
		IPv4: cfg.BindIPv4,
		Port: cfg.Port,
	})
	if err != nil {
		stopObservability(obsServer, cfg.ShutdownTimeout)
		return oops.With("operation", "bind listener").Wrap(err)
	}

	errChan := make(chan error, 1)
	go func() {
		if serveErr := grpcServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, grpc.ErrServerStopped) {
			errChan <- serveErr
		}
	}()

	if err := markReady(ctx, pool, rdb, health); err != nil {
		grpcServer.Stop()
		stopObservability(obsServer, cfg.ShutdownTimeout)
		return err
	}

	cmd.Println("authd started")
	logger.InfoContext(ctx, "authd ready", "addr", listener.Addr().String())
	if deps.Started != nil {
		deps.Started(listener.Addr())
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case serveErr := <-errChan:
		runErr = oops.Code("RPC_SERVE_FAILED").Wrap(serveErr)
		logger.Error("rpc server failed", "error", serveErr)
	}

	health.SetNotServing(rpc.ServiceName)
	health.Shutdown()
	gracefulStop(grpcServer, cfg.ShutdownTimeout, logger)
	stopObservability(obsServer, cfg.ShutdownTimeout)

	logger.Info("shutdown complete")
	return runErr
}

// pinger is the readiness probe shared by both stores.
type pinger interface {
	Ping(ctx context.Context) error
}

// markReady flips the health service to SERVING once both stores answer.
func markReady(ctx context.Context, pool pinger, rdb goredis.Cmdable, health *rpc.Health) error {
	if err := pool.Ping(ctx); err != nil {
		return oops.Code("STORE_CONNECT_FAILED").With("operation", "readiness ping").Wrap(err)
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		return oops.Code("REDIS_CONNECT_FAILED").With("operation", "readiness ping").Wrap(err)
	}
	health.SetServing(rpc.ServiceName)
	return nil
}

// gracefulStop drains in-flight RPCs, forcing a stop after timeout.
func gracefulStop(s *grpc.Server, timeout time.Duration, logger *slog.Logger) {
	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		logger.Warn("graceful stop timed out, closing connections", "timeout", timeout)
		s.Stop()
		<-done
	}
}

func stopObservability(s ObservabilityServer, timeout time.Duration) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		slog.Warn("error stopping observability server", "error", err)
	}
}

// monitorServerErrors cancels ctx when a background server reports an error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, name string) {
	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			slog.Error("server error, initiating shutdown", "server", name, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
