// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package rpc exposes the auth service over gRPC with a CBOR codec.
package rpc

import (
	"context"
	"crypto/tls"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"

	"github.com/holomush/authd/internal/auth"
)

// unavailableMessage is the only error text clients ever see.
const unavailableMessage = "authentication backend unavailable"

// Authenticator is the protocol logic served over gRPC.
type Authenticator interface {
	IssueToken(ctx context.Context, username, password string) (*auth.IssueResult, error)
	Authenticate(ctx context.Context, token string) (*auth.AuthenticateResult, error)
}

// AuthServer adapts an Authenticator to AuthServiceServer. Every error from
// the Authenticator becomes codes.Unavailable with a fixed message.
type AuthServer struct {
	auth Authenticator
}

var _ AuthServiceServer = (*AuthServer)(nil)

// NewAuthServer creates an AuthServer.
func NewAuthServer(a Authenticator) *AuthServer {
	return &AuthServer{auth: a}
}

// IssueToken implements AuthServiceServer.
func (s *AuthServer) IssueToken(ctx context.Context, req *IssueTokenRequest) (*IssueTokenResponse, error) {
	result, err := s.auth.IssueToken(ctx, req.Username, req.Password)
	if err != nil {
		return nil, status.Error(codes.Unavailable, unavailableMessage)
	}
	resp := &IssueTokenResponse{Status: statusFromAuth(result.Status)}
	if result.Status == auth.StatusSuccess {
		resp.Token = result.Session.Token
		resp.UserID = result.Session.UserID
	}
	return resp, nil
}

// Authenticate implements AuthServiceServer.
func (s *AuthServer) Authenticate(ctx context.Context, req *AuthenticateRequest) (*AuthenticateResponse, error) {
	result, err := s.auth.Authenticate(ctx, req.Token)
	if err != nil {
		return nil, status.Error(codes.Unavailable, unavailableMessage)
	}
	resp := &AuthenticateResponse{Status: statusFromAuth(result.Status)}
	if result.Status == auth.StatusSuccess {
		resp.UserID = result.Session.UserID
	}
	return resp, nil
}

// ServerConfig holds transport settings for NewGRPCServer.
type ServerConfig struct {
	// TLSConfig enables TLS when set.
	TLSConfig *tls.Config

	// Keepalive is the server ping interval (default: 10s).
	Keepalive time.Duration

	// MaxConcurrentStreams caps in-flight RPCs per connection (default: 256).
	MaxConcurrentStreams uint32

	// IssueRate limits IssueToken calls per second across the server.
	// Zero disables limiting.
	IssueRate float64

	// IssueBurst is the limiter burst. Defaults to 1 when IssueRate is set.
	IssueBurst int

	// Logger receives per-RPC records. Defaults to slog.Default().
	Logger *slog.Logger
}

// NewGRPCServer creates a grpc.Server with keepalive, stream limits and the
// request id, logging, metrics and rate-limit interceptors installed.
func NewGRPCServer(cfg ServerConfig) *grpc.Server {
	if cfg.Keepalive == 0 {
		cfg.Keepalive = 10 * time.Second
	}
	if cfg.MaxConcurrentStreams == 0 {
		cfg.MaxConcurrentStreams = 256
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	interceptors := []grpc.UnaryServerInterceptor{
		RequestIDInterceptor(),
		LoggingInterceptor(cfg.Logger),
		MetricsInterceptor(),
	}
	if cfg.IssueRate > 0 {
		burst := cfg.IssueBurst
		if burst <= 0 {
			burst = 1
		}
		interceptors = append(interceptors,
			RateLimitInterceptor(rate.NewLimiter(rate.Limit(cfg.IssueRate), burst), IssueTokenMethod))
	}

	opts := []grpc.ServerOption{
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    cfg.Keepalive,
			Timeout: cfg.Keepalive / 2,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             cfg.Keepalive / 2,
			PermitWithoutStream: true,
		}),
		grpc.MaxConcurrentStreams(cfg.MaxConcurrentStreams),
		grpc.ChainUnaryInterceptor(interceptors...),
	}
	if cfg.TLSConfig != nil {
		opts = append(opts, grpc.Creds(credentials.NewTLS(cfg.TLSConfig)))
	}
	return grpc.NewServer(opts...)
}
