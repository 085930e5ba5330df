// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package rpc

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/samber/oops"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// Client wraps a gRPC connection to the auth service.
type Client struct {
	conn   *grpc.ClientConn
	health healthpb.HealthClient
}

// ClientConfig holds configuration for the gRPC client.
type ClientConfig struct {
	// Address is the target server address (e.g., "localhost:14514").
	Address string

	// TLSConfig enables TLS. If nil, an insecure connection is used.
	TLSConfig *tls.Config

	// KeepaliveTime is how often to ping the server (default: 10s).
	KeepaliveTime time.Duration

	// KeepaliveTimeout is how long to wait for a ping response (default: 5s).
	KeepaliveTimeout time.Duration

	// DialOptions are appended after the defaults. Tests use this to inject
	// a bufconn dialer.
	DialOptions []grpc.DialOption
}

// NewClient creates a client. The connection is established lazily on the
// first call.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Address == "" {
		return nil, oops.Code("RPC_CLIENT_INVALID").Errorf("address is required")
	}
	if cfg.KeepaliveTime == 0 {
		cfg.KeepaliveTime = 10 * time.Second
	}
	if cfg.KeepaliveTimeout == 0 {
		cfg.KeepaliveTimeout = 5 * time.Second
	}

	opts := []grpc.DialOption{
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                cfg.KeepaliveTime,
			Timeout:             cfg.KeepaliveTimeout,
			PermitWithoutStream: true,
		}),
	}
	if cfg.TLSConfig != nil {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(cfg.TLSConfig)))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	opts = append(opts, cfg.DialOptions...)

	conn, err := grpc.NewClient(cfg.Address, opts...)
	if err != nil {
		return nil, oops.Code("RPC_CLIENT_CONNECT_FAILED").With("address", cfg.Address).Wrap(err)
	}
	return &Client{conn: conn, health: healthpb.NewHealthClient(conn)}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if err := c.conn.Close(); err != nil {
		return oops.With("operation", "close rpc client").Wrap(err)
	}
	return nil
}

// IssueToken calls AuthService.IssueToken. The returned error is the raw gRPC
// status so callers can inspect codes.
func (c *Client) IssueToken(ctx context.Context, username, password string) (*IssueTokenResponse, error) {
	out := new(IssueTokenResponse)
	req := &IssueTokenRequest{Username: username, Password: password}
	if err := c.conn.Invoke(ctx, IssueTokenMethod, req, out, grpc.CallContentSubtype(CodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

// Authenticate calls AuthService.Authenticate.
func (c *Client) Authenticate(ctx context.Context, token string) (*AuthenticateResponse, error) {
	out := new(AuthenticateResponse)
	req := &AuthenticateRequest{Token: token}
	if err := c.conn.Invoke(ctx, AuthenticateMethod, req, out, grpc.CallContentSubtype(CodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

// Check queries the standard health service for service ("" for overall).
func (c *Client) Check(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}
