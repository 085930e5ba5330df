// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package rpc

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var issueInfo = &grpc.UnaryServerInfo{FullMethod: IssueTokenMethod}

func TestRequestIDInterceptor(t *testing.T) {
	interceptor := RequestIDInterceptor()

	t.Run("mints a ulid", func(t *testing.T) {
		var got string
		_, err := interceptor(context.Background(), nil, issueInfo, func(ctx context.Context, _ any) (any, error) {
			got = RequestIDFromContext(ctx)
			return nil, nil
		})
		require.NoError(t, err)
		_, parseErr := ulid.Parse(got)
		assert.NoError(t, parseErr)
	})

	t.Run("reuses incoming id", func(t *testing.T) {
		ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(RequestIDHeader, "abc-123"))
		var got string
		_, err := interceptor(ctx, nil, issueInfo, func(ctx context.Context, _ any) (any, error) {
			got = RequestIDFromContext(ctx)
			return nil, nil
		})
		require.NoError(t, err)
		assert.Equal(t, "abc-123", got)
	})
}

func TestLoggingInterceptor_RedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	interceptor := LoggingInterceptor(logger)

	req := &IssueTokenRequest{Username: "alice", Password: "hunter2"}
	_, err := interceptor(context.Background(), req, issueInfo, func(context.Context, any) (any, error) {
		return &IssueTokenResponse{Status: StatusSuccess, Token: "secret-token", UserID: 1}, nil
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"method":"IssueToken"`)
	assert.Contains(t, out, `"outcome":"success"`)
	assert.Contains(t, out, "alice")
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "secret-token")
}

func TestLoggingInterceptor_FailureLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	interceptor := LoggingInterceptor(logger)

	_, err := interceptor(context.Background(), &AuthenticateRequest{Token: "t"},
		&grpc.UnaryServerInfo{FullMethod: AuthenticateMethod},
		func(context.Context, any) (any, error) {
			return nil, status.Error(codes.Unavailable, unavailableMessage)
		})
	require.Error(t, err)
	assert.Contains(t, buf.String(), `"level":"WARN"`)
	assert.Contains(t, buf.String(), `"outcome":"unavailable"`)
}

func TestRateLimitInterceptor(t *testing.T) {
	limiter := rate.NewLimiter(rate.Limit(0.001), 2)
	interceptor := RateLimitInterceptor(limiter, IssueTokenMethod)
	ok := func(context.Context, any) (any, error) { return "ok", nil }

	for range 2 {
		_, err := interceptor(context.Background(), nil, issueInfo, ok)
		require.NoError(t, err)
	}
	_, err := interceptor(context.Background(), nil, issueInfo, ok)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))

	// Unlisted methods are never limited.
	authInfo := &grpc.UnaryServerInfo{FullMethod: AuthenticateMethod}
	for range 5 {
		_, err := interceptor(context.Background(), nil, authInfo, ok)
		require.NoError(t, err)
	}
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, OutcomeSuccess, outcome(&IssueTokenResponse{Status: StatusSuccess}, nil))
	assert.Equal(t, OutcomeFail, outcome(&IssueTokenResponse{Status: StatusFail}, nil))
	assert.Equal(t, OutcomeFail, outcome(&AuthenticateResponse{Status: StatusFail}, nil))
	assert.Equal(t, OutcomeSuccess, outcome("other", nil))
	assert.Equal(t, "unavailable", outcome(nil, status.Error(codes.Unavailable, "x")))
	assert.Equal(t, "unknown", outcome(nil, errors.New("plain")))
}
