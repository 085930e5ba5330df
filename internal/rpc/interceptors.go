// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package rpc

import (
	"context"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "x-request-id"

type requestIDKey struct{}

// RequestIDFromContext returns the request id assigned by RequestIDInterceptor.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestIDInterceptor reuses an incoming x-request-id or mints a ULID, stores
// it in the context and echoes it in the response header.
func RequestIDInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		id := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get(RequestIDHeader); len(vals) > 0 && len(vals[0]) <= 64 {
				id = vals[0]
			}
		}
		if id == "" {
			id = ulid.Make().String()
		}
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, id)) //nolint:errcheck // no transport stream in unit tests
		return handler(context.WithValue(ctx, requestIDKey{}, id), req)
	}
}

// LoggingInterceptor writes one record per RPC. Requests are logged through
// their LogValue so secrets stay redacted.
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		attrs := []any{
			"method", methodName(info.FullMethod),
			"request_id", RequestIDFromContext(ctx),
			"duration", time.Since(start),
			"outcome", outcome(resp, err),
		}
		switch status.Code(err) {
		case codes.OK:
			logger.DebugContext(ctx, "rpc completed", append(attrs, "request", req)...)
		case codes.Unavailable, codes.Internal, codes.Unknown:
			logger.WarnContext(ctx, "rpc failed", attrs...)
		default:
			logger.InfoContext(ctx, "rpc rejected", append(attrs, "error", err)...)
		}
		return resp, err
	}
}

// MetricsInterceptor records RequestsTotal and RequestDuration.
func MetricsInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		RecordRequest(methodName(info.FullMethod), outcome(resp, err), time.Since(start))
		return resp, err
	}
}

// RateLimitInterceptor rejects calls to the named methods with
// codes.ResourceExhausted once limiter runs dry. Other methods pass through.
func RateLimitInterceptor(limiter *rate.Limiter, methods ...string) grpc.UnaryServerInterceptor {
	limited := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		limited[m] = struct{}{}
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := limited[info.FullMethod]; ok && !limiter.Allow() {
			RateLimited.WithLabelValues(methodName(info.FullMethod)).Inc()
			return nil, status.Error(codes.ResourceExhausted, "too many requests")
		}
		return handler(ctx, req)
	}
}

// outcome maps a handler result to a metrics label.
func outcome(resp any, err error) string {
	if err != nil {
		return strings.ToLower(status.Code(err).String())
	}
	var s Status
	switch r := resp.(type) {
	case *IssueTokenResponse:
		s = r.Status
	case *AuthenticateResponse:
		s = r.Status
	default:
		return OutcomeSuccess
	}
	if s == StatusSuccess {
		return OutcomeSuccess
	}
	return OutcomeFail
}

func methodName(fullMethod string) string {
	return path.Base(fullMethod)
}
