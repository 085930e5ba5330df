// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package rpc

import (
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Health wraps the standard gRPC health service. Every service starts
// NOT_SERVING; the overall ("") status follows ServiceName.
type Health struct {
	srv   *health.Server
	ready atomic.Bool
}

// NewHealth creates a Health with ServiceName not serving.
func NewHealth() *Health {
	h := &Health{srv: health.NewServer()}
	h.SetNotServing(ServiceName)
	return h
}

// Register installs the health service on s.
func (h *Health) Register(s grpc.ServiceRegistrar) {
	healthpb.RegisterHealthServer(s, h.srv)
}

// SetServing marks name as SERVING.
func (h *Health) SetServing(name string) {
	h.set(name, healthpb.HealthCheckResponse_SERVING)
}

// SetNotServing marks name as NOT_SERVING.
func (h *Health) SetNotServing(name string) {
	h.set(name, healthpb.HealthCheckResponse_NOT_SERVING)
}

func (h *Health) set(name string, st healthpb.HealthCheckResponse_ServingStatus) {
	h.srv.SetServingStatus(name, st)
	if name == ServiceName {
		h.srv.SetServingStatus("", st)
		h.ready.Store(st == healthpb.HealthCheckResponse_SERVING)
	}
}

// Ready reports whether ServiceName is serving. It is suitable as an HTTP
// readiness check.
func (h *Health) Ready() bool {
	return h.ready.Load()
}

// Shutdown sets every service NOT_SERVING and ignores later updates.
func (h *Health) Shutdown() {
	h.ready.Store(false)
	h.srv.Shutdown()
}
