// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package rpc

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for RPC metrics. Transport failures use the lower-cased
// gRPC code name instead.
const (
	OutcomeSuccess = "success"
	OutcomeFail    = "fail"
)

// RequestsTotal counts RPCs by method and outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var RequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "authd_rpc_requests_total",
		Help: "Total number of auth RPCs by method and outcome",
	},
	[]string{"method", "outcome"},
)

// RequestDuration observes RPC latency by method.
// Use RegisterMetrics to register this with a Prometheus registry.
var RequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "authd_rpc_duration_seconds",
		Help:    "Auth RPC duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"method"},
)

// RateLimited counts calls rejected by the rate limiter.
// Use RegisterMetrics to register this with a Prometheus registry.
var RateLimited = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "authd_rpc_rate_limited_total",
		Help: "Total number of auth RPCs rejected by the rate limiter",
	},
	[]string{"method"},
)

// Collectors returns the rpc package metrics for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{RequestsTotal, RequestDuration, RateLimited}
}

// RegisterMetrics registers rpc package metrics with reg.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Collectors()...)
}

// RecordRequest records one completed RPC.
func RecordRequest(method, outcome string, duration time.Duration) {
	RequestsTotal.WithLabelValues(method, outcome).Inc()
	RequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}
