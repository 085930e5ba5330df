// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/authd/pkg/errutil"
)

func setupJSON(t *testing.T, level string) (*slog.Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger, err := Setup("authd", "1.0.0", "json", level, &buf)
	require.NoError(t, err)
	return logger, &buf
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "Failed to parse JSON: %s", buf.String())
	return entry
}

func TestSetup_JSONFormat(t *testing.T) {
	logger, buf := setupJSON(t, "")

	logger.Info("test message")

	entry := decode(t, buf)
	assert.Equal(t, "test message", entry["msg"])
	assert.Equal(t, "authd", entry["service"])
	assert.Equal(t, "1.0.0", entry["version"])
	assert.Contains(t, entry, "time")
	assert.Contains(t, entry, "level")
}

func TestSetup_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup("authd", "1.0.0", "text", "info", &buf)
	require.NoError(t, err)

	logger.Info("test message")

	assert.Contains(t, buf.String(), "test message")
	assert.Contains(t, buf.String(), "service=authd")
}

func TestSetup_InvalidOptions(t *testing.T) {
	_, err := Setup("authd", "1.0.0", "xml", "info", &bytes.Buffer{})
	errutil.AssertErrorCode(t, err, "LOG_FORMAT_INVALID")

	_, err = Setup("authd", "1.0.0", "json", "verbose", &bytes.Buffer{})
	errutil.AssertErrorCode(t, err, "LOG_LEVEL_INVALID")
}

func TestSetup_LevelFilters(t *testing.T) {
	logger, buf := setupJSON(t, "warn")

	logger.Info("dropped")
	assert.Empty(t, buf.String())

	logger.Warn("kept")
	assert.Equal(t, "kept", decode(t, buf)["msg"])
}

func TestHandler_RedactsSecrets(t *testing.T) {
	logger, buf := setupJSON(t, "debug")

	logger.Debug("login",
		"username", "alice",
		"password", "hunter2",
		slog.Group("session", slog.String("token", "0b5c9e0e-secret")),
	)

	out := buf.String()
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "0b5c9e0e-secret")

	entry := decode(t, buf)
	assert.Equal(t, "alice", entry["username"])
	assert.Equal(t, "[REDACTED]", entry["password"])
	assert.Equal(t, "[REDACTED]", entry["session"].(map[string]any)["token"])
}

func TestHandler_TraceContext(t *testing.T) {
	logger, buf := setupJSON(t, "")

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	logger.InfoContext(ctx, "traced message")

	entry := decode(t, buf)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])
}

func TestHandler_NoTraceContext(t *testing.T) {
	logger, buf := setupJSON(t, "")

	logger.Info("no trace message")

	entry := decode(t, buf)
	assert.NotContains(t, entry, "trace_id")
	assert.NotContains(t, entry, "span_id")
}

func TestHandler_WithAttrsKeepsIdentity(t *testing.T) {
	logger, buf := setupJSON(t, "")

	logger.With("component", "rpc").WithGroup("req").Info("grouped", "id", 1)

	entry := decode(t, buf)
	assert.Equal(t, "rpc", entry["component"])
	assert.Equal(t, "authd", entry["req"].(map[string]any)["service"])
}

func TestSetDefault(t *testing.T) {
	original := slog.Default()
	defer slog.SetDefault(original)

	logger, err := SetDefault("authd", "2.0.0", "json", "info")
	require.NoError(t, err)
	assert.Same(t, logger, slog.Default())
}
