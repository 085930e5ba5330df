// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package errutil bridges oops errors into structured logs and tests.
package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs err at error level. For oops errors the code and context map
// are emitted as separate attributes; other errors are logged as strings.
// attrs are appended after the error attributes.
func LogError(ctx context.Context, logger *slog.Logger, msg string, err error, attrs ...any) {
	logger.ErrorContext(ctx, msg, append(errorAttrs(err), attrs...)...)
}

func errorAttrs(err error) []any {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return []any{"error", err}
	}
	out := []any{"error", oopsErr.Error()}
	if code := oopsErr.Code(); code != nil && code != "" {
		out = append(out, "code", code)
	}
	if errCtx := oopsErr.Context(); len(errCtx) > 0 {
		out = append(out, "context", errCtx)
	}
	return out
}
