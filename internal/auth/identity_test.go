// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/authd/internal/auth"
	"github.com/holomush/authd/pkg/errutil"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{"simple", "alice", false},
		{"max length", strings.Repeat("a", auth.UsernameMaxLen), false},
		{"empty", "", true},
		{"too long", strings.Repeat("a", auth.UsernameMaxLen+1), true},
		{"leading space", " alice", true},
		{"trailing newline", "alice\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.ValidateUsername(tt.username)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "AUTH_INVALID_USERNAME")
		})
	}
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "success", auth.StatusSuccess.String())
	assert.Equal(t, "fail", auth.StatusFail.String())
	assert.Equal(t, "unknown", auth.StatusUnknown.String())
}

func TestIsUnavailable(t *testing.T) {
	assert.True(t, auth.IsUnavailable(auth.ErrUnavailable))
	assert.False(t, auth.IsUnavailable(auth.ErrNotFound))
	assert.Equal(t, "FALLBACK", auth.ErrorCode(auth.ErrNotFound, "FALLBACK"))
}
