// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package rpc

import (
	"fmt"
	"log/slog"

	"github.com/holomush/authd/internal/auth"
)

// Status is the wire outcome of an RPC.
type Status int32

// Wire status values. Zero is never sent by the server.
const (
	StatusUnspecified Status = 0
	StatusSuccess     Status = 1
	StatusFail        Status = 2
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "STATUS_SUCCESS"
	case StatusFail:
		return "STATUS_FAIL"
	default:
		return "STATUS_UNSPECIFIED"
	}
}

func statusFromAuth(s auth.Status) Status {
	switch s {
	case auth.StatusSuccess:
		return StatusSuccess
	case auth.StatusFail:
		return StatusFail
	default:
		return StatusUnspecified
	}
}

// IssueTokenRequest carries login credentials.
type IssueTokenRequest struct {
	Username string `cbor:"1,keyasint"`
	Password string `cbor:"2,keyasint"`
}

// LogValue keeps the password out of logs.
func (r *IssueTokenRequest) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("username", r.Username),
		slog.String("password", redacted),
	)
}

// IssueTokenResponse is the result of IssueToken. Token is empty and UserID
// zero unless Status is StatusSuccess.
type IssueTokenResponse struct {
	Status Status `cbor:"1,keyasint"`
	Token  string `cbor:"2,keyasint,omitempty"`
	UserID uint64 `cbor:"3,keyasint"`
}

// AuthenticateRequest carries a bearer token.
type AuthenticateRequest struct {
	Token string `cbor:"1,keyasint"`
}

// LogValue keeps the token out of logs.
func (r *AuthenticateRequest) LogValue() slog.Value {
	return slog.GroupValue(slog.String("token", redacted))
}

// AuthenticateResponse is the result of Authenticate. UserID is zero unless
// Status is StatusSuccess.
type AuthenticateResponse struct {
	Status Status `cbor:"1,keyasint"`
	UserID uint64 `cbor:"2,keyasint"`
}

const redacted = "[REDACTED]"

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
