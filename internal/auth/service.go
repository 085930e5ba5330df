// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/authd/pkg/errutil"
)

// Status is the user-visible outcome of a protocol operation.
type Status int

// Protocol outcomes. The zero value is never returned.
const (
	StatusUnknown Status = iota
	StatusSuccess
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// IssueResult is the outcome of IssueToken. On StatusFail the session is zero.
type IssueResult struct {
	Status  Status
	Session Session
}

// AuthenticateResult is the outcome of Authenticate. On StatusFail the
// session is zero.
type AuthenticateResult struct {
	Status  Status
	Session Session
}

// dummyPasswordHash is verified against when the username does not exist so
// that unknown and known usernames cost the same argon2id work.
// It is not a credential and matches no password.
//
//nolint:gosec // G101: intentionally fake hash used for timing equalization.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Service implements IssueToken and Authenticate.
type Service struct {
	credentials CredentialStore
	sessions    SessionCache
	hasher      PasswordHasher
	tokens      TokenGenerator
	logger      *slog.Logger
	ttl         time.Duration
	now         func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger used for audit and failure records.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock overrides the time source used to compute session expiry.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a Service. All collaborators are required.
func NewService(credentials CredentialStore, sessions SessionCache, hasher PasswordHasher, tokens TokenGenerator, opts ...ServiceOption) (*Service, error) {
	if credentials == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("credential store is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("session cache is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("token generator is required")
	}

	s := &Service{
		credentials: credentials,
		sessions:    sessions,
		hasher:      hasher,
		tokens:      tokens,
		logger:      slog.Default(),
		ttl:         SessionTTL,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("logger cannot be nil")
	}
	return s, nil
}

// IssueToken verifies username and password and, on success, stores a new
// session and returns its token.
//
// Unknown usernames and wrong passwords both yield StatusFail with a zero
// session. Store failures and corrupt hashes return an error wrapping
// ErrUnavailable.
func (s *Service) IssueToken(ctx context.Context, username, password string) (*IssueResult, error) {
	if username == "" {
		s.verifyDummy(password)
		return &IssueResult{Status: StatusFail}, nil
	}

	identity, err := s.credentials.GetByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		s.verifyDummy(password)
		s.logger.DebugContext(ctx, "issue token for unknown username")
		return &IssueResult{Status: StatusFail}, nil
	}
	if err != nil {
		return nil, s.unavailable(ctx, ErrorCode(err, CodeDependencyUnavailable), "credential lookup failed", err)
	}

	ok, err := s.hasher.Verify(password, identity.PasswordHash)
	if err != nil {
		return nil, s.unavailable(ctx, CodeDataIntegrity, "stored password hash is unreadable", err,
			"user_id", identity.ID)
	}
	if !ok {
		s.logger.InfoContext(ctx, "password mismatch", "user_id", identity.ID)
		return &IssueResult{Status: StatusFail}, nil
	}

	token, err := s.tokens.NewToken()
	if err != nil {
		return nil, s.unavailable(ctx, ErrorCode(err, CodeDependencyUnavailable), "token generation failed", err,
			"user_id", identity.ID)
	}

	expiresAt := s.now().Add(s.ttl)
	if err := s.sessions.Set(ctx, token, identity.ID, s.ttl); err != nil {
		return nil, s.unavailable(ctx, ErrorCode(err, CodeDependencyUnavailable), "session write failed", err,
			"user_id", identity.ID)
	}

	s.logger.DebugContext(ctx, "token issued", "user_id", identity.ID)
	return &IssueResult{
		Status: StatusSuccess,
		Session: Session{
			Token:     token,
			UserID:    identity.ID,
			ExpiresAt: expiresAt,
		},
	}, nil
}

// Authenticate resolves token to its user id, extending the session by the
// full TTL in the same cache operation.
func (s *Service) Authenticate(ctx context.Context, token string) (*AuthenticateResult, error) {
	if token == "" {
		return &AuthenticateResult{Status: StatusFail}, nil
	}

	userID, found, err := s.sessions.GetAndRefresh(ctx, token, s.ttl)
	if err != nil {
		return nil, s.unavailable(ctx, ErrorCode(err, CodeDependencyUnavailable), "session refresh failed", err)
	}
	if !found {
		return &AuthenticateResult{Status: StatusFail}, nil
	}

	return &AuthenticateResult{
		Status: StatusSuccess,
		Session: Session{
			Token:     token,
			UserID:    userID,
			ExpiresAt: s.now().Add(s.ttl),
		},
	}, nil
}

// verifyDummy spends the same argon2id work as a real verify.
func (s *Service) verifyDummy(password string) {
	_, _ = s.hasher.Verify(password, dummyPasswordHash) //nolint:errcheck // timing only
}

// unavailable logs cause with full detail and returns the opaque error for
// the caller. Only the classification code survives.
func (s *Service) unavailable(ctx context.Context, code, msg string, cause error, attrs ...any) error {
	errutil.LogError(ctx, s.logger, msg, cause, append([]any{"classification", code}, attrs...)...)
	return oops.Code(code).Wrap(ErrUnavailable)
}
