// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package mocks provides testify mocks for the auth collaborator interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/holomush/authd/internal/auth"
)

// Compile-time interface checks.
var (
	_ auth.CredentialStore = (*MockCredentialStore)(nil)
	_ auth.SessionCache    = (*MockSessionCache)(nil)
	_ auth.PasswordHasher  = (*MockPasswordHasher)(nil)
	_ auth.TokenGenerator  = (*MockTokenGenerator)(nil)
)

// MockCredentialStore is a mock of auth.CredentialStore.
type MockCredentialStore struct {
	mock.Mock
}

// NewMockCredentialStore creates a mock that asserts its expectations on cleanup.
func NewMockCredentialStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockCredentialStore {
	m := &MockCredentialStore{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// GetByUsername provides a mock function.
func (m *MockCredentialStore) GetByUsername(ctx context.Context, username string) (*auth.UserIdentity, error) {
	args := m.Called(ctx, username)
	identity, _ := args.Get(0).(*auth.UserIdentity)
	return identity, args.Error(1)
}

// MockSessionCache is a mock of auth.SessionCache.
type MockSessionCache struct {
	mock.Mock
}

// NewMockSessionCache creates a mock that asserts its expectations on cleanup.
func NewMockSessionCache(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockSessionCache {
	m := &MockSessionCache{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Set provides a mock function.
func (m *MockSessionCache) Set(ctx context.Context, token string, userID uint64, ttl time.Duration) error {
	args := m.Called(ctx, token, userID, ttl)
	return args.Error(0)
}

// GetAndRefresh provides a mock function.
func (m *MockSessionCache) GetAndRefresh(ctx context.Context, token string, ttl time.Duration) (uint64, bool, error) {
	args := m.Called(ctx, token, ttl)
	userID, _ := args.Get(0).(uint64)
	return userID, args.Bool(1), args.Error(2)
}

// MockPasswordHasher is a mock of auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a mock that asserts its expectations on cleanup.
func NewMockPasswordHasher(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Hash provides a mock function.
func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

// Verify provides a mock function.
func (m *MockPasswordHasher) Verify(password, hash string) (bool, error) {
	args := m.Called(password, hash)
	return args.Bool(0), args.Error(1)
}

// MockTokenGenerator is a mock of auth.TokenGenerator.
type MockTokenGenerator struct {
	mock.Mock
}

// NewMockTokenGenerator creates a mock that asserts its expectations on cleanup.
func NewMockTokenGenerator(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockTokenGenerator {
	m := &MockTokenGenerator{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// NewToken provides a mock function.
func (m *MockTokenGenerator) NewToken() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}
