// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package mocks provides testify mocks for the auth interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/holomush/warden/internal/auth"
)

// testingT is the subset of *testing.T the constructors need.
type testingT interface {
	mock.TestingT
	Cleanup(func())
}

// MockUserRepository is a mock of auth.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

// NewMockUserRepository creates a mock that asserts its expectations on cleanup.
func NewMockUserRepository(t testingT) *MockUserRepository {
	m := &MockUserRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockUserRepository) Create(ctx context.Context, user *auth.User) error {
	ret := m.Called(ctx, user)
	return ret.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	ret := m.Called(ctx, id)
	return userOrNil(ret.Get(0)), ret.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	ret := m.Called(ctx, email)
	return userOrNil(ret.Get(0)), ret.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, id ulid.ULID, changes auth.UserChanges) (*auth.User, error) {
	ret := m.Called(ctx, id, changes)
	return userOrNil(ret.Get(0)), ret.Error(1)
}

func (m *MockUserRepository) Delete(ctx context.Context, id ulid.ULID) error {
	ret := m.Called(ctx, id)
	return ret.Error(0)
}

func (m *MockUserRepository) List(ctx context.Context, query auth.ListUsersQuery) ([]*auth.User, int, error) {
	ret := m.Called(ctx, query)
	var users []*auth.User
	if v := ret.Get(0); v != nil {
		users = v.([]*auth.User)
	}
	return users, ret.Int(1), ret.Error(2)
}

func userOrNil(v any) *auth.User {
	if v == nil {
		return nil
	}
	return v.(*auth.User)
}

// MockSessionRepository is a mock of auth.SessionRepository.
type MockSessionRepository struct {
	mock.Mock
}

// NewMockSessionRepository creates a mock that asserts its expectations on cleanup.
func NewMockSessionRepository(t testingT) *MockSessionRepository {
	m := &MockSessionRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockSessionRepository) Create(ctx context.Context, session *auth.Session) error {
	ret := m.Called(ctx, session)
	return ret.Error(0)
}

func (m *MockSessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.Session, error) {
	ret := m.Called(ctx, tokenHash)
	var s *auth.Session
	if v := ret.Get(0); v != nil {
		s = v.(*auth.Session)
	}
	return s, ret.Error(1)
}

func (m *MockSessionRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	ret := m.Called(ctx, before)
	return ret.Get(0).(int64), ret.Error(1)
}

func (m *MockSessionRepository) Delete(ctx context.Context, tokenHash string) error {
	ret := m.Called(ctx, tokenHash)
	return ret.Error(0)
}

// MockPasswordHasher is a mock of auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a mock that asserts its expectations on cleanup.
func NewMockPasswordHasher(t testingT) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPasswordHasher) Hash(password string) (string, error) {
	ret := m.Called(password)
	return ret.String(0), ret.Error(1)
}

func (m *MockPasswordHasher) Verify(password, digest string) (bool, error) {
	ret := m.Called(password, digest)
	return ret.Bool(0), ret.Error(1)
}

func (m *MockPasswordHasher) NeedsUpgrade(digest string) bool {
	ret := m.Called(digest)
	return ret.Bool(0)
}

// MockCookieCodec is a mock of auth.CookieCodec.
type MockCookieCodec struct {
	mock.Mock
}

// NewMockCookieCodec creates a mock that asserts its expectations on cleanup.
func NewMockCookieCodec(t testingT) *MockCookieCodec {
	m := &MockCookieCodec{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockCookieCodec) Encode(sessionID string) (string, error) {
	ret := m.Called(sessionID)
	return ret.String(0), ret.Error(1)
}

func (m *MockCookieCodec) Decode(value string) (string, error) {
	ret := m.Called(value)
	return ret.String(0), ret.Error(1)
}

var (
	_ auth.UserRepository    = (*MockUserRepository)(nil)
	_ auth.SessionRepository = (*MockSessionRepository)(nil)
	_ auth.PasswordHasher    = (*MockPasswordHasher)(nil)
	_ auth.CookieCodec       = (*MockCookieCodec)(nil)
)
