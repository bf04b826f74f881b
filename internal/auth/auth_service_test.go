// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/holomush/warden/internal/auth"
	"github.com/holomush/warden/internal/auth/mocks"
	"github.com/holomush/warden/pkg/errutil"
)

const dummyDigest = "dummy-digest"

type serviceFixture struct {
	users    *mocks.MockUserRepository
	sessions *mocks.MockSessionRepository
	hasher   *mocks.MockPasswordHasher
	recorder *countingRecorder
	svc      *auth.Service
}

func newServiceFixture(t *testing.T, score int) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		users:    mocks.NewMockUserRepository(t),
		sessions: mocks.NewMockSessionRepository(t),
		hasher:   mocks.NewMockPasswordHasher(t),
		recorder: newCountingRecorder(),
	}
	f.hasher.On("Hash", "warden-timing-equalization").Return(dummyDigest, nil).Once()

	opts := []auth.Option{auth.WithClock(newTestClock(t0).Now), auth.WithRecorder(f.recorder)}
	manager, err := auth.NewSessionManager(f.sessions, auth.SessionConfig{Validity: 24 * time.Hour}, opts...)
	require.NoError(t, err)

	f.svc, err = auth.NewAuthService(f.users, manager, f.hasher, fixedScore(score), prefixCodec{}, opts...)
	require.NoError(t, err)
	return f
}

func approvedUser() *auth.User {
	return &auth.User{
		ID:           ulid.Make(),
		Email:        "a@x.com",
		PasswordHash: "stored-digest",
		Role:         auth.RoleUser,
		IsApproved:   true,
	}
}

func TestNewAuthService_NilDependencies(t *testing.T) {
	manager, err := auth.NewSessionManager(mocks.NewMockSessionRepository(t), auth.SessionConfig{})
	require.NoError(t, err)

	tests := []struct {
		name        string
		users       auth.UserRepository
		sessions    *auth.SessionManager
		hasher      auth.PasswordHasher
		strength    auth.StrengthEvaluator
		codec       auth.CookieCodec
		expectError string
	}{
		{"nil users repository", nil, manager, mocks.NewMockPasswordHasher(t), fixedScore(4), prefixCodec{}, "users repository is required"},
		{"nil session manager", mocks.NewMockUserRepository(t), nil, mocks.NewMockPasswordHasher(t), fixedScore(4), prefixCodec{}, "session manager is required"},
		{"nil password hasher", mocks.NewMockUserRepository(t), manager, nil, fixedScore(4), prefixCodec{}, "password hasher is required"},
		{"nil strength evaluator", mocks.NewMockUserRepository(t), manager, mocks.NewMockPasswordHasher(t), nil, prefixCodec{}, "strength evaluator is required"},
		{"nil cookie codec", mocks.NewMockUserRepository(t), manager, mocks.NewMockPasswordHasher(t), fixedScore(4), nil, "cookie codec is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := auth.NewAuthService(tt.users, tt.sessions, tt.hasher, tt.strength, tt.codec)
			require.Error(t, err)
			assert.Nil(t, svc)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}

	t.Run("dummy digest failure", func(t *testing.T) {
		hasher := mocks.NewMockPasswordHasher(t)
		hasher.On("Hash", mock.Anything).Return("", errors.New("boom"))

		_, err := auth.NewAuthService(mocks.NewMockUserRepository(t), manager, hasher, fixedScore(4), prefixCodec{})
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_CONFIG")
	})
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("weak password is rejected before any lookup", func(t *testing.T) {
		f := newServiceFixture(t, 2)

		u, err := f.svc.Register(ctx, "a@x.com", "password")
		assert.Nil(t, u)
		assert.ErrorIs(t, err, auth.ErrWeakCredential)
		errutil.AssertErrorCode(t, err, "AUTH_WEAK_PASSWORD")
	})

	t.Run("over-long password is rejected before any lookup", func(t *testing.T) {
		f := newServiceFixture(t, 4)

		long := strings.Repeat("correct-horse ", 6)
		_, err := f.svc.Register(ctx, "a@x.com", long)
		errutil.AssertSentinel(t, err, auth.ErrInvalidPassword, "AUTH_PASSWORD_TOO_LONG")
		f.users.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
		f.hasher.AssertNotCalled(t, "Hash", long)
	})

	t.Run("existing email conflicts without creating", func(t *testing.T) {
		f := newServiceFixture(t, 4)
		f.users.On("GetByEmail", ctx, "a@x.com").Return(approvedUser(), nil)

		_, err := f.svc.Register(ctx, "a@x.com", "correct-horse-battery")
		assert.ErrorIs(t, err, auth.ErrConflict)
		f.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("creates unapproved USER", func(t *testing.T) {
		f := newServiceFixture(t, 4)
		f.users.On("GetByEmail", ctx, "a@x.com").Return(nil, auth.ErrNotFound)
		f.hasher.On("Hash", "correct-horse-battery").Return("new-digest", nil)
		f.users.On("Create", ctx, mock.MatchedBy(func(u *auth.User) bool {
			return u.Email == "a@x.com" && u.PasswordHash == "new-digest" &&
				u.Role == auth.RoleUser && !u.IsApproved
		})).Return(nil)

		u, err := f.svc.Register(ctx, "a@x.com", "correct-horse-battery")
		require.NoError(t, err)
		assert.Equal(t, "a@x.com", u.Email)
	})

	t.Run("lost uniqueness race maps to conflict", func(t *testing.T) {
		f := newServiceFixture(t, 4)
		f.users.On("GetByEmail", ctx, "a@x.com").Return(nil, auth.ErrNotFound)
		f.hasher.On("Hash", "correct-horse-battery").Return("new-digest", nil)
		f.users.On("Create", ctx, mock.Anything).Return(auth.ErrDuplicate)

		_, err := f.svc.Register(ctx, "a@x.com", "correct-horse-battery")
		assert.ErrorIs(t, err, auth.ErrConflict)
	})

	t.Run("store failure", func(t *testing.T) {
		f := newServiceFixture(t, 4)
		f.users.On("GetByEmail", ctx, "a@x.com").Return(nil, errors.New("down"))

		_, err := f.svc.Register(ctx, "a@x.com", "correct-horse-battery")
		assert.ErrorIs(t, err, auth.ErrStoreUnavailable)
	})
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown email and wrong password are indistinguishable", func(t *testing.T) {
		f := newServiceFixture(t, 4)
		user := approvedUser()

		f.users.On("GetByEmail", ctx, "ghost@x.com").Return(nil, auth.ErrNotFound)
		f.hasher.On("Verify", "pw", dummyDigest).Return(false, nil).Once()
		f.users.On("GetByEmail", ctx, user.Email).Return(user, nil)
		f.hasher.On("Verify", "pw", user.PasswordHash).Return(false, nil).Once()

		_, unknownErr := f.svc.Login(ctx, "ghost@x.com", "pw")
		_, wrongErr := f.svc.Login(ctx, user.Email, "pw")

		require.Error(t, unknownErr)
		require.Error(t, wrongErr)
		assert.ErrorIs(t, unknownErr, auth.ErrInvalidCredentials)
		assert.ErrorIs(t, wrongErr, auth.ErrInvalidCredentials)
		assert.Equal(t, unknownErr.Error(), wrongErr.Error())
		errutil.AssertErrorCode(t, unknownErr, "AUTH_INVALID_CREDENTIALS")
		errutil.AssertErrorCode(t, wrongErr, "AUTH_INVALID_CREDENTIALS")
		assert.Equal(t, 2, f.recorder.logins[auth.LoginRejected])
	})

	t.Run("unapproved account creates no session", func(t *testing.T) {
		f := newServiceFixture(t, 4)
		user := approvedUser()
		user.IsApproved = false

		f.users.On("GetByEmail", ctx, user.Email).Return(user, nil)
		f.hasher.On("Verify", "pw", user.PasswordHash).Return(true, nil)

		s, err := f.svc.Login(ctx, user.Email, "pw")
		assert.Nil(t, s)
		assert.ErrorIs(t, err, auth.ErrUnapproved)
		f.sessions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		assert.Equal(t, 1, f.recorder.logins[auth.LoginUnapproved])
	})

	t.Run("success returns session with user", func(t *testing.T) {
		f := newServiceFixture(t, 4)
		user := approvedUser()

		f.users.On("GetByEmail", ctx, user.Email).Return(user, nil)
		f.hasher.On("Verify", "pw", user.PasswordHash).Return(true, nil)
		f.hasher.On("NeedsUpgrade", user.PasswordHash).Return(false)
		f.sessions.On("Create", ctx, mock.AnythingOfType("*auth.Session")).Return(nil)

		s, err := f.svc.Login(ctx, user.Email, "pw")
		require.NoError(t, err)
		assert.Equal(t, user.ID, s.UserID)
		assert.Equal(t, user, s.User)
		assert.Equal(t, t0.Add(24*time.Hour), s.ValidUntil)
		assert.Equal(t, 1, f.recorder.logins[auth.LoginSucceeded])
	})

	t.Run("outdated digest is upgraded", func(t *testing.T) {
		f := newServiceFixture(t, 4)
		user := approvedUser()

		f.users.On("GetByEmail", ctx, user.Email).Return(user, nil)
		f.hasher.On("Verify", "pw", "stored-digest").Return(true, nil)
		f.hasher.On("NeedsUpgrade", "stored-digest").Return(true)
		f.hasher.On("Hash", "pw").Return("upgraded-digest", nil)
		f.users.On("Update", ctx, user.ID, mock.MatchedBy(func(c auth.UserChanges) bool {
			return c.PasswordHash != nil && *c.PasswordHash == "upgraded-digest" && c.Email == nil
		})).Return(user, nil)
		f.sessions.On("Create", ctx, mock.Anything).Return(nil)

		s, err := f.svc.Login(ctx, user.Email, "pw")
		require.NoError(t, err)
		assert.Equal(t, "upgraded-digest", s.User.PasswordHash)
	})

	t.Run("upgrade failure does not fail login", func(t *testing.T) {
		f := newServiceFixture(t, 4)
		user := approvedUser()

		f.users.On("GetByEmail", ctx, user.Email).Return(user, nil)
		f.hasher.On("Verify", "pw", "stored-digest").Return(true, nil)
		f.hasher.On("NeedsUpgrade", "stored-digest").Return(true)
		f.hasher.On("Hash", "pw").Return("upgraded-digest", nil)
		f.users.On("Update", ctx, user.ID, mock.Anything).Return(nil, errors.New("down"))
		f.sessions.On("Create", ctx, mock.Anything).Return(nil)

		s, err := f.svc.Login(ctx, user.Email, "pw")
		require.NoError(t, err)
		assert.Equal(t, "stored-digest", s.User.PasswordHash)
	})

	t.Run("store failure on lookup", func(t *testing.T) {
		f := newServiceFixture(t, 4)
		f.users.On("GetByEmail", ctx, "a@x.com").Return(nil, errors.New("down"))

		_, err := f.svc.Login(ctx, "a@x.com", "pw")
		assert.ErrorIs(t, err, auth.ErrStoreUnavailable)
		assert.NotErrorIs(t, err, auth.ErrInvalidCredentials)
		assert.Equal(t, 1, f.recorder.logins[auth.LoginStoreFailed])
	})
}

func TestService_ValidateRequest(t *testing.T) {
	ctx := context.Background()
	user := approvedUser()
	id := "0123456789abcdef"
	hash := auth.HashSessionID(id)

	t.Run("no cookie is anonymous", func(t *testing.T) {
		f := newServiceFixture(t, 4)

		a, err := f.svc.ValidateRequest(ctx, "")
		require.NoError(t, err)
		assert.False(t, a.Authenticated())
		assert.False(t, a.ClearCookie)
	})

	t.Run("forged cookie is cleared", func(t *testing.T) {
		f := newServiceFixture(t, 4)

		a, err := f.svc.ValidateRequest(ctx, "forged")
		require.NoError(t, err)
		assert.False(t, a.Authenticated())
		assert.True(t, a.ClearCookie)
	})

	t.Run("unknown session is cleared", func(t *testing.T) {
		f := newServiceFixture(t, 4)
		f.sessions.On("DeleteExpired", ctx, t0).Return(int64(0), nil)
		f.sessions.On("GetByTokenHash", ctx, hash).Return(nil, auth.ErrNotFound)

		a, err := f.svc.ValidateRequest(ctx, codecPrefix+id)
		require.NoError(t, err)
		assert.False(t, a.Authenticated())
		assert.True(t, a.ClearCookie)
	})

	t.Run("valid session yields principal with scopes", func(t *testing.T) {
		f := newServiceFixture(t, 4)
		f.sessions.On("DeleteExpired", ctx, t0).Return(int64(0), nil)
		f.sessions.On("GetByTokenHash", ctx, hash).Return(&auth.Session{
			TokenHash: hash, UserID: user.ID, ValidUntil: t0.Add(time.Hour), User: user,
		}, nil)

		a, err := f.svc.ValidateRequest(ctx, codecPrefix+id)
		require.NoError(t, err)
		require.True(t, a.Authenticated())
		assert.Equal(t, user.ID, a.Principal.UserID())
		assert.True(t, a.Principal.Scopes.Has(auth.ScopeUser))
		assert.True(t, a.Principal.Scopes.Has("USER"))
		assert.True(t, a.Principal.Scopes.Has(auth.UserScope(user.ID)))
	})

	t.Run("store failure is surfaced", func(t *testing.T) {
		f := newServiceFixture(t, 4)
		f.sessions.On("DeleteExpired", ctx, t0).Return(int64(0), nil)
		f.sessions.On("GetByTokenHash", ctx, hash).Return(nil, errors.New("down"))

		_, err := f.svc.ValidateRequest(ctx, codecPrefix+id)
		assert.ErrorIs(t, err, auth.ErrStoreUnavailable)
	})
}

func TestService_LogoutAndCookie(t *testing.T) {
	ctx := context.Background()

	t.Run("issue cookie encodes the session id", func(t *testing.T) {
		f := newServiceFixture(t, 4)
		v, err := f.svc.IssueCookie(&auth.Session{ID: "abc"})
		require.NoError(t, err)
		assert.Equal(t, codecPrefix+"abc", v)
	})

	t.Run("logout revokes the session", func(t *testing.T) {
		f := newServiceFixture(t, 4)
		f.sessions.On("Delete", ctx, auth.HashSessionID("abc")).Return(nil).Once()

		assert.NoError(t, f.svc.Logout(ctx, codecPrefix+"abc"))
	})

	t.Run("logout without a usable cookie does nothing", func(t *testing.T) {
		f := newServiceFixture(t, 4)

		assert.NoError(t, f.svc.Logout(ctx, ""))
		assert.NoError(t, f.svc.Logout(ctx, "garbage"))
	})
}
