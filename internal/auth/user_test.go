// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/warden/internal/auth"
	"github.com/holomush/warden/pkg/errutil"
)

func TestParseRole(t *testing.T) {
	r, err := auth.ParseRole("ADMIN")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, r)

	_, err = auth.ParseRole("admin")
	errutil.AssertErrorCode(t, err, "AUTH_INVALID_ROLE")
}

func TestNewUser(t *testing.T) {
	t.Run("valid user is unapproved", func(t *testing.T) {
		u, err := auth.NewUser("A@x.com", "digest", auth.RoleUser)
		require.NoError(t, err)
		assert.Equal(t, "A@x.com", u.Email, "email is stored verbatim")
		assert.False(t, u.IsApproved)
		assert.False(t, u.CreatedAt.IsZero())
	})

	tests := []struct {
		name  string
		email string
		hash  string
		role  auth.Role
		code  string
	}{
		{"empty email", "", "digest", auth.RoleUser, "AUTH_INVALID_EMAIL"},
		{"empty hash", "a@x.com", "", auth.RoleUser, "AUTH_INVALID_HASH"},
		{"unknown role", "a@x.com", "digest", auth.Role("ROOT"), "AUTH_INVALID_ROLE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.NewUser(tt.email, tt.hash, tt.role)
			errutil.AssertErrorCode(t, err, tt.code)
		})
	}
}

func TestUserChanges(t *testing.T) {
	assert.True(t, auth.UserChanges{}.IsEmpty())

	name := "Ann"
	email := "b@x.com"
	u := &auth.User{Email: "a@x.com", LastName: &name}
	changes := auth.UserChanges{
		Email:     &email,
		FirstName: auth.NullableOf(&name),
		LastName:  auth.NullableOf(nil),
	}
	assert.False(t, changes.IsEmpty())

	changes.Apply(u)
	assert.Equal(t, "b@x.com", u.Email)
	require.NotNil(t, u.FirstName)
	assert.Equal(t, "Ann", *u.FirstName)
	assert.Nil(t, u.LastName, "explicit null clears the field")
	assert.Nil(t, u.AvatarURL, "unset field untouched")
}
