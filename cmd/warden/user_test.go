// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/warden/internal/auth"
	"github.com/holomush/warden/internal/auth/memory"
	"github.com/holomush/warden/pkg/errutil"
)

const cliPassword = "Tr0ub4dor&3-horse-staple-battery"

func usersEnv(t *testing.T) (*memory.Store, *Deps) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://env/warden")
	t.Setenv("WARDEN_HASH__COST", "4")
	s := memory.NewStore()
	return s, &Deps{OpenBackend: memoryBackend(s)}
}

func TestUserCreate(t *testing.T) {
	t.Run("reads the password from stdin", func(t *testing.T) {
		s, deps := usersEnv(t)

		out, err := execute(t, deps, cliPassword+"\n",
			"user", "create", "root@x.com", "--role", "admin", "--approved", "--first-name", "Ro")

		require.NoError(t, err)
		assert.Contains(t, out, "Created ADMIN user root@x.com")
		u, err := s.Users().GetByEmail(context.Background(), "root@x.com")
		require.NoError(t, err)
		assert.Equal(t, auth.RoleAdmin, u.Role)
		assert.True(t, u.IsApproved)
		require.NotNil(t, u.FirstName)
		assert.Equal(t, "Ro", *u.FirstName)
		assert.Nil(t, u.LastName)
	})

	t.Run("password flag", func(t *testing.T) {
		s, deps := usersEnv(t)

		_, err := execute(t, deps, "", "user", "create", "a@x.com", "--password", cliPassword)

		require.NoError(t, err)
		u, err := s.Users().GetByEmail(context.Background(), "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, auth.RoleUser, u.Role)
		assert.False(t, u.IsApproved)
	})

	t.Run("missing password", func(t *testing.T) {
		_, deps := usersEnv(t)

		_, err := execute(t, deps, "", "user", "create", "a@x.com")

		errutil.AssertErrorCode(t, err, "CLI_PASSWORD_REQUIRED")
	})

	t.Run("weak password", func(t *testing.T) {
		_, deps := usersEnv(t)

		_, err := execute(t, deps, "password\n", "user", "create", "a@x.com")

		assert.ErrorIs(t, err, auth.ErrWeakCredential)
	})

	t.Run("unknown role", func(t *testing.T) {
		_, deps := usersEnv(t)

		_, err := execute(t, deps, cliPassword+"\n", "user", "create", "a@x.com", "--role", "root")

		errutil.AssertErrorCode(t, err, "AUTH_INVALID_ROLE")
	})

	t.Run("memory store is refused", func(t *testing.T) {
		_, deps := usersEnv(t)
		t.Setenv("WARDEN_STORE__DRIVER", "memory")

		_, err := execute(t, deps, cliPassword+"\n", "user", "create", "a@x.com")

		errutil.AssertErrorCode(t, err, "CLI_MEMORY_STORE")
	})
}

func TestUserApprove(t *testing.T) {
	s, deps := usersEnv(t)
	_, err := execute(t, deps, cliPassword+"\n", "user", "create", "a@x.com")
	require.NoError(t, err)

	out, err := execute(t, deps, "", "user", "approve", "a@x.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Approved a@x.com")
	u, err := s.Users().GetByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.True(t, u.IsApproved)

	out, err = execute(t, deps, "", "user", "approve", "a@x.com", "--revoke")
	require.NoError(t, err)
	assert.Contains(t, out, "Revoked approval of a@x.com")

	_, err = execute(t, deps, "", "user", "approve", "nobody@x.com")
	assert.ErrorIs(t, err, auth.ErrNotFound)
}
