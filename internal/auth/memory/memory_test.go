// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/warden/internal/auth"
	"github.com/holomush/warden/internal/auth/memory"
)

func newUser(t *testing.T, email string) *auth.User {
	t.Helper()
	u, err := auth.NewUser(email, "digest", auth.RoleUser)
	require.NoError(t, err)
	return u
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("create rejects a duplicate email", func(t *testing.T) {
		repo := memory.NewStore().Users()
		require.NoError(t, repo.Create(ctx, newUser(t, "a@x.com")))

		err := repo.Create(ctx, newUser(t, "a@x.com"))
		assert.ErrorIs(t, err, auth.ErrDuplicate)
	})

	t.Run("emails are case-sensitive", func(t *testing.T) {
		repo := memory.NewStore().Users()
		require.NoError(t, repo.Create(ctx, newUser(t, "a@x.com")))
		require.NoError(t, repo.Create(ctx, newUser(t, "A@x.com")))

		_, err := repo.GetByEmail(ctx, "A@X.COM")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("returned users are copies", func(t *testing.T) {
		repo := memory.NewStore().Users()
		u := newUser(t, "a@x.com")
		require.NoError(t, repo.Create(ctx, u))

		got, err := repo.GetByID(ctx, u.ID)
		require.NoError(t, err)
		got.Email = "mutated@x.com"

		again, err := repo.GetByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, again.ID)
	})

	t.Run("update enforces email uniqueness against others only", func(t *testing.T) {
		repo := memory.NewStore().Users()
		a, b := newUser(t, "a@x.com"), newUser(t, "b@x.com")
		require.NoError(t, repo.Create(ctx, a))
		require.NoError(t, repo.Create(ctx, b))

		same := "a@x.com"
		_, err := repo.Update(ctx, a.ID, auth.UserChanges{Email: &same})
		assert.NoError(t, err)

		taken := "b@x.com"
		_, err = repo.Update(ctx, a.ID, auth.UserChanges{Email: &taken})
		assert.ErrorIs(t, err, auth.ErrDuplicate)
	})

	t.Run("delete cascades sessions", func(t *testing.T) {
		store := memory.NewStore()
		u := newUser(t, "a@x.com")
		require.NoError(t, store.Users().Create(ctx, u))
		s, err := auth.NewSession(u.ID, time.Now(), time.Hour)
		require.NoError(t, err)
		require.NoError(t, store.Sessions().Create(ctx, s))

		require.NoError(t, store.Users().Delete(ctx, u.ID))
		assert.Equal(t, 0, store.Sessions().Len())
	})

	t.Run("list pages by email and reports the total", func(t *testing.T) {
		repo := memory.NewStore().Users()
		actor := newUser(t, "m@x.com")
		require.NoError(t, repo.Create(ctx, actor))
		for _, e := range []string{"d@x.com", "b@x.com", "c@x.com", "a@x.com"} {
			require.NoError(t, repo.Create(ctx, newUser(t, e)))
		}

		users, total, err := repo.List(ctx, auth.ListUsersQuery{ExcludeID: actor.ID, Limit: 2, Offset: 2})
		require.NoError(t, err)
		assert.Equal(t, 4, total)
		require.Len(t, users, 2)
		assert.Equal(t, "c@x.com", users[0].Email)
		assert.Equal(t, "d@x.com", users[1].Email)

		users, _, err = repo.List(ctx, auth.ListUsersQuery{ExcludeID: actor.ID, Limit: 2, Offset: 10})
		require.NoError(t, err)
		assert.Empty(t, users)
	})
}

func TestSessionRepository(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("stores only the hash and joins the user", func(t *testing.T) {
		store := memory.NewStore()
		u := newUser(t, "a@x.com")
		require.NoError(t, store.Users().Create(ctx, u))
		s, err := auth.NewSession(u.ID, now, time.Hour)
		require.NoError(t, err)
		require.NoError(t, store.Sessions().Create(ctx, s))

		got, err := store.Sessions().GetByTokenHash(ctx, s.TokenHash)
		require.NoError(t, err)
		assert.Empty(t, got.ID)
		require.NotNil(t, got.User)
		assert.Equal(t, "a@x.com", got.User.Email)
	})

	t.Run("duplicate hash", func(t *testing.T) {
		repo := memory.NewStore().Sessions()
		s := &auth.Session{TokenHash: "h", ValidUntil: now}
		require.NoError(t, repo.Create(ctx, s))
		assert.ErrorIs(t, repo.Create(ctx, s), auth.ErrDuplicate)
	})

	t.Run("delete expired is strict", func(t *testing.T) {
		repo := memory.NewStore().Sessions()
		require.NoError(t, repo.Create(ctx, &auth.Session{TokenHash: "old", ValidUntil: now.Add(-time.Second)}))
		require.NoError(t, repo.Create(ctx, &auth.Session{TokenHash: "edge", ValidUntil: now}))
		require.NoError(t, repo.Create(ctx, &auth.Session{TokenHash: "new", ValidUntil: now.Add(time.Hour)}))

		n, err := repo.DeleteExpired(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		assert.Equal(t, 2, repo.Len())
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		repo := memory.NewStore().Sessions()
		require.NoError(t, repo.Create(ctx, &auth.Session{TokenHash: "h", ValidUntil: now}))
		require.NoError(t, repo.Delete(ctx, "h"))
		require.NoError(t, repo.Delete(ctx, "h"))

		_, err := repo.GetByTokenHash(ctx, "h")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}
