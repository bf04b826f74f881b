// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package memory provides in-process implementations of the auth
// repositories for development servers and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/warden/internal/auth"
)

// Store holds users and sessions behind one mutex so session lookups can
// join users the way the SQL store does.
type Store struct {
	mu       sync.Mutex
	users    map[ulid.ULID]*auth.User
	sessions map[string]*auth.Session
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		users:    make(map[ulid.ULID]*auth.User),
		sessions: make(map[string]*auth.Session),
	}
}

// Users returns the store's auth.UserRepository view.
func (s *Store) Users() *UserRepository {
	return &UserRepository{s: s}
}

// Sessions returns the store's auth.SessionRepository view.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{s: s}
}

// UserRepository implements auth.UserRepository in memory.
type UserRepository struct {
	s *Store
}

func (s *Store) emailOwner(email string) *auth.User {
	for _, u := range s.users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

// Create stores a new user.
func (r *UserRepository) Create(_ context.Context, user *auth.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[user.ID]; ok {
		return oops.Code("USER_CREATE_FAILED").With("id", user.ID.String()).Wrap(auth.ErrDuplicate)
	}
	if r.s.emailOwner(user.Email) != nil {
		return oops.Code("USER_CREATE_FAILED").With("field", "email").Wrap(auth.ErrDuplicate)
	}
	stored := *user
	r.s.users[user.ID] = &stored
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	out := *u
	return &out, nil
}

// GetByEmail retrieves a user by exact email.
func (r *UserRepository) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u := r.s.emailOwner(email)
	if u == nil {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	out := *u
	return &out, nil
}

// Update applies a partial update.
func (r *UserRepository) Update(_ context.Context, id ulid.ULID, changes auth.UserChanges) (*auth.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	if changes.Email != nil {
		if owner := r.s.emailOwner(*changes.Email); owner != nil && owner.ID != id {
			return nil, oops.Code("USER_UPDATE_FAILED").With("field", "email").Wrap(auth.ErrDuplicate)
		}
	}

	changes.Apply(u)
	u.UpdatedAt = time.Now().UTC()
	out := *u
	return &out, nil
}

// Delete removes a user and, like the SQL cascade, their sessions.
func (r *UserRepository) Delete(_ context.Context, id ulid.ULID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.users, id)
	for hash, sess := range r.s.sessions {
		if sess.UserID == id {
			delete(r.s.sessions, hash)
		}
	}
	return nil
}

// List returns one page of users ordered by email.
func (r *UserRepository) List(_ context.Context, q auth.ListUsersQuery) ([]*auth.User, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	all := make([]*auth.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		if u.ID == q.ExcludeID {
			continue
		}
		out := *u
		all = append(all, &out)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Email < all[j].Email })

	total := len(all)
	if q.Offset >= total {
		return []*auth.User{}, total, nil
	}
	end := total
	if q.Limit > 0 {
		end = min(q.Offset+q.Limit, total)
	}
	return all[q.Offset:end], total, nil
}

// SessionRepository implements auth.SessionRepository in memory.
type SessionRepository struct {
	s *Store
}

// Create stores a new session.
func (r *SessionRepository) Create(_ context.Context, session *auth.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.sessions[session.TokenHash]; ok {
		return oops.Code("SESSION_CREATE_FAILED").Wrap(auth.ErrDuplicate)
	}
	stored := *session
	stored.ID = ""
	stored.User = nil
	r.s.sessions[session.TokenHash] = &stored
	return nil
}

// GetByTokenHash retrieves a session with its user joined.
func (r *SessionRepository) GetByTokenHash(_ context.Context, tokenHash string) (*auth.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sess, ok := r.s.sessions[tokenHash]
	if !ok {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	out := *sess
	if u, ok := r.s.users[sess.UserID]; ok {
		user := *u
		out.User = &user
	}
	return &out, nil
}

// DeleteExpired removes sessions with ValidUntil before the given time.
func (r *SessionRepository) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for hash, sess := range r.s.sessions {
		if sess.ValidUntil.Before(before) {
			delete(r.s.sessions, hash)
			n++
		}
	}
	return n, nil
}

// Delete removes a session.
func (r *SessionRepository) Delete(_ context.Context, tokenHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.sessions, tokenHash)
	return nil
}

// Len returns the number of stored sessions.
func (r *SessionRepository) Len() int {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.sessions)
}

// Compile-time interface checks.
var (
	_ auth.UserRepository    = (*UserRepository)(nil)
	_ auth.SessionRepository = (*SessionRepository)(nil)
)
