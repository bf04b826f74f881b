// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session id configuration.
const (
	SessionIDBytes         = 32             // 256 bits, 64 hex chars
	DefaultSessionValidity = 24 * time.Hour // re-authentication required after this
)

// Session is proof of an authenticated principal, valid until ValidUntil.
type Session struct {
	// ID is the opaque token carried in the cookie. Stores never see it;
	// it is only populated on creation and after a successful validation.
	ID         string
	TokenHash  string
	UserID     ulid.ULID
	ValidUntil time.Time
	CreatedAt  time.Time

	// User is the owning user joined on lookup. Nil when the user is gone.
	User *User
}

// NewSession creates a Session for userID with a fresh random id.
func NewSession(userID ulid.ULID, now time.Time, validity time.Duration) (*Session, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if validity <= 0 {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").Errorf("session validity must be positive")
	}

	id, hash, err := GenerateSessionID()
	if err != nil {
		return nil, err
	}

	return &Session{
		ID:         id,
		TokenHash:  hash,
		UserID:     userID,
		ValidUntil: now.Add(validity),
		CreatedAt:  now,
	}, nil
}

// IsValidAt reports whether the session is still valid at t.
// A session is expired from ValidUntil onwards.
func (s *Session) IsValidAt(t time.Time) bool {
	return t.Before(s.ValidUntil)
}

// GenerateSessionID creates a random session id and its hash.
// The id goes to the client; the hash is what stores persist.
func GenerateSessionID() (id, hash string, err error) {
	b := make([]byte, SessionIDBytes)
	if _, err = rand.Read(b); err != nil {
		return "", "", oops.Code("SESSION_ID_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionIDBytes).
			Wrap(err)
	}

	id = hex.EncodeToString(b)
	return id, HashSessionID(id), nil
}

// HashSessionID computes the SHA256 hash under which a session is stored.
func HashSessionID(id string) string {
	h := sha256.Sum256([]byte(id))
	return hex.EncodeToString(h[:])
}

// SessionRepository manages session persistence. Sessions are keyed by the
// hash of their id.
type SessionRepository interface {
	// Create stores a new session. Returns ErrDuplicate on a key collision.
	Create(ctx context.Context, session *Session) error

	// GetByTokenHash retrieves a session with its owning user joined.
	// Returns ErrNotFound if absent.
	GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error)

	// DeleteExpired removes all sessions with ValidUntil before the given
	// time and returns the number removed.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)

	// Delete removes a session. Deleting an absent session is not an error.
	Delete(ctx context.Context, tokenHash string) error
}
