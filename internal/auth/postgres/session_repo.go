// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/warden/internal/auth"
	"github.com/holomush/warden/internal/store"
)

// SessionRepository implements auth.SessionRepository using PostgreSQL.
type SessionRepository struct {
	db store.DBTX
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db store.DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create stores a new session under its token hash.
func (r *SessionRepository) Create(ctx context.Context, session *auth.Session) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO sessions (token_hash, user_id, valid_until, created_at)
		VALUES ($1, $2, $3, $4)
	`,
		session.TokenHash,
		session.UserID.String(),
		session.ValidUntil,
		session.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("SESSION_CREATE_FAILED").Wrap(auth.ErrDuplicate)
		}
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert session").
			With("user_id", session.UserID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a session joined with its user. User is nil
// when the owning row no longer exists.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.Session, error) {
	row := r.db.QueryRow(ctx, `
		SELECT s.token_hash, s.user_id, s.valid_until, s.created_at,
		       u.id, u.email, u.password_hash, u.role, u.first_name, u.last_name,
		       u.avatar_url, u.is_approved, u.created_at, u.updated_at
		FROM sessions s
		LEFT JOIN users u ON u.id = s.user_id
		WHERE s.token_hash = $1
	`, tokenHash)

	var (
		s         auth.Session
		userIDStr string
		joined    struct {
			id, email, hash, role *string
			approved              *bool
			created, updated      *time.Time
		}
		u auth.User
	)
	err := row.Scan(
		&s.TokenHash, &userIDStr, &s.ValidUntil, &s.CreatedAt,
		&joined.id, &joined.email, &joined.hash, &joined.role,
		&u.FirstName, &u.LastName, &u.AvatarURL,
		&joined.approved, &joined.created, &joined.updated,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	s.UserID, err = ulid.Parse(userIDStr)
	if err != nil {
		return nil, oops.Code("SESSION_CORRUPT_USER_ID").With("user_id", userIDStr).Wrap(err)
	}

	if joined.id != nil {
		u.ID = s.UserID
		u.Email = deref(joined.email)
		u.PasswordHash = deref(joined.hash)
		u.Role = auth.Role(deref(joined.role))
		u.IsApproved = joined.approved != nil && *joined.approved
		if joined.created != nil {
			u.CreatedAt = *joined.created
		}
		if joined.updated != nil {
			u.UpdatedAt = *joined.updated
		}
		s.User = &u
	}
	return &s, nil
}

// DeleteExpired removes sessions whose validity ended before the given time.
func (r *SessionRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE valid_until < $1`, before)
	if err != nil {
		return 0, oops.Code("SESSION_SWEEP_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	return tag.RowsAffected(), nil
}

// Delete removes a session. Absent sessions are not an error.
func (r *SessionRepository) Delete(ctx context.Context, tokenHash string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash); err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var _ auth.SessionRepository = (*SessionRepository)(nil)
