// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Defaults for SessionConfig.
const (
	DefaultCreateRetries = 3
	createRetryDelay     = 5 * time.Millisecond
)

// SessionConfig configures a SessionManager.
type SessionConfig struct {
	// Validity is how long a session lives after creation.
	Validity time.Duration
	// CreateRetries bounds id regeneration after a key collision.
	CreateRetries int
}

// SessionManager owns session creation, validation and revocation.
type SessionManager struct {
	sessions SessionRepository
	validity time.Duration
	retries  uint64
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
}

// NewSessionManager creates a SessionManager. Zero config values select the defaults.
func NewSessionManager(sessions SessionRepository, cfg SessionConfig, opts ...Option) (*SessionManager, error) {
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("sessions repository is required")
	}
	if cfg.Validity < 0 {
		return nil, oops.Code("AUTH_INVALID_CONFIG").With("validity", cfg.Validity).Errorf("session validity must be positive")
	}
	if cfg.Validity == 0 {
		cfg.Validity = DefaultSessionValidity
	}
	if cfg.CreateRetries <= 0 {
		cfg.CreateRetries = DefaultCreateRetries
	}

	o := buildOptions(opts)
	return &SessionManager{
		sessions: sessions,
		validity: cfg.Validity,
		retries:  uint64(cfg.CreateRetries),
		logger:   o.logger,
		recorder: o.recorder,
		now:      o.now,
	}, nil
}

// Validity returns the configured session lifetime.
func (m *SessionManager) Validity() time.Duration {
	return m.validity
}

// Create persists a new session for userID. A key collision regenerates the
// id, up to the configured number of retries.
func (m *SessionManager) Create(ctx context.Context, userID ulid.ULID) (*Session, error) {
	var session *Session

	backoff := retry.WithMaxRetries(m.retries, retry.NewConstant(createRetryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		s, err := NewSession(userID, m.now(), m.validity)
		if err != nil {
			return err
		}
		if err := m.sessions.Create(ctx, s); err != nil {
			if errors.Is(err, ErrDuplicate) {
				m.logger.WarnContext(ctx, "session id collision, regenerating", "user_id", userID.String())
				return retry.RetryableError(err)
			}
			return storeError("create session", err)
		}
		session = s
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, oops.Code("SESSION_CREATE_EXHAUSTED").
				With("user_id", userID.String()).
				With("retries", m.retries).
				Wrap(err)
		}
		return nil, err
	}

	m.recorder.SessionCreated()
	return session, nil
}

// Validate returns the session for id if it is valid now. Expired sessions
// are swept before the lookup so a session crossing its expiry during the
// call is never accepted. Invalid ids return ErrUnauthenticated; the caller
// should clear the client's cookie.
func (m *SessionManager) Validate(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, m.invalid(ctx, "empty id")
	}

	now := m.now()
	m.sweep(ctx, now)

	hash := HashSessionID(id)
	session, err := m.sessions.GetByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, m.invalid(ctx, "not found")
		}
		m.recorder.SessionValidated(ValidationError)
		return nil, storeError("get session", err)
	}

	if !session.IsValidAt(now) {
		// Lost the race with the sweep; treat as absent.
		if err := m.sessions.Delete(ctx, hash); err != nil {
			m.logger.WarnContext(ctx, "failed to delete stale session", "error", err)
		}
		return nil, m.invalid(ctx, "expired")
	}

	if session.User == nil {
		return nil, m.invalid(ctx, "user missing")
	}

	session.ID = id
	m.recorder.SessionValidated(ValidationValid)
	return session, nil
}

// Revoke deletes the session for id. Revoking an absent session is not an error.
func (m *SessionManager) Revoke(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := m.sessions.Delete(ctx, HashSessionID(id)); err != nil {
		return storeError("delete session", err)
	}
	return nil
}

// Sweep removes every session expired at the current time.
func (m *SessionManager) Sweep(ctx context.Context) (int64, error) {
	n, err := m.sessions.DeleteExpired(ctx, m.now())
	if err != nil {
		return 0, storeError("delete expired sessions", err)
	}
	if n > 0 {
		m.recorder.SessionsSwept(n)
	}
	return n, nil
}

// sweep is the best-effort sweep on the validation path; failures are logged only.
func (m *SessionManager) sweep(ctx context.Context, now time.Time) {
	n, err := m.sessions.DeleteExpired(ctx, now)
	if err != nil {
		m.logger.WarnContext(ctx, "expired session sweep failed", "error", err)
		return
	}
	if n > 0 {
		m.recorder.SessionsSwept(n)
		m.logger.DebugContext(ctx, "swept expired sessions", "count", n)
	}
}

func (m *SessionManager) invalid(ctx context.Context, reason string) error {
	m.recorder.SessionValidated(ValidationInvalid)
	m.logger.DebugContext(ctx, "session invalid", "reason", reason)
	return oops.Code("SESSION_INVALID").With("reason", reason).Wrap(ErrUnauthenticated)
}
