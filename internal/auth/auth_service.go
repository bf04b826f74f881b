// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
)

// CookieCodec protects the session id carried in the client cookie.
type CookieCodec interface {
	// Encode returns the opaque cookie value for sessionID.
	Encode(sessionID string) (string, error)

	// Decode returns the session id in value, or an error when the value is
	// forged, corrupted or expired.
	Decode(value string) (string, error)
}

// Authentication is the outcome of validating a request. Principal is nil
// for unauthenticated requests.
type Authentication struct {
	Principal *Principal

	// ClearCookie is set when the request carried a cookie that no longer
	// maps to a valid session.
	ClearCookie bool
}

// Authenticated reports whether the request has a valid session.
func (a Authentication) Authenticated() bool {
	return a.Principal != nil
}

// Service provides registration, login and request authentication.
type Service struct {
	users    UserRepository
	sessions *SessionManager
	hasher   PasswordHasher
	strength StrengthEvaluator
	codec    CookieCodec
	gate     *Gate
	logger   *slog.Logger
	recorder Recorder

	// dummyDigest is verified against when the email is unknown so both
	// failure paths cost one hash comparison.
	dummyDigest string
}

// NewAuthService creates a new Service.
func NewAuthService(
	users UserRepository,
	sessions *SessionManager,
	hasher PasswordHasher,
	strength StrengthEvaluator,
	codec CookieCodec,
	opts ...Option,
) (*Service, error) {
	switch {
	case users == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("users repository is required")
	case sessions == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("session manager is required")
	case hasher == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	case strength == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("strength evaluator is required")
	case codec == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("cookie codec is required")
	}

	dummy, err := hasher.Hash("warden-timing-equalization")
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").With("operation", "hash dummy password").Wrap(err)
	}

	o := buildOptions(opts)
	return &Service{
		users:       users,
		sessions:    sessions,
		hasher:      hasher,
		strength:    strength,
		codec:       codec,
		gate:        NewGate(o.logger, o.recorder),
		logger:      o.logger,
		recorder:    o.recorder,
		dummyDigest: dummy,
	}, nil
}

// Register creates an unapproved USER account.
// The user is never created before the uniqueness check passes; the store's
// unique constraint remains the final authority.
func (s *Service) Register(ctx context.Context, email, password string) (*User, error) {
	if err := checkCredential(s.strength, password, email); err != nil {
		return nil, err
	}

	if err := s.ensureEmailFree(ctx, email, nil); err != nil {
		return nil, err
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "hash password").Wrap(err)
	}

	user, err := NewUser(email, digest, RoleUser)
	if err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, emailTaken()
		}
		return nil, storeError("create user", err)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID.String())
	return user, nil
}

// Login authenticates email/password and creates a session.
// Unknown email and wrong password return the same error.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, lookupErr := s.users.GetByEmail(ctx, email)

	var digest string
	switch {
	case lookupErr == nil:
		digest = user.PasswordHash
	case errors.Is(lookupErr, ErrNotFound):
		digest = s.dummyDigest
	default:
		s.recorder.LoginAttempt(LoginStoreFailed)
		return nil, storeError("get user by email", lookupErr)
	}

	valid, verifyErr := s.hasher.Verify(password, digest)
	if lookupErr != nil || !valid {
		if verifyErr != nil && lookupErr == nil {
			s.logger.WarnContext(ctx, "stored password digest is unreadable", "user_id", user.ID.String())
		}
		s.recorder.LoginAttempt(LoginRejected)
		return nil, invalidCredentials()
	}

	if !user.IsApproved {
		s.recorder.LoginAttempt(LoginUnapproved)
		return nil, oops.Code("AUTH_NOT_APPROVED").
			With("user_id", user.ID.String()).
			Wrap(ErrUnapproved)
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		s.upgradeDigest(ctx, user, password)
	}

	session, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		s.recorder.LoginAttempt(LoginStoreFailed)
		return nil, err
	}
	session.User = user

	s.recorder.LoginAttempt(LoginSucceeded)
	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID.String())
	return session, nil
}

// IssueCookie returns the cookie value carrying session's id.
func (s *Service) IssueCookie(session *Session) (string, error) {
	value, err := s.codec.Encode(session.ID)
	if err != nil {
		return "", oops.Code("AUTH_COOKIE_ENCODE_FAILED").Wrap(err)
	}
	return value, nil
}

// Logout revokes the session referenced by cookieValue. Unknown or
// undecodable cookies are ignored.
func (s *Service) Logout(ctx context.Context, cookieValue string) error {
	if cookieValue == "" {
		return nil
	}
	id, err := s.codec.Decode(cookieValue)
	if err != nil {
		return nil //nolint:nilerr // nothing to revoke for a cookie we did not issue
	}
	return s.sessions.Revoke(ctx, id)
}

// ValidateRequest authenticates a request by its session cookie value.
// An error is returned only when the store fails.
func (s *Service) ValidateRequest(ctx context.Context, cookieValue string) (Authentication, error) {
	if cookieValue == "" {
		return Authentication{}, nil
	}

	id, err := s.codec.Decode(cookieValue)
	if err != nil {
		s.logger.DebugContext(ctx, "session cookie rejected", "error", err)
		return Authentication{ClearCookie: true}, nil
	}

	session, err := s.sessions.Validate(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			return Authentication{ClearCookie: true}, nil
		}
		return Authentication{}, err
	}

	return Authentication{
		Principal: &Principal{Session: session, Scopes: ResolveScopes(session)},
	}, nil
}

// Authorize checks principal against req. See Gate.Authorize.
func (s *Service) Authorize(ctx context.Context, req Requirement, principal *Principal) error {
	return s.gate.Authorize(ctx, req, principal)
}

// ensureEmailFree fails with ErrConflict when email belongs to a user other
// than self.
func (s *Service) ensureEmailFree(ctx context.Context, email string, self *User) error {
	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil
	case err != nil:
		return storeError("get user by email", err)
	case self != nil && existing.ID == self.ID:
		return nil
	default:
		return emailTaken()
	}
}

func (s *Service) upgradeDigest(ctx context.Context, user *User, password string) {
	digest, err := s.hasher.Hash(password)
	if err != nil {
		return
	}
	if _, err := s.users.Update(ctx, user.ID, UserChanges{PasswordHash: &digest}); err != nil {
		s.logger.WarnContext(ctx, "password digest upgrade failed", "user_id", user.ID.String(), "error", err)
		return
	}
	user.PasswordHash = digest
}

func invalidCredentials() error {
	return oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
}

func emailTaken() error {
	return oops.Code("AUTH_EMAIL_TAKEN").Wrap(ErrConflict)
}
