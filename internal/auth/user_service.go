// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Page size bounds for user listings.
const (
	DefaultPageSize = 25
	MinPageSize     = 25
	MaxPageSize     = 500
)

// NewUserInput is an administrator's request to create a user.
type NewUserInput struct {
	Email      string
	Password   string
	Role       Role
	FirstName  *string
	LastName   *string
	AvatarURL  *string
	IsApproved bool
}

// UserUpdate is a partial change to a user. Nil pointers and unset
// Nullables are left unchanged. Role and IsApproved are ignored for
// self-service updates.
type UserUpdate struct {
	Email      *string
	Password   *string
	Role       *Role
	IsApproved *bool
	FirstName  Nullable
	LastName   Nullable
	AvatarURL  Nullable
}

// UserPage is one page of a user listing.
type UserPage struct {
	Users []*User
	Total int
	Take  int
	Page  int
}

// LastPage returns the number of the last page.
func (p UserPage) LastPage() int {
	if p.Take <= 0 {
		return 0
	}
	return (p.Total + p.Take - 1) / p.Take
}

// UserService manages user accounts on behalf of administrators and the
// users themselves. Every path that sets a password runs the strength check
// before hashing.
type UserService struct {
	svc *Service
}

// NewUserService creates a UserService sharing auth's repositories and policies.
func NewUserService(auth *Service) (*UserService, error) {
	if auth == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("auth service is required")
	}
	return &UserService{svc: auth}, nil
}

// Get returns the user with id.
func (s *UserService) Get(ctx context.Context, id ulid.ULID) (*User, error) {
	user, err := s.svc.users.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOrStore(err, id, "get user")
	}
	return user, nil
}

// List returns page number page of users other than actorID, ordered by
// email. take is clamped to [MinPageSize, MaxPageSize] and page to >= 1.
func (s *UserService) List(ctx context.Context, actorID ulid.ULID, take, page int) (UserPage, error) {
	if take == 0 {
		take = DefaultPageSize
	}
	take = min(max(take, MinPageSize), MaxPageSize)
	page = max(page, 1)

	users, total, err := s.svc.users.List(ctx, ListUsersQuery{
		ExcludeID: actorID,
		Limit:     take,
		Offset:    take * (page - 1),
	})
	if err != nil {
		return UserPage{}, storeError("list users", err)
	}
	return UserPage{Users: users, Total: total, Take: take, Page: page}, nil
}

// Create adds a user on behalf of an administrator.
func (s *UserService) Create(ctx context.Context, in NewUserInput) (*User, error) {
	if err := checkCredential(s.svc.strength, in.Password, strengthContext(in.Email, in.FirstName, in.LastName)...); err != nil {
		return nil, err
	}
	if err := s.svc.ensureEmailFree(ctx, in.Email, nil); err != nil {
		return nil, err
	}

	role := in.Role
	if role == "" {
		role = RoleUser
	}

	digest, err := s.svc.hasher.Hash(in.Password)
	if err != nil {
		return nil, oops.Code("USER_CREATE_FAILED").With("operation", "hash password").Wrap(err)
	}

	user, err := NewUser(in.Email, digest, role)
	if err != nil {
		return nil, err
	}
	user.FirstName = in.FirstName
	user.LastName = in.LastName
	user.AvatarURL = in.AvatarURL
	user.IsApproved = in.IsApproved

	if err := s.svc.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, emailTaken()
		}
		return nil, storeError("create user", err)
	}

	s.svc.logger.InfoContext(ctx, "user created", "user_id", user.ID.String(), "role", string(role))
	return user, nil
}

// UpdateSelf applies a user's change to their own account. Role and
// approval cannot be changed this way.
func (s *UserService) UpdateSelf(ctx context.Context, id ulid.ULID, upd UserUpdate) (*User, error) {
	upd.Role = nil
	upd.IsApproved = nil
	return s.update(ctx, id, upd)
}

// UpdateUser applies an administrator's change to any account.
func (s *UserService) UpdateUser(ctx context.Context, id ulid.ULID, upd UserUpdate) (*User, error) {
	return s.update(ctx, id, upd)
}

// Delete removes the user with id. Deleting an absent user succeeds.
func (s *UserService) Delete(ctx context.Context, id ulid.ULID) error {
	if err := s.svc.users.Delete(ctx, id); err != nil {
		return storeError("delete user", err)
	}
	s.svc.logger.InfoContext(ctx, "user deleted", "user_id", id.String())
	return nil
}

// SetApproved changes the approval flag of the user with email.
func (s *UserService) SetApproved(ctx context.Context, email string, approved bool) (*User, error) {
	user, err := s.svc.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("USER_NOT_FOUND").With("email", email).Wrap(err)
		}
		return nil, storeError("get user by email", err)
	}
	return s.update(ctx, user.ID, UserUpdate{IsApproved: &approved})
}

func (s *UserService) update(ctx context.Context, id ulid.ULID, upd UserUpdate) (*User, error) {
	current, err := s.svc.users.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOrStore(err, id, "get user")
	}

	if upd.Email != nil {
		if err := s.svc.ensureEmailFree(ctx, *upd.Email, current); err != nil {
			return nil, err
		}
	}

	changes := UserChanges{
		Email:      upd.Email,
		Role:       upd.Role,
		IsApproved: upd.IsApproved,
		FirstName:  upd.FirstName,
		LastName:   upd.LastName,
		AvatarURL:  upd.AvatarURL,
	}

	if upd.Password != nil {
		// Judge the password against the account as it will look afterwards.
		preview := *current
		changes.Apply(&preview)
		if err := checkCredential(s.svc.strength, *upd.Password,
			strengthContext(preview.Email, preview.FirstName, preview.LastName)...); err != nil {
			return nil, err
		}
		digest, err := s.svc.hasher.Hash(*upd.Password)
		if err != nil {
			return nil, oops.Code("USER_UPDATE_FAILED").With("operation", "hash password").Wrap(err)
		}
		changes.PasswordHash = &digest
	}

	if changes.IsEmpty() {
		return current, nil
	}

	updated, err := s.svc.users.Update(ctx, id, changes)
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, emailTaken()
		}
		return nil, notFoundOrStore(err, id, "update user")
	}

	s.svc.logger.InfoContext(ctx, "user updated", "user_id", id.String())
	return updated, nil
}

func notFoundOrStore(err error, id ulid.ULID, operation string) error {
	if errors.Is(err, ErrNotFound) {
		return oops.Code("USER_NOT_FOUND").With("user_id", id.String()).Wrap(err)
	}
	return storeError(operation, err)
}
