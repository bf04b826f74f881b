// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Role is a user's authorization role.
type Role string

// Known roles.
const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Roles lists every valid role.
var Roles = []Role{RoleUser, RoleAdmin}

// ParseRole validates s as a Role.
func ParseRole(s string) (Role, error) {
	for _, r := range Roles {
		if string(r) == s {
			return r, nil
		}
	}
	return "", oops.Code("AUTH_INVALID_ROLE").With("role", s).Errorf("unknown role %q", s)
}

// User is an identity and credential record.
type User struct {
	ID           ulid.ULID
	Email        string
	PasswordHash string
	Role         Role
	FirstName    *string
	LastName     *string
	AvatarURL    *string
	IsApproved   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser creates a validated User with a fresh ID. New users are not approved.
// Email is stored as given; comparisons are case-sensitive.
func NewUser(email, passwordHash string, role Role) (*User, error) {
	if email == "" {
		return nil, oops.Code("AUTH_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("password hash cannot be empty")
	}
	if _, err := ParseRole(string(role)); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &User{
		ID:           ulid.Make(),
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Nullable is an optional update to a nullable field. Set distinguishes
// "leave unchanged" from "set to null".
type Nullable struct {
	Set   bool
	Value *string
}

// NullableOf returns a Nullable that sets the field to v (nil clears it).
func NullableOf(v *string) Nullable {
	return Nullable{Set: true, Value: v}
}

// UserChanges holds the fields of a partial user update. Nil pointers and
// unset Nullables are left unchanged.
type UserChanges struct {
	Email        *string
	PasswordHash *string
	Role         *Role
	IsApproved   *bool
	FirstName    Nullable
	LastName     Nullable
	AvatarURL    Nullable
}

// IsEmpty reports whether the changes touch no field.
func (c UserChanges) IsEmpty() bool {
	return c.Email == nil && c.PasswordHash == nil && c.Role == nil && c.IsApproved == nil &&
		!c.FirstName.Set && !c.LastName.Set && !c.AvatarURL.Set
}

// Apply writes the changes onto u. Used by in-memory stores.
func (c UserChanges) Apply(u *User) {
	if c.Email != nil {
		u.Email = *c.Email
	}
	if c.PasswordHash != nil {
		u.PasswordHash = *c.PasswordHash
	}
	if c.Role != nil {
		u.Role = *c.Role
	}
	if c.IsApproved != nil {
		u.IsApproved = *c.IsApproved
	}
	if c.FirstName.Set {
		u.FirstName = c.FirstName.Value
	}
	if c.LastName.Set {
		u.LastName = c.LastName.Value
	}
	if c.AvatarURL.Set {
		u.AvatarURL = c.AvatarURL.Value
	}
}

// ListUsersQuery selects a page of users ordered by email ascending.
type ListUsersQuery struct {
	ExcludeID ulid.ULID
	Limit     int
	Offset    int
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user. Returns ErrDuplicate if the email is taken.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by exact email.
	// Returns ErrNotFound if no user has the given email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Update applies a partial update and returns the stored user.
	// Returns ErrNotFound for an unknown id and ErrDuplicate for a taken email.
	Update(ctx context.Context, id ulid.ULID, changes UserChanges) (*User, error)

	// Delete removes a user. Deleting an absent user is not an error.
	Delete(ctx context.Context, id ulid.ULID) error

	// List returns one page of users and the total count matching the query.
	List(ctx context.Context, query ListUsersQuery) ([]*User, int, error)
}
