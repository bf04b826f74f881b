// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"errors"
	"fmt"

	"github.com/samber/oops"
)

// Repository-level sentinels. Store implementations wrap these so callers can
// branch with errors.Is regardless of the backing engine.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a write violates a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate record")
)

// Outcome sentinels surfaced to the routing layer.
var (
	ErrWeakCredential     = errors.New("password is too easy to guess")
	ErrInvalidPassword    = errors.New("password cannot be used")
	ErrConflict           = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnapproved         = errors.New("account is not approved")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
	ErrStoreUnavailable   = errors.New("store unavailable")
)

// storeError marks err as a persistence failure. The original error stays in
// the chain for logging.
func storeError(operation string, err error) error {
	return oops.Code("STORE_UNAVAILABLE").
		With("operation", operation).
		Wrap(fmt.Errorf("%w: %w", ErrStoreUnavailable, err))
}
