// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth provides cookie-session authentication for warden.
//
// # Domain Types
//
// Domain types should be created using their constructors:
//   - NewUser - creates a User with validated email, digest and role
//   - NewSession - creates a Session with a fresh 256-bit random id
//
// Direct struct initialization bypasses validation and may create invalid state.
// Repository implementations receive pre-validated types from these constructors.
//
// # Services
//
// Service types coordinate domain operations:
//   - SessionManager - session creation, validation with expiry sweep, revocation
//   - Service - registration, login, request validation and authorization
//   - UserService - administrative and self-service account changes
//
// Services are created with New* constructors that validate dependencies.
//
// # Errors
//
// Outcomes are reported as oops errors wrapping the sentinels in errors.go.
// Callers branch with errors.Is. Unknown email and wrong password both wrap
// ErrInvalidCredentials with identical messages. Missing sessions and
// insufficient scopes share the ACCESS_DENIED code.
package auth
