// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"slices"

	"github.com/oklog/ulid/v2"
)

// ScopeUser is granted to every authenticated principal.
const ScopeUser = "user"

// ScopeSet is the set of capability strings held by a principal.
type ScopeSet []string

// Has reports whether scope is in the set.
func (s ScopeSet) Has(scope string) bool {
	return slices.Contains(s, scope)
}

// UserScope returns the per-user scope for id.
func UserScope(id ulid.ULID) string {
	return "user-" + id.String()
}

// ResolveScopes derives the scope set of a validated session:
// "user", "user-<userId>" and the role name.
func ResolveScopes(session *Session) ScopeSet {
	scopes := ScopeSet{ScopeUser, UserScope(session.UserID)}
	if session.User != nil && session.User.Role != "" {
		scopes = append(scopes, string(session.User.Role))
	}
	return scopes
}

// Principal is an authenticated caller.
type Principal struct {
	Session *Session
	Scopes  ScopeSet
}

// UserID returns the authenticated user's id.
func (p *Principal) UserID() ulid.ULID {
	return p.Session.UserID
}
