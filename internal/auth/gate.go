// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"log/slog"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// Denial reasons recorded in logs and metrics. Callers see one error class.
const (
	DenyNoSession         = "no_session"
	DenyInsufficientScope = "insufficient_scope"
)

// Requirement is the scope a route demands. The zero value is public.
type Requirement struct {
	scope   string
	matcher glob.Glob
}

// Public returns the requirement of a route anyone may call.
func Public() Requirement {
	return Requirement{}
}

// Require returns a requirement for scope. The scope may be a glob pattern
// such as "user-*"; a literal scope matches only itself.
func Require(scope string) (Requirement, error) {
	if scope == "" {
		return Requirement{}, oops.Code("ACCESS_INVALID_SCOPE").Errorf("required scope cannot be empty")
	}
	g, err := glob.Compile(scope)
	if err != nil {
		return Requirement{}, oops.Code("ACCESS_INVALID_SCOPE").With("scope", scope).Wrap(err)
	}
	return Requirement{scope: scope, matcher: g}, nil
}

// MustRequire is like Require but panics on an invalid pattern.
// Intended for route tables built at startup.
func MustRequire(scope string) Requirement {
	r, err := Require(scope)
	if err != nil {
		panic(err)
	}
	return r
}

// IsPublic reports whether the requirement admits unauthenticated callers.
func (r Requirement) IsPublic() bool {
	return r.matcher == nil
}

// Scope returns the required scope pattern, empty for public routes.
func (r Requirement) Scope() string {
	return r.scope
}

// SatisfiedBy reports whether any scope in scopes matches the requirement.
func (r Requirement) SatisfiedBy(scopes ScopeSet) bool {
	if r.IsPublic() {
		return true
	}
	for _, s := range scopes {
		if r.matcher.Match(s) {
			return true
		}
	}
	return false
}

// Gate decides whether a principal may pass a requirement.
type Gate struct {
	logger   *slog.Logger
	recorder Recorder
}

// NewGate creates a Gate.
func NewGate(logger *slog.Logger, recorder Recorder) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &Gate{logger: logger, recorder: recorder}
}

// Authorize returns nil when principal satisfies req. A nil principal is an
// unauthenticated caller. Both denials carry the ACCESS_DENIED code; only
// errors.Is against ErrUnauthenticated or ErrForbidden tells them apart.
func (g *Gate) Authorize(ctx context.Context, req Requirement, principal *Principal) error {
	if req.IsPublic() {
		return nil
	}

	if principal == nil {
		g.recorder.AccessDenied(DenyNoSession)
		g.logger.InfoContext(ctx, "access denied",
			"reason", DenyNoSession,
			"required_scope", req.scope)
		return oops.Code("ACCESS_DENIED").
			With("reason", DenyNoSession).
			With("required_scope", req.scope).
			Wrap(ErrUnauthenticated)
	}

	if !req.SatisfiedBy(principal.Scopes) {
		g.recorder.AccessDenied(DenyInsufficientScope)
		g.logger.InfoContext(ctx, "access denied",
			"reason", DenyInsufficientScope,
			"required_scope", req.scope,
			"user_id", principal.UserID().String())
		return oops.Code("ACCESS_DENIED").
			With("reason", DenyInsufficientScope).
			With("required_scope", req.scope).
			Wrap(ErrForbidden)
	}

	return nil
}
