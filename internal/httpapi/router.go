// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package httpapi serves the warden REST API on gin.
//
// Authentication and authorization are explicit middleware: Authenticate
// resolves the session cookie into a principal on every request, and each
// protected route group adds Require with its scope.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/warden/internal/auth"
)

// Authenticator is the auth service surface used by the API.
type Authenticator interface {
	Register(ctx context.Context, email, password string) (*auth.User, error)
	Login(ctx context.Context, email, password string) (*auth.Session, error)
	Logout(ctx context.Context, cookieValue string) error
	IssueCookie(session *auth.Session) (string, error)
	ValidateRequest(ctx context.Context, cookieValue string) (auth.Authentication, error)
	Authorize(ctx context.Context, req auth.Requirement, principal *auth.Principal) error
}

// UserAdmin is the user management surface used by the API.
type UserAdmin interface {
	List(ctx context.Context, actorID ulid.ULID, take, page int) (auth.UserPage, error)
	Create(ctx context.Context, in auth.NewUserInput) (*auth.User, error)
	UpdateSelf(ctx context.Context, id ulid.ULID, upd auth.UserUpdate) (*auth.User, error)
	UpdateUser(ctx context.Context, id ulid.ULID, upd auth.UserUpdate) (*auth.User, error)
	Delete(ctx context.Context, id ulid.ULID) error
}

// CookieJar reads and writes the session cookie.
type CookieJar interface {
	Read(r *http.Request) string
	Set(w http.ResponseWriter, value string)
	Clear(w http.ResponseWriter)
}

// RequestObserver records served requests.
type RequestObserver interface {
	ObserveRequest(route string, status int, seconds float64)
}

// Deps are the collaborators of the router.
type Deps struct {
	Auth    Authenticator
	Users   UserAdmin
	Cookies CookieJar
	// Metrics is optional.
	Metrics RequestObserver
	Logger  *slog.Logger
	// PublicOrigin prefixes pagination links.
	PublicOrigin string
}

type handlers struct {
	auth      Authenticator
	users     UserAdmin
	cookies   CookieJar
	validator *validator
	logger    *slog.Logger
	origin    string
}

// NewRouter builds the gin engine serving every route.
func NewRouter(deps Deps) (*gin.Engine, error) {
	switch {
	case deps.Auth == nil:
		return nil, oops.Code("HTTP_INVALID_CONFIG").Errorf("authenticator is required")
	case deps.Users == nil:
		return nil, oops.Code("HTTP_INVALID_CONFIG").Errorf("user admin is required")
	case deps.Cookies == nil:
		return nil, oops.Code("HTTP_INVALID_CONFIG").Errorf("cookie jar is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	v, err := newValidator()
	if err != nil {
		return nil, err
	}

	h := &handlers{
		auth:      deps.Auth,
		users:     deps.Users,
		cookies:   deps.Cookies,
		validator: v,
		logger:    deps.Logger,
		origin:    deps.PublicOrigin,
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(recovery(deps.Logger), requestLogger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(requestMetrics(deps.Metrics))
	}
	r.Use(h.authenticate)
	r.NoRoute(func(c *gin.Context) { abort(c, http.StatusNotFound, "") })
	r.NoMethod(func(c *gin.Context) { abort(c, http.StatusMethodNotAllowed, "") })

	admin := h.require(auth.MustRequire(string(auth.RoleAdmin)))
	user := h.require(auth.MustRequire(auth.ScopeUser))

	authGroup := r.Group("/auth")
	authGroup.POST("/register", h.register)
	authGroup.POST("/login", h.login)
	authGroup.POST("/logout", h.logout)
	authGroup.GET("/me", h.me)

	users := r.Group("/users")
	users.GET("", admin, h.listUsers)
	users.POST("", admin, h.createUser)
	users.PUT("", user, h.replaceMe)
	users.PATCH("", user, h.patchMe)
	users.PUT("/:id", admin, h.replaceUser)
	users.PATCH("/:id", admin, h.patchUser)
	users.DELETE("/:id", admin, h.deleteUser)

	return r, nil
}
