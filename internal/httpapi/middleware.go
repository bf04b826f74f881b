// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/holomush/warden/internal/auth"
)

const principalKey = "warden.principal"

// PrincipalFrom returns the authenticated principal of the request, or nil.
func PrincipalFrom(c *gin.Context) *auth.Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*auth.Principal)
	return p
}

// authenticate resolves the session cookie. Requests without a valid
// session continue unauthenticated; a dead cookie is cleared.
func (h *handlers) authenticate(c *gin.Context) {
	value := h.cookies.Read(c.Request)

	result, err := h.auth.ValidateRequest(c.Request.Context(), value)
	if err != nil {
		h.fail(c, err)
		return
	}
	if result.ClearCookie {
		h.cookies.Clear(c.Writer)
	}
	if result.Authenticated() {
		c.Set(principalKey, result.Principal)
	}
	c.Next()
}

// require admits only principals satisfying req.
func (h *handlers) require(req auth.Requirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.auth.Authorize(c.Request.Context(), req, PrincipalFrom(c)); err != nil {
			h.fail(c, err)
			return
		}
		c.Next()
	}
}

// requestLogger logs one line per request.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"route", route(c),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		}
		if p := PrincipalFrom(c); p != nil {
			attrs = append(attrs, "user_id", p.UserID().String())
		}
		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "http request", attrs...)
	}
}

// requestMetrics records each request under its route template.
func requestMetrics(observer RequestObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		observer.ObserveRequest(route(c), c.Writer.Status(), time.Since(start).Seconds())
	}
}

// recovery turns panics into 500 responses with the standard error body.
func recovery(logger *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		logger.ErrorContext(c.Request.Context(), "handler panicked", "panic", recovered, "route", route(c))
		abort(c, http.StatusInternalServerError, MessageInternal)
	})
}

func route(c *gin.Context) string {
	if r := c.FullPath(); r != "" {
		return r
	}
	return "unmatched"
}
