// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/holomush/warden/internal/auth"
	"github.com/holomush/warden/pkg/errutil"
)

// Response messages clients may depend on.
const (
	MessageTooEasy      = "TOO_EASY"
	MessageNotApproved  = "You're not approved"
	MessageInvalidInput = "Invalid request payload input"
	MessageInternal     = "An internal server error occurred"
)

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	StatusCode int    `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

func newErrorBody(status int, message string) ErrorBody {
	if message == "" {
		message = http.StatusText(status)
	}
	return ErrorBody{StatusCode: status, Error: http.StatusText(status), Message: message}
}

// abort ends the request with an error body.
func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, newErrorBody(status, message))
}

// statusFor maps a service error to its HTTP status and message.
// Missing sessions and missing scopes share one response so callers cannot
// tell them apart.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrStoreUnavailable):
		return http.StatusInternalServerError, MessageInternal
	case errors.Is(err, auth.ErrWeakCredential):
		return http.StatusBadRequest, MessageTooEasy
	case errors.Is(err, auth.ErrInvalidPassword):
		return http.StatusBadRequest, MessageInvalidInput
	case errors.Is(err, auth.ErrConflict), errors.Is(err, auth.ErrDuplicate):
		return http.StatusConflict, ""
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrNotFound):
		return http.StatusNotFound, ""
	case errors.Is(err, auth.ErrUnapproved):
		return http.StatusUnauthorized, MessageNotApproved
	case errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, ""
	default:
		return http.StatusInternalServerError, MessageInternal
	}
}

// fail aborts with the response mapped from err. Server errors are logged
// with their oops code and context.
func (h *handlers) fail(c *gin.Context, err error) {
	status, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		errutil.LogErrorContext(c.Request.Context(), h.logger, "request failed", err)
	} else {
		h.logger.DebugContext(c.Request.Context(), "request rejected",
			"status", status, "code", errutil.Code(err))
	}
	abort(c, status, message)
}
