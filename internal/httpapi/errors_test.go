// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"errors"
	"net/http"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"

	"github.com/holomush/warden/internal/auth"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{"weak password", oops.Code("AUTH_WEAK_PASSWORD").Wrap(auth.ErrWeakCredential), http.StatusBadRequest, MessageTooEasy},
		{"password too long", auth.ErrPasswordTooLong, http.StatusBadRequest, MessageInvalidInput},
		{"email taken", oops.Code("AUTH_EMAIL_TAKEN").Wrap(auth.ErrConflict), http.StatusConflict, ""},
		{"duplicate row", auth.ErrDuplicate, http.StatusConflict, ""},
		{"bad credentials", auth.ErrInvalidCredentials, http.StatusNotFound, ""},
		{"missing user", oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound), http.StatusNotFound, ""},
		{"unapproved", auth.ErrUnapproved, http.StatusUnauthorized, MessageNotApproved},
		{"no session", auth.ErrUnauthenticated, http.StatusForbidden, ""},
		{"missing scope", auth.ErrForbidden, http.StatusForbidden, ""},
		{"store down", oops.Code("AUTH_STORE").Wrap(auth.ErrStoreUnavailable), http.StatusInternalServerError, MessageInternal},
		{"store down while missing", errors.Join(auth.ErrStoreUnavailable, auth.ErrNotFound), http.StatusInternalServerError, MessageInternal},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, MessageInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, message := statusFor(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantMessage, message)
		})
	}
}

func TestNewErrorBody(t *testing.T) {
	assert.Equal(t, ErrorBody{StatusCode: 404, Error: "Not Found", Message: "Not Found"}, newErrorBody(http.StatusNotFound, ""))
	assert.Equal(t, ErrorBody{StatusCode: 400, Error: "Bad Request", Message: MessageTooEasy}, newErrorBody(http.StatusBadRequest, MessageTooEasy))
}
