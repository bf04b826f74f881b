// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	"github.com/holomush/warden/internal/auth"
)

// UserResponse is the public view of a user. Password digests never leave
// the service.
type UserResponse struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	FirstName  *string   `json:"firstName"`
	LastName   *string   `json:"lastName"`
	AvatarURL  *string   `json:"avatarURL"`
	IsApproved bool      `json:"isApproved"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// SessionResponse is the public view of the caller's session. The session
// id is never returned.
type SessionResponse struct {
	ValidUntil time.Time     `json:"validUntil"`
	CreatedAt  time.Time     `json:"createdAt"`
	User       *UserResponse `json:"user"`
}

func toUserResponse(u *auth.User) *UserResponse {
	if u == nil {
		return nil
	}
	return &UserResponse{
		ID:         u.ID.String(),
		Email:      u.Email,
		Role:       string(u.Role),
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		AvatarURL:  u.AvatarURL,
		IsApproved: u.IsApproved,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

func (h *handlers) register(c *gin.Context) {
	var req CredentialsRequest
	if _, ok := h.bind(c, "credentials", &req); !ok {
		return
	}
	if _, err := h.auth.Register(c.Request.Context(), req.Email, req.Password); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (h *handlers) login(c *gin.Context) {
	var req CredentialsRequest
	if _, ok := h.bind(c, "credentials", &req); !ok {
		return
	}
	session, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	value, err := h.auth.IssueCookie(session)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.cookies.Set(c.Writer, value)
	c.Status(http.StatusOK)
}

func (h *handlers) logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), h.cookies.Read(c.Request)); err != nil {
		h.fail(c, err)
		return
	}
	h.cookies.Clear(c.Writer)
	c.Status(http.StatusNoContent)
}

func (h *handlers) me(c *gin.Context) {
	p := PrincipalFrom(c)
	if p == nil {
		c.JSON(http.StatusOK, gin.H{"data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": SessionResponse{
		ValidUntil: p.Session.ValidUntil,
		CreatedAt:  p.Session.CreatedAt,
		User:       toUserResponse(p.Session.User),
	}})
}

func (h *handlers) listUsers(c *gin.Context) {
	take, ok := queryInt(c, "take", auth.DefaultPageSize, auth.MinPageSize, auth.MaxPageSize)
	if !ok {
		return
	}
	page, ok := queryInt(c, "page", 1, 1, 0)
	if !ok {
		return
	}

	result, err := h.users.List(c.Request.Context(), PrincipalFrom(c).UserID(), take, page)
	if err != nil {
		h.fail(c, err)
		return
	}
	if len(result.Users) == 0 {
		c.JSON(http.StatusOK, gin.H{"data": nil})
		return
	}

	data := make([]*UserResponse, 0, len(result.Users))
	for _, u := range result.Users {
		data = append(data, toUserResponse(u))
	}
	c.JSON(http.StatusOK, gin.H{
		"data": data,
		"page": newPage(h.origin, c.Request.URL.Path, result.Take, result.Page, result.Total),
	})
}

func (h *handlers) createUser(c *gin.Context) {
	var req CreateUserRequest
	if _, ok := h.bind(c, "create-user", &req); !ok {
		return
	}
	_, err := h.users.Create(c.Request.Context(), auth.NewUserInput{
		Email:      req.Email,
		Password:   req.Password,
		Role:       auth.Role(req.Role),
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		AvatarURL:  req.AvatarURL,
		IsApproved: req.IsApproved,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (h *handlers) replaceMe(c *gin.Context) {
	var req ReplaceMeRequest
	if _, ok := h.bind(c, "replace-me", &req); !ok {
		return
	}
	h.respondUser(c)(h.users.UpdateSelf(c.Request.Context(), PrincipalFrom(c).UserID(), auth.UserUpdate{
		Email:     &req.Email,
		Password:  &req.Password,
		FirstName: auth.NullableOf(req.FirstName),
		LastName:  auth.NullableOf(req.LastName),
		AvatarURL: auth.NullableOf(req.AvatarURL),
	}))
}

func (h *handlers) patchMe(c *gin.Context) {
	var req PatchMeRequest
	fields, ok := h.bind(c, "patch-me", &req)
	if !ok {
		return
	}
	h.respondUser(c)(h.users.UpdateSelf(c.Request.Context(), PrincipalFrom(c).UserID(), auth.UserUpdate{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: present(fields, "firstName", req.FirstName),
		LastName:  present(fields, "lastName", req.LastName),
		AvatarURL: present(fields, "avatarURL", req.AvatarURL),
	}))
}

func (h *handlers) replaceUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req ReplaceUserRequest
	if _, ok := h.bind(c, "replace-user", &req); !ok {
		return
	}
	role := auth.Role(req.Role)
	h.respondUser(c)(h.users.UpdateUser(c.Request.Context(), id, auth.UserUpdate{
		Email:      &req.Email,
		Password:   &req.Password,
		Role:       &role,
		IsApproved: &req.IsApproved,
		FirstName:  auth.NullableOf(req.FirstName),
		LastName:   auth.NullableOf(req.LastName),
		AvatarURL:  auth.NullableOf(req.AvatarURL),
	}))
}

func (h *handlers) patchUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req PatchUserRequest
	fields, ok := h.bind(c, "patch-user", &req)
	if !ok {
		return
	}
	var role *auth.Role
	if req.Role != nil {
		r := auth.Role(*req.Role)
		role = &r
	}
	h.respondUser(c)(h.users.UpdateUser(c.Request.Context(), id, auth.UserUpdate{
		Email:      req.Email,
		Password:   req.Password,
		Role:       role,
		IsApproved: req.IsApproved,
		FirstName:  present(fields, "firstName", req.FirstName),
		LastName:   present(fields, "lastName", req.LastName),
		AvatarURL:  present(fields, "avatarURL", req.AvatarURL),
	}))
}

func (h *handlers) deleteUser(c *gin.Context) {
	id, err := ulid.Parse(c.Param("id"))
	if err != nil {
		// No user can have a malformed id, so there is nothing to delete.
		c.Status(http.StatusNoContent)
		return
	}
	if err := h.users.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// respondUser writes {data: user} or the mapped error.
func (h *handlers) respondUser(c *gin.Context) func(*auth.User, error) {
	return func(u *auth.User, err error) {
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": toUserResponse(u)})
	}
}

// present turns a nullable body field into an update, unset when the key
// was absent from the body.
func present(fields map[string]any, key string, value *string) auth.Nullable {
	if _, ok := fields[key]; !ok {
		return auth.Nullable{}
	}
	return auth.NullableOf(value)
}

// pathID parses the :id parameter. Malformed ids cannot exist, so they
// answer 404.
func pathID(c *gin.Context) (ulid.ULID, bool) {
	id, err := ulid.Parse(c.Param("id"))
	if err != nil {
		abort(c, http.StatusNotFound, "")
		return ulid.ULID{}, false
	}
	return id, true
}

// queryInt reads an integer query parameter within [lo, hi] (hi <= 0 means
// unbounded). Absent parameters yield def; anything else invalid answers 400.
func queryInt(c *gin.Context, key string, def, lo, hi int) (int, bool) {
	raw, ok := c.GetQuery(key)
	if !ok {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || (hi > 0 && n > hi) {
		abort(c, http.StatusBadRequest, MessageInvalidInput)
		return 0, false
	}
	return n, true
}
