// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// SchemaBaseURL prefixes the $id of every request schema.
const SchemaBaseURL = "https://warden.holomush.dev/schemas/"

// CredentialsRequest is the body of register and login.
type CredentialsRequest struct {
	Email    string `json:"email" jsonschema:"format=email"`
	Password string `json:"password" jsonschema:"minLength=1"`
}

// CreateUserRequest is the body of POST /users.
type CreateUserRequest struct {
	Email      string  `json:"email" jsonschema:"format=email"`
	Password   string  `json:"password" jsonschema:"minLength=1"`
	Role       string  `json:"role" jsonschema:"enum=USER,enum=ADMIN"`
	FirstName  *string `json:"firstName,omitempty" jsonschema:"nullable"`
	LastName   *string `json:"lastName,omitempty" jsonschema:"nullable"`
	AvatarURL  *string `json:"avatarURL,omitempty" jsonschema:"format=uri,nullable"`
	IsApproved bool    `json:"isApproved,omitempty"`
}

// ReplaceMeRequest is the body of PUT /users. Every field is required;
// profile fields may be null.
type ReplaceMeRequest struct {
	Email     string  `json:"email" jsonschema:"format=email"`
	Password  string  `json:"password" jsonschema:"minLength=1"`
	FirstName *string `json:"firstName" jsonschema:"nullable"`
	LastName  *string `json:"lastName" jsonschema:"nullable"`
	AvatarURL *string `json:"avatarURL" jsonschema:"format=uri,nullable"`
}

// PatchMeRequest is the body of PATCH /users.
type PatchMeRequest struct {
	Email     *string `json:"email,omitempty" jsonschema:"format=email"`
	Password  *string `json:"password,omitempty" jsonschema:"minLength=1"`
	FirstName *string `json:"firstName,omitempty" jsonschema:"nullable"`
	LastName  *string `json:"lastName,omitempty" jsonschema:"nullable"`
	AvatarURL *string `json:"avatarURL,omitempty" jsonschema:"format=uri,nullable"`
}

// ReplaceUserRequest is the body of PUT /users/:id.
type ReplaceUserRequest struct {
	Email      string  `json:"email" jsonschema:"format=email"`
	Password   string  `json:"password" jsonschema:"minLength=1"`
	Role       string  `json:"role" jsonschema:"enum=USER,enum=ADMIN"`
	FirstName  *string `json:"firstName" jsonschema:"nullable"`
	LastName   *string `json:"lastName" jsonschema:"nullable"`
	AvatarURL  *string `json:"avatarURL" jsonschema:"format=uri,nullable"`
	IsApproved bool    `json:"isApproved"`
}

// PatchUserRequest is the body of PATCH /users/:id.
type PatchUserRequest struct {
	Email      *string `json:"email,omitempty" jsonschema:"format=email"`
	Password   *string `json:"password,omitempty" jsonschema:"minLength=1"`
	Role       *string `json:"role,omitempty" jsonschema:"enum=USER,enum=ADMIN"`
	FirstName  *string `json:"firstName,omitempty" jsonschema:"nullable"`
	LastName   *string `json:"lastName,omitempty" jsonschema:"nullable"`
	AvatarURL  *string `json:"avatarURL,omitempty" jsonschema:"format=uri,nullable"`
	IsApproved *bool   `json:"isApproved,omitempty"`
}

// requestTypes names every validated request body.
var requestTypes = map[string]any{
	"credentials":  &CredentialsRequest{},
	"create-user":  &CreateUserRequest{},
	"replace-me":   &ReplaceMeRequest{},
	"patch-me":     &PatchMeRequest{},
	"replace-user": &ReplaceUserRequest{},
	"patch-user":   &PatchUserRequest{},
}

// GenerateSchemas returns the JSON Schema of every request body, keyed by
// name.
func GenerateSchemas() (map[string][]byte, error) {
	out := make(map[string][]byte, len(requestTypes))
	for name, v := range requestTypes {
		data, err := generateSchema(name, v)
		if err != nil {
			return nil, err
		}
		out[name] = data
	}
	return out, nil
}

func generateSchema(name string, v any) ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(v)
	schema.ID = jsonschema.ID(SchemaBaseURL + name + ".schema.json")
	schema.Title = name

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code("SCHEMA_GENERATE_FAILED").With("schema", name).Wrap(err)
	}
	return data, nil
}

// validator checks request bodies against the compiled request schemas.
type validator struct {
	schemas map[string]*jschema.Schema
}

func newValidator() (*validator, error) {
	generated, err := GenerateSchemas()
	if err != nil {
		return nil, err
	}

	c := jschema.NewCompiler()
	c.AssertFormat()
	for name, data := range generated {
		doc, err := jschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			return nil, oops.Code("SCHEMA_COMPILE_FAILED").With("schema", name).Wrap(err)
		}
		if err := c.AddResource(SchemaBaseURL+name+".schema.json", doc); err != nil {
			return nil, oops.Code("SCHEMA_COMPILE_FAILED").With("schema", name).Wrap(err)
		}
	}

	v := &validator{schemas: make(map[string]*jschema.Schema, len(generated))}
	for name := range generated {
		sch, err := c.Compile(SchemaBaseURL + name + ".schema.json")
		if err != nil {
			return nil, oops.Code("SCHEMA_COMPILE_FAILED").With("schema", name).Wrap(err)
		}
		v.schemas[name] = sch
	}
	return v, nil
}

// validate checks data against the named schema and returns the decoded
// instance, whose keys tell present fields from absent ones.
func (v *validator) validate(name string, data []byte) (map[string]any, error) {
	sch, ok := v.schemas[name]
	if !ok {
		return nil, oops.Code("SCHEMA_UNKNOWN").With("schema", name).Errorf("no schema named %q", name)
	}
	instance, err := jschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, oops.Code("PAYLOAD_INVALID").With("schema", name).Wrap(err)
	}
	if err := sch.Validate(instance); err != nil {
		return nil, oops.Code("PAYLOAD_INVALID").With("schema", name).Wrap(err)
	}
	fields, ok := instance.(map[string]any)
	if !ok {
		return nil, oops.Code("PAYLOAD_INVALID").With("schema", name).Errorf("payload must be an object")
	}
	return fields, nil
}

// bind validates the request body against schema and decodes it into dst.
// On failure it aborts the request with 400 and returns false.
func (h *handlers) bind(c *gin.Context, schema string, dst any) (map[string]any, bool) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes+1))
	if err != nil || len(data) > maxBodyBytes {
		abort(c, http.StatusBadRequest, MessageInvalidInput)
		return nil, false
	}

	fields, err := h.validator.validate(schema, data)
	if err != nil {
		h.logger.DebugContext(c.Request.Context(), "payload rejected", "schema", schema, "error", err)
		abort(c, http.StatusBadRequest, MessageInvalidInput)
		return nil, false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		abort(c, http.StatusBadRequest, MessageInvalidInput)
		return nil, false
	}
	return fields, true
}
