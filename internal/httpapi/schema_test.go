// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSchemas(t *testing.T) {
	schemas, err := GenerateSchemas()
	require.NoError(t, err)
	require.Len(t, schemas, len(requestTypes))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(schemas["replace-me"], &doc))
	assert.Equal(t, SchemaBaseURL+"replace-me.schema.json", doc["$id"])
	assert.Equal(t, false, doc["additionalProperties"])
	assert.ElementsMatch(t,
		[]any{"email", "password", "firstName", "lastName", "avatarURL"},
		doc["required"])

	require.NoError(t, json.Unmarshal(schemas["patch-me"], &doc))
	assert.NotContains(t, doc, "required")
}

func TestValidator(t *testing.T) {
	v, err := newValidator()
	require.NoError(t, err)

	tests := []struct {
		name   string
		schema string
		body   string
		valid  bool
	}{
		{"credentials", "credentials", `{"email":"a@x.com","password":"p"}`, true},
		{"bad email", "credentials", `{"email":"a","password":"p"}`, false},
		{"extra field", "credentials", `{"email":"a@x.com","password":"p","x":1}`, false},
		{"null email", "patch-me", `{"email":null}`, false},
		{"null profile field", "patch-me", `{"lastName":null}`, true},
		{"empty patch", "patch-me", `{}`, true},
		{"unknown role", "patch-user", `{"role":"OWNER"}`, false},
		{"approval flag", "patch-user", `{"isApproved":false}`, true},
		{"create defaults optional fields", "create-user", `{"email":"a@x.com","password":"p","role":"USER"}`, true},
		{"create needs role", "create-user", `{"email":"a@x.com","password":"p"}`, false},
		{"replace-user needs approval", "replace-user",
			`{"email":"a@x.com","password":"p","role":"USER","firstName":null,"lastName":null,"avatarURL":null}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields, err := v.validate(tt.schema, []byte(tt.body))
			if tt.valid {
				require.NoError(t, err)
				assert.NotNil(t, fields)
				return
			}
			require.Error(t, err)
		})
	}

	_, err = v.validate("nope", []byte(`{}`))
	assert.Error(t, err)
}
