// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package seed loads user seed files and creates the users they list.
//
// A seed file is YAML validated against a JSON Schema reflected from File:
//
//	users:
//	  - email: admin@example.com
//	    password: a long passphrase
//	    role: ADMIN
//	    approved: true
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/holomush/warden/internal/auth"
)

// SchemaID is the $id of the seed file schema.
const SchemaID = "https://warden.holomush.dev/schemas/seed.schema.json"

// User is one account in a seed file.
type User struct {
	Email     string  `yaml:"email" json:"email" jsonschema:"format=email"`
	Password  string  `yaml:"password" json:"password" jsonschema:"minLength=1"`
	Role      string  `yaml:"role,omitempty" json:"role,omitempty" jsonschema:"enum=USER,enum=ADMIN"`
	FirstName *string `yaml:"firstName,omitempty" json:"firstName,omitempty"`
	LastName  *string `yaml:"lastName,omitempty" json:"lastName,omitempty"`
	AvatarURL *string `yaml:"avatarURL,omitempty" json:"avatarURL,omitempty" jsonschema:"format=uri"`
	Approved  bool    `yaml:"approved,omitempty" json:"approved,omitempty"`
}

// File is a parsed seed file.
type File struct {
	Users []User `yaml:"users" json:"users" jsonschema:"minItems=1"`
}

// GenerateSchema returns the JSON Schema for seed files.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(&File{})
	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "warden seed file"
	schema.Description = "Users created by `warden seed`"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code("SCHEMA_GENERATE_FAILED").With("schema", "seed").Wrap(err)
	}
	return data, nil
}

var compiledSchema = sync.OnceValues(func() (*jschema.Schema, error) {
	data, err := GenerateSchema()
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, oops.Code("SCHEMA_COMPILE_FAILED").With("schema", "seed").Wrap(err)
	}

	c := jschema.NewCompiler()
	c.AssertFormat()
	if err := c.AddResource(SchemaID, doc); err != nil {
		return nil, oops.Code("SCHEMA_COMPILE_FAILED").With("schema", "seed").Wrap(err)
	}
	sch, err := c.Compile(SchemaID)
	if err != nil {
		return nil, oops.Code("SCHEMA_COMPILE_FAILED").With("schema", "seed").Wrap(err)
	}
	return sch, nil
})

// Parse validates data against the seed schema and decodes it.
func Parse(data []byte) (*File, error) {
	if len(data) == 0 {
		return nil, oops.Code("SEED_EMPTY").Errorf("seed file is empty")
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, oops.Code("SEED_INVALID_YAML").Wrap(err)
	}

	sch, err := compiledSchema()
	if err != nil {
		return nil, err
	}
	if err := sch.Validate(toJSONTypes(doc)); err != nil {
		return nil, oops.Code("SEED_SCHEMA_INVALID").Wrap(err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, oops.Code("SEED_INVALID_YAML").Wrap(err)
	}
	return &f, nil
}

// toJSONTypes converts YAML-decoded values to the types JSON decoding
// produces, so they can be validated.
func toJSONTypes(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = toJSONTypes(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = toJSONTypes(item)
		}
		return out
	case int:
		return float64(val)
	case string, bool, float64, nil:
		return val
	default:
		if b, err := json.Marshal(val); err == nil {
			var out any
			if err := json.Unmarshal(b, &out); err == nil {
				return out
			}
		}
		return val
	}
}

// Creator creates users. *auth.UserService satisfies it.
type Creator interface {
	Create(ctx context.Context, in auth.NewUserInput) (*auth.User, error)
}

// Result lists the emails created and those skipped because they already
// existed.
type Result struct {
	Created []string
	Skipped []string
}

// Apply creates every user in f. Existing emails are skipped, so a seed file
// can be applied repeatedly. Apply stops at the first other failure.
func Apply(ctx context.Context, creator Creator, f *File, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var res Result
	for _, u := range f.Users {
		role := auth.RoleUser
		if u.Role != "" {
			r, err := auth.ParseRole(u.Role)
			if err != nil {
				return res, oops.Code("SEED_APPLY_FAILED").With("email", u.Email).Wrap(err)
			}
			role = r
		}

		_, err := creator.Create(ctx, auth.NewUserInput{
			Email:      u.Email,
			Password:   u.Password,
			Role:       role,
			FirstName:  u.FirstName,
			LastName:   u.LastName,
			AvatarURL:  u.AvatarURL,
			IsApproved: u.Approved,
		})
		switch {
		case err == nil:
			logger.InfoContext(ctx, "seeded user", "email", u.Email, "role", string(role))
			res.Created = append(res.Created, u.Email)
		case errors.Is(err, auth.ErrConflict), errors.Is(err, auth.ErrDuplicate):
			logger.InfoContext(ctx, "user already exists, skipping", "email", u.Email)
			res.Skipped = append(res.Skipped, u.Email)
		default:
			return res, oops.Code("SEED_APPLY_FAILED").With("email", u.Email).Wrap(err)
		}
	}
	return res, nil
}
