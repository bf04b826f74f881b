// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package postgres implements the auth repositories on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/warden/internal/auth"
	"github.com/holomush/warden/internal/store"
)

const userColumns = `id, email, password_hash, role, first_name, last_name, avatar_url, is_approved, created_at, updated_at`

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	db store.DBTX
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db store.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		user.ID.String(),
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.FirstName,
		user.LastName,
		user.AvatarURL,
		user.IsApproved,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("USER_CREATE_FAILED").With("field", "email").Wrap(auth.ErrDuplicate)
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id.String())

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("user_id", id.String()).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").With("operation", "get user by id").Wrap(err)
	}
	return user, nil
}

// GetByEmail retrieves a user by exact email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").With("operation", "get user by email").Wrap(err)
	}
	return user, nil
}

// Update applies changes in one statement and returns the stored row.
func (r *UserRepository) Update(ctx context.Context, id ulid.ULID, changes auth.UserChanges) (*auth.User, error) {
	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if changes.Email != nil {
		set("email", *changes.Email)
	}
	if changes.PasswordHash != nil {
		set("password_hash", *changes.PasswordHash)
	}
	if changes.Role != nil {
		set("role", string(*changes.Role))
	}
	if changes.IsApproved != nil {
		set("is_approved", *changes.IsApproved)
	}
	if changes.FirstName.Set {
		set("first_name", changes.FirstName.Value)
	}
	if changes.LastName.Set {
		set("last_name", changes.LastName.Value)
	}
	if changes.AvatarURL.Set {
		set("avatar_url", changes.AvatarURL.Value)
	}
	set("updated_at", time.Now().UTC())
	args = append(args, id.String())

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), userColumns)

	user, err := scanUser(r.db.QueryRow(ctx, query, args...))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, oops.Code("USER_NOT_FOUND").With("user_id", id.String()).Wrap(auth.ErrNotFound)
	case isUniqueViolation(err):
		return nil, oops.Code("USER_UPDATE_FAILED").With("field", "email").Wrap(auth.ErrDuplicate)
	case err != nil:
		return nil, oops.Code("USER_UPDATE_FAILED").
			With("operation", "update user").
			With("user_id", id.String()).
			Wrap(err)
	}
	return user, nil
}

// Delete removes a user. Their sessions go with them via ON DELETE CASCADE.
func (r *UserRepository) Delete(ctx context.Context, id ulid.ULID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id.String()); err != nil {
		return oops.Code("USER_DELETE_FAILED").
			With("operation", "delete user").
			With("user_id", id.String()).
			Wrap(err)
	}
	return nil
}

// List returns one page of users ordered by email, and the total count.
// A non-positive Limit returns every row.
func (r *UserRepository) List(ctx context.Context, q auth.ListUsersQuery) ([]*auth.User, int, error) {
	exclude := q.ExcludeID.String()

	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM users WHERE id <> $1`, exclude).Scan(&total); err != nil {
		return nil, 0, oops.Code("USER_LIST_FAILED").With("operation", "count users").Wrap(err)
	}

	var limit *int
	if q.Limit > 0 {
		limit = &q.Limit
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id <> $1
		ORDER BY email
		LIMIT $2 OFFSET $3
	`, exclude, limit, q.Offset)
	if err != nil {
		return nil, 0, oops.Code("USER_LIST_FAILED").With("operation", "list users").Wrap(err)
	}
	defer rows.Close()

	users := make([]*auth.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, oops.Code("USER_LIST_FAILED").With("operation", "scan user").Wrap(err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, oops.Code("USER_LIST_FAILED").With("operation", "iterate users").Wrap(err)
	}
	return users, total, nil
}

func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		u     auth.User
		idStr string
		role  string
	)
	err := row.Scan(
		&idStr,
		&u.Email,
		&u.PasswordHash,
		&role,
		&u.FirstName,
		&u.LastName,
		&u.AvatarURL,
		&u.IsApproved,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_CORRUPT_ID").With("id", idStr).Wrap(err)
	}
	u.Role = auth.Role(role)
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

var _ auth.UserRepository = (*UserRepository)(nil)
