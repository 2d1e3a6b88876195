package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nurdspace/nurdbar/internal/db"
	"github.com/nurdspace/nurdbar/internal/model"
)

const userColumns = `id, username, password_hash, role, created_at, deleted_at`

// CreateUser creates an operator account.
func CreateUser(ctx context.Context, database *sql.DB, username, passwordHash, role string) (*model.User, error) {
	if !model.ValidRole(role) {
		return nil, fmt.Errorf("creating user: unknown role %q", role)
	}

	result, err := database.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, role, created_at) VALUES (?, ?, ?, ?)`,
		username, passwordHash, role, nowFunc(),
	)
	if err != nil {
		if db.IsUniqueViolation(err, "users.username") {
			return nil, fmt.Errorf("creating user: %w", &model.DuplicateKeyError{Field: "username", Value: username})
		}
		return nil, wrap("creating user", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, wrap("getting user id", err)
	}

	return GetUser(ctx, database, id)
}

// GetUser returns an operator by ID.
func GetUser(ctx context.Context, database *sql.DB, id int64) (*model.User, error) {
	return getUser(ctx, database, "getting user", `id = ?`, id)
}

// GetUserByUsername returns the active operator with username, or nil.
func GetUserByUsername(ctx context.Context, database *sql.DB, username string) (*model.User, error) {
	return getUser(ctx, database, "getting user by username", `username = ? AND deleted_at IS NULL`, username)
}

func getUser(ctx context.Context, database *sql.DB, op, where string, arg any) (*model.User, error) {
	u := &model.User{}
	err := database.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+where, arg,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrap(op, err)
	}
	return u, nil
}

// ListUsers returns all active operators.
func ListUsers(ctx context.Context, database *sql.DB) ([]model.User, error) {
	rows, err := database.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE deleted_at IS NULL ORDER BY id`,
	)
	if err != nil {
		return nil, wrap("listing users", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.DeletedAt); err != nil {
			return nil, wrap("scanning user", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("listing users", err)
	}
	return users, nil
}

// CountAdmins returns the number of active admin operators.
func CountAdmins(ctx context.Context, database *sql.DB) (int, error) {
	var n int
	err := database.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE role = ? AND deleted_at IS NULL`, model.RoleAdmin,
	).Scan(&n)
	if err != nil {
		return 0, wrap("counting admins", err)
	}
	return n, nil
}

// UpdateUserRole changes an operator's role.
func UpdateUserRole(ctx context.Context, database *sql.DB, id int64, role string) error {
	if !model.ValidRole(role) {
		return fmt.Errorf("updating user: unknown role %q", role)
	}
	return execOnActiveUser(ctx, database, "updating user",
		`UPDATE users SET role = ? WHERE id = ? AND deleted_at IS NULL`, role, id)
}

// UpdateUserPassword replaces an operator's password hash.
func UpdateUserPassword(ctx context.Context, database *sql.DB, id int64, passwordHash string) error {
	return execOnActiveUser(ctx, database, "updating user password",
		`UPDATE users SET password_hash = ? WHERE id = ? AND deleted_at IS NULL`, passwordHash, id)
}

// DeleteUser soft-deletes an operator so its username can be reused.
func DeleteUser(ctx context.Context, database *sql.DB, id int64) error {
	return execOnActiveUser(ctx, database, "deleting user",
		`UPDATE users SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, nowFunc(), id)
}

func execOnActiveUser(ctx context.Context, database *sql.DB, op, query string, args ...any) error {
	result, err := database.ExecContext(ctx, query, args...)
	if err != nil {
		return wrap(op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return wrap(op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, model.ErrNotFound)
	}
	return nil
}
