package database

import (
	"context"
	"fmt"
)

const userColumns = `id, username, password_hash, full_name, role, secretariats, active, created_at, updated_at`

func scanUser(row scanner) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.FullName, &u.Role,
		&u.Secretariats, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// CreateUserParams holds the columns of a new user.
type CreateUserParams struct {
	Username     string
	PasswordHash string
	FullName     string
	Role         string
	Secretariats string
	Active       bool
}

// CreateUser inserts a user and returns the stored row.
func (q *Queries) CreateUser(ctx context.Context, p CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO users (username, password_hash, full_name, role, secretariats, active)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING `+userColumns,
		p.Username, p.PasswordHash, p.FullName, p.Role, p.Secretariats, p.Active,
	)
	u, err := scanUser(row)
	if err != nil {
		return User{}, fmt.Errorf("create user %s: %w", p.Username, err)
	}
	return u, nil
}

// EnsureUser inserts a user unless the username exists. It reports whether
// a row was written.
func (q *Queries) EnsureUser(ctx context.Context, p CreateUserParams) (bool, error) {
	tag, err := q.db.Exec(ctx,
		`INSERT INTO users (username, password_hash, full_name, role, secretariats, active)
		VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (username) DO NOTHING`,
		p.Username, p.PasswordHash, p.FullName, p.Role, p.Secretariats, p.Active,
	)
	if err != nil {
		return false, fmt.Errorf("ensure user %s: %w", p.Username, err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetUserByUsername returns a user or ErrNotFound.
func (q *Queries) GetUserByUsername(ctx context.Context, username string) (User, error) {
	u, err := scanUser(q.db.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE username = $1", username))
	if err != nil {
		return User{}, notFound(err)
	}
	return u, nil
}

// GetUserByID returns a user or ErrNotFound.
func (q *Queries) GetUserByID(ctx context.Context, id int64) (User, error) {
	u, err := scanUser(q.db.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if err != nil {
		return User{}, notFound(err)
	}
	return u, nil
}

// ListUsers returns every user ordered by username.
func (q *Queries) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := q.db.Query(ctx, "SELECT "+userColumns+" FROM users ORDER BY username")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUserParams holds the mutable user columns.
type UpdateUserParams struct {
	ID           int64
	FullName     string
	Role         string
	Secretariats string
	Active       bool
	PasswordHash *string // nil keeps the current password
}

// UpdateUser rewrites the mutable columns of a user in one statement.
func (q *Queries) UpdateUser(ctx context.Context, p UpdateUserParams) (User, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE users SET full_name = $2, role = $3, secretariats = $4, active = $5,
			password_hash = COALESCE($6, password_hash), updated_at = now()
		WHERE id = $1 RETURNING `+userColumns,
		p.ID, p.FullName, p.Role, p.Secretariats, p.Active, p.PasswordHash,
	)
	u, err := scanUser(row)
	if err != nil {
		return User{}, notFound(err)
	}
	return u, nil
}

// SetUserPassword replaces a user's password hash.
func (q *Queries) SetUserPassword(ctx context.Context, id int64, hash string) error {
	tag, err := q.db.Exec(ctx, "UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1", id, hash)
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
