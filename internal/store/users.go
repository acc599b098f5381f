package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/gantrydb/gantry/internal/model"
)

// CreateUser inserts a new admin user. The ID and CreatedAt fields on u are
// populated after a successful insert.
func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	u.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO users (username, email, password_hash, is_active, is_admin, created_at)
		VALUES (:username, :email, :password_hash, :is_active, :is_admin, :created_at)`

	result, err := s.db.NamedExecContext(ctx, q, u)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	u.ID = lastInsertID(ctx, s, result, "users")
	return nil
}

// GetUserByID fetches a user by primary key.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := s.db.GetContext(ctx, &u, s.rebind(`SELECT * FROM users WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByUsername fetches a user by unique username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	err := s.db.GetContext(ctx, &u, s.rebind(`SELECT * FROM users WHERE username = ?`), username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsers returns all users ordered by creation time.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := s.db.SelectContext(ctx, &users, `SELECT * FROM users ORDER BY created_at, id`); err != nil {
		return nil, err
	}
	return users, nil
}

// SetUserActive flips the active flag on a user.
func (s *Store) SetUserActive(ctx context.Context, id int64, active bool) error {
	result, err := s.db.ExecContext(ctx, s.rebind(`UPDATE users SET is_active = ? WHERE id = ?`), active, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// UpdateUserLastLogin stamps the user's last successful login time.
func (s *Store) UpdateUserLastLogin(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`UPDATE users SET last_login_at = ? WHERE id = ?`), time.Now().UTC(), id)
	return err
}

// DeleteUser removes a user permanently.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// isUniqueViolation recognizes unique-constraint errors across both dialects.
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // sqlite
		strings.Contains(msg, "duplicate key value") // postgres
}

// requireRow converts a zero-row update/delete into ErrNotFound.
func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// lastInsertID retrieves the generated primary key. SQLite supports
// LastInsertId directly; PostgreSQL requires a currval round-trip, which is
// acceptable off the hot path (admin operations only).
func lastInsertID(ctx context.Context, s *Store, result sql.Result, table string) int64 {
	if s.dialect != "postgres" {
		id, _ := result.LastInsertId()
		return id
	}
	var id int64
	_ = s.db.GetContext(ctx, &id, `SELECT currval(pg_get_serial_sequence('`+table+`', 'id'))`)
	return id
}
