// ABOUTME: SQLite implementation of user persistence
// ABOUTME: Covers account creation, lookup by id/username, and listing

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// CreateUser inserts a new user and assigns its ID and creation time.
// Returns ErrDuplicateUser if the username is taken.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	if user.UserType == "" {
		user.UserType = UserTypeStudent
	}
	if !user.UserType.Valid() {
		return fmt.Errorf("invalid user type %q", user.UserType)
	}

	user.CreatedAt = now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, email, user_type, password_hash, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		user.Username, user.Email, string(user.UserType), user.PasswordHash,
		user.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateUser
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	user.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading user id: %w", err)
	}

	s.logger.Debug("user created", "user_id", user.ID, "username", user.Username)
	return nil
}

// GetUser retrieves a user by ID
func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, email, user_type, password_hash, created_at
		 FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByUsername retrieves a user by username
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, email, user_type, password_hash, created_at
		 FROM users WHERE username = ?`, username)
	return scanUser(row)
}

// ListUsers returns all users ordered by username
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, email, user_type, password_hash, created_at
		 FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []*User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating user rows: %w", err)
	}
	return users, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan helpers
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var user User
	var userType, createdAt string

	err := row.Scan(&user.ID, &user.Username, &user.Email, &userType,
		&user.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user row: %w", err)
	}

	user.UserType = UserType(userType)
	user.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
