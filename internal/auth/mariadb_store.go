package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
)

// mysqlErrDuplicateEntry is the MySQL/MariaDB error number for a unique
// key violation. The users table has a unique index on email, so the
// database enforces the uniqueness invariant even under concurrent inserts.
const mysqlErrDuplicateEntry = 1062

// MariaDBStore implements UserStore with hand-written MariaDB queries.
// Unlike MemoryStore it survives restarts; the schema lives in migrations/.
type MariaDBStore struct {
	db *sql.DB
}

// NewMariaDBStore creates a user store backed by the given DB pool.
func NewMariaDBStore(db *sql.DB) *MariaDBStore {
	return &MariaDBStore{db: db}
}

// FindByEmail retrieves a user by email. Emails are stored lowercased, so
// normalizing the input makes the lookup case-insensitive.
func (s *MariaDBStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT id, email, password_hash, created_at FROM users WHERE email = ?`

	user := &User{}
	err := s.db.QueryRowContext(ctx, query, normalizeEmail(email)).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user by email: %w", err)
	}

	return user, nil
}

// FindByID retrieves a user by their UUID.
func (s *MariaDBStore) FindByID(ctx context.Context, id string) (*User, error) {
	query := `SELECT id, email, password_hash, created_at FROM users WHERE id = ?`

	user := &User{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user by id: %w", err)
	}

	return user, nil
}

// EmailExists returns true if a user with the given email already exists.
func (s *MariaDBStore) EmailExists(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, normalizeEmail(email)).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking email existence: %w", err)
	}

	return exists, nil
}

// Create inserts a new user row. The unique index on email makes the insert
// itself the atomic uniqueness check; a duplicate-entry error maps to
// ErrEmailTaken.
func (s *MariaDBStore) Create(ctx context.Context, email, passwordHash string) (*User, error) {
	user := &User{
		ID:           uuid.NewString(),
		Email:        normalizeEmail(email),
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	query := `INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query, user.ID, user.Email, user.PasswordHash, user.CreatedAt)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrDuplicateEntry {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("inserting user: %w", err)
	}

	return user, nil
}

// UpdatePasswordHash sets a new password hash for a user.
func (s *MariaDBStore) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE users SET password_hash = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, passwordHash, id)
	if err != nil {
		return fmt.Errorf("updating password hash: %w", err)
	}

	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrUserNotFound
	}

	return nil
}

// Delete removes a user row.
func (s *MariaDBStore) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM users WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}

	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrUserNotFound
	}

	return nil
}
