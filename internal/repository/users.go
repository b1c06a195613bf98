// Package repository provides persistence implementations for the user store.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/ayakovlev/consultgate/internal/models"
)

// ErrDuplicateUsername is returned when an insert collides with an
// existing username. The unique constraint in the database is the sole
// source of this signal; callers must not pre-check existence.
var ErrDuplicateUsername = errors.New("username already exists")

// ErrUserNotFound is returned when no active user matches a lookup.
var ErrUserNotFound = errors.New("user not found")

// uniqueViolation is the PostgreSQL error code for unique_violation.
const uniqueViolation = "23505"

// PostgresUserRepository implements the user store using a PostgreSQL database.
type PostgresUserRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresUserRepository creates a new PostgresUserRepository with the
// given database connection. db must be a valid *sql.DB connected to a
// PostgreSQL instance.
func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{DB: db}
}

// CreateUser inserts a new user record. If the username is already taken
// it returns ErrDuplicateUsername; any other failure is returned wrapped.
func (r *PostgresUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	_, err := r.DB.ExecContext(
		ctx,
		`INSERT INTO users (id, username, password_hash, email, created_at, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID,
		user.Username,
		string(user.PasswordHash),
		nullableString(user.Email),
		user.CreatedAt,
		user.IsActive,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateUsername
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// FindByUsername returns the active user with the given username, or
// ErrUserNotFound. Inactive records are invisible to this lookup.
func (r *PostgresUserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var (
		user  models.User
		email sql.NullString
	)
	err := r.DB.QueryRowContext(
		ctx,
		`SELECT id, username, password_hash, email, created_at, is_active
		 FROM users WHERE username = $1 AND is_active = TRUE`,
		username,
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &email, &user.CreatedAt, &user.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	user.Email = email.String
	return &user, nil
}

// nullableString maps an empty string to SQL NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
