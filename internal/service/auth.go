// Package service provides authentication business logic, delegating
// persistence to a UserRepository.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ayakovlev/consultgate/internal/models"
	"github.com/ayakovlev/consultgate/internal/repository"
)

// ErrDuplicateUsername is returned by Register when the username is taken.
var ErrDuplicateUsername = repository.ErrDuplicateUsername

// ErrInvalidCredentials is the single failure returned for both an
// unknown username and a wrong password, so responses cannot be used to
// enumerate usernames.
var ErrInvalidCredentials = errors.New("invalid username or password")

// ErrUserNotFound is returned by GetUser when no active record exists.
var ErrUserNotFound = repository.ErrUserNotFound

// UserRepository defines the persistence operations required by the
// authentication service.
type UserRepository interface {
	// CreateUser inserts a new user record, returning
	// repository.ErrDuplicateUsername on a username collision.
	CreateUser(ctx context.Context, user *models.User) error
	// FindByUsername returns the active user with the given username,
	// or repository.ErrUserNotFound.
	FindByUsername(ctx context.Context, username string) (*models.User, error)
}

// Auth implements registration and credential verification by delegating
// to a UserRepository.
type Auth struct {
	repo UserRepository
	cost int
}

// NewAuth constructs an Auth service. cost is the bcrypt cost factor for
// new passwords; out-of-range values fall back to bcrypt.DefaultCost.
func NewAuth(repo UserRepository, cost int) *Auth {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Auth{repo: repo, cost: cost}
}

// Register hashes the password and creates a new active user record.
// Returns ErrDuplicateUsername when the username is already taken.
func (s *Auth) Register(ctx context.Context, username, password, email string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Email:        email,
		CreatedAt:    time.Now().UTC(),
		IsActive:     true,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			return nil, ErrDuplicateUsername
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Authenticate verifies the password against the stored hash and returns
// the user on success. Unknown usernames and wrong passwords both yield
// ErrInvalidCredentials.
func (s *Auth) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.repo.FindByUsername(ctx, username)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// GetUser returns the active user with the given username for profile
// lookups. Returns ErrUserNotFound when no such record exists.
func (s *Auth) GetUser(ctx context.Context, username string) (*models.User, error) {
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}
