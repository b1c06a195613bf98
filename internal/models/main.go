// Package models defines the core data structures for users and sessions.
package models

import "time"

// User represents an application user with credentials.
type User struct {
	// ID is the unique identifier for the user, assigned at creation.
	ID string
	// Username is the login name chosen by the user. Unique, never renamed.
	Username string
	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash []byte
	// Email is an optional contact address, not used for login.
	Email string
	// CreatedAt is set once when the record is inserted.
	CreatedAt time.Time
	// IsActive gates authentication; inactive users are invisible to lookups.
	IsActive bool
}

// Identity is the verified caller attached to a request context after
// the session token has been validated.
type Identity struct {
	// UserID is the unique user identifier carried in the token claims.
	UserID string
	// Username is the login name carried in the token claims.
	Username string
}
