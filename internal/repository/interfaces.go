// Package repository defines data access interfaces for the identity service.
// These interfaces abstract the record store, allowing for different backends
// (JSON files, SQLite, PostgreSQL, S3) while keeping the service layer clean.
package repository

import (
	"context"
	"time"

	"github.com/prn-tf/aipm-identity/internal/domain"
)

// =============================================================================
// User Repository
// =============================================================================

// UserRepository defines the interface for user data access.
type UserRepository interface {
	// Create stores a new user.
	// Returns ErrAlreadyExists if any user, active or not, has the same
	// normalized email, or if the identifier is taken.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by case-insensitive email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// List returns all users, oldest first.
	List(ctx context.Context) ([]*domain.User, error)

	// Count returns the number of stored users.
	Count(ctx context.Context) (int, error)

	// Update applies fn to the stored user and persists the result.
	// Nothing is written when fn returns an error.
	Update(ctx context.Context, id string, fn func(*domain.User) error) (*domain.User, error)
}

// =============================================================================
// Session Repository
// =============================================================================

// SessionRepository defines the interface for session data access.
//
// Every mutating call drops sessions that are inactive or expired at now
// before persisting.
type SessionRepository interface {
	// Create stores a new session. When maxPerUser is positive, the least
	// recently active sessions of the same user are evicted so that at most
	// maxPerUser remain. Returns the evicted tokens.
	Create(ctx context.Context, session *domain.Session, now time.Time, maxPerUser int) ([]string, error)

	// Get returns the stored record for token without filtering.
	Get(ctx context.Context, token string) (*domain.Session, error)

	// Touch refreshes the last-active time of a usable session.
	// Returns ErrNotFound when the token is unknown or inactive, and ErrExpired
	// (after deleting the record) when it has expired.
	Touch(ctx context.Context, token string, now time.Time) (*domain.Session, error)

	// Delete removes a session. Returns false if nothing was removed.
	Delete(ctx context.Context, token string, now time.Time) (bool, error)

	// DeleteByUserID removes every session of a user and returns how many.
	DeleteByUserID(ctx context.Context, userID string, now time.Time) (int, error)

	// ListByUserID returns the usable sessions of a user,
	// most recently active first.
	ListByUserID(ctx context.Context, userID string, now time.Time) ([]*domain.Session, error)

	// List returns every usable session, most recently active first.
	List(ctx context.Context, now time.Time) ([]*domain.Session, error)

	// DeleteExpired removes inactive and expired sessions and returns how many.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
