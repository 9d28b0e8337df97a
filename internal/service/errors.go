// Package service provides the business logic of the identity service:
// the user registry, the session registry and the authentication façade.
package service

import (
	"errors"
	"time"
)

// Common service errors.
// User and session failures use the sentinels of the domain package.
var (
	// Validation errors
	ErrMissingCredentials = errors.New("email and password are required")
	ErrMissingFields      = errors.New("email, name, and password are required")
	ErrInvalidPassword    = errors.New("invalid password: must be at least 8 characters")
	ErrInvalidEmail       = errors.New("invalid email format")

	// Feature switches
	ErrGuestModeDisabled    = errors.New("guest mode is disabled")
	ErrRegistrationDisabled = errors.New("registration is currently disabled")

	// General errors
	ErrInternalError = errors.New("internal server error")
)

// Clock returns the current time.
type Clock func() time.Time

// SystemClock is the default Clock.
func SystemClock() time.Time {
	return time.Now().UTC()
}
