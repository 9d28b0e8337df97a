package domain

import (
	"errors"
	"fmt"
)

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (storage, network, etc.).

var (
	// ===========================================
	// User Errors
	// ===========================================

	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates a user with the same email exists.
	ErrUserAlreadyExists = errors.New("user with this email already exists")

	// ErrUserInactive indicates the user account is disabled.
	ErrUserInactive = errors.New("user account not found or disabled")

	// ErrInvalidCredentials indicates authentication failed.
	// Unknown email, wrong password and disabled account all map to it.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrInvalidRole indicates a role outside viewer, pm and admin.
	ErrInvalidRole = errors.New("invalid role")

	// ===========================================
	// Session Errors
	// ===========================================

	// ErrSessionNotFound indicates no session is stored under the token.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired indicates the session reached its expiry.
	ErrSessionExpired = errors.New("session expired")

	// ErrNoSessionToken indicates the request carried no token at all.
	ErrNoSessionToken = errors.New("no session ID provided")

	// ===========================================
	// Authorization Errors
	// ===========================================

	// ErrInsufficientRole indicates the caller's role is below the required minimum.
	ErrInsufficientRole = errors.New("insufficient permissions")
)

// DomainError wraps a domain error with additional context.
type DomainError struct {
	// Err is the underlying domain error.
	Err error

	// Message provides additional context.
	Message string

	// Resource identifies the affected resource (e.g., user ID, email).
	Resource string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Err.Error(), e.Message, e.Resource)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError with context.
func NewDomainError(err error, message, resource string) *DomainError {
	return &DomainError{
		Err:      err,
		Message:  message,
		Resource: resource,
	}
}

// WrapError wraps an error with domain context if it's not already a DomainError.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}

	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return err
	}

	return &DomainError{
		Err:     err,
		Message: message,
	}
}
