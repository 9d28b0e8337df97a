// Package auth provides session authentication for the HTTP API.
package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prn-tf/aipm-identity/internal/domain"
	"github.com/prn-tf/aipm-identity/internal/service"
)

// ErrorCode is the machine-readable code of an API error.
type ErrorCode string

const (
	// CodeLoginRequired maps to HTTP 401
	CodeLoginRequired ErrorCode = "login_required"

	// CodeSessionNotFound maps to HTTP 401
	CodeSessionNotFound ErrorCode = "session_not_found"

	// CodeSessionExpired maps to HTTP 401
	CodeSessionExpired ErrorCode = "session_expired"

	// CodeUserInactive maps to HTTP 401
	CodeUserInactive ErrorCode = "user_inactive"

	// CodeInvalidCredentials maps to HTTP 401
	CodeInvalidCredentials ErrorCode = "invalid_credentials"

	// CodeInsufficientPermissions maps to HTTP 403
	CodeInsufficientPermissions ErrorCode = "insufficient_permissions"

	// CodeRegistrationDisabled maps to HTTP 403
	CodeRegistrationDisabled ErrorCode = "registration_disabled"

	// CodeGuestModeDisabled maps to HTTP 400
	CodeGuestModeDisabled ErrorCode = "guest_mode_disabled"

	// CodeInvalidRequest maps to HTTP 400
	CodeInvalidRequest ErrorCode = "invalid_request"

	// CodeNotFound maps to HTTP 404
	CodeNotFound ErrorCode = "not_found"

	// CodeConflict maps to HTTP 409
	CodeConflict ErrorCode = "conflict"

	// CodeInternal maps to HTTP 500
	CodeInternal ErrorCode = "internal_error"
)

// AuthError is an error ready to be written as an API response.
type AuthError struct {
	// Code is the machine-readable error code.
	Code ErrorCode

	// Message is safe to show to the client.
	Message string

	// HTTPStatus is the HTTP status code.
	HTTPStatus int

	// LoginRequired tells the client to authenticate again.
	LoginRequired bool
}

func (e *AuthError) Error() string {
	return string(e.Code) + ": " + e.Message
}

// NewAuthError maps a domain or service error to its API form.
// Unknown errors become a generic 500 so internal details never leak.
func NewAuthError(err error) *AuthError {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr
	}

	switch {
	case errors.Is(err, domain.ErrNoSessionToken):
		return &AuthError{
			Code:          CodeLoginRequired,
			Message:       "Authentication required",
			HTTPStatus:    http.StatusUnauthorized,
			LoginRequired: true,
		}

	case errors.Is(err, domain.ErrSessionNotFound):
		return &AuthError{
			Code:          CodeSessionNotFound,
			Message:       domain.ErrSessionNotFound.Error(),
			HTTPStatus:    http.StatusUnauthorized,
			LoginRequired: true,
		}

	case errors.Is(err, domain.ErrSessionExpired):
		return &AuthError{
			Code:          CodeSessionExpired,
			Message:       domain.ErrSessionExpired.Error(),
			HTTPStatus:    http.StatusUnauthorized,
			LoginRequired: true,
		}

	case errors.Is(err, domain.ErrUserInactive):
		return &AuthError{
			Code:          CodeUserInactive,
			Message:       domain.ErrUserInactive.Error(),
			HTTPStatus:    http.StatusUnauthorized,
			LoginRequired: true,
		}

	case errors.Is(err, domain.ErrInvalidCredentials):
		return &AuthError{
			Code:       CodeInvalidCredentials,
			Message:    domain.ErrInvalidCredentials.Error(),
			HTTPStatus: http.StatusUnauthorized,
		}

	case errors.Is(err, domain.ErrInsufficientRole):
		return &AuthError{
			Code:       CodeInsufficientPermissions,
			Message:    domain.ErrInsufficientRole.Error(),
			HTTPStatus: http.StatusForbidden,
		}

	case errors.Is(err, service.ErrRegistrationDisabled):
		return &AuthError{
			Code:       CodeRegistrationDisabled,
			Message:    service.ErrRegistrationDisabled.Error(),
			HTTPStatus: http.StatusForbidden,
		}

	case errors.Is(err, service.ErrGuestModeDisabled):
		return &AuthError{
			Code:       CodeGuestModeDisabled,
			Message:    service.ErrGuestModeDisabled.Error(),
			HTTPStatus: http.StatusBadRequest,
		}

	case errors.Is(err, service.ErrMissingCredentials),
		errors.Is(err, service.ErrMissingFields),
		errors.Is(err, service.ErrInvalidPassword),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, domain.ErrInvalidRole):
		return &AuthError{
			Code:       CodeInvalidRequest,
			Message:    err.Error(),
			HTTPStatus: http.StatusBadRequest,
		}

	case errors.Is(err, domain.ErrUserAlreadyExists):
		return &AuthError{
			Code:       CodeConflict,
			Message:    domain.ErrUserAlreadyExists.Error(),
			HTTPStatus: http.StatusConflict,
		}

	case errors.Is(err, domain.ErrUserNotFound):
		return &AuthError{
			Code:       CodeNotFound,
			Message:    domain.ErrUserNotFound.Error(),
			HTTPStatus: http.StatusNotFound,
		}

	default:
		return &AuthError{
			Code:       CodeInternal,
			Message:    service.ErrInternalError.Error(),
			HTTPStatus: http.StatusInternalServerError,
		}
	}
}

// ErrorResponse is the JSON body of every failed API call.
type ErrorResponse struct {
	Success       bool      `json:"success"`
	Error         string    `json:"error"`
	Code          ErrorCode `json:"code"`
	LoginRequired bool      `json:"login_required,omitempty"`
}

// WriteError writes err as a JSON API error.
func WriteError(w http.ResponseWriter, err error) {
	authErr := NewAuthError(err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(authErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Success:       false,
		Error:         authErr.Message,
		Code:          authErr.Code,
		LoginRequired: authErr.LoginRequired,
	})
}
