package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/prn-tf/aipm-identity/internal/auth"
	"github.com/prn-tf/aipm-identity/internal/domain"
	"github.com/prn-tf/aipm-identity/internal/service"
)

// AuthHandler serves the /api/auth endpoints.
type AuthHandler struct {
	authService *service.AuthService
	cookieName  string
	logger      zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService, cookieName string, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cookieName:  cookieName,
		logger:      logger.With().Str("handler", "auth").Logger(),
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Success   bool               `json:"success"`
	SessionID string             `json:"session_id"`
	User      domain.PublicUser  `json:"user"`
	Session   domain.SessionInfo `json:"session"`
}

type statusResponse struct {
	Authenticated      bool                `json:"authenticated"`
	User               *domain.PublicUser  `json:"user,omitempty"`
	Session            *domain.SessionInfo `json:"session,omitempty"`
	Error              string              `json:"error,omitempty"`
	GuestModeAvailable *bool               `json:"guest_mode_available,omitempty"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		auth.WriteError(w, err)
		return
	}

	output, err := h.authService.Login(r.Context(), service.LoginInput{
		Email:         req.Email,
		Password:      req.Password,
		SourceAddress: clientAddress(r),
		ClientAgent:   r.UserAgent(),
	})
	if err != nil {
		h.logger.Debug().Err(err).Msg("login failed")
		auth.WriteError(w, err)
		return
	}

	h.writeSession(w, r, output)
}

// Logout handles POST /api/auth/logout. It always succeeds for the client.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := auth.TokenFromRequest(r, h.cookieName); token != "" {
		if _, err := h.authService.Logout(r.Context(), token); err != nil {
			h.logger.Error().Err(err).Msg("failed to close session on logout")
		}
	}

	auth.ClearSessionCookie(w, r, h.cookieName)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Logged out successfully",
	})
}

// Status handles GET /api/auth/status.
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	guestMode := h.authService.GuestModeEnabled()

	token := auth.TokenFromRequest(r, h.cookieName)
	if token == "" {
		writeJSON(w, http.StatusOK, statusResponse{GuestModeAvailable: &guestMode})
		return
	}

	output, err := h.authService.ValidateRequest(r.Context(), token)
	if err != nil {
		writeJSON(w, http.StatusOK, statusResponse{
			Error:              auth.NewAuthError(err).Message,
			GuestModeAvailable: &guestMode,
		})
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Authenticated: true,
		User:          &output.User,
		Session:       &output.Session,
	})
}

// Guest handles POST /api/auth/guest.
func (h *AuthHandler) Guest(w http.ResponseWriter, r *http.Request) {
	output, err := h.authService.Guest(r.Context(), clientAddress(r), r.UserAgent())
	if err != nil {
		auth.WriteError(w, err)
		return
	}

	h.writeSession(w, r, output)
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		auth.WriteError(w, err)
		return
	}

	output, err := h.authService.Register(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		h.logger.Debug().Err(err).Msg("registration failed")
		auth.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"user":    output.User,
	})
}

// Sessions handles GET /api/auth/sessions.
func (h *AuthHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		auth.WriteError(w, domain.ErrNoSessionToken)
		return
	}

	sessions, err := h.authService.SessionsForUser(r.Context(), id.User.ID)
	if err != nil {
		auth.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"sessions": sessions,
	})
}

func (h *AuthHandler) writeSession(w http.ResponseWriter, r *http.Request, output *service.LoginOutput) {
	auth.SetSessionCookie(w, r, h.cookieName, output.Token, output.Session.ExpiresAt)
	writeJSON(w, http.StatusOK, sessionResponse{
		Success:   true,
		SessionID: output.Token,
		User:      output.User,
		Session:   output.Session,
	})
}

