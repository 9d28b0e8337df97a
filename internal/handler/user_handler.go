package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/prn-tf/aipm-identity/internal/auth"
	"github.com/prn-tf/aipm-identity/internal/domain"
	"github.com/prn-tf/aipm-identity/internal/service"
)

// UserHandler serves the account endpoints.
type UserHandler struct {
	userService *service.UserService
	logger      zerolog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService *service.UserService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger.With().Str("handler", "user").Logger(),
	}
}

// UpdatePreferences handles PATCH /api/me/preferences.
// The body is merged into the caller's preferences; null removes a key.
func (h *UserHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		auth.WriteError(w, domain.ErrNoSessionToken)
		return
	}

	var patch domain.Preferences
	if err := decodeJSON(w, r, &patch); err != nil {
		auth.WriteError(w, err)
		return
	}

	user, err := h.userService.UpdatePreferences(r.Context(), id.User.ID, patch)
	if err != nil {
		auth.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    user.Public(),
	})
}

// List handles GET /api/admin/users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.List(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list users")
		auth.WriteError(w, err)
		return
	}

	out := make([]domain.PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"users":   out,
	})
}
