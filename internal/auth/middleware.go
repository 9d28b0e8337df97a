package auth

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/prn-tf/aipm-identity/internal/domain"
	"github.com/prn-tf/aipm-identity/internal/service"
)

// Validator resolves a session token to its user.
type Validator interface {
	ValidateRequest(ctx context.Context, token string) (*service.ValidateOutput, error)
}

// Identity is the authenticated caller of a request.
type Identity struct {
	Token   string
	User    domain.PublicUser
	Session domain.SessionInfo
}

type identityContextKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFrom retrieves the Identity stored by RequireSession.
func IdentityFrom(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*Identity)
	return id, ok && id != nil
}

// RequireSession rejects requests without a valid session and stores the
// caller's Identity in the request context otherwise.
func RequireSession(validator Validator, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r, cookieName)
			if token == "" {
				WriteError(w, domain.ErrNoSessionToken)
				return
			}

			out, err := validator.ValidateRequest(r.Context(), token)
			if err != nil {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("session authentication failed")
				WriteError(w, err)
				return
			}

			id := &Identity{Token: token, User: out.User, Session: out.Session}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireRole rejects callers whose role is below min.
// It must run after RequireSession.
func RequireRole(min domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				WriteError(w, domain.ErrNoSessionToken)
				return
			}
			if !id.User.Role.Satisfies(min) {
				log.Debug().
					Str("user_id", id.User.ID).
					Str("role", id.User.Role.String()).
					Str("required", min.String()).
					Msg("insufficient role")
				WriteError(w, domain.ErrInsufficientRole)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
