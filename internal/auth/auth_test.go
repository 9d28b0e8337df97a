package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/aipm-identity/internal/domain"
	"github.com/prn-tf/aipm-identity/internal/service"
)

type stubValidator struct {
	users map[string]domain.PublicUser
	err   error
	calls []string
}

func (v *stubValidator) ValidateRequest(_ context.Context, token string) (*service.ValidateOutput, error) {
	v.calls = append(v.calls, token)
	if v.err != nil {
		return nil, v.err
	}
	user, ok := v.users[token]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &service.ValidateOutput{User: user, Session: domain.SessionInfo{Token: token}}, nil
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		header string
		cookie string
		want   string
	}{
		{name: "bearer", header: "Bearer abc", want: "abc"},
		{name: "bearer case insensitive", header: "bearer abc", want: "abc"},
		{name: "cookie", cookie: "xyz", want: "xyz"},
		{name: "bearer wins", header: "Bearer abc", cookie: "xyz", want: "abc"},
		{name: "other scheme falls back to cookie", header: "Basic Zm9v", cookie: "xyz", want: "xyz"},
		{name: "empty bearer", header: "Bearer   ", want: ""},
		{name: "nothing", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: tt.cookie})
			}
			assert.Equal(t, tt.want, TokenFromRequest(r, ""))
		})
	}
}

func TestSessionCookie(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)

	rec := httptest.NewRecorder()
	SetSessionCookie(rec, r, "", "tok", time.Now().Add(time.Hour))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, DefaultCookieName, cookies[0].Name)
	assert.Equal(t, "tok", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)

	rec = httptest.NewRecorder()
	ClearSessionCookie(rec, r, "custom")
	cookies = rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "custom", cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestNewAuthError(t *testing.T) {
	tests := []struct {
		err    error
		code   ErrorCode
		status int
		login  bool
	}{
		{domain.ErrNoSessionToken, CodeLoginRequired, http.StatusUnauthorized, true},
		{domain.ErrSessionNotFound, CodeSessionNotFound, http.StatusUnauthorized, true},
		{domain.ErrSessionExpired, CodeSessionExpired, http.StatusUnauthorized, true},
		{domain.ErrUserInactive, CodeUserInactive, http.StatusUnauthorized, true},
		{domain.ErrInvalidCredentials, CodeInvalidCredentials, http.StatusUnauthorized, false},
		{domain.ErrInsufficientRole, CodeInsufficientPermissions, http.StatusForbidden, false},
		{service.ErrRegistrationDisabled, CodeRegistrationDisabled, http.StatusForbidden, false},
		{service.ErrGuestModeDisabled, CodeGuestModeDisabled, http.StatusBadRequest, false},
		{service.ErrMissingFields, CodeInvalidRequest, http.StatusBadRequest, false},
		{domain.NewDomainError(domain.ErrUserAlreadyExists, "", "a@example.com"), CodeConflict, http.StatusConflict, false},
		{domain.NewDomainError(domain.ErrUserNotFound, "", "u1"), CodeNotFound, http.StatusNotFound, false},
		{fmt.Errorf("%w: disk on fire", service.ErrInternalError), CodeInternal, http.StatusInternalServerError, false},
		{errors.New("boom"), CodeInternal, http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.code)+"/"+tt.err.Error(), func(t *testing.T) {
			got := NewAuthError(tt.err)
			assert.Equal(t, tt.code, got.Code)
			assert.Equal(t, tt.status, got.HTTPStatus)
			assert.Equal(t, tt.login, got.LoginRequired)
		})
	}
}

func TestNewAuthError_DoesNotLeakInternals(t *testing.T) {
	got := NewAuthError(fmt.Errorf("%w: open /var/lib/aipm/users.json: permission denied", service.ErrInternalError))
	assert.Equal(t, "internal server error", got.Message)
}

func TestRequireSession(t *testing.T) {
	validator := &stubValidator{users: map[string]domain.PublicUser{
		"good": {ID: "u1", Role: domain.RoleProductManager},
	}}

	var seen *Identity
	handler := RequireSession(validator, "")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("no token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decodeError(t, rec)
		assert.False(t, body.Success)
		assert.True(t, body.LoginRequired)
		assert.Empty(t, validator.calls, "validator must not be consulted without a token")
	})

	t.Run("unknown token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer bad")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, CodeSessionNotFound, decodeError(t, rec).Code)
	})

	t.Run("valid cookie", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "good"})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		require.NotNil(t, seen)
		assert.Equal(t, "u1", seen.User.ID)
		assert.Equal(t, "good", seen.Token)
	})
}

func TestRequireSession_BackendFailure(t *testing.T) {
	validator := &stubValidator{err: fmt.Errorf("%w: boom", service.ErrInternalError)}
	handler := RequireSession(validator, "")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer any")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name     string
		identity *Identity
		min      domain.Role
		want     int
	}{
		{name: "no identity", min: domain.RoleViewer, want: http.StatusUnauthorized},
		{name: "viewer below pm", identity: &Identity{User: domain.PublicUser{Role: domain.RoleViewer}}, min: domain.RoleProductManager, want: http.StatusForbidden},
		{name: "pm meets pm", identity: &Identity{User: domain.PublicUser{Role: domain.RoleProductManager}}, min: domain.RoleProductManager, want: http.StatusOK},
		{name: "admin above pm", identity: &Identity{User: domain.PublicUser{Role: domain.RoleAdmin}}, min: domain.RoleProductManager, want: http.StatusOK},
		{name: "unknown held role", identity: &Identity{User: domain.PublicUser{Role: "root"}}, min: domain.RoleViewer, want: http.StatusForbidden},
		{name: "unknown required role", identity: &Identity{User: domain.PublicUser{Role: domain.RoleAdmin}}, min: "superuser", want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.identity != nil {
				r = r.WithContext(WithIdentity(r.Context(), tt.identity))
			}
			rec := httptest.NewRecorder()
			RequireRole(tt.min)(ok).ServeHTTP(rec, r)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusForbidden {
				assert.Equal(t, "insufficient permissions", decodeError(t, rec).Error)
			}
		})
	}
}
