package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/prn-tf/aipm-identity/internal/domain"
	"github.com/prn-tf/aipm-identity/internal/metrics"
)

// AuthServiceConfig holds the feature switches of the façade.
type AuthServiceConfig struct {
	AllowRegistration bool
	EnableGuestMode   bool

	// DefaultRole is assigned to self-registered users.
	DefaultRole domain.Role
}

// AuthService composes the user and session registries into the operations
// used by the HTTP and CLI entry points.
type AuthService struct {
	users    *UserService
	sessions *SessionService
	cfg      AuthServiceConfig
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(users *UserService, sessions *SessionService, cfg AuthServiceConfig, m *metrics.Metrics, logger zerolog.Logger) *AuthService {
	if cfg.DefaultRole == "" {
		cfg.DefaultRole = domain.RoleProductManager
	}
	return &AuthService{
		users:    users,
		sessions: sessions,
		cfg:      cfg,
		metrics:  m,
		logger:   logger.With().Str("service", "auth").Logger(),
	}
}

// GuestModeEnabled reports whether guest sessions may be issued.
func (s *AuthService) GuestModeEnabled() bool {
	return s.cfg.EnableGuestMode
}

// LoginInput contains the data needed to log in.
type LoginInput struct {
	Email         string
	Password      string
	SourceAddress string
	ClientAgent   string
}

// LoginOutput is returned by Login and Guest.
type LoginOutput struct {
	Token   string
	User    domain.PublicUser
	Session domain.SessionInfo
}

// Login verifies credentials and opens a session.
// Every credential failure is reported as domain.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginOutput, error) {
	if strings.TrimSpace(input.Email) == "" || input.Password == "" {
		return nil, ErrMissingCredentials
	}

	user, err := s.users.Verify(ctx, input.Email, input.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			s.metrics.LoginAttempt(metrics.ResultFailure)
		} else {
			s.metrics.LoginAttempt(metrics.ResultError)
		}
		return nil, err
	}

	session, err := s.sessions.Open(ctx, OpenSessionInput{
		UserID:        user.ID,
		SourceAddress: input.SourceAddress,
		ClientAgent:   input.ClientAgent,
	})
	if err != nil {
		s.metrics.LoginAttempt(metrics.ResultError)
		return nil, err
	}

	if err := s.users.TouchLogin(ctx, user.ID); err != nil {
		s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("failed to record last login")
	}

	s.metrics.LoginAttempt(metrics.ResultSuccess)
	s.logger.Info().
		Str("user_id", user.ID).
		Str("source_address", input.SourceAddress).
		Msg("user logged in")

	return &LoginOutput{
		Token:   session.Token,
		User:    user.Public(),
		Session: session.Info(),
	}, nil
}

// LogoutOutput is returned by Logout.
type LogoutOutput struct {
	// Closed is false when there was no session to delete.
	Closed bool
}

// Logout deletes the session for token. Logging out twice is not an error.
func (s *AuthService) Logout(ctx context.Context, token string) (*LogoutOutput, error) {
	closed, err := s.sessions.Close(ctx, token)
	if err != nil {
		return nil, err
	}
	if closed {
		s.logger.Debug().Msg("session logged out")
	}
	return &LogoutOutput{Closed: closed}, nil
}

// ValidateOutput is returned by ValidateRequest.
type ValidateOutput struct {
	User    domain.PublicUser
	Session domain.SessionInfo
}

// ValidateRequest resolves token to its user.
//
// Failures: domain.ErrNoSessionToken, domain.ErrSessionNotFound,
// domain.ErrSessionExpired, or domain.ErrUserInactive when the owning user is
// gone or disabled. Guest identities have no user record and count as active.
func (s *AuthService) ValidateRequest(ctx context.Context, token string) (*ValidateOutput, error) {
	if token == "" {
		return nil, domain.ErrNoSessionToken
	}

	session, err := s.sessions.Validate(ctx, token)
	if err != nil {
		return nil, err
	}

	if session.IsGuest() {
		return &ValidateOutput{
			User:    domain.GuestUser(session.UserID),
			Session: session.Info(),
		}, nil
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserInactive
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.ErrUserInactive
	}

	return &ValidateOutput{
		User:    user.Public(),
		Session: session.Info(),
	}, nil
}

// Guest opens a viewer session for a fresh guest identity.
func (s *AuthService) Guest(ctx context.Context, sourceAddress, clientAgent string) (*LoginOutput, error) {
	if !s.cfg.EnableGuestMode {
		return nil, ErrGuestModeDisabled
	}

	session, err := s.sessions.OpenGuest(ctx, sourceAddress, clientAgent)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("guest_id", session.UserID).Msg("guest session opened")

	return &LoginOutput{
		Token:   session.Token,
		User:    domain.GuestUser(session.UserID),
		Session: session.Info(),
	}, nil
}

// RegisterInput contains the data needed to self-register.
type RegisterInput struct {
	Email    string
	Name     string
	Password string
}

// RegisterOutput is returned by Register.
type RegisterOutput struct {
	User domain.PublicUser
}

// Register creates an account with the configured default role.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*RegisterOutput, error) {
	if !s.cfg.AllowRegistration {
		return nil, ErrRegistrationDisabled
	}
	if strings.TrimSpace(input.Email) == "" || strings.TrimSpace(input.Name) == "" || input.Password == "" {
		return nil, ErrMissingFields
	}

	out, err := s.users.Create(ctx, CreateUserInput{
		Email:    input.Email,
		Name:     input.Name,
		Password: input.Password,
		Role:     s.cfg.DefaultRole,
	})
	if err != nil {
		return nil, err
	}
	return &RegisterOutput{User: out.User.Public()}, nil
}

// SessionsForUser returns the caller-facing metadata of a user's sessions,
// most recently active first.
func (s *AuthService) SessionsForUser(ctx context.Context, userID string) ([]domain.SessionInfo, error) {
	sessions, err := s.sessions.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	infos := make([]domain.SessionInfo, 0, len(sessions))
	for _, session := range sessions {
		infos = append(infos, session.Info())
	}
	return infos, nil
}
