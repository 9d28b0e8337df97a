package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/aipm-identity/internal/domain"
	"github.com/prn-tf/aipm-identity/internal/metrics"
	"github.com/prn-tf/aipm-identity/internal/pkg/crypto"
	"github.com/prn-tf/aipm-identity/internal/repository"
)

// SessionServiceConfig configures a SessionService.
type SessionServiceConfig struct {
	// SessionTimeout is the lifetime of authenticated sessions.
	// Guest sessions live a quarter of it.
	SessionTimeout time.Duration

	// MaxSessionsPerUser caps concurrent sessions of one user when
	// EnforceMaxSessions is set; the least recently active are evicted.
	MaxSessionsPerUser int
	EnforceMaxSessions bool
}

// SessionService manages the session lifecycle:
// created, then touched on every validation, then expired or logged out.
type SessionService struct {
	sessionRepo repository.SessionRepository
	cfg         SessionServiceConfig
	now         Clock
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(sessionRepo repository.SessionRepository, cfg SessionServiceConfig, m *metrics.Metrics, logger zerolog.Logger) *SessionService {
	return &SessionService{
		sessionRepo: sessionRepo,
		cfg:         cfg,
		now:         SystemClock,
		metrics:     m,
		logger:      logger.With().Str("service", "session").Logger(),
	}
}

// WithClock replaces the time source. Intended for tests.
func (s *SessionService) WithClock(now Clock) *SessionService {
	s.now = now
	return s
}

// GuestTimeout returns the lifetime of guest sessions.
func (s *SessionService) GuestTimeout() time.Duration {
	return s.cfg.SessionTimeout / 4
}

// OpenSessionInput contains the data needed to open a session.
type OpenSessionInput struct {
	UserID        string
	SourceAddress string
	ClientAgent   string

	// TTL defaults to the configured session timeout.
	TTL time.Duration
}

// Open creates a session for a user.
func (s *SessionService) Open(ctx context.Context, input OpenSessionInput) (*domain.Session, error) {
	ttl := input.TTL
	if ttl <= 0 {
		ttl = s.cfg.SessionTimeout
	}

	maxPerUser := 0
	if s.cfg.EnforceMaxSessions {
		maxPerUser = s.cfg.MaxSessionsPerUser
	}

	session, err := s.open(ctx, input.UserID, input.SourceAddress, input.ClientAgent, ttl, maxPerUser)
	if err != nil {
		return nil, err
	}
	s.metrics.SessionOpened(metrics.KindUser)
	return session, nil
}

// OpenGuest creates a session for a fresh guest identity.
// Guest identities are never stored as users.
func (s *SessionService) OpenGuest(ctx context.Context, sourceAddress, clientAgent string) (*domain.Session, error) {
	guestID := domain.GuestIDPrefix + uuid.NewString()

	session, err := s.open(ctx, guestID, sourceAddress, clientAgent, s.GuestTimeout(), 0)
	if err != nil {
		return nil, err
	}
	s.metrics.SessionOpened(metrics.KindGuest)
	return session, nil
}

func (s *SessionService) open(ctx context.Context, userID, sourceAddress, clientAgent string, ttl time.Duration, maxPerUser int) (*domain.Session, error) {
	token, err := crypto.GenerateSessionToken()
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to generate session token")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	now := s.now()
	session := domain.NewSession(token, userID, now, ttl, sourceAddress, clientAgent)

	evicted, err := s.sessionRepo.Create(ctx, session, now, maxPerUser)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to store session")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if len(evicted) > 0 {
		s.logger.Info().
			Str("user_id", userID).
			Int("evicted", len(evicted)).
			Int("max_sessions", maxPerUser).
			Msg("evicted least recently active sessions")
	}

	s.logger.Debug().
		Str("user_id", userID).
		Time("expires_at", session.ExpiresAt).
		Msg("session opened")

	return session, nil
}

// Validate returns the touched session for token.
//
// It fails with domain.ErrSessionNotFound when no usable record exists and
// with domain.ErrSessionExpired when the record had expired; in the latter
// case the record is deleted before returning.
func (s *SessionService) Validate(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		s.metrics.SessionValidated(metrics.ResultNotFound)
		return nil, domain.ErrSessionNotFound
	}

	session, err := s.sessionRepo.Touch(ctx, token, s.now())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			s.metrics.SessionValidated(metrics.ResultNotFound)
			return nil, domain.ErrSessionNotFound
		case errors.Is(err, repository.ErrExpired):
			s.metrics.SessionValidated(metrics.ResultExpired)
			s.logger.Debug().Msg("expired session removed")
			return nil, domain.ErrSessionExpired
		}
		s.metrics.SessionValidated(metrics.ResultError)
		s.logger.Error().Err(err).Msg("failed to validate session")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.metrics.SessionValidated(metrics.ResultSuccess)
	return session, nil
}

// Close deletes the session for token. It reports whether anything was
// deleted; closing an unknown token is not an error.
func (s *SessionService) Close(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	deleted, err := s.sessionRepo.Delete(ctx, token, s.now())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to delete session")
		return false, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return deleted, nil
}

// CloseAllForUser deletes every session of a user.
func (s *SessionService) CloseAllForUser(ctx context.Context, userID string) (int, error) {
	n, err := s.sessionRepo.DeleteByUserID(ctx, userID, s.now())
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to delete user sessions")
		return 0, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if n > 0 {
		s.logger.Info().Str("user_id", userID).Int("count", n).Msg("user sessions closed")
	}
	return n, nil
}

// ListForUser returns the usable sessions of a user, most recently active first.
func (s *SessionService) ListForUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	sessions, err := s.sessionRepo.ListByUserID(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return sessions, nil
}

// List returns every usable session, most recently active first.
func (s *SessionService) List(ctx context.Context) ([]*domain.Session, error) {
	sessions, err := s.sessionRepo.List(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return sessions, nil
}

// Sweep removes expired and inactive sessions and returns how many.
func (s *SessionService) Sweep(ctx context.Context) (int, error) {
	n, err := s.sessionRepo.DeleteExpired(ctx, s.now())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to sweep sessions")
		return 0, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if n > 0 {
		s.logger.Info().Int("count", n).Msg("stale sessions swept")
	}
	return n, nil
}
