package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/aipm-identity/internal/domain"
	"github.com/prn-tf/aipm-identity/internal/pkg/crypto"
	"github.com/prn-tf/aipm-identity/internal/repository"
)

// minStrongPasswordLength applies when strong passwords are required.
const minStrongPasswordLength = 8

// UserServiceConfig configures a UserService.
type UserServiceConfig struct {
	// SecretKey keys the password hasher.
	SecretKey string

	// RequireStrongPasswords enforces a minimum password length on creation.
	RequireStrongPasswords bool
}

// UserService handles user management operations.
type UserService struct {
	userRepo repository.UserRepository
	cfg      UserServiceConfig
	now      Clock
	logger   zerolog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(userRepo repository.UserRepository, cfg UserServiceConfig, logger zerolog.Logger) *UserService {
	return &UserService{
		userRepo: userRepo,
		cfg:      cfg,
		now:      SystemClock,
		logger:   logger.With().Str("service", "user").Logger(),
	}
}

// WithClock replaces the time source. Intended for tests.
func (s *UserService) WithClock(now Clock) *UserService {
	s.now = now
	return s
}

// CreateUserInput contains the data needed to create a new user.
type CreateUserInput struct {
	Email    string
	Name     string
	Password string

	// Role defaults to pm.
	Role domain.Role
}

// CreateUserOutput contains the result of creating a user.
type CreateUserOutput struct {
	User *domain.User
}

// Create creates a new user account.
// The email is stored case-folded; any existing record with the same folded
// email, active or not, makes the call fail without touching storage.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*CreateUserOutput, error) {
	input.Email = domain.NormalizeEmail(input.Email)
	input.Name = strings.TrimSpace(input.Name)
	if input.Role == "" {
		input.Role = domain.RoleProductManager
	}

	if err := s.validateCreateInput(input); err != nil {
		return nil, err
	}

	user := domain.NewUser(
		uuid.NewString(),
		input.Email,
		input.Name,
		input.Role,
		crypto.HashPassword(input.Password, s.cfg.SecretKey),
		s.now(),
	)

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, domain.NewDomainError(domain.ErrUserAlreadyExists, "create user", input.Email)
		}
		s.logger.Error().Err(err).Str("email", input.Email).Msg("failed to create user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("user_id", user.ID).
		Str("email", user.Email).
		Str("role", user.Role.String()).
		Msg("user created")

	return &CreateUserOutput{User: user}, nil
}

// Verify checks credentials and returns the matching active user.
//
// Unknown email, wrong password and disabled account all return
// domain.ErrInvalidCredentials so callers cannot enumerate accounts.
func (s *UserService) Verify(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Debug().Str("email", domain.NormalizeEmail(email)).Msg("user not found during authentication")
			return nil, domain.ErrInvalidCredentials
		}
		s.logger.Error().Err(err).Msg("failed to look up user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if !crypto.VerifyPassword(password, s.cfg.SecretKey, user.PasswordHash) {
		s.logger.Debug().Str("user_id", user.ID).Msg("invalid password during authentication")
		return nil, domain.ErrInvalidCredentials
	}

	if !user.CanAuthenticate() {
		s.logger.Debug().Str("user_id", user.ID).Msg("inactive user attempted authentication")
		return nil, domain.ErrInvalidCredentials
	}

	if crypto.IsLegacyDigest(user.PasswordHash) {
		s.upgradeDigest(ctx, user, password)
	}

	return user, nil
}

// upgradeDigest replaces a legacy digest after a successful verification.
// Failure leaves the legacy digest in place, which still verifies.
func (s *UserService) upgradeDigest(ctx context.Context, user *domain.User, password string) {
	digest := crypto.HashPassword(password, s.cfg.SecretKey)
	_, err := s.userRepo.Update(ctx, user.ID, func(u *domain.User) error {
		u.PasswordHash = digest
		return nil
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("failed to upgrade legacy password digest")
		return
	}
	user.PasswordHash = digest
	s.logger.Info().Str("user_id", user.ID).Msg("legacy password digest upgraded")
}

// TouchLogin sets the last-login time of a user to now.
func (s *UserService) TouchLogin(ctx context.Context, userID string) error {
	now := s.now()
	_, err := s.userRepo.Update(ctx, userID, func(u *domain.User) error {
		u.LastLogin = &now
		return nil
	})
	return s.mapRepoError(err, userID)
}

// GetByID retrieves a user by ID.
func (s *UserService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, id)
	}
	return user, nil
}

// GetByEmail retrieves a user by email, ignoring case.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		return nil, s.mapRepoError(err, email)
	}
	return user, nil
}

// List returns all users, oldest first.
func (s *UserService) List(ctx context.Context) ([]*domain.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list users")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return users, nil
}

// UpdatePreferences merges patch into the user's preferences.
// A nil value removes the key.
func (s *UserService) UpdatePreferences(ctx context.Context, userID string, patch domain.Preferences) (*domain.User, error) {
	user, err := s.userRepo.Update(ctx, userID, func(u *domain.User) error {
		if u.Preferences == nil {
			u.Preferences = domain.Preferences{}
		}
		for key, value := range patch {
			if value == nil {
				delete(u.Preferences, key)
				continue
			}
			u.Preferences[key] = value
		}
		return nil
	})
	if err != nil {
		return nil, s.mapRepoError(err, userID)
	}

	s.logger.Info().Str("user_id", userID).Int("keys", len(patch)).Msg("user preferences updated")
	return user, nil
}

// SetActive sets the active status of a user.
func (s *UserService) SetActive(ctx context.Context, userID string, isActive bool) (*domain.User, error) {
	user, err := s.userRepo.Update(ctx, userID, func(u *domain.User) error {
		u.IsActive = isActive
		return nil
	})
	if err != nil {
		return nil, s.mapRepoError(err, userID)
	}

	s.logger.Info().
		Str("user_id", userID).
		Bool("is_active", isActive).
		Msg("user active status updated")

	return user, nil
}

// EnsureDefaultUser provisions the documented default account when no user
// exists at all. It reports whether an account was created.
func (s *UserService) EnsureDefaultUser(ctx context.Context) (bool, error) {
	count, err := s.userRepo.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if count > 0 {
		return false, nil
	}

	user := domain.NewUser(
		domain.DefaultUserID,
		domain.DefaultUserEmail,
		domain.DefaultUserName,
		domain.RoleProductManager,
		crypto.HashPassword(domain.DefaultUserPassword, s.cfg.SecretKey),
		s.now(),
	)
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Warn().
		Str("email", domain.DefaultUserEmail).
		Msg("created default user account; change its password for anything beyond local use")
	return true, nil
}

// mapRepoError converts repository errors into service errors.
func (s *UserService) mapRepoError(err error, userID string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return domain.NewDomainError(domain.ErrUserNotFound, "", userID)
	}
	s.logger.Error().Err(err).Str("user_id", userID).Msg("user repository failure")
	return fmt.Errorf("%w: %v", ErrInternalError, err)
}

// validateCreateInput validates the input for creating a user.
func (s *UserService) validateCreateInput(input CreateUserInput) error {
	if input.Email == "" || input.Name == "" || input.Password == "" {
		return ErrMissingFields
	}

	if _, err := mail.ParseAddress(input.Email); err != nil {
		return ErrInvalidEmail
	}

	if !input.Role.IsValid() {
		return domain.NewDomainError(domain.ErrInvalidRole, "", input.Role.String())
	}

	if s.cfg.RequireStrongPasswords && len(input.Password) < minStrongPasswordLength {
		return ErrInvalidPassword
	}

	return nil
}
