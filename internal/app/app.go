// Package app wires configuration, storage and services for the binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/prn-tf/aipm-identity/internal/config"
	"github.com/prn-tf/aipm-identity/internal/domain"
	"github.com/prn-tf/aipm-identity/internal/lock"
	"github.com/prn-tf/aipm-identity/internal/metrics"
	"github.com/prn-tf/aipm-identity/internal/repository"
	"github.com/prn-tf/aipm-identity/internal/repository/store"
	"github.com/prn-tf/aipm-identity/internal/service"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// LoadConfig reads .env (when present), the configuration file and the
// stored auth config record.
//
// A broken auth config record is logged and the base auth settings are used,
// so the service still starts.
func LoadConfig(path string, logger zerolog.Logger) (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn().Err(err).Msg("failed to load .env file")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	auth, err := config.LoadAuthRecord(cfg.Auth.ConfigRecord, cfg.Auth)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.Auth.ConfigRecord).Msg("auth config record unusable, using defaults")
	}
	cfg.Auth = auth
	return cfg, nil
}

// NewLogger builds the process logger from cfg.
func NewLogger(cfg config.LoggingConfig) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339
	}

	var logger zerolog.Logger
	if cfg.Format == "json" {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: timeFormat})
	}
	return logger.Level(level).With().Timestamp().Logger()
}

// App holds the wired services.
type App struct {
	Config   *config.Config
	Backend  *repository.OpenedBackend
	Redis    redis.UniversalClient
	Locker   lock.Locker
	Store    *store.Store
	Metrics  *metrics.Metrics
	Users    *service.UserService
	Sessions *service.SessionService
	Auth     *service.AuthService
	Logger   zerolog.Logger
}

// New opens the configured backend and builds the services on top of it.
// m may be nil to disable instrumentation.
func New(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger zerolog.Logger) (*App, error) {
	backend, err := repository.NewFactory(cfg.Storage, logger).Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}

	a := &App{
		Config:  cfg,
		Backend: backend,
		Metrics: m,
		Logger:  logger,
	}

	if cfg.Lock.Backend == lock.BackendRedis {
		client := redis.NewClient(&redis.Options{
			Addr:        cfg.Redis.Addr(),
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			PoolSize:    cfg.Redis.PoolSize,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			_ = backend.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.Redis = client
	}

	locker, err := lock.New(cfg.Lock.Backend, a.Redis)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Locker = locker

	a.Store = store.New(backend, store.Options{
		Locker: locker,
		Lock: lock.Options{
			TTL:        cfg.Lock.TTL,
			MaxRetries: cfg.Lock.MaxRetries,
			RetryDelay: cfg.Lock.RetryDelay,
		},
		Observer: m.LoadObserver(),
	}, logger)

	// Instances sharing a remote store must hash with one secret.
	if d := cfg.Storage.Driver; d != repository.DriverFile && d != "" {
		secret, err := a.Store.SharedSecret(ctx, cfg.Auth.SecretKey)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("load shared secret: %w", err)
		}
		if secret != cfg.Auth.SecretKey {
			logger.Info().Msg("using password hasher secret from record store")
			cfg.Auth.SecretKey = secret
		}
	}

	role, ok := domain.ParseRole(cfg.Auth.DefaultRole)
	if !ok {
		role = domain.RoleProductManager
	}

	a.Users = service.NewUserService(a.Store.Users(), service.UserServiceConfig{
		SecretKey:              cfg.Auth.SecretKey,
		RequireStrongPasswords: cfg.Auth.RequireStrongPasswords,
	}, logger)
	a.Sessions = service.NewSessionService(a.Store.Sessions(), service.SessionServiceConfig{
		SessionTimeout:     cfg.Auth.SessionTimeout(),
		MaxSessionsPerUser: cfg.Auth.MaxSessionsPerUser,
		EnforceMaxSessions: cfg.Auth.EnforceMaxSessions,
	}, m, logger)
	a.Auth = service.NewAuthService(a.Users, a.Sessions, service.AuthServiceConfig{
		AllowRegistration: cfg.Auth.AllowRegistration,
		EnableGuestMode:   cfg.Auth.EnableGuestMode,
		DefaultRole:       role,
	}, m, logger)

	logger.Info().
		Str("driver", backend.Name()).
		Str("lock", cfg.Lock.Backend).
		Dur("session_timeout", cfg.Auth.SessionTimeout()).
		Msg("identity services ready")

	return a, nil
}

// Close releases every resource held by the app.
func (a *App) Close() error {
	var errs []error
	if closer, ok := a.Locker.(interface{ Close() error }); ok {
		errs = append(errs, closer.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.Backend != nil {
		errs = append(errs, a.Backend.Close())
	}
	return errors.Join(errs...)
}
