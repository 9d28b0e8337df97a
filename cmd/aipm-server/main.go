// Package main is the entry point for the AIPM identity server.
// It serves login, session and account endpoints over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/prn-tf/aipm-identity/internal/app"
	"github.com/prn-tf/aipm-identity/internal/handler"
	"github.com/prn-tf/aipm-identity/internal/metrics"
)

func main() {
	configPath := flag.String("config", "", "path to the configuration file")
	flag.Parse()

	// Initialize logger
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := run(*configPath); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
}

func run(configPath string) error {
	cfg, err := app.LoadConfig(configPath, log.Logger)
	if err != nil {
		return err
	}

	logger := app.NewLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", app.Version).
		Str("build_time", app.BuildTime).
		Str("git_commit", app.GitCommit).
		Msg("Starting AIPM identity server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	a, err := app.New(ctx, cfg, m, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to release resources")
		}
	}()

	if cfg.Auth.ProvisionDefaultUser {
		if _, err := a.Users.EnsureDefaultUser(ctx); err != nil {
			return err
		}
	}

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}

	router := handler.NewRouter(handler.RouterConfig{
		AuthService: a.Auth,
		UserService: a.Users,
		Metrics:     m,
		MetricsPath: metricsPath,
		CookieName:  cfg.Auth.CookieName,
		Health:      a.Backend.Health,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go a.RunSweeper(ctx, cfg.Auth.SweepInterval)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
