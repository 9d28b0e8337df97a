// Package migrations embeds the SQL schema of the record store and applies it
// with goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

// Dialects understood by goose.
const (
	DialectSQLite   = "sqlite3"
	DialectPostgres = "pgx"
)

//go:embed *.sql
var Migrations embed.FS

// goose keeps its dialect and base FS in package globals.
var mu sync.Mutex

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Up applies every pending migration.
func Up(ctx context.Context, db *sql.DB, dialect string, logger zerolog.Logger) error {
	mu.Lock()
	defer mu.Unlock()

	if err := setup(dialect, logger); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Version returns the current schema version.
func Version(ctx context.Context, db *sql.DB, dialect string, logger zerolog.Logger) (int64, error) {
	mu.Lock()
	defer mu.Unlock()

	if err := setup(dialect, logger); err != nil {
		return 0, err
	}
	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

// Status logs the state of every migration.
func Status(ctx context.Context, db *sql.DB, dialect string, logger zerolog.Logger) error {
	mu.Lock()
	defer mu.Unlock()

	if err := setup(dialect, logger); err != nil {
		return err
	}
	return goose.StatusContext(ctx, db, ".")
}

func setup(dialect string, logger zerolog.Logger) error {
	goose.SetBaseFS(Migrations)
	goose.SetLogger(gooseLogger{logger: logger.With().Str("component", "migrations").Logger()})
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	return nil
}

// gooseLogger routes goose output through zerolog.
type gooseLogger struct {
	logger zerolog.Logger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info().Msgf(format, v...)
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Fatal().Msgf(format, v...)
}
