// Package repository provides the data access layer of the AIPM identity service.
// This file contains the factory that opens the configured record store backend.
package repository

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/prn-tf/aipm-identity/internal/config"
	"github.com/prn-tf/aipm-identity/internal/repository/postgres"
	"github.com/prn-tf/aipm-identity/internal/repository/recordstore"
	"github.com/prn-tf/aipm-identity/internal/repository/sqlite"
	"github.com/prn-tf/aipm-identity/internal/storage"
)

// Storage drivers.
const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverS3       = "s3"
)

// DatabaseHealth is implemented by backends holding a database connection.
type DatabaseHealth interface {
	Ping(ctx context.Context) error
	Health(ctx context.Context) error
	Close() error
}

// OpenedBackend is a record store backend together with the resources it holds.
type OpenedBackend struct {
	recordstore.Backend

	// Database is nil for the file and s3 drivers.
	Database DatabaseHealth
}

// Health reports whether the backend is reachable.
func (b *OpenedBackend) Health(ctx context.Context) error {
	if b.Database != nil {
		return b.Database.Health(ctx)
	}
	return nil
}

// Close releases the backend resources.
func (b *OpenedBackend) Close() error {
	if b.Database != nil {
		return b.Database.Close()
	}
	return nil
}

// Factory opens record store backends based on configuration.
type Factory struct {
	cfg    config.StorageConfig
	logger zerolog.Logger
}

// NewFactory creates a new backend factory.
func NewFactory(cfg config.StorageConfig, logger zerolog.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		logger: logger,
	}
}

// Driver returns the configured storage driver.
func (f *Factory) Driver() string {
	return f.cfg.Driver
}

// IsSQL reports whether the driver keeps collections in a SQL database.
func (f *Factory) IsSQL() bool {
	return f.cfg.Driver == DriverSQLite || f.cfg.Driver == DriverPostgres
}

// Open opens the configured backend. SQL backends are migrated on open.
func (f *Factory) Open(ctx context.Context) (*OpenedBackend, error) {
	switch f.cfg.Driver {
	case DriverFile, "":
		backend, err := recordstore.NewFileBackend(f.cfg.Dir)
		if err != nil {
			return nil, err
		}
		f.logger.Info().Str("dir", f.cfg.Dir).Msg("using file record store")
		return &OpenedBackend{Backend: backend}, nil

	case DriverSQLite:
		db, err := OpenSQLite(ctx, f.cfg.SQLite, f.logger)
		if err != nil {
			return nil, err
		}
		return &OpenedBackend{Backend: sqlite.NewRecordBackend(db), Database: db}, nil

	case DriverPostgres:
		db, err := postgres.NewDB(ctx, f.cfg.Postgres, f.logger)
		if err != nil {
			return nil, err
		}
		return &OpenedBackend{Backend: postgres.NewRecordBackend(db), Database: db}, nil

	case DriverS3:
		backend, err := storage.NewS3Backend(ctx, f.cfg.S3, f.logger)
		if err != nil {
			return nil, err
		}
		return &OpenedBackend{Backend: backend}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", f.cfg.Driver)
	}
}

// OpenSQLite opens the SQLite database described by cfg.
func OpenSQLite(ctx context.Context, cfg config.SQLiteConfig, logger zerolog.Logger) (*sqlite.DB, error) {
	sqliteCfg := sqlite.DefaultConfig(cfg.Path)
	if cfg.JournalMode != "" {
		sqliteCfg.JournalMode = cfg.JournalMode
	}
	if cfg.BusyTimeout > 0 {
		sqliteCfg.BusyTimeout = cfg.BusyTimeout
	}
	if cfg.SynchronousMode != "" {
		sqliteCfg.SynchronousMode = cfg.SynchronousMode
	}
	return sqlite.NewDB(ctx, sqliteCfg, logger)
}
