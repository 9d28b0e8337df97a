// Package main is the entry point for the AIPM identity migration tool.
// This tool manages SQL schema migrations and imports unversioned record files.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"

	"github.com/prn-tf/aipm-identity/internal/app"
	"github.com/prn-tf/aipm-identity/internal/config"
	"github.com/prn-tf/aipm-identity/internal/legacy"
	"github.com/prn-tf/aipm-identity/internal/repository"
	"github.com/prn-tf/aipm-identity/internal/repository/migrations"
)

func main() {
	fs := flag.NewFlagSet("aipm-migrate", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the configuration file")
	fs.Usage = printUsage
	_ = fs.Parse(os.Args[1:])

	args := fs.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	command := args[0]
	if command == "version" {
		fmt.Printf("AIPM Identity Migration Tool\n")
		fmt.Printf("Version: %s\n", app.Version)
		fmt.Printf("Build Time: %s\n", app.BuildTime)
		fmt.Printf("Git Commit: %s\n", app.GitCommit)
		return
	}
	if command == "help" || command == "-h" || command == "--help" {
		printUsage()
		return
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	cfg, err := app.LoadConfig(*configPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx := context.Background()

	switch command {
	case "up":
		err = runUp(ctx, cfg, logger)
	case "status":
		err = runStatus(ctx, cfg, logger)
	case "import":
		err = runImport(ctx, cfg, args[1:], logger)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		logger.Fatal().Err(err).Str("command", command).Msg("migration command failed")
	}
}

// runUp applies pending migrations. Opening a SQL backend migrates it.
func runUp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	factory := repository.NewFactory(cfg.Storage, logger)
	if !factory.IsSQL() {
		logger.Info().Str("driver", factory.Driver()).Msg("driver has no schema, nothing to migrate")
		return nil
	}

	backend, err := factory.Open(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()

	db, dialect, err := openSQL(cfg.Storage)
	if err != nil {
		return err
	}
	defer db.Close()

	version, err := migrations.Version(ctx, db, dialect, logger)
	if err != nil {
		return err
	}
	fmt.Printf("Schema is at version %d\n", version)
	return nil
}

// runStatus prints the migration status without applying anything.
func runStatus(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	if cfg.Storage.Driver != repository.DriverSQLite && cfg.Storage.Driver != repository.DriverPostgres {
		fmt.Printf("Driver %q has no schema\n", cfg.Storage.Driver)
		return nil
	}

	db, dialect, err := openSQL(cfg.Storage)
	if err != nil {
		return err
	}
	defer db.Close()

	return migrations.Status(ctx, db, dialect, logger)
}

// openSQL opens a plain connection to the configured SQL database.
func openSQL(cfg config.StorageConfig) (*sql.DB, string, error) {
	switch cfg.Driver {
	case repository.DriverSQLite:
		db, err := sql.Open("sqlite", cfg.SQLite.Path)
		return db, migrations.DialectSQLite, err
	case repository.DriverPostgres:
		db, err := sql.Open("pgx", cfg.Postgres.DSN)
		return db, migrations.DialectPostgres, err
	default:
		return nil, "", fmt.Errorf("driver %q is not a SQL driver", cfg.Driver)
	}
}

// runImport copies unversioned users.json and sessions.json into the
// configured backend.
func runImport(ctx context.Context, cfg *config.Config, args []string, logger zerolog.Logger) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	from := fs.String("from", "", "directory holding users.json and sessions.json")
	force := fs.Bool("force", false, "overwrite collections already in the target")
	skipExpired := fs.Bool("skip-expired", true, "drop sessions that are already expired")
	tz := fs.String("tz", "UTC", "time zone of timestamps without an offset")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *from == "" {
		return errors.New("import: --from is required")
	}

	loc, err := time.LoadLocation(*tz)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	backend, err := repository.NewFactory(cfg.Storage, logger).Open(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()

	result, err := legacy.Import(ctx, *from, backend, legacy.Options{
		Location:    loc,
		Force:       *force,
		SkipExpired: *skipExpired,
	}, logger)
	if err != nil {
		return err
	}

	fmt.Printf("Imported %d user(s) and %d session(s) into %s (%d expired session(s) skipped)\n",
		result.Users, result.Sessions, backend.Name(), result.Skipped)
	return nil
}

func printUsage() {
	fmt.Println(`AIPM Identity Migration Tool

Usage:
  aipm-migrate [--config <file>] <command> [arguments]

Commands:
  up          Apply pending schema migrations (sqlite, postgres)
  status      Show current migration status
  import      Import unversioned users.json and sessions.json
  version     Print version information
  help        Show this help message

Import flags:
  --from <dir>       Directory holding the legacy files (required)
  --force            Overwrite collections already present in the target
  --skip-expired     Drop expired sessions (default true)
  --tz <zone>        Zone of timestamps without an offset (default UTC)

Examples:
  aipm-migrate up
  aipm-migrate --config /etc/aipm/config.yaml status
  aipm-migrate import --from ./auth --tz Europe/Paris`)
}
