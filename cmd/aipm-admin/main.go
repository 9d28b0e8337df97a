// Package main is the entry point for the AIPM identity admin CLI.
// This tool provides administrative commands for managing users and sessions.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/prn-tf/aipm-identity/internal/app"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "version":
		fmt.Printf("AIPM Identity Admin CLI\n")
		fmt.Printf("Version: %s\n", app.Version)
		fmt.Printf("Build Time: %s\n", app.BuildTime)
		fmt.Printf("Git Commit: %s\n", app.GitCommit)

	case "user":
		err = withApp(args, runUser)

	case "session":
		err = withApp(args, runSession)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// withApp strips a leading --config flag, wires the services and runs fn.
func withApp(args []string, fn func(ctx context.Context, a *app.App, args []string) error) error {
	configPath := ""
	if len(args) >= 2 && (args[0] == "--config" || args[0] == "-config") {
		configPath = args[1]
		args = args[2:]
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel).With().Timestamp().Logger()

	cfg, err := app.LoadConfig(configPath, logger)
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, nil, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a, args)
}

func printUsage() {
	fmt.Println(`AIPM Identity Admin CLI

Usage:
  aipm-admin <command> [--config <file>] <subcommand> [arguments]

Commands:
  user        Manage users (create, list, disable, enable)
  session     Manage sessions (list, revoke, sweep)
  version     Print version information
  help        Show this help message

Examples:
  aipm-admin user create --email pm@example.com --name "Jane Doe" --role admin
  aipm-admin user list
  aipm-admin user disable --email pm@example.com
  aipm-admin session list --email pm@example.com
  aipm-admin session revoke --token <session id>
  aipm-admin session sweep`)
}
