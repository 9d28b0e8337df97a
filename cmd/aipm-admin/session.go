package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/prn-tf/aipm-identity/internal/app"
	"github.com/prn-tf/aipm-identity/internal/domain"
)

func runSession(ctx context.Context, a *app.App, args []string) error {
	if len(args) == 0 {
		return errors.New("session: missing subcommand (list, revoke, sweep)")
	}

	switch args[0] {
	case "list":
		return sessionList(ctx, a, args[1:])
	case "revoke":
		return sessionRevoke(ctx, a, args[1:])
	case "sweep":
		n, err := a.Sessions.Sweep(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d stale session(s)\n", n)
		return nil
	default:
		return fmt.Errorf("session: unknown subcommand %q", args[0])
	}
}

func sessionList(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("session list", flag.ContinueOnError)
	id := fs.String("id", "", "only sessions of this user id")
	email := fs.String("email", "", "only sessions of this login email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		sessions []*domain.Session
		err      error
	)
	if *id != "" || *email != "" {
		userID, rerr := resolveUserID(ctx, a, *id, *email)
		if rerr != nil {
			return rerr
		}
		sessions, err = a.Sessions.ListForUser(ctx, userID)
	} else {
		sessions, err = a.Sessions.List(ctx)
	}
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TOKEN\tUSER\tCREATED\tLAST ACTIVE\tEXPIRES\tADDRESS")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			shortToken(s.Token),
			s.UserID,
			s.CreatedAt.Format("2006-01-02 15:04"),
			s.LastActive.Format("2006-01-02 15:04"),
			s.ExpiresAt.Format("2006-01-02 15:04"),
			s.SourceAddress,
		)
	}
	return w.Flush()
}

func sessionRevoke(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("session revoke", flag.ContinueOnError)
	token := fs.String("token", "", "session id to revoke")
	id := fs.String("id", "", "revoke every session of this user id")
	email := fs.String("email", "", "revoke every session of this login email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *token != "" {
		closed, err := a.Sessions.Close(ctx, *token)
		if err != nil {
			return err
		}
		if !closed {
			fmt.Println("No such session")
			return nil
		}
		fmt.Println("Session revoked")
		return nil
	}

	if *id == "" && *email == "" {
		return errors.New("one of --token, --id or --email is required")
	}
	userID, err := resolveUserID(ctx, a, *id, *email)
	if err != nil {
		return err
	}
	n, err := a.Sessions.CloseAllForUser(ctx, userID)
	if err != nil {
		return err
	}
	fmt.Printf("Revoked %d session(s)\n", n)
	return nil
}

// shortToken keeps listings readable without printing full bearer tokens.
func shortToken(token string) string {
	if len(token) <= 12 {
		return token
	}
	return token[:12] + "…"
}
