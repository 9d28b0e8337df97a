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
	"github.com/prn-tf/aipm-identity/internal/service"
)

func runUser(ctx context.Context, a *app.App, args []string) error {
	if len(args) == 0 {
		return errors.New("user: missing subcommand (create, list, disable, enable)")
	}

	switch args[0] {
	case "create":
		return userCreate(ctx, a, args[1:])
	case "list":
		return userList(ctx, a)
	case "disable":
		return userSetActive(ctx, a, args[1:], false)
	case "enable":
		return userSetActive(ctx, a, args[1:], true)
	default:
		return fmt.Errorf("user: unknown subcommand %q", args[0])
	}
}

func userCreate(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("user create", flag.ContinueOnError)
	email := fs.String("email", "", "login email")
	name := fs.String("name", "", "display name")
	role := fs.String("role", string(domain.RoleProductManager), "viewer, pm or admin")
	password := fs.String("password", "", "password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	parsed, ok := domain.ParseRole(*role)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrInvalidRole, *role)
	}

	pw := *password
	if pw == "" {
		entered, err := promptPassword(os.Stderr)
		if err != nil {
			return err
		}
		pw = entered
	}

	out, err := a.Users.Create(ctx, service.CreateUserInput{
		Email:    *email,
		Name:     *name,
		Password: pw,
		Role:     parsed,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Created user %s (%s, role %s)\n", out.User.Email, out.User.ID, out.User.Role)
	return nil
}

func userList(ctx context.Context, a *app.App) error {
	users, err := a.Users.List(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tNAME\tROLE\tACTIVE\tLAST LOGIN")
	for _, u := range users {
		lastLogin := "-"
		if u.LastLogin != nil {
			lastLogin = u.LastLogin.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\n", u.ID, u.Email, u.Name, u.Role, u.IsActive, lastLogin)
	}
	return w.Flush()
}

func userSetActive(ctx context.Context, a *app.App, args []string, active bool) error {
	fs := flag.NewFlagSet("user set-active", flag.ContinueOnError)
	id := fs.String("id", "", "user id")
	email := fs.String("email", "", "login email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	userID, err := resolveUserID(ctx, a, *id, *email)
	if err != nil {
		return err
	}

	user, err := a.Users.SetActive(ctx, userID, active)
	if err != nil {
		return err
	}

	if !active {
		closed, err := a.Sessions.CloseAllForUser(ctx, user.ID)
		if err != nil {
			return err
		}
		fmt.Printf("Disabled %s and closed %d session(s)\n", user.Email, closed)
		return nil
	}

	fmt.Printf("Enabled %s\n", user.Email)
	return nil
}

// resolveUserID accepts either an id or an email.
func resolveUserID(ctx context.Context, a *app.App, id, email string) (string, error) {
	switch {
	case id != "":
		return id, nil
	case email != "":
		user, err := a.Users.GetByEmail(ctx, email)
		if err != nil {
			return "", err
		}
		return user.ID, nil
	default:
		return "", errors.New("either --id or --email is required")
	}
}
