package service

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/aipm-identity/internal/domain"
	"github.com/prn-tf/aipm-identity/internal/repository/recordstore"
)

func TestAuthService_LoginValidateLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.users.Create(ctx, CreateUserInput{
		Email:    "alice@example.com",
		Name:     "Alice",
		Password: "hunter2",
	})
	require.NoError(t, err)

	login, err := f.auth.Login(ctx, LoginInput{
		Email:         "ALICE@EXAMPLE.COM",
		Password:      "hunter2",
		SourceAddress: "192.0.2.10",
		ClientAgent:   "firefox",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, login.Token)
	assert.Equal(t, created.User.ID, login.User.ID)
	assert.Equal(t, domain.RoleProductManager, login.User.Role)

	validated, err := f.auth.ValidateRequest(ctx, login.Token)
	require.NoError(t, err)
	assert.Equal(t, created.User.ID, validated.User.ID)
	assert.Equal(t, "alice@example.com", validated.User.Email)

	_, err = f.auth.Login(ctx, LoginInput{Email: "alice@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	out, err := f.auth.Logout(ctx, login.Token)
	require.NoError(t, err)
	assert.True(t, out.Closed)

	_, err = f.auth.ValidateRequest(ctx, login.Token)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	out, err = f.auth.Logout(ctx, login.Token)
	require.NoError(t, err)
	assert.False(t, out.Closed)
}

func TestAuthService_LoginRecordsLastLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.users.Create(ctx, CreateUserInput{Email: "bob@example.com", Name: "Bob", Password: "s3cret"})
	require.NoError(t, err)
	assert.Nil(t, created.User.LastLogin)

	f.clock.Advance(time.Hour)
	_, err = f.auth.Login(ctx, LoginInput{Email: "bob@example.com", Password: "s3cret"})
	require.NoError(t, err)

	user, err := f.users.GetByID(ctx, created.User.ID)
	require.NoError(t, err)
	require.NotNil(t, user.LastLogin)
	assert.True(t, f.clock.Now().Equal(*user.LastLogin))
}

func TestAuthService_LoginMissingCredentials(t *testing.T) {
	f := newFixture(t)

	_, err := f.auth.Login(context.Background(), LoginInput{Email: " ", Password: "x"})
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = f.auth.Login(context.Background(), LoginInput{Email: "a@example.com"})
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestAuthService_GuestDisabledLeavesNoRecord(t *testing.T) {
	f := newFixture(t, func(c *fixtureConfig) { c.auth.EnableGuestMode = false })

	_, err := f.auth.Guest(context.Background(), "127.0.0.1", "agent")
	assert.ErrorIs(t, err, ErrGuestModeDisabled)
	assert.False(t, f.auth.GuestModeEnabled())

	_, statErr := os.Stat(f.backend.Path(recordstore.CollectionSessions))
	assert.True(t, os.IsNotExist(statErr), "no session document must be written")
}

func TestAuthService_GuestSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	guest, err := f.auth.Guest(ctx, "127.0.0.1", "agent")
	require.NoError(t, err)
	assert.True(t, domain.IsGuestID(guest.User.ID))
	assert.Equal(t, domain.RoleViewer, guest.User.Role)
	assert.True(t, guest.Session.IsGuest)

	validated, err := f.auth.ValidateRequest(ctx, guest.Token)
	require.NoError(t, err)
	assert.Equal(t, guest.User.ID, validated.User.ID)
	assert.Equal(t, domain.GuestEmail, validated.User.Email)

	users, err := f.users.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, users, "guests are never stored as users")

	f.clock.Advance(6 * time.Hour)
	_, err = f.auth.ValidateRequest(ctx, guest.Token)
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
}

func TestAuthService_ValidateRequestFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.auth.ValidateRequest(ctx, "")
	assert.ErrorIs(t, err, domain.ErrNoSessionToken)

	_, err = f.auth.ValidateRequest(ctx, "does-not-exist")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	// A session whose owner never existed.
	orphan, err := f.sessions.Open(ctx, OpenSessionInput{UserID: "ghost"})
	require.NoError(t, err)
	_, err = f.auth.ValidateRequest(ctx, orphan.Token)
	assert.ErrorIs(t, err, domain.ErrUserInactive)
}

func TestAuthService_DisabledUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.users.Create(ctx, CreateUserInput{Email: "carol@example.com", Name: "Carol", Password: "pw"})
	require.NoError(t, err)

	login, err := f.auth.Login(ctx, LoginInput{Email: "carol@example.com", Password: "pw"})
	require.NoError(t, err)

	_, err = f.users.SetActive(ctx, created.User.ID, false)
	require.NoError(t, err)

	_, err = f.auth.ValidateRequest(ctx, login.Token)
	assert.ErrorIs(t, err, domain.ErrUserInactive)

	_, err = f.auth.Login(ctx, LoginInput{Email: "carol@example.com", Password: "pw"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled", func(t *testing.T) {
		f := newFixture(t, func(c *fixtureConfig) { c.auth.AllowRegistration = false })
		_, err := f.auth.Register(ctx, RegisterInput{Email: "d@example.com", Name: "D", Password: "pw"})
		assert.ErrorIs(t, err, ErrRegistrationDisabled)
	})

	t.Run("missing fields", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.auth.Register(ctx, RegisterInput{Email: "d@example.com", Password: "pw"})
		assert.ErrorIs(t, err, ErrMissingFields)
	})

	t.Run("default role", func(t *testing.T) {
		f := newFixture(t, func(c *fixtureConfig) { c.auth.DefaultRole = domain.RoleViewer })
		out, err := f.auth.Register(ctx, RegisterInput{Email: "D@Example.com", Name: "D", Password: "pw"})
		require.NoError(t, err)
		assert.Equal(t, domain.RoleViewer, out.User.Role)
		assert.Equal(t, "d@example.com", out.User.Email)

		_, err = f.auth.Register(ctx, RegisterInput{Email: "d@example.com", Name: "D2", Password: "pw"})
		assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)
	})
}

func TestAuthService_SessionsForUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.users.Create(ctx, CreateUserInput{Email: "erin@example.com", Name: "Erin", Password: "pw"})
	require.NoError(t, err)

	first, err := f.auth.Login(ctx, LoginInput{Email: "erin@example.com", Password: "pw", ClientAgent: "laptop"})
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	second, err := f.auth.Login(ctx, LoginInput{Email: "erin@example.com", Password: "pw", ClientAgent: "phone"})
	require.NoError(t, err)

	infos, err := f.auth.SessionsForUser(ctx, created.User.ID)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, second.Session.ClientAgent, infos[0].ClientAgent)
	assert.Equal(t, first.Session.ClientAgent, infos[1].ClientAgent)
}

func TestAuthService_LoginMetrics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.users.Create(ctx, CreateUserInput{Email: "frank@example.com", Name: "Frank", Password: "pw"})
	require.NoError(t, err)

	_, err = f.auth.Login(ctx, LoginInput{Email: "frank@example.com", Password: "pw"})
	require.NoError(t, err)
	_, _ = f.auth.Login(ctx, LoginInput{Email: "frank@example.com", Password: "nope"})
	_, _ = f.auth.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "nope"})
	_, err = f.auth.Guest(ctx, "", "")
	require.NoError(t, err)

	expected := `
# HELP aipm_auth_logins_total Login attempts by result.
# TYPE aipm_auth_logins_total counter
aipm_auth_logins_total{result="failure"} 2
aipm_auth_logins_total{result="success"} 1
`
	err = testutil.GatherAndCompare(f.metrics.Registry(), strings.NewReader(expected), "aipm_auth_logins_total")
	assert.NoError(t, err)

	opened, err := testutil.GatherAndCount(f.metrics.Registry(), "aipm_sessions_opened_total")
	require.NoError(t, err)
	assert.Equal(t, 2, opened, "one series for users and one for guests")
}
