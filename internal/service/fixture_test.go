package service

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/aipm-identity/internal/domain"
	"github.com/prn-tf/aipm-identity/internal/lock"
	"github.com/prn-tf/aipm-identity/internal/metrics"
	"github.com/prn-tf/aipm-identity/internal/repository/recordstore"
	"github.com/prn-tf/aipm-identity/internal/repository/store"
)

const testSecret = "test-secret"

// fakeClock is a manually advanced Clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fixture wires the three services over a file-backed store.
type fixture struct {
	clock    *fakeClock
	backend  *recordstore.FileBackend
	store    *store.Store
	metrics  *metrics.Metrics
	users    *UserService
	sessions *SessionService
	auth     *AuthService
}

type fixtureConfig struct {
	user    UserServiceConfig
	session SessionServiceConfig
	auth    AuthServiceConfig
}

func defaultFixtureConfig() fixtureConfig {
	return fixtureConfig{
		user: UserServiceConfig{SecretKey: testSecret},
		session: SessionServiceConfig{
			SessionTimeout:     24 * time.Hour,
			MaxSessionsPerUser: 5,
		},
		auth: AuthServiceConfig{
			AllowRegistration: true,
			EnableGuestMode:   true,
			DefaultRole:       domain.RoleProductManager,
		},
	}
}

func newFixture(t *testing.T, mutate ...func(*fixtureConfig)) *fixture {
	t.Helper()

	cfg := defaultFixtureConfig()
	for _, fn := range mutate {
		fn(&cfg)
	}

	backend, err := recordstore.NewFileBackend(filepath.Join(t.TempDir(), "auth"))
	require.NoError(t, err)

	locker := lock.NewMemoryLocker()
	t.Cleanup(func() { locker.Close() })

	m := metrics.New()
	st := store.New(backend, store.Options{Locker: locker, Observer: m.LoadObserver()}, zerolog.Nop())
	clock := newFakeClock()

	users := NewUserService(st.Users(), cfg.user, zerolog.Nop()).WithClock(clock.Now)
	sessions := NewSessionService(st.Sessions(), cfg.session, m, zerolog.Nop()).WithClock(clock.Now)

	return &fixture{
		clock:    clock,
		backend:  backend,
		store:    st,
		metrics:  m,
		users:    users,
		sessions: sessions,
		auth:     NewAuthService(users, sessions, cfg.auth, m, zerolog.Nop()),
	}
}
