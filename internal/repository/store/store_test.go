package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/aipm-identity/internal/domain"
	"github.com/prn-tf/aipm-identity/internal/lock"
	"github.com/prn-tf/aipm-identity/internal/repository"
	"github.com/prn-tf/aipm-identity/internal/repository/recordstore"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, *recordstore.FileBackend) {
	t.Helper()
	backend, err := recordstore.NewFileBackend(filepath.Join(t.TempDir(), "auth"))
	require.NoError(t, err)
	locker := lock.NewMemoryLocker()
	t.Cleanup(func() { locker.Close() })
	return New(backend, Options{Locker: locker}, zerolog.Nop()), backend
}

func newUser(id, email string, created time.Time) *domain.User {
	return domain.NewUser(id, email, "Name "+id, domain.RoleProductManager, "digest", created)
}

func TestUserRepository_CreateRejectsCaseInsensitiveDuplicate(t *testing.T) {
	s, backend := newTestStore(t)
	users := s.Users()
	ctx := context.Background()

	require.NoError(t, users.Create(ctx, newUser("u1", "alice@example.com", t0)))
	before, err := os.ReadFile(backend.Path(recordstore.CollectionUsers))
	require.NoError(t, err)

	err = users.Create(ctx, newUser("u2", "ALICE@Example.com", t0))
	assert.ErrorIs(t, err, repository.ErrAlreadyExists)

	after, err := os.ReadFile(backend.Path(recordstore.CollectionUsers))
	require.NoError(t, err)
	assert.Equal(t, before, after, "a rejected create must not touch storage")
}

func TestUserRepository_CreateRejectsInactiveDuplicate(t *testing.T) {
	s, _ := newTestStore(t)
	users := s.Users()
	ctx := context.Background()

	inactive := newUser("u1", "bob@example.com", t0)
	inactive.IsActive = false
	require.NoError(t, users.Create(ctx, inactive))

	err := users.Create(ctx, newUser("u2", "bob@example.com", t0))
	assert.ErrorIs(t, err, repository.ErrAlreadyExists)
}

func TestUserRepository_Lookups(t *testing.T) {
	s, _ := newTestStore(t)
	users := s.Users()
	ctx := context.Background()

	require.NoError(t, users.Create(ctx, newUser("u2", "b@example.com", t0.Add(time.Minute))))
	require.NoError(t, users.Create(ctx, newUser("u1", "a@example.com", t0)))

	got, err := users.GetByEmail(ctx, "  A@EXAMPLE.COM ")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)

	got, err = users.GetByID(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, "b@example.com", got.Email)

	_, err = users.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = users.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	list, err := users.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "u1", list[0].ID, "oldest first")

	n, err := users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestUserRepository_Update(t *testing.T) {
	s, _ := newTestStore(t)
	users := s.Users()
	ctx := context.Background()
	require.NoError(t, users.Create(ctx, newUser("u1", "a@example.com", t0)))

	updated, err := users.Update(ctx, "u1", func(u *domain.User) error {
		login := t0.Add(time.Hour)
		u.LastLogin = &login
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, updated.LastLogin)

	reloaded, err := users.GetByID(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, reloaded.LastLogin)
	assert.True(t, t0.Add(time.Hour).Equal(*reloaded.LastLogin))

	boom := errors.New("boom")
	_, err = users.Update(ctx, "u1", func(u *domain.User) error {
		u.Name = "changed"
		return boom
	})
	assert.ErrorIs(t, err, boom)
	reloaded, err = users.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.NotEqual(t, "changed", reloaded.Name)

	_, err = users.Update(ctx, "missing", func(*domain.User) error { return nil })
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUserRepository_ConcurrentCreatesKeepEveryUser(t *testing.T) {
	s, _ := newTestStore(t)
	users := s.Users()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			assert.NoError(t, users.Create(ctx, newUser(id, id+"@example.com", t0)))
		}(i)
	}
	wg.Wait()

	n, err := users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}

func TestSessionRepository_TouchLifecycle(t *testing.T) {
	s, _ := newTestStore(t)
	sessions := s.Sessions()
	ctx := context.Background()

	session := domain.NewSession("tok", "u1", t0, time.Hour, "127.0.0.1", "test")
	_, err := sessions.Create(ctx, session, t0, 0)
	require.NoError(t, err)

	touched, err := sessions.Touch(ctx, "tok", t0.Add(30*time.Minute))
	require.NoError(t, err)
	assert.True(t, t0.Add(30*time.Minute).Equal(touched.LastActive))

	stored, err := sessions.Get(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, t0.Add(30*time.Minute).Equal(stored.LastActive))

	_, err = sessions.Touch(ctx, "tok", t0.Add(time.Hour))
	assert.ErrorIs(t, err, repository.ErrExpired)

	_, err = sessions.Get(ctx, "tok")
	assert.ErrorIs(t, err, repository.ErrNotFound, "expired session must be gone from storage")

	_, err = sessions.Touch(ctx, "tok", t0.Add(time.Hour))
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSessionRepository_InactiveIsNotFound(t *testing.T) {
	s, _ := newTestStore(t)
	sessions := s.Sessions()
	ctx := context.Background()

	session := domain.NewSession("tok", "u1", t0, time.Hour, "", "")
	session.IsActive = false
	// Written directly so the record survives the create cycle.
	require.NoError(t, s.sessions.Save(ctx, map[string]*domain.Session{"tok": session}))

	_, err := sessions.Touch(ctx, "tok", t0)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSessionRepository_DeleteIsIdempotent(t *testing.T) {
	s, _ := newTestStore(t)
	sessions := s.Sessions()
	ctx := context.Background()

	_, err := sessions.Create(ctx, domain.NewSession("tok", "u1", t0, time.Hour, "", ""), t0, 0)
	require.NoError(t, err)

	deleted, err := sessions.Delete(ctx, "tok", t0)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = sessions.Delete(ctx, "tok", t0)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestSessionRepository_MutationsPruneStaleRecords(t *testing.T) {
	s, _ := newTestStore(t)
	sessions := s.Sessions()
	ctx := context.Background()

	_, err := sessions.Create(ctx, domain.NewSession("old", "u1", t0, time.Minute, "", ""), t0, 0)
	require.NoError(t, err)

	later := t0.Add(time.Hour)
	_, err = sessions.Create(ctx, domain.NewSession("new", "u1", later, time.Hour, "", ""), later, 0)
	require.NoError(t, err)

	_, err = sessions.Get(ctx, "old")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = sessions.Get(ctx, "new")
	assert.NoError(t, err)
}

func TestSessionRepository_ListByUserIDMostRecentFirst(t *testing.T) {
	s, _ := newTestStore(t)
	sessions := s.Sessions()
	ctx := context.Background()

	for i, token := range []string{"a", "b", "c"} {
		created := t0.Add(time.Duration(i) * time.Minute)
		_, err := sessions.Create(ctx, domain.NewSession(token, "u1", created, time.Hour, "", ""), created, 0)
		require.NoError(t, err)
	}
	_, err := sessions.Create(ctx, domain.NewSession("other", "u2", t0, time.Hour, "", ""), t0, 0)
	require.NoError(t, err)

	_, err = sessions.Touch(ctx, "a", t0.Add(10*time.Minute))
	require.NoError(t, err)

	list, err := sessions.ListByUserID(ctx, "u1", t0.Add(10*time.Minute))
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"a", "c", "b"}, tokens(list))

	all, err := sessions.List(ctx, t0.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestSessionRepository_CreateEvictsBeyondLimit(t *testing.T) {
	s, _ := newTestStore(t)
	sessions := s.Sessions()
	ctx := context.Background()

	for i, token := range []string{"a", "b"} {
		created := t0.Add(time.Duration(i) * time.Minute)
		_, err := sessions.Create(ctx, domain.NewSession(token, "u1", created, time.Hour, "", ""), created, 2)
		require.NoError(t, err)
	}

	now := t0.Add(5 * time.Minute)
	evicted, err := sessions.Create(ctx, domain.NewSession("c", "u1", now, time.Hour, "", ""), now, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, evicted)

	list, err := sessions.ListByUserID(ctx, "u1", now)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, tokens(list))
}

func TestSessionRepository_DeleteByUserIDAndExpired(t *testing.T) {
	s, _ := newTestStore(t)
	sessions := s.Sessions()
	ctx := context.Background()

	_, err := sessions.Create(ctx, domain.NewSession("a", "u1", t0, time.Hour, "", ""), t0, 0)
	require.NoError(t, err)
	_, err = sessions.Create(ctx, domain.NewSession("b", "u1", t0, time.Hour, "", ""), t0, 0)
	require.NoError(t, err)
	_, err = sessions.Create(ctx, domain.NewSession("c", "u2", t0, time.Minute, "", ""), t0, 0)
	require.NoError(t, err)

	n, err := sessions.DeleteByUserID(ctx, "u1", t0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = sessions.DeleteExpired(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = sessions.DeleteExpired(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_CorruptCollectionDegradesToEmpty(t *testing.T) {
	var outcomes []recordstore.LoadOutcome
	backend, err := recordstore.NewFileBackend(t.TempDir())
	require.NoError(t, err)
	s := New(backend, Options{Observer: func(_ string, o recordstore.LoadOutcome) {
		outcomes = append(outcomes, o)
	}}, zerolog.Nop())
	require.NoError(t, os.WriteFile(backend.Path(recordstore.CollectionUsers), []byte("{oops"), 0o600))

	list, err := s.Users().List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, []recordstore.LoadOutcome{recordstore.OutcomeCorrupt}, outcomes)
}

func TestStore_LockBusy(t *testing.T) {
	backend, err := recordstore.NewFileBackend(t.TempDir())
	require.NoError(t, err)
	locker := lock.NewMemoryLocker()
	defer locker.Close()
	s := New(backend, Options{
		Locker: locker,
		Lock:   lock.Options{TTL: time.Minute, MaxRetries: 1, RetryDelay: time.Millisecond},
	}, zerolog.Nop())

	ctx := context.Background()
	_, err = locker.Acquire(ctx, lock.Keys.Collection(recordstore.CollectionUsers), time.Minute)
	require.NoError(t, err)

	err = s.Users().Create(ctx, newUser("u1", "a@example.com", t0))
	assert.ErrorIs(t, err, repository.ErrLockNotAcquired)
}

// flakyBackend fails the next failReads reads of the wrapped backend.
type flakyBackend struct {
	*recordstore.FileBackend

	mu        sync.Mutex
	failReads int
}

func (b *flakyBackend) failNextRead() {
	b.mu.Lock()
	b.failReads++
	b.mu.Unlock()
}

func (b *flakyBackend) Read(ctx context.Context, collection string) ([]byte, error) {
	b.mu.Lock()
	fail := b.failReads > 0
	if fail {
		b.failReads--
	}
	b.mu.Unlock()
	if fail {
		return nil, errors.New("dial tcp: connection refused")
	}
	return b.FileBackend.Read(ctx, collection)
}

func newFlakyStore(t *testing.T) (*Store, *flakyBackend) {
	t.Helper()
	files, err := recordstore.NewFileBackend(t.TempDir())
	require.NoError(t, err)
	backend := &flakyBackend{FileBackend: files}
	return New(backend, Options{}, zerolog.Nop()), backend
}

func TestUserRepository_ReadFailureDoesNotOverwrite(t *testing.T) {
	s, backend := newFlakyStore(t)
	users := s.Users()
	ctx := context.Background()

	for i, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		require.NoError(t, users.Create(ctx, newUser(fmt.Sprintf("u%d", i), email, t0)))
	}

	backend.failNextRead()
	err := users.Create(ctx, newUser("u4", "d@example.com", t0))
	assert.ErrorIs(t, err, recordstore.ErrUnavailable)

	backend.failNextRead()
	_, err = users.Update(ctx, "u1", func(u *domain.User) error {
		u.Name = "changed"
		return nil
	})
	assert.ErrorIs(t, err, recordstore.ErrUnavailable)

	list, err := users.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)
	assert.Equal(t, "Name u1", list[1].Name)

	// Reads degrade to an empty collection instead of failing.
	backend.failNextRead()
	count, err := users.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSessionRepository_ReadFailureDoesNotOverwrite(t *testing.T) {
	s, backend := newFlakyStore(t)
	sessions := s.Sessions()
	ctx := context.Background()

	_, err := sessions.Create(ctx, domain.NewSession("tok1", "u1", t0, time.Hour, "", ""), t0, 0)
	require.NoError(t, err)

	backend.failNextRead()
	_, err = sessions.Create(ctx, domain.NewSession("tok2", "u1", t0, time.Hour, "", ""), t0, 0)
	assert.ErrorIs(t, err, recordstore.ErrUnavailable)

	backend.failNextRead()
	_, err = sessions.DeleteExpired(ctx, t0)
	assert.ErrorIs(t, err, recordstore.ErrUnavailable)

	_, err = sessions.Get(ctx, "tok1")
	assert.NoError(t, err)
}

func TestSessionRepository_DeleteExpiredTokenIsNotADelete(t *testing.T) {
	s, _ := newTestStore(t)
	sessions := s.Sessions()
	ctx := context.Background()

	_, err := sessions.Create(ctx, domain.NewSession("tok", "u1", t0, time.Minute, "", ""), t0, 0)
	require.NoError(t, err)

	deleted, err := sessions.Delete(ctx, "tok", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = sessions.Get(ctx, "tok")
	assert.ErrorIs(t, err, repository.ErrNotFound, "the stale record is still pruned")
}

func TestStore_LoadsUnversionedUsersFile(t *testing.T) {
	s, backend := newTestStore(t)
	content := `{
  "3f2c": {
    "user_id": "3f2c",
    "email": "Pat@Example.com",
    "name": "Pat",
    "role": "admin",
    "created_at": "2025-01-02T03:04:05.123456",
    "last_login": "2025-02-03T04:05:06.5",
    "is_active": true,
    "preferences": {"theme": "dark"},
    "password_hash": "5e884898da28047151d0e56f8dc6292773603d0d6aabbdd62a11ef721d1542d8"
  }
}`
	require.NoError(t, os.WriteFile(backend.Path(recordstore.CollectionUsers), []byte(content), 0o600))
	ctx := context.Background()

	count, err := s.Users().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	user, err := s.Users().GetByEmail(ctx, "pat@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, user.Role)
	assert.True(t, user.CreatedAt.Equal(time.Date(2025, 1, 2, 3, 4, 5, 123456000, time.UTC)))
	require.NotNil(t, user.LastLogin)
	assert.True(t, user.LastLogin.Equal(time.Date(2025, 2, 3, 4, 5, 6, 500000000, time.UTC)))

	// Saving rewrites the file as a versioned document and keeps the user.
	require.NoError(t, s.Users().Create(ctx, newUser("u2", "other@example.com", t0)))
	raw, err := os.ReadFile(backend.Path(recordstore.CollectionUsers))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"schema_version": 1`)
	count, err = s.Users().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestStore_SharedSecret(t *testing.T) {
	s, backend := newFlakyStore(t)
	ctx := context.Background()

	secret, err := s.SharedSecret(ctx, "first")
	require.NoError(t, err)
	assert.Equal(t, "first", secret)

	secret, err = s.SharedSecret(ctx, "second")
	require.NoError(t, err)
	assert.Equal(t, "first", secret, "the stored secret wins")

	backend.failNextRead()
	_, err = s.SharedSecret(ctx, "third")
	assert.ErrorIs(t, err, recordstore.ErrUnavailable)

	_, err = s.SharedSecret(ctx, "")
	assert.Error(t, err)
}

func tokens(list []*domain.Session) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = s.Token
	}
	return out
}
