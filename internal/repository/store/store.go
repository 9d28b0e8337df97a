// Package store implements the user and session repositories over the record
// store. Every read loads the whole collection again; every mutation is a
// load-mutate-save cycle serialized by a collection lock.
package store

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/aipm-identity/internal/domain"
	"github.com/prn-tf/aipm-identity/internal/lock"
	"github.com/prn-tf/aipm-identity/internal/repository/recordstore"
)

// Options configures a Store.
type Options struct {
	// Locker serializes load-mutate-save cycles. Nil disables locking.
	Locker lock.Locker

	// Lock controls acquisition of collection locks.
	Lock lock.Options

	// Observer is notified of every collection load. May be nil.
	Observer recordstore.LoadObserver
}

// DefaultLockOptions are used when Options.Lock is left zero.
var DefaultLockOptions = lock.Options{
	TTL:        10 * time.Second,
	MaxRetries: 50,
	RetryDelay: 20 * time.Millisecond,
}

// Store owns the two collections of a backend.
type Store struct {
	backend  recordstore.Backend
	users    *recordstore.Collection[domain.User]
	sessions *recordstore.Collection[domain.Session]
	locker   lock.Locker
	lockOpts lock.Options
	logger   zerolog.Logger
}

// New creates a Store over backend.
func New(backend recordstore.Backend, opts Options, logger zerolog.Logger) *Store {
	locker := opts.Locker
	if locker == nil {
		locker = lock.NewNoOpLocker()
	}
	lockOpts := opts.Lock
	if lockOpts.TTL <= 0 {
		lockOpts = DefaultLockOptions
	}

	return &Store{
		backend:  backend,
		users:    recordstore.NewCollection[domain.User](backend, recordstore.CollectionUsers, opts.Observer, logger),
		sessions: recordstore.NewCollection[domain.Session](backend, recordstore.CollectionSessions, opts.Observer, logger),
		locker:   locker,
		lockOpts: lockOpts,
		logger:   logger.With().Str("component", "store").Logger(),
	}
}

// Backend returns the underlying record backend.
func (s *Store) Backend() recordstore.Backend {
	return s.backend
}

// Users returns the user repository.
func (s *Store) Users() *UserRepository {
	return &UserRepository{store: s, collection: s.users}
}

// Sessions returns the session repository.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{store: s, collection: s.sessions}
}

// withLock runs fn while holding the lock of collection.
func (s *Store) withLock(ctx context.Context, collection string, fn func() error) error {
	return lock.Do(ctx, s.locker, lock.Keys.Collection(collection), s.lockOpts, fn)
}
