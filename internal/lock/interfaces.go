// Package lock provides distributed and local locking abstractions.
// For single-node deployments, memory-based locks are used.
// For deployments that share one record store between instances,
// Redis-based locks can be used.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotAcquired indicates the lock could not be acquired within the retry budget.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker defines the interface for distributed/local locking.
// This abstraction allows switching between in-memory locks (single-node)
// and Redis-based locks (distributed) without changing business logic.
type Locker interface {
	// Acquire attempts to acquire a lock.
	// Returns true if the lock was acquired, false if it's held by another process.
	// The lock will automatically expire after the specified TTL.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// AcquireWithRetry attempts to acquire a lock with retries.
	// Will retry up to maxRetries times with retryDelay between attempts.
	AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error)

	// Release releases a lock.
	// Returns true if the lock was released, false if it wasn't held.
	Release(ctx context.Context, key string) (bool, error)

	// Extend extends the TTL of a held lock.
	// Returns true if the lock was extended, false if it's not held.
	Extend(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsHeld checks if the lock is currently held.
	IsHeld(ctx context.Context, key string) (bool, error)
}

// Options controls how Do acquires a lock.
type Options struct {
	TTL        time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// Do runs fn while holding key.
// It returns ErrNotAcquired when the lock stays busy for the whole retry budget.
func Do(ctx context.Context, locker Locker, key string, opts Options, fn func() error) error {
	acquired, err := locker.AcquireWithRetry(ctx, key, opts.TTL, opts.MaxRetries, opts.RetryDelay)
	if err != nil {
		return fmt.Errorf("acquire %s: %w", key, err)
	}
	if !acquired {
		return fmt.Errorf("%w: %s", ErrNotAcquired, key)
	}

	defer func() {
		// Release must run even when ctx was canceled during fn.
		_, _ = locker.Release(context.WithoutCancel(ctx), key)
	}()

	return fn()
}

// =============================================================================
// Common Lock Keys
// =============================================================================

// Keys provides lock key generation for common scenarios.
var Keys = lockKeys{}

type lockKeys struct{}

// Collection returns the lock key serializing load-mutate-save cycles of a
// record collection.
func (lockKeys) Collection(name string) string {
	return "lock:aipm:collection:" + name
}

// Sweep returns the lock key of the periodic expired-session sweep.
func (lockKeys) Sweep() string {
	return "lock:aipm:sweep"
}
