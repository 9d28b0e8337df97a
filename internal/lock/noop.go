package lock

import (
	"context"
	"time"
)

// NoOpLocker grants every lock immediately and holds nothing.
// It backs lock.backend "none": concurrent load-mutate-save cycles may then
// overwrite each other, the last save winning.
type NoOpLocker struct{}

// NewNoOpLocker creates a new no-op locker.
func NewNoOpLocker() *NoOpLocker {
	return &NoOpLocker{}
}

// Acquire succeeds unless ctx is done.
func (NoOpLocker) Acquire(ctx context.Context, _ string, _ time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return true, nil
}

// AcquireWithRetry succeeds unless ctx is done.
func (n NoOpLocker) AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, _ int, _ time.Duration) (bool, error) {
	return n.Acquire(ctx, key, ttl)
}

// Release reports success; there is nothing to release.
func (NoOpLocker) Release(context.Context, string) (bool, error) {
	return true, nil
}

// Extend reports success; there is nothing to extend.
func (NoOpLocker) Extend(context.Context, string, time.Duration) (bool, error) {
	return true, nil
}

// IsHeld is always false.
func (NoOpLocker) IsHeld(context.Context, string) (bool, error) {
	return false, nil
}

var _ Locker = (*NoOpLocker)(nil)
