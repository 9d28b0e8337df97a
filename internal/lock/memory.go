package lock

import (
	"context"
	"sync"
	"time"
)

// sweepInterval is how often a MemoryLocker forgets expired keys.
const sweepInterval = 30 * time.Second

// MemoryLocker implements Locker with a map guarded by a mutex.
// Locks are only visible inside the current process, which is enough when a
// single server owns the record store.
type MemoryLocker struct {
	mu       sync.Mutex
	deadline map[string]time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryLocker creates a MemoryLocker and starts its expiry sweep.
// Call Close to stop the sweep.
func NewMemoryLocker() *MemoryLocker {
	m := &MemoryLocker{
		deadline: make(map[string]time.Time),
		stop:     make(chan struct{}),
	}
	go m.sweepLoop()
	return m
}

// Close stops the background sweep.
func (m *MemoryLocker) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })
	return nil
}

func (m *MemoryLocker) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.mu.Lock()
			for key := range m.deadline {
				m.heldLocked(key, now)
			}
			m.mu.Unlock()
		}
	}
}

// heldLocked reports whether key is held at now, forgetting it when its
// deadline has passed. m.mu must be held.
func (m *MemoryLocker) heldLocked(key string, now time.Time) bool {
	deadline, ok := m.deadline[key]
	if !ok {
		return false
	}
	if !now.Before(deadline) {
		delete(m.deadline, key)
		return false
	}
	return true
}

// Acquire implements Locker.
func (m *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if m.heldLocked(key, now) {
		return false, nil
	}
	m.deadline[key] = now.Add(ttl)
	return true, nil
}

// AcquireWithRetry implements Locker.
func (m *MemoryLocker) AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error) {
	return retry(ctx, maxRetries, retryDelay, func() (bool, error) {
		return m.Acquire(ctx, key, ttl)
	})
}

// Release implements Locker.
func (m *MemoryLocker) Release(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.deadline[key]
	delete(m.deadline, key)
	return ok, nil
}

// Extend implements Locker.
func (m *MemoryLocker) Extend(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if !m.heldLocked(key, now) {
		return false, nil
	}
	m.deadline[key] = now.Add(ttl)
	return true, nil
}

// IsHeld implements Locker.
func (m *MemoryLocker) IsHeld(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.heldLocked(key, time.Now()), nil
}

// retry calls attempt up to maxRetries+1 times, waiting delay between
// unsuccessful attempts.
func retry(ctx context.Context, maxRetries int, delay time.Duration, attempt func() (bool, error)) (bool, error) {
	for i := 0; ; i++ {
		ok, err := attempt()
		if err != nil || ok {
			return ok, err
		}
		if i >= maxRetries {
			return false, nil
		}
		if err := sleep(ctx, delay); err != nil {
			return false, err
		}
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ Locker = (*MemoryLocker)(nil)
