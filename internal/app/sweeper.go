package app

import (
	"context"
	"errors"
	"time"

	"github.com/prn-tf/aipm-identity/internal/lock"
)

// SweepOnce purges stale sessions unless another instance is already doing so.
// It reports how many sessions were removed.
func (a *App) SweepOnce(ctx context.Context, ttl time.Duration) (int, error) {
	var removed int
	err := lock.Do(ctx, a.Locker, lock.Keys.Sweep(), lock.Options{TTL: ttl}, func() error {
		n, err := a.Sessions.Sweep(ctx)
		removed = n
		return err
	})
	if errors.Is(err, lock.ErrNotAcquired) {
		a.Logger.Debug().Msg("session sweep already running elsewhere")
		return 0, nil
	}
	return removed, err
}

// RunSweeper calls SweepOnce every interval until ctx is done.
func (a *App) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.SweepOnce(ctx, interval); err != nil && ctx.Err() == nil {
				a.Logger.Error().Err(err).Msg("session sweep failed")
			}
		}
	}
}
