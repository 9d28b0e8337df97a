package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/prn-tf/aipm-identity/internal/domain"
	"github.com/prn-tf/aipm-identity/internal/repository"
	"github.com/prn-tf/aipm-identity/internal/repository/recordstore"
)

// SessionRepository implements repository.SessionRepository.
type SessionRepository struct {
	store      *Store
	collection *recordstore.Collection[domain.Session]
}

// mutate runs a load-mutate-save cycle on the sessions collection.
// fn reports whether it changed the records. Stale sessions are pruned in
// the same cycle, and nothing is written when neither produced a change.
func (r *SessionRepository) mutate(ctx context.Context, now time.Time, fn func(map[string]*domain.Session) (bool, error)) error {
	return r.store.withLock(ctx, recordstore.CollectionSessions, func() error {
		sessions, err := r.collection.LoadForUpdate(ctx)
		if err != nil {
			return err
		}

		changed, err := fn(sessions)
		if err != nil {
			return err
		}
		if prune(sessions, now) > 0 {
			changed = true
		}
		if !changed {
			return nil
		}
		return r.collection.Save(ctx, sessions)
	})
}

// Create implements repository.SessionRepository.
func (r *SessionRepository) Create(ctx context.Context, session *domain.Session, now time.Time, maxPerUser int) ([]string, error) {
	var evicted []string
	err := r.mutate(ctx, now, func(sessions map[string]*domain.Session) (bool, error) {
		if _, exists := sessions[session.Token]; exists {
			return false, fmt.Errorf("%w: session token", repository.ErrAlreadyExists)
		}

		if maxPerUser > 0 {
			prune(sessions, now)
			owned := byRecency(sessions, func(s *domain.Session) bool { return s.UserID == session.UserID })
			// owned is most recent first; evict from the tail.
			for len(owned) >= maxPerUser {
				oldest := owned[len(owned)-1]
				delete(sessions, oldest.Token)
				evicted = append(evicted, oldest.Token)
				owned = owned[:len(owned)-1]
			}
		}

		sessions[session.Token] = session
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return evicted, nil
}

// Get implements repository.SessionRepository.
func (r *SessionRepository) Get(ctx context.Context, token string) (*domain.Session, error) {
	sessions, _ := r.collection.Load(ctx)
	session, ok := sessions[token]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return session, nil
}

// Touch implements repository.SessionRepository.
func (r *SessionRepository) Touch(ctx context.Context, token string, now time.Time) (*domain.Session, error) {
	var (
		touched *domain.Session
		result  error
	)
	err := r.mutate(ctx, now, func(sessions map[string]*domain.Session) (bool, error) {
		session, ok := sessions[token]
		switch {
		case !ok:
			result = repository.ErrNotFound
			return false, nil
		case !session.IsActive:
			delete(sessions, token)
			result = repository.ErrNotFound
			return true, nil
		case session.IsExpired(now):
			delete(sessions, token)
			result = repository.ErrExpired
			return true, nil
		}

		session.LastActive = now
		touched = session
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if result != nil {
		return nil, result
	}
	return touched, nil
}

// Delete implements repository.SessionRepository.
// A stale record is pruned like any other and does not count as deleted.
func (r *SessionRepository) Delete(ctx context.Context, token string, now time.Time) (bool, error) {
	deleted := false
	err := r.mutate(ctx, now, func(sessions map[string]*domain.Session) (bool, error) {
		session, ok := sessions[token]
		if !ok || !session.IsUsable(now) {
			return false, nil
		}
		delete(sessions, token)
		deleted = true
		return true, nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// DeleteByUserID implements repository.SessionRepository.
func (r *SessionRepository) DeleteByUserID(ctx context.Context, userID string, now time.Time) (int, error) {
	removed := 0
	err := r.mutate(ctx, now, func(sessions map[string]*domain.Session) (bool, error) {
		for token, s := range sessions {
			if s.UserID == userID {
				delete(sessions, token)
				removed++
			}
		}
		return removed > 0, nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// ListByUserID implements repository.SessionRepository.
func (r *SessionRepository) ListByUserID(ctx context.Context, userID string, now time.Time) ([]*domain.Session, error) {
	sessions, _ := r.collection.Load(ctx)
	prune(sessions, now)
	return byRecency(sessions, func(s *domain.Session) bool { return s.UserID == userID }), nil
}

// List implements repository.SessionRepository.
func (r *SessionRepository) List(ctx context.Context, now time.Time) ([]*domain.Session, error) {
	sessions, _ := r.collection.Load(ctx)
	prune(sessions, now)
	return byRecency(sessions, func(*domain.Session) bool { return true }), nil
}

// DeleteExpired implements repository.SessionRepository.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	err := r.mutate(ctx, now, func(sessions map[string]*domain.Session) (bool, error) {
		removed = prune(sessions, now)
		return removed > 0, nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// prune drops sessions that are inactive or expired at now.
func prune(sessions map[string]*domain.Session, now time.Time) int {
	removed := 0
	for token, s := range sessions {
		if !s.IsUsable(now) {
			delete(sessions, token)
			removed++
		}
	}
	return removed
}

// byRecency returns the sessions matching keep, most recently active first.
func byRecency(sessions map[string]*domain.Session, keep func(*domain.Session) bool) []*domain.Session {
	list := make([]*domain.Session, 0, len(sessions))
	for _, s := range sessions {
		if keep(s) {
			list = append(list, s)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].LastActive.Equal(list[j].LastActive) {
			return list[i].LastActive.After(list[j].LastActive)
		}
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].Token < list[j].Token
	})
	return list
}

var _ repository.SessionRepository = (*SessionRepository)(nil)
