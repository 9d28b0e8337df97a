package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/prn-tf/aipm-identity/internal/domain"
	"github.com/prn-tf/aipm-identity/internal/repository"
	"github.com/prn-tf/aipm-identity/internal/repository/recordstore"
)

// UserRepository implements repository.UserRepository.
type UserRepository struct {
	store      *Store
	collection *recordstore.Collection[domain.User]
}

// Create implements repository.UserRepository.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	return r.store.withLock(ctx, recordstore.CollectionUsers, func() error {
		users, err := r.collection.LoadForUpdate(ctx)
		if err != nil {
			return err
		}

		if _, exists := users[user.ID]; exists {
			return fmt.Errorf("%w: user id %s", repository.ErrAlreadyExists, user.ID)
		}
		for _, existing := range users {
			if existing.HasEmail(user.Email) {
				return fmt.Errorf("%w: email %s", repository.ErrAlreadyExists, domain.NormalizeEmail(user.Email))
			}
		}

		users[user.ID] = user
		return r.collection.Save(ctx, users)
	})
}

// GetByID implements repository.UserRepository.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	users, _ := r.collection.Load(ctx)
	user, ok := users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return user, nil
}

// GetByEmail implements repository.UserRepository.
// If several records share an email, which creation prevents, the oldest wins.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	users, _ := r.collection.Load(ctx)
	for _, user := range sortUsers(users) {
		if user.HasEmail(email) {
			return user, nil
		}
	}
	return nil, repository.ErrNotFound
}

// List implements repository.UserRepository.
func (r *UserRepository) List(ctx context.Context) ([]*domain.User, error) {
	users, _ := r.collection.Load(ctx)
	return sortUsers(users), nil
}

// Count implements repository.UserRepository.
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	users, _ := r.collection.Load(ctx)
	return len(users), nil
}

// Update implements repository.UserRepository.
func (r *UserRepository) Update(ctx context.Context, id string, fn func(*domain.User) error) (*domain.User, error) {
	var updated *domain.User
	err := r.store.withLock(ctx, recordstore.CollectionUsers, func() error {
		users, err := r.collection.LoadForUpdate(ctx)
		if err != nil {
			return err
		}
		user, ok := users[id]
		if !ok {
			return repository.ErrNotFound
		}
		if err := fn(user); err != nil {
			return err
		}
		// The identifier is the map key and may not change.
		user.ID = id
		if err := r.collection.Save(ctx, users); err != nil {
			return err
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func sortUsers(users map[string]*domain.User) []*domain.User {
	list := make([]*domain.User, 0, len(users))
	for _, u := range users {
		list = append(list, u)
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
	return list
}

var _ repository.UserRepository = (*UserRepository)(nil)
