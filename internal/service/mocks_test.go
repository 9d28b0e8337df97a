package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/prn-tf/aipm-identity/internal/domain"
	"github.com/prn-tf/aipm-identity/internal/repository"
)

// MockUserRepository is a testify mock of repository.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *MockUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]*domain.User)
	return users, args.Error(1)
}

func (m *MockUserRepository) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, id string, fn func(*domain.User) error) (*domain.User, error) {
	args := m.Called(ctx, id, fn)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

// MockSessionRepository is a testify mock of repository.SessionRepository.
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Create(ctx context.Context, session *domain.Session, now time.Time, maxPerUser int) ([]string, error) {
	args := m.Called(ctx, session, now, maxPerUser)
	evicted, _ := args.Get(0).([]string)
	return evicted, args.Error(1)
}

func (m *MockSessionRepository) Get(ctx context.Context, token string) (*domain.Session, error) {
	args := m.Called(ctx, token)
	session, _ := args.Get(0).(*domain.Session)
	return session, args.Error(1)
}

func (m *MockSessionRepository) Touch(ctx context.Context, token string, now time.Time) (*domain.Session, error) {
	args := m.Called(ctx, token, now)
	session, _ := args.Get(0).(*domain.Session)
	return session, args.Error(1)
}

func (m *MockSessionRepository) Delete(ctx context.Context, token string, now time.Time) (bool, error) {
	args := m.Called(ctx, token, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockSessionRepository) DeleteByUserID(ctx context.Context, userID string, now time.Time) (int, error) {
	args := m.Called(ctx, userID, now)
	return args.Int(0), args.Error(1)
}

func (m *MockSessionRepository) ListByUserID(ctx context.Context, userID string, now time.Time) ([]*domain.Session, error) {
	args := m.Called(ctx, userID, now)
	sessions, _ := args.Get(0).([]*domain.Session)
	return sessions, args.Error(1)
}

func (m *MockSessionRepository) List(ctx context.Context, now time.Time) ([]*domain.Session, error) {
	args := m.Called(ctx, now)
	sessions, _ := args.Get(0).([]*domain.Session)
	return sessions, args.Error(1)
}

func (m *MockSessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

var (
	_ repository.UserRepository    = (*MockUserRepository)(nil)
	_ repository.SessionRepository = (*MockSessionRepository)(nil)
)
