package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"bridgeai/internal/session"
)

// MockStore is a mock implementation of Store using testify/mock.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateSession(ctx context.Context, s session.Session) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockStore) GetSession(ctx context.Context, id uuid.UUID) (session.Session, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(session.Session), args.Error(1)
}

func (m *MockStore) UpdateSession(ctx context.Context, s session.Session) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockStore) SaveCandidate(ctx context.Context, c Candidate) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockStore) GetCandidate(ctx context.Context, id uuid.UUID) (Candidate, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(Candidate), args.Error(1)
}

func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
