package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"bridgeai/internal/session"
)

// MemoryStore keeps everything in process. Values are copied on the way in
// and out so callers never share slices with the store.
type MemoryStore struct {
	mu         sync.RWMutex
	sessions   map[uuid.UUID]session.Session
	candidates map[uuid.UUID]Candidate
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		sessions:   make(map[uuid.UUID]session.Session),
		candidates: make(map[uuid.UUID]Candidate),
	}
}

func (m *MemoryStore) CreateSession(_ context.Context, s session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, id uuid.UUID) (session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return session.Session{}, ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) UpdateSession(_ context.Context, s session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; !ok {
		return ErrSessionNotFound
	}
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) SaveCandidate(_ context.Context, c Candidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidates[c.ID] = cloneCandidate(c)
	return nil
}

func (m *MemoryStore) GetCandidate(_ context.Context, id uuid.UUID) (Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.candidates[id]
	if !ok {
		return Candidate{}, ErrCandidateNotFound
	}
	return cloneCandidate(c), nil
}

func (m *MemoryStore) Close() error { return nil }

func cloneCandidate(c Candidate) Candidate {
	if c.Profile != nil {
		p := c.Profile.Clone()
		c.Profile = &p
	}
	return c
}
