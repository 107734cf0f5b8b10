package session

import (
	"context"
	"sync"

	"github.com/stemsi/help-queue/internal/model"
)

// MemoryStore is a process-local Store. Sessions are lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*model.SessionState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*model.SessionState),
	}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*model.SessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.sessions[id]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return clone(state), nil
}

func (s *MemoryStore) Save(_ context.Context, id string, state *model.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = clone(state)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}
