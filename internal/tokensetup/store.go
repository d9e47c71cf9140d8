package tokensetup

import (
	"context"
	"sync"

	"tokenhold/pkg/domain"
	"tokenhold/pkg/platform/sentinel"
	"tokenhold/pkg/platform/tx"
)

// Store persists token setups. Get returns sentinel.ErrNotFound for unknown
// tokens; Create returns sentinel.ErrConflict for known ones.
type Store interface {
	Get(ctx context.Context, token domain.Address) (*Setup, error)
	Create(ctx context.Context, setup *Setup) error
	Update(ctx context.Context, setup *Setup) error
}

type InMemoryStore struct {
	mu     sync.RWMutex
	setups map[domain.Address]*Setup
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{setups: make(map[domain.Address]*Setup)}
}

func (s *InMemoryStore) Get(_ context.Context, token domain.Address) (*Setup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	setup, ok := s.setups[token]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return setup.Clone(), nil
}

func (s *InMemoryStore) Create(ctx context.Context, setup *Setup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.setups[setup.Token]; ok {
		return sentinel.ErrConflict
	}
	s.setups[setup.Token] = setup.Clone()
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.setups, setup.Token)
	})
	return nil
}

func (s *InMemoryStore) Update(ctx context.Context, setup *Setup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.setups[setup.Token]
	if !ok {
		return sentinel.ErrNotFound
	}
	s.setups[setup.Token] = setup.Clone()
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.setups[prev.Token] = prev
	})
	return nil
}
