package eligibility

import (
	"context"
	"sync"

	"tokenhold/pkg/domain"
	"tokenhold/pkg/platform/sentinel"
	"tokenhold/pkg/platform/tx"
)

// Store persists list membership. Add returns sentinel.ErrConflict for an
// existing entry and Remove sentinel.ErrNotFound for a missing one.
type Store interface {
	Add(ctx context.Context, entry Entry) error
	Remove(ctx context.Context, token, addr domain.Address, list List) error
	Contains(ctx context.Context, token, addr domain.Address, list List) (bool, error)
	List(ctx context.Context, token domain.Address, list List) ([]Entry, error)
}

type entryKey struct {
	token domain.Address
	addr  domain.Address
	list  List
}

// InMemoryStore keeps entries in insertion order per key.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[entryKey]Entry
	order   []entryKey
}

var _ Store = (*InMemoryStore)(nil)

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[entryKey]Entry)}
}

func (s *InMemoryStore) Add(ctx context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := entryKey{entry.Token, entry.Address, entry.List}
	if _, ok := s.entries[key]; ok {
		return sentinel.ErrConflict
	}
	s.entries[key] = entry
	s.order = append(s.order, key)
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.drop(key)
	})
	return nil
}

func (s *InMemoryStore) Remove(ctx context.Context, token, addr domain.Address, list List) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := entryKey{token, addr, list}
	prev, ok := s.entries[key]
	if !ok {
		return sentinel.ErrNotFound
	}
	s.drop(key)
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.entries[key] = prev
		s.order = append(s.order, key)
	})
	return nil
}

func (s *InMemoryStore) drop(key entryKey) {
	delete(s.entries, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *InMemoryStore) Contains(_ context.Context, token, addr domain.Address, list List) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[entryKey{token, addr, list}]
	return ok, nil
}

func (s *InMemoryStore) List(_ context.Context, token domain.Address, list List) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, key := range s.order {
		if key.token == token && key.list == list {
			out = append(out, s.entries[key])
		}
	}
	return out, nil
}
