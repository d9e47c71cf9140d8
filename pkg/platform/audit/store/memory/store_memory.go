package memory

import (
	"context"
	"sync"

	"tokenhold/pkg/domain"
	audit "tokenhold/pkg/platform/audit"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events map[domain.Address][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[domain.Address][]audit.Event)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[domain.Address][]audit.Event)
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.Token] = append(s.events[event.Token], event)
	return nil
}

func (s *InMemoryStore) ListByToken(_ context.Context, token domain.Address) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[token]...), nil
}

// ListByAction filters a token's events by action, preserving order.
func (s *InMemoryStore) ListByAction(_ context.Context, token domain.Address, action audit.AuditEvent) []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, e := range s.events[token] {
		if e.Action == string(action) {
			out = append(out, e)
		}
	}
	return out
}
