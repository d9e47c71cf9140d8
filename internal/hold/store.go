package hold

import (
	"context"
	"sync"

	"tokenhold/pkg/domain"
	"tokenhold/pkg/platform/sentinel"
	"tokenhold/pkg/platform/tx"
)

// Store persists holds and answers the balance-on-hold aggregates. Only
// active holds with a non-zero sender count towards an aggregate.
//
// Create returns sentinel.ErrConflict for a used id; Get and Update return
// sentinel.ErrNotFound for an unknown one. Holds are never deleted.
type Store interface {
	Get(ctx context.Context, token domain.Address, id domain.HoldID) (*Hold, error)
	Create(ctx context.Context, h *Hold) error
	Update(ctx context.Context, h *Hold) error
	OnHoldByPartition(ctx context.Context, token domain.Address, partition domain.Partition, holder domain.Address) (domain.Amount, error)
	OnHold(ctx context.Context, token, holder domain.Address) (domain.Amount, error)
	TotalOnHoldByPartition(ctx context.Context, token domain.Address, partition domain.Partition) (domain.Amount, error)
	TotalOnHold(ctx context.Context, token domain.Address) (domain.Amount, error)
}

type holdKey struct {
	token domain.Address
	id    domain.HoldID
}

// InMemoryStore keeps holds in a map and sums aggregates on read.
type InMemoryStore struct {
	mu    sync.RWMutex
	holds map[holdKey]*Hold
}

var _ Store = (*InMemoryStore)(nil)

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{holds: make(map[holdKey]*Hold)}
}

func (s *InMemoryStore) Get(_ context.Context, token domain.Address, id domain.HoldID) (*Hold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.holds[holdKey{token, id}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return h.Clone(), nil
}

func (s *InMemoryStore) Create(ctx context.Context, h *Hold) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := holdKey{h.Token, h.ID}
	if _, ok := s.holds[key]; ok {
		return sentinel.ErrConflict
	}
	s.holds[key] = h.Clone()
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.holds, key)
	})
	return nil
}

func (s *InMemoryStore) Update(ctx context.Context, h *Hold) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := holdKey{h.Token, h.ID}
	prev, ok := s.holds[key]
	if !ok {
		return sentinel.ErrNotFound
	}
	s.holds[key] = h.Clone()
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.holds[key] = prev
	})
	return nil
}

func (s *InMemoryStore) OnHoldByPartition(_ context.Context, token domain.Address, partition domain.Partition, holder domain.Address) (domain.Amount, error) {
	return s.sum(func(h *Hold) bool {
		return h.Token == token && h.Partition == partition && h.Sender == holder
	})
}

func (s *InMemoryStore) OnHold(_ context.Context, token, holder domain.Address) (domain.Amount, error) {
	return s.sum(func(h *Hold) bool {
		return h.Token == token && h.Sender == holder
	})
}

func (s *InMemoryStore) TotalOnHoldByPartition(_ context.Context, token domain.Address, partition domain.Partition) (domain.Amount, error) {
	return s.sum(func(h *Hold) bool {
		return h.Token == token && h.Partition == partition
	})
}

func (s *InMemoryStore) TotalOnHold(_ context.Context, token domain.Address) (domain.Amount, error) {
	return s.sum(func(h *Hold) bool {
		return h.Token == token
	})
}

func (s *InMemoryStore) sum(match func(*Hold) bool) (domain.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := domain.NewAmount(0)
	for _, h := range s.holds {
		if !h.Status.IsActive() || h.IsPreHold() || !match(h) {
			continue
		}
		var err error
		if total, err = total.Add(h.Value); err != nil {
			return domain.Amount{}, err
		}
	}
	return total, nil
}
