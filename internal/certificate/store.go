package certificate

import (
	"context"
	"slices"
	"sync"
	"time"

	"tokenhold/pkg/domain"
	"tokenhold/pkg/platform/sentinel"
	"tokenhold/pkg/platform/tx"
)

// Store keeps signer sets and replay state.
//
// AddSigner returns sentinel.ErrConflict for an existing signer and
// RemoveSigner sentinel.ErrNotFound for a missing one. IncrementNonce fails
// with sentinel.ErrConflict unless the stored counter equals expected.
// UseSalt fails with sentinel.ErrAlreadyUsed when the salt was recorded.
type Store interface {
	IsSigner(ctx context.Context, token, signer domain.Address) (bool, error)
	Signers(ctx context.Context, token domain.Address) ([]domain.Address, error)
	AddSigner(ctx context.Context, token, signer domain.Address, at time.Time) error
	RemoveSigner(ctx context.Context, token, signer domain.Address) error
	Nonce(ctx context.Context, token, signer domain.Address) (uint64, error)
	IncrementNonce(ctx context.Context, token, signer domain.Address, expected uint64) error
	IsSaltUsed(ctx context.Context, token, signer domain.Address, salt [32]byte) (bool, error)
	UseSalt(ctx context.Context, token, signer domain.Address, salt [32]byte, at time.Time) error
}

type signerKey struct {
	token  domain.Address
	signer domain.Address
}

type saltKey struct {
	signerKey
	salt [32]byte
}

type InMemoryStore struct {
	mu      sync.RWMutex
	signers map[domain.Address][]domain.Address
	nonces  map[signerKey]uint64
	salts   map[saltKey]time.Time
}

var _ Store = (*InMemoryStore)(nil)

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		signers: make(map[domain.Address][]domain.Address),
		nonces:  make(map[signerKey]uint64),
		salts:   make(map[saltKey]time.Time),
	}
}

func (s *InMemoryStore) IsSigner(_ context.Context, token, signer domain.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Contains(s.signers[token], signer), nil
}

func (s *InMemoryStore) Signers(_ context.Context, token domain.Address) ([]domain.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.signers[token]), nil
}

func (s *InMemoryStore) AddSigner(ctx context.Context, token, signer domain.Address, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.signers[token]
	if slices.Contains(prev, signer) {
		return sentinel.ErrConflict
	}
	s.signers[token] = append(slices.Clone(prev), signer)
	s.onRollback(ctx, func() { s.signers[token] = prev })
	return nil
}

func (s *InMemoryStore) RemoveSigner(ctx context.Context, token, signer domain.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.signers[token]
	i := slices.Index(prev, signer)
	if i < 0 {
		return sentinel.ErrNotFound
	}
	s.signers[token] = slices.Delete(slices.Clone(prev), i, i+1)
	s.onRollback(ctx, func() { s.signers[token] = prev })
	return nil
}

func (s *InMemoryStore) Nonce(_ context.Context, token, signer domain.Address) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nonces[signerKey{token, signer}], nil
}

func (s *InMemoryStore) IncrementNonce(ctx context.Context, token, signer domain.Address, expected uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := signerKey{token, signer}
	if s.nonces[key] != expected {
		return sentinel.ErrConflict
	}
	s.nonces[key] = expected + 1
	s.onRollback(ctx, func() { s.nonces[key] = expected })
	return nil
}

func (s *InMemoryStore) IsSaltUsed(_ context.Context, token, signer domain.Address, salt [32]byte) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.salts[saltKey{signerKey{token, signer}, salt}]
	return ok, nil
}

func (s *InMemoryStore) UseSalt(ctx context.Context, token, signer domain.Address, salt [32]byte, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := saltKey{signerKey{token, signer}, salt}
	if _, ok := s.salts[key]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.salts[key] = at
	s.onRollback(ctx, func() { delete(s.salts, key) })
	return nil
}

func (s *InMemoryStore) onRollback(ctx context.Context, undo func()) {
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		undo()
	})
}
