// Package hooks resolves the optional capabilities an address may implement
// for a transfer: sender and recipient notification, and a token-wide
// transfer checker.
//
// Capabilities are looked up once per call and invoked through the typed
// interfaces below. An implementation may satisfy any subset of them.
package hooks

import (
	"context"
	"sync"

	"tokenhold/pkg/domain"
)

// Transfer describes the movement a hook is asked about or notified of.
// Operator is zero for a holder-initiated transfer; From is zero for
// issuance.
type Transfer struct {
	Token     domain.Address
	Partition domain.Partition
	Operator  domain.Address
	From      domain.Address
	To        domain.Address
	Value     domain.Amount
	Data      []byte
}

// SendValidator lets a sender refuse an outgoing transfer during checks.
type SendValidator interface {
	CanSend(ctx context.Context, t Transfer) bool
}

// Sender is notified before its balance moves.
type Sender interface {
	TokensToTransfer(ctx context.Context, t Transfer) error
}

// ReceiveValidator lets a recipient refuse an incoming transfer during checks.
type ReceiveValidator interface {
	CanReceive(ctx context.Context, t Transfer) bool
}

// Recipient is notified after its balance moved.
type Recipient interface {
	TokensReceived(ctx context.Context, t Transfer) error
}

// Checker is a token-wide extension consulted after the built-in sender
// checks. A false verdict carries the status and application code reported
// to the caller.
type Checker interface {
	CheckTransfer(ctx context.Context, t Transfer) (ok bool, status byte, appCode domain.Bytes32)
}

// Registry maps addresses to their implementations and tokens to an
// optional checker.
type Registry struct {
	mu       sync.RWMutex
	impls    map[domain.Address]any
	checkers map[domain.Address]Checker
}

func NewRegistry() *Registry {
	return &Registry{
		impls:    make(map[domain.Address]any),
		checkers: make(map[domain.Address]Checker),
	}
}

// Register binds impl to addr, replacing any previous binding. A nil impl
// removes it.
func (r *Registry) Register(addr domain.Address, impl any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if impl == nil {
		delete(r.impls, addr)
		return
	}
	r.impls[addr] = impl
}

// SetChecker installs the checker for token; nil removes it.
func (r *Registry) SetChecker(token domain.Address, c Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c == nil {
		delete(r.checkers, token)
		return
	}
	r.checkers[token] = c
}

func (r *Registry) lookup(addr domain.Address) any {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.impls[addr]
}

func (r *Registry) SendValidatorFor(addr domain.Address) (SendValidator, bool) {
	v, ok := r.lookup(addr).(SendValidator)
	return v, ok
}

func (r *Registry) SenderFor(addr domain.Address) (Sender, bool) {
	v, ok := r.lookup(addr).(Sender)
	return v, ok
}

func (r *Registry) ReceiveValidatorFor(addr domain.Address) (ReceiveValidator, bool) {
	v, ok := r.lookup(addr).(ReceiveValidator)
	return v, ok
}

func (r *Registry) RecipientFor(addr domain.Address) (Recipient, bool) {
	v, ok := r.lookup(addr).(Recipient)
	return v, ok
}

func (r *Registry) CheckerFor(token domain.Address) (Checker, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.checkers[token]
	return c, ok
}
