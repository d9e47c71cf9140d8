package ledger

import (
	"context"
	"slices"
	"sync"

	"tokenhold/pkg/domain"
	dErrors "tokenhold/pkg/domain-errors"
	"tokenhold/pkg/platform/sentinel"
	"tokenhold/pkg/platform/tx"
)

type operatorKey struct {
	partition domain.Partition
	holder    domain.Address
	operator  domain.Address
}

type tokenState struct {
	owner       domain.Address
	granularity domain.Amount
	balances    map[domain.Address]map[domain.Partition]domain.Amount
	partitions  map[domain.Address][]domain.Partition
	operators   map[operatorKey]bool
	allowances  map[operatorKey]domain.Amount
}

// Memory is an in-memory Ledger. Mutations register undo work with the unit
// of work in ctx so a failed hold or transfer leaves balances untouched.
type Memory struct {
	mu     sync.RWMutex
	tokens map[domain.Address]*tokenState
}

var _ Ledger = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{tokens: make(map[domain.Address]*tokenState)}
}

// CreateToken deploys a token with the given owner and base granularity.
func (m *Memory) CreateToken(_ context.Context, token, owner domain.Address, granularity domain.Amount) error {
	if granularity.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "granularity must be positive")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[token]; ok {
		return sentinel.ErrConflict
	}
	m.tokens[token] = &tokenState{
		owner:       owner,
		granularity: granularity,
		balances:    make(map[domain.Address]map[domain.Partition]domain.Amount),
		partitions:  make(map[domain.Address][]domain.Partition),
		operators:   make(map[operatorKey]bool),
		allowances:  make(map[operatorKey]domain.Amount),
	}
	return nil
}

func (m *Memory) state(token domain.Address) (*tokenState, error) {
	st, ok := m.tokens[token]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return st, nil
}

func (m *Memory) Owner(_ context.Context, token domain.Address) (domain.Address, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, err := m.state(token)
	if err != nil {
		return domain.ZeroAddress, err
	}
	return st.owner, nil
}

func (m *Memory) Granularity(_ context.Context, token domain.Address) (domain.Amount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, err := m.state(token)
	if err != nil {
		return domain.ZeroAmount, err
	}
	return st.granularity, nil
}

func (m *Memory) BalanceOf(_ context.Context, token, holder domain.Address) (domain.Amount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, err := m.state(token)
	if err != nil {
		return domain.ZeroAmount, err
	}
	total := domain.ZeroAmount
	for _, v := range st.balances[holder] {
		if total, err = total.Add(v); err != nil {
			return domain.ZeroAmount, err
		}
	}
	return total, nil
}

func (m *Memory) BalanceOfByPartition(_ context.Context, token domain.Address, partition domain.Partition, holder domain.Address) (domain.Amount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, err := m.state(token)
	if err != nil {
		return domain.ZeroAmount, err
	}
	return st.balances[holder][partition], nil
}

func (m *Memory) PartitionsOf(_ context.Context, token, holder domain.Address) ([]domain.Partition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, err := m.state(token)
	if err != nil {
		return nil, err
	}
	return slices.Clone(st.partitions[holder]), nil
}

func (m *Memory) TransferByPartition(ctx context.Context, token domain.Address, partition domain.Partition, from, to domain.Address, value domain.Amount) error {
	if to.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "transfer to the zero address")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	st, err := m.state(token)
	if err != nil {
		return err
	}
	fromBal := st.balances[from][partition]
	if fromBal.Cmp(value) < 0 {
		return dErrors.New(dErrors.CodeInsufficientFunds, "insufficient balance")
	}
	if from == to {
		return nil
	}
	undoFrom := st.snapshot(from, partition)
	undoTo := st.snapshot(to, partition)
	newFrom, err := fromBal.Sub(value)
	if err != nil {
		return err
	}
	newTo, err := st.balances[to][partition].Add(value)
	if err != nil {
		return err
	}
	st.set(from, partition, newFrom)
	st.set(to, partition, newTo)
	m.onRollback(ctx, undoTo, undoFrom)
	return nil
}

func (m *Memory) IssueByPartition(ctx context.Context, token domain.Address, partition domain.Partition, to domain.Address, value domain.Amount) error {
	if to.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "issue to the zero address")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	st, err := m.state(token)
	if err != nil {
		return err
	}
	undo := st.snapshot(to, partition)
	next, err := st.balances[to][partition].Add(value)
	if err != nil {
		return err
	}
	st.set(to, partition, next)
	m.onRollback(ctx, undo)
	return nil
}

// AuthorizeOperatorByPartition lets operator move holder's funds on partition.
func (m *Memory) AuthorizeOperatorByPartition(ctx context.Context, token domain.Address, partition domain.Partition, holder, operator domain.Address) error {
	return m.setOperator(ctx, token, operatorKey{partition, holder, operator}, true)
}

func (m *Memory) RevokeOperatorByPartition(ctx context.Context, token domain.Address, partition domain.Partition, holder, operator domain.Address) error {
	return m.setOperator(ctx, token, operatorKey{partition, holder, operator}, false)
}

func (m *Memory) setOperator(ctx context.Context, token domain.Address, key operatorKey, on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, err := m.state(token)
	if err != nil {
		return err
	}
	prev := st.operators[key]
	st.operators[key] = on
	m.onRollback(ctx, func() { st.operators[key] = prev })
	return nil
}

func (m *Memory) IsOperatorForPartition(_ context.Context, token domain.Address, partition domain.Partition, operator, holder domain.Address) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, err := m.state(token)
	if err != nil {
		return false, err
	}
	return st.operators[operatorKey{partition, holder, operator}], nil
}

// ApproveByPartition sets spender's allowance over holder's partition balance.
func (m *Memory) ApproveByPartition(ctx context.Context, token domain.Address, partition domain.Partition, holder, spender domain.Address, value domain.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, err := m.state(token)
	if err != nil {
		return err
	}
	key := operatorKey{partition, holder, spender}
	prev := st.allowances[key]
	st.allowances[key] = value
	m.onRollback(ctx, func() { st.allowances[key] = prev })
	return nil
}

func (m *Memory) AllowanceByPartition(_ context.Context, token domain.Address, partition domain.Partition, holder, spender domain.Address) (domain.Amount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, err := m.state(token)
	if err != nil {
		return domain.ZeroAmount, err
	}
	return st.allowances[operatorKey{partition, holder, spender}], nil
}

func (m *Memory) SpendAllowanceByPartition(ctx context.Context, token domain.Address, partition domain.Partition, holder, spender domain.Address, value domain.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, err := m.state(token)
	if err != nil {
		return err
	}
	key := operatorKey{partition, holder, spender}
	prev := st.allowances[key]
	next, err := prev.Sub(value)
	if err != nil {
		return dErrors.New(dErrors.CodeForbidden, "allowance exceeded")
	}
	st.allowances[key] = next
	m.onRollback(ctx, func() { st.allowances[key] = prev })
	return nil
}

// snapshot captures holder's balance and partition list for undo.
func (st *tokenState) snapshot(holder domain.Address, partition domain.Partition) func() {
	bal, had := st.balances[holder][partition]
	parts := slices.Clone(st.partitions[holder])
	return func() {
		if had {
			st.balances[holder][partition] = bal
		} else if byPartition, ok := st.balances[holder]; ok {
			delete(byPartition, partition)
		}
		st.partitions[holder] = parts
	}
}

func (st *tokenState) set(holder domain.Address, partition domain.Partition, value domain.Amount) {
	byPartition, ok := st.balances[holder]
	if !ok {
		byPartition = make(map[domain.Partition]domain.Amount)
		st.balances[holder] = byPartition
	}
	byPartition[partition] = value
	if !slices.Contains(st.partitions[holder], partition) {
		st.partitions[holder] = append(st.partitions[holder], partition)
	}
}

func (m *Memory) onRollback(ctx context.Context, undos ...func()) {
	tx.OnRollback(ctx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for _, undo := range undos {
			undo()
		}
	})
}
