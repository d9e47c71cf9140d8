package hold

import (
	"context"

	"tokenhold/pkg/domain"
	dErrors "tokenhold/pkg/domain-errors"
)

// BalanceReader is the ledger side of the spendable-balance figures.
type BalanceReader interface {
	BalanceOf(ctx context.Context, token, holder domain.Address) (domain.Amount, error)
	BalanceOfByPartition(ctx context.Context, token domain.Address, partition domain.Partition, holder domain.Address) (domain.Amount, error)
}

// Balances derives on-hold and spendable figures from the hold store and the
// ledger. All methods are pure reads.
type Balances struct {
	store  Store
	ledger BalanceReader
}

func NewBalances(store Store, ledger BalanceReader) *Balances {
	return &Balances{store: store, ledger: ledger}
}

func (b *Balances) BalanceOnHoldByPartition(ctx context.Context, token domain.Address, partition domain.Partition, holder domain.Address) (domain.Amount, error) {
	v, err := b.store.OnHoldByPartition(ctx, token, partition, holder)
	if err != nil {
		return domain.Amount{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sum holds")
	}
	return v, nil
}

func (b *Balances) BalanceOnHold(ctx context.Context, token, holder domain.Address) (domain.Amount, error) {
	v, err := b.store.OnHold(ctx, token, holder)
	if err != nil {
		return domain.Amount{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sum holds")
	}
	return v, nil
}

func (b *Balances) TotalSupplyOnHoldByPartition(ctx context.Context, token domain.Address, partition domain.Partition) (domain.Amount, error) {
	v, err := b.store.TotalOnHoldByPartition(ctx, token, partition)
	if err != nil {
		return domain.Amount{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sum holds")
	}
	return v, nil
}

func (b *Balances) TotalSupplyOnHold(ctx context.Context, token domain.Address) (domain.Amount, error) {
	v, err := b.store.TotalOnHold(ctx, token)
	if err != nil {
		return domain.Amount{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sum holds")
	}
	return v, nil
}

// SpendableBalanceOfByPartition is the partition balance minus what active
// holds reserve on it.
func (b *Balances) SpendableBalanceOfByPartition(ctx context.Context, token domain.Address, partition domain.Partition, holder domain.Address) (domain.Amount, error) {
	balance, err := b.ledger.BalanceOfByPartition(ctx, token, partition, holder)
	if err != nil {
		return domain.Amount{}, translateLedgerError(err)
	}
	onHold, err := b.BalanceOnHoldByPartition(ctx, token, partition, holder)
	if err != nil {
		return domain.Amount{}, err
	}
	return spendable(balance, onHold)
}

// SpendableBalanceOf is the total balance minus what active holds reserve
// across all partitions.
func (b *Balances) SpendableBalanceOf(ctx context.Context, token, holder domain.Address) (domain.Amount, error) {
	balance, err := b.ledger.BalanceOf(ctx, token, holder)
	if err != nil {
		return domain.Amount{}, translateLedgerError(err)
	}
	onHold, err := b.BalanceOnHold(ctx, token, holder)
	if err != nil {
		return domain.Amount{}, err
	}
	return spendable(balance, onHold)
}

func spendable(balance, onHold domain.Amount) (domain.Amount, error) {
	v, err := balance.Sub(onHold)
	if err != nil {
		return domain.Amount{}, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "holds exceed balance")
	}
	return v, nil
}
