// Package ledger describes the partitioned-balance token ledger the hold and
// transfer services sit on, and ships an in-memory implementation.
package ledger

//go:generate mockgen -source=ledger.go -destination=mocks/mock_ledger.go -package=mocks

import (
	"context"

	"tokenhold/pkg/domain"
)

// Ledger is the host ledger as seen by this module. Unknown tokens return
// sentinel.ErrNotFound; unknown holders have zero balances.
type Ledger interface {
	Owner(ctx context.Context, token domain.Address) (domain.Address, error)
	Granularity(ctx context.Context, token domain.Address) (domain.Amount, error)
	BalanceOf(ctx context.Context, token, holder domain.Address) (domain.Amount, error)
	BalanceOfByPartition(ctx context.Context, token domain.Address, partition domain.Partition, holder domain.Address) (domain.Amount, error)
	PartitionsOf(ctx context.Context, token, holder domain.Address) ([]domain.Partition, error)
	TransferByPartition(ctx context.Context, token domain.Address, partition domain.Partition, from, to domain.Address, value domain.Amount) error
	IssueByPartition(ctx context.Context, token domain.Address, partition domain.Partition, to domain.Address, value domain.Amount) error
	IsOperatorForPartition(ctx context.Context, token domain.Address, partition domain.Partition, operator, holder domain.Address) (bool, error)
	AllowanceByPartition(ctx context.Context, token domain.Address, partition domain.Partition, holder, spender domain.Address) (domain.Amount, error)
	SpendAllowanceByPartition(ctx context.Context, token domain.Address, partition domain.Partition, holder, spender domain.Address, value domain.Amount) error
}
