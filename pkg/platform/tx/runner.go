package tx

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	dErrors "tokenhold/pkg/domain-errors"
)

// defaultTxTimeout is the maximum duration for a unit of work.
const defaultTxTimeout = 5 * time.Second

// Runner serialises units of work. The host ledger orders all mutating
// calls, so one unit runs at a time; nested calls (hooks calling back in)
// join the unit already in their context.
//
// Reads outside RunInTx (transfer checks, hold lookups, balance queries) take
// no lock. Against the in-memory stores they can observe a unit's writes
// before that unit commits or rolls back.
type Runner struct {
	sem     chan struct{}
	pool    *pgxpool.Pool
	timeout time.Duration
}

type Option func(*Runner)

// WithPool makes every unit open a pgx transaction on pool.
func WithPool(pool *pgxpool.Pool) Option {
	return func(r *Runner) {
		r.pool = pool
	}
}

// WithTimeout bounds each unit when the caller set no deadline.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Runner) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		sem:     make(chan struct{}, 1),
		timeout: defaultTxTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// RunInTx runs fn as one unit. Any error (or panic) from fn undoes every
// journaled mutation and rolls back the pgx transaction.
func (r *Runner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, nested := JournalFrom(ctx); nested {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "transaction aborted: waiting for lock")
	}
	defer func() { <-r.sem }()

	journal := &Journal{}
	txCtx := WithJournal(ctx, journal)

	var pgTx pgx.Tx
	if r.pool != nil {
		pgTx, err = r.pool.Begin(ctx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "begin transaction")
		}
		txCtx = WithPgx(txCtx, pgTx)
	}

	abort := func() {
		journal.rollback()
		if pgTx != nil {
			_ = pgTx.Rollback(context.WithoutCancel(ctx))
		}
	}

	defer func() {
		if p := recover(); p != nil {
			abort()
			panic(p)
		}
	}()

	if err = fn(txCtx); err != nil {
		abort()
		return err
	}

	if pgTx != nil {
		if err = pgTx.Commit(ctx); err != nil {
			journal.rollback()
			return dErrors.Wrap(fmt.Errorf("commit: %w", err), dErrors.CodeInternal, "commit transaction")
		}
	}

	journal.commit(ctx)
	return nil
}
