// Package tx provides the all-or-nothing unit of work shared by every
// mutating operation.
//
// A unit carries a Journal in its context. In-memory stores register undo
// functions with OnRollback; postgres stores pick up the pgx transaction with
// Querier. Work that must only happen once the unit is durable (event
// publication, metrics) is registered with AfterCommit.
package tx

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type (
	journalKey struct{}
	pgxKey     struct{}
)

// Journal collects compensations and post-commit work for one unit.
type Journal struct {
	undo  []func()
	after []func(context.Context)
}

func (j *Journal) rollback() {
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.undo = nil
	j.after = nil
}

func (j *Journal) commit(ctx context.Context) {
	after := j.after
	j.undo = nil
	j.after = nil
	for _, fn := range after {
		fn(ctx)
	}
}

// WithJournal stores j in ctx.
func WithJournal(ctx context.Context, j *Journal) context.Context {
	if j == nil {
		return ctx
	}
	return context.WithValue(ctx, journalKey{}, j)
}

// JournalFrom extracts the active journal, if any.
func JournalFrom(ctx context.Context) (*Journal, bool) {
	j, ok := ctx.Value(journalKey{}).(*Journal)
	return j, ok
}

// OnRollback registers undo to run if the enclosing unit fails. Outside a
// unit the mutation is already final and undo is dropped.
func OnRollback(ctx context.Context, undo func()) {
	if j, ok := JournalFrom(ctx); ok {
		j.undo = append(j.undo, undo)
	}
}

// AfterCommit defers fn until the enclosing unit commits. Outside a unit fn
// runs immediately.
func AfterCommit(ctx context.Context, fn func(context.Context)) {
	if j, ok := JournalFrom(ctx); ok {
		j.after = append(j.after, fn)
		return
	}
	fn(ctx)
}

// WithPgx stores a pgx transaction in context for downstream store usage.
func WithPgx(ctx context.Context, tx pgx.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, pgxKey{}, tx)
}

// PgxFrom extracts a pgx transaction from context if present.
func PgxFrom(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(pgxKey{}).(pgx.Tx)
	return tx, ok
}

// Querier is the subset of pgx shared by pgx.Tx and *pgxpool.Pool.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// QuerierFrom returns the unit's transaction when present, else the pool.
func QuerierFrom(ctx context.Context, pool *pgxpool.Pool) Querier {
	if tx, ok := PgxFrom(ctx); ok {
		return tx
	}
	return pool
}
