// Package postgres persists holds with pgx. Aggregates are summed over the
// active rows, which a partial index covers.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tokenhold/internal/hold"
	"tokenhold/internal/platform/postgres"
	"tokenhold/pkg/domain"
	"tokenhold/pkg/platform/sentinel"
	"tokenhold/pkg/platform/tx"
)

const activeStatuses = "(1, 3)"

type Store struct {
	pool *pgxpool.Pool
}

var _ hold.Store = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Get(ctx context.Context, token domain.Address, id domain.HoldID) (*hold.Hold, error) {
	query := `
		SELECT partition, sender, recipient, notary, value::text, expiration,
		       secret_hash, secret, status, created_at, updated_at
		FROM holds
		WHERE token = $1 AND hold_id = $2
	`
	h, err := scanHold(tx.QuerierFrom(ctx, s.pool).QueryRow(ctx, query, token[:], id[:]), token, id)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get hold: %w", err)
	}
	return h, nil
}

func (s *Store) Create(ctx context.Context, h *hold.Hold) error {
	query := `
		INSERT INTO holds (
			token, hold_id, partition, sender, recipient, notary, value, expiration,
			secret_hash, secret, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10, $11, $12, $13)
	`
	_, err := tx.QuerierFrom(ctx, s.pool).Exec(ctx, query,
		h.Token[:],
		h.ID[:],
		h.Partition[:],
		h.Sender[:],
		h.Recipient[:],
		h.Notary[:],
		h.Value.String(),
		nullableTime(h.Expiration),
		h.SecretHash[:],
		h.Secret[:],
		int16(h.Status),
		h.CreatedAt,
		h.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert hold: %w", err)
	}
	return nil
}

// Update writes the mutable columns; identity and parties never change.
func (s *Store) Update(ctx context.Context, h *hold.Hold) error {
	query := `
		UPDATE holds SET
			value = $3::numeric,
			expiration = $4,
			secret = $5,
			status = $6,
			updated_at = $7
		WHERE token = $1 AND hold_id = $2
	`
	tag, err := tx.QuerierFrom(ctx, s.pool).Exec(ctx, query,
		h.Token[:],
		h.ID[:],
		h.Value.String(),
		nullableTime(h.Expiration),
		h.Secret[:],
		int16(h.Status),
		h.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update hold: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Store) OnHoldByPartition(ctx context.Context, token domain.Address, partition domain.Partition, holder domain.Address) (domain.Amount, error) {
	return s.sum(ctx, `token = $1 AND partition = $2 AND sender = $3`, token[:], partition[:], holder[:])
}

func (s *Store) OnHold(ctx context.Context, token, holder domain.Address) (domain.Amount, error) {
	return s.sum(ctx, `token = $1 AND sender = $2`, token[:], holder[:])
}

func (s *Store) TotalOnHoldByPartition(ctx context.Context, token domain.Address, partition domain.Partition) (domain.Amount, error) {
	return s.sum(ctx, `token = $1 AND partition = $2`, token[:], partition[:])
}

func (s *Store) TotalOnHold(ctx context.Context, token domain.Address) (domain.Amount, error) {
	return s.sum(ctx, `token = $1`, token[:])
}

func (s *Store) sum(ctx context.Context, where string, args ...any) (domain.Amount, error) {
	zero := make([]byte, len(domain.ZeroAddress))
	args = append(args, zero)
	query := fmt.Sprintf(`
		SELECT COALESCE(SUM(value), 0)::text
		FROM holds
		WHERE %s AND status IN %s AND sender <> $%d
	`, where, activeStatuses, len(args))

	var raw string
	if err := tx.QuerierFrom(ctx, s.pool).QueryRow(ctx, query, args...).Scan(&raw); err != nil {
		return domain.Amount{}, fmt.Errorf("sum holds: %w", err)
	}
	v, err := domain.ParseAmount(raw)
	if err != nil {
		return domain.Amount{}, fmt.Errorf("sum holds: %w", err)
	}
	return v, nil
}

func scanHold(row pgx.Row, token domain.Address, id domain.HoldID) (*hold.Hold, error) {
	var (
		partition, sender, recipient, notary, secretHash, secret []byte
		value                                                    string
		expiration                                               *time.Time
		status                                                   int16
	)
	h := &hold.Hold{Token: token, ID: id}
	if err := row.Scan(
		&partition, &sender, &recipient, &notary, &value, &expiration,
		&secretHash, &secret, &status, &h.CreatedAt, &h.UpdatedAt,
	); err != nil {
		return nil, err
	}
	for _, f := range []struct {
		dst []byte
		src []byte
	}{
		{h.Partition[:], partition},
		{h.Sender[:], sender},
		{h.Recipient[:], recipient},
		{h.Notary[:], notary},
		{h.SecretHash[:], secretHash},
		{h.Secret[:], secret},
	} {
		if len(f.src) != len(f.dst) {
			return nil, fmt.Errorf("malformed hold column of %d bytes", len(f.src))
		}
		copy(f.dst, f.src)
	}
	amount, err := domain.ParseAmount(value)
	if err != nil {
		return nil, fmt.Errorf("decode hold value: %w", err)
	}
	h.Value = amount
	if expiration != nil {
		h.Expiration = expiration.UTC()
	}
	h.Status = hold.Status(status)
	return h, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
