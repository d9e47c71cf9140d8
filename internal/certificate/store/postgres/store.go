// Package postgres keeps certificate signers and replay state in postgres.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"tokenhold/internal/certificate"
	"tokenhold/internal/platform/postgres"
	"tokenhold/pkg/domain"
	"tokenhold/pkg/platform/sentinel"
	"tokenhold/pkg/platform/tx"
)

type Store struct {
	pool *pgxpool.Pool
}

var _ certificate.Store = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) IsSigner(ctx context.Context, token, signer domain.Address) (bool, error) {
	var exists bool
	err := tx.QuerierFrom(ctx, s.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM certificate_signers WHERE token = $1 AND signer = $2)`,
		token[:], signer[:],
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check certificate signer: %w", err)
	}
	return exists, nil
}

func (s *Store) Signers(ctx context.Context, token domain.Address) ([]domain.Address, error) {
	rows, err := tx.QuerierFrom(ctx, s.pool).Query(ctx,
		`SELECT signer FROM certificate_signers WHERE token = $1 ORDER BY added_at, signer`,
		token[:],
	)
	if err != nil {
		return nil, fmt.Errorf("list certificate signers: %w", err)
	}
	defer rows.Close()

	var signers []domain.Address
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan certificate signer: %w", err)
		}
		var addr domain.Address
		if len(raw) != len(addr) {
			return nil, fmt.Errorf("scan certificate signer: malformed address of %d bytes", len(raw))
		}
		copy(addr[:], raw)
		signers = append(signers, addr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate certificate signers: %w", err)
	}
	return signers, nil
}

func (s *Store) AddSigner(ctx context.Context, token, signer domain.Address, at time.Time) error {
	_, err := tx.QuerierFrom(ctx, s.pool).Exec(ctx,
		`INSERT INTO certificate_signers (token, signer, added_at) VALUES ($1, $2, $3)`,
		token[:], signer[:], at,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert certificate signer: %w", err)
	}
	return nil
}

func (s *Store) RemoveSigner(ctx context.Context, token, signer domain.Address) error {
	tag, err := tx.QuerierFrom(ctx, s.pool).Exec(ctx,
		`DELETE FROM certificate_signers WHERE token = $1 AND signer = $2`,
		token[:], signer[:],
	)
	if err != nil {
		return fmt.Errorf("delete certificate signer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// Nonce is zero for a signer that never consumed a certificate.
func (s *Store) Nonce(ctx context.Context, token, signer domain.Address) (uint64, error) {
	var n int64
	err := tx.QuerierFrom(ctx, s.pool).QueryRow(ctx,
		`SELECT nonce FROM certificate_nonces WHERE token = $1 AND signer = $2`,
		token[:], signer[:],
	).Scan(&n)
	if err != nil {
		if postgres.IsNoRows(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("get certificate nonce: %w", err)
	}
	return uint64(n), nil
}

// IncrementNonce is a compare-and-swap on the stored counter. A missing row
// counts as zero.
func (s *Store) IncrementNonce(ctx context.Context, token, signer domain.Address, expected uint64) error {
	query := `
		UPDATE certificate_nonces SET nonce = nonce + 1
		WHERE token = $1 AND signer = $2 AND nonce = $3
	`
	args := []any{token[:], signer[:], int64(expected)}
	if expected == 0 {
		query = `
			INSERT INTO certificate_nonces (token, signer, nonce)
			VALUES ($1, $2, 1)
			ON CONFLICT (token, signer) DO NOTHING
		`
		args = args[:2]
	}
	tag, err := tx.QuerierFrom(ctx, s.pool).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("increment certificate nonce: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *Store) IsSaltUsed(ctx context.Context, token, signer domain.Address, salt [32]byte) (bool, error) {
	var used bool
	err := tx.QuerierFrom(ctx, s.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM certificate_used_salts WHERE token = $1 AND signer = $2 AND salt = $3)`,
		token[:], signer[:], salt[:],
	).Scan(&used)
	if err != nil {
		return false, fmt.Errorf("check certificate salt: %w", err)
	}
	return used, nil
}

func (s *Store) UseSalt(ctx context.Context, token, signer domain.Address, salt [32]byte, at time.Time) error {
	_, err := tx.QuerierFrom(ctx, s.pool).Exec(ctx,
		`INSERT INTO certificate_used_salts (token, signer, salt, used_at) VALUES ($1, $2, $3, $4)`,
		token[:], signer[:], salt[:], at,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert certificate salt: %w", err)
	}
	return nil
}
