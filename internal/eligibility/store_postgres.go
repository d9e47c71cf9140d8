package eligibility

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"tokenhold/pkg/domain"
	"tokenhold/pkg/platform/sentinel"
)

const pqUniqueViolation = "23505"

// PostgresStore persists list entries through database/sql. List changes are
// single statements and do not join the pgx unit of work.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Add(ctx context.Context, entry Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO token_eligibility (token, address, list, created_at) VALUES ($1, $2, $3, $4)`,
		entry.Token.String(), entry.Address.String(), string(entry.List), entry.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("add eligibility entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) Remove(ctx context.Context, token, addr domain.Address, list List) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM token_eligibility WHERE token = $1 AND address = $2 AND list = $3`,
		token.String(), addr.String(), string(list),
	)
	if err != nil {
		return fmt.Errorf("remove eligibility entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove eligibility entry: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Contains(ctx context.Context, token, addr domain.Address, list List) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM token_eligibility WHERE token = $1 AND address = $2 AND list = $3)`,
		token.String(), addr.String(), string(list),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check eligibility: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) List(ctx context.Context, token domain.Address, list List) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT address, created_at FROM token_eligibility WHERE token = $1 AND list = $2 ORDER BY created_at, address`,
		token.String(), string(list),
	)
	if err != nil {
		return nil, fmt.Errorf("list eligibility entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var raw string
		entry := Entry{Token: token, List: list}
		if err := rows.Scan(&raw, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan eligibility entry: %w", err)
		}
		if entry.Address, err = domain.ParseAddress(raw); err != nil {
			return nil, fmt.Errorf("scan eligibility entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate eligibility entries: %w", err)
	}
	return entries, nil
}
