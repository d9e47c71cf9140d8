// Package postgres persists token setups with pgx. Writes join the pgx
// transaction of the surrounding unit of work when there is one.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"tokenhold/internal/platform/postgres"
	"tokenhold/internal/tokensetup"
	"tokenhold/pkg/domain"
	"tokenhold/pkg/platform/sentinel"
	"tokenhold/pkg/platform/tx"
)

type Store struct {
	pool *pgxpool.Pool
}

var _ tokensetup.Store = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Get(ctx context.Context, token domain.Address) (*tokensetup.Setup, error) {
	query := `
		SELECT certificate_mode, allowlist_activated, blocklist_activated,
		       granularity_by_partition_activated, holds_activated,
		       controllers, partition_granularity, created_at, updated_at
		FROM token_setups
		WHERE token = $1
	`
	var (
		mode        int16
		controllers [][]byte
		granularity []byte
		setup       = &tokensetup.Setup{Token: token}
	)
	err := tx.QuerierFrom(ctx, s.pool).QueryRow(ctx, query, token[:]).Scan(
		&mode,
		&setup.AllowlistActivated,
		&setup.BlocklistActivated,
		&setup.GranularityByPartitionActivated,
		&setup.HoldsActivated,
		&controllers,
		&granularity,
		&setup.CreatedAt,
		&setup.UpdatedAt,
	)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get token setup: %w", err)
	}
	setup.CertificateMode = tokensetup.CertificateMode(mode)
	for _, raw := range controllers {
		var addr domain.Address
		if len(raw) != len(addr) {
			return nil, fmt.Errorf("get token setup: malformed controller of %d bytes", len(raw))
		}
		copy(addr[:], raw)
		setup.Controllers = append(setup.Controllers, addr)
	}
	if len(granularity) > 0 {
		if err := json.Unmarshal(granularity, &setup.PartitionGranularity); err != nil {
			return nil, fmt.Errorf("decode partition granularity: %w", err)
		}
	}
	return setup, nil
}

func (s *Store) Create(ctx context.Context, setup *tokensetup.Setup) error {
	controllers, granularity, err := encode(setup)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO token_setups (
			token, certificate_mode, allowlist_activated, blocklist_activated,
			granularity_by_partition_activated, holds_activated,
			controllers, partition_granularity, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = tx.QuerierFrom(ctx, s.pool).Exec(ctx, query,
		setup.Token[:],
		int16(setup.CertificateMode),
		setup.AllowlistActivated,
		setup.BlocklistActivated,
		setup.GranularityByPartitionActivated,
		setup.HoldsActivated,
		controllers,
		granularity,
		setup.CreatedAt,
		setup.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert token setup: %w", err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, setup *tokensetup.Setup) error {
	controllers, granularity, err := encode(setup)
	if err != nil {
		return err
	}
	query := `
		UPDATE token_setups SET
			certificate_mode = $2,
			allowlist_activated = $3,
			blocklist_activated = $4,
			granularity_by_partition_activated = $5,
			holds_activated = $6,
			controllers = $7,
			partition_granularity = $8,
			updated_at = $9
		WHERE token = $1
	`
	tag, err := tx.QuerierFrom(ctx, s.pool).Exec(ctx, query,
		setup.Token[:],
		int16(setup.CertificateMode),
		setup.AllowlistActivated,
		setup.BlocklistActivated,
		setup.GranularityByPartitionActivated,
		setup.HoldsActivated,
		controllers,
		granularity,
		updatedAt(setup),
	)
	if err != nil {
		return fmt.Errorf("update token setup: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func encode(setup *tokensetup.Setup) ([][]byte, []byte, error) {
	controllers := make([][]byte, 0, len(setup.Controllers))
	for _, c := range setup.Controllers {
		controllers = append(controllers, append([]byte(nil), c[:]...))
	}
	granularity := []byte("{}")
	if len(setup.PartitionGranularity) > 0 {
		var err error
		if granularity, err = json.Marshal(setup.PartitionGranularity); err != nil {
			return nil, nil, fmt.Errorf("encode partition granularity: %w", err)
		}
	}
	return controllers, granularity, nil
}

func updatedAt(setup *tokensetup.Setup) time.Time {
	if setup.UpdatedAt.IsZero() {
		return time.Now()
	}
	return setup.UpdatedAt
}
