//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"tokenhold/internal/hold"
	"tokenhold/internal/hold/store/postgres"
	"tokenhold/pkg/domain"
	"tokenhold/pkg/platform/sentinel"
	"tokenhold/pkg/platform/tx"
	"tokenhold/pkg/testutil/containers"
)

var (
	token     = domain.MustParseAddress("0x00000000000000000000000000000000000000aa")
	sender    = domain.MustParseAddress("0x000000000000000000000000000000000000a11c")
	recipient = domain.MustParseAddress("0x0000000000000000000000000000000000000b0b")
	notary    = domain.MustParseAddress("0x0000000000000000000000000000000000000707")
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres  *containers.PostgresContainer
	store     *postgres.Store
	partition domain.Partition
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = postgres.New(s.postgres.Pool)
	var err error
	s.partition, err = domain.PartitionFromLabel("issued")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "holds"))
}

func (s *PostgresStoreSuite) newHold(id byte, value uint64, from domain.Address) *hold.Hold {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &hold.Hold{
		Token:      token,
		ID:         domain.HoldID{id},
		Partition:  s.partition,
		Sender:     from,
		Recipient:  recipient,
		Notary:     notary,
		Value:      domain.NewAmount(value),
		Expiration: now.Add(time.Hour),
		Status:     hold.StatusOrdered,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	h := s.newHold(1, 600, sender)

	s.Require().NoError(s.store.Create(ctx, h))
	s.ErrorIs(s.store.Create(ctx, h), sentinel.ErrConflict)

	got, err := s.store.Get(ctx, token, h.ID)
	s.Require().NoError(err)
	s.Equal(h.Partition, got.Partition)
	s.Equal(h.Notary, got.Notary)
	s.True(h.Value.Equal(got.Value))
	s.True(h.Expiration.Equal(got.Expiration))
	s.Equal(hold.StatusOrdered, got.Status)

	got.Status = hold.StatusExecuted
	got.Secret = domain.Bytes32{9}
	got.Expiration = time.Time{}
	s.Require().NoError(s.store.Update(ctx, got))

	again, err := s.store.Get(ctx, token, h.ID)
	s.Require().NoError(err)
	s.Equal(hold.StatusExecuted, again.Status)
	s.Equal(domain.Bytes32{9}, again.Secret)
	s.True(again.Expiration.IsZero())

	_, err = s.store.Get(ctx, token, domain.HoldID{2})
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.Update(ctx, s.newHold(2, 1, sender)), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestAggregates() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newHold(1, 600, sender)))
	s.Require().NoError(s.store.Create(ctx, s.newHold(2, 100, sender)))
	s.Require().NoError(s.store.Create(ctx, s.newHold(3, 50, domain.ZeroAddress)))

	released := s.newHold(4, 1000, sender)
	released.Status = hold.StatusReleasedByNotary
	s.Require().NoError(s.store.Create(ctx, released))

	onHold, err := s.store.OnHoldByPartition(ctx, token, s.partition, sender)
	s.Require().NoError(err)
	s.Equal("700", onHold.String())

	onHold, err = s.store.OnHold(ctx, token, sender)
	s.Require().NoError(err)
	s.Equal("700", onHold.String())

	total, err := s.store.TotalOnHold(ctx, token)
	s.Require().NoError(err)
	s.Equal("700", total.String())

	other, err := domain.PartitionFromLabel("locked")
	s.Require().NoError(err)
	total, err = s.store.TotalOnHoldByPartition(ctx, token, other)
	s.Require().NoError(err)
	s.True(total.IsZero())
}

func (s *PostgresStoreSuite) TestRollbackDiscardsHold() {
	ctx := context.Background()
	runner := tx.NewRunner(tx.WithPool(s.postgres.Pool))
	h := s.newHold(1, 10, sender)

	err := runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, h); err != nil {
			return err
		}
		return sentinel.ErrInvalidState
	})
	s.ErrorIs(err, sentinel.ErrInvalidState)

	_, err = s.store.Get(ctx, token, h.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
