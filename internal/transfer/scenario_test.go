package transfer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tokenhold/internal/hold"
	"tokenhold/pkg/domain"
	"tokenhold/pkg/requestcontext"
	"tokenhold/pkg/testutil"
)

func (s *GateSuite) TestExpiredHoldFreesBalance() {
	id := domain.HoldID{7}

	testutil.Given(s.T(), "a one hour hold of 600", func(t *testing.T) {
		_, err := s.holds.Hold(s.ctx, holder, token, hold.Request{
			ID:        id,
			Recipient: recipient,
			Notary:    notary,
			Partition: s.partition,
			Value:     domain.NewAmount(600),
		}, time.Hour)
		require.NoError(t, err)

		v, err := s.gate.CanTransferByPartition(s.ctx, token, s.req(recipient, 401))
		require.NoError(t, err)
		require.Equal(t, StatusInsufficientBalance, v.Status)
	})

	later := requestcontext.WithTime(s.ctx, start.Add(time.Hour+time.Second))

	testutil.When(s.T(), "anyone releases it after expiry", func(t *testing.T) {
		h, err := s.holds.ReleaseHold(later, operator, token, id)
		require.NoError(t, err)
		require.Equal(t, hold.StatusReleasedOnExpiration, h.Status)
	})

	testutil.Then(s.T(), "the full balance is spendable again", func(t *testing.T) {
		v, err := s.gate.CanTransferByPartition(later, token, s.req(recipient, 1000))
		require.NoError(t, err)
		require.True(t, v.OK())

		_, err = s.holds.ExecuteHold(later, notary, token, id, domain.NewAmount(600), nil)
		require.Error(t, err)
	})
}
