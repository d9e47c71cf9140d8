package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"tokenhold/pkg/domain"
	audit "tokenhold/pkg/platform/audit"
	"tokenhold/pkg/platform/circuit"
)

type recordingProducer struct {
	records []*kgo.Record
	err     error
}

func (p *recordingProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	out := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		p.records = append(p.records, r)
		out = append(out, kgo.ProduceResult{Record: r, Err: p.err})
	}
	return out
}

func TestNew(t *testing.T) {
	_, err := New(nil, "topic")
	require.Error(t, err)

	_, err = New(&recordingProducer{}, "")
	require.Error(t, err)
}

func TestAppend(t *testing.T) {
	token := domain.MustParseAddress("0x00000000000000000000000000000000000000a1")

	t.Run("keys by token and encodes event", func(t *testing.T) {
		producer := &recordingProducer{}
		pub, err := New(producer, "hold-events")
		require.NoError(t, err)

		event := audit.Event{
			Token:    token,
			Action:   string(audit.EventHoldExecuted),
			Category: audit.CategoryLedger,
			Value:    domain.NewAmount(600),
		}
		require.NoError(t, pub.Append(context.Background(), event))

		require.Len(t, producer.records, 1)
		rec := producer.records[0]
		assert.Equal(t, "hold-events", rec.Topic)
		assert.Equal(t, token.String(), string(rec.Key))

		var decoded audit.Event
		require.NoError(t, json.Unmarshal(rec.Value, &decoded))
		assert.Equal(t, event.Action, decoded.Action)
		assert.True(t, decoded.Value.Equal(domain.NewAmount(600)))
	})

	t.Run("produce failure is returned", func(t *testing.T) {
		producer := &recordingProducer{err: errors.New("broker down")}
		pub, err := New(producer, "hold-events")
		require.NoError(t, err)

		err = pub.Append(context.Background(), audit.Event{Token: token})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broker down")
	})

	t.Run("open breaker skips the broker", func(t *testing.T) {
		producer := &recordingProducer{err: errors.New("broker down")}
		breaker := circuit.New("kafka", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))
		pub, err := New(producer, "hold-events", WithBreaker(breaker))
		require.NoError(t, err)

		for range 2 {
			require.Error(t, pub.Append(context.Background(), audit.Event{Token: token}))
		}
		assert.True(t, breaker.IsOpen())

		err = pub.Append(context.Background(), audit.Event{Token: token})
		require.ErrorIs(t, err, ErrCircuitOpen)
		assert.Len(t, producer.records, 2)
	})
}
