// Package redis appends audit events to one Redis stream per token.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"tokenhold/pkg/domain"
	audit "tokenhold/pkg/platform/audit"
)

var appendDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "tokenhold_audit_stream_append_duration_ms",
	Help:    "Latency of audit stream appends in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
})

const (
	streamKeyPrefix = "audit:token:"
	payloadField    = "event"
	defaultMaxLen   = 100_000
)

// StreamStore is safe for concurrent use; the client lifecycle is managed by
// the caller.
type StreamStore struct {
	client *redis.Client
	maxLen int64
}

type Option func(*StreamStore)

// WithMaxLen caps each token stream (approximate trimming).
func WithMaxLen(n int64) Option {
	return func(s *StreamStore) {
		if n > 0 {
			s.maxLen = n
		}
	}
}

func NewStreamStore(client *redis.Client, opts ...Option) *StreamStore {
	s := &StreamStore{client: client, maxLen: defaultMaxLen}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func streamKey(token domain.Address) string {
	return streamKeyPrefix + token.String()
}

// Append XADDs the JSON-encoded event to the token's stream.
func (s *StreamStore) Append(ctx context.Context, event audit.Event) error {
	start := time.Now()
	defer func() {
		appendDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey(event.Token),
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]any{
			payloadField: payload,
			"action":     event.Action,
		},
	}).Err()
}

// ListByToken reads the whole stream oldest first.
func (s *StreamStore) ListByToken(ctx context.Context, token domain.Address) ([]audit.Event, error) {
	msgs, err := s.client.XRange(ctx, streamKey(token), "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("read audit stream: %w", err)
	}
	events := make([]audit.Event, 0, len(msgs))
	for _, msg := range msgs {
		raw, ok := msg.Values[payloadField].(string)
		if !ok {
			return nil, fmt.Errorf("audit stream entry %s has no payload", msg.ID)
		}
		var event audit.Event
		if err := json.Unmarshal([]byte(raw), &event); err != nil {
			return nil, fmt.Errorf("decode audit stream entry %s: %w", msg.ID, err)
		}
		events = append(events, event)
	}
	return events, nil
}
