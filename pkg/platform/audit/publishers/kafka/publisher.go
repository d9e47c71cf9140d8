// Package kafka forwards audit events to a Kafka topic keyed by token, so a
// consumer sees each token's events in order.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "tokenhold/pkg/platform/audit"
	"tokenhold/pkg/platform/circuit"
)

// ErrCircuitOpen is returned without producing while the broker is
// considered down.
var ErrCircuitOpen = errors.New("kafka audit sink circuit open")

// Producer is the part of *kgo.Client the publisher needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

type Publisher struct {
	producer Producer
	topic    string
	logger   *slog.Logger
	breaker  *circuit.Breaker
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithBreaker stops producing while the breaker is open so a dead broker
// does not stall the audit drain on every event.
func WithBreaker(b *circuit.Breaker) Option {
	return func(p *Publisher) {
		p.breaker = b
	}
}

func New(producer Producer, topic string, opts ...Option) (*Publisher, error) {
	if producer == nil {
		return nil, fmt.Errorf("kafka producer is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	p := &Publisher{producer: producer, topic: topic}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Append produces the event synchronously. It satisfies audit.Store so it can
// sit behind the async publisher or inside an audit.Fanout.
func (p *Publisher) Append(ctx context.Context, event audit.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	if p.breaker != nil && !p.breaker.Allow() {
		return ErrCircuitOpen
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.Token.String()),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "action", Value: []byte(event.Action)},
			{Key: "category", Value: []byte(event.Category)},
		},
	}
	if err := p.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		p.recordFailure(ctx)
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "failed to produce audit event",
				"action", event.Action,
				"topic", p.topic,
				"error", err,
			)
		}
		return fmt.Errorf("produce audit event: %w", err)
	}
	p.recordSuccess(ctx)
	return nil
}

func (p *Publisher) recordFailure(ctx context.Context) {
	if p.breaker == nil {
		return
	}
	if _, change := p.breaker.RecordFailure(); change.Opened && p.logger != nil {
		p.logger.WarnContext(ctx, "kafka audit sink circuit opened", "breaker", p.breaker.Name())
	}
}

func (p *Publisher) recordSuccess(ctx context.Context) {
	if p.breaker == nil {
		return
	}
	if _, change := p.breaker.RecordSuccess(); change.Closed && p.logger != nil {
		p.logger.InfoContext(ctx, "kafka audit sink circuit closed", "breaker", p.breaker.Name())
	}
}
