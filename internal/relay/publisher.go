package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/resilience"
)

// EventPublisher is satisfied by *kafka.Producer.
type EventPublisher interface {
	PublishMessage(ctx context.Context, messageID string, values []any) error
}

// Publisher encodes payloads and sends their sentences to Kafka. Writes go
// through a circuit breaker, then a retry loop, then a per-attempt timeout.
type Publisher struct {
	producer       EventPublisher
	pipeline       *pipeline.Pipeline
	breaker        *resilience.CircuitBreaker
	retry          resilience.RetryConfig
	publishTimeout time.Duration
	now            func() time.Time
	logger         *slog.Logger
}

func NewPublisher(producer EventPublisher, p *pipeline.Pipeline, m *metrics.Metrics) *Publisher {
	cbCfg := resilience.CircuitBreakerConfig{}
	if m != nil {
		cbCfg.OnStateChange = func(name string, s resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(s))
		}
	}
	return &Publisher{
		producer:       producer,
		pipeline:       p,
		breaker:        resilience.NewCircuitBreaker("kafka-relay", cbCfg),
		retry:          resilience.RetryConfig{MaxAttempts: 3},
		publishTimeout: 10 * time.Second,
		now:            time.Now,
		logger:         slog.Default().With("component", "relay-publisher"),
	}
}

// Publish encodes payload and publishes its sentences under a new message
// ID, which it returns with the sentence count.
func (p *Publisher) Publish(ctx context.Context, payload []byte) (string, int, error) {
	lines, err := p.pipeline.EncodeWire(ctx, payload)
	if err != nil {
		return "", 0, fmt.Errorf("encoding payload: %w", err)
	}
	id := uuid.NewString()
	events := Events(id, p.pipeline.Dictionary().Fingerprint(), lines, p.now().UTC())
	values := make([]any, len(events))
	for i, ev := range events {
		values[i] = ev
	}

	err = p.breaker.Execute(func() error {
		return resilience.Retry(ctx, "relay-publish", p.retry, func() error {
			return resilience.WithTimeout(ctx, p.publishTimeout, "relay-publish", func(ctx context.Context) error {
				return p.producer.PublishMessage(ctx, id, values)
			})
		})
	})
	if err != nil {
		return "", 0, fmt.Errorf("publishing message %s: %w", id, err)
	}
	p.logger.Info("message published",
		"message_id", id,
		"bytes", len(payload),
		"sentences", len(lines),
	)
	return id, len(lines), nil
}

// Events frames wire lines as the sentence events of one message. An empty
// payload is a single event with Total 0.
func Events(messageID, fingerprint string, lines []string, sentAt time.Time) []SentenceEvent {
	if len(lines) == 0 {
		return []SentenceEvent{{MessageID: messageID, Fingerprint: fingerprint, SentAt: sentAt}}
	}
	events := make([]SentenceEvent, len(lines))
	for i, line := range lines {
		events[i] = SentenceEvent{
			MessageID:   messageID,
			Seq:         i,
			Total:       len(lines),
			Wire:        line,
			Fingerprint: fingerprint,
			SentAt:      sentAt,
		}
	}
	return events
}
