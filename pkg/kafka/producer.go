package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/errors"
	"github.com/segmentio/kafka-go"
)

// Producer writes relayed messages to a topic. All events of one message
// share its ID as key, so the hash balancer places them on one partition.
type Producer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewProducer creates a Producer for the given topic.
func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    256,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}
	return &Producer{
		writer: w,
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

// PublishMessage JSON-encodes values and writes them in one call, keyed by
// messageID. Each record carries its position in a "seq" header.
func (p *Producer) PublishMessage(ctx context.Context, messageID string, values []any) error {
	msgs, err := Records(messageID, values)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.logger.Error("failed to publish message",
			"message_id", messageID,
			"events", len(msgs),
			"error", err,
		)
		return fmt.Errorf("publishing message %s to kafka: %w", messageID, err)
	}
	p.logger.Debug("message published", "message_id", messageID, "events", len(msgs))
	return nil
}

// Records frames values as Kafka records under messageID.
func Records(messageID string, values []any) ([]kafka.Message, error) {
	if messageID == "" || len(values) == 0 {
		return nil, fmt.Errorf("message %q with %d events: %w", messageID, len(values), apperrors.ErrInvalidInput)
	}
	msgs := make([]kafka.Message, len(values))
	for i, v := range values {
		value, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshaling event %d of %s: %w", i, messageID, err)
		}
		msgs[i] = kafka.Message{
			Key:     []byte(messageID),
			Value:   value,
			Headers: []kafka.Header{{Key: "seq", Value: []byte(strconv.Itoa(i))}},
		}
	}
	return msgs, nil
}

// Close flushes pending writes and closes the underlying Kafka writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
