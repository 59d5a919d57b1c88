package relay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/pipeline"
	apperrors "github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/tracing"
)

// Sink receives every decoded message.
type Sink interface {
	Deliver(ctx context.Context, msg *Message, payload []byte) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, msg *Message, payload []byte) error

func (f SinkFunc) Deliver(ctx context.Context, msg *Message, payload []byte) error {
	return f(ctx, msg, payload)
}

// Listener turns sentence events into decoded payloads.
type Listener struct {
	reassembler *Reassembler
	pipeline    *pipeline.Pipeline
	sink        Sink
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

func NewListener(r *Reassembler, p *pipeline.Pipeline, sink Sink, m *metrics.Metrics) *Listener {
	return &Listener{
		reassembler: r,
		pipeline:    p,
		sink:        sink,
		metrics:     m,
		logger:      slog.Default().With("component", "relay-listener"),
	}
}

// Handle is a kafka.MessageHandler. Malformed events and messages that
// fail to decode are logged and acknowledged, since redelivery cannot fix
// them; only sink failures are returned so the event is retried.
func (l *Listener) Handle(ctx context.Context, key, value []byte) error {
	for _, id := range l.reassembler.Expire() {
		l.count("expired")
		l.logger.Warn("message expired before completion", "message_id", id)
	}

	ev, err := kafka.DecodeJSON[SentenceEvent](value)
	if err != nil {
		l.logger.Error("dropping undecodable event", "key", string(key), "error", err)
		return nil
	}
	if fp := l.pipeline.Dictionary().Fingerprint(); ev.Fingerprint != "" && ev.Fingerprint != fp {
		l.count("failed")
		l.logger.Error("dropping event encoded with another dictionary",
			"message_id", ev.MessageID,
			"event_fingerprint", ev.Fingerprint,
		)
		return nil
	}

	msg, complete, err := l.reassembler.Add(ev)
	if err != nil {
		l.logger.Error("dropping invalid event", "message_id", ev.MessageID, "seq", ev.Seq, "error", err)
		return nil
	}
	if !complete {
		return nil
	}

	ctx, span := tracing.Start(ctx, "relay.message", msg.ID)
	span.SetAttr("sentences", len(msg.Lines))
	defer func() {
		span.End()
		span.Log(l.logger)
	}()

	decodeCtx, decodeSpan := tracing.StartChild(ctx, "decode")
	payload, err := l.pipeline.Decode(decodeCtx, msg.Lines)
	decodeSpan.End()
	if err != nil {
		l.count("failed")
		l.logger.Error("message failed to decode",
			"message_id", msg.ID,
			"sentences", len(msg.Lines),
			"reason", apperrors.Reason(err),
			"error", err,
		)
		return nil
	}
	deliverCtx, deliverSpan := tracing.StartChild(ctx, "deliver")
	err = l.sink.Deliver(deliverCtx, msg, payload)
	deliverSpan.End()
	if err != nil {
		return fmt.Errorf("delivering message %s: %w", msg.ID, err)
	}
	l.count("complete")
	l.logger.Info("message received",
		"message_id", msg.ID,
		"sentences", len(msg.Lines),
		"bytes", len(payload),
	)
	return nil
}

func (l *Listener) count(outcome string) {
	if l.metrics != nil {
		l.metrics.MessagesReassembled.WithLabelValues(outcome).Inc()
	}
}

