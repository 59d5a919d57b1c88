// Package relay carries encoded payloads over Kafka. A payload is published
// as one event per sentence; listeners collect the events of each message,
// decode the message once every sentence has arrived, and hand the payload
// to a Sink.
package relay

import (
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/errors"
)

// SentenceEvent is the Kafka message value for one sentence of a payload.
type SentenceEvent struct {
	MessageID   string    `json:"message_id"`
	Seq         int       `json:"seq"`
	Total       int       `json:"total"`
	Wire        string    `json:"wire"`
	Fingerprint string    `json:"fingerprint"`
	SentAt      time.Time `json:"sent_at"`
}

// Validate checks the event's framing fields. An empty payload travels as
// a single event with Total 0 and no wire text.
func (e SentenceEvent) Validate() error {
	if e.MessageID == "" {
		return fmt.Errorf("event without message id: %w", apperrors.ErrInvalidInput)
	}
	if e.Total == 0 {
		if e.Seq != 0 || e.Wire != "" {
			return fmt.Errorf("message %s: empty message with seq %d: %w", e.MessageID, e.Seq, apperrors.ErrInvalidInput)
		}
		return nil
	}
	if e.Total < 0 || e.Seq < 0 || e.Seq >= e.Total {
		return fmt.Errorf("message %s: seq %d of %d: %w", e.MessageID, e.Seq, e.Total, apperrors.ErrInvalidInput)
	}
	if e.Wire == "" {
		return fmt.Errorf("message %s: seq %d has no sentence: %w", e.MessageID, e.Seq, apperrors.ErrInvalidInput)
	}
	return nil
}
