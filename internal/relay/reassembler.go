package relay

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/chunk"
	apperrors "github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/errors"
)

// Message is a fully received payload transcript.
type Message struct {
	ID          string
	Lines       []string
	Fingerprint string
	FirstSeen   time.Time
}

type partial struct {
	lines       []string
	received    int
	fingerprint string
	firstSeen   time.Time
}

// Reassembler groups sentence events by message ID. Events may arrive in
// any order and may be redelivered.
type Reassembler struct {
	mu      sync.Mutex
	pending map[string]*partial
	ttl     time.Duration
	maxLen  int
	now     func() time.Time
	logger  *slog.Logger
}

// DefaultMaxSentences is the sentence count of the largest payload the
// service accepts by default.
var DefaultMaxSentences = chunk.Count(64 * 1024)

// NewReassembler keeps incomplete messages for at most ttl. Messages that
// announce more than maxSentences sentences are rejected; a non-positive
// maxSentences means DefaultMaxSentences.
func NewReassembler(ttl time.Duration, maxSentences int) *Reassembler {
	if maxSentences <= 0 {
		maxSentences = DefaultMaxSentences
	}
	return &Reassembler{
		pending: make(map[string]*partial),
		ttl:     ttl,
		maxLen:  maxSentences,
		now:     time.Now,
		logger:  slog.Default().With("component", "reassembler"),
	}
}

// Add records ev and returns the message once its last missing sentence
// arrives. A redelivered sentence is ignored; one that contradicts what was
// already received is an error.
func (r *Reassembler) Add(ev SentenceEvent) (*Message, bool, error) {
	if err := ev.Validate(); err != nil {
		return nil, false, err
	}
	if ev.Total > r.maxLen {
		return nil, false, fmt.Errorf("message %s: %d sentences, at most %d accepted: %w",
			ev.MessageID, ev.Total, r.maxLen, apperrors.ErrInvalidInput)
	}
	if ev.Total == 0 {
		return &Message{ID: ev.MessageID, Fingerprint: ev.Fingerprint, FirstSeen: r.now()}, true, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pending[ev.MessageID]
	if !ok {
		p = &partial{
			lines:       make([]string, ev.Total),
			fingerprint: ev.Fingerprint,
			firstSeen:   r.now(),
		}
		r.pending[ev.MessageID] = p
	}
	if len(p.lines) != ev.Total {
		return nil, false, fmt.Errorf("message %s: total changed from %d to %d: %w",
			ev.MessageID, len(p.lines), ev.Total, apperrors.ErrInvalidInput)
	}
	if p.fingerprint != ev.Fingerprint {
		return nil, false, fmt.Errorf("message %s: sentences from two dictionaries: %w",
			ev.MessageID, apperrors.ErrInvalidInput)
	}
	switch existing := p.lines[ev.Seq]; {
	case existing == ev.Wire:
		return nil, false, nil
	case existing != "":
		return nil, false, fmt.Errorf("message %s: conflicting sentence %d: %w",
			ev.MessageID, ev.Seq, apperrors.ErrInvalidInput)
	}
	p.lines[ev.Seq] = ev.Wire
	p.received++
	if p.received < len(p.lines) {
		return nil, false, nil
	}

	delete(r.pending, ev.MessageID)
	return &Message{
		ID:          ev.MessageID,
		Lines:       p.lines,
		Fingerprint: p.fingerprint,
		FirstSeen:   p.firstSeen,
	}, true, nil
}

// Expire drops incomplete messages older than the TTL and returns their IDs.
func (r *Reassembler) Expire() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-r.ttl)
	var expired []string
	for id, p := range r.pending {
		if p.firstSeen.Before(cutoff) {
			r.logger.Warn("dropping incomplete message",
				"message_id", id,
				"received", p.received,
				"total", len(p.lines),
			)
			delete(r.pending, id)
			expired = append(expired, id)
		}
	}
	return expired
}

// Pending returns the number of incomplete messages held.
func (r *Reassembler) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
