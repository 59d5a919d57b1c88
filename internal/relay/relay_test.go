package relay

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/lexicon/lexicontest"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/pipeline"
	apperrors "github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/resilience"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeProducer struct {
	mu       sync.Mutex
	failures int
	calls    int
	keys     []string
	events   []any
}

func (f *fakeProducer) PublishMessage(_ context.Context, messageID string, events []any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return errors.New("leader not available")
	}
	for range events {
		f.keys = append(f.keys, messageID)
	}
	f.events = append(f.events, events...)
	return nil
}

func (f *fakeProducer) values(t *testing.T) [][]byte {
	t.Helper()
	out := make([][]byte, len(f.events))
	for i, ev := range f.events {
		b, err := json.Marshal(ev)
		require.NoError(t, err)
		out[i] = b
	}
	return out
}

type recordingSink struct {
	payloads map[string][]byte
	err      error
}

func (s *recordingSink) Deliver(_ context.Context, msg *Message, payload []byte) error {
	if s.err != nil {
		return s.err
	}
	s.payloads[msg.ID] = payload
	return nil
}

func fastPublisher(producer EventPublisher, p *pipeline.Pipeline, m *metrics.Metrics) *Publisher {
	pub := NewPublisher(producer, p, m)
	pub.retry = resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}
	return pub
}

func TestPublishAndListenOutOfOrder(t *testing.T) {
	dict := lexicontest.Default(t)
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	producer := &fakeProducer{failures: 1}
	pub := fastPublisher(producer, pipeline.New(dict, pipeline.WithSeed(1)), m)

	payload := []byte("meet me under the clock at noon, bring the second key")
	id, n, err := pub.Publish(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, 2, producer.calls, "first attempt failed and was retried")
	require.Len(t, producer.events, n)
	for _, key := range producer.keys {
		assert.Equal(t, id, key)
	}

	sink := &recordingSink{payloads: map[string][]byte{}}
	l := NewListener(NewReassembler(time.Minute, 0), pipeline.New(dict), sink, m)

	values := producer.values(t)
	rand.New(rand.NewPCG(2, 3)).Shuffle(len(values), func(i, j int) { values[i], values[j] = values[j], values[i] })
	// redeliver one event mid-stream
	values = append(values[:3], append([][]byte{values[0]}, values[3:]...)...)

	for i, v := range values {
		require.NoError(t, l.Handle(context.Background(), []byte(id), v))
		if i < len(values)-1 {
			assert.Empty(t, sink.payloads)
		}
	}
	assert.Equal(t, payload, sink.payloads[id])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesReassembled.WithLabelValues("complete")))
}

func TestEmptyPayloadTravelsAsOneEvent(t *testing.T) {
	dict := lexicontest.Default(t)
	producer := &fakeProducer{}
	pub := fastPublisher(producer, pipeline.New(dict), nil)
	id, n, err := pub.Publish(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	require.Len(t, producer.events, 1)

	sink := &recordingSink{payloads: map[string][]byte{}}
	l := NewListener(NewReassembler(time.Minute, 0), pipeline.New(dict), sink, nil)
	require.NoError(t, l.Handle(context.Background(), []byte(id), producer.values(t)[0]))
	got, ok := sink.payloads[id]
	require.True(t, ok)
	assert.Empty(t, got)
}

func TestListenerDropsForeignDictionary(t *testing.T) {
	dict := lexicontest.Default(t)
	other := lexicontest.New(t, lexicontest.Sizes{Nouns: 3, Adjectives: 2, Verbs: 2, Adverbs: 1})
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	sink := &recordingSink{payloads: map[string][]byte{}}
	l := NewListener(NewReassembler(time.Minute, 0), pipeline.New(dict), sink, m)

	b, err := json.Marshal(SentenceEvent{MessageID: "m1", Seq: 0, Total: 1, Wire: "Nom:nom0", Fingerprint: other.Fingerprint()})
	require.NoError(t, err)
	require.NoError(t, l.Handle(context.Background(), nil, b))
	assert.Empty(t, sink.payloads)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesReassembled.WithLabelValues("failed")))

	// garbage is acknowledged, not retried
	require.NoError(t, l.Handle(context.Background(), nil, []byte("{not json")))
}

func TestListenerReturnsSinkErrors(t *testing.T) {
	dict := lexicontest.Default(t)
	producer := &fakeProducer{}
	_, _, err := fastPublisher(producer, pipeline.New(dict), nil).Publish(context.Background(), []byte("x"))
	require.NoError(t, err)

	sink := &recordingSink{err: errors.New("database down")}
	l := NewListener(NewReassembler(time.Minute, 0), pipeline.New(dict), sink, nil)
	err = l.Handle(context.Background(), nil, producer.values(t)[0])
	assert.ErrorContains(t, err, "database down")
}

func TestReassemblerRejectsInconsistentEvents(t *testing.T) {
	r := NewReassembler(time.Minute, 0)
	_, done, err := r.Add(SentenceEvent{MessageID: "m", Seq: 0, Total: 2, Wire: "Nom:a"})
	require.NoError(t, err)
	assert.False(t, done)

	tests := []struct {
		name string
		ev   SentenceEvent
	}{
		{"total changed", SentenceEvent{MessageID: "m", Seq: 1, Total: 3, Wire: "Nom:b"}},
		{"conflicting duplicate", SentenceEvent{MessageID: "m", Seq: 0, Total: 2, Wire: "Nom:z"}},
		{"fingerprint changed", SentenceEvent{MessageID: "m", Seq: 1, Total: 2, Wire: "Nom:b", Fingerprint: "ff"}},
		{"seq out of range", SentenceEvent{MessageID: "m", Seq: 2, Total: 2, Wire: "Nom:b"}},
		{"missing id", SentenceEvent{Seq: 0, Total: 1, Wire: "Nom:b"}},
		{"missing wire", SentenceEvent{MessageID: "m", Seq: 1, Total: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, done, err := r.Add(tt.ev)
			assert.False(t, done)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidInput), err)
		})
	}

	msg, done, err := r.Add(SentenceEvent{MessageID: "m", Seq: 1, Total: 2, Wire: "Nom:b"})
	require.NoError(t, err)
	require.True(t, done)
	assert.Equal(t, []string{"Nom:a", "Nom:b"}, msg.Lines)
	assert.Zero(t, r.Pending())
}

func TestReassemblerCapsAnnouncedTotal(t *testing.T) {
	r := NewReassembler(time.Minute, 4)
	for _, total := range []int{5, 1 << 40, 1 << 62} {
		_, done, err := r.Add(SentenceEvent{MessageID: "m", Seq: 0, Total: total, Wire: "Nom:x"})
		assert.False(t, done)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	}
	assert.Zero(t, r.Pending())

	_, _, err := r.Add(SentenceEvent{MessageID: "m", Seq: 3, Total: 4, Wire: "Nom:x"})
	require.NoError(t, err)
	assert.Equal(t, 1, r.Pending())
}

func TestListenerAcknowledgesOversizedEvent(t *testing.T) {
	dict := lexicontest.Default(t)
	delivered := false
	sink := SinkFunc(func(ctx context.Context, msg *Message, payload []byte) error {
		delivered = true
		return nil
	})
	l := NewListener(NewReassembler(time.Minute, 0), pipeline.New(dict), sink, nil)

	value, err := json.Marshal(SentenceEvent{MessageID: "m", Seq: 0, Total: 1 << 62, Wire: "Nom:x"})
	require.NoError(t, err)
	assert.NoError(t, l.Handle(context.Background(), []byte("m"), value))
	assert.False(t, delivered)
}

func TestReassemblerExpiry(t *testing.T) {
	r := NewReassembler(time.Minute, 0)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	_, _, err := r.Add(SentenceEvent{MessageID: "old", Seq: 0, Total: 2, Wire: "Nom:a"})
	require.NoError(t, err)
	now = now.Add(45 * time.Second)
	_, _, err = r.Add(SentenceEvent{MessageID: "new", Seq: 0, Total: 2, Wire: "Nom:a"})
	require.NoError(t, err)

	now = now.Add(30 * time.Second)
	assert.Equal(t, []string{"old"}, r.Expire())
	assert.Equal(t, 1, r.Pending())
}
