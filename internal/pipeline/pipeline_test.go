package pipeline

import (
	"bytes"
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/chunk"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/lexicon/lexicontest"
	apperrors "github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRoundTripPayloads(t *testing.T) {
	p := New(lexicontest.Default(t), WithWorkers(3), WithSeed(42))
	rng := rand.New(rand.NewPCG(1, 1))
	ctx := context.Background()

	for _, n := range []int{0, 1, 6, 7, 8, 13, 14, 15, 100, 1000} {
		payload := make([]byte, n)
		for i := range payload {
			payload[i] = byte(rng.UintN(256))
		}
		lines, err := p.EncodeWire(ctx, payload)
		require.NoError(t, err, "n=%d", n)
		assert.Len(t, lines, chunk.Count(n))

		got, err := p.Decode(ctx, lines)
		require.NoError(t, err, "n=%d", n)
		assert.True(t, bytes.Equal(payload, got), "n=%d", n)
	}
}

func TestEmptyPayload(t *testing.T) {
	p := New(lexicontest.Default(t))
	sentences, err := p.Encode(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, sentences)

	got, err := p.Decode(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSeedMakesOutputReproducible(t *testing.T) {
	d := lexicontest.Default(t)
	payload := []byte("the exquisite corpse shall drink the new wine")

	a, err := New(d, WithSeed(7), WithWorkers(4)).EncodeWire(context.Background(), payload)
	require.NoError(t, err)
	b, err := New(d, WithSeed(7), WithWorkers(4)).EncodeWire(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDecodeReaderSkipsBlankAndComments(t *testing.T) {
	p := New(lexicontest.Default(t), WithSeed(3))
	payload := []byte("bonjour")
	lines, err := p.EncodeWire(context.Background(), payload)
	require.NoError(t, err)

	transcript := "# intercepted at dawn\n\n  " + strings.Join(lines, "\n\n") + "  \n"
	got, err := p.DecodeReader(context.Background(), strings.NewReader(transcript))
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestDecodeFailureIsCounted(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	p := New(lexicontest.Default(t), WithMetrics(m), WithSeed(9))

	lines, err := p.EncodeWire(context.Background(), []byte("twenty-one bytes long"))
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SentencesEncodedTotal.WithLabelValues("form3"))+
		testutil.ToFloat64(m.SentencesEncodedTotal.WithLabelValues("form2"))+
		testutil.ToFloat64(m.SentencesEncodedTotal.WithLabelValues("form1")))

	lines[1] = "Nom:licorne " + lines[1]
	_, err = p.Decode(context.Background(), lines)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrLemmaNotFound))
	assert.Contains(t, err.Error(), "sentence 1")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DecodeFailuresTotal.WithLabelValues("lemma_not_found")))
}

func TestCustomDecoderIsUsed(t *testing.T) {
	var calls atomic.Int32
	p := New(lexicontest.Default(t), WithDecoder(func(ctx context.Context, wire string) (uint64, error) {
		calls.Add(1)
		return chunk.Encode([]byte("x")), nil
	}))
	got, err := p.Decode(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []byte("xxx"), got)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCancelledContext(t *testing.T) {
	p := New(lexicontest.Default(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Encode(ctx, []byte("anything at all"))
	assert.ErrorIs(t, err, context.Canceled)
}

func BenchmarkEncodeDecode4K(b *testing.B) {
	p := New(lexicontest.Default(b), WithWorkers(4))
	payload := bytes.Repeat([]byte{0xde, 0xad, 0xbe, 0xef}, 1024)
	ctx := context.Background()
	b.ReportAllocs()
	b.SetBytes(int64(len(payload)))
	for i := 0; i < b.N; i++ {
		lines, err := p.EncodeWire(ctx, payload)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := p.Decode(ctx, lines); err != nil {
			b.Fatal(err)
		}
	}
}
