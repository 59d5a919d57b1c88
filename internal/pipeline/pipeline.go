// Package pipeline runs the full payload codec: bytes are split into
// chunks, each chunk becomes one sentence, and a transcript of wire
// sentences is folded back into the original bytes. Chunks are processed
// in parallel; output order always equals chunk order.
package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/chunk"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/lexicon"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/sentence"
	apperrors "github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/metrics"
)

// DecodeFunc turns one wire sentence into its value. The decode cache
// provides one; the default calls sentence.Decode directly.
type DecodeFunc func(ctx context.Context, wire string) (uint64, error)

// Pipeline is safe for concurrent use.
type Pipeline struct {
	dict    *lexicon.Dictionary
	workers int
	decode  DecodeFunc
	metrics *metrics.Metrics
	logger  *slog.Logger

	seedMu sync.Mutex
	seeds  *rand.Rand
}

type Option func(*Pipeline)

// WithWorkers bounds the number of chunks processed at once.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithDecoder replaces the per-sentence decoder.
func WithDecoder(fn DecodeFunc) Option {
	return func(p *Pipeline) {
		if fn != nil {
			p.decode = fn
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithSeed makes the synonym and determiner choices reproducible. The
// decoded result never depends on it.
func WithSeed(seed uint64) Option {
	return func(p *Pipeline) {
		p.seeds = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
}

func New(dict *lexicon.Dictionary, opts ...Option) *Pipeline {
	p := &Pipeline{
		dict:    dict,
		workers: 4,
		logger:  slog.Default().With("component", "pipeline"),
		seeds:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	p.decode = func(_ context.Context, wire string) (uint64, error) {
		return sentence.Decode(p.dict, wire)
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) Dictionary() *lexicon.Dictionary {
	return p.dict
}

// rangeSeeds draws the seeds for one Encode call. Each range then derives
// its own generator from them and its start index, so output under a fixed
// seed does not depend on goroutine scheduling.
func (p *Pipeline) rangeSeeds() (uint64, uint64) {
	p.seedMu.Lock()
	defer p.seedMu.Unlock()
	return p.seeds.Uint64(), p.seeds.Uint64()
}

// Encode converts payload into one sentence per chunk. An empty payload
// yields no sentences.
func (p *Pipeline) Encode(ctx context.Context, payload []byte) ([]*sentence.Sentence, error) {
	start := time.Now()
	values := chunk.Split(payload)
	out := make([]*sentence.Sentence, len(values))
	s1, s2 := p.rangeSeeds()

	err := p.forEachRange(ctx, len(values), func(ctx context.Context, lo, hi int) error {
		enc := sentence.NewEncoder(p.dict, rand.New(rand.NewPCG(s1, s2^uint64(lo))))
		for i := lo; i < hi; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			s, err := enc.Encode(values[i])
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			out[i] = s
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if p.metrics != nil {
		p.metrics.PayloadBytesTotal.WithLabelValues("encode").Add(float64(len(payload)))
		p.metrics.CodecDuration.WithLabelValues("encode").Observe(time.Since(start).Seconds())
		for _, s := range out {
			p.metrics.SentencesEncodedTotal.WithLabelValues(s.Form.String()).Inc()
			for _, c := range s.Fallbacks {
				p.metrics.AgreementFallbacksTotal.WithLabelValues(c.String()).Inc()
			}
		}
	}
	p.logger.Debug("payload encoded",
		"bytes", len(payload),
		"sentences", len(out),
		"duration", time.Since(start),
	)
	return out, nil
}

// EncodeWire is Encode returning the annotated wire lines.
func (p *Pipeline) EncodeWire(ctx context.Context, payload []byte) ([]string, error) {
	sentences, err := p.Encode(ctx, payload)
	if err != nil {
		return nil, err
	}
	lines := make([]string, len(sentences))
	for i, s := range sentences {
		lines[i] = s.Annotated()
	}
	return lines, nil
}

// Decode folds wire sentences back into chunk values and joins them. Any
// sentence that fails to decode fails the whole payload.
func (p *Pipeline) Decode(ctx context.Context, lines []string) ([]byte, error) {
	start := time.Now()
	values := make([]uint64, len(lines))

	err := p.forEachRange(ctx, len(lines), func(ctx context.Context, lo, hi int) error {
		for i := lo; i < hi; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			v, err := p.decode(ctx, lines[i])
			if err != nil {
				return fmt.Errorf("sentence %d: %w", i, err)
			}
			values[i] = v
		}
		return nil
	})
	if err != nil {
		p.observeFailure(err)
		return nil, err
	}

	payload, err := chunk.Join(values)
	if err != nil {
		p.observeFailure(err)
		return nil, err
	}

	if p.metrics != nil {
		p.metrics.SentencesDecodedTotal.Add(float64(len(lines)))
		p.metrics.PayloadBytesTotal.WithLabelValues("decode").Add(float64(len(payload)))
		p.metrics.CodecDuration.WithLabelValues("decode").Observe(time.Since(start).Seconds())
	}
	p.logger.Debug("payload decoded",
		"sentences", len(lines),
		"bytes", len(payload),
		"duration", time.Since(start),
	)
	return payload, nil
}

// DecodeReader reads a transcript with ReadSentences and decodes it.
func (p *Pipeline) DecodeReader(ctx context.Context, r io.Reader) ([]byte, error) {
	lines, err := ReadSentences(r)
	if err != nil {
		return nil, err
	}
	return p.Decode(ctx, lines)
}

func (p *Pipeline) observeFailure(err error) {
	if p.metrics == nil || err == nil {
		return
	}
	p.metrics.DecodeFailuresTotal.WithLabelValues(apperrors.Reason(err)).Inc()
}

// forEachRange splits [0,n) into at most p.workers contiguous ranges and
// runs fn on each in its own goroutine.
func (p *Pipeline) forEachRange(ctx context.Context, n int, fn func(ctx context.Context, lo, hi int) error) error {
	if n == 0 {
		return ctx.Err()
	}
	workers := min(p.workers, n)
	size := (n + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += size {
		hi := min(lo+size, n)
		g.Go(func() error {
			return fn(gctx, lo, hi)
		})
	}
	return g.Wait()
}

// ReadSentences reads one wire sentence per line. Blank lines and lines
// starting with '#' are ignored, and surrounding whitespace is trimmed.
func ReadSentences(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading sentences: %w", err)
	}
	return lines, nil
}
