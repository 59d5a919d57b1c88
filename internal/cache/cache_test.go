package cache

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/lexicon/lexicontest"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/sentence"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/redis"
)

type memStore struct {
	mu     sync.Mutex
	data   map[string]string
	sets   int
	getErr error
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]string)}
}

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return "", pkgredis.ErrNil
	}
	return v, nil
}

func (m *memStore) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value.(string)
	m.sets++
	return nil
}

func (m *memStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func wireFor(t *testing.T, v uint64) string {
	t.Helper()
	s, err := sentence.NewEncoder(lexicontest.Default(t), rand.New(rand.NewPCG(v, 1))).Encode(v)
	require.NoError(t, err)
	return s.Annotated()
}

func TestDecodeHitAndMiss(t *testing.T) {
	store := newMemStore()
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	c := New(store, config.RedisConfig{CacheTTL: time.Minute}, lexicontest.Default(t), m)
	ctx := context.Background()
	wire := wireFor(t, 123456789)

	v, err := c.Decode(ctx, wire)
	require.NoError(t, err)
	assert.Equal(t, uint64(123456789), v)

	// extra whitespace maps to the same entry
	v, err = c.Decode(ctx, "  "+strings.ReplaceAll(wire, " ", "   ")+"\t")
	require.NoError(t, err)
	assert.Equal(t, uint64(123456789), v)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal))
	assert.Equal(t, 1, store.sets)
}

func TestDecodeErrorsAreNotCached(t *testing.T) {
	store := newMemStore()
	c := New(store, config.RedisConfig{}, lexicontest.Default(t), nil)
	_, err := c.Decode(context.Background(), "Nom:licorne")
	assert.True(t, errors.Is(err, apperrors.ErrLemmaNotFound))
	assert.Zero(t, store.sets)
}

func TestRedisOutageFallsBackToDecode(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("connection refused")
	c := New(store, config.RedisConfig{}, lexicontest.Default(t), nil)
	v, err := c.Decode(context.Background(), wireFor(t, 42))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), v)
}

func TestKeysAreScopedByDictionary(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	a := New(store, config.RedisConfig{}, lexicontest.Default(t), nil)
	b := New(store, config.RedisConfig{}, lexicontest.New(t, lexicontest.Sizes{Nouns: 3, Adjectives: 2, Verbs: 2, Adverbs: 1}), nil)

	_, err := a.Decode(ctx, wireFor(t, 7))
	require.NoError(t, err)
	assert.NotEqual(t, a.buildKey("x"), b.buildKey("x"))

	require.NoError(t, b.Invalidate(ctx))
	assert.Len(t, store.data, 1, "other dictionary's entries survive")
	require.NoError(t, a.Invalidate(ctx))
	assert.Empty(t, store.data)
}
