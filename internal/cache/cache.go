// Package cache memoises sentence decodes in Redis. Keys include the
// dictionary fingerprint, so a cache shared by peers running different
// word lists never returns a value computed under the wrong indices.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/lexicon"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/sentence"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/redis"
)

const keyPrefix = "corpse:decode:"

// Store is the subset of the Redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type DecodeCache struct {
	store   Store
	ttl     time.Duration
	dict    *lexicon.Dictionary
	prefix  string
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(store Store, cfg config.RedisConfig, dict *lexicon.Dictionary, m *metrics.Metrics) *DecodeCache {
	return &DecodeCache{
		store:   store,
		ttl:     cfg.CacheTTL,
		dict:    dict,
		prefix:  keyPrefix + dict.Fingerprint()[:16] + ":",
		metrics: m,
		logger:  slog.Default().With("component", "decode-cache"),
	}
}

// Decode returns the value of a wire sentence, from Redis when possible.
// Concurrent misses for the same sentence decode once. Failed decodes are
// never cached, and a Redis outage degrades to plain decoding.
func (c *DecodeCache) Decode(ctx context.Context, wire string) (uint64, error) {
	normalized := normalizeWire(wire)
	key := c.buildKey(normalized)
	if v, ok := c.get(ctx, key); ok {
		return v, nil
	}
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		v, err := sentence.Decode(c.dict, normalized)
		if err != nil {
			return uint64(0), err
		}
		if err := c.store.Set(ctx, key, strconv.FormatUint(v, 10), c.ttl); err != nil {
			c.logger.Error("cache set failed", "key", key, "error", err)
		}
		return v, nil
	})
	if err != nil {
		return 0, err
	}
	return val.(uint64), nil
}

func (c *DecodeCache) get(ctx context.Context, key string) (uint64, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return 0, false
	}
	v, err := strconv.ParseUint(data, 10, 64)
	if err != nil {
		c.logger.Error("cache entry corrupt", "key", key, "error", err)
		c.miss()
		return 0, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	return v, true
}

func (c *DecodeCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// Invalidate drops every entry of the current dictionary.
func (c *DecodeCache) Invalidate(ctx context.Context) error {
	deleted, err := c.store.FlushByPattern(ctx, c.prefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating decode cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

func (c *DecodeCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *DecodeCache) buildKey(normalized string) string {
	hash := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%s%x", c.prefix, hash[:16])
}

// normalizeWire collapses whitespace so transcriptions that differ only in
// spacing share an entry.
func normalizeWire(wire string) string {
	return strings.Join(strings.Fields(wire), " ")
}
