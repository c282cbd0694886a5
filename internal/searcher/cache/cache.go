// Package cache memoises search results in redis. Keys include the engine
// generation, so adding a document makes every older entry unreachable
// without an explicit flush; stale entries expire through the TTL. Redis
// calls go through a circuit breaker so a failing redis costs searches
// nothing beyond the first few timeouts.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/browsersearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/resilience"
)

const keyPrefix = "search:"

// Store is satisfied by *redis.Client. Get returns redis.ErrMiss for
// absent keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type Stats struct {
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
	Breaker string `json:"breaker"`
}

type QueryCache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	breaker *resilience.Breaker
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New builds a QueryCache. m may be nil.
func New(store Store, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		store:   store,
		ttl:     ttl,
		breaker: resilience.NewBreaker("redis-cache", resilience.BreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
			CallTimeout:      100 * time.Millisecond,
		}),
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// GetOrCompute returns the cached result for query at generation, or runs
// compute once per key across concurrent callers and stores its result.
// Errors from compute are returned and never cached.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	mode parser.Mode,
	query string,
	generation int64,
	compute func() (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	key := buildKey(mode, query, generation)
	if result, ok := c.get(ctx, key); ok {
		c.hit()
		return result, true, nil
	}
	c.miss()

	val, err, _ := c.group.Do(key, func() (any, error) {
		result, err := compute()
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*executor.SearchResult), false, nil
}

// Invalidate deletes every cached result.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Breaker: c.breaker.State().String()}
}

func (c *QueryCache) get(ctx context.Context, key string) (*executor.SearchResult, bool) {
	var data []byte
	err := c.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		data, err = c.store.Get(ctx, key)
		return err
	}, isMiss)
	if err != nil {
		if !errors.Is(err, pkgredis.ErrMiss) && !errors.Is(err, resilience.ErrCircuitOpen) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return nil, false
	}
	return &result, true
}

func (c *QueryCache) set(ctx context.Context, key string, result *executor.SearchResult) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Do(ctx, func(ctx context.Context) error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

func isMiss(err error) bool { return errors.Is(err, pkgredis.ErrMiss) }

func (c *QueryCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func buildKey(mode parser.Mode, query string, generation int64) string {
	raw := fmt.Sprintf("%s|%s|%d", mode, normalizeQuery(mode, query), generation)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

// normalizeQuery folds the differences Compile ignores: case everywhere,
// all whitespace in prefix text and runs of whitespace in infix text.
func normalizeQuery(mode parser.Mode, query string) string {
	q := strings.ToLower(query)
	if mode == parser.ModePrefix {
		return strings.Join(strings.Fields(q), "")
	}
	return strings.Join(strings.Fields(q), " ")
}
