package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bluele/gcache"
	"golang.org/x/sync/singleflight"

	"github.com/samirrijal/trailobs/internal/core/domain"
	"github.com/samirrijal/trailobs/internal/core/ports"
	"github.com/samirrijal/trailobs/internal/pkg/logging"
	"github.com/samirrijal/trailobs/internal/pkg/metrics"
)

// FetchFunc produces the value for a cache key on a miss.
type FetchFunc func(ctx context.Context) ([]byte, error)

// CacheService is a read-through cache in front of remote fetches. An
// in-process LRU sits before the durable store. Store failures degrade to
// calling the fetcher; caching never decides whether a run succeeds.
type CacheService struct {
	store ports.CacheStore
	front gcache.Cache
	group singleflight.Group
	now   func() time.Time
}

// NewCacheService creates a cache over store, which may be nil to disable
// durable caching. frontEntries sizes the in-process LRU.
func NewCacheService(store ports.CacheStore, frontEntries int) *CacheService {
	if frontEntries <= 0 {
		frontEntries = 64
	}
	return &CacheService{
		store: store,
		front: gcache.New(frontEntries).LRU().Build(),
		now:   time.Now,
	}
}

// GetOrFetch returns the value stored under key if it was captured no more
// than maxAge ago, otherwise it calls fetch and stores the result. A
// non-positive maxAge accepts any stored value. Concurrent calls for the
// same key share one fetch. The shared fetch is detached from the
// cancellation of whichever caller started it; each caller stops waiting
// when its own ctx is done.
func (c *CacheService) GetOrFetch(ctx context.Context, key string, maxAge time.Duration, fetch FetchFunc) ([]byte, error) {
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		return c.load(shared, key, maxAge, fetch)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.([]byte), nil
	}
}

func (c *CacheService) load(ctx context.Context, key string, maxAge time.Duration, fetch FetchFunc) ([]byte, error) {
	log := logging.FromContext(ctx).With("cache_key", key)
	kind := kindOf(key)

	if v, err := c.front.Get(key); err == nil {
		if e, ok := v.(ports.CacheEntry); ok && c.fresh(e, maxAge) {
			metrics.CacheHits.WithLabelValues(kind, "memory").Inc()
			log.Debug("cache hit", "tier", "memory")
			return e.Value, nil
		}
	}

	if c.store != nil {
		e, err := c.store.Get(ctx, key)
		switch {
		case err == nil && c.fresh(e, maxAge):
			metrics.CacheHits.WithLabelValues(kind, "store").Inc()
			log.Debug("cache hit", "tier", "store", "captured_at", e.CapturedAt)
			_ = c.front.Set(key, e)
			return e.Value, nil
		case err == nil, errors.Is(err, domain.ErrCacheMiss):
		default:
			metrics.CacheErrors.WithLabelValues(kind, "get").Inc()
			logging.LogError(log, "cache read failed, fetching directly", err)
		}
	}

	metrics.CacheMisses.WithLabelValues(kind).Inc()
	value, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	entry := ports.CacheEntry{Value: value, CapturedAt: c.now()}
	_ = c.front.Set(key, entry)
	if c.store != nil {
		if err := c.store.Set(ctx, key, entry); err != nil {
			metrics.CacheErrors.WithLabelValues(kind, "set").Inc()
			logging.LogError(log, "cache write failed", err)
		}
	}
	log.Debug("cache filled", slog.Int("bytes", len(value)))
	return value, nil
}

func (c *CacheService) fresh(e ports.CacheEntry, maxAge time.Duration) bool {
	return maxAge <= 0 || c.now().Sub(e.CapturedAt) <= maxAge
}

// Purge removes stale entries of one resource kind from the durable store
// and clears the in-process tier.
func (c *CacheService) Purge(ctx context.Context, kind domain.ResourceKind, maxAge time.Duration) (int, error) {
	c.front.Purge()
	if c.store == nil {
		return 0, nil
	}
	n, err := c.store.Purge(ctx, string(kind)+":", maxAge)
	if err != nil {
		return n, fmt.Errorf("purge %s: %w", kind, err)
	}
	return n, nil
}

func kindOf(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return "unknown"
}

// GetOrFetchJSON is GetOrFetch for values stored as JSON.
func GetOrFetchJSON[T any](ctx context.Context, c *CacheService, key string, maxAge time.Duration, fetch func(ctx context.Context) (T, error)) (T, error) {
	var out T
	data, err := c.GetOrFetch(ctx, key, maxAge, func(ctx context.Context) ([]byte, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return out, nil
}
