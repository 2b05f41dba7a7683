package valkey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/samirrijal/trailobs/internal/core/domain"
	"github.com/samirrijal/trailobs/internal/core/ports"
)

const keyPrefix = "trailobs:"

// Cache implements ports.CacheStore using Valkey (Redis-compatible).
// Entries are JSON envelopes; the key TTL drops them once retention passes.
type Cache struct {
	client    valkey.Client
	retention time.Duration
}

// New creates a new Valkey cache client. A zero retention stores keys
// without expiry.
func New(addr string, retention time.Duration) (*Cache, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return &Cache{client: client, retention: retention}, nil
}

func (c *Cache) Get(ctx context.Context, key string) (ports.CacheEntry, error) {
	b, err := c.client.Do(ctx, c.client.B().Get().Key(keyPrefix+key).Build()).AsBytes()
	if valkey.IsValkeyNil(err) {
		return ports.CacheEntry{}, domain.ErrCacheMiss
	}
	if err != nil {
		return ports.CacheEntry{}, err
	}
	var e ports.CacheEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return ports.CacheEntry{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return e, nil
}

func (c *Cache) Set(ctx context.Context, key string, e ports.CacheEntry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if c.retention <= 0 {
		return c.client.Do(ctx, c.client.B().Set().Key(keyPrefix+key).Value(string(b)).Build()).Error()
	}
	return c.client.Do(ctx,
		c.client.B().Set().Key(keyPrefix+key).Value(string(b)).Ex(c.retention).Build(),
	).Error()
}

// Purge scans keys under prefix and deletes the ones captured before the
// cutoff. Entries already expired by TTL are simply not found.
func (c *Cache) Purge(ctx context.Context, prefix string, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	pattern := keyPrefix + escapeGlob(prefix) + "*"
	removed := 0

	var cursor uint64
	for {
		entry, err := c.client.Do(ctx, c.client.B().Scan().Cursor(cursor).Match(pattern).Count(200).Build()).AsScanEntry()
		if err != nil {
			return removed, fmt.Errorf("scan: %w", err)
		}
		for _, k := range entry.Elements {
			e, err := c.Get(ctx, strings.TrimPrefix(k, keyPrefix))
			if errors.Is(err, domain.ErrCacheMiss) {
				continue
			}
			if err == nil && !e.CapturedAt.Before(cutoff) {
				continue
			}
			// undecodable envelopes go too
			if err := c.client.Do(ctx, c.client.B().Del().Key(k).Build()).Error(); err != nil {
				return removed, fmt.Errorf("del %s: %w", k, err)
			}
			removed++
		}
		cursor = entry.Cursor
		if cursor == 0 {
			return removed, nil
		}
	}
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error()
}

// Close releases the client.
func (c *Cache) Close() error {
	c.client.Close()
	return nil
}

func escapeGlob(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}
