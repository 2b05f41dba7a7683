package ports

import (
	"context"
	"time"

	"github.com/samirrijal/trailobs/internal/core/domain"
)

// CacheEntry is a stored snapshot of a remote query result.
type CacheEntry struct {
	Value      []byte    `json:"value"`
	CapturedAt time.Time `json:"captured_at"`
}

// CacheStore is a durable key/value store for remote query results.
type CacheStore interface {
	// Get returns domain.ErrCacheMiss when key is absent.
	Get(ctx context.Context, key string) (CacheEntry, error)
	Set(ctx context.Context, key string, entry CacheEntry) error
	// Purge removes entries under prefix captured more than maxAge ago and
	// returns how many were removed.
	Purge(ctx context.Context, prefix string, maxAge time.Duration) (int, error)
	Close() error
}

// WaySource fetches the named ways inside a bounding box.
type WaySource interface {
	FetchWays(ctx context.Context, b domain.Bounds) ([]domain.NamedWay, error)
}

// ObservationSource fetches observations matching a query.
type ObservationSource interface {
	FetchObservations(ctx context.Context, q domain.ObservationQuery) ([]domain.Observation, error)
}

// Pinger is implemented by stores that can report their own readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PlaceSource fetches the named places overlapping a bounding box.
type PlaceSource interface {
	FetchPlaces(ctx context.Context, b domain.Bounds) ([]domain.Place, error)
}
