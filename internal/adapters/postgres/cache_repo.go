package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/trailobs/internal/core/domain"
	"github.com/samirrijal/trailobs/internal/core/ports"
)

// CacheRepo implements ports.CacheStore on the cache_entries table.
type CacheRepo struct {
	db *DB
}

// NewCacheRepo creates a new CacheRepo.
func NewCacheRepo(db *DB) *CacheRepo {
	return &CacheRepo{db: db}
}

func (r *CacheRepo) Get(ctx context.Context, key string) (ports.CacheEntry, error) {
	var e ports.CacheEntry
	err := r.db.Pool.QueryRow(ctx,
		`SELECT value, captured_at FROM cache_entries WHERE key = $1`, key,
	).Scan(&e.Value, &e.CapturedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ports.CacheEntry{}, domain.ErrCacheMiss
	}
	if err != nil {
		return ports.CacheEntry{}, fmt.Errorf("get cache entry: %w", err)
	}
	return e, nil
}

// Set upserts the entry.
func (r *CacheRepo) Set(ctx context.Context, key string, e ports.CacheEntry) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO cache_entries (key, value, captured_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, captured_at = EXCLUDED.captured_at
	`, key, e.Value, e.CapturedAt)
	if err != nil {
		return fmt.Errorf("set cache entry: %w", err)
	}
	return nil
}

func (r *CacheRepo) Purge(ctx context.Context, prefix string, maxAge time.Duration) (int, error) {
	tag, err := r.db.Pool.Exec(ctx, `
		DELETE FROM cache_entries
		WHERE key LIKE $1 ESCAPE '\' AND captured_at < $2
	`, escapeLike(prefix)+"%", time.Now().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("purge cache entries: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *CacheRepo) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// Close releases the underlying pool.
func (r *CacheRepo) Close() error {
	r.db.Close()
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
