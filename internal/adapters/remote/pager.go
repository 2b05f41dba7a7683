package remote

import (
	"context"
	"fmt"
	"sort"

	"github.com/sourcegraph/conc/pool"
)

// Page is one page of results. Total is the number of results the server
// reports for the whole query, or -1 when unknown.
type Page[T any] struct {
	Items []T
	Total int
}

// PageFunc fetches the 1-based page n.
type PageFunc[T any] func(ctx context.Context, n int) (Page[T], error)

// Paginator walks a paginated resource. When the first page reveals the
// total, the remaining pages fan out concurrently; otherwise pages are
// fetched in order until a short page. Either way fetching continues past
// the last expected page while pages come back full.
type Paginator[T any] struct {
	PerPage     int
	MaxPages    int // zero means unbounded
	Concurrency int
	ID          func(T) int64
}

type numberedPage[T any] struct {
	n     int
	items []T
}

// Collect fetches every page and returns the results deduplicated by ID and
// sorted by ascending ID. Any page error aborts the walk.
func (p Paginator[T]) Collect(ctx context.Context, fetch PageFunc[T]) ([]T, error) {
	first, err := fetch(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("page 1: %w", err)
	}
	items := first.Items
	if len(first.Items) < p.PerPage || p.MaxPages == 1 {
		return Dedup(items, p.ID), nil
	}

	next := 2
	lastFull := true
	if first.Total >= 0 {
		pages := (first.Total + p.PerPage - 1) / p.PerPage
		if p.MaxPages > 0 && pages > p.MaxPages {
			pages = p.MaxPages
		}
		if pages >= 2 {
			rest, err := p.fanOut(ctx, fetch, 2, pages)
			if err != nil {
				return nil, err
			}
			for _, pg := range rest {
				items = append(items, pg.items...)
				if pg.n == pages {
					lastFull = len(pg.items) >= p.PerPage
				}
			}
		}
		next = pages + 1
	}

	for lastFull && (p.MaxPages == 0 || next <= p.MaxPages) {
		pg, err := fetch(ctx, next)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", next, err)
		}
		items = append(items, pg.Items...)
		lastFull = len(pg.Items) >= p.PerPage
		next++
	}
	return Dedup(items, p.ID), nil
}

func (p Paginator[T]) fanOut(ctx context.Context, fetch PageFunc[T], from, to int) ([]numberedPage[T], error) {
	workers := p.Concurrency
	if workers < 1 {
		workers = 1
	}
	wp := pool.NewWithResults[numberedPage[T]]().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError().
		WithMaxGoroutines(workers)
	for n := from; n <= to; n++ {
		wp.Go(func(ctx context.Context) (numberedPage[T], error) {
			pg, err := fetch(ctx, n)
			if err != nil {
				return numberedPage[T]{}, fmt.Errorf("page %d: %w", n, err)
			}
			return numberedPage[T]{n: n, items: pg.Items}, nil
		})
	}
	return wp.Wait()
}

// Dedup keeps the first item per ID and sorts by ascending ID.
func Dedup[T any](items []T, id func(T) int64) []T {
	seen := make(map[int64]bool, len(items))
	out := make([]T, 0, len(items))
	for _, it := range items {
		k := id(it)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return id(out[i]) < id(out[j]) })
	return out
}
