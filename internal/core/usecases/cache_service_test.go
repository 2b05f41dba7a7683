package usecases_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/samirrijal/trailobs/internal/core/domain"
	"github.com/samirrijal/trailobs/internal/core/ports"
	"github.com/samirrijal/trailobs/internal/core/usecases"
)

func TestCacheService_FetchesOnce(t *testing.T) {
	store := newMockCacheStore()
	svc := usecases.NewCacheService(store, 8)

	var calls int32
	fetch := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte(`[1,2,3]`), nil
	}

	for i := 0; i < 2; i++ {
		v, err := svc.GetOrFetch(context.Background(), "observations:k", time.Hour, fetch)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(v) != `[1,2,3]` {
			t.Errorf("unexpected value %s", v)
		}
	}
	if calls != 1 {
		t.Errorf("expected 1 fetch, got %d", calls)
	}
	if store.sets != 1 {
		t.Errorf("expected 1 store write, got %d", store.sets)
	}
}

func TestCacheService_StoreHitDoesNotWrite(t *testing.T) {
	store := newMockCacheStore()
	store.entries["ways:k"] = ports.CacheEntry{Value: []byte(`"stored"`), CapturedAt: time.Now()}
	svc := usecases.NewCacheService(store, 8)

	v, err := svc.GetOrFetch(context.Background(), "ways:k", time.Hour, func(ctx context.Context) ([]byte, error) {
		t.Fatal("fetch must not be called on a hit")
		return nil, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(v) != `"stored"` {
		t.Errorf("unexpected value %s", v)
	}
	if store.sets != 0 {
		t.Errorf("expected no write on hit, got %d", store.sets)
	}
}

func TestCacheService_StaleEntryIsRefetched(t *testing.T) {
	store := newMockCacheStore()
	store.entries["observations:k"] = ports.CacheEntry{Value: []byte(`"old"`), CapturedAt: time.Now().Add(-9 * time.Hour)}
	svc := usecases.NewCacheService(store, 8)

	v, err := svc.GetOrFetch(context.Background(), "observations:k", 8*time.Hour, func(ctx context.Context) ([]byte, error) {
		return []byte(`"new"`), nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(v) != `"new"` {
		t.Errorf("expected refreshed value, got %s", v)
	}
	if string(store.entries["observations:k"].Value) != `"new"` {
		t.Error("expected store to hold the refreshed value")
	}
}

func TestCacheService_DegradesWhenStoreFails(t *testing.T) {
	store := newMockCacheStore()
	store.getFn = func(ctx context.Context, key string) (ports.CacheEntry, error) {
		return ports.CacheEntry{}, errors.New("disk on fire")
	}
	store.setFn = func(ctx context.Context, key string, e ports.CacheEntry) error {
		return errors.New("disk on fire")
	}
	svc := usecases.NewCacheService(store, 8)

	v, err := svc.GetOrFetch(context.Background(), "ways:k", time.Hour, func(ctx context.Context) ([]byte, error) {
		return []byte(`"fresh"`), nil
	})
	if err != nil {
		t.Fatalf("store failure must not fail the call: %v", err)
	}
	if string(v) != `"fresh"` {
		t.Errorf("unexpected value %s", v)
	}
}

func TestCacheService_FetchErrorIsReturned(t *testing.T) {
	svc := usecases.NewCacheService(nil, 8)
	wantErr := errors.New("remote down")

	_, err := svc.GetOrFetch(context.Background(), "ways:k", time.Hour, func(ctx context.Context) ([]byte, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected fetch error, got %v", err)
	}

	// a failed fetch is not cached
	v, err := svc.GetOrFetch(context.Background(), "ways:k", time.Hour, func(ctx context.Context) ([]byte, error) {
		return []byte(`1`), nil
	})
	if err != nil || string(v) != `1` {
		t.Errorf("expected retry to succeed, got %s, %v", v, err)
	}
}

func TestCacheService_ConcurrentCallersShareOneFetch(t *testing.T) {
	svc := usecases.NewCacheService(newMockCacheStore(), 8)

	var calls int32
	release := make(chan struct{})
	fetch := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []byte(`"shared"`), nil
	}

	const callers = 8
	var started, wg sync.WaitGroup
	started.Add(callers)
	wg.Add(callers)
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			started.Done()
			v, err := svc.GetOrFetch(context.Background(), "observations:same", time.Hour, fetch)
			if err == nil && string(v) != `"shared"` {
				err = errors.New("unexpected value " + string(v))
			}
			errs <- err
		}()
	}
	started.Wait()
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("caller failed: %v", err)
		}
	}
	if calls != 1 {
		t.Errorf("expected 1 fetch for concurrent callers, got %d", calls)
	}
}

func TestCacheService_CallerCancellation(t *testing.T) {
	svc := usecases.NewCacheService(nil, 8)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	release := make(chan struct{})
	defer close(release)
	_, err := svc.GetOrFetch(ctx, "ways:k", time.Hour, func(ctx context.Context) ([]byte, error) {
		<-release
		return []byte(`"late"`), nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCacheService_CancelledCallerDoesNotFailOthers(t *testing.T) {
	svc := usecases.NewCacheService(newMockCacheStore(), 8)

	fetching := make(chan struct{})
	release := make(chan struct{})
	var calls int32
	fetch := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		close(fetching)
		select {
		case <-release:
			return []byte(`"shared"`), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.GetOrFetch(firstCtx, "observations:same", time.Hour, fetch)
		firstErr <- err
	}()
	<-fetching

	type result struct {
		v   []byte
		err error
	}
	second := make(chan result, 1)
	go func() {
		v, err := svc.GetOrFetch(context.Background(), "observations:same", time.Hour, fetch)
		second <- result{v, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Errorf("first caller: expected context.Canceled, got %v", err)
	}

	close(release)
	r := <-second
	if r.err != nil {
		t.Fatalf("second caller failed: %v", r.err)
	}
	if string(r.v) != `"shared"` {
		t.Errorf("unexpected value %s", r.v)
	}
	if calls != 1 {
		t.Errorf("expected 1 fetch, got %d", calls)
	}
}

func TestGetOrFetchJSON(t *testing.T) {
	svc := usecases.NewCacheService(newMockCacheStore(), 8)
	var calls int
	fetch := func(ctx context.Context) ([]domain.NamedWay, error) {
		calls++
		return []domain.NamedWay{way(1, "Test Trail", line(0, 0, 100, 50))}, nil
	}

	for i := 0; i < 2; i++ {
		ways, err := usecases.GetOrFetchJSON(context.Background(), svc, "ways:json", time.Hour, fetch)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(ways) != 1 || ways[0].Name != "Test Trail" || len(ways[0].Segments[0]) != 3 {
			t.Errorf("unexpected decoded ways %+v", ways)
		}
	}
	if calls != 1 {
		t.Errorf("expected 1 fetch, got %d", calls)
	}
}
