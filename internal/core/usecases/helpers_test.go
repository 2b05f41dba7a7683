package usecases_test

import (
	"context"
	"sync"
	"time"

	"github.com/samirrijal/trailobs/internal/core/domain"
	"github.com/samirrijal/trailobs/internal/core/ports"
	"github.com/samirrijal/trailobs/internal/pkg/geospatial"
)

const baseLat, baseLon = 45.8326, 6.8652

// at returns the point north/east meters away from a fixed origin.
func at(northM, eastM float64) domain.Point {
	lat, lon := geospatial.Offset(baseLat, baseLon, northM, eastM)
	return domain.Point{Lat: lat, Lon: lon}
}

// line returns points along constant north from east0 to east1 every step.
func line(north, east0, east1, step float64) []domain.Point {
	var pts []domain.Point
	for e := east0; e <= east1+1e-9; e += step {
		pts = append(pts, at(north, e))
	}
	return pts
}

func routeOf(pts ...domain.Point) domain.Route {
	return domain.Route{Points: pts}
}

func way(id int64, name string, segs ...[]domain.Point) domain.NamedWay {
	return domain.NamedWay{ID: id, Name: name, Segments: segs, Source: "path"}
}

func obsAt(id int64, p domain.Point, grade domain.QualityGrade) domain.Observation {
	return domain.Observation{
		ID:           id,
		Location:     p,
		QualityGrade: grade,
		ObservedOn:   time.Date(2024, time.May, 12, 0, 0, 0, 0, time.UTC),
		UserLogin:    "hiker",
		Taxon:        domain.Taxon{ID: 47126, Name: "Plantae", IconicTaxon: "Plantae"},
	}
}

func ptrFloat(v float64) *float64 { return &v }

// --- Mock sources ---

type mockWaySource struct {
	mu      sync.Mutex
	calls   int
	fetchFn func(ctx context.Context, b domain.Bounds) ([]domain.NamedWay, error)
}

func (m *mockWaySource) FetchWays(ctx context.Context, b domain.Bounds) ([]domain.NamedWay, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.fetchFn != nil {
		return m.fetchFn(ctx, b)
	}
	return nil, nil
}

type mockObservationSource struct {
	mu      sync.Mutex
	calls   int
	fetchFn func(ctx context.Context, q domain.ObservationQuery) ([]domain.Observation, error)
}

func (m *mockObservationSource) FetchObservations(ctx context.Context, q domain.ObservationQuery) ([]domain.Observation, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.fetchFn != nil {
		return m.fetchFn(ctx, q)
	}
	return nil, nil
}

type mockPlaceSource struct {
	mu      sync.Mutex
	calls   int
	fetchFn func(ctx context.Context, b domain.Bounds) ([]domain.Place, error)
}

func (m *mockPlaceSource) FetchPlaces(ctx context.Context, b domain.Bounds) ([]domain.Place, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.fetchFn != nil {
		return m.fetchFn(ctx, b)
	}
	return nil, nil
}

// --- Mock CacheStore ---

type mockCacheStore struct {
	mu      sync.Mutex
	entries map[string]ports.CacheEntry
	sets    int
	getFn   func(ctx context.Context, key string) (ports.CacheEntry, error)
	setFn   func(ctx context.Context, key string, e ports.CacheEntry) error
}

func newMockCacheStore() *mockCacheStore {
	return &mockCacheStore{entries: make(map[string]ports.CacheEntry)}
}

func (m *mockCacheStore) Get(ctx context.Context, key string) (ports.CacheEntry, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return ports.CacheEntry{}, domain.ErrCacheMiss
	}
	return e, nil
}

func (m *mockCacheStore) Set(ctx context.Context, key string, e ports.CacheEntry) error {
	m.mu.Lock()
	m.sets++
	m.mu.Unlock()
	if m.setFn != nil {
		return m.setFn(ctx, key, e)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = e
	return nil
}

func (m *mockCacheStore) Purge(ctx context.Context, prefix string, maxAge time.Duration) (int, error) {
	return 0, nil
}

func (m *mockCacheStore) Close() error { return nil }

// --- Mock publisher ---

type mockPublisher struct {
	published []*domain.Report
	err       error
}

func (m *mockPublisher) PublishReport(ctx context.Context, r *domain.Report) error {
	m.published = append(m.published, r)
	return m.err
}
