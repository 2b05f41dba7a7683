// Package app assembles the adapters and services shared by the trailobs
// binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/samirrijal/trailobs/internal/adapters/filecache"
	"github.com/samirrijal/trailobs/internal/adapters/inaturalist"
	natsadapter "github.com/samirrijal/trailobs/internal/adapters/nats"
	"github.com/samirrijal/trailobs/internal/adapters/overpass"
	"github.com/samirrijal/trailobs/internal/adapters/postgres"
	"github.com/samirrijal/trailobs/internal/adapters/remote"
	"github.com/samirrijal/trailobs/internal/adapters/valkey"
	"github.com/samirrijal/trailobs/internal/core/domain"
	"github.com/samirrijal/trailobs/internal/core/ports"
	"github.com/samirrijal/trailobs/internal/core/usecases"
	"github.com/samirrijal/trailobs/internal/pkg/config"
	"github.com/samirrijal/trailobs/internal/pkg/logging"
)

// Application holds the dependencies of a running process.
type Application struct {
	Config  *config.Config
	Logger  *slog.Logger
	Store   ports.CacheStore // nil when caching is off
	Cache   *usecases.CacheService
	Reports *usecases.ReportService

	closers []io.Closer
}

// ErrUnknownBackend is returned by OpenStore for a cache.backend it does
// not know.
var ErrUnknownBackend = errors.New("unknown cache backend")

// New opens the configured cache store and publisher and wires the report
// service. A store or publisher that cannot be reached is logged and
// skipped, and runs then fetch directly. Only an unknown backend name is
// an error.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	a := &Application{Config: cfg, Logger: logger}

	store, err := OpenStore(ctx, cfg)
	switch {
	case errors.Is(err, ErrUnknownBackend):
		return nil, err
	case err != nil:
		logging.LogError(logger, "cache store unavailable, caching in memory only", err,
			slog.String("backend", cfg.Cache.Backend))
	case store != nil:
		a.Store = store
		a.closers = append(a.closers, store)
	}
	a.Cache = usecases.NewCacheService(a.Store, cfg.Cache.MemoryEntries)

	transport := remote.NewTransport(cfg.API.Transport(cfg.INaturalist.UserAgent), nil)
	ways := overpass.New(cfg.Overpass.URL, transport)
	observations := inaturalist.New(cfg.INaturalist.BaseURL, cfg.INaturalist.PerPage, transport)

	var publisher ports.ReportPublisher
	if cfg.NATS.URL != "" {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL, cfg.NATS.ReportMaxAge)
		if err != nil {
			logger.Warn("nats unavailable, reports will not be published", "error", err)
		} else {
			publisher = pub
			a.closers = append(a.closers, pub)
		}
	}

	a.Reports = usecases.NewReportService(ways, observations, a.Cache, publisher)
	a.Reports.ObservationMaxAge = cfg.Cache.ObservationMaxAge
	a.Reports.WayMaxAge = cfg.Cache.WayMaxAge
	a.Reports.PlaceMaxAge = cfg.Cache.PlaceMaxAge
	if cfg.INaturalist.Places {
		a.Reports.Places = observations
	}
	return a, nil
}

// OpenStore opens the durable cache store selected by cache.backend. It
// returns nil for the none backend.
func OpenStore(ctx context.Context, cfg *config.Config) (ports.CacheStore, error) {
	switch cfg.Cache.Backend {
	case config.BackendFile:
		s, err := filecache.New(cfg.Cache.Dir)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendValkey:
		retention := max(cfg.Cache.ObservationMaxAge, cfg.Cache.WayMaxAge, cfg.Cache.PlaceMaxAge)
		s, err := valkey.New(cfg.Valkey.Addr, retention)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendPostgres:
		db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		return postgres.NewCacheRepo(db), nil
	case config.BackendNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownBackend, cfg.Cache.Backend)
	}
}

// PurgeStale removes expired entries of every resource kind.
func (a *Application) PurgeStale(ctx context.Context) (int, error) {
	total := 0
	for kind, maxAge := range map[domain.ResourceKind]time.Duration{
		domain.KindObservations: a.Config.Cache.ObservationMaxAge,
		domain.KindWays:         a.Config.Cache.WayMaxAge,
		domain.KindPlaces:       a.Config.Cache.PlaceMaxAge,
	} {
		n, err := a.Cache.Purge(ctx, kind, maxAge)
		if err != nil {
			return total, err
		}
		total += n
	}
	a.Logger.Info("cache purged", "removed", total)
	return total, nil
}

// Ready reports whether the cache store answers.
func (a *Application) Ready(ctx context.Context) error {
	if p, ok := a.Store.(ports.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close releases every opened resource, in reverse order.
func (a *Application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		logging.SafeClose(a.Logger, a.closers[i], "shutdown")
	}
}
