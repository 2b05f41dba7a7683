package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/trailobs/internal/core/domain"
	"github.com/samirrijal/trailobs/internal/core/ports"
	"github.com/samirrijal/trailobs/internal/pkg/logging"
	"github.com/samirrijal/trailobs/internal/pkg/metrics"
	"github.com/samirrijal/trailobs/internal/pkg/telemetry"
)

// Retention of cached remote results, per resource kind.
const (
	DefaultObservationMaxAge = 8 * time.Hour
	DefaultWayMaxAge         = 28 * 24 * time.Hour
	DefaultPlaceMaxAge       = 28 * 24 * time.Hour
)

// ReportService runs the whole pipeline for one route: acquisition through
// the cache, trail matching and observation association.
type ReportService struct {
	ways         ports.WaySource
	observations ports.ObservationSource
	cache        *CacheService
	publisher    ports.ReportPublisher // optional

	// Places, when set, supplies the places used to resolve observation
	// statuses. A failed places lookup leaves statuses empty.
	Places ports.PlaceSource

	ObservationMaxAge time.Duration
	WayMaxAge         time.Duration
	PlaceMaxAge       time.Duration
}

// NewReportService creates a ReportService. cache and publisher may be nil.
func NewReportService(ways ports.WaySource, observations ports.ObservationSource, cache *CacheService, publisher ports.ReportPublisher) *ReportService {
	if cache == nil {
		cache = NewCacheService(nil, 0)
	}
	return &ReportService{
		ways:              ways,
		observations:      observations,
		cache:             cache,
		publisher:         publisher,
		ObservationMaxAge: DefaultObservationMaxAge,
		WayMaxAge:         DefaultWayMaxAge,
		PlaceMaxAge:       DefaultPlaceMaxAge,
	}
}

// Run produces the report for route. Configuration errors are returned
// before any network activity. If ways or observations cannot be fetched
// the error wraps domain.ErrFetchFailed and nothing is matched.
func (s *ReportService) Run(ctx context.Context, route domain.Route, cfg domain.RunConfig) (report *domain.Report, err error) {
	start := time.Now()
	runID := uuid.NewString()
	log := logging.FromContext(ctx).With("run_id", runID)
	ctx = logging.WithLogger(ctx, log)

	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanReportRun)
	span.SetAttributes(attribute.String(telemetry.AttrRunID, runID))
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		metrics.RunDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
		span.End()
	}()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	filter, err := NewFilter(cfg.Filter)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	report = &domain.Report{RunID: runID, Filter: cfg.Filter}

	geom := NewGeometry(route)
	if geom.Degenerate() {
		log.Warn("route is degenerate, nothing to match", "points", len(route.Points))
		report.DegenerateRoute = true
		return report, nil
	}

	bbox, err := domain.BoundsForRoute(route, cfg.Tolerances.BBoxPadding)
	if err != nil {
		return nil, err
	}
	report.BBox = bbox

	ways, obs, places, err := s.acquire(ctx, bbox, cfg.Filter)
	if err != nil {
		return nil, err
	}
	log.Info("data loaded", "ways", len(ways), "observations", len(obs), "places", len(places), "bbox", bbox.String())

	resolver := NewPlaceResolver(route, places)
	resolver.Resolve(obs)
	report.Place = resolver.RoutePlace()

	_, matchSpan := telemetry.Tracer().Start(ctx, telemetry.SpanMatch)
	match := NewTrailMatcher(cfg.Tolerances).Match(geom, ways)
	matchSpan.SetAttributes(attribute.Int(telemetry.AttrMatched, len(match.Segments)))
	matchSpan.End()
	if match.SkippedWays > 0 {
		log.Warn("skipped ways without geometry", "count", match.SkippedWays)
	}
	metrics.SegmentsMatched.Add(float64(len(match.Segments)))

	_, assocSpan := telemetry.Tracer().Start(ctx, telemetry.SpanAssociate)
	assocs := NewAssociator(geom, match.Segments, filter, cfg.Tolerances).Associate(obs)
	assocSpan.End()

	report.Matched = match.Segments
	report.Associations = assocs
	report.Trails = domain.GroupTrails(match.Segments, assocs)
	report.Stats = domain.Stats{
		Ways:            len(ways),
		SkippedWays:     match.SkippedWays,
		MatchedSegments: len(match.Segments),
		Trails:          len(report.Trails),
		Observations:    len(obs),
	}
	for _, a := range assocs {
		report.Stats.Count(a)
		outcome := string(a.Reason)
		if a.Included() {
			outcome = "associated"
		}
		metrics.ObservationsAssociated.WithLabelValues(outcome).Inc()
	}

	st := report.Stats
	log.Info("report ready",
		slog.Int("trails", st.Trails),
		slog.Int("associated", st.Associated),
		slog.Int("excluded_accuracy", st.ExcludedAccuracy),
		slog.Int("excluded_filter", st.ExcludedQuality+st.ExcludedIconicTaxon),
		slog.Int("excluded_season", st.ExcludedSeason),
		slog.Int("excluded_off_route", st.ExcludedOffRoute),
	)

	if s.publisher != nil {
		if err := s.publisher.PublishReport(ctx, report); err != nil {
			logging.LogError(log, "publish report failed", err)
		}
	}
	return report, nil
}

// acquire fetches ways, observations and places concurrently through the
// cache. The first failure of ways or observations cancels the other
// fetches; places are best effort.
func (s *ReportService) acquire(ctx context.Context, bbox domain.Bounds, f domain.FilterConfig) ([]domain.NamedWay, []domain.Observation, []domain.Place, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanAcquire)
	defer span.End()

	// the remote query uses the same rounded box as the cache key, so a
	// cached result is exactly what a fresh fetch would return
	query := domain.NewObservationQuery(bbox.Rounded(2), f)
	wayBox := bbox.Rounded(2)

	var (
		ways   []domain.NamedWay
		obs    []domain.Observation
		places []domain.Place
	)
	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	p.Go(func(ctx context.Context) error {
		ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanFetchWays)
		defer span.End()
		key := domain.WaysCacheKey(wayBox)
		span.SetAttributes(attribute.String(telemetry.AttrCacheKey, key))

		var err error
		ways, err = GetOrFetchJSON(ctx, s.cache, key, s.WayMaxAge, func(ctx context.Context) ([]domain.NamedWay, error) {
			return s.ways.FetchWays(ctx, wayBox)
		})
		if err != nil {
			return fmt.Errorf("ways: %w", err)
		}
		span.SetAttributes(attribute.Int(telemetry.AttrWays, len(ways)))
		return nil
	})
	p.Go(func(ctx context.Context) error {
		ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanFetchObs)
		defer span.End()
		key := query.CacheKey()
		span.SetAttributes(attribute.String(telemetry.AttrCacheKey, key))

		var err error
		obs, err = GetOrFetchJSON(ctx, s.cache, key, s.ObservationMaxAge, func(ctx context.Context) ([]domain.Observation, error) {
			return s.observations.FetchObservations(ctx, query)
		})
		if err != nil {
			return fmt.Errorf("observations: %w", err)
		}
		span.SetAttributes(attribute.Int(telemetry.AttrObservations, len(obs)))
		return nil
	})
	if s.Places != nil {
		p.Go(func(ctx context.Context) error {
			ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanFetchPlaces)
			defer span.End()
			box := bbox.Rounded(3)
			key := domain.PlacesCacheKey(box)
			span.SetAttributes(attribute.String(telemetry.AttrCacheKey, key))

			var err error
			places, err = GetOrFetchJSON(ctx, s.cache, key, s.PlaceMaxAge, func(ctx context.Context) ([]domain.Place, error) {
				return s.Places.FetchPlaces(ctx, box)
			})
			if err != nil {
				logging.LogError(logging.FromContext(ctx), "places unavailable, statuses left empty", err)
			}
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return nil, nil, nil, err
		}
		return nil, nil, nil, fmt.Errorf("%w: %w", domain.ErrFetchFailed, err)
	}
	return ways, obs, places, nil
}
