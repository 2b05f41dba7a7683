package telemetry

// Span names used for tracing a report run.
const (
	SpanReportRun   = "report.run"
	SpanAcquire     = "report.acquire"
	SpanFetchWays   = "report.fetch_ways"
	SpanFetchObs    = "report.fetch_observations"
	SpanFetchPlaces = "report.fetch_places"
	SpanMatch       = "report.match"
	SpanAssociate   = "report.associate"
	SpanRemoteFetch = "remote.fetch"
)

// Attribute keys attached to spans.
const (
	AttrRunID        = "trailobs.run_id"
	AttrCacheKey     = "trailobs.cache_key"
	AttrWays         = "trailobs.ways"
	AttrObservations = "trailobs.observations"
	AttrMatched      = "trailobs.matched_segments"
	AttrResource     = "trailobs.resource"
)
