package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trailobs",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "trailobs",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"method", "path"})

	// Remote API metrics
	RemoteRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trailobs",
		Subsystem: "remote",
		Name:      "requests_total",
		Help:      "Remote API requests by resource kind and outcome",
	}, []string{"kind", "status"})

	RemoteRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trailobs",
		Subsystem: "remote",
		Name:      "retries_total",
		Help:      "Remote API request retries",
	}, []string{"kind"})

	RemoteRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "trailobs",
		Subsystem: "remote",
		Name:      "request_duration_seconds",
		Help:      "Remote API request latency, rate limiter wait excluded",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"kind"})

	// Cache metrics
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trailobs",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"kind", "tier"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trailobs",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"kind"})

	CacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trailobs",
		Subsystem: "cache",
		Name:      "errors_total",
		Help:      "Cache store failures that degraded to a direct fetch",
	}, []string{"kind", "operation"})

	// Core metrics
	ObservationsAssociated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trailobs",
		Subsystem: "core",
		Name:      "observations_total",
		Help:      "Observations by association outcome",
	}, []string{"outcome"})

	SegmentsMatched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trailobs",
		Subsystem: "core",
		Name:      "segments_matched_total",
		Help:      "Named way segments matched to a route",
	})

	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "trailobs",
		Subsystem: "core",
		Name:      "run_duration_seconds",
		Help:      "Duration of report runs",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"result"})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())

		return err
	}
}

// Handler returns a Fiber handler serving the Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	return func(c *fiber.Ctx) error {
		handler(c.Context())
		return nil
	}
}
