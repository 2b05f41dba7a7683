package http

import (
	"context"
	"time"

	"github.com/samirrijal/trailobs/internal/core/domain"
	"github.com/samirrijal/trailobs/internal/core/ports"
	"github.com/samirrijal/trailobs/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Reports *usecases.ReportService
	Tracks  ports.TrackReader
	// Defaults seeds every run; query parameters override the filter.
	Defaults domain.RunConfig
	// Ready checks backing stores; nil means always ready.
	Ready func(ctx context.Context) error

	RequestTimeout time.Duration
	RateLimit      int // requests per minute per client, 0 disables
	Version        string
}
