package ports

import (
	"context"
	"io"

	"github.com/samirrijal/trailobs/internal/core/domain"
)

// ReportPublisher publishes finished reports to a message broker.
type ReportPublisher interface {
	PublishReport(ctx context.Context, report *domain.Report) error
}

// TrackReader turns recorded track files into a route.
type TrackReader interface {
	ReadRoute(r io.Reader) (domain.Route, error)
}
