// Package gpx reads recorded GPS tracks into a domain.Route.
package gpx

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tkrajina/gpxgo/gpx"

	"github.com/samirrijal/trailobs/internal/core/domain"
)

// ErrNoTrack is returned when a file holds no segment with two points.
var ErrNoTrack = errors.New("gpx: no track segment with at least two points")

// Reader implements ports.TrackReader.
type Reader struct{}

// ReadRoute parses one GPX document. Every track segment with at least two
// points becomes a part of the route, in document order.
func (Reader) ReadRoute(r io.Reader) (domain.Route, error) {
	doc, err := gpx.Parse(r)
	if err != nil {
		return domain.Route{}, fmt.Errorf("gpx: %w", err)
	}
	var route domain.Route
	for _, trk := range doc.Tracks {
		for _, seg := range trk.Segments {
			appendPart(&route, convert(seg.Points))
		}
	}
	if len(route.Points) == 0 {
		return route, ErrNoTrack
	}
	return route, nil
}

// ReadFiles reads every file and concatenates their parts in argument
// order.
func (r Reader) ReadFiles(paths ...string) (domain.Route, error) {
	var route domain.Route
	for _, p := range paths {
		part, err := r.readFile(p)
		if err != nil {
			return domain.Route{}, fmt.Errorf("%s: %w", p, err)
		}
		Merge(&route, part)
	}
	return route, nil
}

func (r Reader) readFile(path string) (domain.Route, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Route{}, err
	}
	defer f.Close()
	return r.ReadRoute(f)
}

// Merge appends src to dst, starting a new part at each of src's parts.
func Merge(dst *domain.Route, src domain.Route) {
	for _, line := range src.Lines() {
		appendPart(dst, line)
	}
}

func appendPart(route *domain.Route, pts []domain.Point) {
	if len(pts) < 2 {
		return
	}
	if len(route.Points) > 0 {
		route.Breaks = append(route.Breaks, len(route.Points))
	}
	route.Points = append(route.Points, pts...)
}

func convert(in []gpx.GPXPoint) []domain.Point {
	out := make([]domain.Point, 0, len(in))
	for _, p := range in {
		pt := domain.Point{Lat: p.Latitude, Lon: p.Longitude}
		if p.Elevation.NotNull() {
			ele := p.Elevation.Value()
			pt.Elevation = &ele
		}
		if !p.Timestamp.IsZero() {
			ts := p.Timestamp
			pt.Time = &ts
		}
		out = append(out, pt)
	}
	return out
}
