package geospatial

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// RouteIndex indexes a projected route so that buffer membership and the
// along-route position of nearby points can be queried.
type RouteIndex struct {
	idx    *SegmentIndex
	length float64
}

// NewRouteIndex indexes the given lines as one route. Positions continue
// across lines in order; the gap between two lines adds no length.
func NewRouteIndex(lines []orb.LineString) *RouteIndex {
	var segs []Segment
	var pos float64
	for i, ls := range lines {
		segs = append(segs, Segments(ls, i, pos)...)
		pos += planar.Length(ls)
	}
	return &RouteIndex{idx: NewSegmentIndex(segs), length: pos}
}

// Length is the total along-route length in meters.
func (r *RouteIndex) Length() float64 { return r.length }

// Empty reports whether the route has no segments.
func (r *RouteIndex) Empty() bool { return r.idx.Len() == 0 }

// Distance returns the distance from p to the route.
func (r *RouteIndex) Distance(p orb.Point) (float64, bool) {
	h, ok := r.idx.Nearest(p)
	return h.Dist, ok
}

// InBuffer reports whether p lies within tol of the route.
func (r *RouteIndex) InBuffer(p orb.Point, tol float64) bool {
	d, ok := r.Distance(p)
	return ok && d <= tol
}

// FirstPassage returns the along-route position of the earliest route
// segment passing within tol of p, taken at that segment's point closest to
// p. ok is false when the route never comes that close.
func (r *RouteIndex) FirstPassage(p orb.Point, tol float64) (float64, bool) {
	hits := r.idx.Within(p, tol)
	if len(hits) == 0 {
		return 0, false
	}
	first := hits[0].At
	for _, h := range hits[1:] {
		if h.At < first {
			first = h.At
		}
	}
	return first, true
}
