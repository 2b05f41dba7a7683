package usecases

import (
	"math"
	"sort"

	"github.com/paulmach/orb"

	"github.com/samirrijal/trailobs/internal/core/domain"
	"github.com/samirrijal/trailobs/internal/pkg/geospatial"
)

// MatchResult is the output of TrailMatcher.Match.
type MatchResult struct {
	Segments        []domain.MatchedSegment
	DegenerateRoute bool
	SkippedWays     int
}

// TrailMatcher decides which named way segments a route traverses.
type TrailMatcher struct {
	tol domain.Tolerances
}

// NewTrailMatcher creates a matcher with the given tolerances.
func NewTrailMatcher(tol domain.Tolerances) *TrailMatcher {
	return &TrailMatcher{tol: tol}
}

// Match buffers the route by the route tolerance and keeps every way
// segment with a contiguous stretch of at least the minimum run length
// inside the buffer. A stretch that reaches either end of the segment
// qualifies at any length, so ways meeting the route at a junction match
// while ways that only cross it do not. The result is ordered by first
// appearance along the route, then way id, then segment index.
func (m *TrailMatcher) Match(g *Geometry, ways []domain.NamedWay) MatchResult {
	var res MatchResult
	if g.Degenerate() {
		res.DegenerateRoute = true
		return res
	}

	for _, w := range ways {
		if w.Empty() {
			res.SkippedWays++
			continue
		}
		for si, seg := range w.Segments {
			if len(seg) < 2 {
				continue
			}
			if ms, ok := m.matchSegment(g, seg); ok {
				ms.WayID = w.ID
				ms.Name = w.Name
				ms.Source = w.Source
				ms.SegmentIndex = si
				res.Segments = append(res.Segments, ms)
			}
		}
	}

	sort.SliceStable(res.Segments, func(i, j int) bool {
		a, b := res.Segments[i], res.Segments[j]
		if a.RouteStart != b.RouteStart {
			return a.RouteStart < b.RouteStart
		}
		if a.WayID != b.WayID {
			return a.WayID < b.WayID
		}
		return a.SegmentIndex < b.SegmentIndex
	})
	for i := range res.Segments {
		res.Segments[i].Order = i
	}
	return res
}

type run struct {
	start, end int // inclusive dense vertex indices
}

func (m *TrailMatcher) matchSegment(g *Geometry, seg []domain.Point) (domain.MatchedSegment, bool) {
	orig := g.Line(seg)
	dense := geospatial.Densify(orig, m.tol.DensifyStep)
	original := originalVertices(orig, dense)

	// along-way position and buffer membership of every dense vertex
	along := make([]float64, len(dense))
	inside := make([]bool, len(dense))
	for i, p := range dense {
		if i > 0 {
			along[i] = along[i-1] + math.Hypot(p[0]-dense[i-1][0], p[1]-dense[i-1][1])
		}
		inside[i] = g.route.InBuffer(p, m.tol.Route)
	}
	total := along[len(along)-1]
	if total == 0 {
		return domain.MatchedSegment{}, false
	}

	var runs []run
	for i := 0; i < len(dense); {
		if !inside[i] {
			i++
			continue
		}
		j := i
		for j+1 < len(dense) && inside[j+1] {
			j++
		}
		length := along[j] - along[i]
		tip := i == 0 || j == len(dense)-1
		if j > i && (length >= m.tol.MinRunLength || tip) {
			runs = append(runs, run{start: i, end: j})
		}
		i = j + 1
	}
	if len(runs) == 0 {
		return domain.MatchedSegment{}, false
	}

	ms := domain.MatchedSegment{RouteStart: math.Inf(1), RouteEnd: math.Inf(-1)}
	for _, r := range runs {
		part := make([]domain.Point, 0, r.end-r.start+1)
		for i := r.start; i <= r.end; i++ {
			if i == r.start || i == r.end || original[i] {
				part = append(part, g.Unproject(dense[i]))
			}
			if pos, ok := g.route.FirstPassage(dense[i], m.tol.Route); ok {
				ms.RouteStart = math.Min(ms.RouteStart, pos)
				ms.RouteEnd = math.Max(ms.RouteEnd, pos)
			}
		}
		ms.Parts = append(ms.Parts, part)
		ms.Length += along[r.end] - along[r.start]
	}
	return ms, true
}

// originalVertices marks which vertices of dense were vertices of orig.
// Densify keeps the original vertices in order.
func originalVertices(orig, dense orb.LineString) []bool {
	marks := make([]bool, len(dense))
	j := 0
	for i, p := range dense {
		if j < len(orig) && p == orig[j] {
			marks[i] = true
			j++
		}
	}
	return marks
}
