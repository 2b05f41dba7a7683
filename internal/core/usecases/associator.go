package usecases

import (
	"sort"

	"github.com/samirrijal/trailobs/internal/core/domain"
	"github.com/samirrijal/trailobs/internal/pkg/geospatial"
)

// tieEpsilon is the distance, in meters, under which two candidate ways are
// considered equally near.
const tieEpsilon = 1e-6

// Associator assigns observations to matched way segments.
type Associator struct {
	geom    *Geometry
	matched []domain.MatchedSegment
	index   *geospatial.SegmentIndex
	filter  *Filter
	tol     domain.Tolerances
}

// NewAssociator indexes the matched geometry. matched must be in route
// order, as returned by TrailMatcher.Match.
func NewAssociator(g *Geometry, matched []domain.MatchedSegment, filter *Filter, tol domain.Tolerances) *Associator {
	if filter == nil {
		filter = &Filter{}
	}
	var segs []geospatial.Segment
	for i, ms := range matched {
		for _, part := range ms.Parts {
			segs = append(segs, geospatial.Segments(g.Line(part), i, 0)...)
		}
	}
	return &Associator{
		geom:    g,
		matched: matched,
		index:   geospatial.NewSegmentIndex(segs),
		filter:  filter,
		tol:     tol,
	}
}

// Associate decides every observation. Exclusions are checked in order:
// positional accuracy, quality grade and iconic taxon, month, distance.
// The result is sorted by observation id.
func (a *Associator) Associate(obs []domain.Observation) []domain.Association {
	out := make([]domain.Association, 0, len(obs))
	for _, o := range obs {
		out = append(out, a.associate(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Observation.ID < out[j].Observation.ID })
	return out
}

func (a *Associator) associate(o domain.Observation) domain.Association {
	res := domain.Association{Observation: o}

	if o.Accuracy != nil && *o.Accuracy > a.tol.MaxAccuracy {
		res.Reason = domain.ReasonAccuracy
		return res
	}
	if reason := a.filter.Check(o); reason != domain.ReasonNone {
		res.Reason = reason
		return res
	}

	hits := a.index.Within(a.geom.Project(o.Location), a.tol.Observation)
	if len(hits) == 0 {
		res.Reason = domain.ReasonOffRoute
		return res
	}

	// hits are sorted by distance; among the equally near, the segment the
	// route reaches first wins
	best := hits[0]
	for _, h := range hits[1:] {
		if h.Dist-hits[0].Dist > tieEpsilon {
			break
		}
		if h.Ref < best.Ref {
			best = h
		}
	}

	ms := a.matched[best.Ref]
	res.WayID = ms.WayID
	res.SegmentIndex = ms.SegmentIndex
	res.TrailName = ms.Name
	res.Distance = best.Dist
	return res
}
