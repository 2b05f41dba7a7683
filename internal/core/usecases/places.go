package usecases

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/samirrijal/trailobs/internal/core/domain"
)

// PlaceResolver assigns observation statuses from the places a route
// passes through.
type PlaceResolver struct {
	along []domain.Place // places the route enters, smallest first
	names map[int64]string
	route []orb.Point
	order []int64
}

// NewPlaceResolver keeps the places containing at least one route point,
// ordered by ascending bounding-box area, then id.
func NewPlaceResolver(route domain.Route, places []domain.Place) *PlaceResolver {
	r := &PlaceResolver{names: make(map[int64]string, len(places))}
	for _, p := range route.Points {
		r.route = append(r.route, orb.Point{p.Lon, p.Lat})
	}
	for _, p := range places {
		r.names[p.ID] = p.Name
		if r.containsAny(p) {
			r.along = append(r.along, p)
		}
	}
	sort.SliceStable(r.along, func(i, j int) bool {
		a, b := r.along[i], r.along[j]
		if a.BBoxArea != b.BBoxArea {
			return a.BBoxArea < b.BBoxArea
		}
		return a.ID < b.ID
	})
	return r
}

// Places returns the places along the route.
func (r *PlaceResolver) Places() []domain.Place { return r.along }

// Status returns the status of t in the most specific place that has one,
// with the name of that place. Places along the route are tried smallest
// first, each followed by its ancestors from the nearest up. Conservation
// statuses win over establishment means for the same place.
func (r *PlaceResolver) Status(t domain.Taxon) (status, place string) {
	if len(t.Statuses) == 0 {
		return "", ""
	}
	for _, id := range r.candidates() {
		for _, s := range t.Statuses {
			if s.PlaceID == id {
				return s.Status, r.names[id]
			}
		}
	}
	return "", ""
}

// candidates lists the place ids statuses are looked up for, most
// specific first. Ancestor ids are ordered from the root down.
func (r *PlaceResolver) candidates() []int64 {
	if r.order != nil {
		return r.order
	}
	seen := make(map[int64]bool)
	add := func(id int64) {
		if id != 0 && !seen[id] {
			seen[id] = true
			r.order = append(r.order, id)
		}
	}
	for _, p := range r.along {
		add(p.ID)
		for i := len(p.AncestorIDs) - 1; i >= 0; i-- {
			add(p.AncestorIDs[i])
		}
	}
	return r.order
}

// Resolve sets Status and StatusPlace on every observation.
func (r *PlaceResolver) Resolve(obs []domain.Observation) {
	if len(r.along) == 0 {
		return
	}
	for i := range obs {
		obs[i].Status, obs[i].StatusPlace = r.Status(obs[i].Taxon)
	}
}

// RoutePlace is the smallest place containing every route point, or ""
// when there is none.
func (r *PlaceResolver) RoutePlace() string {
	for _, p := range r.along {
		if r.containsAll(p) {
			return p.Name
		}
	}
	return ""
}

func (r *PlaceResolver) containsAny(p domain.Place) bool {
	for _, pt := range r.route {
		if contains(p, pt) {
			return true
		}
	}
	return false
}

func (r *PlaceResolver) containsAll(p domain.Place) bool {
	if len(r.route) == 0 {
		return false
	}
	for _, pt := range r.route {
		if !contains(p, pt) {
			return false
		}
	}
	return true
}

func contains(p domain.Place, pt orb.Point) bool {
	if p.Geometry == nil || p.Geometry.Coordinates == nil {
		return false
	}
	switch g := p.Geometry.Coordinates.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, pt)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, pt)
	default:
		return g.Bound().Contains(pt)
	}
}
