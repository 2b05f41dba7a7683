package usecases

import (
	"github.com/paulmach/orb"

	"github.com/samirrijal/trailobs/internal/core/domain"
	"github.com/samirrijal/trailobs/internal/pkg/geospatial"
)

// Geometry carries the planar projection shared by every spatial query of a
// run, and the indexed route.
type Geometry struct {
	proj  geospatial.Projection
	route *geospatial.RouteIndex
}

// NewGeometry projects the route around the centre of its extent and
// indexes it. A route without any line of two or more points yields an
// empty index.
func NewGeometry(route domain.Route) *Geometry {
	g := &Geometry{proj: projectionFor(route.Points)}

	lines := route.Lines()
	projected := make([]orb.LineString, 0, len(lines))
	for _, l := range lines {
		projected = append(projected, g.Line(l))
	}
	g.route = geospatial.NewRouteIndex(projected)
	return g
}

func projectionFor(pts []domain.Point) geospatial.Projection {
	if len(pts) == 0 {
		return geospatial.NewProjection(0, 0)
	}
	b := orb.Bound{Min: orb.Point{pts[0].Lon, pts[0].Lat}, Max: orb.Point{pts[0].Lon, pts[0].Lat}}
	for _, p := range pts[1:] {
		b = b.Extend(orb.Point{p.Lon, p.Lat})
	}
	c := b.Center()
	return geospatial.NewProjection(c[1], c[0])
}

// Degenerate reports whether the route has nothing to match against.
func (g *Geometry) Degenerate() bool { return g.route.Empty() }

// Route returns the route index.
func (g *Geometry) Route() *geospatial.RouteIndex { return g.route }

// Project maps p to planar meters.
func (g *Geometry) Project(p domain.Point) orb.Point {
	return g.proj.Project(p.Lat, p.Lon)
}

// Unproject maps planar meters back to a point.
func (g *Geometry) Unproject(pt orb.Point) domain.Point {
	lat, lon := g.proj.Unproject(pt)
	return domain.Point{Lat: lat, Lon: lon}
}

// Line projects a sequence of points.
func (g *Geometry) Line(pts []domain.Point) orb.LineString {
	ls := make(orb.LineString, len(pts))
	for i, p := range pts {
		ls[i] = g.Project(p)
	}
	return ls
}
