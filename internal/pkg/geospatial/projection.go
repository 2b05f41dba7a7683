package geospatial

import (
	"math"

	"github.com/paulmach/orb"
)

// Projection is a local equirectangular projection to meters around an
// origin. Over the extent of a hike (tens of kilometers) its distance error
// is far below GPS noise, and longitude is scaled by the cosine of the
// origin latitude so that thresholds hold in real meters.
type Projection struct {
	lat0, lon0 float64
	kx         float64
}

// NewProjection returns a projection centred on lat0/lon0.
func NewProjection(lat0, lon0 float64) Projection {
	return Projection{
		lat0: lat0,
		lon0: lon0,
		kx:   earthRadiusM * math.Cos(toRad(lat0)),
	}
}

// Project maps a WGS 84 position to planar meters (x east, y north).
func (p Projection) Project(lat, lon float64) orb.Point {
	return orb.Point{
		toRad(lon-p.lon0) * p.kx,
		toRad(lat-p.lat0) * earthRadiusM,
	}
}

// Unproject is the inverse of Project.
func (p Projection) Unproject(pt orb.Point) (lat, lon float64) {
	lat = p.lat0 + toDeg(pt[1]/earthRadiusM)
	if p.kx == 0 {
		return lat, p.lon0
	}
	return lat, p.lon0 + toDeg(pt[0]/p.kx)
}

// Densify inserts vertices so that no edge of ls is longer than step.
// The original vertices are kept.
func Densify(ls orb.LineString, step float64) orb.LineString {
	if len(ls) < 2 || step <= 0 {
		return ls
	}
	out := orb.LineString{ls[0]}
	for i := 1; i < len(ls); i++ {
		a, b := ls[i-1], ls[i]
		d := math.Hypot(b[0]-a[0], b[1]-a[1])
		if n := int(math.Ceil(d / step)); n > 1 {
			for k := 1; k < n; k++ {
				f := float64(k) / float64(n)
				out = append(out, orb.Point{a[0] + (b[0]-a[0])*f, a[1] + (b[1]-a[1])*f})
			}
		}
		out = append(out, b)
	}
	return out
}
