package domain

import (
	"fmt"
	"math"
)

const metersPerDegreeLat = 111320.0

// bboxEpsilon keeps a bounding box from collapsing to a line or a point.
const bboxEpsilon = 1e-7

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// BoundsForRoute returns the bounding box of all route points widened by
// paddingMeters on every side. The longitude padding is scaled by the
// cosine of the box's mean latitude.
func BoundsForRoute(r Route, paddingMeters float64) (Bounds, error) {
	if len(r.Points) == 0 {
		return Bounds{}, ErrDegenerateRoute
	}

	b := Bounds{MinLat: 90, MinLon: 180, MaxLat: -90, MaxLon: -180}
	for _, p := range r.Points {
		b.MinLat = math.Min(b.MinLat, p.Lat)
		b.MaxLat = math.Max(b.MaxLat, p.Lat)
		b.MinLon = math.Min(b.MinLon, p.Lon)
		b.MaxLon = math.Max(b.MaxLon, p.Lon)
	}

	latPad := paddingMeters / metersPerDegreeLat
	cos := math.Cos((b.MinLat + b.MaxLat) / 2 * math.Pi / 180)
	lonPad := latPad
	if cos > 1e-6 {
		lonPad = latPad / cos
	}

	b.MinLat = math.Max(-90, b.MinLat-latPad-bboxEpsilon)
	b.MaxLat = math.Min(90, b.MaxLat+latPad+bboxEpsilon)
	b.MinLon = math.Max(-180, b.MinLon-lonPad-bboxEpsilon)
	b.MaxLon = math.Min(180, b.MaxLon+lonPad+bboxEpsilon)
	return b, nil
}

// Rounded widens the box outward to the given number of decimals: minimums
// are floored and maximums ceiled, so the rounded box always contains the
// original one.
func (b Bounds) Rounded(decimals int) Bounds {
	scale := math.Pow(10, float64(decimals))
	return Bounds{
		MinLat: math.Floor(b.MinLat*scale) / scale,
		MinLon: math.Floor(b.MinLon*scale) / scale,
		MaxLat: math.Ceil(b.MaxLat*scale) / scale,
		MaxLon: math.Ceil(b.MaxLon*scale) / scale,
	}
}

// Contains reports whether p lies inside the box, edges included.
func (b Bounds) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// Center returns the midpoint of the box.
func (b Bounds) Center() Point {
	return Point{Lat: (b.MinLat + b.MaxLat) / 2, Lon: (b.MinLon + b.MaxLon) / 2}
}

func (b Bounds) String() string {
	return fmt.Sprintf("%.2f,%.2f,%.2f,%.2f", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
}
