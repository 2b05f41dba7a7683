package domain

import (
	"time"
)

// Point is a WGS 84 position, optionally carrying elevation and a timestamp.
type Point struct {
	Lat       float64    `json:"lat"`
	Lon       float64    `json:"lon"`
	Elevation *float64   `json:"ele,omitempty"`
	Time      *time.Time `json:"time,omitempty"`
}

// Route is the ordered sequence of points recorded during a hike.
// Breaks lists the indices at which a new recorded segment starts; no
// geometry connects the point before a break with the point at it.
type Route struct {
	Points []Point `json:"points"`
	Breaks []int   `json:"breaks,omitempty"`
}

// Lines splits the route at its breaks. Parts with fewer than two points
// are dropped.
func (r Route) Lines() [][]Point {
	var lines [][]Point
	start := 0
	cut := func(end int) {
		if end-start >= 2 {
			lines = append(lines, r.Points[start:end])
		}
		start = end
	}
	for _, b := range r.Breaks {
		if b <= start || b >= len(r.Points) {
			continue
		}
		cut(b)
	}
	cut(len(r.Points))
	return lines
}

// Degenerate reports whether the route is too short to describe a path.
func (r Route) Degenerate() bool {
	return len(r.Lines()) == 0
}

// NamedWay is a named road or trail. A way may consist of several disjoint
// segments, and several ways may share a display name.
type NamedWay struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Segments [][]Point `json:"segments"`
	Source   string    `json:"source,omitempty"` // e.g. the OSM highway class
}

// Empty reports whether the way has no segment with at least two points.
func (w NamedWay) Empty() bool {
	for _, s := range w.Segments {
		if len(s) >= 2 {
			return false
		}
	}
	return true
}

// Taxon is the taxon metadata returned with an observation.
type Taxon struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	CommonName  string `json:"common_name,omitempty"`
	Rank        string `json:"rank,omitempty"`
	IconicTaxon string `json:"iconic_taxon,omitempty"`

	// Statuses lists the per-place statuses of the taxon, conservation
	// statuses first.
	Statuses []PlaceStatus `json:"statuses,omitempty"`
}

// Observation is a single citizen-science biodiversity record.
type Observation struct {
	ID           int64        `json:"id"`
	Location     Point        `json:"location"`
	Taxon        Taxon        `json:"taxon"`
	QualityGrade QualityGrade `json:"quality_grade"`
	ObservedOn   time.Time    `json:"observed_on"`
	UserLogin    string       `json:"user_login"`
	UserName     string       `json:"user_name,omitempty"`
	Status       string       `json:"status,omitempty"` // in the places along the route, e.g. introduced
	StatusPlace  string       `json:"status_place,omitempty"`
	Accuracy     *float64     `json:"accuracy,omitempty"` // positional accuracy radius in meters
	Obscured     bool         `json:"obscured,omitempty"`
}

// MatchedSegment is the part of one named way segment judged to lie along
// the route.
type MatchedSegment struct {
	Order        int       `json:"order"`
	WayID        int64     `json:"way_id"`
	Name         string    `json:"name"`
	Source       string    `json:"source,omitempty"`
	SegmentIndex int       `json:"segment_index"`
	Parts        [][]Point `json:"parts"`
	Length       float64   `json:"length_m"`
	RouteStart   float64   `json:"route_start_m"` // first appearance along the route
	RouteEnd     float64   `json:"route_end_m"`
}

// ExclusionReason explains why an observation is not associated with a trail.
type ExclusionReason string

const (
	ReasonNone        ExclusionReason = ""
	ReasonAccuracy    ExclusionReason = "accuracy"
	ReasonQuality     ExclusionReason = "quality_grade"
	ReasonIconicTaxon ExclusionReason = "iconic_taxon"
	ReasonSeason      ExclusionReason = "season"
	ReasonOffRoute    ExclusionReason = "off_route"
)

// Association pairs an observation with the matched way it belongs to.
// WayID is zero when the observation was excluded; Reason then says why.
type Association struct {
	Observation  Observation     `json:"observation"`
	WayID        int64           `json:"way_id,omitempty"`
	SegmentIndex int             `json:"segment_index,omitempty"`
	TrailName    string          `json:"trail_name,omitempty"`
	Distance     float64         `json:"distance_m,omitempty"`
	Reason       ExclusionReason `json:"excluded,omitempty"`
}

// Included reports whether the observation was associated with a trail.
func (a Association) Included() bool {
	return a.Reason == ReasonNone
}
