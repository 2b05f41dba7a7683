package domain

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Stats counts what happened to the fetched data during a run. Excluded
// counts are kept per reason.
type Stats struct {
	Ways                int `json:"ways"`
	SkippedWays         int `json:"skipped_ways"`
	MatchedSegments     int `json:"matched_segments"`
	Trails              int `json:"trails"`
	Observations        int `json:"observations"`
	Associated          int `json:"associated"`
	ExcludedAccuracy    int `json:"excluded_accuracy"`
	ExcludedQuality     int `json:"excluded_quality_grade"`
	ExcludedIconicTaxon int `json:"excluded_iconic_taxon"`
	ExcludedSeason      int `json:"excluded_season"`
	ExcludedOffRoute    int `json:"excluded_off_route"`
}

// Count adds one association outcome to the stats.
func (s *Stats) Count(a Association) {
	switch a.Reason {
	case ReasonNone:
		s.Associated++
	case ReasonAccuracy:
		s.ExcludedAccuracy++
	case ReasonQuality:
		s.ExcludedQuality++
	case ReasonIconicTaxon:
		s.ExcludedIconicTaxon++
	case ReasonSeason:
		s.ExcludedSeason++
	case ReasonOffRoute:
		s.ExcludedOffRoute++
	}
}

// TrailGroup is one logical named trail: every matched segment sharing a
// display name, with the observations associated to any of them.
type TrailGroup struct {
	Name         string  `json:"name"`
	Segments     []int   `json:"segments"` // indices into Report.Matched
	Observations []int64 `json:"observations"`
	Length       float64 `json:"length_m"`
}

// Report is the result of one run.
type Report struct {
	RunID           string           `json:"run_id"`
	BBox            Bounds           `json:"bbox"`
	Place           string           `json:"place,omitempty"` // smallest place containing the whole route
	DegenerateRoute bool             `json:"degenerate_route,omitempty"`
	Matched         []MatchedSegment `json:"matched"`
	Trails          []TrailGroup     `json:"trails"`
	Associations    []Association    `json:"associations"`
	Stats           Stats            `json:"stats"`
	Filter          FilterConfig     `json:"filter"`
}

// Included returns the associations that matched a trail.
func (r *Report) Included() []Association {
	var out []Association
	for _, a := range r.Associations {
		if a.Included() {
			out = append(out, a)
		}
	}
	return out
}

// GroupTrails merges matched segments by display name, keeping the order in
// which the names first appear along the route.
func GroupTrails(matched []MatchedSegment, assocs []Association) []TrailGroup {
	var groups []TrailGroup
	byName := make(map[string]int)
	for i, m := range matched {
		gi, ok := byName[m.Name]
		if !ok {
			gi = len(groups)
			byName[m.Name] = gi
			groups = append(groups, TrailGroup{Name: m.Name})
		}
		groups[gi].Segments = append(groups[gi].Segments, i)
		groups[gi].Length += m.Length
	}
	for _, a := range assocs {
		if !a.Included() {
			continue
		}
		if gi, ok := byName[a.TrailName]; ok {
			groups[gi].Observations = append(groups[gi].Observations, a.Observation.ID)
		}
	}
	return groups
}

// GeoJSON renders matched segments as MultiLineStrings and associated
// observations as Points.
func (r *Report) GeoJSON() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, m := range r.Matched {
		mls := make(orb.MultiLineString, 0, len(m.Parts))
		for _, part := range m.Parts {
			mls = append(mls, toLineString(part))
		}
		f := geojson.NewFeature(mls)
		f.Properties["kind"] = "trail"
		f.Properties["name"] = m.Name
		f.Properties["way_id"] = m.WayID
		f.Properties["segment_index"] = m.SegmentIndex
		f.Properties["order"] = m.Order
		f.Properties["length_m"] = m.Length
		fc.Append(f)
	}
	for _, a := range r.Associations {
		if !a.Included() {
			continue
		}
		o := a.Observation
		f := geojson.NewFeature(orb.Point{o.Location.Lon, o.Location.Lat})
		f.ID = o.ID
		f.Properties["kind"] = "observation"
		f.Properties["trail"] = a.TrailName
		f.Properties["taxon"] = o.Taxon.Name
		f.Properties["common_name"] = o.Taxon.CommonName
		f.Properties["quality_grade"] = string(o.QualityGrade)
		f.Properties["observed_on"] = o.ObservedOn.Format("2006-01-02")
		if r.Filter.LoginNames {
			f.Properties["user_login"] = o.UserLogin
		}
		if o.Status != "" {
			f.Properties["status"] = o.Status
			if o.StatusPlace != "" {
				f.Properties["status_place"] = o.StatusPlace
			}
		}
		fc.Append(f)
	}
	return fc
}

func toLineString(pts []Point) orb.LineString {
	ls := make(orb.LineString, len(pts))
	for i, p := range pts {
		ls[i] = orb.Point{p.Lon, p.Lat}
	}
	return ls
}
