package domain

import (
	"github.com/paulmach/orb/geojson"
)

// Place is a named iNaturalist place, such as a park, county or country.
type Place struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	BBoxArea    float64           `json:"bbox_area"`
	AncestorIDs []int64           `json:"ancestor_ids,omitempty"`
	Geometry    *geojson.Geometry `json:"geometry,omitempty"`
}

// Covers reports whether id is the place itself or one of its ancestors.
func (p Place) Covers(id int64) bool {
	if id == p.ID {
		return true
	}
	for _, a := range p.AncestorIDs {
		if a == id {
			return true
		}
	}
	return false
}

// PlaceStatus is a status a taxon holds in one place: a conservation
// status (e.g. "endangered") or an establishment means (e.g. "introduced").
type PlaceStatus struct {
	PlaceID      int64  `json:"place_id"`
	Status       string `json:"status"`
	Conservation bool   `json:"conservation,omitempty"`
}

// PlacesCacheKey is the cache key of a places-nearby query. Places change
// rarely and are looked up at a finer precision than observations.
func PlacesCacheKey(b Bounds) string {
	return string(KindPlaces) + ":" + b.Rounded(3).String()
}
