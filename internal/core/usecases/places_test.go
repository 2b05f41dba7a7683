package usecases_test

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/trailobs/internal/core/domain"
	"github.com/samirrijal/trailobs/internal/core/usecases"
)

// box is a place covering north0..north1 by east0..east1 meters.
func box(id int64, name string, area float64, north0, east0, north1, east1 float64, ancestors ...int64) domain.Place {
	sw, ne := at(north0, east0), at(north1, east1)
	ring := orb.Ring{
		{sw.Lon, sw.Lat}, {ne.Lon, sw.Lat}, {ne.Lon, ne.Lat}, {sw.Lon, ne.Lat}, {sw.Lon, sw.Lat},
	}
	return domain.Place{
		ID: id, Name: name, BBoxArea: area, AncestorIDs: ancestors,
		Geometry: geojson.NewGeometry(orb.Polygon{ring}),
	}
}

func placesFixture() []domain.Place {
	return []domain.Place{
		box(1, "Region", 100, -5000, -5000, 5000, 5000),
		box(2, "Park", 1, -100, -100, 100, 400, 50, 1),
		box(3, "Elsewhere", 0.5, 2000, 2000, 2100, 2100, 1),
	}
}

func TestPlaceResolver_PlacesAlongRoute(t *testing.T) {
	route := routeOf(line(0, 0, 1000, 100)...)
	r := usecases.NewPlaceResolver(route, placesFixture())

	got := r.Places()
	if len(got) != 2 || got[0].ID != 2 || got[1].ID != 1 {
		t.Fatalf("expected Park then Region, got %+v", got)
	}
	if p := r.RoutePlace(); p != "Region" {
		t.Errorf("route place = %q, want Region (Park holds only part of the route)", p)
	}
}

func TestPlaceResolver_Status(t *testing.T) {
	route := routeOf(line(0, 0, 300, 100)...)
	r := usecases.NewPlaceResolver(route, placesFixture())

	tests := []struct {
		name      string
		statuses  []domain.PlaceStatus
		wantState string
		wantPlace string
	}{
		{"none", nil, "", ""},
		{"region listing", []domain.PlaceStatus{{PlaceID: 1, Status: "native"}}, "native", "Region"},
		{"park beats region", []domain.PlaceStatus{
			{PlaceID: 1, Status: "native"},
			{PlaceID: 2, Status: "introduced"},
		}, "introduced", "Park"},
		{"conservation first", []domain.PlaceStatus{
			{PlaceID: 2, Status: "vulnerable", Conservation: true},
			{PlaceID: 2, Status: "native"},
		}, "vulnerable", "Park"},
		{"ancestor without a fetched place", []domain.PlaceStatus{{PlaceID: 50, Status: "endemic"}}, "endemic", ""},
		{"nearer ancestor first", []domain.PlaceStatus{
			{PlaceID: 50, Status: "endemic"},
			{PlaceID: 1, Status: "native"},
		}, "native", "Region"},
		{"unknown ancestor", []domain.PlaceStatus{{PlaceID: 99, Status: "native"}}, "", ""},
		{"place off the route", []domain.PlaceStatus{{PlaceID: 3, Status: "introduced"}}, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, place := r.Status(domain.Taxon{ID: 1, Statuses: tt.statuses})
			if status != tt.wantState || place != tt.wantPlace {
				t.Errorf("Status = %q in %q, want %q in %q", status, place, tt.wantState, tt.wantPlace)
			}
		})
	}
}

func TestPlaceResolver_Resolve(t *testing.T) {
	route := routeOf(line(0, 0, 300, 100)...)
	obs := []domain.Observation{
		obsAt(1, at(0, 50), domain.QualityResearch),
		obsAt(2, at(0, 60), domain.QualityResearch),
	}
	obs[0].Taxon.Statuses = []domain.PlaceStatus{{PlaceID: 2, Status: "introduced"}}

	usecases.NewPlaceResolver(route, placesFixture()).Resolve(obs)
	if obs[0].Status != "introduced" || obs[0].StatusPlace != "Park" {
		t.Errorf("obs 1: %q in %q", obs[0].Status, obs[0].StatusPlace)
	}
	if obs[1].Status != "" {
		t.Errorf("obs 2 should have no status, got %q", obs[1].Status)
	}
}

func TestPlaceResolver_NoPlaces(t *testing.T) {
	r := usecases.NewPlaceResolver(routeOf(line(0, 0, 300, 100)...), nil)
	if r.RoutePlace() != "" || len(r.Places()) != 0 {
		t.Error("expected no places")
	}
}
