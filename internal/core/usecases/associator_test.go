package usecases_test

import (
	"testing"
	"time"

	"github.com/samirrijal/trailobs/internal/core/domain"
	"github.com/samirrijal/trailobs/internal/core/usecases"
)

func associate(t *testing.T, route domain.Route, ways []domain.NamedWay, fc domain.FilterConfig, obs ...domain.Observation) []domain.Association {
	t.Helper()
	tol := domain.DefaultTolerances()
	g := usecases.NewGeometry(route)
	res := usecases.NewTrailMatcher(tol).Match(g, ways)
	f, err := usecases.NewFilter(fc)
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	return usecases.NewAssociator(g, res.Segments, f, tol).Associate(obs)
}

func TestAssociator_TestTrailScenario(t *testing.T) {
	route := routeOf(at(0, 0), at(0, 150), at(0, 300))
	ways := []domain.NamedWay{way(1, "Test Trail", []domain.Point{at(5, 0), at(5, 150), at(5, 300)})}

	got := associate(t, route, ways, domain.FilterConfig{},
		obsAt(200, at(505, 120), domain.QualityResearch),
		obsAt(100, at(7, 120), domain.QualityResearch),
	)

	if len(got) != 2 {
		t.Fatalf("expected 2 associations, got %d", len(got))
	}
	near, far := got[0], got[1]
	if near.Observation.ID != 100 || far.Observation.ID != 200 {
		t.Fatalf("expected results sorted by id, got %d, %d", near.Observation.ID, far.Observation.ID)
	}
	if !near.Included() || near.TrailName != "Test Trail" || near.WayID != 1 {
		t.Errorf("expected observation 100 on Test Trail, got %+v", near)
	}
	if near.Distance < 1.9 || near.Distance > 2.1 {
		t.Errorf("expected distance ~2 m, got %.3f", near.Distance)
	}
	if far.Reason != domain.ReasonOffRoute {
		t.Errorf("expected observation 200 off route, got %q", far.Reason)
	}
}

func TestAssociator_LoopTrailSegmentsKeepIdentity(t *testing.T) {
	route := routeOf(line(0, 0, 1000, 100)...)
	ways := []domain.NamedWay{
		way(10, "Loop Trail", line(3, 0, 200, 50)),
		way(11, "Loop Trail", line(3, 600, 800, 50)),
	}

	got := associate(t, route, ways, domain.FilterConfig{}, obsAt(1, at(8, 100), domain.QualityResearch))
	if len(got) != 1 || !got[0].Included() {
		t.Fatalf("expected observation to be associated, got %+v", got)
	}
	if got[0].WayID != 10 {
		t.Errorf("expected the first Loop Trail segment (way 10), got way %d", got[0].WayID)
	}
}

func TestAssociator_TieGoesToEarlierRouteSegment(t *testing.T) {
	route := routeOf(line(0, 0, 400, 50)...)
	// two ways meet at east 200; way 5 has the lower id but is walked later
	ways := []domain.NamedWay{
		way(20, "First", line(0, 0, 200, 50)),
		way(5, "Second", line(0, 200, 400, 50)),
	}

	for i := 0; i < 3; i++ {
		got := associate(t, route, ways, domain.FilterConfig{}, obsAt(1, at(10, 200), domain.QualityResearch))
		if got[0].WayID != 20 {
			t.Fatalf("run %d: expected tie to resolve to way 20, got %d", i, got[0].WayID)
		}
	}
}

func TestAssociator_NearestWins(t *testing.T) {
	route := routeOf(line(0, 0, 400, 50)...)
	ways := []domain.NamedWay{
		way(1, "North", line(8, 0, 400, 50)),
		way(2, "South", line(-8, 0, 400, 50)),
	}
	got := associate(t, route, ways, domain.FilterConfig{}, obsAt(1, at(-12, 300), domain.QualityResearch))
	if got[0].TrailName != "South" {
		t.Errorf("expected South, got %q", got[0].TrailName)
	}
}

func TestAssociator_ExclusionPrecedence(t *testing.T) {
	route := routeOf(at(0, 0), at(0, 150), at(0, 300))
	ways := []domain.NamedWay{way(1, "Test Trail", line(5, 0, 300, 50))}
	fc := domain.FilterConfig{
		QualityGrades: []domain.QualityGrade{domain.QualityResearch},
		Month:         true,
		Now:           time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC),
	}

	inaccurate := obsAt(1, at(900, 100), domain.QualityCasual)
	inaccurate.Accuracy = ptrFloat(100)

	casual := obsAt(2, at(5, 100), domain.QualityCasual)
	casual.ObservedOn = time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)

	summer := obsAt(3, at(900, 100), domain.QualityResearch)
	summer.ObservedOn = time.Date(2023, time.July, 1, 0, 0, 0, 0, time.UTC)

	december := obsAt(4, at(6, 100), domain.QualityResearch)
	december.ObservedOn = time.Date(2023, time.December, 24, 0, 0, 0, 0, time.UTC)
	december.Accuracy = ptrFloat(10)

	far := obsAt(5, at(900, 100), domain.QualityResearch)
	far.ObservedOn = december.ObservedOn

	got := associate(t, route, ways, fc, inaccurate, casual, summer, december, far)
	want := []domain.ExclusionReason{
		domain.ReasonAccuracy,
		domain.ReasonQuality,
		domain.ReasonSeason,
		domain.ReasonNone,
		domain.ReasonOffRoute,
	}
	for i, w := range want {
		if got[i].Reason != w {
			t.Errorf("observation %d: expected %q, got %q", got[i].Observation.ID, w, got[i].Reason)
		}
	}
}

func TestAssociator_BoundaryIsConsistent(t *testing.T) {
	route := routeOf(at(0, 0), at(0, 300))
	ways := []domain.NamedWay{way(1, "Edge", line(0, 0, 300, 100))}
	o := obsAt(1, at(25, 150), domain.QualityResearch)

	first := associate(t, route, ways, domain.FilterConfig{}, o)[0]
	for i := 0; i < 5; i++ {
		again := associate(t, route, ways, domain.FilterConfig{}, o)[0]
		if again.Reason != first.Reason || again.WayID != first.WayID {
			t.Fatalf("inconsistent result at the tolerance boundary: %+v vs %+v", first, again)
		}
	}
}

func TestAssociator_NoMatchedTrails(t *testing.T) {
	route := routeOf(at(0, 0), at(0, 300))
	got := associate(t, route, nil, domain.FilterConfig{}, obsAt(1, at(0, 10), domain.QualityResearch))
	if got[0].Reason != domain.ReasonOffRoute {
		t.Errorf("expected off-route without matched trails, got %q", got[0].Reason)
	}
}
