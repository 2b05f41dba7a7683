package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// QualityGrade is the confidence tier of an observation.
type QualityGrade string

const (
	QualityCasual   QualityGrade = "casual"
	QualityNeedsID  QualityGrade = "needs_id"
	QualityResearch QualityGrade = "research"
)

// AllQualityGrades lists the grades in ascending confidence.
var AllQualityGrades = []QualityGrade{QualityCasual, QualityNeedsID, QualityResearch}

// IconicTaxa are the coarse taxonomic groupings the observation source
// understands.
var IconicTaxa = []string{
	"Actinopterygii", "Amphibia", "Animalia", "Arachnida", "Aves", "Chromista",
	"Fungi", "Insecta", "Mammalia", "Mollusca", "Plantae", "Protozoa", "Reptilia",
}

// ParseQualityGrade parses a comma separated list of grades. "all" and the
// empty string select every grade and yield a nil slice.
func ParseQualityGrade(s string) ([]QualityGrade, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "all" || s == "any" {
		return nil, nil
	}
	var out []QualityGrade
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "needs-id" {
			part = string(QualityNeedsID)
		}
		g := QualityGrade(part)
		if !g.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidQualityGrade, part)
		}
		out = append(out, g)
	}
	return out, nil
}

// Valid reports whether g is one of the known grades.
func (g QualityGrade) Valid() bool {
	for _, k := range AllQualityGrades {
		if g == k {
			return true
		}
	}
	return false
}

// ParseIconicTaxon parses a comma separated list of iconic taxa, matched
// case-insensitively. "all" and the empty string select every taxon.
func ParseIconicTaxon(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return nil, nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		name, ok := canonicalIconicTaxon(strings.TrimSpace(part))
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidIconicTaxon, part)
		}
		out = append(out, name)
	}
	return out, nil
}

func canonicalIconicTaxon(s string) (string, bool) {
	for _, t := range IconicTaxa {
		if strings.EqualFold(t, s) {
			return t, true
		}
	}
	return "", false
}

// FilterConfig selects which observations are eligible for association.
// Empty QualityGrades or IconicTaxa mean "all".
type FilterConfig struct {
	QualityGrades []QualityGrade `json:"quality_grades,omitempty"`
	IconicTaxa    []string       `json:"iconic_taxa,omitempty"`
	// Month restricts observations to the reference month and its neighbours.
	Month bool `json:"month,omitempty"`
	// Now is the reference time for the month window; zero means time.Now.
	Now        time.Time `json:"-"`
	LoginNames bool      `json:"login_names,omitempty"`
	Since      time.Time `json:"since,omitempty"`
	Until      time.Time `json:"until,omitempty"`
}

// Validate rejects unknown filter values.
func (f FilterConfig) Validate() error {
	for _, g := range f.QualityGrades {
		if !g.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidQualityGrade, g)
		}
	}
	for _, t := range f.IconicTaxa {
		if _, ok := canonicalIconicTaxon(t); !ok {
			return fmt.Errorf("%w: %q", ErrInvalidIconicTaxon, t)
		}
	}
	if !f.Since.IsZero() && !f.Until.IsZero() && f.Until.Before(f.Since) {
		return fmt.Errorf("until %s is before since %s", f.Until.Format(time.DateOnly), f.Since.Format(time.DateOnly))
	}
	return nil
}

// ReferenceTime returns the time the month window is centred on.
func (f FilterConfig) ReferenceTime() time.Time {
	if f.Now.IsZero() {
		return time.Now()
	}
	return f.Now
}

// MonthWindow returns the months accepted by the month restriction, sorted,
// or nil when the restriction is off.
func (f FilterConfig) MonthWindow() []int {
	if !f.Month {
		return nil
	}
	m := int(f.ReferenceTime().Month())
	prev := (m+10)%12 + 1
	next := m%12 + 1
	months := []int{prev, m, next}
	sort.Ints(months)
	return months
}

// ObservationQuery is the full set of parameters sent to the observation
// source. Everything that changes the result must be part of the cache key.
type ObservationQuery struct {
	Bounds        Bounds
	QualityGrades []QualityGrade
	IconicTaxa    []string
	Months        []int
	Since         time.Time
	Until         time.Time
}

// NewObservationQuery derives the remote query for a bounding box and filter.
func NewObservationQuery(b Bounds, f FilterConfig) ObservationQuery {
	return ObservationQuery{
		Bounds:        b,
		QualityGrades: f.QualityGrades,
		IconicTaxa:    f.IconicTaxa,
		Months:        f.MonthWindow(),
		Since:         f.Since,
		Until:         f.Until,
	}
}
