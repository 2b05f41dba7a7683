package usecases

import (
	"github.com/samirrijal/trailobs/internal/core/domain"
)

// Filter is the combined quality-grade, iconic-taxon and month predicate.
// It is stateless once built and needs no network or geometry access.
type Filter struct {
	grades map[domain.QualityGrade]bool
	taxa   map[string]bool
	month  int // reference month, 0 when the restriction is off
}

// NewFilter validates cfg and builds its predicate.
func NewFilter(cfg domain.FilterConfig) (*Filter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	f := &Filter{}
	if len(cfg.QualityGrades) > 0 {
		f.grades = make(map[domain.QualityGrade]bool, len(cfg.QualityGrades))
		for _, g := range cfg.QualityGrades {
			f.grades[g] = true
		}
	}
	if len(cfg.IconicTaxa) > 0 {
		f.taxa = make(map[string]bool, len(cfg.IconicTaxa))
		for _, t := range cfg.IconicTaxa {
			f.taxa[t] = true
		}
	}
	if cfg.Month {
		f.month = int(cfg.ReferenceTime().Month())
	}
	return f, nil
}

// Check returns the first filter an observation fails, or ReasonNone.
func (f *Filter) Check(o domain.Observation) domain.ExclusionReason {
	if f.grades != nil && !f.grades[o.QualityGrade] {
		return domain.ReasonQuality
	}
	if f.taxa != nil && !f.taxa[o.Taxon.IconicTaxon] {
		return domain.ReasonIconicTaxon
	}
	if f.month != 0 && !f.inSeason(o) {
		return domain.ReasonSeason
	}
	return domain.ReasonNone
}

// Allow reports whether o passes every active filter.
func (f *Filter) Allow(o domain.Observation) bool {
	return f.Check(o) == domain.ReasonNone
}

// inSeason accepts the reference month and its neighbours, wrapping at the
// year boundary.
func (f *Filter) inSeason(o domain.Observation) bool {
	if o.ObservedOn.IsZero() {
		return false
	}
	switch (int(o.ObservedOn.Month()) - f.month + 12) % 12 {
	case 0, 1, 11:
		return true
	}
	return false
}
