package domain

import (
	"errors"
	"fmt"
)

// Tolerances are the geometric tuning constants of a run, in meters.
type Tolerances struct {
	// Route is how far a way may stray from the recorded track and still be
	// considered walked (GPS drift).
	Route float64 `json:"route_m"`
	// Observation is how far an observation may be from a matched way.
	Observation float64 `json:"observation_m"`
	// MinRunLength is the shortest contiguous stretch of a way, measured
	// along the way, that must lie within Route of the track.
	MinRunLength float64 `json:"min_run_length_m"`
	MaxAccuracy  float64 `json:"max_accuracy_m"`
	BBoxPadding  float64 `json:"bbox_padding_m"`
	DensifyStep  float64 `json:"densify_step_m"`
}

// DefaultTolerances returns the tolerances used when none are configured.
func DefaultTolerances() Tolerances {
	return Tolerances{
		Route:        30,
		Observation:  25,
		MinRunLength: 75,
		MaxAccuracy:  25,
		BBoxPadding:  50,
		DensifyStep:  5,
	}
}

// Validate checks that every tolerance is usable.
func (t Tolerances) Validate() error {
	var errs []error
	if t.Route <= 0 {
		errs = append(errs, fmt.Errorf("route tolerance must be positive, got %v", t.Route))
	}
	if t.Observation <= 0 {
		errs = append(errs, fmt.Errorf("observation tolerance must be positive, got %v", t.Observation))
	}
	if t.MinRunLength < 0 {
		errs = append(errs, fmt.Errorf("minimum run length must not be negative, got %v", t.MinRunLength))
	}
	if t.MaxAccuracy <= 0 {
		errs = append(errs, fmt.Errorf("max accuracy must be positive, got %v", t.MaxAccuracy))
	}
	if t.BBoxPadding < 0 {
		errs = append(errs, fmt.Errorf("bbox padding must not be negative, got %v", t.BBoxPadding))
	}
	if t.DensifyStep <= 0 {
		errs = append(errs, fmt.Errorf("densify step must be positive, got %v", t.DensifyStep))
	}
	return errors.Join(errs...)
}

// RunConfig is everything a run needs besides the route.
type RunConfig struct {
	Filter     FilterConfig `json:"filter"`
	Tolerances Tolerances   `json:"tolerances"`
}

// Validate rejects bad filter values and tolerances before any network
// activity happens.
func (c RunConfig) Validate() error {
	return errors.Join(c.Filter.Validate(), c.Tolerances.Validate())
}
