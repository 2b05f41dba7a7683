package domain

import "errors"

var (
	// ErrDegenerateRoute is returned for a route with fewer than two usable points.
	ErrDegenerateRoute = errors.New("route has fewer than 2 points")

	ErrInvalidQualityGrade = errors.New("invalid quality grade")
	ErrInvalidIconicTaxon  = errors.New("invalid iconic taxon")

	// ErrFetchFailed marks a fatal acquisition failure: required remote data
	// could not be obtained, so no report is produced.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrCacheMiss is returned by cache stores when a key is absent.
	ErrCacheMiss = errors.New("cache miss")
)
