package remote

import (
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryState tracks the attempts of one logical request. It is a plain
// state machine: callers report each failure to Next and decide how to
// wait, so it works with any scheduling primitive.
type RetryState struct {
	attempt     int
	maxAttempts int
	backoff     *backoff.ExponentialBackOff
	lastErr     error
}

// NewRetryState allows up to maxAttempts attempts with exponential backoff
// starting at initial and capped at max.
func NewRetryState(maxAttempts int, initial, max time.Duration) *RetryState {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = max
	b.Multiplier = 2
	b.MaxElapsedTime = 0
	b.Reset()
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RetryState{maxAttempts: maxAttempts, backoff: b}
}

// WithoutJitter disables randomisation of the delays.
func (s *RetryState) WithoutJitter() *RetryState {
	s.backoff.RandomizationFactor = 0
	return s
}

// Attempt returns the number of failed attempts recorded so far.
func (s *RetryState) Attempt() int { return s.attempt }

// Err returns the last recorded failure.
func (s *RetryState) Err() error { return s.lastErr }

// Next records a failed attempt. It returns the delay before the next
// attempt and true, or false when the state is terminal: the error is
// permanent or the attempts are exhausted. A server-advised Retry-After
// longer than the backoff delay wins.
func (s *RetryState) Next(err error) (time.Duration, bool) {
	s.attempt++
	s.lastErr = err
	if !IsTransient(err) || s.attempt >= s.maxAttempts {
		return 0, false
	}

	d := s.backoff.NextBackOff()
	if d == backoff.Stop {
		return 0, false
	}
	var se *StatusError
	if errors.As(err, &se) && se.RetryAfter > d {
		d = se.RetryAfter
	}
	return d, true
}
