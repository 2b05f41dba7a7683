package remote

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/samirrijal/trailobs/internal/core/domain"
	"github.com/samirrijal/trailobs/internal/pkg/logging"
	"github.com/samirrijal/trailobs/internal/pkg/metrics"
)

const maxBodyBytes = 64 << 20

// Config tunes the shared transport.
type Config struct {
	UserAgent string
	// Timeout bounds a single attempt, not the whole retry sequence.
	Timeout time.Duration
	// RatePerMinute is the global call budget; zero disables limiting.
	RatePerMinute  int
	MaxConcurrency int
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig matches the public iNaturalist API etiquette of 60 calls
// per minute.
func DefaultConfig() Config {
	return Config{
		UserAgent:      "trailobs/1.0",
		Timeout:        60 * time.Second,
		RatePerMinute:  60,
		MaxConcurrency: 4,
		MaxAttempts:    5,
		InitialBackoff: time.Second,
		MaxBackoff:     time.Minute,
	}
}

// RequestFunc builds the request of one attempt.
type RequestFunc func(ctx context.Context) (*http.Request, error)

// CheckFunc inspects a successful response body. APIs that report failures
// inside a 200 response return a *StatusError from it so that the attempt
// is classified like any other failure.
type CheckFunc func(body []byte) error

// Transport sends requests to remote APIs under a global rate limit and a
// cap on requests in flight, retrying transient failures.
type Transport struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	sem     *semaphore.Weighted
	jitter  bool
}

// NewTransport creates a Transport. client may be nil.
func NewTransport(cfg Config, client *http.Client) *Transport {
	if client == nil {
		client = &http.Client{}
	}
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = 1
	}
	limit := rate.Inf
	if cfg.RatePerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RatePerMinute))
	}
	return &Transport{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrency)),
		jitter:  true,
	}
}

// MaxConcurrency is the number of requests allowed in flight.
func (t *Transport) MaxConcurrency() int { return t.cfg.MaxConcurrency }

// Do performs the request, retrying transient failures, and returns the
// response body. Exhausted retries return the last error.
func (t *Transport) Do(ctx context.Context, kind domain.ResourceKind, newReq RequestFunc) ([]byte, error) {
	return t.DoChecked(ctx, kind, newReq, nil)
}

// DoChecked is Do with a body check run inside every attempt.
func (t *Transport) DoChecked(ctx context.Context, kind domain.ResourceKind, newReq RequestFunc, check CheckFunc) ([]byte, error) {
	log := logging.FromContext(ctx).With("resource", string(kind))
	state := NewRetryState(t.cfg.MaxAttempts, t.cfg.InitialBackoff, t.cfg.MaxBackoff)
	if !t.jitter {
		state.WithoutJitter()
	}

	for {
		body, err := t.attempt(ctx, kind, newReq, check)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		wait, ok := state.Next(err)
		if !ok {
			return nil, fmt.Errorf("%s request failed after %d attempt(s): %w", kind, state.Attempt(), err)
		}
		metrics.RemoteRetries.WithLabelValues(string(kind)).Inc()
		log.Warn("remote request failed, retrying",
			slog.Int("attempt", state.Attempt()),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (t *Transport) attempt(ctx context.Context, kind domain.ResourceKind, newReq RequestFunc, check CheckFunc) ([]byte, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if err := t.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer t.sem.Release(1)

	if t.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.Timeout)
		defer cancel()
	}

	req, err := newReq(ctx)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if t.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", t.cfg.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := t.client.Do(req)
	metrics.RemoteRequestDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RemoteRequests.WithLabelValues(string(kind), "error").Inc()
		return nil, err
	}
	defer resp.Body.Close()
	metrics.RemoteRequests.WithLabelValues(string(kind), strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, &StatusError{
			Code:       resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
			Body:       snippet,
		}
	}
	if check != nil {
		if err := check(body); err != nil {
			return nil, err
		}
	}
	return body, nil
}
