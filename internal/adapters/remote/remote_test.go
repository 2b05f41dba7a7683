package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/trailobs/internal/core/domain"
)

func testConfig() Config {
	return Config{
		UserAgent:      "trailobs-test",
		Timeout:        2 * time.Second,
		MaxConcurrency: 4,
		MaxAttempts:    4,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
}

func getRequest(url string) RequestFunc {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}
}

func TestRetryState_BacksOffExponentially(t *testing.T) {
	s := NewRetryState(5, 100*time.Millisecond, time.Second).WithoutJitter()
	transient := &StatusError{Code: 503}

	var waits []time.Duration
	for {
		d, ok := s.Next(transient)
		if !ok {
			break
		}
		waits = append(waits, d)
	}
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond}, waits)
	assert.Equal(t, 5, s.Attempt())
	assert.Equal(t, transient, s.Err())
}

func TestRetryState_HonoursRetryAfter(t *testing.T) {
	s := NewRetryState(3, 10*time.Millisecond, time.Second).WithoutJitter()
	d, ok := s.Next(&StatusError{Code: http.StatusTooManyRequests, RetryAfter: 3 * time.Second})
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, d)
}

func TestRetryState_PermanentErrorsStop(t *testing.T) {
	for _, err := range []error{
		&StatusError{Code: http.StatusBadRequest},
		&StatusError{Code: http.StatusNotFound},
		context.Canceled,
		errors.New("malformed"),
	} {
		s := NewRetryState(5, time.Millisecond, time.Millisecond)
		_, ok := s.Next(err)
		assert.False(t, ok, "%v should be permanent", err)
	}
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(&StatusError{Code: 429}))
	assert.True(t, IsTransient(&StatusError{Code: 502}))
	assert.True(t, IsTransient(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)))
	assert.False(t, IsTransient(&StatusError{Code: 403}))
	assert.False(t, IsTransient(nil))
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 7*time.Second, parseRetryAfter("7", now))
	assert.Equal(t, 30*time.Second, parseRetryAfter(now.Add(30*time.Second).Format(http.TimeFormat), now))
	assert.Zero(t, parseRetryAfter("", now))
	assert.Zero(t, parseRetryAfter("soon", now))
}

func TestTransport_RetriesTransientFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "trailobs-test", r.Header.Get("User-Agent"))
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte(`{"ok":true}`))
		}
	}))
	defer srv.Close()

	tr := NewTransport(testConfig(), srv.Client())
	body, err := tr.Do(context.Background(), domain.KindObservations, getRequest(srv.URL))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestTransport_ExhaustedRetriesSurface(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tr := NewTransport(testConfig(), srv.Client())
	_, err := tr.Do(context.Background(), domain.KindWays, getRequest(srv.URL))
	require.Error(t, err)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.Code)
	assert.EqualValues(t, 4, atomic.LoadInt32(&calls))
}

func TestTransport_PermanentFailureIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad bbox", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	tr := NewTransport(testConfig(), srv.Client())
	_, err := tr.Do(context.Background(), domain.KindWays, getRequest(srv.URL))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad bbox")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestTransport_PerAttemptTimeoutIsRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Timeout = 50 * time.Millisecond
	tr := NewTransport(cfg, srv.Client())
	body, err := tr.Do(context.Background(), domain.KindWays, getRequest(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(body))
}

func TestTransport_CapsRequestsInFlight(t *testing.T) {
	var inFlight, peak int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.MaxConcurrency = 2
	tr := NewTransport(cfg, srv.Client())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tr.Do(context.Background(), domain.KindObservations, getRequest(srv.URL))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestTransport_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.InitialBackoff = time.Hour
	cfg.MaxBackoff = time.Hour
	tr := NewTransport(cfg, srv.Client())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := tr.Do(ctx, domain.KindWays, getRequest(srv.URL))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type item struct{ id int64 }

func itemID(i item) int64 { return i.id }

func pageOf(ids ...int64) []item {
	out := make([]item, len(ids))
	for i, id := range ids {
		out[i] = item{id}
	}
	return out
}

func TestPaginator_KnownTotalFansOut(t *testing.T) {
	var mu sync.Mutex
	fetched := map[int]bool{}
	p := Paginator[item]{PerPage: 3, MaxPages: 10, Concurrency: 3, ID: itemID}

	got, err := p.Collect(context.Background(), func(ctx context.Context, n int) (Page[item], error) {
		mu.Lock()
		fetched[n] = true
		mu.Unlock()
		switch n {
		case 1:
			return Page[item]{Items: pageOf(9, 8, 7), Total: 8}, nil
		case 2:
			// overlaps page 1 after an upstream insert
			return Page[item]{Items: pageOf(7, 6, 5), Total: 8}, nil
		case 3:
			return Page[item]{Items: pageOf(4, 3), Total: 8}, nil
		}
		return Page[item]{Total: 8}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, pageOf(3, 4, 5, 6, 7, 8, 9), got)
	assert.Equal(t, map[int]bool{1: true, 2: true, 3: true}, fetched)
}

func TestPaginator_UnknownTotalStopsAtShortPage(t *testing.T) {
	var calls int
	p := Paginator[item]{PerPage: 2, ID: itemID}
	got, err := p.Collect(context.Background(), func(ctx context.Context, n int) (Page[item], error) {
		calls++
		switch n {
		case 1:
			return Page[item]{Items: pageOf(1, 2), Total: -1}, nil
		case 2:
			return Page[item]{Items: pageOf(2, 3), Total: -1}, nil
		}
		return Page[item]{Items: pageOf(4), Total: -1}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, pageOf(1, 2, 3, 4), got)
	assert.Equal(t, 3, calls)
}

func TestPaginator_ContinuesWhileLastPageIsFull(t *testing.T) {
	p := Paginator[item]{PerPage: 2, MaxPages: 10, Concurrency: 2, ID: itemID}
	got, err := p.Collect(context.Background(), func(ctx context.Context, n int) (Page[item], error) {
		// the total grew after page 1 was served
		switch n {
		case 1:
			return Page[item]{Items: pageOf(1, 2), Total: 4}, nil
		case 2:
			return Page[item]{Items: pageOf(3, 4), Total: 5}, nil
		case 3:
			return Page[item]{Items: pageOf(5), Total: 5}, nil
		}
		return Page[item]{}, nil
	})
	require.NoError(t, err)
	assert.Len(t, got, 5)
}

func TestPaginator_RespectsWindow(t *testing.T) {
	var calls int32
	p := Paginator[item]{PerPage: 1, MaxPages: 3, Concurrency: 2, ID: itemID}
	got, err := p.Collect(context.Background(), func(ctx context.Context, n int) (Page[item], error) {
		atomic.AddInt32(&calls, 1)
		return Page[item]{Items: pageOf(int64(n)), Total: 100}, nil
	})
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.EqualValues(t, 3, calls)
}

func TestPaginator_PageErrorAborts(t *testing.T) {
	p := Paginator[item]{PerPage: 1, MaxPages: 5, Concurrency: 2, ID: itemID}
	boom := errors.New("boom")
	_, err := p.Collect(context.Background(), func(ctx context.Context, n int) (Page[item], error) {
		if n == 3 {
			return Page[item]{}, boom
		}
		return Page[item]{Items: pageOf(int64(n)), Total: 5}, nil
	})
	assert.ErrorIs(t, err, boom)
}
