package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	appErrors "github.com/noah-isme/clinic-portal-api/pkg/errors"
	"github.com/noah-isme/clinic-portal-api/pkg/middleware/requestid"
)

type recordedWaits struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordedWaits) wait(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

type countingObserver struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (o *countingObserver) ObserveFetch(outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.outcomes == nil {
		o.outcomes = map[string]int{}
	}
	o.outcomes[outcome]++
}

func newTestClient(t *testing.T, opts Options) (*Client, *recordedWaits) {
	t.Helper()
	opts.Logger = zaptest.NewLogger(t)
	c := New(opts)
	waits := &recordedWaits{}
	c.wait = waits.wait
	c.jitter = func() float64 { return 0 }
	return c, waits
}

func TestGetRetriesRateLimitThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"debriefs":[{"id":"d1"}]}`))
	}))
	defer srv.Close()

	obs := &countingObserver{}
	c, waits := newTestClient(t, Options{MaxRetries: 3, BackoffBase: 100 * time.Millisecond, Observer: obs})

	resp := c.Get(context.Background(), srv.URL)

	require.True(t, resp.OK())
	assert.False(t, resp.Degraded)
	assert.Equal(t, 3, resp.Attempts)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, waits.delays)
	assert.Equal(t, 2, obs.outcomes[OutcomeRetry])
	assert.Equal(t, 1, obs.outcomes[OutcomeOK])
}

func TestGetExhaustedReturnsEmptySentinel(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, waits := newTestClient(t, Options{MaxRetries: 3, BackoffBase: 10 * time.Millisecond})

	resp := c.Get(context.Background(), srv.URL)

	assert.True(t, resp.Degraded)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "{}", string(resp.Body))
	assert.EqualValues(t, 4, atomic.LoadInt32(&calls))
	assert.Len(t, waits.delays, 3)
	assert.Empty(t, Records(resp, "debriefs"))
}

func TestGetRetriesOnMarkerBody(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			_, _ = w.Write([]byte("Too Many Requests"))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, Options{})

	resp := c.Get(context.Background(), srv.URL)

	assert.False(t, resp.Degraded)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestGetDoesNotRetryJSONMentioningRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`[{"workSummary":"discussed rate limit strategy"}]`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, Options{})
	resp := c.Get(context.Background(), srv.URL)

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	assert.Len(t, Records(resp), 1)
}

func TestGetRetriesNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, waits := newTestClient(t, Options{MaxRetries: 2})
	resp := c.Get(context.Background(), url)

	assert.True(t, resp.Degraded)
	assert.Len(t, waits.delays, 2)
}

func TestGetPassesThroughClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"permission denied for table debriefs"}`))
	}))
	defer srv.Close()

	c, waits := newTestClient(t, Options{})
	resp := c.Get(context.Background(), srv.URL)

	assert.Empty(t, waits.delays)
	err := resp.Err()
	require.Error(t, err)
	assert.True(t, appErrors.IsPermission(err))
}

func TestGetCancelledContextDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c, _ := newTestClient(t, Options{})
	c.wait = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	resp := c.Get(ctx, srv.URL)
	assert.True(t, resp.Degraded)
	assert.Equal(t, 1, resp.Attempts)
}

func TestRetryFloor(t *testing.T) {
	c := New(Options{MaxRetries: 1})
	assert.Equal(t, 2, c.MaxRetries())
	assert.Equal(t, defaultMaxRetries, New(Options{}).MaxRetries())
}

func TestBackoffAddsJitter(t *testing.T) {
	c := New(Options{BackoffBase: 800 * time.Millisecond, JitterMax: 300 * time.Millisecond})
	c.jitter = func() float64 { return 0.5 }

	assert.Equal(t, 950*time.Millisecond, c.backoff(0))
	assert.Equal(t, 1750*time.Millisecond, c.backoff(1))
	assert.Equal(t, 3350*time.Millisecond, c.backoff(2))
}

func TestSendClassifiesStatus(t *testing.T) {
	var gotReqID, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReqID = r.Header.Get(requestid.Header)
		gotKey = r.Header.Get("apikey")
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"JWT expired"}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, Options{Headers: http.Header{"Apikey": []string{"secret"}}})
	ctx := requestid.WithContext(context.Background(), "req-1")

	_, err := c.Send(ctx, http.MethodPost, srv.URL, map[string]string{"a": "b"})

	require.Error(t, err)
	assert.True(t, appErrors.IsAuthentication(err))
	assert.Equal(t, "JWT expired", appErrors.FromError(err).Message)
	assert.Equal(t, "req-1", gotReqID)
	assert.Equal(t, "secret", gotKey)
}

func TestSequentialKeepsOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"path":"` + r.URL.Path + `"}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, Options{SequentialDelay: time.Millisecond})
	resps := c.Sequential(context.Background(), []string{srv.URL + "/a", srv.URL + "/b", srv.URL + "/c"})

	require.Len(t, resps, 3)
	for i, want := range []string{"/a", "/b", "/c"} {
		got := DecodeOr(resps[i], map[string]string{})
		assert.Equal(t, want, got["path"])
	}
}

func TestSequentialCancelledFillsSentinels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c, _ := newTestClient(t, Options{SequentialDelay: time.Hour})
	resps := c.Sequential(ctx, []string{"http://invalid.local/a", "http://invalid.local/b"})

	require.Len(t, resps, 2)
	assert.True(t, resps[0].Degraded)
	assert.True(t, resps[1].Degraded)
}
