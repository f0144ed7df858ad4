package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	appErrors "github.com/noah-isme/clinic-portal-api/pkg/errors"
	"github.com/noah-isme/clinic-portal-api/pkg/middleware/requestid"
)

const (
	defaultMaxRetries      = 3
	minMaxRetries          = 2
	defaultBackoffBase     = 800 * time.Millisecond
	defaultJitterMax       = 300 * time.Millisecond
	defaultSequentialDelay = 600 * time.Millisecond
	maxBodyBytes           = 16 << 20
)

// Outcome labels reported to the Observer.
const (
	OutcomeOK       = "ok"
	OutcomeRetry    = "retry"
	OutcomeDegraded = "degraded"
)

// rateLimitMarkers are substrings the backend gateway emits when it throttles
// a caller while still answering with a non-JSON body.
var rateLimitMarkers = []string{"too many r", "rate limit", "too many requests"}

// Observer receives per-attempt instrumentation.
type Observer interface {
	ObserveFetch(outcome string, duration time.Duration)
}

// Options configures a Client.
type Options struct {
	HTTPClient      *http.Client
	MaxRetries      int
	BackoffBase     time.Duration
	JitterMax       time.Duration
	SequentialDelay time.Duration
	Headers         http.Header
	Logger          *zap.Logger
	Observer        Observer
}

// Response is a buffered backend reply.
type Response struct {
	Status   int
	Header   http.Header
	Body     []byte
	Attempts int
	// Degraded marks the synthetic empty reply returned once retries are exhausted.
	Degraded bool
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}

// Err converts a non-2xx reply into a typed error. Degraded replies are not errors.
func (r *Response) Err() error {
	if r == nil || r.OK() {
		return nil
	}
	return appErrors.FromStatus(r.Status, extractMessage(r.Body))
}

type waitFunc func(ctx context.Context, d time.Duration) error

// Client issues backend reads with bounded retry and writes with a single attempt.
type Client struct {
	http            *http.Client
	maxRetries      int
	backoffBase     time.Duration
	jitterMax       time.Duration
	sequentialDelay time.Duration
	headers         http.Header
	logger          *zap.Logger
	observer        Observer

	wait   waitFunc
	jitter func() float64

	limiterOnce sync.Once
	limiter     *rate.Limiter
}

// New constructs a Client applying defaults for zero options.
func New(opts Options) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.MaxRetries < minMaxRetries {
		opts.MaxRetries = minMaxRetries
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = defaultBackoffBase
	}
	if opts.JitterMax < 0 {
		opts.JitterMax = 0
	}
	if opts.SequentialDelay <= 0 {
		opts.SequentialDelay = defaultSequentialDelay
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Client{
		http:            opts.HTTPClient,
		maxRetries:      opts.MaxRetries,
		backoffBase:     opts.BackoffBase,
		jitterMax:       opts.JitterMax,
		sequentialDelay: opts.SequentialDelay,
		headers:         opts.Headers.Clone(),
		logger:          opts.Logger,
		observer:        opts.Observer,
		wait:            sleepContext,
		jitter:          rand.Float64,
	}
}

// MaxRetries returns the retry budget after the first attempt.
func (c *Client) MaxRetries() int { return c.maxRetries }

// Get fetches url and never fails: once the retry budget is spent, or the
// context is cancelled, a synthetic 200 response with an empty JSON object is
// returned so downstream decoding yields defaults.
func (c *Client) Get(ctx context.Context, url string) *Response {
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		start := time.Now()
		resp, err := c.do(ctx, http.MethodGet, url, nil)
		elapsed := time.Since(start)

		if ctx.Err() != nil {
			c.observe(OutcomeDegraded, elapsed)
			c.logger.Debug("backend fetch cancelled", zap.String("url", url), zap.Int("attempt", attempt+1))
			return degraded(attempt + 1)
		}

		reason := retryReason(resp, err)
		if reason == "" {
			c.observe(OutcomeOK, elapsed)
			resp.Attempts = attempt + 1
			return resp
		}
		c.observe(OutcomeRetry, elapsed)

		if attempt == c.maxRetries {
			break
		}

		delay := c.backoff(attempt)
		c.logger.Warn("backend fetch retrying",
			zap.String("url", url),
			zap.String("reason", reason),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := c.wait(ctx, delay); err != nil {
			c.observe(OutcomeDegraded, 0)
			return degraded(attempt + 1)
		}
	}

	c.observe(OutcomeDegraded, 0)
	c.logger.Error("backend fetch exhausted retries", zap.String("url", url), zap.Int("attempts", c.maxRetries+1))
	return degraded(c.maxRetries + 1)
}

// Send performs a single write request encoding body as JSON. Non-2xx replies
// are classified into typed errors.
func (c *Client) Send(ctx context.Context, method, url string, body interface{}) (*Response, error) {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
		}
		payload = bytes.NewReader(raw)
	}

	start := time.Now()
	resp, err := c.do(ctx, method, url, payload)
	if err != nil {
		c.observe(OutcomeDegraded, time.Since(start))
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "backend unreachable")
	}
	c.observe(OutcomeOK, time.Since(start))
	resp.Attempts = 1
	if err := resp.Err(); err != nil {
		c.logger.Warn("backend write rejected", zap.String("method", method), zap.String("url", url), zap.Int("status", resp.Status))
		return resp, err
	}
	return resp, nil
}

// Sequential fetches urls one after another, admitting each request through a
// limiter spaced by the configured delay. Results keep the input order.
func (c *Client) Sequential(ctx context.Context, urls []string) []*Response {
	c.limiterOnce.Do(func() {
		c.limiter = rate.NewLimiter(rate.Every(c.sequentialDelay), 1)
	})

	out := make([]*Response, len(urls))
	for i, url := range urls {
		if err := c.limiter.Wait(ctx); err != nil {
			for j := i; j < len(urls); j++ {
				out[j] = degraded(0)
			}
			return out
		}
		out[i] = c.Get(ctx, url)
	}
	return out
}

func (c *Client) do(ctx context.Context, method, url string, body io.Reader) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for key, values := range c.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := requestid.FromContext(ctx); id != "" {
		req.Header.Set(requestid.Header, id)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &Response{Status: res.StatusCode, Header: res.Header, Body: raw}, nil
}

func (c *Client) backoff(attempt int) time.Duration {
	delay := time.Duration(float64(c.backoffBase) * math.Pow(2, float64(attempt)))
	if c.jitterMax > 0 {
		delay += time.Duration(c.jitter() * float64(c.jitterMax))
	}
	return delay
}

func (c *Client) observe(outcome string, d time.Duration) {
	if c.observer != nil {
		c.observer.ObserveFetch(outcome, d)
	}
}

func retryReason(resp *Response, err error) string {
	if err != nil {
		return "network"
	}
	if resp.Status == http.StatusTooManyRequests {
		return "status_429"
	}
	if resp.Status >= 500 {
		return fmt.Sprintf("status_%d", resp.Status)
	}
	if !looksLikeJSON(resp.Body) && hasRateLimitMarker(resp.Body) {
		return "rate_limit_body"
	}
	return ""
}

func hasRateLimitMarker(body []byte) bool {
	lower := strings.ToLower(string(body))
	for _, marker := range rateLimitMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func looksLikeJSON(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}

func degraded(attempts int) *Response {
	return &Response{
		Status:   http.StatusOK,
		Header:   http.Header{"Content-Type": []string{"application/json"}},
		Body:     []byte("{}"),
		Attempts: attempts,
		Degraded: true,
	}
}

func extractMessage(body []byte) string {
	var payload struct {
		Error   interface{} `json:"error"`
		Message string      `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		switch v := payload.Error.(type) {
		case string:
			return v
		case map[string]interface{}:
			if msg, ok := v["message"].(string); ok {
				return msg
			}
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 || strings.HasPrefix(text, "<") {
		return ""
	}
	return text
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
