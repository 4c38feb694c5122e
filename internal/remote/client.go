// Package remote is the HTTP client for the restaurant-ordering backend:
// envelope normalization, retries with configurable backoff, bounded
// concurrency and in-memory request metrics.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/core"
)

// apiKeyHeader carries the tenant credential on every request.
const apiKeyHeader = "X-Service-API-Key"

// idempotencyHeader carries the order-creation idempotency key.
const idempotencyHeader = "X-Idempotency-Key"

// BackoffMode selects the retry delay strategy.
type BackoffMode string

const (
	BackoffExponential BackoffMode = "exp"
	BackoffFixed       BackoffMode = "fixed"
	BackoffAdaptive    BackoffMode = "adaptive"
)

// Config tunes one shared client. One client per process per tenant
// credential set.
type Config struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	MaxRetries    int
	RetryDelay    time.Duration
	Backoff       BackoffMode
	MaxConcurrent int
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Timeout <= 0 {
		out.Timeout = 10 * time.Second
	}
	if out.MaxRetries < 0 {
		out.MaxRetries = 0
	} else if out.MaxRetries == 0 {
		out.MaxRetries = 3
	}
	if out.RetryDelay <= 0 {
		out.RetryDelay = time.Second
	}
	if out.Backoff == "" {
		out.Backoff = BackoffExponential
	}
	if out.MaxConcurrent <= 0 {
		out.MaxConcurrent = 10
	}
	return out
}

// Metrics is a point-in-time snapshot of the client counters.
type Metrics struct {
	TotalRequests     int64   `json:"totalRequests"`
	Successful        int64   `json:"successful"`
	Failed            int64   `json:"failed"`
	Retried           int64   `json:"retried"`
	RateLimited       int64   `json:"rateLimited"`
	AvgResponseTimeMs float64 `json:"avgResponseTimeMs"`
}

type counters struct {
	total       atomic.Int64
	successful  atomic.Int64
	failed      atomic.Int64
	retried     atomic.Int64
	rateLimited atomic.Int64
	durTotalMs  atomic.Int64
	durCount    atomic.Int64
}

// Client talks to the remote backend. Safe for concurrent use; the semaphore
// bounds total in-flight requests across all sessions.
type Client struct {
	cfg  Config
	http *http.Client
	sem  chan struct{}
	log  *zap.Logger
	m    counters

	// sleep is swapped in tests to avoid real backoff delays.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	cfg = cfg.withDefaults()
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: cfg.MaxConcurrent,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Transport: transport},
		sem:  make(chan struct{}, cfg.MaxConcurrent),
		log:  log,
		sleep: func(ctx context.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		},
	}
}

func (c *Client) GetMetrics() Metrics {
	count := c.m.durCount.Load()
	avg := 0.0
	if count > 0 {
		avg = float64(c.m.durTotalMs.Load()) / float64(count)
	}
	return Metrics{
		TotalRequests:     c.m.total.Load(),
		Successful:        c.m.successful.Load(),
		Failed:            c.m.failed.Load(),
		Retried:           c.m.retried.Load(),
		RateLimited:       c.m.rateLimited.Load(),
		AvgResponseTimeMs: avg,
	}
}

func (c *Client) ResetMetrics() {
	c.m.total.Store(0)
	c.m.successful.Store(0)
	c.m.failed.Store(0)
	c.m.retried.Store(0)
	c.m.rateLimited.Store(0)
	c.m.durTotalMs.Store(0)
	c.m.durCount.Store(0)
}

// envelope covers both remote response shapes: {type:"1"|"3",message,data}
// and {success:bool,message,data}. Normalization happens only here.
type envelope struct {
	Type    string          `json:"type"`
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// backoffDelay computes the delay before retry attempt n (0-based).
func (c *Client) backoffDelay(n int) time.Duration {
	base := c.cfg.RetryDelay
	switch c.cfg.Backoff {
	case BackoffFixed:
		return base
	case BackoffAdaptive:
		d := base << uint(n)
		return d + time.Duration(rand.Int63n(int64(d)/2+1))
	default:
		return base << uint(n)
	}
}

// do performs one logical request with retries. Retries fire on network
// errors (timeouts included), 5xx and 429; 429 honours Retry-After.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, headers map[string]string, body, out any) error {
	c.m.total.Add(1)

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			c.m.retried.Add(1)
		}

		data, retryAfter, err := c.attempt(ctx, method, endpoint, headers, payload)
		if err == nil {
			c.m.successful.Add(1)
			if out != nil && len(data) > 0 {
				if err := json.Unmarshal(data, out); err != nil {
					return fmt.Errorf("decode response: %w", err)
				}
			}
			return nil
		}
		lastErr = err

		apiErr, transient := asTransient(err)
		if !transient {
			c.m.failed.Add(1)
			return err
		}
		if apiErr != nil && apiErr.Status == 429 {
			c.m.rateLimited.Add(1)
		}
		if attempt == c.cfg.MaxRetries {
			break
		}

		delay := c.backoffDelay(attempt)
		if retryAfter > 0 {
			delay = retryAfter
		}
		c.log.Warn("remote request retrying",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))
		if err := c.sleep(ctx, delay); err != nil {
			c.m.failed.Add(1)
			return &core.APIError{Message: err.Error()}
		}
	}

	c.m.failed.Add(1)
	return lastErr
}

// attempt performs exactly one HTTP exchange and normalizes the envelope.
func (c *Client) attempt(ctx context.Context, method, endpoint string, headers map[string]string, payload []byte) (json.RawMessage, time.Duration, error) {
	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-ctx.Done():
		return nil, 0, &core.APIError{Message: ctx.Err().Error()}
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, endpoint, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(apiKeyHeader, c.cfg.APIKey)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		// Network errors and timeouts are transient by definition.
		return nil, 0, &core.APIError{Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	c.m.durTotalMs.Add(elapsed.Milliseconds())
	c.m.durCount.Add(1)
	if err != nil {
		return nil, 0, &core.APIError{Message: err.Error()}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		var retryAfter time.Duration
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, perr := strconv.Atoi(v); perr == nil {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return nil, retryAfter, &core.APIError{Status: resp.StatusCode, Message: serverMessage(raw)}
	}
	if resp.StatusCode >= 500 {
		return nil, 0, &core.APIError{Status: resp.StatusCode, Message: serverMessage(raw)}
	}
	if resp.StatusCode >= 400 {
		return nil, 0, &core.APIError{Status: resp.StatusCode, Message: serverMessage(raw)}
	}

	var env envelope
	if len(raw) > 0 && json.Unmarshal(raw, &env) == nil {
		if env.Type == "3" || (env.Success != nil && !*env.Success) {
			return nil, 0, &core.APIError{Status: resp.StatusCode, Message: env.Message}
		}
		if env.Type != "" || env.Success != nil {
			return env.Data, 0, nil
		}
	}
	// Some endpoints answer bare JSON without an envelope.
	return raw, 0, nil
}

func serverMessage(raw []byte) string {
	var env envelope
	if json.Unmarshal(raw, &env) == nil && env.Message != "" {
		return env.Message
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200]
	}
	if s == "" {
		s = "request failed"
	}
	return s
}

func asTransient(err error) (*core.APIError, bool) {
	apiErr, ok := err.(*core.APIError)
	if !ok {
		return nil, false
	}
	return apiErr, apiErr.Transient()
}
