// Package backend queries the application backend for entitlement state over
// HTTP. Deployments that keep no local mirror use this as the check path; a
// circuit breaker keeps a failing backend from stalling every protected
// request.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"gatehouse/internal/entitlement"
	"gatehouse/internal/entitlement/metrics"
	dErrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/platform/circuit"
)

const defaultProbeInterval = 10 * time.Second

// Client checks entitlements against the backend's query endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *circuit.Breaker
	logger     *slog.Logger
	metrics    *metrics.Metrics

	// While the breaker is open, one request per probe interval goes
	// through so consecutive successes can close the circuit again.
	mu            sync.Mutex
	nextProbe     time.Time
	probeInterval time.Duration
	clock         func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		if b != nil {
			c.breaker = b
		}
	}
}

// WithProbeInterval sets how often an open circuit lets a probe through.
func WithProbeInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.probeInterval = d
		}
	}
}

// WithClock sets the clock function for testability.
func WithClock(clock func() time.Time) Option {
	return func(c *Client) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// New creates a backend entitlement client. The timeout bounds each request;
// the gate has no retry, so a slow backend answer is a failed check.
func New(baseURL, apiKey string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		apiKey:        apiKey,
		httpClient:    &http.Client{Timeout: timeout},
		breaker:       circuit.New("entitlement-backend"),
		logger:        slog.Default(),
		probeInterval: defaultProbeInterval,
		clock:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Check queries GET {base}/entitlements/{subject}. A 404 is a valid answer
// (no record, not an error); any other non-200 counts against the breaker.
func (c *Client) Check(ctx context.Context, subject string) (*entitlement.Status, error) {
	if !c.allowRequest() {
		return nil, dErrors.New(dErrors.CodeUnavailable, "entitlement backend circuit open")
	}

	endpoint := c.baseURL + "/entitlements/" + url.PathEscape(subject)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build entitlement request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordFailure(ctx)
		return nil, fmt.Errorf("query entitlement backend: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var status entitlement.Status
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			c.recordFailure(ctx)
			return nil, fmt.Errorf("decode entitlement response: %w", err)
		}
		c.recordSuccess(ctx)
		if status.Subject == "" {
			status.Subject = subject
		}
		return &status, nil
	case http.StatusNotFound:
		c.recordSuccess(ctx)
		return nil, nil
	default:
		c.recordFailure(ctx)
		return nil, fmt.Errorf("entitlement backend returned status %d", resp.StatusCode)
	}
}

// allowRequest reports whether this call may hit the backend. Closed circuit
// always passes; open circuit passes one probe per interval.
func (c *Client) allowRequest() bool {
	if !c.breaker.IsOpen() {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock()
	if now.Before(c.nextProbe) {
		return false
	}
	c.nextProbe = now.Add(c.probeInterval)
	return true
}

func (c *Client) recordFailure(ctx context.Context) {
	_, change := c.breaker.RecordFailure()
	if change.Opened {
		c.mu.Lock()
		c.nextProbe = c.clock().Add(c.probeInterval)
		c.mu.Unlock()
		c.metrics.SetBreakerOpen(true)
		c.logger.WarnContext(ctx, "entitlement backend circuit opened",
			"breaker", c.breaker.Name(),
		)
	}
}

func (c *Client) recordSuccess(ctx context.Context) {
	_, change := c.breaker.RecordSuccess()
	if change.Closed {
		c.metrics.SetBreakerOpen(false)
		c.logger.InfoContext(ctx, "entitlement backend circuit closed",
			"breaker", c.breaker.Name(),
		)
	}
}
