package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"
)

// GatewayConfig configures a source gateway.
type GatewayConfig struct {
	// Source is the source name used in errors and breaker state.
	Source string

	// Timeout is the request timeout for HTTP operations.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxRetries is the maximum number of retry attempts after the first try.
	MaxRetries int

	// InitialDelay is the base delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the computed backoff delay.
	MaxDelay time.Duration

	// BackoffMultiplier is the exponential backoff multiplier.
	BackoffMultiplier float64

	// FailureThreshold is the number of consecutive failed requests that
	// opens the circuit breaker.
	FailureThreshold int

	// ResetTimeout is the breaker cooldown before a half-open trial.
	ResetTimeout time.Duration

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// APIKey is an optional API key for authentication.
	APIKey string

	// APIKeyHeader is the header name for the API key (e.g. "X-API-Key").
	APIKeyHeader string
}

// applyDefaults sets default values for unset configuration fields.
func (c *GatewayConfig) applyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.RateLimit == 0 {
		c.RateLimit = 10
	}
	if c.BurstSize == 0 {
		c.BurstSize = 10
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.InitialDelay == 0 {
		c.InitialDelay = time.Second
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.BackoffMultiplier == 0 {
		c.BackoffMultiplier = 2.0
	}
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5
	}
	if c.ResetTimeout == 0 {
		c.ResetTimeout = 60 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "Helixir-LiteratureAggregator/1.0"
	}
}

// Gateway wraps http.Client with token-bucket rate limiting, retry with
// exponential backoff, and a circuit breaker. One gateway owns all resilience
// state for one external source; there is no cross-source contention.
// It is safe for concurrent use.
type Gateway struct {
	client      *http.Client
	rateLimiter *RateLimiter
	breaker     *CircuitBreaker
	config      GatewayConfig
}

// NewGateway creates a gateway for one external source.
// The gateway waits on the rate limiter before each attempt, retries on
// network errors, 429 (honoring Retry-After) and 5xx responses with
// exponential backoff, and counts each overall failed request against the
// circuit breaker.
func NewGateway(cfg GatewayConfig) *Gateway {
	cfg.applyDefaults()

	return &Gateway{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: NewRateLimiter(cfg.RateLimit, cfg.BurstSize),
		breaker:     NewCircuitBreaker(cfg.Source, cfg.FailureThreshold, cfg.ResetTimeout),
		config:      cfg,
	}
}

// Breaker exposes the gateway's circuit breaker for observation and
// administrative reset.
func (g *Gateway) Breaker() *CircuitBreaker {
	return g.breaker
}

// RateLimiter exposes the gateway's token bucket for observation.
func (g *Gateway) RateLimiter() *RateLimiter {
	return g.rateLimiter
}

// Do executes an HTTP request through the gateway.
//
// The breaker is consulted once per call: an open breaker rejects the call
// with a *domain.CircuitOpenError before any I/O. Retries happen within the
// call; exhausting them (or a non-retryable failure) raises the breaker's
// failure count by one and surfaces the last error. A 4xx response other
// than 429 is not retried and is returned to the caller for interpretation,
// but still counts one failure.
//
// The request body is not preserved across retries; callers must provide
// requests with GetBody set if the body needs to be resent on retry.
func (g *Gateway) Do(req *http.Request) (*http.Response, error) {
	if err := g.breaker.Allow(); err != nil {
		return nil, err
	}

	resp, err := g.do(req)
	if err != nil {
		g.breaker.RecordFailure()
		return nil, err
	}

	if resp.StatusCode >= 400 {
		// Retryable statuses were already retried inside do; whatever
		// error status remains counts as a single failure.
		g.breaker.RecordFailure()
		return resp, nil
	}

	g.breaker.RecordSuccess()
	return resp, nil
}

// do runs the rate-limited retry loop without touching breaker state.
func (g *Gateway) do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", g.config.UserAgent)
	}
	if g.config.APIKey != "" && g.config.APIKeyHeader != "" {
		req.Header.Set(g.config.APIKeyHeader, g.config.APIKey)
	}

	var lastErr error
	for attempt := 0; attempt <= g.config.MaxRetries; attempt++ {
		if err := g.rateLimiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		resp, err := g.client.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			if attempt < g.config.MaxRetries {
				if err := g.waitForRetry(req.Context(), g.backoffDelay(attempt)); err != nil {
					return nil, err
				}
				if err := g.resetRequestBody(req); err != nil {
					return nil, fmt.Errorf("cannot retry request: %w", err)
				}
				continue
			}
			return nil, lastErr
		}

		if g.shouldRetry(resp.StatusCode) {
			retryDelay := g.retryDelay(resp, attempt)

			// Drain and close the response body before retrying.
			if resp.Body != nil {
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
			}

			if attempt < g.config.MaxRetries {
				lastErr = fmt.Errorf("server returned status %d", resp.StatusCode)
				if err := g.waitForRetry(req.Context(), retryDelay); err != nil {
					return nil, err
				}
				if err := g.resetRequestBody(req); err != nil {
					return nil, fmt.Errorf("cannot retry request: %w", err)
				}
				continue
			}

			return nil, fmt.Errorf("max retries exhausted after %d attempts, last status: %d", g.config.MaxRetries+1, resp.StatusCode)
		}

		// Success or non-retryable status.
		return resp, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New("unexpected error: no response received")
}

// shouldRetry returns true if the status code indicates we should retry:
// 429 Too Many Requests and 5xx server errors.
func (g *Gateway) shouldRetry(statusCode int) bool {
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	return statusCode >= 500 && statusCode < 600
}

// backoffDelay computes the exponential backoff delay for the given attempt:
// min(initialDelay * multiplier^attempt, maxDelay).
func (g *Gateway) backoffDelay(attempt int) time.Duration {
	delay := float64(g.config.InitialDelay) * math.Pow(g.config.BackoffMultiplier, float64(attempt))
	if delay > float64(g.config.MaxDelay) {
		return g.config.MaxDelay
	}
	return time.Duration(delay)
}

// retryDelay determines how long to wait before retrying a response.
// A Retry-After header on a 429 takes precedence over computed backoff.
func (g *Gateway) retryDelay(resp *http.Response, attempt int) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return g.backoffDelay(attempt)
	}

	// Try to parse as seconds.
	if seconds, err := strconv.ParseInt(retryAfter, 10, 64); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return g.backoffDelay(attempt)
	}

	// Try to parse as HTTP date.
	if t, err := http.ParseTime(retryAfter); err == nil {
		delay := time.Until(t)
		if delay > 0 {
			return delay
		}
	}

	return g.backoffDelay(attempt)
}

// waitForRetry waits for the specified duration, respecting context cancellation.
func (g *Gateway) waitForRetry(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// resetRequestBody resets the request body for retry if possible.
func (g *Gateway) resetRequestBody(req *http.Request) error {
	if req.Body == nil || req.GetBody == nil {
		return nil
	}

	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("failed to get request body for retry: %w", err)
	}
	req.Body = body
	return nil
}
