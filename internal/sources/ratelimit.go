// Package sources provides the resilient access layer for external academic
// databases: per-source rate limiting, retry with backoff, circuit breaking,
// and the adapter contract every source client implements.
package sources

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter wraps a token bucket rate limiter controlling the request rate
// to one external source. It is safe for concurrent use because the underlying
// rate.Limiter is goroutine-safe for all operations.
//
// The bucket refills continuously at the configured rate and is capped at the
// burst size, so a source is never called faster than its ceiling even under
// bursty concurrent demand.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a new rate limiter.
// ratePerSecond is the sustained rate of requests per second.
// burst is the maximum number of tokens the bucket can hold.
//
// Example configurations:
//   - arXiv: NewRateLimiter(3, 3) for 3 requests per second
//   - OpenAlex: NewRateLimiter(10, 10) for 10 requests per second
func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

// Wait suspends the caller until a token is available or the context is
// canceled. Waiting callers do not block other sources, and the wait is
// bounded by the context deadline, so no caller starves indefinitely.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Allow returns true if a request is allowed without waiting.
// It consumes one token if allowed, and returns false if no tokens are available.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// SetRate updates the rate limit while preserving the current burst size.
// Useful for adjusting the rate dynamically from API rate-limit headers.
func (r *RateLimiter) SetRate(ratePerSecond float64) {
	r.limiter.SetLimit(rate.Limit(ratePerSecond))
}

// Tokens returns the current number of available tokens, for monitoring.
// The value never goes negative and never exceeds the burst size.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}
