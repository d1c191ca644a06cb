package client

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for retry operations.
var (
	travelRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "travel_api_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	travelRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "travel_api_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10},
	}, []string{"error_class"})

	travelRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "travel_api_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int

	// BaseDelay is the backoff before the first retry; it doubles per attempt.
	BaseDelay time.Duration

	// MaxJitter bounds the random delay added to every backoff: [0, MaxJitter).
	MaxJitter time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxJitter:  1 * time.Second,
	}
}

// Backoff returns BaseDelay * 2^attempt + jitter for a 0-based attempt.
func (rc RetryConfig) Backoff(attempt int, jitter time.Duration) time.Duration {
	return rc.BaseDelay*time.Duration(1<<uint(attempt)) + jitter
}

// randomJitter returns a uniformly distributed duration in [0, max).
func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}

// retryWithBackoff runs fn until it succeeds, fails with a non-retryable
// class, or the retry budget is used up. Backoff sleeps go through the
// client's clock and honor ctx.
func (c *Client) retryWithBackoff(ctx context.Context, endpoint string, fn func() ([]byte, error)) ([]byte, error) {
	rc := c.config.Retry

	for attempt := 0; ; attempt++ {
		data, err := fn()
		if err == nil {
			if attempt > 0 {
				c.logger.Info().
					Str("endpoint", endpoint).
					Int("attempt", attempt+1).
					Msg("Request succeeded after retry")
			}
			return data, nil
		}

		errorClass := classOf(err)
		if !shouldRetry(errorClass) {
			return nil, err
		}

		if attempt >= rc.MaxRetries {
			travelRetryExhaustedTotal.WithLabelValues(string(errorClass)).Inc()
			c.logger.Warn().
				Str("endpoint", endpoint).
				Str("error_class", string(errorClass)).
				Int("max_retries", rc.MaxRetries).
				Msg("Retry attempts exhausted")
			return nil, rateLimitExhausted(endpoint, err)
		}

		backoff := rc.Backoff(attempt, c.jitter(rc.MaxJitter))
		travelRetriesTotal.WithLabelValues(string(errorClass)).Inc()
		travelRetryBackoffSeconds.WithLabelValues(string(errorClass)).Observe(backoff.Seconds())

		c.logger.Warn().
			Str("endpoint", endpoint).
			Str("error_class", string(errorClass)).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Msg("Rate limited, retrying after backoff")

		if err := c.clock.Sleep(ctx, backoff); err != nil {
			c.logger.Warn().
				Str("endpoint", endpoint).
				Int("attempt", attempt+1).
				Err(err).
				Msg("Context ended during retry backoff")
			return nil, fmt.Errorf("%w: %w", ErrContextCancelled, err)
		}
	}
}

// rateLimitExhausted converts the last rate-limit failure into the terminal
// 429 error surfaced to callers.
func rateLimitExhausted(endpoint string, last error) error {
	message := last.Error()
	if httpErr, ok := last.(*HTTPError); ok {
		message = httpErr.Message
	}
	return &HTTPError{
		Endpoint:   endpoint,
		StatusCode: 429,
		ErrorClass: ErrorClassRateLimit,
		Message:    message,
		Err:        ErrRateLimitExceeded,
	}
}
