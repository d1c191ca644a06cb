// Package ratelimit observes the upstream API's rate limiting.
// It records 429 responses together with the Retry-After, X-RateLimit-Remaining
// and X-RateLimit-Reset headers so the gateway can report whether the upstream
// is currently pushing back. It never gates requests; retry policy lives in
// the client.
package ratelimit

import (
	"time"
)

// Upstream rate limit headers.
const (
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// RemainingUnknown marks a state where the upstream never sent X-RateLimit-Remaining.
const RemainingUnknown = -1

// Thresholds for health reporting.
const (
	// RemainingThresholdWarning marks the state unhealthy when the upstream
	// reports fewer remaining requests than this.
	RemainingThresholdWarning = 5

	// ConsecutiveThresholdWarning marks the state unhealthy after this many
	// 429 responses in a row.
	ConsecutiveThresholdWarning = 3
)

// RateLimitState represents the most recent view of upstream rate limiting.
type RateLimitState struct {
	// Remaining is the last X-RateLimit-Remaining value, or RemainingUnknown.
	Remaining int `json:"remaining"`

	// ResetAt is when the upstream window resets (from X-RateLimit-Reset seconds).
	ResetAt time.Time `json:"reset_at,omitempty"`

	// RetryAfter is the last Retry-After hint seen on a 429.
	RetryAfter time.Duration `json:"retry_after"`

	// Consecutive429 counts 429 responses since the last non-429 response.
	Consecutive429 int `json:"consecutive_429"`

	// Total429 counts every 429 response observed.
	Total429 int64 `json:"total_429"`

	// LastStatus is the status code of the most recent response.
	LastStatus int `json:"last_status"`

	// LastUpdate is when this state was last updated.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is false while the upstream is rate limiting or close to it.
	IsHealthy bool `json:"is_healthy"`
}

// IsStale returns true if the state is older than maxAge at now.
func (s *RateLimitState) IsStale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(s.LastUpdate) > maxAge
}

// IsLimited returns true if the most recent response was a 429.
func (s *RateLimitState) IsLimited() bool {
	return s.Consecutive429 > 0
}

// TimeUntilReset returns the duration from now until the upstream window resets.
// Returns 0 if unknown or already passed.
func (s *RateLimitState) TimeUntilReset(now time.Time) time.Duration {
	if s.ResetAt.IsZero() {
		return 0
	}
	duration := s.ResetAt.Sub(now)
	if duration < 0 {
		return 0
	}
	return duration
}

// UpdateHealth updates the IsHealthy field from the current counters.
func (s *RateLimitState) UpdateHealth() {
	lowRemaining := s.Remaining != RemainingUnknown && s.Remaining < RemainingThresholdWarning
	s.IsHealthy = !lowRemaining && s.Consecutive429 < ConsecutiveThresholdWarning
}
