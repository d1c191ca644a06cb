package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/nihonguide/travel-api-client/pkg/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	travelRateLimitRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "travel_api_rate_limit_remaining",
		Help: "Last X-RateLimit-Remaining value reported by the upstream API",
	})

	travelRateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "travel_api_rate_limited_total",
		Help: "Total number of 429 responses from the upstream API",
	})
)

// Tracker records upstream rate limit signals.
type Tracker struct {
	mu     sync.Mutex
	state  RateLimitState
	clock  clock.Clock
	logger zerolog.Logger
}

// NewTracker creates a new rate limit tracker. A nil clock means wall time.
func NewTracker(clk clock.Clock, logger zerolog.Logger) *Tracker {
	if clk == nil {
		clk = clock.Real()
	}
	t := &Tracker{
		clock:  clk,
		logger: logger,
	}
	t.state.Remaining = RemainingUnknown
	t.state.UpdateHealth()
	return t
}

// State returns a snapshot of the current state.
func (t *Tracker) State() RateLimitState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Observe records one upstream response.
func (t *Tracker) Observe(statusCode int, headers http.Header) {
	now := t.clock.Now()

	t.mu.Lock()
	wasHealthy := t.state.IsHealthy
	s := &t.state
	s.LastStatus = statusCode
	s.LastUpdate = now

	if remain, ok := parseInt(headers.Get(HeaderRemaining)); ok {
		s.Remaining = remain
		travelRateLimitRemaining.Set(float64(remain))
	}
	if reset, ok := parseInt(headers.Get(HeaderReset)); ok {
		s.ResetAt = now.Add(time.Duration(reset) * time.Second)
	}

	if statusCode == http.StatusTooManyRequests {
		s.Consecutive429++
		s.Total429++
		s.RetryAfter = parseRetryAfter(headers.Get(HeaderRetryAfter), now)
		travelRateLimitedTotal.Inc()
	} else {
		s.Consecutive429 = 0
		s.RetryAfter = 0
	}

	s.UpdateHealth()
	snapshot := *s
	t.mu.Unlock()

	switch {
	case wasHealthy && !snapshot.IsHealthy:
		t.logger.Warn().
			Int("remaining", snapshot.Remaining).
			Int("consecutive_429", snapshot.Consecutive429).
			Dur("retry_after", snapshot.RetryAfter).
			Msg("Upstream rate limit WARNING")
	case !wasHealthy && snapshot.IsHealthy:
		t.logger.Info().
			Int("remaining", snapshot.Remaining).
			Msg("Upstream rate limit recovered")
	}
}

func parseInt(val string) (int, bool) {
	if val == "" {
		return 0, false
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// parseRetryAfter accepts both delay-seconds and HTTP-date forms.
func parseRetryAfter(val string, now time.Time) time.Duration {
	if val == "" {
		return 0
	}
	if secs, ok := parseInt(val); ok {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(val); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}
