// Package client provides the travel data API client with API-key injection,
// rate-limit retry, request coalescing, and an optional shared Redis tier.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nihonguide/travel-api-client/pkg/cache"
	"github.com/nihonguide/travel-api-client/pkg/clock"
	"github.com/nihonguide/travel-api-client/pkg/coalesce"
	"github.com/nihonguide/travel-api-client/pkg/logging"
	"github.com/nihonguide/travel-api-client/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for upstream API operations.
var (
	travelRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "travel_api_requests_total",
		Help: "Total upstream requests by endpoint and status",
	}, []string{"endpoint", "status"})

	travelRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "travel_api_request_duration_seconds",
		Help:    "Upstream request duration in seconds by endpoint, including retries",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint"})

	travelErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "travel_api_errors_total",
		Help: "Total upstream errors by class",
	}, []string{"class"})
)

// Upstream endpoints.
const (
	PathPlaces       = "/api/places"
	PathWeather      = "/api/weather"
	PathExchangeRate = "/api/exchange-rate"
	PathNewsletter   = "/api/newsletter"
	PathContact      = "/api/contact"
)

// HeaderAPIKey carries the configured API key on every request.
const HeaderAPIKey = "x-api-key"

// maxBodyBytes bounds how much of an upstream body is read.
const maxBodyBytes = 4 << 20

// Client is the upstream travel data API client.
type Client struct {
	httpClient  *http.Client
	shared      *cache.Manager
	group       *coalesce.Group
	rateLimiter *ratelimit.Tracker
	clock       clock.Clock
	jitter      func(max time.Duration) time.Duration
	baseURL     string
	config      Config
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the upstream API, e.g. "https://api.example.jp" (REQUIRED)
	BaseURL string

	// APIKey sent as x-api-key. When empty, every call fails with
	// ErrMissingAPIKey before any network I/O.
	APIKey string

	// UserAgent header (optional)
	UserAgent string

	// Currency requested from /api/exchange-rate
	Currency string

	// Redis enables the shared result tier (optional)
	Redis *redis.Client

	// SharedNamespace prefixes shared tier keys (optional)
	SharedNamespace string

	// Timeouts
	RequestTimeout time.Duration // per attempt, applies to every call
	SubmitTimeout  time.Duration // whole call, applies to POSTs

	// CoalesceWindow is how long a resolved GET answers identical calls.
	// Zero means coalesce.DefaultWindow; negative disables the window.
	CoalesceWindow time.Duration

	// Retry policy for rate-limited calls
	Retry RetryConfig

	// Clock drives backoff sleeps and window expiry (default: wall time)
	Clock clock.Clock
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL, apiKey string) Config {
	return Config{
		BaseURL:        baseURL,
		APIKey:         apiKey,
		UserAgent:      "travel-api-client/1.0",
		Currency:       "JPY",
		RequestTimeout: 30 * time.Second,
		SubmitTimeout:  10 * time.Second,
		CoalesceWindow: coalesce.DefaultWindow,
		Retry:          DefaultRetryConfig(),
	}
}

// New creates a new client. A missing API key is not an error here; it is
// reported by every call instead.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = 10 * time.Second
	}
	if cfg.CoalesceWindow == 0 {
		cfg.CoalesceWindow = coalesce.DefaultWindow
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}
	if cfg.Retry.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.Retry.MaxRetries)
	}
	if cfg.Currency == "" {
		cfg.Currency = "JPY"
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}

	logger := logging.NewLogger("travel-client")
	if cfg.APIKey == "" {
		logger.Warn().Msg("API key not configured; every upstream call will fail")
	}

	var shared *cache.Manager
	if cfg.Redis != nil {
		shared = cache.NewManager(cfg.Redis, cache.WithNamespace(cfg.SharedNamespace))
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		shared:      shared,
		group:       coalesce.NewGroup(cfg.CoalesceWindow, cfg.Clock, logger),
		rateLimiter: ratelimit.NewTracker(cfg.Clock, logger),
		clock:       cfg.Clock,
		jitter:      randomJitter,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		config:      cfg,
		logger:      logger,
	}, nil
}

// checkConfig fails fast when the client cannot authenticate.
func (c *Client) checkConfig() error {
	if c.config.APIKey == "" {
		travelErrorsTotal.WithLabelValues(string(ErrorClassConfig)).Inc()
		return ErrMissingAPIKey
	}
	return nil
}

// execute performs one logical request, retrying rate-limited attempts.
func (c *Client) execute(ctx context.Context, method, endpoint string, query url.Values, body []byte) ([]byte, error) {
	target := c.baseURL + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	startTime := time.Now()
	defer func() {
		travelRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", method).
		Msg("Executing upstream request")

	return c.retryWithBackoff(ctx, endpoint, func() ([]byte, error) {
		return c.do(ctx, method, endpoint, target, body)
	})
}

// do performs a single HTTP attempt and classifies its outcome.
func (c *Client) do(ctx context.Context, method, endpoint, target string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderAPIKey, c.config.APIKey)
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		netErr := &NetworkError{
			Endpoint:    endpoint,
			RateLimited: ctx.Err() == nil && isRateLimitMessage(transportMessage(err)),
			Err:         err,
		}
		errorClass := classOf(netErr)
		travelErrorsTotal.WithLabelValues(string(errorClass)).Inc()
		travelRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Error().Err(err).
			Str("endpoint", endpoint).
			Str("error_class", string(errorClass)).
			Msg("HTTP request failed")
		return nil, netErr
	}
	defer resp.Body.Close()

	c.rateLimiter.Observe(resp.StatusCode, resp.Header)
	travelRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		travelErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &NetworkError{Endpoint: endpoint, Err: fmt.Errorf("read response body: %w", err)}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, nil
	}

	errorClass := classifyStatus(resp.StatusCode)
	travelErrorsTotal.WithLabelValues(string(errorClass)).Inc()
	c.logger.Warn().
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Str("error_class", string(errorClass)).
		Msg("Upstream request error")

	return nil, &HTTPError{
		Endpoint:   endpoint,
		StatusCode: resp.StatusCode,
		ErrorClass: errorClass,
		Message:    errorMessage(resp.StatusCode, data),
	}
}

// transportMessage strips the method and URL that *url.Error prepends, so a
// query string can never look like a rate-limit message.
func transportMessage(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err.Error()
	}
	return err.Error()
}

// errorMessage extracts the upstream error message from a JSON body.
func errorMessage(statusCode int, body []byte) string {
	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Error != "" {
			return parsed.Error
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}
	return fmt.Sprintf("HTTP error! status: %d", statusCode)
}

// getJSON performs a coalesced GET and decodes the result into T.
// Every caller coalesced onto the same call receives the same *T.
func getJSON[T any, P payload[T]](ctx context.Context, c *Client, endpoint string, query url.Values) (*T, error) {
	key := cache.CacheKey{Endpoint: endpoint, QueryParams: query}

	v, shared, err := c.group.Do(ctx, key.String(), func(ctx context.Context) (any, error) {
		return fetchJSON[T, P](ctx, c, key)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug().
			Str("endpoint", endpoint).
			Str("key", key.String()).
			Msg("Coalesced request")
	}
	return v.(*T), nil
}

// fetchJSON resolves key from the shared tier or upstream. It runs at most
// once per key at a time.
func fetchJSON[T any, P payload[T]](ctx context.Context, c *Client, key cache.CacheKey) (*T, error) {
	if c.shared != nil {
		entry, err := c.shared.Get(ctx, key)
		switch {
		case err == nil:
			if v, err := decode[T, P](key.Endpoint, entry.Data); err == nil {
				c.logger.Debug().Str("endpoint", key.Endpoint).Msg("Shared cache hit")
				return v, nil
			}
			c.logger.Warn().Str("endpoint", key.Endpoint).Msg("Discarding invalid shared cache entry")
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Str("endpoint", key.Endpoint).Msg("Shared cache get error")
		}
	}

	data, err := c.execute(ctx, http.MethodGet, key.Endpoint, key.QueryParams, nil)
	if err != nil {
		return nil, err
	}

	v, err := decode[T, P](key.Endpoint, data)
	if err != nil {
		c.logger.Warn().Err(err).Str("endpoint", key.Endpoint).Msg("Malformed upstream payload")
		return nil, err
	}

	if c.shared != nil {
		if err := c.shared.Set(ctx, key, cache.NewEntry(data, http.StatusOK, c.group.Window())); err != nil {
			c.logger.Warn().Err(err).Str("endpoint", key.Endpoint).Msg("Failed to share response")
		}
	}
	return v, nil
}

// post performs a mutating call. POSTs are never coalesced.
func (c *Client) post(ctx context.Context, endpoint string, body any) (*Ack, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", endpoint, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.SubmitTimeout)
	defer cancel()

	data, err := c.execute(ctx, http.MethodPost, endpoint, nil, payload)
	if err != nil {
		return nil, err
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return &Ack{Success: true}, nil
	}
	return decode[Ack](endpoint, data)
}

// RateLimitState returns the latest upstream rate limit observations.
func (c *Client) RateLimitState() ratelimit.RateLimitState {
	return c.rateLimiter.State()
}

// WindowEntries returns how many resolved results the coalescing window holds.
func (c *Client) WindowEntries() int {
	return c.group.Len()
}

// SharedCache returns the shared tier, or nil when Redis is not configured.
func (c *Client) SharedCache() *cache.Manager {
	return c.shared
}

// Close releases idle upstream connections. The Redis client is owned by the caller.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
