package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nihonguide/travel-api-client/pkg/batch"
	"github.com/nihonguide/travel-api-client/pkg/client"
	"github.com/nihonguide/travel-api-client/pkg/fallback"
	"github.com/nihonguide/travel-api-client/pkg/logging"
	"github.com/nihonguide/travel-api-client/pkg/metrics"
	"github.com/nihonguide/travel-api-client/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// HeaderRequestID carries the request ID in both directions.
const HeaderRequestID = "X-Request-ID"

// maxBatchNames bounds one /places/batch request.
const maxBatchNames = 50

type serverDeps struct {
	client     *client.Client
	redis      *redis.Client
	batch      *batch.Fetcher
	configured bool
}

type server struct {
	serverDeps
}

func newServer(deps serverDeps) *server {
	return &server{serverDeps: deps}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", readyHandler(s.redis, s.configured))
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("GET /places", s.handleSearchPlace)
	mux.HandleFunc("GET /places/batch", s.handlePlaceBatch)
	mux.HandleFunc("GET /places/{id}", s.handlePlaceDetails)
	mux.HandleFunc("GET /weather", s.handleWeather)
	mux.HandleFunc("GET /exchange-rate", s.handleExchangeRate)
	mux.HandleFunc("POST /newsletter", s.handleNewsletter)
	mux.HandleFunc("POST /contact", s.handleContact)

	return s.withRequestID(s.withLogging(mux))
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// readyHandler reports 503 until an API key is configured and, when the
// shared tier is enabled, Redis answers.
func readyHandler(redisClient *redis.Client, configured bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !configured {
			http.Error(w, "API key not configured", http.StatusServiceUnavailable)
			return
		}
		if redisClient != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := redisClient.Ping(ctx).Err(); err != nil {
				http.Error(w, "Redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}
}

type statusResponse struct {
	RateLimit     ratelimit.RateLimitState `json:"rate_limit"`
	WindowEntries int                      `json:"window_entries"`
	SharedTier    bool                     `json:"shared_tier"`
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		RateLimit:     s.client.RateLimitState(),
		WindowEntries: s.client.WindowEntries(),
		SharedTier:    s.client.SharedCache() != nil,
	})
}

// handleSearchPlace always answers 200; failed lookups come back as a
// fallback record.
func (s *server) handleSearchPlace(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		s.writeError(w, r, client.ErrInvalidArgument)
		return
	}
	writeJSON(w, http.StatusOK, fallback.ResolvePlace(r.Context(), s.client, query))
}

func (s *server) handlePlaceBatch(w http.ResponseWriter, r *http.Request) {
	var names []string
	for _, v := range r.URL.Query()["name"] {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
	}
	if len(names) == 0 || len(names) > maxBatchNames {
		s.writeError(w, r, client.ErrInvalidArgument)
		return
	}

	results, err := s.batch.Places(r.Context(), names)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *server) handlePlaceDetails(w http.ResponseWriter, r *http.Request) {
	place, err := s.client.GetPlaceDetails(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, place)
}

func (s *server) handleWeather(w http.ResponseWriter, r *http.Request) {
	weather, err := s.client.GetWeather(r.Context(), r.URL.Query().Get("location"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, weather)
}

func (s *server) handleExchangeRate(w http.ResponseWriter, r *http.Request) {
	rate, err := s.client.GetExchangeRate(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rate)
}

func (s *server) handleNewsletter(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&body); err != nil {
		s.writeError(w, r, client.ErrInvalidArgument)
		return
	}

	ack, err := s.client.SubscribeNewsletter(r.Context(), body.Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

func (s *server) handleContact(w http.ResponseWriter, r *http.Request) {
	var req client.ContactRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		s.writeError(w, r, client.ErrInvalidArgument)
		return
	}

	ack, err := s.client.SubmitContact(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

// statusFor maps a client error onto the gateway's response status.
func statusFor(err error) int {
	var (
		cfgErr  *client.ConfigurationError
		httpErr *client.HTTPError
	)

	switch {
	case errors.Is(err, client.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.As(err, &cfgErr):
		return http.StatusServiceUnavailable
	case errors.As(err, &httpErr):
		switch httpErr.ErrorClass {
		case client.ErrorClassRateLimit:
			return http.StatusTooManyRequests
		case client.ErrorClassClient:
			if httpErr.StatusCode == http.StatusNotFound || httpErr.StatusCode == http.StatusBadRequest {
				return httpErr.StatusCode
			}
		}
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	logger := logging.FromContext(r.Context(), "gateway")
	event := logger.Warn()
	if status >= 500 {
		event = logger.Error()
	}
	event.Err(err).
		Str("path", r.URL.Path).
		Int("status", status).
		Msg("Request failed")

	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, map[string]string{
		"error":      err.Error(),
		"request_id": requestIDFrom(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// withRequestID keeps a caller-supplied request ID or assigns a new one.
func (s *server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)

		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		ctx = logging.WithRequestID(ctx, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		logger := logging.FromContext(r.Context(), "gateway")
		logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("Handled request")
	})
}
