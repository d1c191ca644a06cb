// Package testutil provides testing utilities for the travel API client.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock upstream response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockAPI is a configurable mock of the upstream travel data API.
type MockAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	counts   map[string]int

	requestCount      int
	lastRequestHeader http.Header
}

// NewMockAPI creates and starts a mock upstream server.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers: make(map[string]http.HandlerFunc),
		counts:   make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.counts[r.URL.Path]++
		mock.lastRequestHeader = r.Header.Clone()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if r.Header.Get("x-api-key") == "" {
			writeJSON(w, http.StatusUnauthorized, `{"error": "missing api key"}`)
			return
		}

		if exists {
			handler(w, r)
			return
		}

		writeJSON(w, http.StatusNotFound, `{"error": "not found"}`)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.counts = make(map[string]int)
	m.lastRequestHeader = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, resp.write)
}

// SetSequence serves the responses for path in order. Once exhausted, the
// last response repeats.
func (m *MockAPI) SetSequence(path string, responses ...MockResponse) {
	var mu sync.Mutex
	next := 0
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		resp := responses[next]
		if next < len(responses)-1 {
			next++
		}
		mu.Unlock()
		resp.write(w, r)
	})
}

// RequestCount returns the number of requests made to the server.
func (m *MockAPI) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// PathCount returns the number of requests made to path.
func (m *MockAPI) PathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts[path]
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockAPI) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestHeader
}

func (resp MockResponse) write(w http.ResponseWriter, r *http.Request) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

// NewPlaceResponse creates a 200 OK place record response.
func NewPlaceResponse(name string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body: `{"id": "ChIJ-tokyo", "name": "` + name + `", "address": "4 Chome-2-8 Shibakoen, Minato City, Tokyo",` +
			` "rating": 4.5, "reviewCount": 1200, "location": {"lat": 35.6586, "lng": 139.7454},` +
			` "reviews": [{"author": "Aiko", "rating": 5, "text": "Great view"}]}`,
	}
}

// NewWeatherResponse creates a 200 OK weather record response.
func NewWeatherResponse(location string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body: `{"location": "` + location + `", "temperature": 18.5, "condition": "Clear",` +
			` "humidity": 55, "windKph": 9.4, "icon": "01d", "observedAt": "2026-10-16T09:00:00Z"}`,
	}
}

// NewExchangeRateResponse creates a 200 OK exchange rate response.
func NewExchangeRateResponse(currency string, rate string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"base": "USD", "currency": "` + currency + `", "rate": ` + rate + `, "updatedAt": "2026-10-16T00:00:00Z"}`,
	}
}

// NewAckResponse creates a 200 OK acknowledgment.
func NewAckResponse(message string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"success": true, "message": "` + message + `"}`,
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Rate limit exceeded"}`,
		Headers: map[string]string{
			"Retry-After":           "1",
			"X-RateLimit-Remaining": "0",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
	}
}
