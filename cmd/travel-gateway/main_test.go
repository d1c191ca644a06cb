package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nihonguide/travel-api-client/internal/testutil"
	"github.com/nihonguide/travel-api-client/pkg/batch"
	"github.com/nihonguide/travel-api-client/pkg/client"
	"github.com/nihonguide/travel-api-client/pkg/config"
	"github.com/nihonguide/travel-api-client/pkg/fallback"
)

// newTestGateway starts the gateway in front of a mock upstream.
func newTestGateway(t *testing.T, apiKey string) (*httptest.Server, *testutil.MockAPI) {
	t.Helper()
	return newTestGatewayWith(t, apiKey, func(cfg *client.Config) {
		cfg.Retry.MaxRetries = 0
	})
}

// newTestGatewayWith lets a test adjust the client configuration.
func newTestGatewayWith(t *testing.T, apiKey string, configure func(*client.Config)) (*httptest.Server, *testutil.MockAPI) {
	t.Helper()

	mock := testutil.NewMockAPI()
	t.Cleanup(mock.Close)

	cfg := client.DefaultConfig(mock.URL(), apiKey)
	configure(&cfg)
	travelClient, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	t.Cleanup(func() { travelClient.Close() })

	srv := newServer(serverDeps{
		client:     travelClient,
		batch:      batch.NewFetcher(travelClient, batch.DefaultConfig()),
		configured: apiKey != "",
	})
	gateway := httptest.NewServer(srv.routes())
	t.Cleanup(gateway.Close)

	return gateway, mock
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}

func post(t *testing.T, url, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func decodeBody(t *testing.T, body []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(body, v); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("Expected status %d, got %d", want, resp.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %q", string(body))
	}
}

func TestReadyEndpoint(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		w := httptest.NewRecorder()
		readyHandler(nil, true)(w, httptest.NewRequest("GET", "/ready", nil))

		if w.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", w.Code)
		}
		if w.Body.String() != "OK" {
			t.Errorf("Expected body 'OK', got %q", w.Body.String())
		}
	})

	t.Run("not_ready_missing_api_key", func(t *testing.T) {
		w := httptest.NewRecorder()
		readyHandler(nil, false)(w, httptest.NewRequest("GET", "/ready", nil))

		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected status 503, got %d", w.Code)
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	gateway, mock := newTestGateway(t, "key")
	mock.SetResponse(client.PathWeather, testutil.NewWeatherResponse("Tokyo"))

	resp, _ := get(t, gateway.URL+"/weather?location=Tokyo")
	expectStatus(t, resp, http.StatusOK)

	resp, body := get(t, gateway.URL+"/metrics")
	expectStatus(t, resp, http.StatusOK)

	metricsText := string(body)
	for _, want := range []string{"# HELP", "travel_api_requests_total", "travel_coalesce_requests_total"} {
		if !strings.Contains(metricsText, want) {
			t.Errorf("Expected metrics output to contain %q", want)
		}
	}
}

func TestSearchPlace(t *testing.T) {
	gateway, mock := newTestGateway(t, "key")
	mock.SetResponse(client.PathPlaces, testutil.NewPlaceResponse("Tokyo Tower"))

	resp, body := get(t, gateway.URL+"/places?query=Tokyo+Tower")
	expectStatus(t, resp, http.StatusOK)

	var result fallback.PlaceResult
	decodeBody(t, body, &result)
	if result.Source != fallback.SourceUpstream {
		t.Errorf("Source = %q, want upstream", result.Source)
	}
	if result.Place.Name != "Tokyo Tower" || result.Place.Rating != 4.5 {
		t.Errorf("Place = %+v", result.Place)
	}
}

func TestSearchPlace_FallbackOnUpstreamError(t *testing.T) {
	gateway, mock := newTestGateway(t, "key")
	mock.SetResponse(client.PathPlaces, testutil.NewServerErrorResponse())

	resp, body := get(t, gateway.URL+"/places?query=Kinkaku-ji")
	expectStatus(t, resp, http.StatusOK)

	var result fallback.PlaceResult
	decodeBody(t, body, &result)
	if result.Source != fallback.SourceFallback {
		t.Errorf("Source = %q, want fallback", result.Source)
	}
	want := fallback.Place("Kinkaku-ji")
	if result.Place.Name != want.Name || result.Place.Rating != want.Rating || result.Place.ReviewCount != want.ReviewCount {
		t.Errorf("Place = %+v, want %+v", result.Place, want)
	}
}

func TestSearchPlace_MissingQuery(t *testing.T) {
	gateway, mock := newTestGateway(t, "key")

	resp, body := get(t, gateway.URL+"/places")
	expectStatus(t, resp, http.StatusBadRequest)
	if !strings.Contains(string(body), "invalid argument") {
		t.Errorf("body = %s", body)
	}
	if got := mock.RequestCount(); got != 0 {
		t.Errorf("Expected 0 upstream calls, got %d", got)
	}
}

func TestPlaceDetails(t *testing.T) {
	gateway, mock := newTestGateway(t, "key")
	mock.SetHandler(client.PathPlaces, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("placeId") != "ChIJ-osaka" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error": "place not found"}`))
			return
		}
		w.Write([]byte(`{"id": "ChIJ-osaka", "name": "Osaka Castle", "rating": 4.4, "reviewCount": 90000}`))
	})

	resp, body := get(t, gateway.URL+"/places/ChIJ-osaka")
	expectStatus(t, resp, http.StatusOK)

	var place client.PlaceRecord
	decodeBody(t, body, &place)
	if place.Name != "Osaka Castle" {
		t.Errorf("Name = %q", place.Name)
	}

	resp, body = get(t, gateway.URL+"/places/ChIJ-unknown")
	expectStatus(t, resp, http.StatusNotFound)
	if !strings.Contains(string(body), "place not found") {
		t.Errorf("body = %s", body)
	}
}

func TestPlaceBatch(t *testing.T) {
	gateway, mock := newTestGateway(t, "key")
	mock.SetHandler(client.PathPlaces, func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("query")
		if name == "Closed Museum" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"name": "` + name + `", "rating": 4.1, "reviewCount": 12}`))
	})

	resp, body := get(t, gateway.URL+"/places/batch?name=Nara+Park,Closed+Museum&name=Todai-ji")
	expectStatus(t, resp, http.StatusOK)

	var results []fallback.PlaceResult
	decodeBody(t, body, &results)
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}

	tests := []struct {
		name   string
		source fallback.Source
	}{
		{"Nara Park", fallback.SourceUpstream},
		{"Closed Museum", fallback.SourceFallback},
		{"Todai-ji", fallback.SourceUpstream},
	}
	for i, tt := range tests {
		if results[i].Place.Name != tt.name || results[i].Source != tt.source {
			t.Errorf("results[%d] = %s/%s, want %s/%s", i, results[i].Place.Name, results[i].Source, tt.name, tt.source)
		}
	}
}

func TestPlaceBatch_NoNames(t *testing.T) {
	gateway, _ := newTestGateway(t, "key")

	resp, _ := get(t, gateway.URL+"/places/batch")
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestWeatherAndExchangeRate(t *testing.T) {
	gateway, mock := newTestGateway(t, "key")
	mock.SetResponse(client.PathWeather, testutil.NewWeatherResponse("Kyoto"))
	mock.SetResponse(client.PathExchangeRate, testutil.NewExchangeRateResponse("JPY", "149.8"))

	resp, body := get(t, gateway.URL+"/weather?location=Kyoto")
	expectStatus(t, resp, http.StatusOK)
	var weather client.WeatherRecord
	decodeBody(t, body, &weather)
	if weather.Location != "Kyoto" {
		t.Errorf("Location = %q", weather.Location)
	}

	resp, body = get(t, gateway.URL+"/exchange-rate")
	expectStatus(t, resp, http.StatusOK)
	var rate client.ExchangeRecord
	decodeBody(t, body, &rate)
	if rate.Rate != 149.8 {
		t.Errorf("Rate = %v, want 149.8", rate.Rate)
	}
}

func TestUpstreamRateLimit(t *testing.T) {
	gateway, mock := newTestGateway(t, "key")
	mock.SetResponse(client.PathWeather, testutil.NewRateLimitResponse())

	resp, _ := get(t, gateway.URL+"/weather?location=Nagoya")
	expectStatus(t, resp, http.StatusTooManyRequests)
	if got := resp.Header.Get("Retry-After"); got != "1" {
		t.Errorf("Retry-After = %q, want 1", got)
	}

	resp, body := get(t, gateway.URL+"/status")
	expectStatus(t, resp, http.StatusOK)

	var status statusResponse
	decodeBody(t, body, &status)
	if status.RateLimit.Total429 != 1 || !status.RateLimit.IsLimited() {
		t.Errorf("RateLimit = %+v", status.RateLimit)
	}
	if status.WindowEntries != 1 {
		t.Errorf("WindowEntries = %d, want 1 (the 429 stays in the window)", status.WindowEntries)
	}
	if status.SharedTier {
		t.Error("SharedTier = true without Redis")
	}
}

func TestMissingAPIKey(t *testing.T) {
	gateway, mock := newTestGateway(t, "")

	resp, _ := get(t, gateway.URL+"/weather?location=Tokyo")
	expectStatus(t, resp, http.StatusServiceUnavailable)

	resp, _ = get(t, gateway.URL+"/ready")
	expectStatus(t, resp, http.StatusServiceUnavailable)

	if got := mock.RequestCount(); got != 0 {
		t.Errorf("Expected 0 upstream calls, got %d", got)
	}
}

func TestContact_SubmitTimeoutDuringBackoff(t *testing.T) {
	gateway, mock := newTestGatewayWith(t, "key", func(cfg *client.Config) {
		cfg.SubmitTimeout = 50 * time.Millisecond
		cfg.Retry = client.RetryConfig{MaxRetries: 3, BaseDelay: 200 * time.Millisecond}
	})
	mock.SetResponse(client.PathContact, testutil.NewRateLimitResponse())

	resp, body := post(t, gateway.URL+"/contact",
		`{"name": "Ren", "email": "ren@example.jp", "subject": "Hotel", "message": "Need a room"}`)

	if resp.StatusCode != http.StatusGatewayTimeout {
		t.Errorf("Expected status 504, got %d: %s", resp.StatusCode, body)
	}
	if got := mock.PathCount(client.PathContact); got != 1 {
		t.Errorf("Expected 1 upstream attempt, got %d", got)
	}
}

func TestNewsletter(t *testing.T) {
	gateway, mock := newTestGateway(t, "key")
	mock.SetResponse(client.PathNewsletter, testutil.NewAckResponse("subscribed"))

	resp, body := post(t, gateway.URL+"/newsletter", `{"email": "sora@example.jp"}`)
	expectStatus(t, resp, http.StatusOK)

	var ack client.Ack
	decodeBody(t, body, &ack)
	if !ack.Success {
		t.Error("Ack.Success = false")
	}

	for _, bad := range []string{`{"email": "nope"}`, `not json`} {
		resp, _ = post(t, gateway.URL+"/newsletter", bad)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("POST %s: expected 400, got %d", bad, resp.StatusCode)
		}
	}

	if got := mock.PathCount(client.PathNewsletter); got != 1 {
		t.Errorf("Expected 1 upstream call, got %d", got)
	}
}

func TestContact(t *testing.T) {
	gateway, mock := newTestGateway(t, "key")
	mock.SetResponse(client.PathContact, testutil.NewAckResponse("received"))

	resp, body := post(t, gateway.URL+"/contact",
		`{"name": "Aoi", "email": "aoi@example.jp", "subject": "Ryokan", "message": "Do you have rooms?"}`)
	expectStatus(t, resp, http.StatusOK)
	if !strings.Contains(string(body), "received") {
		t.Errorf("body = %s", body)
	}

	resp, _ = post(t, gateway.URL+"/contact", `{"name": "Aoi", "email": "aoi@example.jp"}`)
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestMethodNotAllowed(t *testing.T) {
	gateway, _ := newTestGateway(t, "key")

	resp, _ := get(t, gateway.URL+"/contact")
	expectStatus(t, resp, http.StatusMethodNotAllowed)
}

func TestRequestID(t *testing.T) {
	gateway, _ := newTestGateway(t, "key")

	resp, _ := get(t, gateway.URL+"/health")
	if _, err := uuid.Parse(resp.Header.Get(HeaderRequestID)); err != nil {
		t.Errorf("Expected an assigned request ID, got %q", resp.Header.Get(HeaderRequestID))
	}

	existing := uuid.NewString()
	req, err := http.NewRequest("GET", gateway.URL+"/health", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set(HeaderRequestID, existing)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if got := resp.Header.Get(HeaderRequestID); got != existing {
		t.Errorf("Request ID = %q, want %q", got, existing)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "invalid argument", err: client.ErrInvalidArgument, want: http.StatusBadRequest},
		{name: "missing key", err: client.ErrMissingAPIKey, want: http.StatusServiceUnavailable},
		{name: "rate limited", err: &client.HTTPError{StatusCode: 429, ErrorClass: client.ErrorClassRateLimit}, want: http.StatusTooManyRequests},
		{name: "not found", err: &client.HTTPError{StatusCode: 404, ErrorClass: client.ErrorClassClient}, want: http.StatusNotFound},
		{name: "upstream unauthorized", err: &client.HTTPError{StatusCode: 401, ErrorClass: client.ErrorClassClient}, want: http.StatusBadGateway},
		{name: "upstream server", err: &client.HTTPError{StatusCode: 500, ErrorClass: client.ErrorClassServer}, want: http.StatusBadGateway},
		{name: "deadline during backoff", err: fmt.Errorf("%w: %w", client.ErrContextCancelled, context.DeadlineExceeded), want: http.StatusGatewayTimeout},
		{name: "decode", err: &client.DecodeError{Endpoint: client.PathPlaces, Err: io.ErrUnexpectedEOF}, want: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func setLookupEnv(t *testing.T, mock *testutil.MockAPI) {
	t.Helper()
	t.Setenv(config.EnvBaseURL, mock.URL())
	t.Setenv(config.EnvAPIKey, "key")
	t.Setenv(config.EnvRedisURL, "")
	t.Setenv(config.EnvPort, "")
	t.Setenv(config.EnvLogLevel, "error")
	t.Setenv(config.EnvPretty, "")
	t.Setenv("TRAVEL_CONFIG", "")
}

func TestLookupCommand(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse(client.PathPlaces, testutil.NewPlaceResponse("Tokyo Tower"))
	mock.SetResponse(client.PathWeather, testutil.NewWeatherResponse("Kyoto"))
	setLookupEnv(t, mock)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "place", args: []string{"lookup", "place", "Tokyo", "Tower"}, want: `"source": "upstream"`},
		{name: "weather", args: []string{"lookup", "weather", "Kyoto"}, want: `"condition": "Clear"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			cmd := newRootCmd()
			cmd.SetOut(&out)
			cmd.SetArgs(tt.args)

			if err := cmd.Execute(); err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("output %s does not contain %s", out.String(), tt.want)
			}
		})
	}
}

func TestLookupCommand_Errors(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse(client.PathPlaces, testutil.NewServerErrorResponse())
	setLookupEnv(t, mock)

	t.Run("unknown kind", func(t *testing.T) {
		cmd := newRootCmd()
		cmd.SetOut(io.Discard)
		cmd.SetArgs([]string{"lookup", "hotel", "Tokyo"})

		err := cmd.Execute()
		if err == nil || !strings.Contains(err.Error(), `unknown lookup kind "hotel"`) {
			t.Errorf("Execute() error = %v", err)
		}
	})

	t.Run("no fallback", func(t *testing.T) {
		cmd := newRootCmd()
		cmd.SetOut(io.Discard)
		cmd.SetArgs([]string{"lookup", "--no-fallback", "place", "Tokyo Tower"})
		err := cmd.Execute()

		var httpErr *client.HTTPError
		if !errors.As(err, &httpErr) {
			t.Fatalf("Expected *client.HTTPError, got %v", err)
		}
		if httpErr.StatusCode != http.StatusInternalServerError {
			t.Errorf("StatusCode = %d, want 500", httpErr.StatusCode)
		}
	})
}
