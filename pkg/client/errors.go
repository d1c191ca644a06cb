package client

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassConfig represents a missing or invalid client configuration.
	ErrorClassConfig ErrorClass = "config"

	// ErrorClassClient represents 4xx client errors other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses and rate-limit transport failures.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents malformed or invalid response payloads.
	ErrorClassDecode ErrorClass = "decode"
)

// Common errors returned by the client.
var (
	// ErrMissingAPIKey is returned by every operation when no API key is configured.
	ErrMissingAPIKey = &ConfigurationError{Field: "api_key", Reason: "API key is not configured"}

	// ErrRateLimitExceeded is matched by the error returned once every retry
	// of a rate-limited call has been used up.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrMalformedPayload is matched by every DecodeError.
	ErrMalformedPayload = errors.New("malformed response payload")

	// ErrInvalidArgument is returned before any network call when an
	// operation's input is empty or malformed.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrContextCancelled is returned when the context ends during retry
	// backoff. The context's own error stays in the chain.
	ErrContextCancelled = errors.New("retry backoff interrupted")
)

// ConfigurationError reports a client configuration problem. It is never retried.
type ConfigurationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error (%s): %s", e.Field, e.Reason)
}

// HTTPError is a non-2xx upstream response.
type HTTPError struct {
	Endpoint   string
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s error (status %d) on %s: %s: %v",
			e.ErrorClass, e.StatusCode, e.Endpoint, e.Message, e.Err)
	}
	return fmt.Sprintf("upstream %s error (status %d) on %s: %s",
		e.ErrorClass, e.StatusCode, e.Endpoint, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *HTTPError) Unwrap() error {
	return e.Err
}

// NetworkError is a transport-level failure (DNS, timeout, connection reset).
type NetworkError struct {
	Endpoint string

	// RateLimited is set when the transport failure message indicates rate
	// limiting; such failures are retried like a 429.
	RateLimited bool

	Err error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error on %s: %v", e.Endpoint, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// DecodeError reports a 2xx response whose payload could not be decoded or
// failed validation.
type DecodeError struct {
	Endpoint string
	Err      error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s response: %v", e.Endpoint, e.Err)
}

// Unwrap matches both ErrMalformedPayload and the underlying cause.
func (e *DecodeError) Unwrap() []error {
	return []error{ErrMalformedPayload, e.Err}
}

// classOf returns the ErrorClass carried by err, or "" if it has none.
func classOf(err error) ErrorClass {
	var (
		httpErr   *HTTPError
		netErr    *NetworkError
		decodeErr *DecodeError
		cfgErr    *ConfigurationError
	)

	switch {
	case errors.As(err, &httpErr):
		return httpErr.ErrorClass
	case errors.As(err, &netErr):
		if netErr.RateLimited {
			return ErrorClassRateLimit
		}
		return ErrorClassNetwork
	case errors.As(err, &decodeErr):
		return ErrorClassDecode
	case errors.As(err, &cfgErr):
		return ErrorClassConfig
	default:
		return ""
	}
}

// shouldRetry determines if an error should be retried based on its classification.
// Only rate limiting is retried; every other failure surfaces immediately.
func shouldRetry(errorClass ErrorClass) bool {
	return errorClass == ErrorClassRateLimit
}

// classifyStatus maps a non-2xx status code to its ErrorClass.
func classifyStatus(statusCode int) ErrorClass {
	switch {
	case statusCode == 429:
		return ErrorClassRateLimit
	case statusCode >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

var rateLimitMarkers = []string{"rate limit", "ratelimit", "too many requests", "429"}

// isRateLimitMessage reports whether a transport error message indicates
// upstream rate limiting.
func isRateLimitMessage(msg string) bool {
	msg = strings.ToLower(msg)
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
