// Package metrics provides the Prometheus registry used by the travel API client.
// All metrics are defined in their respective packages (client, coalesce,
// cache, ratelimit) to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer exposes the metrics registered on Registry; the gateway serves it on /metrics.
var Gatherer = prometheus.DefaultGatherer

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - travel_api_requests_total{endpoint, status} (Counter): Upstream attempts by endpoint and HTTP status
//   - travel_api_request_duration_seconds{endpoint} (Histogram): Logical request duration, retries included
//   - travel_api_errors_total{class} (Counter): Errors by class (config, client, server, rate_limit, network, decode)
//
// Retry Metrics (pkg/client):
//   - travel_api_retries_total{error_class} (Counter): Retry attempts by error class
//   - travel_api_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - travel_api_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Coalescing Metrics (pkg/coalesce):
//   - travel_coalesce_requests_total{outcome} (Counter): issued, joined (in flight), window (resolved)
//
// Shared Cache Metrics (pkg/cache):
//   - travel_cache_hits_total{layer="redis"} (Counter): Shared tier hits
//   - travel_cache_misses_total (Counter): Shared tier misses
//   - travel_cache_writes_bytes_total{layer="redis"} (Counter): Bytes written
//   - travel_cache_errors_total{operation} (Counter): Shared tier operation errors
//
// Rate Limit Metrics (pkg/ratelimit):
//   - travel_api_rate_limit_remaining (Gauge): Last X-RateLimit-Remaining value
//   - travel_api_rate_limited_total (Counter): 429 responses observed
//
// Fallback Metrics (pkg/fallback):
//   - travel_fallbacks_total{kind} (Counter): Placeholder records served in place of upstream data
//
// Example Prometheus Queries:
//
//   # Upstream calls saved by coalescing
//   sum(rate(travel_coalesce_requests_total{outcome!="issued"}[5m])) /
//   sum(rate(travel_coalesce_requests_total[5m]))
//
//   # Rate limit pressure
//   rate(travel_api_retries_total{error_class="rate_limit"}[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(travel_api_request_duration_seconds_bucket[5m]))
