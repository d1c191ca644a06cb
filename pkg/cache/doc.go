// Package cache provides the optional Redis-backed shared tier that sits
// behind the client's in-process coalescing window.
//
// Several gateway replicas rendering the same page receive the same burst of
// place, weather and exchange-rate lookups. When a Redis client is configured,
// a successful GET payload is written here for the length of the coalescing
// window so that the other replicas can answer from it instead of calling the
// upstream API again.
//
// - Deterministic cache key generation (sorted query parameters)
// - TTL bounded by the coalescing window; entries are never persisted beyond it
// - Only validated 2xx payloads are stored; failures stay process-local
// - Prometheus metrics for observability
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.CacheKey{
//		Endpoint:    "/api/places",
//		QueryParams: url.Values{"query": []string{"Tokyo Tower"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// Cache miss - call upstream, then:
//		_ = manager.Set(ctx, key, cache.NewEntry(body, http.StatusOK, 5*time.Second))
//	}
//
// # Metrics
//
//   - travel_cache_hits_total{layer="redis"} - Cache hits
//   - travel_cache_misses_total - Cache misses
//   - travel_cache_writes_bytes_total{layer="redis"} - Bytes written
//   - travel_cache_errors_total{operation} - Cache operation errors
//
// A failing shared tier never fails a call; the client logs and goes upstream.
package cache
