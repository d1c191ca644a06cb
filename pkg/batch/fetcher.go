package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/nihonguide/travel-api-client/pkg/fallback"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Config holds batch fetcher configuration
type Config struct {
	// MaxConcurrency is the maximum number of lookups in flight.
	// The upstream rate limits aggressively, so keep this small.
	MaxConcurrency int
	// Timeout per lookup
	Timeout time.Duration
}

// DefaultConfig returns the default configuration for listing pages
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 5,
		Timeout:        15 * time.Second,
	}
}

// Fetcher resolves batches of place names
type Fetcher struct {
	lookup fallback.PlaceLookup
	config Config
}

// NewFetcher creates a new batch fetcher
func NewFetcher(lookup fallback.PlaceLookup, config Config) *Fetcher {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 5
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	return &Fetcher{
		lookup: lookup,
		config: config,
	}
}

// Places resolves every name, falling back per item. results[i] always
// corresponds to names[i]. If ctx ends before every name was looked up,
// the unresolved slots hold fallback records and the context error is returned.
func (f *Fetcher) Places(ctx context.Context, names []string) ([]fallback.PlaceResult, error) {
	start := time.Now()
	results := make([]fallback.PlaceResult, len(names))
	if len(names) == 0 {
		return results, nil
	}

	log.Info().
		Int("places", len(names)).
		Int("workers", f.config.MaxConcurrency).
		Msg("Starting batch place lookup")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.config.MaxConcurrency)

	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = fallback.PlaceResult{Place: fallback.Place(name), Source: fallback.SourceFallback, Err: err}
				return err
			}

			itemCtx, cancel := context.WithTimeout(gctx, f.config.Timeout)
			defer cancel()
			results[i] = fallback.ResolvePlace(itemCtx, f.lookup, name)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Warn().
			Err(err).
			Int("places", len(names)).
			Msg("Batch interrupted - returning partial results")
		return results, fmt.Errorf("batch interrupted: %w", err)
	}

	fallbacks := 0
	for _, r := range results {
		if r.IsFallback() {
			fallbacks++
		}
	}

	log.Info().
		Int("places", len(names)).
		Int("fallbacks", fallbacks).
		Dur("duration", time.Since(start)).
		Msg("Batch complete")

	return results, nil
}
