// Package batch resolves many place names concurrently for listing pages.
//
// A listing page shows a dozen or more places at once. Fetcher spreads the
// lookups over a bounded pool of goroutines and falls back per item, so one
// failed lookup never blanks the page.
//
// Example usage:
//
//	fetcher := batch.NewFetcher(travelClient, batch.DefaultConfig())
//	results, err := fetcher.Places(ctx, []string{"Tokyo Tower", "Senso-ji"})
//
// The fetcher:
//   - Runs at most MaxConcurrency lookups at a time (default 5)
//   - Bounds each lookup by Timeout
//   - Returns results in input order, each tagged upstream or fallback
//   - Leaves duplicate names to the client's request coalescing
//   - Returns partial results and the context error if ctx ends early
package batch
