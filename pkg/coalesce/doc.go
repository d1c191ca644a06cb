// Package coalesce deduplicates identical upstream calls.
//
// A Group keeps one table per owner. For a given key:
//
//   - while a call is in flight, every further caller waits for it;
//   - once the call resolves, the result (including an error) is kept for the
//     window (DefaultWindow, 5s) and handed to identical callers;
//   - after the window, the next caller issues a fresh call.
//
// Expiry is measured against a clock.Clock, so tests can drive the window
// with a virtual clock instead of sleeping.
//
//	group := coalesce.NewGroup(coalesce.DefaultWindow, nil, logger)
//	place, shared, err := group.Do(ctx, "places:query=Tokyo Tower", func(ctx context.Context) (any, error) {
//		return fetch(ctx)
//	})
package coalesce
