package coalesce

import (
	"context"
	"time"

	"github.com/nihonguide/travel-api-client/pkg/clock"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// DefaultWindow is how long a resolved result keeps answering identical calls.
const DefaultWindow = 5 * time.Second

// Outcome labels for coalesceRequestsTotal.
const (
	outcomeIssued = "issued"
	outcomeJoined = "joined"
	outcomeWindow = "window"
)

// Group coalesces calls that share a key. While a call is in flight every
// caller for that key waits for it; once it resolves, its result (success or
// failure) answers callers for that key until the window elapses.
//
// Each Group owns its table; two Groups never share results.
type Group struct {
	flight singleflight.Group
	store  *Store
	window time.Duration
	logger zerolog.Logger
	clock  clock.Clock
}

// NewGroup creates a Group. A nil clock means wall time; a zero window keeps
// only in-flight coalescing.
func NewGroup(window time.Duration, clk clock.Clock, logger zerolog.Logger) *Group {
	if clk == nil {
		clk = clock.Real()
	}
	return &Group{
		store:  NewStore(clk),
		window: window,
		logger: logger,
		clock:  clk,
	}
}

// Window returns the post-resolution coalescing window.
func (g *Group) Window() time.Duration {
	return g.window
}

// Len returns the number of resolved entries still held.
func (g *Group) Len() int {
	return g.store.Len()
}

// Forget drops any resolved result for key so the next call goes upstream.
func (g *Group) Forget(key string) {
	g.store.Delete(key)
}

type flightOutcome struct {
	result     Result
	fromWindow bool
}

// Do returns the result for key, calling fn only when no call for key is in
// flight and no resolved result is inside the window. shared reports whether
// the result came from another caller's call.
//
// fn runs detached from ctx cancellation so that waiters are never left with
// a result cut short by the caller that happened to start it. If ctx ends
// first, Do returns ctx.Err() but the call still completes and fills the window.
func (g *Group) Do(ctx context.Context, key string, fn func(ctx context.Context) (any, error)) (value any, shared bool, err error) {
	if r, ok := g.store.Get(key); ok {
		coalesceRequestsTotal.WithLabelValues(outcomeWindow).Inc()
		g.logger.Debug().Str("key", key).Msg("Served from coalescing window")
		return r.Value, true, r.Err
	}

	issued := false
	detached := context.WithoutCancel(ctx)
	ch := g.flight.DoChan(key, func() (any, error) {
		// A flight for key may have resolved between the lookup above and
		// joining this one.
		if r, ok := g.store.Get(key); ok {
			return flightOutcome{result: r, fromWindow: true}, nil
		}

		issued = true
		v, err := fn(detached)
		r := Result{Value: v, Err: err, ResolvedAt: g.clock.Now()}

		g.store.Put(key, r, g.window)
		if n := g.store.Sweep(); n > 0 {
			g.logger.Debug().Int("expired", n).Msg("Swept coalescing window")
		}
		return flightOutcome{result: r}, nil
	})

	select {
	case res := <-ch:
		out := res.Val.(flightOutcome)
		switch {
		case out.fromWindow:
			coalesceRequestsTotal.WithLabelValues(outcomeWindow).Inc()
		case issued:
			coalesceRequestsTotal.WithLabelValues(outcomeIssued).Inc()
		default:
			coalesceRequestsTotal.WithLabelValues(outcomeJoined).Inc()
			g.logger.Debug().Str("key", key).Msg("Joined in-flight request")
		}
		return out.result.Value, !issued, out.result.Err
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}
