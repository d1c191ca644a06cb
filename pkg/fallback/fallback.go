// Package fallback supplies placeholder data for callers that must render
// something when an upstream lookup fails.
//
// The client never hides failures. Page handlers decide to degrade, and this
// package makes that decision explicit: ResolvePlace returns a PlaceResult
// whose Source says whether the record is real.
package fallback

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/nihonguide/travel-api-client/pkg/client"
	"github.com/nihonguide/travel-api-client/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var fallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "travel_fallbacks_total",
	Help: "Placeholder records served in place of upstream data, by kind",
}, []string{"kind"})

// Rating bounds of a placeholder place.
const (
	MinRating = 3.5
	MaxRating = 5.0
)

// Source tells where a PlaceResult's record came from.
type Source string

const (
	SourceUpstream Source = "upstream"
	SourceFallback Source = "fallback"
)

// PlaceResult is a place record tagged with its origin. Err is the upstream
// failure that caused a fallback, kept for logging.
type PlaceResult struct {
	Place  *client.PlaceRecord `json:"place"`
	Source Source              `json:"source"`
	Err    error               `json:"-"`
}

// IsFallback reports whether the record is a placeholder.
func (r PlaceResult) IsFallback() bool {
	return r.Source == SourceFallback
}

// PlaceLookup is satisfied by *client.Client.
type PlaceLookup interface {
	SearchPlace(ctx context.Context, query string) (*client.PlaceRecord, error)
}

// Place returns a placeholder record for name. The same name always yields
// the same rating and review count.
func Place(name string) *client.PlaceRecord {
	h := fnv.New32a()
	h.Write([]byte(name))
	sum := h.Sum32()

	// 16 steps of 0.1 cover [3.5, 5.0].
	rating := MinRating + float64(sum%16)/10
	rating = math.Round(rating*10) / 10

	return &client.PlaceRecord{
		Name:        name,
		Rating:      rating,
		ReviewCount: 100 + int((sum>>8)%2900),
	}
}

// ResolvePlace searches for name and falls back to Place on any error.
func ResolvePlace(ctx context.Context, lookup PlaceLookup, name string) PlaceResult {
	place, err := lookup.SearchPlace(ctx, name)
	if err == nil {
		return PlaceResult{Place: place, Source: SourceUpstream}
	}

	fallbacksTotal.WithLabelValues("place").Inc()
	logger := logging.FromContext(ctx, "fallback")
	logger.Warn().
		Err(err).
		Str("place", name).
		Msg("Serving placeholder place")

	return PlaceResult{Place: Place(name), Source: SourceFallback, Err: err}
}
