package coalesce

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var coalesceRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "travel_coalesce_requests_total",
		Help: "Coalesced calls by outcome",
	},
	[]string{"outcome"}, // "issued", "joined", "window"
)
