package search

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	searchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "search_requests_total",
		Help: "Total number of search requests by outcome.",
	}, []string{"outcome"})

	cacheEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "search_cache_events_total",
		Help: "Search cache hits and misses.",
	}, []string{"result"})

	facetPartials = promauto.NewCounter(prometheus.CounterOpts{
		Name: "search_facet_partial_total",
		Help: "Searches that returned a partial facet summary.",
	})

	searchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "search_duration_seconds",
		Help:    "End-to-end search latency in seconds.",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	})
)
