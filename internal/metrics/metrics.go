package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestTotal counts HTTP requests by method and path prefix.
	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bunsearch_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	// RequestDuration is the latency of HTTP requests.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bunsearch_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	// SearchTotal counts searches by adapter family and outcome.
	SearchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bunsearch_searches_total",
			Help: "Total number of row searches",
		},
		[]string{"family", "status"},
	)
)
