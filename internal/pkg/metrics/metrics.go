package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SyncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ftsync_runs_total",
		Help: "Sync passes by final status",
	}, []string{"status"})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ftsync_run_duration_seconds",
		Help:    "Wall-clock duration of a sync pass",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 240, 300},
	})

	Skips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ftsync_skips_total",
		Help: "Candidate trades rejected by the filter engine",
	}, []string{"reason"})

	OrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ftsync_orders_total",
		Help: "Forward-test orders inserted",
	}, []string{"status", "allocation"})

	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ftsync_upstream_requests_total",
		Help: "Upstream HTTP requests by endpoint and status class",
	}, []string{"endpoint", "status"})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ftsync_latency_seconds",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	MLCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ftsync_ml_cache_total",
		Help: "ML score cache lookups",
	}, []string{"result"})
)
