// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanscore_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPResponseTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fanscore_http_response_time_seconds",
			Help:    "Histogram of response times",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	ScoreRecalculations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fanscore_recalculations_total",
			Help: "Number of fan score recomputations",
		},
	)

	MetricsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanscore_metrics_ingested_total",
			Help: "Platform metric rows ingested",
		},
		[]string{"platform"},
	)

	FanEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanscore_fan_events_total",
			Help: "Fan events appended to the event log",
		},
		[]string{"event_type"},
	)

	TokensIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fanscore_tokens_issued_total",
			Help: "Verification tokens issued",
		},
	)

	TokenVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanscore_token_verifications_total",
			Help: "Verification attempts by outcome",
		},
		[]string{"status"},
	)

	TokensRevoked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fanscore_tokens_revoked_total",
			Help: "Verification tokens revoked",
		},
	)

	SnapshotRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanscore_snapshot_runs_total",
			Help: "Daily snapshot runs per tenant by result",
		},
		[]string{"result"},
	)

	FanSnapshotsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanscore_fan_snapshots_total",
			Help: "Fan snapshot writes, split into created and already present",
		},
		[]string{"outcome"},
	)
)
