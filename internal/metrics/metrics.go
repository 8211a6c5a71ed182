// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for:
// - mutation queue depth and enqueue dedup decisions
// - sync runs and per-mutation delivery outcomes
// - event bus subscriber failures
// - remote service circuit breakers
// - status websocket connections

var (
	// Queue Metrics
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "liftsync_queue_depth",
			Help: "Number of records currently stored in a mutation queue",
		},
		[]string{"kind", "queue"}, // queue: "pending", "failed"
	)

	QueueEnqueues = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liftsync_queue_enqueues_total",
			Help: "Enqueue calls by mutation type and dedup decision",
		},
		[]string{"kind", "type", "decision"}, // "appended", "merged", "replaced", "cancelled", "dropped", "unchanged"
	)

	QueueQuarantined = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liftsync_queue_quarantined_total",
			Help: "Mutations moved to the failed queue",
		},
		[]string{"kind"},
	)

	QueueCorruptReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liftsync_queue_corrupt_reads_total",
			Help: "Persisted queue reads that could not be decoded and were treated as empty",
		},
		[]string{"key"},
	)

	// Sync Metrics
	SyncRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "liftsync_sync_run_duration_seconds",
			Help:    "Duration of orchestrator runs in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	SyncRunsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liftsync_sync_runs_skipped_total",
			Help: "Run requests dropped before any delivery",
		},
		[]string{"reason"}, // "in_progress", "offline", "unauthenticated"
	)

	SyncMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liftsync_sync_mutations_total",
			Help: "Per-mutation delivery outcomes",
		},
		[]string{"kind", "type", "outcome"}, // "synced", "transient", "terminal", "exhausted", "unknown_type"
	)

	SyncInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "liftsync_sync_in_progress",
			Help: "1 while an orchestrator run is active",
		},
	)

	RefreshRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liftsync_refresh_runs_total",
			Help: "User data refresh attempts",
		},
		[]string{"result"}, // "ran", "throttled", "error"
	)

	// Event Bus Metrics
	EventBusSubscriberFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "liftsync_eventbus_subscriber_failures_total",
			Help: "Event bus subscribers that panicked during emit",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "liftsync_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liftsync_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liftsync_circuit_breaker_requests_total",
			Help: "Requests through a circuit breaker by result",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "liftsync_websocket_connections",
			Help: "Connected status websocket clients",
		},
	)

	// API Metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "liftsync_api_request_duration_seconds",
			Help:    "Local API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// RecordSyncRun records the duration of a completed orchestrator run.
func RecordSyncRun(duration time.Duration) {
	SyncRunDuration.Observe(duration.Seconds())
}

// RecordSyncSkipped counts a dropped run request.
func RecordSyncSkipped(reason string) {
	SyncRunsSkipped.WithLabelValues(reason).Inc()
}

// RecordMutationOutcome counts one delivery attempt outcome.
func RecordMutationOutcome(kind, mutationType, outcome string) {
	SyncMutations.WithLabelValues(kind, mutationType, outcome).Inc()
}

// RecordEnqueue counts an enqueue decision.
func RecordEnqueue(kind, mutationType, decision string) {
	QueueEnqueues.WithLabelValues(kind, mutationType, decision).Inc()
}

// UpdateQueueDepth sets both queue depth gauges for a kind.
func UpdateQueueDepth(kind string, pending, failed int) {
	QueueDepth.WithLabelValues(kind, "pending").Set(float64(pending))
	QueueDepth.WithLabelValues(kind, "failed").Set(float64(failed))
}

// SetSyncInProgress toggles the run-active gauge.
func SetSyncInProgress(active bool) {
	if active {
		SyncInProgress.Set(1)
		return
	}
	SyncInProgress.Set(0)
}
