// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

// Package metrics holds the Prometheus collectors for Cadence.
//
// Collectors are registered on the default registry at package init through
// promauto and served by the /metrics endpoint.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Upstream page fetches
	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadence_pages_fetched_total",
			Help: "Total number of post-stream pages requested",
		},
		[]string{"outcome"}, // "ok", "empty", "rejected", "error"
	)

	PageRecords = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cadence_page_records",
			Help:    "Number of records returned per page",
			Buckets: []float64{0, 1, 5, 10, 20, 40, 80, 100, 200},
		},
	)

	PaginatorStops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadence_paginator_stops_total",
			Help: "Paginator terminations by reason",
		},
		[]string{"reason"}, // "empty_page", "boundary_reached", "no_progress", "safety_ceiling", "error"
	)

	ContributionFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadence_contribution_fetches_total",
			Help: "Contribution series fetches by cache result",
		},
		[]string{"result"}, // "hit", "miss", "error"
	)

	// Throttle queue
	ThrottleQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cadence_throttle_queue_length",
			Help: "Tasks waiting for a throttle window",
		},
	)

	ThrottleAdmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadence_throttle_admitted_total",
			Help: "Tasks admitted by the throttle queue",
		},
		[]string{"path"}, // "immediate", "drained"
	)

	// Runs
	RunsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cadence_runs_in_flight",
			Help: "Ingestion runs currently in flight",
		},
	)

	RunSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cadence_run_subscribers",
			Help: "Subscribers attached to in-flight runs",
		},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cadence_run_duration_seconds",
			Help:    "Duration of ingestion runs",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"outcome"},
	)

	RunOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadence_runs_total",
			Help: "Completed ingestion runs by outcome",
		},
		[]string{"outcome"}, // "success", "upstream_rejected", "transport", "no_boundary", "error"
	)

	// Snapshot cache
	SnapshotOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadence_snapshot_operations_total",
			Help: "Snapshot store operations",
		},
		[]string{"backend", "operation", "outcome"},
	)

	SnapshotRecords = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cadence_snapshot_records",
			Help:    "Records written per snapshot",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		},
		[]string{"backend"},
	)

	// Result cache
	ResultLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadence_result_lookups_total",
			Help: "Final-result lookups by source",
		},
		[]string{"source"}, // "cache", "archive", "miss"
	)

	// API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadence_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cadence_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// WebSocket
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cadence_websocket_connections",
			Help: "Current number of active stream connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cadence_websocket_messages_sent_total",
			Help: "Total number of stream messages sent",
		},
	)

	// Circuit breaker
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cadence_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadence_circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadence_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Events
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadence_events_published_total",
			Help: "Run-completed events published",
		},
		[]string{"outcome"},
	)
)

// RecordRun records the duration and outcome of one ingestion run.
func RecordRun(outcome string, duration time.Duration) {
	RunOutcomes.WithLabelValues(outcome).Inc()
	RunDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordPage records one page fetch.
func RecordPage(outcome string, records int) {
	PagesFetched.WithLabelValues(outcome).Inc()
	if outcome == "ok" || outcome == "empty" {
		PageRecords.Observe(float64(records))
	}
}
