// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

/*
Package middleware provides HTTP middleware shared by the API router.

Key Components:

  - RequestID: request tracking that feeds the logging context
  - PrometheusMetrics: request count and latency per route pattern

Both are plain func(http.Handler) http.Handler values and compose with chi:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)

Metrics are labelled with the matched chi route pattern rather than the raw
path, so /api/v1/activity/{code}/{social} is one series no matter how many
handles are queried. Requests that match no route are recorded as
"unmatched".

The response writer wrapper used for metrics forwards http.Hijacker and
http.Flusher, so WebSocket upgrades work behind it.
*/
package middleware
