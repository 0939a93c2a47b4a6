// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/tomtom215/cadence/internal/logging"
)

// readinessTimeout bounds all readiness checks of one probe.
const readinessTimeout = 2 * time.Second

// CheckResult is the outcome of one readiness check.
type CheckResult struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// HealthLive answers the liveness probe. It never touches dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]interface{}{
		"alive":          true,
		"uptime_seconds": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady answers the readiness probe: 200 when every check passes,
// 503 otherwise.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	results, ready := h.runChecks(ctx)
	rw := NewResponseWriter(w, r)
	if !ready {
		rw.ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Service not ready", results)
		return
	}

	running := 0
	if h.service != nil {
		running = h.service.Running()
	}
	rw.Success(map[string]interface{}{
		"ready":          true,
		"checks":         results,
		"runs_in_flight": running,
		"uptime_seconds": time.Since(h.startTime).Seconds(),
	})
}

// runChecks runs every check in name order.
func (h *Handler) runChecks(ctx context.Context) ([]CheckResult, bool) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	ready := true
	results := make([]CheckResult, 0, len(names))
	for _, name := range names {
		result := CheckResult{Name: name, OK: true}
		if err := h.checks[name](ctx); err != nil {
			ready = false
			result.OK = false
			result.Error = err.Error()
			logging.Ctx(ctx).Warn().Err(err).Str("check", name).Msg("Readiness check failed")
		}
		results = append(results, result)
	}
	return results, ready
}
