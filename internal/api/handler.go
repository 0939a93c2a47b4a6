// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

// Package api serves the HTTP surface of cadence: health probes, completed
// activity series, live run streams over WebSocket and cache refreshes.
//
// Every JSON endpoint answers with the APIResponse envelope. Streams use the
// message format of the websocket package.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/cadence/internal/ingest"
	"github.com/tomtom215/cadence/internal/logging"
	"github.com/tomtom215/cadence/internal/models"
	"github.com/tomtom215/cadence/internal/validation"
	ws "github.com/tomtom215/cadence/internal/websocket"
)

// ActivityService is the part of ingest.Service the handlers use.
type ActivityService interface {
	Subscribe(pair models.IdentityPair, opts ingest.Options) *ingest.Subscription
	FinalResult(ctx context.Context, pair models.IdentityPair) ([]models.MergedDayRecord, bool)
	Invalidate(ctx context.Context, pair models.IdentityPair) error
	InFlight(pair models.IdentityPair) bool
	Running() int
}

// ReadinessCheck reports whether one dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// HandlerConfig wires a Handler. Service is required.
type HandlerConfig struct {
	Service ActivityService
	Hub     *ws.Hub

	// Checks are run by the readiness probe, keyed by dependency name.
	Checks map[string]ReadinessCheck

	// CORSOrigins gates WebSocket upgrades. "*" allows any origin,
	// including clients that send none.
	CORSOrigins []string
}

// Handler holds the dependencies of every endpoint.
type Handler struct {
	service   ActivityService
	hub       *ws.Hub
	checks    map[string]ReadinessCheck
	origins   []string
	startTime time.Time
}

// NewHandler creates a handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		service:   cfg.Service,
		hub:       cfg.Hub,
		checks:    cfg.Checks,
		origins:   cfg.CORSOrigins,
		startTime: time.Now(),
	}
}

// pairRequest carries the path handles through validation.
type pairRequest struct {
	CodeHandle   string `validate:"required,max=64,handle"`
	SocialHandle string `validate:"required,max=64,handle"`
}

// pairFromRequest reads and validates {code} and {social}. On failure it
// writes the 400 response and returns false.
func pairFromRequest(w http.ResponseWriter, r *http.Request) (models.IdentityPair, bool) {
	req := pairRequest{
		CodeHandle:   chi.URLParam(r, "code"),
		SocialHandle: chi.URLParam(r, "social"),
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		NewResponseWriter(w, r).ValidationError(apiErr.Message, apiErr.Details)
		return models.IdentityPair{}, false
	}
	return models.IdentityPair{CodeHandle: req.CodeHandle, SocialHandle: req.SocialHandle}, true
}

func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin allows configured origins. A missing Origin header
// is only accepted when every origin is allowed.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	for _, allowed := range h.origins {
		if allowed == "*" {
			return true
		}
		if origin != "" && strings.EqualFold(allowed, origin) {
			return true
		}
	}

	logging.Ctx(r.Context()).Warn().
		Str("origin", sanitizeLogValue(origin)).
		Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// sanitizeLogValue escapes control characters so a header cannot forge
// log lines.
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			b.WriteString(`\x`)
			b.WriteByte("0123456789abcdef"[r>>4])
			b.WriteByte("0123456789abcdef"[r&0xF])
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
