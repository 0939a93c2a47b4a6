// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package api

import (
	"net/http"
	"strconv"

	"github.com/tomtom215/cadence/internal/ingest"
	"github.com/tomtom215/cadence/internal/logging"
	"github.com/tomtom215/cadence/internal/models"
	ws "github.com/tomtom215/cadence/internal/websocket"
)

// ActivityResponse is the completed series of one identity pair.
type ActivityResponse struct {
	CodeHandle   string                   `json:"code_handle"`
	SocialHandle string                   `json:"social_handle"`
	InFlight     bool                     `json:"in_flight"`
	Days         []models.MergedDayRecord `json:"days"`
}

// RefreshResponse reports what a refresh did.
type RefreshResponse struct {
	Invalidated bool `json:"invalidated"`
	RunStarted  bool `json:"run_started"`
	InFlight    bool `json:"in_flight"`
}

// Activity returns the last completed series of a pair. It never starts a
// run; 404 means no run has completed yet.
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	pair, ok := pairFromRequest(w, r)
	if !ok {
		return
	}

	rw := NewResponseWriter(w, r)
	inFlight := h.service.InFlight(pair)
	series, found := h.service.FinalResult(r.Context(), pair)
	if !found {
		rw.ErrorWithDetails(http.StatusNotFound, ErrCodeNotFound,
			"No completed run for this pair; open the stream endpoint to start one",
			map[string]interface{}{"in_flight": inFlight})
		return
	}
	if series == nil {
		series = []models.MergedDayRecord{}
	}

	rw.Success(ActivityResponse{
		CodeHandle:   pair.CodeHandle,
		SocialHandle: pair.SocialHandle,
		InFlight:     inFlight,
		Days:         series,
	})
}

// ActivityStream upgrades to a WebSocket and relays the pair's run: it
// joins the in-flight run or starts one. ?fresh=true makes a started run
// ignore its stored snapshot.
func (h *Handler) ActivityStream(w http.ResponseWriter, r *http.Request) {
	pair, ok := pairFromRequest(w, r)
	if !ok {
		return
	}
	opts, ok := parseRunOptions(w, r)
	if !ok {
		return
	}
	if h.hub == nil {
		logging.Warn().Msg("WebSocket connection rejected: hub not initialized")
		NewResponseWriter(w, r).ServiceUnavailable("WebSocket service unavailable")
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		logging.Ctx(r.Context()).Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	sub := h.service.Subscribe(pair, opts)
	logging.Ctx(r.Context()).Info().
		Str("pair", pair.Key()).
		Bool("leader", sub.Leader()).
		Bool("fresh", opts.FreshPass).
		Msg("Activity stream opened")

	client := ws.NewStreamClient(h.hub, conn, sub)
	h.hub.Register <- client
	client.Start()
}

// Refresh drops the cached contributions and post snapshot of a pair. With
// ?run=true it also starts a run in the background; the run is shared
// with anyone who streams the pair while it is in flight.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	pair, ok := pairFromRequest(w, r)
	if !ok {
		return
	}
	opts, ok := parseRunOptions(w, r)
	if !ok {
		return
	}
	startRun, ok := parseBoolQuery(w, r, "run")
	if !ok {
		return
	}

	rw := NewResponseWriter(w, r)
	if err := h.service.Invalidate(r.Context(), pair); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Str("pair", pair.Key()).Msg("Failed to invalidate caches")
		rw.InternalError("Failed to invalidate caches")
		return
	}

	resp := RefreshResponse{Invalidated: true}
	status := http.StatusOK
	if startRun {
		sub := h.service.Subscribe(pair, opts)
		resp.RunStarted = sub.Leader()
		sub.Unsubscribe()
		status = http.StatusAccepted
	}
	resp.InFlight = h.service.InFlight(pair)

	rw.SuccessWithStatus(status, resp)
}

// FeedStream upgrades to a WebSocket that receives a run_completed message
// for every finished run.
func (h *Handler) FeedStream(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		logging.Warn().Msg("WebSocket connection rejected: hub not initialized")
		NewResponseWriter(w, r).ServiceUnavailable("WebSocket service unavailable")
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := ws.NewClient(h.hub, conn)
	h.hub.Register <- client
	client.Start()
}

func parseRunOptions(w http.ResponseWriter, r *http.Request) (ingest.Options, bool) {
	fresh, ok := parseBoolQuery(w, r, "fresh")
	return ingest.Options{FreshPass: fresh}, ok
}

// parseBoolQuery reads an optional boolean query parameter. On a malformed
// value it writes the 400 response and returns false.
func parseBoolQuery(w http.ResponseWriter, r *http.Request, name string) (value, ok bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, true
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		NewResponseWriter(w, r).ValidationError(name+" must be true or false",
			map[string]interface{}{"field": name, "value": raw})
		return false, false
	}
	return value, true
}
