// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

// Package paginator walks a newest-first post stream backward through time
// with a max-id cursor.
//
// Every page request goes through the shared throttle queue. Pages are merged
// into a Collection keyed by record ID, so overlapping pages never produce
// duplicates. A walk stops when the upstream returns an empty page, when the
// oldest record of a page predates the stop date, when a page adds nothing
// new, or when the iteration ceiling is reached. Upstream failures abort the
// walk without retry; the periodic snapshots written along the way remain
// available to seed the next attempt.
package paginator

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/cadence/internal/logging"
	"github.com/tomtom215/cadence/internal/metrics"
	"github.com/tomtom215/cadence/internal/models"
	"github.com/tomtom215/cadence/internal/snapshot"
	"github.com/tomtom215/cadence/internal/throttle"
)

// Defaults used when Config fields are zero.
const (
	DefaultPageSize      = 40
	DefaultSafetyCeiling = 100
	DefaultSnapshotEvery = 5
)

// PageFetcher returns up to limit records of handle with id <= maxID,
// newest first. An empty maxID requests the newest page.
type PageFetcher interface {
	FetchPage(ctx context.Context, handle string, maxID models.RecordID, limit int) ([]models.ActivityRecord, error)
}

// StopReason explains why a walk ended.
type StopReason string

const (
	StopNone            StopReason = ""
	StopEmptyPage       StopReason = "empty_page"
	StopBoundaryReached StopReason = "boundary_reached"
	StopNoProgress      StopReason = "no_progress"
	StopSafetyCeiling   StopReason = "safety_ceiling"
	StopError           StopReason = "error"
)

// Config tunes a Paginator.
type Config struct {
	PageSize      int
	SafetyCeiling int
	SnapshotEvery int
}

func (c Config) withDefaults() Config {
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.SafetyCeiling <= 0 {
		c.SafetyCeiling = DefaultSafetyCeiling
	}
	if c.SnapshotEvery <= 0 {
		c.SnapshotEvery = DefaultSnapshotEvery
	}
	return c
}

// Request describes one walk.
type Request struct {
	// Handle is the social account being walked.
	Handle string

	// StopDate ends the walk once a page reaches posts created before it.
	// Empty means walk until the stream is exhausted.
	StopDate models.Day

	// Seed records are merged before the first page is fetched.
	Seed []models.ActivityRecord

	// SeedCursor is the first max-id to request. Empty starts from the newest post.
	SeedCursor models.RecordID
}

// Progress is reported after every non-empty page.
type Progress struct {
	Iteration  int
	NewRecords int
	Records    []models.ActivityRecord
	Cursor     models.RecordID
}

// Result is the outcome of a completed walk.
type Result struct {
	Records    []models.ActivityRecord
	Iterations int
	StopReason StopReason
	Cursor     models.RecordID
}

// Paginator drives page requests for any number of walks.
type Paginator struct {
	fetcher   PageFetcher
	scheduler throttle.Scheduler
	store     snapshot.Store
	cfg       Config
}

// New creates a Paginator. store may be nil to disable periodic snapshots.
func New(fetcher PageFetcher, scheduler throttle.Scheduler, store snapshot.Store, cfg Config) *Paginator {
	return &Paginator{
		fetcher:   fetcher,
		scheduler: scheduler,
		store:     store,
		cfg:       cfg.withDefaults(),
	}
}

// Walk starts a walk. Nothing is fetched until the first call to Next.
func (p *Paginator) Walk(req Request) *Walker {
	return &Walker{
		p:          p,
		req:        req,
		collection: models.NewCollection(req.Seed),
		cursor:     req.SeedCursor,
	}
}

// Collect runs a walk to completion, calling progress after every
// non-empty page. On error the returned Result holds what was collected
// before the failure.
func (p *Paginator) Collect(ctx context.Context, req Request, progress func(Progress)) (*Result, error) {
	w := p.Walk(req)
	for w.Next(ctx) {
		if progress != nil {
			progress(w.Progress())
		}
	}
	return w.Result(), w.Err()
}

// Walker is one in-progress walk. Use it like bufio.Scanner:
//
//	w := p.Walk(req)
//	for w.Next(ctx) {
//	    render(w.Records())
//	}
//	if err := w.Err(); err != nil { ... }
//
// A Walker is not safe for concurrent use.
type Walker struct {
	p          *Paginator
	req        Request
	collection *models.Collection
	cursor     models.RecordID
	iteration  int
	lastAdded  int
	reason     StopReason
	err        error
}

// Next fetches and merges one page. It returns false once the walk has
// stopped; a page that triggers a stop is still reported by returning true.
func (w *Walker) Next(ctx context.Context) bool {
	if w.reason != StopNone {
		return false
	}
	if w.iteration >= w.p.cfg.SafetyCeiling {
		w.stop(ctx, StopSafetyCeiling)
		return false
	}
	w.iteration++

	handle, cursor, limit := w.req.Handle, w.cursor, w.p.cfg.PageSize
	page, err := throttle.Do(ctx, w.p.scheduler, func() ([]models.ActivityRecord, error) {
		return w.p.fetcher.FetchPage(ctx, handle, cursor, limit)
	})
	if err != nil {
		metrics.RecordPage(pageErrorOutcome(err), 0)
		w.err = fmt.Errorf("fetch page %d of %s: %w", w.iteration, handle, err)
		w.stop(ctx, StopError)
		return false
	}
	if len(page) == 0 {
		metrics.RecordPage("empty", 0)
		w.stop(ctx, StopEmptyPage)
		return false
	}
	metrics.RecordPage("ok", len(page))

	w.lastAdded = w.collection.Merge(page)
	oldest, _ := models.OldestRecord(page)
	next, err := oldest.ID.Prev()
	if err != nil {
		// The upstream returned id 0; nothing can be older.
		w.stop(ctx, StopEmptyPage)
		return true
	}
	w.cursor = next

	logging.Ctx(ctx).Debug().
		Str("handle", handle).
		Int("iteration", w.iteration).
		Int("page_records", len(page)).
		Int("new_records", w.lastAdded).
		Int("total_records", w.collection.Len()).
		Str("cursor", string(w.cursor)).
		Msg("Page merged")

	if w.iteration%w.p.cfg.SnapshotEvery == 0 {
		w.saveSnapshot(ctx)
	}

	switch {
	case w.req.StopDate != "" && oldest.CreatedAt.Before(w.req.StopDate.Start()):
		w.stop(ctx, StopBoundaryReached)
	case w.lastAdded == 0:
		w.stop(ctx, StopNoProgress)
	}
	return true
}

func (w *Walker) stop(ctx context.Context, reason StopReason) {
	w.reason = reason
	metrics.PaginatorStops.WithLabelValues(string(reason)).Inc()
	logging.Ctx(ctx).Debug().
		Str("handle", w.req.Handle).
		Str("reason", string(reason)).
		Int("iterations", w.iteration).
		Int("total_records", w.collection.Len()).
		Msg("Walk stopped")
}

// saveSnapshot writes a periodic checkpoint. A failed write is logged and
// the walk continues.
func (w *Walker) saveSnapshot(ctx context.Context) {
	if w.p.store == nil {
		return
	}
	if err := w.p.store.Put(ctx, snapshot.Key(w.req.Handle), w.collection.Records()); err != nil {
		logging.Ctx(ctx).Warn().Err(err).
			Str("handle", w.req.Handle).
			Int("iteration", w.iteration).
			Msg("Failed to write periodic snapshot")
	}
}

// Records returns every record collected so far, including the seed.
func (w *Walker) Records() []models.ActivityRecord {
	return w.collection.Records()
}

// Progress describes the state after the most recent page.
func (w *Walker) Progress() Progress {
	return Progress{
		Iteration:  w.iteration,
		NewRecords: w.lastAdded,
		Records:    w.collection.Records(),
		Cursor:     w.cursor,
	}
}

// StopReason returns why the walk ended, or StopNone while it is running.
func (w *Walker) StopReason() StopReason {
	return w.reason
}

// Err returns the upstream error that aborted the walk, if any.
func (w *Walker) Err() error {
	return w.err
}

// Result summarizes the walk.
func (w *Walker) Result() *Result {
	return &Result{
		Records:    w.collection.Records(),
		Iterations: w.iteration,
		StopReason: w.reason,
		Cursor:     w.cursor,
	}
}

// upstreamRejecter is implemented by errors that carry an upstream error payload.
type upstreamRejecter interface {
	UpstreamRejected() bool
}

func pageErrorOutcome(err error) string {
	var r upstreamRejecter
	if errors.As(err, &r) && r.UpstreamRejected() {
		return "rejected"
	}
	return "error"
}
