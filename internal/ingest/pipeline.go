// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

// Package ingest runs the reconciliation pipeline for identity pairs and
// shares each run between every caller interested in the same pair.
//
// One run:
//
//  1. fetch the contribution series of the code handle; its earliest day is
//     the stop boundary for the post walk
//  2. seed the post walk from the snapshot store, unless a fresh pass was
//     requested
//  3. walk the post stream backward, reconciling and emitting the merged
//     series after every page
//  4. on success write the final snapshot, cache and archive the series, and
//     announce the run
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/cadence/internal/logging"
	"github.com/tomtom215/cadence/internal/models"
	"github.com/tomtom215/cadence/internal/paginator"
	"github.com/tomtom215/cadence/internal/reconcile"
	"github.com/tomtom215/cadence/internal/snapshot"
	"github.com/tomtom215/cadence/internal/source"
)

// ErrNoStopBoundary is returned when the contribution series is empty, so
// there is no date at which the post walk could stop. No page is fetched.
var ErrNoStopBoundary = errors.New("contribution series is empty: no stop boundary")

// Options adjust a single run.
type Options struct {
	// FreshPass ignores any stored snapshot and walks from the newest post.
	// Without it a run resumes backward from the oldest snapshotted post.
	FreshPass bool
}

// Outcome describes a completed run.
type Outcome struct {
	RunID      string
	Series     []models.MergedDayRecord
	Records    int
	Iterations int
	StopReason paginator.StopReason
	Resumed    bool
}

// Runner executes one pipeline run, calling emit with the merged series
// after every page.
type Runner interface {
	Run(ctx context.Context, pair models.IdentityPair, opts Options, emit func([]models.MergedDayRecord)) (*Outcome, error)
}

// Pipeline is the production Runner.
type Pipeline struct {
	contributions source.ContributionFetcher
	paginator     *paginator.Paginator
	snapshots     snapshot.Store
}

// NewPipeline wires a pipeline. snapshots may be nil to disable resume and
// the final snapshot write.
func NewPipeline(contributions source.ContributionFetcher, pag *paginator.Paginator, snapshots snapshot.Store) *Pipeline {
	return &Pipeline{
		contributions: contributions,
		paginator:     pag,
		snapshots:     snapshots,
	}
}

// Run implements Runner.
func (p *Pipeline) Run(ctx context.Context, pair models.IdentityPair, opts Options, emit func([]models.MergedDayRecord)) (*Outcome, error) {
	log := logging.Ctx(ctx).With().
		Str("code_handle", pair.CodeHandle).
		Str("social_handle", pair.SocialHandle).
		Logger()

	series, err := p.contributions.FetchContributions(ctx, pair.CodeHandle)
	if err != nil {
		return nil, fmt.Errorf("fetch contributions for %s: %w", pair.CodeHandle, err)
	}
	stopDate, ok := series.EarliestDay()
	if !ok {
		return nil, fmt.Errorf("%s: %w", pair.CodeHandle, ErrNoStopBoundary)
	}

	req := paginator.Request{Handle: pair.SocialHandle, StopDate: stopDate}
	resumed := false
	if !opts.FreshPass {
		resumed = p.seed(ctx, &req)
	}
	if resumed && emit != nil {
		emit(reconcile.Records(series.Points, req.Seed))
	}

	log.Info().
		Str("stop_date", string(stopDate)).
		Bool("resumed", resumed).
		Int("seed_records", len(req.Seed)).
		Str("seed_cursor", string(req.SeedCursor)).
		Msg("Starting post walk")

	result, err := p.paginator.Collect(ctx, req, func(pr paginator.Progress) {
		if emit != nil {
			emit(reconcile.Records(series.Points, pr.Records))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("walk posts of %s: %w", pair.SocialHandle, err)
	}

	if p.snapshots != nil {
		if err := p.snapshots.Put(ctx, snapshot.Key(pair.SocialHandle), result.Records); err != nil {
			log.Warn().Err(err).Msg("Failed to write final snapshot")
		}
	}

	out := &Outcome{
		RunID:      logging.RunIDFromContext(ctx),
		Series:     reconcile.Records(series.Points, result.Records),
		Records:    len(result.Records),
		Iterations: result.Iterations,
		StopReason: result.StopReason,
		Resumed:    resumed,
	}
	log.Info().
		Int("records", out.Records).
		Int("days", len(out.Series)).
		Int("iterations", out.Iterations).
		Str("stop_reason", string(out.StopReason)).
		Msg("Post walk complete")
	return out, nil
}

// seed loads the snapshot for req.Handle into req. An unreadable snapshot is
// logged and the walk starts fresh.
func (p *Pipeline) seed(ctx context.Context, req *paginator.Request) bool {
	if p.snapshots == nil {
		return false
	}
	records, found, err := p.snapshots.Get(ctx, snapshot.Key(req.Handle))
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("handle", req.Handle).Msg("Failed to read snapshot, starting fresh")
		return false
	}
	if !found || len(records) == 0 {
		return false
	}

	cursor, ok, err := snapshot.ResumePoint(records)
	if err != nil || !ok {
		// The oldest snapshotted post has id 0; keep the records but walk from the top.
		req.Seed = records
		return true
	}
	req.Seed = records
	req.SeedCursor = cursor
	return true
}
