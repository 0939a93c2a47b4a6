// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/cadence/internal/broadcast"
	"github.com/tomtom215/cadence/internal/cache"
	"github.com/tomtom215/cadence/internal/database"
	"github.com/tomtom215/cadence/internal/events"
	"github.com/tomtom215/cadence/internal/logging"
	"github.com/tomtom215/cadence/internal/metrics"
	"github.com/tomtom215/cadence/internal/models"
	"github.com/tomtom215/cadence/internal/snapshot"
	"github.com/tomtom215/cadence/internal/source"
)

// Stream payloads are merged series; every event carries the full series so far.
type (
	Subscription = broadcast.Subscription[[]models.MergedDayRecord]
	Event        = broadcast.Event[[]models.MergedDayRecord]
)

// ResultArchive stores the last completed series of each pair.
type ResultArchive interface {
	SaveResult(ctx context.Context, pairKey string, series []models.MergedDayRecord, completedAt time.Time) error
	LoadResult(ctx context.Context, pairKey string) (*database.StoredResult, bool, error)
}

// ContributionInvalidator drops a cached contribution series.
type ContributionInvalidator interface {
	Invalidate(handle string)
}

// Run outcome labels.
const (
	OutcomeSuccess          = "success"
	OutcomeUpstreamRejected = "upstream_rejected"
	OutcomeTransport        = "transport"
	OutcomeNoBoundary       = "no_boundary"
	OutcomeError            = "error"
)

// ServiceConfig wires a Service. Only Runner is required.
type ServiceConfig struct {
	Runner        Runner
	Archive       ResultArchive
	Publisher     events.Publisher
	Contributions ContributionInvalidator
	Snapshots     snapshot.Store

	// ResultTTL bounds how long a final series is served from memory.
	ResultTTL time.Duration

	// Buffer is the per-subscriber event buffer.
	Buffer int
}

// Service is the entry point for callers: it starts or joins runs, serves
// completed results and invalidates caches.
type Service struct {
	runner        Runner
	archive       ResultArchive
	publisher     events.Publisher
	contributions ContributionInvalidator
	snapshots     snapshot.Store

	broadcaster *broadcast.Broadcaster[[]models.MergedDayRecord]
	results     *cache.Cache[[]models.MergedDayRecord]
}

// NewService creates a service whose runs execute on ctx. Cancelling ctx
// is how the process stops outstanding runs at shutdown.
func NewService(ctx context.Context, cfg ServiceConfig) *Service {
	ttl := cfg.ResultTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Service{
		runner:        cfg.Runner,
		archive:       cfg.Archive,
		publisher:     publisher,
		contributions: cfg.Contributions,
		snapshots:     cfg.Snapshots,
		broadcaster:   broadcast.New[[]models.MergedDayRecord](ctx, cfg.Buffer),
		results:       cache.New[[]models.MergedDayRecord](ttl),
	}
}

// Subscribe joins the in-flight run for pair or starts one. opts only take
// effect when this call starts the run.
func (s *Service) Subscribe(pair models.IdentityPair, opts Options) *Subscription {
	return s.broadcaster.Subscribe(pair.Key(), func(ctx context.Context, emit func([]models.MergedDayRecord)) ([]models.MergedDayRecord, error) {
		return s.run(ctx, pair, opts, emit)
	})
}

// InFlight reports whether a run for pair is in progress.
func (s *Service) InFlight(pair models.IdentityPair) bool {
	return s.broadcaster.InFlight(pair.Key())
}

// Running returns the number of in-flight runs.
func (s *Service) Running() int {
	return s.broadcaster.Len()
}

func (s *Service) run(ctx context.Context, pair models.IdentityPair, opts Options, emit func([]models.MergedDayRecord)) ([]models.MergedDayRecord, error) {
	runID := logging.GenerateRunID()
	ctx = logging.ContextWithRunID(ctx, runID)
	started := time.Now()

	out, err := s.runner.Run(ctx, pair, opts, emit)
	outcome := classify(err)
	metrics.RecordRun(outcome, time.Since(started))
	s.announce(ctx, runID, pair, out, err)

	if err != nil {
		logging.Ctx(ctx).Error().Err(err).
			Str("pair", pair.Key()).
			Str("outcome", outcome).
			Dur("duration", time.Since(started)).
			Msg("Run failed")
		return nil, err
	}

	s.storeResult(ctx, pair.Key(), out.Series)
	logging.Ctx(ctx).Info().
		Str("pair", pair.Key()).
		Int("days", len(out.Series)).
		Dur("duration", time.Since(started)).
		Msg("Run complete")
	return out.Series, nil
}

func (s *Service) storeResult(ctx context.Context, key string, series []models.MergedDayRecord) {
	s.results.Set(key, series)
	if s.archive == nil {
		return
	}
	if err := s.archive.SaveResult(ctx, key, series, time.Now()); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("pair", key).Msg("Failed to archive result")
	}
}

func (s *Service) announce(ctx context.Context, runID string, pair models.IdentityPair, out *Outcome, runErr error) {
	event := events.NewRunCompleted(runID, pair.Key())
	if out != nil {
		event.Days = len(out.Series)
		event.Records = out.Records
		event.Iterations = out.Iterations
		event.StopReason = string(out.StopReason)
	}
	if runErr != nil {
		event.Err = runErr.Error()
	}
	if err := s.publisher.PublishRunCompleted(ctx, event); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("pair", pair.Key()).Msg("Failed to publish run event")
	}
}

// FinalResult returns the last completed series for pair, from memory or
// the archive.
func (s *Service) FinalResult(ctx context.Context, pair models.IdentityPair) ([]models.MergedDayRecord, bool) {
	key := pair.Key()
	if series, ok := s.results.Get(key); ok {
		metrics.ResultLookups.WithLabelValues("cache").Inc()
		return series, true
	}
	if s.archive != nil {
		stored, ok, err := s.archive.LoadResult(ctx, key)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("pair", key).Msg("Failed to load archived result")
		}
		if ok {
			metrics.ResultLookups.WithLabelValues("archive").Inc()
			s.results.Set(key, stored.Series)
			return stored.Series, true
		}
	}
	metrics.ResultLookups.WithLabelValues("miss").Inc()
	return nil, false
}

// Invalidate clears the cached contribution series of the code handle and
// the post snapshot of the social handle, so the next run refetches both.
// The last final result keeps being served until that run completes.
func (s *Service) Invalidate(ctx context.Context, pair models.IdentityPair) error {
	if s.contributions != nil {
		s.contributions.Invalidate(pair.CodeHandle)
	}
	if s.snapshots != nil {
		if err := s.snapshots.Delete(ctx, snapshot.Key(pair.SocialHandle)); err != nil {
			return err
		}
	}
	logging.Ctx(ctx).Info().Str("pair", pair.Key()).Msg("Caches invalidated")
	return nil
}

// Close stops the result cache sweeper.
func (s *Service) Close() {
	s.results.Close()
}

func classify(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrNoStopBoundary):
		return OutcomeNoBoundary
	case source.IsUpstreamRejected(err):
		return OutcomeUpstreamRejected
	case errors.Is(err, source.ErrTransport):
		return OutcomeTransport
	default:
		return OutcomeError
	}
}
