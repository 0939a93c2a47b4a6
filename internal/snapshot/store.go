// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

// Package snapshot persists partially collected post streams so that an
// interrupted run can be resumed later.
//
// A snapshot is an overwrite-on-write checkpoint keyed by social handle:
// every Put replaces the previous value and the last write wins. The
// paginator writes one every few pages and the ingest pipeline writes a final
// one on completion. Three backends implement Store:
//
//   - BadgerStore: embedded durable store (default)
//   - RedisStore: shared store for multi-instance deployments
//   - MemoryStore: process-local, for tests and ephemeral runs
package snapshot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/cadence/internal/metrics"
	"github.com/tomtom215/cadence/internal/models"
)

// Backend names accepted by Open.
const (
	BackendBadger = "badger"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

const keyPrefix = "snapshot:posts:"

// Store is a durable key/value store of activity-record snapshots.
type Store interface {
	// Get returns the stored records. ok is false when nothing is stored.
	Get(ctx context.Context, key string) (records []models.ActivityRecord, ok bool, err error)

	// Put replaces the stored records for key.
	Put(ctx context.Context, key string, records []models.ActivityRecord) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the backend.
	Close() error
}

// entry is the persisted form of a snapshot.
type entry struct {
	Records []models.ActivityRecord `json:"records"`
	SavedAt time.Time               `json:"saved_at"`
}

// Key returns the snapshot key of a social handle.
func Key(socialHandle string) string {
	return keyPrefix + strings.ToLower(socialHandle)
}

// ResumePoint derives the seed cursor for a run resuming from records: one
// below the oldest cached ID, so the next page continues backward past
// everything already collected. ok is false when records is empty.
func ResumePoint(records []models.ActivityRecord) (cursor models.RecordID, ok bool, err error) {
	oldest, found := models.OldestRecord(records)
	if !found {
		return "", false, nil
	}
	cursor, err = oldest.ID.Prev()
	if err != nil {
		return "", false, fmt.Errorf("derive resume cursor: %w", err)
	}
	return cursor, true, nil
}

// Config selects and configures a backend.
type Config struct {
	Backend    string
	Path       string
	RedisURL   string
	SyncWrites bool
}

// Open returns the store selected by cfg.Backend wrapped with metrics.
func Open(cfg Config) (Store, error) {
	var (
		store Store
		err   error
	)
	switch cfg.Backend {
	case BackendBadger, "":
		store, err = OpenBadger(cfg.Path, cfg.SyncWrites)
	case BackendRedis:
		store, err = NewRedisStoreFromURL(cfg.RedisURL)
	case BackendMemory:
		store = NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	backend := cfg.Backend
	if backend == "" {
		backend = BackendBadger
	}
	return Instrument(store, backend), nil
}

// Instrument wraps store so that every operation is counted in
// metrics.SnapshotOperations under the given backend label.
func Instrument(store Store, backend string) Store {
	return &instrumented{Store: store, backend: backend}
}

type instrumented struct {
	Store
	backend string
}

func (s *instrumented) observe(op string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.SnapshotOperations.WithLabelValues(s.backend, op, outcome).Inc()
}

func (s *instrumented) Get(ctx context.Context, key string) ([]models.ActivityRecord, bool, error) {
	records, ok, err := s.Store.Get(ctx, key)
	s.observe("get", err)
	return records, ok, err
}

func (s *instrumented) Put(ctx context.Context, key string, records []models.ActivityRecord) error {
	err := s.Store.Put(ctx, key, records)
	s.observe("put", err)
	if err == nil {
		metrics.SnapshotRecords.WithLabelValues(s.backend).Observe(float64(len(records)))
	}
	return err
}

func (s *instrumented) Delete(ctx context.Context, key string) error {
	err := s.Store.Delete(ctx, key)
	s.observe("delete", err)
	return err
}
