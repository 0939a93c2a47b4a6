// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomtom215/cadence/internal/models"
)

// testArchiveSemaphore serializes DuckDB use across tests; concurrent CGO
// connections under the race detector have hung CI before.
var testArchiveSemaphore = make(chan struct{}, 1)

func setupTestArchive(t *testing.T, path string) *Archive {
	t.Helper()

	testArchiveSemaphore <- struct{}{}
	t.Cleanup(func() { <-testArchiveSemaphore })

	a, err := OpenArchive(path)
	if err != nil {
		t.Fatalf("OpenArchive(%q) error = %v", path, err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestArchiveSaveLoad(t *testing.T) {
	a := setupTestArchive(t, "")
	ctx := context.Background()

	if _, ok, err := a.LoadResult(ctx, "octo:octo"); err != nil || ok {
		t.Fatalf("LoadResult() on empty archive = ok %v, err %v", ok, err)
	}

	series := []models.MergedDayRecord{
		{Day: "2024-01-01", PostCount: 0, ContributionCount: 3},
		{Day: "2024-01-02", PostCount: 5, ContributionCount: 0},
	}
	completed := time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)
	if err := a.SaveResult(ctx, "octo:octo", series, completed); err != nil {
		t.Fatalf("SaveResult() error = %v", err)
	}

	got, ok, err := a.LoadResult(ctx, "octo:octo")
	if err != nil || !ok {
		t.Fatalf("LoadResult() = ok %v, err %v", ok, err)
	}
	if len(got.Series) != 2 || got.Series[1] != series[1] {
		t.Errorf("Series = %+v, want %+v", got.Series, series)
	}
	if !got.CompletedAt.Equal(completed) {
		t.Errorf("CompletedAt = %v, want %v", got.CompletedAt, completed)
	}
}

func TestArchiveOverwriteAndDelete(t *testing.T) {
	a := setupTestArchive(t, "")
	ctx := context.Background()
	now := time.Now()

	first := []models.MergedDayRecord{{Day: "2024-01-01", ContributionCount: 1}}
	second := []models.MergedDayRecord{{Day: "2024-01-01", ContributionCount: 1}, {Day: "2024-01-02", PostCount: 2}}

	if err := a.SaveResult(ctx, "a:b", first, now); err != nil {
		t.Fatalf("SaveResult(first) error = %v", err)
	}
	if err := a.SaveResult(ctx, "a:b", second, now.Add(time.Minute)); err != nil {
		t.Fatalf("SaveResult(second) error = %v", err)
	}
	if err := a.SaveResult(ctx, "c:d", nil, now); err != nil {
		t.Fatalf("SaveResult(nil) error = %v", err)
	}

	n, err := a.Count(ctx)
	if err != nil || n != 2 {
		t.Errorf("Count() = %d, %v; want 2", n, err)
	}
	got, _, _ := a.LoadResult(ctx, "a:b")
	if got == nil || len(got.Series) != 2 {
		t.Errorf("LoadResult after overwrite = %+v, want 2 days", got)
	}
	empty, ok, _ := a.LoadResult(ctx, "c:d")
	if !ok || len(empty.Series) != 0 {
		t.Errorf("LoadResult(empty) = %+v, %v", empty, ok)
	}

	if err := a.DeleteResult(ctx, "a:b"); err != nil {
		t.Fatalf("DeleteResult() error = %v", err)
	}
	if err := a.DeleteResult(ctx, "missing"); err != nil {
		t.Errorf("DeleteResult(missing) error = %v", err)
	}
	if _, ok, _ := a.LoadResult(ctx, "a:b"); ok {
		t.Error("result still present after DeleteResult")
	}
}

func TestArchivePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "results.duckdb")
	ctx := context.Background()

	testArchiveSemaphore <- struct{}{}
	defer func() { <-testArchiveSemaphore }()

	a, err := OpenArchive(path)
	if err != nil {
		t.Fatalf("OpenArchive() error = %v", err)
	}
	if err := a.SaveResult(ctx, "octo:octo", []models.MergedDayRecord{{Day: "2024-02-01", PostCount: 4}}, time.Now()); err != nil {
		t.Fatalf("SaveResult() error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := OpenArchive(path)
	if err != nil {
		t.Fatalf("OpenArchive() reopen error = %v", err)
	}
	defer reopened.Close()

	got, ok, err := reopened.LoadResult(ctx, "octo:octo")
	if err != nil || !ok || got.Series[0].PostCount != 4 {
		t.Errorf("LoadResult() after reopen = %+v, %v, %v", got, ok, err)
	}
	if err := reopened.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

type mockCloser struct {
	closed bool
	err    error
}

func (m *mockCloser) Close() error {
	m.closed = true
	return m.err
}

func TestCloseQuietly(t *testing.T) {
	closeQuietly(nil)

	c := &mockCloser{err: errors.New("close failed")}
	closeQuietly(c)
	if !c.closed {
		t.Error("closer was not closed")
	}
}
