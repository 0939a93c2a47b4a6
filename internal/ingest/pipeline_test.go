// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package ingest

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/cadence/internal/models"
	"github.com/tomtom215/cadence/internal/paginator"
	"github.com/tomtom215/cadence/internal/snapshot"
	"github.com/tomtom215/cadence/internal/source"
	"github.com/tomtom215/cadence/internal/throttle"
)

var postsBase = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

type fakeContributions struct {
	mu     sync.Mutex
	points []models.ContributionPoint
	err    error
	calls  int
}

func (f *fakeContributions) FetchContributions(_ context.Context, handle string) (*models.ContributionSeries, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &models.ContributionSeries{Handle: handle, Points: f.points}, nil
}

// fakePosts serves ids 1..n newest first with an inclusive max-id cursor.
// Post i is created i*spacing after postsBase.
type fakePosts struct {
	mu      sync.Mutex
	n       int
	spacing time.Duration
	err     error
	gate    chan struct{}
	cursors []models.RecordID
}

func (f *fakePosts) FetchPage(_ context.Context, _ string, maxID models.RecordID, limit int) ([]models.ActivityRecord, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursors = append(f.cursors, maxID)
	if f.err != nil {
		return nil, f.err
	}

	top := f.n
	if maxID != "" {
		v, err := strconv.Atoi(string(maxID))
		if err != nil {
			return nil, err
		}
		if v < top {
			top = v
		}
	}
	var page []models.ActivityRecord
	for id := top; id >= 1 && len(page) < limit; id-- {
		page = append(page, models.ActivityRecord{
			ID:        models.RecordID(strconv.Itoa(id)),
			CreatedAt: postsBase.Add(time.Duration(id) * f.spacing),
		})
	}
	return page, nil
}

func (f *fakePosts) Cursors() []models.RecordID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.RecordID(nil), f.cursors...)
}

func newTestPipeline(t *testing.T, contrib source.ContributionFetcher, posts paginator.PageFetcher, store snapshot.Store) *Pipeline {
	t.Helper()
	q, err := throttle.New(throttle.Config{MaxRequests: 10000, Window: time.Millisecond}, nil)
	if err != nil {
		t.Fatalf("throttle.New() error = %v", err)
	}
	pag := paginator.New(posts, q, store, paginator.Config{})
	return NewPipeline(contrib, pag, store)
}

var pair = models.IdentityPair{CodeHandle: "octo", SocialHandle: "octo"}

func TestPipelineReconcilesBothFeeds(t *testing.T) {
	t.Parallel()

	contrib := &fakeContributions{points: []models.ContributionPoint{
		{Day: "2024-01-01", Count: 3},
		{Day: "2024-01-02", Count: 0},
	}}
	posts := &fakePosts{n: 5, spacing: time.Hour}
	store := snapshot.NewMemoryStore()
	p := newTestPipeline(t, contrib, posts, store)

	var emitted [][]models.MergedDayRecord
	out, err := p.Run(context.Background(), pair, Options{}, func(s []models.MergedDayRecord) {
		emitted = append(emitted, s)
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []models.MergedDayRecord{
		{Day: "2024-01-01", PostCount: 0, ContributionCount: 3},
		{Day: "2024-01-02", PostCount: 5, ContributionCount: 0},
	}
	if len(out.Series) != len(want) {
		t.Fatalf("Series = %+v, want %+v", out.Series, want)
	}
	for i := range want {
		if out.Series[i] != want[i] {
			t.Errorf("Series[%d] = %+v, want %+v", i, out.Series[i], want[i])
		}
	}
	if out.Records != 5 || out.StopReason != paginator.StopEmptyPage || out.Resumed {
		t.Errorf("Outcome = %+v", out)
	}
	if len(emitted) != 1 {
		t.Errorf("emitted %d progress events, want 1", len(emitted))
	}

	saved, ok, _ := store.Get(context.Background(), snapshot.Key("octo"))
	if !ok || len(saved) != 5 {
		t.Errorf("final snapshot = %d records (found %v), want 5", len(saved), ok)
	}
}

func TestPipelineNoStopBoundary(t *testing.T) {
	t.Parallel()

	posts := &fakePosts{n: 5, spacing: time.Hour}
	p := newTestPipeline(t, &fakeContributions{}, posts, nil)

	_, err := p.Run(context.Background(), pair, Options{}, nil)
	if !errors.Is(err, ErrNoStopBoundary) {
		t.Fatalf("Run() error = %v, want ErrNoStopBoundary", err)
	}
	if n := len(posts.Cursors()); n != 0 {
		t.Errorf("post pages fetched = %d, want 0", n)
	}
}

func TestPipelineContributionFailure(t *testing.T) {
	t.Parallel()

	rejected := &source.UpstreamError{Source: "contribution-api", Status: 404, Message: "user not found"}
	posts := &fakePosts{n: 5, spacing: time.Hour}
	p := newTestPipeline(t, &fakeContributions{err: rejected}, posts, nil)

	_, err := p.Run(context.Background(), pair, Options{}, nil)
	if !source.IsUpstreamRejected(err) {
		t.Fatalf("Run() error = %v, want upstream rejection", err)
	}
	if n := len(posts.Cursors()); n != 0 {
		t.Errorf("post pages fetched = %d, want 0", n)
	}
}

func TestPipelineResumesBackwardFromSnapshot(t *testing.T) {
	t.Parallel()

	contrib := &fakeContributions{points: []models.ContributionPoint{{Day: "2024-01-01", Count: 1}}}
	posts := &fakePosts{n: 50, spacing: time.Hour}
	store := snapshot.NewMemoryStore()

	var seed []models.ActivityRecord
	for id := 50; id > 40; id-- {
		seed = append(seed, models.ActivityRecord{
			ID:        models.RecordID(strconv.Itoa(id)),
			CreatedAt: postsBase.Add(time.Duration(id) * time.Hour),
		})
	}
	if err := store.Put(context.Background(), snapshot.Key("octo"), seed); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	p := newTestPipeline(t, contrib, posts, store)
	var firstEmit []models.MergedDayRecord
	out, err := p.Run(context.Background(), pair, Options{}, func(s []models.MergedDayRecord) {
		if firstEmit == nil {
			firstEmit = s
		}
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	cursors := posts.Cursors()
	if len(cursors) == 0 || cursors[0] != "40" {
		t.Errorf("first cursor = %v, want 40", cursors)
	}
	if !out.Resumed || out.Records != 50 {
		t.Errorf("Outcome = %+v, want resumed with 50 records", out)
	}
	if firstEmit == nil {
		t.Fatal("no event emitted for the seeded snapshot")
	}
	seeded := 0
	for _, d := range firstEmit {
		seeded += d.PostCount
	}
	if seeded != 10 {
		t.Errorf("first event carries %d posts, want the 10 seeded", seeded)
	}
}

func TestPipelineFreshPassIgnoresSnapshot(t *testing.T) {
	t.Parallel()

	contrib := &fakeContributions{points: []models.ContributionPoint{{Day: "2024-01-01", Count: 1}}}
	posts := &fakePosts{n: 20, spacing: time.Hour}
	store := snapshot.NewMemoryStore()
	_ = store.Put(context.Background(), snapshot.Key("octo"), []models.ActivityRecord{
		{ID: "5", CreatedAt: postsBase.Add(5 * time.Hour)},
	})

	p := newTestPipeline(t, contrib, posts, store)
	out, err := p.Run(context.Background(), pair, Options{FreshPass: true}, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if cursors := posts.Cursors(); cursors[0] != "" {
		t.Errorf("first cursor = %q, want newest page", cursors[0])
	}
	if out.Resumed || out.Records != 20 {
		t.Errorf("Outcome = %+v, want fresh walk of 20 records", out)
	}
}

func TestPipelineUpstreamRejectionSkipsFinalSnapshot(t *testing.T) {
	t.Parallel()

	contrib := &fakeContributions{points: []models.ContributionPoint{{Day: "2024-01-01", Count: 1}}}
	posts := &fakePosts{err: &source.UpstreamError{Source: "post-api", Status: 429, Message: "Too many requests"}}
	store := snapshot.NewMemoryStore()

	p := newTestPipeline(t, contrib, posts, store)
	_, err := p.Run(context.Background(), pair, Options{}, nil)

	var ue *source.UpstreamError
	if !errors.As(err, &ue) || ue.Message != "Too many requests" {
		t.Fatalf("Run() error = %v, want *UpstreamError", err)
	}
	if store.Puts() != 0 {
		t.Errorf("snapshot writes = %d, want 0", store.Puts())
	}
}
