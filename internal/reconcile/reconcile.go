// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

// Package reconcile merges the per-day contribution series with per-day post
// counts into one day-indexed series.
//
// Both functions are pure: they never mutate their inputs and always return
// days in strictly ascending order with no duplicates, so re-running them on
// the same inputs yields an identical result.
package reconcile

import (
	"sort"

	"github.com/tomtom215/cadence/internal/models"
)

// BucketByDay counts records per UTC calendar day of CreatedAt.
func BucketByDay(records []models.ActivityRecord) []models.PostDayCount {
	counts := make(map[models.Day]int)
	for i := range records {
		counts[models.DayOf(records[i].CreatedAt)]++
	}

	out := make([]models.PostDayCount, 0, len(counts))
	for day, n := range counts {
		out = append(out, models.PostDayCount{Day: day, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out
}

// Reconcile returns the union of days present in either input. Days missing
// from one side get a zero count for that side. Repeated days within one
// input are summed.
func Reconcile(contributions []models.ContributionPoint, posts []models.PostDayCount) []models.MergedDayRecord {
	merged := make(map[models.Day]*models.MergedDayRecord, len(contributions)+len(posts))
	get := func(day models.Day) *models.MergedDayRecord {
		r, ok := merged[day]
		if !ok {
			r = &models.MergedDayRecord{Day: day}
			merged[day] = r
		}
		return r
	}

	for _, c := range contributions {
		get(c.Day).ContributionCount += c.Count
	}
	for _, p := range posts {
		get(p.Day).PostCount += p.Count
	}

	out := make([]models.MergedDayRecord, 0, len(merged))
	for _, r := range merged {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out
}

// Records is BucketByDay followed by Reconcile.
func Records(contributions []models.ContributionPoint, records []models.ActivityRecord) []models.MergedDayRecord {
	return Reconcile(contributions, BucketByDay(records))
}
