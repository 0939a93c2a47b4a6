// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package models

import (
	"fmt"
	"strings"
	"time"
)

// DayLayout is the wire and storage format of a Day.
const DayLayout = "2006-01-02"

// Day is a calendar date without time component, formatted as YYYY-MM-DD.
// String order equals chronological order.
type Day string

// DayOf returns the UTC calendar date of t.
func DayOf(t time.Time) Day {
	return Day(t.UTC().Format(DayLayout))
}

// ParseDay validates s and returns it as a Day.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid day %q: %w", s, err)
	}
	return DayOf(t), nil
}

// Start returns midnight UTC of the day. Zero time for an invalid Day.
func (d Day) Start() time.Time {
	t, err := time.Parse(DayLayout, string(d))
	if err != nil {
		return time.Time{}
	}
	return t
}

// ContributionPoint is one day of the code-contribution series.
type ContributionPoint struct {
	Day   Day `json:"date"`
	Count int `json:"count"`
}

// ContributionSeries is the full contribution history of a code-host handle.
type ContributionSeries struct {
	Handle    string              `json:"handle"`
	Points    []ContributionPoint `json:"contributions"`
	FetchedAt time.Time           `json:"fetched_at"`
}

// EarliestDay returns the first day covered by the series. The paginator
// stops once posts are older than this boundary.
func (s *ContributionSeries) EarliestDay() (Day, bool) {
	if s == nil || len(s.Points) == 0 {
		return "", false
	}
	earliest := s.Points[0].Day
	for _, p := range s.Points[1:] {
		if p.Day < earliest {
			earliest = p.Day
		}
	}
	return earliest, true
}

// PostDayCount is the number of posts created on one calendar day.
type PostDayCount struct {
	Day   Day `json:"day"`
	Count int `json:"count"`
}

// MergedDayRecord is one day of the reconciled series.
type MergedDayRecord struct {
	Day               Day `json:"day"`
	PostCount         int `json:"posts"`
	ContributionCount int `json:"contributions"`
}

// IdentityPair names the two accounts reconciled together.
type IdentityPair struct {
	CodeHandle   string `json:"code_handle" validate:"required,handle"`
	SocialHandle string `json:"social_handle" validate:"required,handle"`
}

// Key is the in-flight and result-cache key of the pair.
func (p IdentityPair) Key() string {
	return strings.ToLower(p.CodeHandle) + ":" + strings.ToLower(p.SocialHandle)
}
