// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

/*
Package models defines the data shared by every Cadence package.

  - Day: a calendar date, YYYY-MM-DD, ordered as a string
  - ContributionSeries: per-day contribution counts of a code-host handle
  - ActivityRecord: one social post, reduced to its ID and creation time
  - RecordID: a post ID, compared numerically
  - Collection: posts deduplicated by RecordID, oldest tracked
  - MergedDayRecord: the reconciled per-day output, {day, posts, contributions}
  - IdentityPair: a code-host handle and a social handle that belong together

The types carry JSON tags for the HTTP API, the snapshot stores and the
result archive. Behavior is limited to parsing, ordering and deduplication.
*/
package models
