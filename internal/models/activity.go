// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package models

import (
	"fmt"
	"math/big"
	"strings"
	"time"
)

// RecordID is the upstream identifier of a social post. Identifiers are
// decimal integers that can exceed 64 bits, so they are kept as strings and
// compared numerically.
type RecordID string

// Valid reports whether id is a non-empty string of decimal digits.
func (id RecordID) Valid() bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (id RecordID) canonical() string {
	s := strings.TrimLeft(string(id), "0")
	if s == "" {
		return "0"
	}
	return s
}

// Compare returns -1, 0 or +1 depending on whether id is numerically less
// than, equal to, or greater than other. Both must be Valid.
func (id RecordID) Compare(other RecordID) int {
	a, b := id.canonical(), other.canonical()
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// Less reports whether id < other numerically.
func (id RecordID) Less(other RecordID) bool {
	return id.Compare(other) < 0
}

// Prev returns id-1, used as an exclusive upper-bound cursor so the record
// itself is not fetched again. Prev of zero is an error.
func (id RecordID) Prev() (RecordID, error) {
	n, ok := new(big.Int).SetString(string(id), 10)
	if !ok {
		return "", fmt.Errorf("invalid record id %q", string(id))
	}
	if n.Sign() <= 0 {
		return "", fmt.Errorf("record id %q has no predecessor", string(id))
	}
	n.Sub(n, big.NewInt(1))
	return RecordID(n.String()), nil
}

// Engagement holds the per-post counters reported by the post source.
type Engagement struct {
	Replies int64 `json:"replies"`
	Reposts int64 `json:"reposts"`
	Likes   int64 `json:"likes"`
}

// ActivityRecord is one observed social post. Records are immutable once
// observed; identity is the ID alone.
type ActivityRecord struct {
	ID         RecordID   `json:"id"`
	CreatedAt  time.Time  `json:"created_at"`
	Engagement Engagement `json:"engagement"`
}

// Collection accumulates activity records keyed by ID. Merging never removes
// entries. A Collection is not safe for concurrent use.
type Collection struct {
	records map[RecordID]ActivityRecord
}

// NewCollection returns a collection seeded with records.
func NewCollection(seed []ActivityRecord) *Collection {
	c := &Collection{records: make(map[RecordID]ActivityRecord, len(seed))}
	c.Merge(seed)
	return c
}

// Merge inserts records, overwriting any existing entry with the same ID,
// and returns how many IDs were not present before.
func (c *Collection) Merge(records []ActivityRecord) int {
	added := 0
	for i := range records {
		if _, ok := c.records[records[i].ID]; !ok {
			added++
		}
		c.records[records[i].ID] = records[i]
	}
	return added
}

// Len returns the number of distinct records.
func (c *Collection) Len() int {
	return len(c.records)
}

// Contains reports whether a record with id has been observed.
func (c *Collection) Contains(id RecordID) bool {
	_, ok := c.records[id]
	return ok
}

// Records returns a copy of the collected records in no particular order.
func (c *Collection) Records() []ActivityRecord {
	out := make([]ActivityRecord, 0, len(c.records))
	for _, r := range c.records {
		out = append(out, r)
	}
	return out
}

// Oldest returns the record with the smallest ID.
func (c *Collection) Oldest() (ActivityRecord, bool) {
	return OldestRecord(c.Records())
}

// OldestRecord returns the record with the smallest ID in records.
func OldestRecord(records []ActivityRecord) (ActivityRecord, bool) {
	if len(records) == 0 {
		return ActivityRecord{}, false
	}
	oldest := records[0]
	for _, r := range records[1:] {
		if r.ID.Less(oldest.ID) {
			oldest = r
		}
	}
	return oldest, true
}
