// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package snapshot

import (
	"context"
	"sync"

	"github.com/tomtom215/cadence/internal/models"
)

// MemoryStore implements Store in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]models.ActivityRecord
	puts    int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]models.ActivityRecord)}
}

// Get returns a copy of the stored records.
func (s *MemoryStore) Get(_ context.Context, key string) ([]models.ActivityRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	return append([]models.ActivityRecord(nil), records...), true, nil
}

// Put stores a copy of records.
func (s *MemoryStore) Put(_ context.Context, key string, records []models.ActivityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = append([]models.ActivityRecord(nil), records...)
	s.puts++
	return nil
}

// Delete removes key.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// Puts returns how many times Put has been called.
func (s *MemoryStore) Puts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.puts
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
