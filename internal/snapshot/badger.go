// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/cadence/internal/models"
)

// BadgerStore implements Store on an embedded BadgerDB.
type BadgerStore struct {
	db     *badger.DB
	ownsDB bool
}

// OpenBadger opens (or creates) a BadgerDB at path. An empty path opens an
// in-memory database.
func OpenBadger(path string, syncWrites bool) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithSyncWrites(syncWrites)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for snapshots: %w", err)
	}
	return &BadgerStore{db: db, ownsDB: true}, nil
}

// NewBadgerStore uses an already open database. Close will not close it.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Get loads the snapshot stored under key.
func (s *BadgerStore) Get(_ context.Context, key string) ([]models.ActivityRecord, bool, error) {
	var (
		e     entry
		found bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})
	if err != nil {
		return nil, false, fmt.Errorf("load snapshot %s: %w", key, err)
	}
	if !found {
		return nil, false, nil
	}
	return e.Records, true, nil
}

// Put overwrites the snapshot stored under key.
func (s *BadgerStore) Put(_ context.Context, key string, records []models.ActivityRecord) error {
	data, err := json.Marshal(entry{Records: records, SavedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", key, err)
	}
	return nil
}

// Delete removes the snapshot stored under key.
func (s *BadgerStore) Delete(_ context.Context, key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// Close closes the database if this store opened it.
func (s *BadgerStore) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}
