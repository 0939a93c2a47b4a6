// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/goccy/go-json"

	"github.com/tomtom215/cadence/internal/logging"
	"github.com/tomtom215/cadence/internal/models"
)

// Archive persists the last completed merged series of every identity pair
// in DuckDB, so final results survive restarts and cache expiry.
type Archive struct {
	conn *sql.DB
	path string
}

// StoredResult is one archived series.
type StoredResult struct {
	PairKey     string
	Series      []models.MergedDayRecord
	CompletedAt time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS series_results (
	pair_key     VARCHAR PRIMARY KEY,
	payload      VARCHAR NOT NULL,
	day_count    INTEGER NOT NULL,
	completed_at TIMESTAMP NOT NULL
)`

// OpenArchive opens (or creates) the archive at path. An empty path or
// ":memory:" keeps the archive in memory.
func OpenArchive(path string) (*Archive, error) {
	if path == "" {
		path = ":memory:"
	}
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create archive directory %s: %w", dir, err)
			}
		}
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&autoinstall_known_extensions=false&autoload_known_extensions=false",
		path, runtime.NumCPU())
	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	// A single connection keeps an in-memory archive visible to every caller.
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxIdleTime(0)

	a := &Archive{conn: conn, path: path}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to ping archive: %w", err)
	}
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to create archive schema: %w", err)
	}

	logging.Info().Str("path", path).Msg("Result archive opened")
	return a, nil
}

// SaveResult replaces the archived series for pairKey.
func (a *Archive) SaveResult(ctx context.Context, pairKey string, series []models.MergedDayRecord, completedAt time.Time) error {
	if series == nil {
		series = []models.MergedDayRecord{}
	}
	payload, err := json.Marshal(series)
	if err != nil {
		return fmt.Errorf("failed to encode series for %s: %w", pairKey, err)
	}

	_, err = a.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO series_results (pair_key, payload, day_count, completed_at) VALUES (?, ?, ?, ?)`,
		pairKey, string(payload), len(series), completedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save result for %s: %w", pairKey, err)
	}
	return nil
}

// LoadResult returns the archived series for pairKey. ok is false if none
// has been stored.
func (a *Archive) LoadResult(ctx context.Context, pairKey string) (result *StoredResult, ok bool, err error) {
	var payload string
	var completedAt time.Time
	err = a.conn.QueryRowContext(ctx,
		`SELECT payload, completed_at FROM series_results WHERE pair_key = ?`, pairKey,
	).Scan(&payload, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load result for %s: %w", pairKey, err)
	}

	var series []models.MergedDayRecord
	if err := json.Unmarshal([]byte(payload), &series); err != nil {
		return nil, false, fmt.Errorf("failed to decode result for %s: %w", pairKey, err)
	}
	return &StoredResult{PairKey: pairKey, Series: series, CompletedAt: completedAt.UTC()}, true, nil
}

// DeleteResult removes the archived series for pairKey. Deleting a missing
// key is not an error.
func (a *Archive) DeleteResult(ctx context.Context, pairKey string) error {
	if _, err := a.conn.ExecContext(ctx, `DELETE FROM series_results WHERE pair_key = ?`, pairKey); err != nil {
		return fmt.Errorf("failed to delete result for %s: %w", pairKey, err)
	}
	return nil
}

// Count returns the number of archived pairs.
func (a *Archive) Count(ctx context.Context) (int, error) {
	var n int
	if err := a.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM series_results`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count results: %w", err)
	}
	return n, nil
}

// Ping checks the connection. Used by the readiness probe.
func (a *Archive) Ping(ctx context.Context) error {
	return a.conn.PingContext(ctx)
}

// Close closes the archive.
func (a *Archive) Close() error {
	if a.conn == nil {
		return nil
	}
	return a.conn.Close()
}
