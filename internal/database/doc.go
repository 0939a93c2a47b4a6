// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

/*
Package database persists completed merged series in DuckDB.

Archive keeps one row per identity pair, keyed by models.IdentityPair.Key,
with the series stored as JSON text:

	CREATE TABLE series_results (
	    pair_key     VARCHAR PRIMARY KEY,
	    payload      VARCHAR NOT NULL,
	    day_count    INTEGER NOT NULL,
	    completed_at TIMESTAMP NOT NULL
	)

A run that completes again replaces the row. An empty path keeps the archive
in memory, which is what tests and throwaway deployments use.

Usage:

	archive, err := database.OpenArchive("/data/cadence.duckdb")
	if err != nil {
	    return err
	}
	defer archive.Close()

	err = archive.SaveResult(ctx, pair.Key(), series, time.Now())
	stored, ok, err := archive.LoadResult(ctx, pair.Key())
*/
package database
