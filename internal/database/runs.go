// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tomtom215/cinegraph/internal/models"
)

// StartRun implements store.SyncRunStore.
func (db *DB) StartRun(ctx context.Context, run *models.SyncRunRecord) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO sync_runs (id, run_type, started_at) VALUES (?, ?, ?)`,
		run.ID, run.RunType, run.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}
	return nil
}

// FinishRun implements store.SyncRunStore.
func (db *DB) FinishRun(ctx context.Context, run *models.SyncRunRecord) error {
	var finished interface{}
	if run.FinishedAt != nil {
		finished = run.FinishedAt.UTC()
	}
	_, err := db.conn.ExecContext(ctx,
		`UPDATE sync_runs
		 SET finished_at = ?, items_processed = ?, items_failed = ?, error_message = ?
		 WHERE id = ?`,
		finished, run.ItemsProcessed, run.ItemsFailed, run.Error, run.ID)
	if err != nil {
		return fmt.Errorf("failed to record run finish: %w", err)
	}
	return nil
}

// RecentRuns implements store.SyncRunStore.
func (db *DB) RecentRuns(ctx context.Context, limit int) ([]models.SyncRunRecord, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, run_type, started_at, finished_at, items_processed, items_failed, error_message
		 FROM sync_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []models.SyncRunRecord
	for rows.Next() {
		var run models.SyncRunRecord
		var finished sql.NullTime
		if err := rows.Scan(&run.ID, &run.RunType, &run.StartedAt, &finished,
			&run.ItemsProcessed, &run.ItemsFailed, &run.Error); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			run.FinishedAt = &t
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// PruneRuns implements store.SyncRunStore. Unfinished runs are kept
// regardless of age.
func (db *DB) PruneRuns(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM sync_runs WHERE finished_at IS NOT NULL AND started_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned runs: %w", err)
	}
	return int(n), nil
}
