// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cinegraph/internal/config"
	"github.com/tomtom215/cinegraph/internal/models"
	"github.com/tomtom215/cinegraph/internal/store"
)

// stalestJitterWindow mirrors the in-memory store: full-run batches are
// drawn from the stalest (limit + window) records and shuffled so repeated
// runs don't hammer the exact same batch.
const stalestJitterWindow = 16

const contentColumns = `local_id, kind, external_id, title, body, status, fields,
	popularity, popularity_rank, last_synced_at, created_at, updated_at`

// Get implements store.ContentStore.
func (db *DB) Get(ctx context.Context, localID int64) (*models.ContentRecord, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+contentColumns+` FROM content_records WHERE local_id = ?`, localID)
	return scanContentRecord(row)
}

// GetExternalID implements store.ContentStore.
func (db *DB) GetExternalID(ctx context.Context, localID int64) (models.Kind, int64, error) {
	var kind string
	var externalID int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT kind, external_id FROM content_records WHERE local_id = ?`, localID).
		Scan(&kind, &externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, store.ErrNotFound
	}
	if err != nil {
		return "", 0, fmt.Errorf("failed to resolve external id: %w", err)
	}
	return models.Kind(kind), externalID, nil
}

// FindByExternalID implements store.ContentStore.
func (db *DB) FindByExternalID(ctx context.Context, kind models.Kind, externalID int64) (*models.ContentRecord, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+contentColumns+` FROM content_records WHERE kind = ? AND external_id = ?`,
		string(kind), externalID)
	return scanContentRecord(row)
}

// CreatePlaceholder implements store.ContentStore (find-or-create).
func (db *DB) CreatePlaceholder(ctx context.Context, kind models.Kind, externalID int64, title string) (int64, error) {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	var localID int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT local_id FROM content_records WHERE kind = ? AND external_id = ?`,
		string(kind), externalID).Scan(&localID)
	if err == nil {
		return localID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to look up placeholder: %w", err)
	}

	now := db.clk.Now().UTC()
	err = db.conn.QueryRowContext(ctx,
		`INSERT INTO content_records (kind, external_id, title, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING local_id`,
		string(kind), externalID, title, models.StatusDraft, now, now).Scan(&localID)
	if err != nil {
		return 0, fmt.Errorf("failed to create placeholder: %w", err)
	}
	return localID, nil
}

// UpsertFields implements store.ContentStore. The reserved keys update
// record columns; the remainder is merged into the JSON field map. One
// UPDATE statement applies the whole set, so readers never observe a
// partial write.
func (db *DB) UpsertFields(ctx context.Context, localID int64, fields map[string]interface{}) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	rec, err := db.Get(ctx, localID)
	if err != nil {
		return err
	}

	title, body, status, popularity := rec.Title, rec.Body, rec.Status, rec.Popularity
	merged := rec.Fields
	if merged == nil {
		merged = make(map[string]interface{})
	}
	for key, value := range fields {
		switch key {
		case "title":
			if s, ok := value.(string); ok {
				title = s
			}
		case "body":
			if s, ok := value.(string); ok {
				body = s
			}
		case "status":
			if s, ok := value.(string); ok {
				status = s
			}
		case "popularity":
			if f, ok := value.(float64); ok {
				popularity = f
			}
		default:
			merged[key] = value
		}
	}

	encoded, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("failed to encode fields: %w", err)
	}

	_, err = db.conn.ExecContext(ctx,
		`UPDATE content_records
		 SET title = ?, body = ?, status = ?, popularity = ?, fields = ?, updated_at = ?
		 WHERE local_id = ?`,
		title, body, status, popularity, string(encoded), db.clk.Now().UTC(), localID)
	if err != nil {
		return fmt.Errorf("failed to apply field set: %w", err)
	}
	return nil
}

// SetLastSynced implements store.ContentStore.
func (db *DB) SetLastSynced(ctx context.Context, localID int64, at time.Time) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE content_records SET last_synced_at = ? WHERE local_id = ?`, at.UTC(), localID)
	if err != nil {
		return fmt.Errorf("failed to stamp last sync: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteOrMark implements store.ContentStore.
func (db *DB) DeleteOrMark(ctx context.Context, localID int64, policy config.DeletionPolicy, demoteStatus string) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	if policy == config.DeletionHard {
		res, err := db.conn.ExecContext(ctx,
			`DELETE FROM content_records WHERE local_id = ?`, localID)
		if err != nil {
			return fmt.Errorf("failed to delete record: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrNotFound
		}
		_, err = db.conn.ExecContext(ctx,
			`DELETE FROM term_associations WHERE local_id = ?`, localID)
		if err != nil {
			return fmt.Errorf("failed to delete term associations: %w", err)
		}
		return nil
	}

	status := models.StatusUnavailable
	if policy == config.DeletionMarkDemote {
		status = demoteStatus
		if status == "" {
			status = models.StatusDraft
		}
	}
	return db.markUnavailable(ctx, localID, status)
}

// markUnavailable flags the record and applies the replacement status.
func (db *DB) markUnavailable(ctx context.Context, localID int64, status string) error {
	rec, err := db.Get(ctx, localID)
	if err != nil {
		return err
	}
	fields := rec.Fields
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["unavailable"] = true
	encoded, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode fields: %w", err)
	}
	_, err = db.conn.ExecContext(ctx,
		`UPDATE content_records SET status = ?, fields = ?, updated_at = ? WHERE local_id = ?`,
		status, string(encoded), db.clk.Now().UTC(), localID)
	if err != nil {
		return fmt.Errorf("failed to mark record unavailable: %w", err)
	}
	return nil
}

// SelectRecentlyChanged implements store.ContentStore.
func (db *DB) SelectRecentlyChanged(ctx context.Context, since time.Time, limit int) ([]int64, error) {
	return db.selectIDs(ctx,
		`SELECT local_id FROM content_records
		 WHERE updated_at > ? OR created_at > ?
		 ORDER BY last_synced_at ASC NULLS FIRST, local_id
		 LIMIT ?`, since.UTC(), since.UTC(), limit)
}

// SelectStalest implements store.ContentStore.
func (db *DB) SelectStalest(ctx context.Context, limit int) ([]int64, error) {
	if limit <= 0 {
		return nil, nil
	}
	ids, err := db.selectIDs(ctx,
		`SELECT local_id FROM content_records
		 ORDER BY last_synced_at ASC NULLS FIRST, created_at ASC, local_id
		 LIMIT ?`, limit+stalestJitterWindow)
	if err != nil {
		return nil, err
	}

	db.rngMu.Lock()
	db.rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	db.rngMu.Unlock()

	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// SelectOrphans implements store.ContentStore. A record with no provider id
// has lost its backing external relationship.
func (db *DB) SelectOrphans(ctx context.Context) ([]int64, error) {
	return db.selectIDs(ctx,
		`SELECT local_id FROM content_records WHERE external_id <= 0 ORDER BY local_id`)
}

// RecomputePopularityRanks implements store.ContentStore.
func (db *DB) RecomputePopularityRanks(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE content_records SET popularity_rank = ranked.rank
		 FROM (
			SELECT local_id,
			       ROW_NUMBER() OVER (PARTITION BY kind ORDER BY popularity DESC, local_id) AS rank
			FROM content_records
		 ) AS ranked
		 WHERE content_records.local_id = ranked.local_id`)
	if err != nil {
		return fmt.Errorf("failed to recompute popularity ranks: %w", err)
	}
	return nil
}

func (db *DB) selectIDs(ctx context.Context, query string, args ...interface{}) ([]int64, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select record ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan record id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanContentRecord(row rowScanner) (*models.ContentRecord, error) {
	var rec models.ContentRecord
	var kind, fieldsJSON string
	var lastSynced sql.NullTime
	err := row.Scan(&rec.LocalID, &kind, &rec.ExternalID, &rec.Title, &rec.Body,
		&rec.Status, &fieldsJSON, &rec.Popularity, &rec.PopularityRank,
		&lastSynced, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan content record: %w", err)
	}
	rec.Kind = models.Kind(kind)
	if lastSynced.Valid {
		t := lastSynced.Time
		rec.LastSyncedAt = &t
	}
	if fieldsJSON != "" && fieldsJSON != "{}" {
		if err := json.Unmarshal([]byte(fieldsJSON), &rec.Fields); err != nil {
			return nil, fmt.Errorf("failed to decode fields: %w", err)
		}
	}
	if rec.Fields == nil {
		rec.Fields = make(map[string]interface{})
	}
	return &rec, nil
}
