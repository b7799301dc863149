// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

/*
Package database provides the DuckDB-backed persistence layer.

DB implements the store.ContentStore, store.TermStore, and store.SyncRunStore
ports against a single DuckDB file. Mapped provider metadata lives in a JSON
column serialized as text, so the schema stays stable as the provider adds
fields. The (kind, external_id) uniqueness invariant is enforced in
find-or-create transactions rather than a partial index, which DuckDB does
not support.
*/
package database

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/cinegraph/internal/clock"
	"github.com/tomtom215/cinegraph/internal/config"
	"github.com/tomtom215/cinegraph/internal/logging"
)

// DB wraps a DuckDB connection and provides the persistence ports.
type DB struct {
	conn *sql.DB
	clk  clock.Clock

	// Serializes read-modify-write cycles on content rows (field merges,
	// find-or-create). DuckDB handles statement atomicity; this guards the
	// application-level merge logic.
	writeMu sync.Mutex

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New opens (or creates) the DuckDB database at cfg.Path and bootstraps the
// schema. An empty path opens an in-memory database. A nil clock selects the
// system clock.
func New(cfg config.Database, clk clock.Clock) (*DB, error) {
	if clk == nil {
		clk = clock.NewSystem()
	}

	connStr := cfg.Path
	if cfg.Path != "" {
		// Ensure parent directory exists for the database file. 0750 per
		// gosec G301.
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
		connStr = fmt.Sprintf("%s?access_mode=read_write", cfg.Path)
		if cfg.MaxMemory != "" {
			connStr += "&max_memory=" + cfg.MaxMemory
		}
	}

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// DuckDB is an embedded single-writer engine; a small pool avoids
	// contention on the internal lock.
	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)

	db := &DB{
		conn: conn,
		clk:  clk,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // batch jitter, not security
	}

	if err := db.createSchema(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Msg("Database initialized")
	return db, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Health verifies the connection is usable.
func (db *DB) Health(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// schemaContext bounds schema bootstrap operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

func (db *DB) createSchema() error {
	ctx, cancel := schemaContext()
	defer cancel()

	queries := []string{
		`CREATE SEQUENCE IF NOT EXISTS content_local_id_seq START 1`,
		`CREATE SEQUENCE IF NOT EXISTS term_id_seq START 1`,

		// Content records. Mapped provider fields are serialized JSON in a
		// text column; reserved keys (title, body, status, popularity) are
		// promoted to real columns.
		`CREATE TABLE IF NOT EXISTS content_records (
			local_id BIGINT PRIMARY KEY DEFAULT nextval('content_local_id_seq'),
			kind TEXT NOT NULL,
			external_id BIGINT NOT NULL DEFAULT 0,
			title TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'draft',
			fields TEXT NOT NULL DEFAULT '{}',
			popularity DOUBLE NOT NULL DEFAULT 0,
			popularity_rank INTEGER NOT NULL DEFAULT 0,
			last_synced_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_content_external ON content_records(kind, external_id)`,
		`CREATE INDEX IF NOT EXISTS idx_content_updated ON content_records(updated_at)`,
		`CREATE INDEX IF NOT EXISTS idx_content_synced ON content_records(last_synced_at)`,

		// Classification terms, unique per (taxonomy, normalized_name).
		`CREATE TABLE IF NOT EXISTS classification_terms (
			id BIGINT PRIMARY KEY DEFAULT nextval('term_id_seq'),
			taxonomy TEXT NOT NULL,
			name TEXT NOT NULL,
			normalized_name TEXT NOT NULL,
			external_id BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_terms_lookup ON classification_terms(taxonomy, normalized_name)`,

		`CREATE TABLE IF NOT EXISTS term_associations (
			local_id BIGINT NOT NULL,
			term_id BIGINT NOT NULL,
			PRIMARY KEY (local_id, term_id)
		)`,

		`CREATE TABLE IF NOT EXISTS sync_runs (
			id TEXT PRIMARY KEY,
			run_type TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP,
			items_processed INTEGER NOT NULL DEFAULT 0,
			items_failed INTEGER NOT NULL DEFAULT 0,
			error_message TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON sync_runs(started_at)`,
	}

	for _, query := range queries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}
