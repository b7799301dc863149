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

	"github.com/tomtom215/cinegraph/internal/models"
	"github.com/tomtom215/cinegraph/internal/store"
)

// FindOrCreateTerm implements store.TermStore. Matching is by normalized
// name within the taxonomy; the displayed name keeps the casing of the
// first encounter.
func (db *DB) FindOrCreateTerm(ctx context.Context, taxonomy, name string) (*models.ClassificationTerm, bool, error) {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	normalized := store.NormalizeTermName(name)

	term, err := db.findTerm(ctx, taxonomy, normalized)
	if err == nil {
		return term, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	created := &models.ClassificationTerm{Taxonomy: taxonomy, Name: name}
	err = db.conn.QueryRowContext(ctx,
		`INSERT INTO classification_terms (taxonomy, name, normalized_name)
		 VALUES (?, ?, ?) RETURNING id`,
		taxonomy, name, normalized).Scan(&created.ID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create term: %w", err)
	}
	return created, true, nil
}

func (db *DB) findTerm(ctx context.Context, taxonomy, normalized string) (*models.ClassificationTerm, error) {
	var term models.ClassificationTerm
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, taxonomy, name, external_id FROM classification_terms
		 WHERE taxonomy = ? AND normalized_name = ?`, taxonomy, normalized).
		Scan(&term.ID, &term.Taxonomy, &term.Name, &term.ExternalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up term: %w", err)
	}
	return &term, nil
}

// SetTermExternalID implements store.TermStore. Backfill only: a term whose
// provider id is already set is left unchanged.
func (db *DB) SetTermExternalID(ctx context.Context, termID, externalID int64) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE classification_terms SET external_id = ?
		 WHERE id = ? AND external_id = 0`, externalID, termID)
	if err != nil {
		return fmt.Errorf("failed to backfill term external id: %w", err)
	}
	return nil
}

// Associate implements store.TermStore. Repeats are absorbed by the
// composite primary key.
func (db *DB) Associate(ctx context.Context, localID, termID int64) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO term_associations (local_id, term_id) VALUES (?, ?)
		 ON CONFLICT DO NOTHING`, localID, termID)
	if err != nil {
		return fmt.Errorf("failed to associate term: %w", err)
	}
	return nil
}

// TermsFor implements store.TermStore.
func (db *DB) TermsFor(ctx context.Context, localID int64) ([]models.ClassificationTerm, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT t.id, t.taxonomy, t.name, t.external_id
		 FROM classification_terms t
		 JOIN term_associations a ON a.term_id = t.id
		 WHERE a.local_id = ?
		 ORDER BY t.taxonomy, t.name`, localID)
	if err != nil {
		return nil, fmt.Errorf("failed to select terms: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var terms []models.ClassificationTerm
	for rows.Next() {
		var term models.ClassificationTerm
		if err := rows.Scan(&term.ID, &term.Taxonomy, &term.Name, &term.ExternalID); err != nil {
			return nil, fmt.Errorf("failed to scan term: %w", err)
		}
		terms = append(terms, term)
	}
	return terms, rows.Err()
}
