// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

// Package store defines the local persistence ports consumed by the sync
// engine, plus in-memory implementations used by tests and zero-config
// deployments. The DuckDB-backed implementations live in internal/database.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tomtom215/cinegraph/internal/config"
	"github.com/tomtom215/cinegraph/internal/models"
)

// ErrNotFound is returned when a record or term does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicate is returned when an insert would violate the
// (kind, external id) uniqueness invariant.
var ErrDuplicate = errors.New("store: duplicate external id")

// ContentStore is the persistence port for content records. At most one
// record exists per (kind, external id) pair; implementations enforce this.
type ContentStore interface {
	// Get returns the record for localID, or ErrNotFound.
	Get(ctx context.Context, localID int64) (*models.ContentRecord, error)

	// GetExternalID resolves the kind and provider id for localID without
	// loading the full record. ErrNotFound when the record is absent; an
	// existing record with no external id returns its kind and zero.
	GetExternalID(ctx context.Context, localID int64) (models.Kind, int64, error)

	// FindByExternalID returns the record for (kind, externalID), or
	// ErrNotFound.
	FindByExternalID(ctx context.Context, kind models.Kind, externalID int64) (*models.ContentRecord, error)

	// CreatePlaceholder inserts a minimal record for (kind, externalID)
	// and returns its local id. If one already exists its local id is
	// returned unchanged (find-or-create).
	CreatePlaceholder(ctx context.Context, kind models.Kind, externalID int64, title string) (int64, error)

	// UpsertFields applies one mapped field set to localID as a single
	// logical write. The reserved keys "title", "body", "status", and
	// "popularity" update the corresponding record columns; all other
	// keys are merged into the record's field map. Readers never observe
	// a partially applied set.
	UpsertFields(ctx context.Context, localID int64, fields map[string]interface{}) error

	// SetLastSynced stamps the record's last successful sync time.
	SetLastSynced(ctx context.Context, localID int64, at time.Time) error

	// DeleteOrMark applies the deletion policy to localID: hard removal,
	// or marking unavailable with an optional publication-status demotion.
	DeleteOrMark(ctx context.Context, localID int64, policy config.DeletionPolicy, demoteStatus string) error

	// SelectRecentlyChanged returns up to limit local ids of records
	// created or updated after since, least recently synced first.
	SelectRecentlyChanged(ctx context.Context, since time.Time, limit int) ([]int64, error)

	// SelectStalest returns up to limit local ids ordered oldest
	// last-synced first (never-synced records lead), with bounded
	// randomness inside the selection so repeated full runs spread load.
	SelectStalest(ctx context.Context, limit int) ([]int64, error)

	// SelectOrphans returns local ids of records whose backing external
	// relationship is gone.
	SelectOrphans(ctx context.Context) ([]int64, error)

	// RecomputePopularityRanks reassigns dense popularity ranks per kind,
	// most popular first.
	RecomputePopularityRanks(ctx context.Context) error
}

// TermStore is the persistence port for classification terms. Term names
// are unique within a taxonomy after normalization.
type TermStore interface {
	// FindOrCreateTerm returns the term matching the normalized name
	// within taxonomy, creating it on first encounter. The second return
	// reports whether a new term was created.
	FindOrCreateTerm(ctx context.Context, taxonomy, name string) (*models.ClassificationTerm, bool, error)

	// SetTermExternalID backfills the provider id of a term. A term whose
	// external id is already set is left unchanged.
	SetTermExternalID(ctx context.Context, termID, externalID int64) error

	// Associate links a term to a content record. Safe to repeat.
	Associate(ctx context.Context, localID, termID int64) error

	// TermsFor returns all terms associated with a content record.
	TermsFor(ctx context.Context, localID int64) ([]models.ClassificationTerm, error)
}

// SyncRunStore is the persistence port for scheduled run summaries.
type SyncRunStore interface {
	StartRun(ctx context.Context, run *models.SyncRunRecord) error
	FinishRun(ctx context.Context, run *models.SyncRunRecord) error

	// RecentRuns returns up to limit runs, most recently started first.
	RecentRuns(ctx context.Context, limit int) ([]models.SyncRunRecord, error)

	// PruneRuns deletes finished runs started before cutoff and returns
	// how many were removed.
	PruneRuns(ctx context.Context, cutoff time.Time) (int, error)
}

// NormalizeTermName canonicalizes a term name for matching: trimmed and
// case-folded. The displayed name keeps its original casing.
func NormalizeTermName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
