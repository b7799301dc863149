// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

package models

import (
	"time"
)

// Kind identifies the family of a content record.
type Kind string

// Content kinds recognized by the sync engine.
const (
	KindMovie  Kind = "movie"
	KindSeries Kind = "series"
	KindPerson Kind = "person"
)

// Valid reports whether k is one of the recognized content kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindMovie, KindSeries, KindPerson:
		return true
	}
	return false
}

// Publication statuses for content records. Deletion notifications can demote
// a record to draft (or another configured status) instead of deleting it.
const (
	StatusPublished   = "published"
	StatusDraft       = "draft"
	StatusUnavailable = "unavailable"
)

// ContentRecord is one locally stored external item (movie, series, or
// person). ExternalID is the provider's opaque integer key; at most one
// record exists per (Kind, ExternalID) pair.
//
// Records are created as placeholders (by batch discovery or a webhook
// "created" event) and enriched by the data mapper during syncs. The sync
// engine never deletes a record on its own; only an explicit deletion
// notification removes or demotes one, per the configured policy.
type ContentRecord struct {
	LocalID    int64  `json:"local_id"`
	Kind       Kind   `json:"kind"`
	ExternalID int64  `json:"external_id"`
	Title      string `json:"title"`
	// Body is the primary text: overview for movies/series, biography for
	// people. The mapper only overwrites a non-empty body when asked to.
	Body   string `json:"body,omitempty"`
	Status string `json:"status"`

	// Fields holds the mapped provider metadata: scalar fields (dates,
	// ratings, counts) and structured sub-objects (production companies,
	// credits, media assets) serialized as-is.
	Fields map[string]interface{} `json:"fields,omitempty"`

	Popularity     float64    `json:"popularity,omitempty"`
	PopularityRank int        `json:"popularity_rank,omitempty"`
	LastSyncedAt   *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Taxonomy kinds for classification terms.
const (
	TaxonomyGenre    = "genre"
	TaxonomyCountry  = "country"
	TaxonomyLanguage = "language"
	TaxonomyNetwork  = "network"
	TaxonomyYear     = "year"
)

// ClassificationTerm is a named category value (genre, country, language,
// network, release year) associated with zero or more content records.
// Term names are unique within a taxonomy; terms are created lazily on
// first encounter and reused thereafter.
type ClassificationTerm struct {
	ID       int64  `json:"id"`
	Taxonomy string `json:"taxonomy"`
	Name     string `json:"name"`
	// ExternalID is the provider's id for this term, zero when the provider
	// has none (e.g. "by year" terms) or it hasn't been seen yet.
	ExternalID int64 `json:"external_id,omitempty"`
}

// Run types for scheduled sync batches.
const (
	RunIncremental = "incremental"
	RunFull        = "full"
	RunCleanup     = "cleanup"
)

// SyncRunRecord summarizes one scheduled batch run. Created at run start,
// finalized at run end, retained with a rolling retention window.
type SyncRunRecord struct {
	ID             string     `json:"id"`
	RunType        string     `json:"run_type"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	ItemsProcessed int        `json:"items_processed"`
	ItemsFailed    int        `json:"items_failed"`
	// Error carries the top-level failure message when the run aborted.
	Error string `json:"error,omitempty"`
}
