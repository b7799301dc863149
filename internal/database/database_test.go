// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/cinegraph/internal/clock"
	"github.com/tomtom215/cinegraph/internal/config"
	"github.com/tomtom215/cinegraph/internal/models"
	"github.com/tomtom215/cinegraph/internal/store"
)

// Interface conformance.
var (
	_ store.ContentStore = (*DB)(nil)
	_ store.TermStore    = (*DB)(nil)
	_ store.SyncRunStore = (*DB)(nil)
)

func newTestDB(t *testing.T) (*DB, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	db, err := New(config.Database{}, clk)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, clk
}

func TestPlaceholderFindOrCreate(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	first, err := db.CreatePlaceholder(ctx, models.KindMovie, 550, "Fight Club")
	require.NoError(t, err)

	second, err := db.CreatePlaceholder(ctx, models.KindMovie, 550, "Fight Club (again)")
	require.NoError(t, err)
	assert.Equal(t, first, second, "same (kind, external id) must resolve to one record")

	other, err := db.CreatePlaceholder(ctx, models.KindSeries, 550, "Not the same thing")
	require.NoError(t, err)
	assert.NotEqual(t, first, other, "kinds have independent external id spaces")

	rec, err := db.Get(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "Fight Club", rec.Title)
	assert.Equal(t, models.StatusDraft, rec.Status)
	assert.Nil(t, rec.LastSyncedAt)
}

func TestGetExternalID(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	localID, err := db.CreatePlaceholder(ctx, models.KindPerson, 287, "Brad Pitt")
	require.NoError(t, err)

	kind, externalID, err := db.GetExternalID(ctx, localID)
	require.NoError(t, err)
	assert.Equal(t, models.KindPerson, kind)
	assert.Equal(t, int64(287), externalID)

	_, _, err = db.GetExternalID(ctx, 9999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpsertFieldsReservedAndMerged(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	localID, err := db.CreatePlaceholder(ctx, models.KindMovie, 550, "")
	require.NoError(t, err)

	require.NoError(t, db.UpsertFields(ctx, localID, map[string]interface{}{
		"title":        "Fight Club",
		"body":         "An insomniac office worker...",
		"status":       models.StatusPublished,
		"popularity":   61.4,
		"release_date": "1999-10-15",
		"runtime":      float64(139),
	}))

	rec, err := db.Get(ctx, localID)
	require.NoError(t, err)
	assert.Equal(t, "Fight Club", rec.Title)
	assert.Equal(t, "An insomniac office worker...", rec.Body)
	assert.Equal(t, models.StatusPublished, rec.Status)
	assert.InDelta(t, 61.4, rec.Popularity, 0.001)
	assert.Equal(t, "1999-10-15", rec.Fields["release_date"])
	assert.NotContains(t, rec.Fields, "title")

	// A second set merges without dropping earlier keys.
	require.NoError(t, db.UpsertFields(ctx, localID, map[string]interface{}{
		"vote_average": 8.4,
	}))
	rec, err = db.Get(ctx, localID)
	require.NoError(t, err)
	assert.Equal(t, "1999-10-15", rec.Fields["release_date"])
	assert.InDelta(t, 8.4, rec.Fields["vote_average"].(float64), 0.001)
}

func TestSetLastSynced(t *testing.T) {
	db, clk := newTestDB(t)
	ctx := context.Background()

	localID, err := db.CreatePlaceholder(ctx, models.KindMovie, 550, "Fight Club")
	require.NoError(t, err)

	require.NoError(t, db.SetLastSynced(ctx, localID, clk.Now()))

	rec, err := db.Get(ctx, localID)
	require.NoError(t, err)
	require.NotNil(t, rec.LastSyncedAt)
	assert.WithinDuration(t, clk.Now(), *rec.LastSyncedAt, time.Second)

	assert.ErrorIs(t, db.SetLastSynced(ctx, 9999, clk.Now()), store.ErrNotFound)
}

func TestDeleteOrMarkPolicies(t *testing.T) {
	ctx := context.Background()

	t.Run("hard removes the record", func(t *testing.T) {
		db, _ := newTestDB(t)
		localID, err := db.CreatePlaceholder(ctx, models.KindMovie, 550, "Fight Club")
		require.NoError(t, err)

		require.NoError(t, db.DeleteOrMark(ctx, localID, config.DeletionHard, ""))
		_, err = db.Get(ctx, localID)
		assert.ErrorIs(t, err, store.ErrNotFound)

		// The external slot is free again.
		again, err := db.CreatePlaceholder(ctx, models.KindMovie, 550, "Fight Club")
		require.NoError(t, err)
		assert.NotEqual(t, localID, again)
	})

	t.Run("mark keeps the record queryable", func(t *testing.T) {
		db, _ := newTestDB(t)
		localID, err := db.CreatePlaceholder(ctx, models.KindMovie, 550, "Fight Club")
		require.NoError(t, err)

		require.NoError(t, db.DeleteOrMark(ctx, localID, config.DeletionMark, ""))
		rec, err := db.Get(ctx, localID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusUnavailable, rec.Status)
		assert.Equal(t, true, rec.Fields["unavailable"])
	})

	t.Run("mark_demote applies the configured status", func(t *testing.T) {
		db, _ := newTestDB(t)
		localID, err := db.CreatePlaceholder(ctx, models.KindMovie, 550, "Fight Club")
		require.NoError(t, err)

		require.NoError(t, db.DeleteOrMark(ctx, localID, config.DeletionMarkDemote, models.StatusDraft))
		rec, err := db.Get(ctx, localID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusDraft, rec.Status)
		assert.Equal(t, true, rec.Fields["unavailable"])
	})
}

func TestSelectRecentlyChangedWindow(t *testing.T) {
	db, clk := newTestDB(t)
	ctx := context.Background()

	oldID, err := db.CreatePlaceholder(ctx, models.KindMovie, 1, "Old")
	require.NoError(t, err)
	since := clk.Now()

	clk.Advance(time.Hour)
	newID, err := db.CreatePlaceholder(ctx, models.KindMovie, 2, "New")
	require.NoError(t, err)

	ids, err := db.SelectRecentlyChanged(ctx, since, 10)
	require.NoError(t, err)
	assert.Contains(t, ids, newID)
	assert.NotContains(t, ids, oldID)

	// Touching the old record pulls it back into the window.
	require.NoError(t, db.UpsertFields(ctx, oldID, map[string]interface{}{"runtime": float64(90)}))
	ids, err = db.SelectRecentlyChanged(ctx, since, 10)
	require.NoError(t, err)
	assert.Contains(t, ids, oldID)
}

func TestSelectStalestNeverSyncedLead(t *testing.T) {
	db, clk := newTestDB(t)
	ctx := context.Background()

	syncedID, err := db.CreatePlaceholder(ctx, models.KindMovie, 1, "Synced")
	require.NoError(t, err)
	require.NoError(t, db.SetLastSynced(ctx, syncedID, clk.Now()))

	var neverSynced []int64
	for i := int64(2); i <= 30; i++ {
		id, err := db.CreatePlaceholder(ctx, models.KindMovie, i, "Never")
		require.NoError(t, err)
		neverSynced = append(neverSynced, id)
	}

	// With more never-synced records than limit+jitter, the synced record
	// cannot appear in the batch.
	ids, err := db.SelectStalest(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, ids, 5)
	assert.NotContains(t, ids, syncedID)
	for _, id := range ids {
		assert.Contains(t, neverSynced, id)
	}
}

func TestSelectOrphans(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	linked, err := db.CreatePlaceholder(ctx, models.KindMovie, 550, "Linked")
	require.NoError(t, err)
	orphan, err := db.CreatePlaceholder(ctx, models.KindMovie, 0, "Orphan")
	require.NoError(t, err)

	ids, err := db.SelectOrphans(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, orphan)
	assert.NotContains(t, ids, linked)
}

func TestRecomputePopularityRanksPerKind(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	popular, err := db.CreatePlaceholder(ctx, models.KindMovie, 1, "Popular")
	require.NoError(t, err)
	require.NoError(t, db.UpsertFields(ctx, popular, map[string]interface{}{"popularity": 90.0}))

	obscure, err := db.CreatePlaceholder(ctx, models.KindMovie, 2, "Obscure")
	require.NoError(t, err)
	require.NoError(t, db.UpsertFields(ctx, obscure, map[string]interface{}{"popularity": 1.0}))

	show, err := db.CreatePlaceholder(ctx, models.KindSeries, 3, "Show")
	require.NoError(t, err)
	require.NoError(t, db.UpsertFields(ctx, show, map[string]interface{}{"popularity": 50.0}))

	require.NoError(t, db.RecomputePopularityRanks(ctx))

	for id, want := range map[int64]int{popular: 1, obscure: 2, show: 1} {
		rec, err := db.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, rec.PopularityRank)
	}
}

func TestTermFindOrCreateNormalization(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	term, created, err := db.FindOrCreateTerm(ctx, models.TaxonomyGenre, "Action")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Action", term.Name)

	same, created, err := db.FindOrCreateTerm(ctx, models.TaxonomyGenre, "  action ")
	require.NoError(t, err)
	assert.False(t, created, "normalized match must reuse the term")
	assert.Equal(t, term.ID, same.ID)
	assert.Equal(t, "Action", same.Name, "display casing comes from the first encounter")

	other, created, err := db.FindOrCreateTerm(ctx, models.TaxonomyCountry, "Action")
	require.NoError(t, err)
	assert.True(t, created, "taxonomies have independent name spaces")
	assert.NotEqual(t, term.ID, other.ID)
}

func TestTermExternalIDBackfillOnce(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	term, _, err := db.FindOrCreateTerm(ctx, models.TaxonomyGenre, "Action")
	require.NoError(t, err)

	require.NoError(t, db.SetTermExternalID(ctx, term.ID, 28))
	require.NoError(t, db.SetTermExternalID(ctx, term.ID, 999))

	got, _, err := db.FindOrCreateTerm(ctx, models.TaxonomyGenre, "Action")
	require.NoError(t, err)
	assert.Equal(t, int64(28), got.ExternalID, "a set external id is never overwritten")
}

func TestAssociateIdempotentAndTermsFor(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	localID, err := db.CreatePlaceholder(ctx, models.KindMovie, 550, "Fight Club")
	require.NoError(t, err)
	term, _, err := db.FindOrCreateTerm(ctx, models.TaxonomyGenre, "Drama")
	require.NoError(t, err)

	require.NoError(t, db.Associate(ctx, localID, term.ID))
	require.NoError(t, db.Associate(ctx, localID, term.ID))

	terms, err := db.TermsFor(ctx, localID)
	require.NoError(t, err)
	require.Len(t, terms, 1)
	assert.Equal(t, "Drama", terms[0].Name)
}

func TestRunLifecycleAndPrune(t *testing.T) {
	db, clk := newTestDB(t)
	ctx := context.Background()

	old := &models.SyncRunRecord{ID: "run-old", RunType: models.RunIncremental, StartedAt: clk.Now()}
	require.NoError(t, db.StartRun(ctx, old))
	finished := clk.Now().Add(time.Minute)
	old.FinishedAt = &finished
	old.ItemsProcessed = 10
	old.ItemsFailed = 2
	require.NoError(t, db.FinishRun(ctx, old))

	clk.Advance(48 * time.Hour)
	current := &models.SyncRunRecord{ID: "run-current", RunType: models.RunFull, StartedAt: clk.Now()}
	require.NoError(t, db.StartRun(ctx, current))

	runs, err := db.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-current", runs[0].ID, "most recently started first")
	assert.Equal(t, 10, runs[1].ItemsProcessed)
	assert.Equal(t, 2, runs[1].ItemsFailed)
	assert.Nil(t, runs[0].FinishedAt, "unfinished run has no finish time")

	// Prune removes the old finished run but never an unfinished one.
	pruned, err := db.PruneRuns(ctx, clk.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)

	runs, err = db.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-current", runs[0].ID)
}
