// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

package store

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/cinegraph/internal/clock"
	"github.com/tomtom215/cinegraph/internal/config"
	"github.com/tomtom215/cinegraph/internal/models"
)

func TestPlaceholderFindOrCreate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryContentStore(nil)

	id1, err := s.CreatePlaceholder(ctx, models.KindMovie, 550, "Fight Club")
	if err != nil {
		t.Fatalf("CreatePlaceholder: %v", err)
	}
	id2, err := s.CreatePlaceholder(ctx, models.KindMovie, 550, "Fight Club")
	if err != nil {
		t.Fatalf("second CreatePlaceholder: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("find-or-create returned distinct ids %d and %d", id1, id2)
	}

	// Same external id under a different kind is a distinct record.
	id3, err := s.CreatePlaceholder(ctx, models.KindSeries, 550, "Different")
	if err != nil {
		t.Fatalf("cross-kind CreatePlaceholder: %v", err)
	}
	if id3 == id1 {
		t.Fatal("kinds must not share the external id namespace")
	}

	rec, err := s.FindByExternalID(ctx, models.KindMovie, 550)
	if err != nil {
		t.Fatalf("FindByExternalID: %v", err)
	}
	if rec.LocalID != id1 || rec.Title != "Fight Club" || rec.Status != models.StatusDraft {
		t.Fatalf("unexpected placeholder: %+v", rec)
	}
}

func TestUpsertFieldsReservedKeys(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryContentStore(nil)
	id, _ := s.CreatePlaceholder(ctx, models.KindMovie, 550, "")

	err := s.UpsertFields(ctx, id, map[string]interface{}{
		"title":        "Fight Club",
		"body":         "An insomniac office worker...",
		"popularity":   61.4,
		"release_date": "1999-10-15",
		"vote_count":   int64(26000),
	})
	if err != nil {
		t.Fatalf("UpsertFields: %v", err)
	}

	rec, _ := s.Get(ctx, id)
	if rec.Title != "Fight Club" || rec.Body == "" || rec.Popularity != 61.4 {
		t.Fatalf("reserved keys not lifted: %+v", rec)
	}
	if rec.Fields["release_date"] != "1999-10-15" {
		t.Fatalf("plain field lost: %v", rec.Fields)
	}
	if _, ok := rec.Fields["title"]; ok {
		t.Fatal("reserved key leaked into the field map")
	}
}

func TestDeleteOrMarkPolicies(t *testing.T) {
	ctx := context.Background()

	t.Run("hard", func(t *testing.T) {
		s := NewMemoryContentStore(nil)
		id, _ := s.CreatePlaceholder(ctx, models.KindMovie, 42, "Gone")
		if err := s.DeleteOrMark(ctx, id, config.DeletionHard, ""); err != nil {
			t.Fatalf("DeleteOrMark: %v", err)
		}
		if _, err := s.Get(ctx, id); err != ErrNotFound {
			t.Fatalf("record still present after hard delete: %v", err)
		}
		// The external id slot is free again.
		if _, err := s.CreatePlaceholder(ctx, models.KindMovie, 42, "Back"); err != nil {
			t.Fatalf("re-create after hard delete: %v", err)
		}
	})

	t.Run("mark", func(t *testing.T) {
		s := NewMemoryContentStore(nil)
		id, _ := s.CreatePlaceholder(ctx, models.KindMovie, 42, "Stays")
		if err := s.DeleteOrMark(ctx, id, config.DeletionMark, ""); err != nil {
			t.Fatalf("DeleteOrMark: %v", err)
		}
		rec, err := s.Get(ctx, id)
		if err != nil {
			t.Fatalf("marked record must remain queryable: %v", err)
		}
		if rec.Status != models.StatusUnavailable {
			t.Fatalf("status = %q, want unavailable", rec.Status)
		}
	})

	t.Run("mark_demote", func(t *testing.T) {
		s := NewMemoryContentStore(nil)
		id, _ := s.CreatePlaceholder(ctx, models.KindMovie, 42, "Demoted")
		_ = s.UpsertFields(ctx, id, map[string]interface{}{"status": models.StatusPublished})
		if err := s.DeleteOrMark(ctx, id, config.DeletionMarkDemote, models.StatusDraft); err != nil {
			t.Fatalf("DeleteOrMark: %v", err)
		}
		rec, _ := s.Get(ctx, id)
		if rec.Status != models.StatusDraft {
			t.Fatalf("status = %q, want draft after demotion", rec.Status)
		}
		if rec.Fields["unavailable"] != true {
			t.Fatal("demoted record should carry the unavailable flag")
		}
	})
}

func TestSelectRecentlyChanged(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewManual(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	s := NewMemoryContentStore(clk)

	oldID, _ := s.CreatePlaceholder(ctx, models.KindMovie, 1, "old")
	clk.Advance(10 * 24 * time.Hour)
	newID, _ := s.CreatePlaceholder(ctx, models.KindMovie, 2, "new")

	since := clk.Now().Add(-7 * 24 * time.Hour)
	ids, err := s.SelectRecentlyChanged(ctx, since, 100)
	if err != nil {
		t.Fatalf("SelectRecentlyChanged: %v", err)
	}
	if len(ids) != 1 || ids[0] != newID {
		t.Fatalf("ids = %v, want only %d", ids, newID)
	}

	// Touching the old record pulls it back into the window.
	if err := s.UpsertFields(ctx, oldID, map[string]interface{}{"title": "old touched"}); err != nil {
		t.Fatalf("UpsertFields: %v", err)
	}
	ids, _ = s.SelectRecentlyChanged(ctx, since, 100)
	if len(ids) != 2 {
		t.Fatalf("ids = %v, want both records after touch", ids)
	}
}

func TestSelectStalestOrdering(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewManual(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	s := NewMemoryContentStore(clk)

	neverID, _ := s.CreatePlaceholder(ctx, models.KindMovie, 1, "never synced")
	staleID, _ := s.CreatePlaceholder(ctx, models.KindMovie, 2, "stale")
	freshID, _ := s.CreatePlaceholder(ctx, models.KindMovie, 3, "fresh")
	_ = s.SetLastSynced(ctx, staleID, clk.Now().Add(-30*24*time.Hour))
	_ = s.SetLastSynced(ctx, freshID, clk.Now())

	ids, err := s.SelectStalest(ctx, 2)
	if err != nil {
		t.Fatalf("SelectStalest: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("len(ids) = %d, want 2", len(ids))
	}
	// With a jitter window larger than the store, any 2 of the 3 may be
	// chosen; the batch must never contain duplicates.
	if ids[0] == ids[1] {
		t.Fatalf("duplicate ids in batch: %v", ids)
	}
	_ = neverID
}

func TestSelectOrphans(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryContentStore(nil)
	_, _ = s.CreatePlaceholder(ctx, models.KindMovie, 550, "backed")
	orphanID, _ := s.CreatePlaceholder(ctx, models.KindMovie, 0, "orphan")

	ids, err := s.SelectOrphans(ctx)
	if err != nil {
		t.Fatalf("SelectOrphans: %v", err)
	}
	if len(ids) != 1 || ids[0] != orphanID {
		t.Fatalf("ids = %v, want only the orphan %d", ids, orphanID)
	}
}

func TestRecomputePopularityRanks(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryContentStore(nil)

	lowID, _ := s.CreatePlaceholder(ctx, models.KindMovie, 1, "low")
	highID, _ := s.CreatePlaceholder(ctx, models.KindMovie, 2, "high")
	personID, _ := s.CreatePlaceholder(ctx, models.KindPerson, 3, "someone")
	_ = s.UpsertFields(ctx, lowID, map[string]interface{}{"popularity": 1.0})
	_ = s.UpsertFields(ctx, highID, map[string]interface{}{"popularity": 99.0})
	_ = s.UpsertFields(ctx, personID, map[string]interface{}{"popularity": 50.0})

	if err := s.RecomputePopularityRanks(ctx); err != nil {
		t.Fatalf("RecomputePopularityRanks: %v", err)
	}

	high, _ := s.Get(ctx, highID)
	low, _ := s.Get(ctx, lowID)
	person, _ := s.Get(ctx, personID)
	if high.PopularityRank != 1 || low.PopularityRank != 2 {
		t.Fatalf("movie ranks = %d/%d, want 1/2", high.PopularityRank, low.PopularityRank)
	}
	// Ranks are per kind.
	if person.PopularityRank != 1 {
		t.Fatalf("person rank = %d, want 1", person.PopularityRank)
	}
}

func TestTermFindOrCreateNormalization(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryTermStore()

	first, created, err := s.FindOrCreateTerm(ctx, models.TaxonomyGenre, "Action")
	if err != nil || !created {
		t.Fatalf("first FindOrCreateTerm: created=%v err=%v", created, err)
	}
	second, created, err := s.FindOrCreateTerm(ctx, models.TaxonomyGenre, "  action ")
	if err != nil || created {
		t.Fatalf("normalized lookup should reuse: created=%v err=%v", created, err)
	}
	if first.ID != second.ID || second.Name != "Action" {
		t.Fatalf("term identity broken: %+v vs %+v", first, second)
	}

	// Same name in a different taxonomy is a distinct term.
	_, created, _ = s.FindOrCreateTerm(ctx, models.TaxonomyCountry, "Action")
	if !created {
		t.Fatal("taxonomies must not share the name namespace")
	}
	if s.TermCount() != 2 {
		t.Fatalf("TermCount = %d, want 2", s.TermCount())
	}
}

func TestTermExternalIDBackfillOnce(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryTermStore()
	term, _, _ := s.FindOrCreateTerm(ctx, models.TaxonomyGenre, "Action")

	if err := s.SetTermExternalID(ctx, term.ID, 28); err != nil {
		t.Fatalf("SetTermExternalID: %v", err)
	}
	// A second backfill with a different id is ignored.
	if err := s.SetTermExternalID(ctx, term.ID, 999); err != nil {
		t.Fatalf("repeat SetTermExternalID: %v", err)
	}

	got, _, _ := s.FindOrCreateTerm(ctx, models.TaxonomyGenre, "Action")
	if got.ExternalID != 28 {
		t.Fatalf("ExternalID = %d, want 28", got.ExternalID)
	}
}

func TestAssociateIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryTermStore()
	term, _, _ := s.FindOrCreateTerm(ctx, models.TaxonomyGenre, "Action")

	_ = s.Associate(ctx, 7, term.ID)
	_ = s.Associate(ctx, 7, term.ID)

	terms, err := s.TermsFor(ctx, 7)
	if err != nil {
		t.Fatalf("TermsFor: %v", err)
	}
	if len(terms) != 1 {
		t.Fatalf("len(terms) = %d, want 1", len(terms))
	}
}

func TestRunStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryRunStore()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	old := &models.SyncRunRecord{ID: "a", RunType: models.RunFull, StartedAt: now.Add(-48 * time.Hour)}
	fresh := &models.SyncRunRecord{ID: "b", RunType: models.RunIncremental, StartedAt: now}
	_ = s.StartRun(ctx, old)
	_ = s.StartRun(ctx, fresh)

	finished := now.Add(-47 * time.Hour)
	old.FinishedAt = &finished
	old.ItemsProcessed = 10
	if err := s.FinishRun(ctx, old); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	runs, _ := s.RecentRuns(ctx, 10)
	if len(runs) != 2 || runs[0].ID != "b" {
		t.Fatalf("RecentRuns order wrong: %+v", runs)
	}

	pruned, _ := s.PruneRuns(ctx, now.Add(-24*time.Hour))
	if pruned != 1 {
		t.Fatalf("pruned = %d, want 1 (unfinished runs are kept)", pruned)
	}
	runs, _ = s.RecentRuns(ctx, 10)
	if len(runs) != 1 || runs[0].ID != "b" {
		t.Fatalf("runs after prune: %+v", runs)
	}
}
