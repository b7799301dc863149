// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/cinegraph/internal/models"
)

// MemoryTermStore is the in-memory TermStore.
type MemoryTermStore struct {
	mu     sync.Mutex
	nextID int64
	terms  map[int64]*models.ClassificationTerm
	// byName indexes taxonomy + normalized name -> term id.
	byName map[termKey]int64
	// assoc maps localID -> set of term ids.
	assoc map[int64]map[int64]struct{}
}

type termKey struct {
	taxonomy string
	name     string
}

// NewMemoryTermStore creates an empty term store.
func NewMemoryTermStore() *MemoryTermStore {
	return &MemoryTermStore{
		nextID: 1,
		terms:  make(map[int64]*models.ClassificationTerm),
		byName: make(map[termKey]int64),
		assoc:  make(map[int64]map[int64]struct{}),
	}
}

func (s *MemoryTermStore) FindOrCreateTerm(_ context.Context, taxonomy, name string) (*models.ClassificationTerm, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := termKey{taxonomy, NormalizeTermName(name)}
	if id, ok := s.byName[key]; ok {
		cp := *s.terms[id]
		return &cp, false, nil
	}

	term := &models.ClassificationTerm{
		ID:       s.nextID,
		Taxonomy: taxonomy,
		Name:     name,
	}
	s.nextID++
	s.terms[term.ID] = term
	s.byName[key] = term.ID
	cp := *term
	return &cp, true, nil
}

func (s *MemoryTermStore) SetTermExternalID(_ context.Context, termID, externalID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	term, ok := s.terms[termID]
	if !ok {
		return ErrNotFound
	}
	if term.ExternalID == 0 {
		term.ExternalID = externalID
	}
	return nil
}

func (s *MemoryTermStore) Associate(_ context.Context, localID, termID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.terms[termID]; !ok {
		return ErrNotFound
	}
	set, ok := s.assoc[localID]
	if !ok {
		set = make(map[int64]struct{})
		s.assoc[localID] = set
	}
	set[termID] = struct{}{}
	return nil
}

func (s *MemoryTermStore) TermsFor(_ context.Context, localID int64) ([]models.ClassificationTerm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.ClassificationTerm
	for id := range s.assoc[localID] {
		out = append(out, *s.terms[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// TermCount reports the total number of terms; used by tests asserting
// that repeated mapping creates no duplicates.
func (s *MemoryTermStore) TermCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.terms)
}

// MemoryRunStore is the in-memory SyncRunStore.
type MemoryRunStore struct {
	mu   sync.Mutex
	runs map[string]*models.SyncRunRecord
}

// NewMemoryRunStore creates an empty run store.
func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{runs: make(map[string]*models.SyncRunRecord)}
}

func (s *MemoryRunStore) StartRun(_ context.Context, run *models.SyncRunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

func (s *MemoryRunStore) FinishRun(_ context.Context, run *models.SyncRunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; !ok {
		return ErrNotFound
	}
	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

func (s *MemoryRunStore) RecentRuns(_ context.Context, limit int) ([]models.SyncRunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.SyncRunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, *run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryRunStore) PruneRuns(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for id, run := range s.runs {
		if run.FinishedAt != nil && run.StartedAt.Before(cutoff) {
			delete(s.runs, id)
			pruned++
		}
	}
	return pruned, nil
}
