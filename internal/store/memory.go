// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

package store

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/cinegraph/internal/clock"
	"github.com/tomtom215/cinegraph/internal/config"
	"github.com/tomtom215/cinegraph/internal/models"
)

// stalestJitterWindow is how many extra candidates SelectStalest considers
// beyond the requested limit when shuffling. Bounded randomness: the batch
// always comes from the stalest (limit + window) records.
const stalestJitterWindow = 16

// MemoryContentStore is the in-memory ContentStore used by tests and
// zero-config deployments.
type MemoryContentStore struct {
	mu      sync.Mutex
	clk     clock.Clock
	nextID  int64
	records map[int64]*models.ContentRecord
	// byExternal indexes (kind, externalID) -> localID.
	byExternal map[externalKey]int64
	rng        *rand.Rand
}

type externalKey struct {
	kind       models.Kind
	externalID int64
}

// NewMemoryContentStore creates an empty content store. A nil clock selects
// the system clock.
func NewMemoryContentStore(clk clock.Clock) *MemoryContentStore {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &MemoryContentStore{
		clk:        clk,
		nextID:     1,
		records:    make(map[int64]*models.ContentRecord),
		byExternal: make(map[externalKey]int64),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *MemoryContentStore) Get(_ context.Context, localID int64) (*models.ContentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[localID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRecord(rec), nil
}

func (s *MemoryContentStore) GetExternalID(_ context.Context, localID int64) (models.Kind, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[localID]
	if !ok {
		return "", 0, ErrNotFound
	}
	return rec.Kind, rec.ExternalID, nil
}

func (s *MemoryContentStore) FindByExternalID(_ context.Context, kind models.Kind, externalID int64) (*models.ContentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	localID, ok := s.byExternal[externalKey{kind, externalID}]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRecord(s.records[localID]), nil
}

func (s *MemoryContentStore) CreatePlaceholder(_ context.Context, kind models.Kind, externalID int64, title string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := externalKey{kind, externalID}
	if localID, ok := s.byExternal[key]; ok {
		return localID, nil
	}

	now := s.clk.Now()
	localID := s.nextID
	s.nextID++
	s.records[localID] = &models.ContentRecord{
		LocalID:    localID,
		Kind:       kind,
		ExternalID: externalID,
		Title:      title,
		Status:     models.StatusDraft,
		Fields:     make(map[string]interface{}),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.byExternal[key] = localID
	return localID, nil
}

func (s *MemoryContentStore) UpsertFields(_ context.Context, localID int64, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[localID]
	if !ok {
		return ErrNotFound
	}

	// Apply to a copy first so a failure never leaves a half-written
	// record visible.
	next := copyRecord(rec)
	for k, v := range fields {
		switch k {
		case "title":
			if sv, ok := v.(string); ok {
				next.Title = sv
			}
		case "body":
			if sv, ok := v.(string); ok {
				next.Body = sv
			}
		case "status":
			if sv, ok := v.(string); ok {
				next.Status = sv
			}
		case "popularity":
			if fv, ok := toFloat(v); ok {
				next.Popularity = fv
			}
		default:
			next.Fields[k] = v
		}
	}
	next.UpdatedAt = s.clk.Now()
	s.records[localID] = next
	return nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func (s *MemoryContentStore) SetLastSynced(_ context.Context, localID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[localID]
	if !ok {
		return ErrNotFound
	}
	t := at
	rec.LastSyncedAt = &t
	return nil
}

func (s *MemoryContentStore) DeleteOrMark(_ context.Context, localID int64, policy config.DeletionPolicy, demoteStatus string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[localID]
	if !ok {
		return ErrNotFound
	}

	switch policy {
	case config.DeletionHard:
		delete(s.byExternal, externalKey{rec.Kind, rec.ExternalID})
		delete(s.records, localID)
	case config.DeletionMarkDemote:
		if demoteStatus == "" {
			demoteStatus = models.StatusDraft
		}
		rec.Status = demoteStatus
		rec.Fields["unavailable"] = true
		rec.UpdatedAt = s.clk.Now()
	default: // DeletionMark
		rec.Status = models.StatusUnavailable
		rec.Fields["unavailable"] = true
		rec.UpdatedAt = s.clk.Now()
	}
	return nil
}

func (s *MemoryContentStore) SelectRecentlyChanged(_ context.Context, since time.Time, limit int) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []*models.ContentRecord
	for _, rec := range s.records {
		if rec.UpdatedAt.After(since) || rec.CreatedAt.After(since) {
			candidates = append(candidates, rec)
		}
	}
	sortByStaleness(candidates)
	return takeIDs(candidates, limit), nil
}

func (s *MemoryContentStore) SelectStalest(_ context.Context, limit int) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidates := make([]*models.ContentRecord, 0, len(s.records))
	for _, rec := range s.records {
		candidates = append(candidates, rec)
	}
	sortByStaleness(candidates)

	// Shuffle inside the stalest (limit + jitter) records so repeated
	// runs don't hammer the exact same batch.
	window := limit + stalestJitterWindow
	if window > len(candidates) {
		window = len(candidates)
	}
	head := candidates[:window]
	s.rng.Shuffle(len(head), func(i, j int) { head[i], head[j] = head[j], head[i] })

	return takeIDs(candidates, limit), nil
}

func (s *MemoryContentStore) SelectOrphans(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []int64
	for id, rec := range s.records {
		if rec.ExternalID <= 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *MemoryContentStore) RecomputePopularityRanks(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byKind := make(map[models.Kind][]*models.ContentRecord)
	for _, rec := range s.records {
		byKind[rec.Kind] = append(byKind[rec.Kind], rec)
	}
	for _, recs := range byKind {
		sort.Slice(recs, func(i, j int) bool { return recs[i].Popularity > recs[j].Popularity })
		for i, rec := range recs {
			rec.PopularityRank = i + 1
		}
	}
	return nil
}

// sortByStaleness orders records never-synced first, then oldest
// last-synced, then oldest created for a stable tiebreak.
func sortByStaleness(recs []*models.ContentRecord) {
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i].LastSyncedAt, recs[j].LastSyncedAt
		switch {
		case a == nil && b != nil:
			return true
		case a != nil && b == nil:
			return false
		case a != nil && b != nil && !a.Equal(*b):
			return a.Before(*b)
		}
		return recs[i].CreatedAt.Before(recs[j].CreatedAt)
	})
}

func takeIDs(recs []*models.ContentRecord, limit int) []int64 {
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	ids := make([]int64, len(recs))
	for i, rec := range recs {
		ids[i] = rec.LocalID
	}
	return ids
}

func copyRecord(rec *models.ContentRecord) *models.ContentRecord {
	cp := *rec
	cp.Fields = make(map[string]interface{}, len(rec.Fields))
	for k, v := range rec.Fields {
		cp.Fields[k] = v
	}
	if rec.LastSyncedAt != nil {
		t := *rec.LastSyncedAt
		cp.LastSyncedAt = &t
	}
	return &cp
}
