// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

package ratelimit

import (
	"sync"
	"time"
)

// Request is one admitted request inside a sliding window.
type Request struct {
	At time.Time `json:"at"`
	// Done marks whether an outcome has been recorded for this admission.
	Done    bool `json:"done"`
	Success bool `json:"success"`
}

// Window is the per-endpoint sliding-window state. Entries older than the
// window duration are pruned on every check.
type Window struct {
	Requests            []Request `json:"requests"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastFailureAt       time.Time `json:"last_failure_at"`
	LastBurstAt         time.Time `json:"last_burst_at"`

	// Cumulative counters, kept across pruning.
	TotalAllowed int64 `json:"total_allowed"`
	TotalDenied  int64 `json:"total_denied"`
	TotalSuccess int64 `json:"total_success"`
	TotalFailure int64 `json:"total_failure"`
}

// Prune drops requests older than window relative to now.
func (w *Window) Prune(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	keep := w.Requests[:0]
	for _, r := range w.Requests {
		if r.At.After(cutoff) {
			keep = append(keep, r)
		}
	}
	w.Requests = keep
}

// WindowStore is the pluggable backing medium for rate windows. Update must
// apply fn atomically with respect to other updates of the same key.
//
// A store error means the limiter cannot see true request counts; callers
// fail closed (deny) in that case to respect provider limits.
type WindowStore interface {
	Update(key string, fn func(w *Window)) error
	Snapshot(key string) (*Window, error)
	Reset(key string) error
	Close() error
}

// MemoryStore is the default in-process WindowStore with coarse per-key
// locking.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*Window
}

// NewMemoryStore creates an empty in-memory window store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]*Window)}
}

func (m *MemoryStore) Update(key string, fn func(w *Window)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[key]
	if !ok {
		w = &Window{}
		m.windows[key] = w
	}
	fn(w)
	return nil
}

// Snapshot returns a copy of the window for key; an empty window when the
// key has never been seen.
func (m *MemoryStore) Snapshot(key string) (*Window, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[key]
	if !ok {
		return &Window{}, nil
	}
	cp := *w
	cp.Requests = append([]Request{}, w.Requests...)
	return &cp, nil
}

func (m *MemoryStore) Reset(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.windows, key)
	return nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error { return nil }

// FailingStore always errors; it exists so tests can verify fail-closed
// behavior when the window store is unreachable.
type FailingStore struct{ Err error }

func (f FailingStore) Update(string, func(w *Window)) error    { return f.Err }
func (f FailingStore) Snapshot(string) (*Window, error)        { return nil, f.Err }
func (f FailingStore) Reset(string) error                      { return f.Err }
func (f FailingStore) Close() error                            { return nil }
