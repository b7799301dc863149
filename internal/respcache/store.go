// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

package respcache

import (
	"sync"
	"time"
)

// Entry is one cached provider response.
type Entry struct {
	Key            string        `json:"key"`
	Payload        []byte        `json:"payload"`
	TypeTag        string        `json:"type_tag"`
	TTL            time.Duration `json:"ttl"`
	CreatedAt      time.Time     `json:"created_at"`
	LastAccessedAt time.Time     `json:"last_accessed_at"`
	ExpiresAt      time.Time     `json:"expires_at"`
}

// ApproxSize returns the approximate memory footprint of the entry in bytes.
func (e *Entry) ApproxSize() int {
	return len(e.Key) + len(e.Payload) + len(e.TypeTag) + 64
}

// EntryStore is the pluggable backing medium for cache entries. It only has
// to be fast; durability is a performance optimization, never a correctness
// requirement.
type EntryStore interface {
	Get(key string) (*Entry, bool, error)
	Put(e *Entry) error
	Delete(key string) error
	// Scan visits every entry; returning false from fn stops the scan.
	Scan(fn func(e *Entry) bool) error
	Len() (int, error)
	Close() error
}

// MemoryStore is the default in-process EntryStore.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewMemoryStore creates an empty in-memory entry store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Entry)}
}

// Get returns a copy of the entry to keep callers from mutating shared state.
func (m *MemoryStore) Get(key string) (*Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	cp := *e
	return &cp, true, nil
}

func (m *MemoryStore) Put(e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.entries[e.Key] = &cp
	return nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemoryStore) Scan(fn func(e *Entry) bool) error {
	m.mu.RLock()
	snapshot := make([]*Entry, 0, len(m.entries))
	for _, e := range m.entries {
		cp := *e
		snapshot = append(snapshot, &cp)
	}
	m.mu.RUnlock()

	for _, e := range snapshot {
		if !fn(e) {
			break
		}
	}
	return nil
}

func (m *MemoryStore) Len() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error { return nil }
