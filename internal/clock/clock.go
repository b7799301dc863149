// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

// Package clock provides an injectable time source.
//
// Every time-dependent component (cache TTL expiry, rate-limit window pruning,
// backoff arithmetic, queue visibility delays) takes a Clock instead of calling
// time.Now directly, so tests can advance time deterministically instead of
// sleeping.
package clock

import (
	"sync"
	"time"
)

// Clock is the minimal time source used across the sync engine.
type Clock interface {
	Now() time.Time
}

// System is a Clock backed by the wall clock.
type System struct{}

// Now returns the current wall clock time.
func (System) Now() time.Time { return time.Now() }

// NewSystem returns the production clock.
func NewSystem() Clock { return System{} }

// Manual is a Clock whose current time is set explicitly.
// Safe for concurrent use.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual creates a manual clock starting at the given instant.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the manually set time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// Set pins the clock to an absolute instant.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}
