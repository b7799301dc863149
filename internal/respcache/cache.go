// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

// Package respcache caches provider API responses by request fingerprint with
// a per-type TTL policy and a bounded entry count.
//
// Reads are sliding-freshness: every hit refreshes the entry's last access
// time and re-arms its original TTL. When the size bound is exceeded, already
// expired entries are evicted first, then the least recently accessed
// remainder until the cache is back under the configured watermark.
package respcache

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/cinegraph/internal/clock"
	"github.com/tomtom215/cinegraph/internal/metrics"
)

// Cache is a thread-safe TTL response cache over a pluggable EntryStore.
type Cache struct {
	store      EntryStore
	clk        clock.Clock
	maxEntries int
	buffer     int

	// evictMu serializes size-bound enforcement; individual store
	// operations are already atomic per key.
	evictMu sync.Mutex

	statsMu      sync.Mutex
	hits         int64
	misses       int64
	expiredCount int64
}

// Options configures a Cache.
type Options struct {
	// MaxEntries bounds the cache size. Default 1000.
	MaxEntries int
	// EvictionBuffer is how far below MaxEntries eviction drains. Default 100.
	EvictionBuffer int
	// Clock defaults to the system clock.
	Clock clock.Clock
}

// New creates a cache over the given store.
func New(store EntryStore, opts Options) *Cache {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 1000
	}
	if opts.EvictionBuffer <= 0 || opts.EvictionBuffer >= opts.MaxEntries {
		opts.EvictionBuffer = opts.MaxEntries / 10
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewSystem()
	}
	return &Cache{
		store:      store,
		clk:        opts.Clock,
		maxEntries: opts.MaxEntries,
		buffer:     opts.EvictionBuffer,
	}
}

// Get returns the cached payload for key, or (nil, false) when absent or
// expired. Expired entries are evicted on sight. A hit refreshes the entry's
// last access time and re-arms its original TTL.
func (c *Cache) Get(key, typeTag string) ([]byte, bool) {
	entry, ok, err := c.store.Get(key)
	if err != nil || !ok {
		c.recordMiss(typeTag)
		return nil, false
	}

	now := c.clk.Now()
	if now.After(entry.ExpiresAt) {
		_ = c.store.Delete(key)
		c.recordExpired(typeTag)
		c.recordMiss(typeTag)
		return nil, false
	}

	// Sliding freshness: refresh access time and re-arm the original TTL.
	// A failed re-persist only loses the refresh, not the hit.
	entry.LastAccessedAt = now
	entry.ExpiresAt = now.Add(entry.TTL)
	_ = c.store.Put(entry)
	c.recordHit(typeTag)
	return entry.Payload, true
}

// Set stores payload under key with the type tag's policy TTL.
// Returns false when the backing store rejected the write.
func (c *Cache) Set(key string, payload []byte, typeTag string) bool {
	return c.SetWithTTL(key, payload, typeTag, TTLFor(typeTag))
}

// SetWithTTL stores payload with an explicit TTL override.
func (c *Cache) SetWithTTL(key string, payload []byte, typeTag string, ttl time.Duration) bool {
	now := c.clk.Now()
	entry := &Entry{
		Key:            key,
		Payload:        payload,
		TypeTag:        typeTag,
		TTL:            ttl,
		CreatedAt:      now,
		LastAccessedAt: now,
		ExpiresAt:      now.Add(ttl),
	}
	if err := c.store.Put(entry); err != nil {
		return false
	}
	c.enforceSizeBound()
	c.publishGauges()
	return true
}

// Invalidate removes a single entry.
func (c *Cache) Invalidate(key string) {
	_ = c.store.Delete(key)
	metrics.CacheEvictions.WithLabelValues("invalidated").Inc()
	c.publishGauges()
}

// InvalidateByType removes every entry carrying the given type tag and
// returns the number removed.
func (c *Cache) InvalidateByType(typeTag string) int {
	var keys []string
	_ = c.store.Scan(func(e *Entry) bool {
		if e.TypeTag == typeTag {
			keys = append(keys, e.Key)
		}
		return true
	})
	for _, k := range keys {
		_ = c.store.Delete(k)
	}
	if len(keys) > 0 {
		metrics.CacheEvictions.WithLabelValues("invalidated").Add(float64(len(keys)))
	}
	c.publishGauges()
	return len(keys)
}

// Stats is a snapshot of cache contents and effectiveness counters.
type Stats struct {
	Entries      int            `json:"entries"`
	BytesApprox  int64          `json:"bytes_approx"`
	ByType       map[string]int `json:"by_type"`
	ExpiredCount int64          `json:"expired_count"`
	Hits         int64          `json:"hits"`
	Misses       int64          `json:"misses"`
}

// GetStats scans the store and returns current totals.
func (c *Cache) GetStats() Stats {
	stats := Stats{ByType: make(map[string]int)}
	_ = c.store.Scan(func(e *Entry) bool {
		stats.Entries++
		stats.BytesApprox += int64(e.ApproxSize())
		stats.ByType[e.TypeTag]++
		return true
	})

	c.statsMu.Lock()
	stats.ExpiredCount = c.expiredCount
	stats.Hits = c.hits
	stats.Misses = c.misses
	c.statsMu.Unlock()
	return stats
}

// ValidationReport summarizes a Validate pass.
type ValidationReport struct {
	Scanned int `json:"scanned"`
	Expired int `json:"expired"`
	Corrupt int `json:"corrupt"`
}

// Validate scans all entries, removing any that are structurally corrupt or
// expired, and returns counts for observability.
func (c *Cache) Validate() ValidationReport {
	var report ValidationReport
	var remove []string
	now := c.clk.Now()

	_ = c.store.Scan(func(e *Entry) bool {
		report.Scanned++
		switch {
		case e.Key == "" || len(e.Payload) == 0 || e.TTL <= 0:
			report.Corrupt++
			remove = append(remove, e.Key)
		case now.After(e.ExpiresAt):
			report.Expired++
			remove = append(remove, e.Key)
		}
		return true
	})

	for _, k := range remove {
		_ = c.store.Delete(k)
	}
	if report.Expired > 0 {
		metrics.CacheEvictions.WithLabelValues("expired").Add(float64(report.Expired))
	}
	c.publishGauges()
	return report
}

// enforceSizeBound evicts down to maxEntries-buffer when the entry count
// exceeds maxEntries: expired entries first, then least-recently-accessed.
func (c *Cache) enforceSizeBound() {
	c.evictMu.Lock()
	defer c.evictMu.Unlock()

	n, err := c.store.Len()
	if err != nil || n <= c.maxEntries {
		return
	}

	target := c.maxEntries - c.buffer
	now := c.clk.Now()

	type candidate struct {
		key        string
		expired    bool
		lastAccess time.Time
	}
	candidates := make([]candidate, 0, n)
	_ = c.store.Scan(func(e *Entry) bool {
		candidates = append(candidates, candidate{
			key:        e.Key,
			expired:    now.After(e.ExpiresAt),
			lastAccess: e.LastAccessedAt,
		})
		return true
	})

	// Expired first (oldest-expired leading), then coldest by last access.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].expired != candidates[j].expired {
			return candidates[i].expired
		}
		return candidates[i].lastAccess.Before(candidates[j].lastAccess)
	})

	toRemove := len(candidates) - target
	for i := 0; i < toRemove && i < len(candidates); i++ {
		_ = c.store.Delete(candidates[i].key)
		reason := "lru"
		if candidates[i].expired {
			reason = "expired"
		}
		metrics.CacheEvictions.WithLabelValues(reason).Inc()
	}
}

func (c *Cache) publishGauges() {
	if n, err := c.store.Len(); err == nil {
		metrics.CacheEntries.Set(float64(n))
	}
}

func (c *Cache) recordHit(typeTag string) {
	c.statsMu.Lock()
	c.hits++
	c.statsMu.Unlock()
	metrics.CacheHits.WithLabelValues(typeTag).Inc()
}

func (c *Cache) recordMiss(typeTag string) {
	c.statsMu.Lock()
	c.misses++
	c.statsMu.Unlock()
	metrics.CacheMisses.WithLabelValues(typeTag).Inc()
}

func (c *Cache) recordExpired(typeTag string) {
	c.statsMu.Lock()
	c.expiredCount++
	c.statsMu.Unlock()
	metrics.CacheEvictions.WithLabelValues("expired").Inc()
}

// Fingerprint derives the canonical cache key for a request: the endpoint
// path plus its parameters in sorted order, hashed for compactness. The same
// endpoint and parameters always produce the same key regardless of the
// order the caller added them in.
func Fingerprint(endpoint string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	canonical := endpoint
	for _, k := range keys {
		vals := append([]string{}, params[k]...)
		sort.Strings(vals)
		for _, v := range vals {
			canonical += "&" + k + "=" + v
		}
	}

	hash := sha256.Sum256([]byte(canonical))
	return fmt.Sprintf("%s:%x", endpoint, hash[:16])
}
