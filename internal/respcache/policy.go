// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

package respcache

import "time"

// Type tags identify the family of a cached provider response. The tag picks
// the TTL and allows targeted invalidation by family.
const (
	TypeConfiguration = "configuration"
	TypeMovieDetails  = "movie_details"
	TypeTVDetails     = "tv_details"
	TypePersonDetails = "person_details"
	TypeSearch        = "search"
	TypeTrending      = "trending"
	TypePopular       = "popular"
	TypeGenres        = "genres"
)

// DefaultTTL applies to any type tag without an explicit policy entry.
const DefaultTTL = time.Hour

// ttlPolicy is the fixed per-type expiry policy. Static provider lookups
// (configuration, genre lists) live a full day; volatile listings expire fast.
var ttlPolicy = map[string]time.Duration{
	TypeConfiguration: 24 * time.Hour,
	TypeMovieDetails:  time.Hour,
	TypeTVDetails:     time.Hour,
	TypePersonDetails: 2 * time.Hour,
	TypeSearch:        30 * time.Minute,
	TypeTrending:      30 * time.Minute,
	TypePopular:       30 * time.Minute,
	TypeGenres:        24 * time.Hour,
}

// TTLFor returns the configured TTL for a type tag.
func TTLFor(typeTag string) time.Duration {
	if ttl, ok := ttlPolicy[typeTag]; ok {
		return ttl
	}
	return DefaultTTL
}
