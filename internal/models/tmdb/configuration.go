// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

package tmdb

// Configuration represents the response from GET /configuration: static
// lookup data needed to build asset URLs. Changes rarely; cached for 24h.
type Configuration struct {
	Images     ImageConfiguration `json:"images"`
	ChangeKeys []string           `json:"change_keys,omitempty"`
}

// ImageConfiguration carries the asset base URLs and the size variants the
// provider serves.
type ImageConfiguration struct {
	BaseURL       string   `json:"base_url"`
	SecureBaseURL string   `json:"secure_base_url"`
	PosterSizes   []string `json:"poster_sizes,omitempty"`
	BackdropSizes []string `json:"backdrop_sizes,omitempty"`
	ProfileSizes  []string `json:"profile_sizes,omitempty"`
	LogoSizes     []string `json:"logo_sizes,omitempty"`
	StillSizes    []string `json:"still_sizes,omitempty"`
}

// GenreList represents the response from GET /genre/{kind}/list.
type GenreList struct {
	Genres []Genre `json:"genres"`
}
