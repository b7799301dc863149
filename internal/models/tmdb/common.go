// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

// Package tmdb defines typed response models for the TMDB provider API.
// These structures mirror the provider wire format exactly; translation
// into local domain records is the data mapper's job.
//
// Documentation: https://developer.themoviedb.org/reference
package tmdb

// Status is the provider's error envelope, embedded in non-2xx responses
// and occasionally in 2xx bodies for partial failures.
//
//	{"success": false, "status_code": 34, "status_message": "The resource you requested could not be found."}
type Status struct {
	Success       *bool  `json:"success,omitempty"`
	StatusCode    int    `json:"status_code,omitempty"`
	StatusMessage string `json:"status_message,omitempty"`
}

// Genre is a provider classification term shared by movies and TV.
type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ProductionCompany is a studio or production entity attached to a title.
type ProductionCompany struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	LogoPath      string `json:"logo_path,omitempty"`
	OriginCountry string `json:"origin_country,omitempty"`
}

// ProductionCountry is an ISO-3166-1 tagged production country.
type ProductionCountry struct {
	ISO3166_1 string `json:"iso_3166_1"`
	Name      string `json:"name"`
}

// SpokenLanguage is an ISO-639-1 tagged language attached to a title.
type SpokenLanguage struct {
	ISO639_1    string `json:"iso_639_1"`
	Name        string `json:"name"`
	EnglishName string `json:"english_name,omitempty"`
}

// Network is a broadcast network attached to a TV series.
type Network struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	LogoPath      string `json:"logo_path,omitempty"`
	OriginCountry string `json:"origin_country,omitempty"`
}

// CastMember is one credited performer.
type CastMember struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Character   string `json:"character,omitempty"`
	Order       int    `json:"order"`
	ProfilePath string `json:"profile_path,omitempty"`
}

// CrewMember is one credited crew role.
type CrewMember struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Job         string `json:"job,omitempty"`
	Department  string `json:"department,omitempty"`
	ProfilePath string `json:"profile_path,omitempty"`
}

// Credits holds the cast and crew lists for a title, populated when the
// request expands "credits".
type Credits struct {
	Cast []CastMember `json:"cast,omitempty"`
	Crew []CrewMember `json:"crew,omitempty"`
}

// Image is one media asset reference (poster, backdrop, or profile).
type Image struct {
	FilePath    string  `json:"file_path"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	AspectRatio float64 `json:"aspect_ratio,omitempty"`
	VoteAverage float64 `json:"vote_average,omitempty"`
	ISO639_1    string  `json:"iso_639_1,omitempty"`
}

// Images holds the media asset lists for a title, populated when the
// request expands "images".
type Images struct {
	Posters   []Image `json:"posters,omitempty"`
	Backdrops []Image `json:"backdrops,omitempty"`
	Logos     []Image `json:"logos,omitempty"`
	Profiles  []Image `json:"profiles,omitempty"`
}

// Video is one trailer/clip reference hosted off-provider.
type Video struct {
	ID       string `json:"id"`
	Key      string `json:"key"`
	Name     string `json:"name"`
	Site     string `json:"site"`
	Type     string `json:"type"`
	Official bool   `json:"official,omitempty"`
}

// Videos holds the video list for a title, populated when the request
// expands "videos".
type Videos struct {
	Results []Video `json:"results,omitempty"`
}
