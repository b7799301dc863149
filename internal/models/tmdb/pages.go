// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

package tmdb

// SearchResult is one entry in a paginated listing (search, trending,
// popular). The provider flattens movie, TV, and person shapes into a
// single result type; MediaType disambiguates in multi-search and trending
// responses.
type SearchResult struct {
	ID        int64  `json:"id"`
	MediaType string `json:"media_type,omitempty"` // movie, tv, person

	// Title is set for movies, Name for TV and people.
	Title         string `json:"title,omitempty"`
	OriginalTitle string `json:"original_title,omitempty"`
	Name          string `json:"name,omitempty"`
	OriginalName  string `json:"original_name,omitempty"`

	Overview     string  `json:"overview,omitempty"`
	ReleaseDate  string  `json:"release_date,omitempty"`
	FirstAirDate string  `json:"first_air_date,omitempty"`
	GenreIDs     []int64 `json:"genre_ids,omitempty"`
	Popularity   float64 `json:"popularity,omitempty"`
	VoteAverage  float64 `json:"vote_average,omitempty"`
	VoteCount    int64   `json:"vote_count,omitempty"`
	Adult        bool    `json:"adult,omitempty"`

	PosterPath   string `json:"poster_path,omitempty"`
	BackdropPath string `json:"backdrop_path,omitempty"`
	ProfilePath  string `json:"profile_path,omitempty"`

	KnownForDepartment string `json:"known_for_department,omitempty"`
}

// DisplayTitle returns the human title regardless of result family.
func (r *SearchResult) DisplayTitle() string {
	if r.Title != "" {
		return r.Title
	}
	return r.Name
}

// SearchPage represents one page of a paginated listing response.
type SearchPage struct {
	Page         int            `json:"page"`
	Results      []SearchResult `json:"results"`
	TotalPages   int            `json:"total_pages"`
	TotalResults int64          `json:"total_results"`
}

// TrendingPage is the response shape of GET /trending/{kind}/{window}.
// Identical to a search page; the alias keeps call sites legible.
type TrendingPage = SearchPage
