// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

package tmdb

// MovieDetails represents the response from GET /movie/{id}.
// Credits, Images, and Videos are populated only when the request carries
// append_to_response for them.
type MovieDetails struct {
	ID               int64   `json:"id"`
	IMDBID           string  `json:"imdb_id,omitempty"`
	Title            string  `json:"title"`
	OriginalTitle    string  `json:"original_title,omitempty"`
	OriginalLanguage string  `json:"original_language,omitempty"`
	Overview         string  `json:"overview,omitempty"`
	Tagline          string  `json:"tagline,omitempty"`
	ReleaseDate      string  `json:"release_date,omitempty"` // YYYY-MM-DD
	Runtime          int     `json:"runtime,omitempty"`      // minutes
	Status           string  `json:"status,omitempty"`       // Released, Post Production, ...
	Budget           int64   `json:"budget,omitempty"`
	Revenue          int64   `json:"revenue,omitempty"`
	Popularity       float64 `json:"popularity,omitempty"`
	VoteAverage      float64 `json:"vote_average,omitempty"`
	VoteCount        int64   `json:"vote_count,omitempty"`
	Adult            bool    `json:"adult,omitempty"`
	PosterPath       string  `json:"poster_path,omitempty"`
	BackdropPath     string  `json:"backdrop_path,omitempty"`
	Homepage         string  `json:"homepage,omitempty"`

	Genres              []Genre             `json:"genres,omitempty"`
	ProductionCompanies []ProductionCompany `json:"production_companies,omitempty"`
	ProductionCountries []ProductionCountry `json:"production_countries,omitempty"`
	SpokenLanguages     []SpokenLanguage    `json:"spoken_languages,omitempty"`

	Credits *Credits `json:"credits,omitempty"`
	Images  *Images  `json:"images,omitempty"`
	Videos  *Videos  `json:"videos,omitempty"`
}

// TVDetails represents the response from GET /tv/{id}.
type TVDetails struct {
	ID               int64    `json:"id"`
	Name             string   `json:"name"`
	OriginalName     string   `json:"original_name,omitempty"`
	OriginalLanguage string   `json:"original_language,omitempty"`
	Overview         string   `json:"overview,omitempty"`
	Tagline          string   `json:"tagline,omitempty"`
	FirstAirDate     string   `json:"first_air_date,omitempty"` // YYYY-MM-DD
	LastAirDate      string   `json:"last_air_date,omitempty"`
	NumberOfSeasons  int      `json:"number_of_seasons,omitempty"`
	NumberOfEpisodes int      `json:"number_of_episodes,omitempty"`
	EpisodeRunTime   []int    `json:"episode_run_time,omitempty"`
	Status           string   `json:"status,omitempty"` // Returning Series, Ended, ...
	Type             string   `json:"type,omitempty"`
	InProduction     bool     `json:"in_production,omitempty"`
	Popularity       float64  `json:"popularity,omitempty"`
	VoteAverage      float64  `json:"vote_average,omitempty"`
	VoteCount        int64    `json:"vote_count,omitempty"`
	PosterPath       string   `json:"poster_path,omitempty"`
	BackdropPath     string   `json:"backdrop_path,omitempty"`
	Homepage         string   `json:"homepage,omitempty"`
	OriginCountry    []string `json:"origin_country,omitempty"`

	Genres              []Genre             `json:"genres,omitempty"`
	Networks            []Network           `json:"networks,omitempty"`
	ProductionCompanies []ProductionCompany `json:"production_companies,omitempty"`
	ProductionCountries []ProductionCountry `json:"production_countries,omitempty"`
	SpokenLanguages     []SpokenLanguage    `json:"spoken_languages,omitempty"`

	Credits *Credits `json:"credits,omitempty"`
	Images  *Images  `json:"images,omitempty"`
	Videos  *Videos  `json:"videos,omitempty"`
}

// PersonDetails represents the response from GET /person/{id}.
type PersonDetails struct {
	ID                 int64    `json:"id"`
	IMDBID             string   `json:"imdb_id,omitempty"`
	Name               string   `json:"name"`
	AlsoKnownAs        []string `json:"also_known_as,omitempty"`
	Biography          string   `json:"biography,omitempty"`
	Birthday           string   `json:"birthday,omitempty"` // YYYY-MM-DD
	Deathday           string   `json:"deathday,omitempty"`
	PlaceOfBirth       string   `json:"place_of_birth,omitempty"`
	Gender             int      `json:"gender,omitempty"`
	KnownForDepartment string   `json:"known_for_department,omitempty"`
	Popularity         float64  `json:"popularity,omitempty"`
	Adult              bool     `json:"adult,omitempty"`
	ProfilePath        string   `json:"profile_path,omitempty"`
	Homepage           string   `json:"homepage,omitempty"`

	Images *Images `json:"images,omitempty"`
}
