// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

/*
Package mapper translates provider payloads into local content records.

MapItem extracts a fixed field set per content kind into one field map and
applies it through a single ContentStore.UpsertFields call, so readers never
observe a partially mapped record. Classification dimensions present in the
payload (genre, country, language, network, release year) are resolved
against the term store by normalized name, created lazily on first
encounter, and associated with the record; a term's provider id is
backfilled the first time it is seen.

The record's primary text body (overview or biography) is only written when
the stored body is empty or the caller explicitly asks to overwrite.
*/
package mapper

import (
	"context"
	"fmt"
	"strconv"

	"github.com/tomtom215/cinegraph/internal/logging"
	"github.com/tomtom215/cinegraph/internal/models"
	dto "github.com/tomtom215/cinegraph/internal/models/tmdb"
	"github.com/tomtom215/cinegraph/internal/store"
	"github.com/tomtom215/cinegraph/internal/syncerr"
)

// Options adjusts mapping behavior per call.
type Options struct {
	// OverwriteBody forces the body write even when one is present.
	OverwriteBody bool
	// SkipTerms suppresses classification handling (used by fast
	// incremental runs that only refresh scalar fields).
	SkipTerms bool
}

// Mapper applies provider payloads to the local store.
type Mapper struct {
	content store.ContentStore
	terms   store.TermStore
}

// New creates a mapper over the given stores.
func New(content store.ContentStore, terms store.TermStore) *Mapper {
	return &Mapper{content: content, terms: terms}
}

// MapItem persists one provider payload for localID. The payload must be
// one of the typed detail DTOs; anything else is a programmer error
// reported as a local failure.
func (m *Mapper) MapItem(ctx context.Context, localID int64, payload interface{}, opts Options) error {
	switch p := payload.(type) {
	case *dto.MovieDetails:
		return m.mapMovie(ctx, localID, p, opts)
	case *dto.TVDetails:
		return m.mapTV(ctx, localID, p, opts)
	case *dto.PersonDetails:
		return m.mapPerson(ctx, localID, p, opts)
	}
	return syncerr.Local("mapper", fmt.Errorf("unsupported payload type %T", payload))
}

func (m *Mapper) mapMovie(ctx context.Context, localID int64, p *dto.MovieDetails, opts Options) error {
	fields := map[string]interface{}{
		"title":             p.Title,
		"original_title":    p.OriginalTitle,
		"original_language": p.OriginalLanguage,
		"tagline":           p.Tagline,
		"release_date":      p.ReleaseDate,
		"runtime":           p.Runtime,
		"provider_status":   p.Status,
		"imdb_id":           p.IMDBID,
		"budget":            p.Budget,
		"revenue":           p.Revenue,
		"popularity":        p.Popularity,
		"vote_average":      p.VoteAverage,
		"vote_count":        p.VoteCount,
		"adult":             p.Adult,
		"homepage":          p.Homepage,
		"poster_path":       p.PosterPath,
		"backdrop_path":     p.BackdropPath,
	}
	putStructured(fields, "production_companies", len(p.ProductionCompanies) > 0, p.ProductionCompanies)
	putStructured(fields, "production_countries", len(p.ProductionCountries) > 0, p.ProductionCountries)
	putStructured(fields, "spoken_languages", len(p.SpokenLanguages) > 0, p.SpokenLanguages)
	putStructured(fields, "credits", p.Credits != nil, p.Credits)
	putStructured(fields, "images", p.Images != nil, p.Images)
	putStructured(fields, "videos", p.Videos != nil, p.Videos)

	if err := m.applyBody(ctx, localID, fields, p.Overview, opts); err != nil {
		return err
	}
	if err := m.content.UpsertFields(ctx, localID, fields); err != nil {
		return syncerr.Local("mapper", err)
	}
	if opts.SkipTerms {
		return nil
	}

	var specs []termSpec
	for _, g := range p.Genres {
		specs = append(specs, termSpec{models.TaxonomyGenre, g.Name, g.ID})
	}
	for _, pc := range p.ProductionCountries {
		specs = append(specs, termSpec{models.TaxonomyCountry, pc.Name, 0})
	}
	for _, sl := range p.SpokenLanguages {
		specs = append(specs, termSpec{models.TaxonomyLanguage, languageName(sl), 0})
	}
	specs = appendYearTerm(specs, p.ReleaseDate)
	return m.applyTerms(ctx, localID, specs)
}

func (m *Mapper) mapTV(ctx context.Context, localID int64, p *dto.TVDetails, opts Options) error {
	fields := map[string]interface{}{
		"title":              p.Name,
		"original_title":     p.OriginalName,
		"original_language":  p.OriginalLanguage,
		"tagline":            p.Tagline,
		"release_date":       p.FirstAirDate,
		"last_air_date":      p.LastAirDate,
		"number_of_seasons":  p.NumberOfSeasons,
		"number_of_episodes": p.NumberOfEpisodes,
		"provider_status":    p.Status,
		"series_type":        p.Type,
		"in_production":      p.InProduction,
		"popularity":         p.Popularity,
		"vote_average":       p.VoteAverage,
		"vote_count":         p.VoteCount,
		"homepage":           p.Homepage,
		"poster_path":        p.PosterPath,
		"backdrop_path":      p.BackdropPath,
	}
	putStructured(fields, "episode_run_time", len(p.EpisodeRunTime) > 0, p.EpisodeRunTime)
	putStructured(fields, "origin_country", len(p.OriginCountry) > 0, p.OriginCountry)
	putStructured(fields, "networks", len(p.Networks) > 0, p.Networks)
	putStructured(fields, "production_companies", len(p.ProductionCompanies) > 0, p.ProductionCompanies)
	putStructured(fields, "production_countries", len(p.ProductionCountries) > 0, p.ProductionCountries)
	putStructured(fields, "spoken_languages", len(p.SpokenLanguages) > 0, p.SpokenLanguages)
	putStructured(fields, "credits", p.Credits != nil, p.Credits)
	putStructured(fields, "images", p.Images != nil, p.Images)
	putStructured(fields, "videos", p.Videos != nil, p.Videos)

	if err := m.applyBody(ctx, localID, fields, p.Overview, opts); err != nil {
		return err
	}
	if err := m.content.UpsertFields(ctx, localID, fields); err != nil {
		return syncerr.Local("mapper", err)
	}
	if opts.SkipTerms {
		return nil
	}

	var specs []termSpec
	for _, g := range p.Genres {
		specs = append(specs, termSpec{models.TaxonomyGenre, g.Name, g.ID})
	}
	for _, n := range p.Networks {
		specs = append(specs, termSpec{models.TaxonomyNetwork, n.Name, n.ID})
	}
	for _, pc := range p.ProductionCountries {
		specs = append(specs, termSpec{models.TaxonomyCountry, pc.Name, 0})
	}
	for _, sl := range p.SpokenLanguages {
		specs = append(specs, termSpec{models.TaxonomyLanguage, languageName(sl), 0})
	}
	specs = appendYearTerm(specs, p.FirstAirDate)
	return m.applyTerms(ctx, localID, specs)
}

func (m *Mapper) mapPerson(ctx context.Context, localID int64, p *dto.PersonDetails, opts Options) error {
	fields := map[string]interface{}{
		"title":                p.Name,
		"imdb_id":              p.IMDBID,
		"release_date":         p.Birthday,
		"deathday":             p.Deathday,
		"place_of_birth":       p.PlaceOfBirth,
		"gender":               p.Gender,
		"known_for_department": p.KnownForDepartment,
		"popularity":           p.Popularity,
		"adult":                p.Adult,
		"homepage":             p.Homepage,
		"profile_path":         p.ProfilePath,
	}
	putStructured(fields, "also_known_as", len(p.AlsoKnownAs) > 0, p.AlsoKnownAs)
	putStructured(fields, "images", p.Images != nil, p.Images)

	if err := m.applyBody(ctx, localID, fields, p.Biography, opts); err != nil {
		return err
	}
	if err := m.content.UpsertFields(ctx, localID, fields); err != nil {
		return syncerr.Local("mapper", err)
	}
	if opts.SkipTerms {
		return nil
	}
	return m.applyTerms(ctx, localID, appendYearTerm(nil, p.Birthday))
}

// applyBody adds the body field only when the stored body is empty or the
// caller requested an overwrite.
func (m *Mapper) applyBody(ctx context.Context, localID int64, fields map[string]interface{}, body string, opts Options) error {
	if body == "" {
		return nil
	}
	if opts.OverwriteBody {
		fields["body"] = body
		return nil
	}
	rec, err := m.content.Get(ctx, localID)
	if err != nil {
		return syncerr.Local("mapper", err)
	}
	if rec.Body == "" {
		fields["body"] = body
	}
	return nil
}

// putStructured adds a structured sub-object only when present, keeping the
// field map free of empty placeholders.
func putStructured(fields map[string]interface{}, key string, present bool, value interface{}) {
	if present {
		fields[key] = value
	}
}

type termSpec struct {
	taxonomy   string
	name       string
	externalID int64
}

// appendYearTerm derives the "by year" term from a YYYY-MM-DD date.
func appendYearTerm(specs []termSpec, date string) []termSpec {
	if len(date) < 4 {
		return specs
	}
	if _, err := strconv.Atoi(date[:4]); err != nil {
		return specs
	}
	return append(specs, termSpec{models.TaxonomyYear, date[:4], 0})
}

func (m *Mapper) applyTerms(ctx context.Context, localID int64, specs []termSpec) error {
	for _, spec := range specs {
		if spec.name == "" {
			continue
		}
		term, created, err := m.terms.FindOrCreateTerm(ctx, spec.taxonomy, spec.name)
		if err != nil {
			return syncerr.Local("mapper", err)
		}
		if created {
			logging.Debug().Str("taxonomy", spec.taxonomy).Str("name", spec.name).Msg("Created classification term")
		}
		if spec.externalID > 0 && term.ExternalID == 0 {
			if err := m.terms.SetTermExternalID(ctx, term.ID, spec.externalID); err != nil {
				return syncerr.Local("mapper", err)
			}
		}
		if err := m.terms.Associate(ctx, localID, term.ID); err != nil {
			return syncerr.Local("mapper", err)
		}
	}
	return nil
}

func languageName(sl dto.SpokenLanguage) string {
	if sl.EnglishName != "" {
		return sl.EnglishName
	}
	return sl.Name
}
