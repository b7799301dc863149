// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

package tmdb

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/tomtom215/cinegraph/internal/models"
	dto "github.com/tomtom215/cinegraph/internal/models/tmdb"
	"github.com/tomtom215/cinegraph/internal/respcache"
)

// Expandable sub-resources for detail requests, passed through to the
// provider's append_to_response parameter.
const (
	ExpandCredits = "credits"
	ExpandImages  = "images"
	ExpandVideos  = "videos"
)

// providerPath maps a content kind onto the provider's URL vocabulary.
func providerPath(kind models.Kind) string {
	if kind == models.KindSeries {
		return "tv"
	}
	return string(kind)
}

func expandParams(expand []string) url.Values {
	params := url.Values{}
	if len(expand) > 0 {
		params.Set("append_to_response", strings.Join(expand, ","))
	}
	return params
}

// GetMovieDetails fetches one movie by provider id, expanding the named
// sub-resources (credits, images, videos) in the same request.
func (c *Client) GetMovieDetails(ctx context.Context, externalID int64, expand ...string) (*dto.MovieDetails, error) {
	var out dto.MovieDetails
	endpoint := fmt.Sprintf("/movie/%d", externalID)
	if err := c.get(ctx, endpoint, expandParams(expand), respcache.TypeMovieDetails, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTVDetails fetches one TV series by provider id.
func (c *Client) GetTVDetails(ctx context.Context, externalID int64, expand ...string) (*dto.TVDetails, error) {
	var out dto.TVDetails
	endpoint := fmt.Sprintf("/tv/%d", externalID)
	if err := c.get(ctx, endpoint, expandParams(expand), respcache.TypeTVDetails, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPersonDetails fetches one person by provider id.
func (c *Client) GetPersonDetails(ctx context.Context, externalID int64, expand ...string) (*dto.PersonDetails, error) {
	var out dto.PersonDetails
	endpoint := fmt.Sprintf("/person/%d", externalID)
	if err := c.get(ctx, endpoint, expandParams(expand), respcache.TypePersonDetails, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Search queries the provider's per-kind search endpoint. Filters are
// passed through verbatim (e.g. year, primary_release_year).
func (c *Client) Search(ctx context.Context, kind models.Kind, query string, page int, filters url.Values) (*dto.SearchPage, error) {
	params := url.Values{}
	for k, vs := range filters {
		for _, v := range vs {
			params.Add(k, v)
		}
	}
	params.Set("query", query)
	params.Set("page", strconv.Itoa(normalizePage(page)))

	var out dto.SearchPage
	endpoint := "/search/" + providerPath(kind)
	if err := c.get(ctx, endpoint, params, respcache.TypeSearch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MultiSearch queries across movies, TV, and people in one request.
func (c *Client) MultiSearch(ctx context.Context, query string, page int) (*dto.SearchPage, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("page", strconv.Itoa(normalizePage(page)))

	var out dto.SearchPage
	if err := c.get(ctx, "/search/multi", params, respcache.TypeSearch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTrending fetches the trending listing for kind over window ("day" or
// "week").
func (c *Client) GetTrending(ctx context.Context, kind models.Kind, window string, page int) (*dto.TrendingPage, error) {
	if window != "day" && window != "week" {
		window = "week"
	}
	params := url.Values{}
	params.Set("page", strconv.Itoa(normalizePage(page)))

	var out dto.TrendingPage
	endpoint := fmt.Sprintf("/trending/%s/%s", providerPath(kind), window)
	if err := c.get(ctx, endpoint, params, respcache.TypeTrending, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPopular fetches the popularity-ordered listing for kind.
func (c *Client) GetPopular(ctx context.Context, kind models.Kind, page int) (*dto.SearchPage, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(normalizePage(page)))

	var out dto.SearchPage
	endpoint := "/" + providerPath(kind) + "/popular"
	if err := c.get(ctx, endpoint, params, respcache.TypePopular, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetConfiguration fetches the provider's static configuration (asset base
// URLs and size variants). Cached for 24 hours.
func (c *Client) GetConfiguration(ctx context.Context) (*dto.Configuration, error) {
	var out dto.Configuration
	if err := c.get(ctx, "/configuration", nil, respcache.TypeConfiguration, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetGenres fetches the full genre list for kind. Person has no genre
// taxonomy; callers get an empty list.
func (c *Client) GetGenres(ctx context.Context, kind models.Kind) (*dto.GenreList, error) {
	if kind == models.KindPerson {
		return &dto.GenreList{}, nil
	}
	var out dto.GenreList
	endpoint := "/genre/" + providerPath(kind) + "/list"
	if err := c.get(ctx, endpoint, nil, respcache.TypeGenres, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ImageURL builds a full asset URL from a provider file path and a size
// variant (e.g. "w500", "original"). Pure; performs no network access.
// Returns the empty string for an empty path.
func (c *Client) ImageURL(path, size string) string {
	if path == "" {
		return ""
	}
	if size == "" {
		size = "original"
	}
	base := strings.TrimSuffix(c.cfg.ImageBaseURL, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + "/" + size + path
}

// TestConnection performs a lightweight configuration fetch and reports
// reachability as a boolean, swallowing the underlying error.
func (c *Client) TestConnection(ctx context.Context) bool {
	_, err := c.GetConfiguration(ctx)
	if err != nil {
		return false
	}
	return true
}

func normalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}
