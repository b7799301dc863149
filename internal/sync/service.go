// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

/*
Package sync drives content synchronization against the provider.

MediaSyncService syncs single items and sequential bulk batches; the
scheduler in this package layers the three timed cadences (incremental,
full, cleanup) on top. Batch failures are counted, never thrown: SyncItem
returns false for anything that should show up in run statistics, and
errors are reserved for programmer mistakes.
*/
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/cinegraph/internal/clock"
	"github.com/tomtom215/cinegraph/internal/logging"
	"github.com/tomtom215/cinegraph/internal/mapper"
	"github.com/tomtom215/cinegraph/internal/metrics"
	"github.com/tomtom215/cinegraph/internal/models"
	dto "github.com/tomtom215/cinegraph/internal/models/tmdb"
	"github.com/tomtom215/cinegraph/internal/store"
	"github.com/tomtom215/cinegraph/internal/syncerr"
	"github.com/tomtom215/cinegraph/internal/tmdb"
)

// DetailsClient is the provider surface the service consumes. Implemented
// by tmdb.Client; tests substitute fakes.
type DetailsClient interface {
	GetMovieDetails(ctx context.Context, externalID int64, expand ...string) (*dto.MovieDetails, error)
	GetTVDetails(ctx context.Context, externalID int64, expand ...string) (*dto.TVDetails, error)
	GetPersonDetails(ctx context.Context, externalID int64, expand ...string) (*dto.PersonDetails, error)
}

// ItemOptions adjusts a single item sync.
type ItemOptions struct {
	// IncludeCredits expands cast/crew in the primary fetch.
	IncludeCredits bool
	// IncludeImages triggers the best-effort secondary asset fetch.
	IncludeImages bool
	// SkipTerms passes through to the mapper; incremental runs use it to
	// stay fast.
	SkipTerms bool
	// OverwriteBody forces the body write even when one exists.
	OverwriteBody bool
}

// BulkResult aggregates one bulk sync.
type BulkResult struct {
	Succeeded int
	Failed    int
	// Errors holds the failure message per failed local id.
	Errors map[int64]string
}

// Service is the MediaSyncService: fetch details, map, stamp.
type Service struct {
	content store.ContentStore
	mapper  *mapper.Mapper
	client  DetailsClient
	clk     clock.Clock
	// itemDelay paces sequential bulk syncs.
	itemDelay time.Duration
}

// NewService creates a sync service. A nil clock selects the system clock.
func NewService(content store.ContentStore, m *mapper.Mapper, client DetailsClient, itemDelay time.Duration, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Service{
		content:   content,
		mapper:    m,
		client:    client,
		clk:       clk,
		itemDelay: itemDelay,
	}
}

// SyncItem synchronizes one record. Returns false for any countable
// failure: unknown local id, missing external id, provider errors,
// mapping errors.
func (s *Service) SyncItem(ctx context.Context, localID int64, opts ItemOptions) bool {
	if err := s.syncOne(ctx, localID, opts); err != nil {
		kind := syncerr.KindOf(err)
		logging.Warn().Err(err).Int64("local_id", localID).Str("kind", kind.String()).Msg("Item sync failed")
		metrics.SyncItemsProcessed.WithLabelValues("item", "failed").Inc()
		return false
	}
	metrics.SyncItemsProcessed.WithLabelValues("item", "succeeded").Inc()
	return true
}

// SyncItemResult is SyncItem exposing the classified error instead of a
// boolean; the queue worker uses it to pick retry delays.
func (s *Service) SyncItemResult(ctx context.Context, localID int64, opts ItemOptions) error {
	return s.syncOne(ctx, localID, opts)
}

// syncOne carries the real pipeline and the error detail BulkSync reports.
func (s *Service) syncOne(ctx context.Context, localID int64, opts ItemOptions) error {
	kind, externalID, err := s.content.GetExternalID(ctx, localID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return syncerr.NotFoundLocal(fmt.Sprintf("local record %d", localID))
		}
		return syncerr.Local("sync", err)
	}
	if externalID <= 0 {
		// No backing external relationship: countable, and never worth a
		// network call.
		return syncerr.NotFoundLocal(fmt.Sprintf("local record %d has no external id", localID))
	}

	var expand []string
	if opts.IncludeCredits {
		expand = append(expand, tmdb.ExpandCredits)
	}

	payload, err := s.fetchDetails(ctx, kind, externalID, expand)
	if err != nil {
		return err
	}

	mapOpts := mapper.Options{OverwriteBody: opts.OverwriteBody, SkipTerms: opts.SkipTerms}
	if err := s.mapper.MapItem(ctx, localID, payload, mapOpts); err != nil {
		return err
	}

	if opts.IncludeImages {
		// Best effort: asset failures are logged, never fatal.
		s.fetchAssets(ctx, localID, kind, externalID)
	}

	if err := s.content.SetLastSynced(ctx, localID, s.clk.Now()); err != nil {
		return syncerr.Local("sync", err)
	}
	return nil
}

func (s *Service) fetchDetails(ctx context.Context, kind models.Kind, externalID int64, expand []string) (interface{}, error) {
	switch kind {
	case models.KindMovie:
		return s.client.GetMovieDetails(ctx, externalID, expand...)
	case models.KindSeries:
		return s.client.GetTVDetails(ctx, externalID, expand...)
	case models.KindPerson:
		return s.client.GetPersonDetails(ctx, externalID, expand...)
	}
	return nil, syncerr.Local("sync", fmt.Errorf("unknown content kind %q", kind))
}

// fetchAssets pulls images and videos in a second expanded request and
// applies just those fields.
func (s *Service) fetchAssets(ctx context.Context, localID int64, kind models.Kind, externalID int64) {
	fields := make(map[string]interface{})

	switch kind {
	case models.KindMovie:
		p, err := s.client.GetMovieDetails(ctx, externalID, tmdb.ExpandImages, tmdb.ExpandVideos)
		if err != nil {
			logging.Warn().Err(err).Int64("local_id", localID).Msg("Secondary asset fetch failed")
			return
		}
		if p.Images != nil {
			fields["images"] = p.Images
		}
		if p.Videos != nil {
			fields["videos"] = p.Videos
		}
	case models.KindSeries:
		p, err := s.client.GetTVDetails(ctx, externalID, tmdb.ExpandImages, tmdb.ExpandVideos)
		if err != nil {
			logging.Warn().Err(err).Int64("local_id", localID).Msg("Secondary asset fetch failed")
			return
		}
		if p.Images != nil {
			fields["images"] = p.Images
		}
		if p.Videos != nil {
			fields["videos"] = p.Videos
		}
	case models.KindPerson:
		p, err := s.client.GetPersonDetails(ctx, externalID, tmdb.ExpandImages)
		if err != nil {
			logging.Warn().Err(err).Int64("local_id", localID).Msg("Secondary asset fetch failed")
			return
		}
		if p.Images != nil {
			fields["images"] = p.Images
		}
	}

	if len(fields) == 0 {
		return
	}
	if err := s.content.UpsertFields(ctx, localID, fields); err != nil {
		logging.Warn().Err(err).Int64("local_id", localID).Msg("Failed to persist asset fields")
	}
}

// BulkSync synchronizes ids sequentially, pacing between items and
// stopping early when ctx is done. Per-item failures are collected, not
// raised; the aggregate always accounts for every attempted id.
func (s *Service) BulkSync(ctx context.Context, ids []int64, opts ItemOptions) BulkResult {
	result := BulkResult{Errors: make(map[int64]string)}

	var pacer *rate.Limiter
	if s.itemDelay > 0 {
		pacer = rate.NewLimiter(rate.Every(s.itemDelay), 1)
	}

	for _, localID := range ids {
		if ctx.Err() != nil {
			logging.Info().Int("remaining", len(ids)-result.Succeeded-result.Failed).Msg("Bulk sync stopped early")
			break
		}
		if pacer != nil {
			if err := pacer.Wait(ctx); err != nil {
				break
			}
		}

		if err := s.syncOne(ctx, localID, opts); err != nil {
			result.Failed++
			result.Errors[localID] = err.Error()
			logging.Warn().Err(err).Int64("local_id", localID).Msg("Bulk sync item failed")
			continue
		}
		result.Succeeded++
	}
	return result
}
