// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

package sync

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/cinegraph/internal/clock"
	"github.com/tomtom215/cinegraph/internal/config"
	"github.com/tomtom215/cinegraph/internal/logging"
	"github.com/tomtom215/cinegraph/internal/metrics"
	"github.com/tomtom215/cinegraph/internal/models"
	"github.com/tomtom215/cinegraph/internal/store"
)

// Scheduler drives the three sync cadences. Each run is idempotent and
// guarded against re-entry: triggering a cadence while its previous run is
// still going is a logged no-op. The global Sync.Enabled flag is checked
// at the start of every run, so flipping it off stops future runs without
// a restart.
type Scheduler struct {
	cfg     config.Sync
	webhook config.Webhook
	service *Service
	content store.ContentStore
	runs    store.SyncRunStore
	clk     clock.Clock

	incRunning     atomic.Bool
	fullRunning    atomic.Bool
	cleanupRunning atomic.Bool
}

// NewScheduler creates a scheduler. The webhook configuration supplies the
// deletion policy cleanup applies to orphans.
func NewScheduler(cfg config.Sync, webhook config.Webhook, service *Service, content store.ContentStore, runs store.SyncRunStore, clk clock.Clock) *Scheduler {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Scheduler{
		cfg:     cfg,
		webhook: webhook,
		service: service,
		content: content,
		runs:    runs,
		clk:     clk,
	}
}

// RunIncremental syncs recently changed records in a bounded batch,
// skipping secondary asset fetches and term processing to stay fast.
func (s *Scheduler) RunIncremental(ctx context.Context) *models.SyncRunRecord {
	return s.run(ctx, models.RunIncremental, &s.incRunning, func(ctx context.Context, run *models.SyncRunRecord) error {
		since := s.clk.Now().Add(-s.cfg.IncrementalWindow)
		ids, err := s.content.SelectRecentlyChanged(ctx, since, s.cfg.IncrementalBatchSize)
		if err != nil {
			return err
		}
		result := s.service.BulkSync(ctx, ids, ItemOptions{SkipTerms: true})
		run.ItemsProcessed = result.Succeeded + result.Failed
		run.ItemsFailed = result.Failed
		return nil
	})
}

// RunFull syncs the globally stalest records with credits and secondary
// asset fetches, pacing conservatively.
func (s *Scheduler) RunFull(ctx context.Context) *models.SyncRunRecord {
	return s.run(ctx, models.RunFull, &s.fullRunning, func(ctx context.Context, run *models.SyncRunRecord) error {
		ids, err := s.content.SelectStalest(ctx, s.cfg.FullBatchSize)
		if err != nil {
			return err
		}
		opts := ItemOptions{
			IncludeCredits: true,
			IncludeImages:  s.cfg.IncludeImages,
		}
		result := s.service.BulkSync(ctx, ids, opts)
		run.ItemsProcessed = result.Succeeded + result.Failed
		run.ItemsFailed = result.Failed
		return nil
	})
}

// RunCleanup removes orphaned records per the deletion policy, recomputes
// popularity ranks, and prunes old run records.
func (s *Scheduler) RunCleanup(ctx context.Context) *models.SyncRunRecord {
	return s.run(ctx, models.RunCleanup, &s.cleanupRunning, func(ctx context.Context, run *models.SyncRunRecord) error {
		orphans, err := s.content.SelectOrphans(ctx)
		if err != nil {
			return err
		}
		for _, localID := range orphans {
			run.ItemsProcessed++
			if err := s.content.DeleteOrMark(ctx, localID, s.webhook.DeletionPolicy, s.webhook.DemoteStatus); err != nil {
				run.ItemsFailed++
				logging.Warn().Err(err).Int64("local_id", localID).Msg("Orphan cleanup failed")
			}
		}

		if err := s.content.RecomputePopularityRanks(ctx); err != nil {
			return err
		}

		if s.cfg.RunRetention > 0 {
			cutoff := s.clk.Now().Add(-s.cfg.RunRetention)
			if pruned, err := s.runs.PruneRuns(ctx, cutoff); err == nil && pruned > 0 {
				logging.Debug().Int("pruned", pruned).Msg("Pruned old sync run records")
			}
		}
		return nil
	})
}

// run wraps one cadence execution: feature-flag gate, re-entrancy guard,
// run record bookkeeping, and top level panic containment so a bad run
// never takes the host process down.
func (s *Scheduler) run(ctx context.Context, runType string, guard *atomic.Bool, fn func(context.Context, *models.SyncRunRecord) error) *models.SyncRunRecord {
	if !s.cfg.Enabled {
		logging.Debug().Str("run_type", runType).Msg("Sync disabled, skipping run")
		return nil
	}
	if !guard.CompareAndSwap(false, true) {
		logging.Warn().Str("run_type", runType).Msg("Run already in progress, skipping trigger")
		return nil
	}
	defer guard.Store(false)

	run := &models.SyncRunRecord{
		ID:        uuid.NewString(),
		RunType:   runType,
		StartedAt: s.clk.Now(),
	}
	if err := s.runs.StartRun(ctx, run); err != nil {
		logging.Error().Err(err).Str("run_type", runType).Msg("Failed to persist run start")
	}
	logging.Info().Str("run_type", runType).Str("run_id", run.ID).Msg("Sync run started")
	start := time.Now()

	func() {
		defer func() {
			if r := recover(); r != nil {
				run.Error = fmt.Sprintf("panic: %v", r)
				logging.Error().Str("run_type", runType).Interface("panic", r).Msg("Sync run panicked")
			}
		}()
		if err := fn(ctx, run); err != nil {
			run.Error = err.Error()
			logging.Error().Err(err).Str("run_type", runType).Msg("Sync run failed")
		}
	}()

	finished := s.clk.Now()
	run.FinishedAt = &finished
	if err := s.runs.FinishRun(ctx, run); err != nil {
		logging.Error().Err(err).Str("run_type", runType).Msg("Failed to persist run end")
	}

	metrics.SyncRunDuration.WithLabelValues(runType).Observe(time.Since(start).Seconds())
	metrics.SyncItemsProcessed.WithLabelValues(runType, "succeeded").Add(float64(run.ItemsProcessed - run.ItemsFailed))
	metrics.SyncItemsProcessed.WithLabelValues(runType, "failed").Add(float64(run.ItemsFailed))
	logging.Info().
		Str("run_type", runType).
		Str("run_id", run.ID).
		Int("processed", run.ItemsProcessed).
		Int("failed", run.ItemsFailed).
		Dur("elapsed", time.Since(start)).
		Msg("Sync run finished")
	return run
}

// Serve runs the cadence timers until ctx is done. It satisfies the
// supervisor's service contract.
func (s *Scheduler) Serve(ctx context.Context) error {
	incremental := time.NewTicker(positiveOr(s.cfg.IncrementalInterval, time.Hour))
	full := time.NewTicker(positiveOr(s.cfg.FullInterval, 24*time.Hour))
	cleanup := time.NewTicker(positiveOr(s.cfg.CleanupInterval, 24*time.Hour))
	defer incremental.Stop()
	defer full.Stop()
	defer cleanup.Stop()

	logging.Info().
		Dur("incremental", s.cfg.IncrementalInterval).
		Dur("full", s.cfg.FullInterval).
		Dur("cleanup", s.cfg.CleanupInterval).
		Msg("Sync scheduler started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-incremental.C:
			s.RunIncremental(ctx)
		case <-full.C:
			s.RunFull(ctx)
		case <-cleanup.C:
			s.RunCleanup(ctx)
		}
	}
}

func positiveOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
