// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

package queue

import (
	"context"
	"time"

	"github.com/tomtom215/cinegraph/internal/config"
	"github.com/tomtom215/cinegraph/internal/logging"
	"github.com/tomtom215/cinegraph/internal/metrics"
	syncsvc "github.com/tomtom215/cinegraph/internal/sync"
	"github.com/tomtom215/cinegraph/internal/syncerr"
)

// ItemSyncer is the sync surface the worker drives. Implemented by
// sync.Service.
type ItemSyncer interface {
	SyncItemResult(ctx context.Context, localID int64, opts syncsvc.ItemOptions) error
}

// Worker polls the queue and executes due targeted syncs. Retryable
// failures go back onto the queue with the taxonomy's suggested delay;
// attempts are bounded, and non-retryable failures drop the task
// immediately.
type Worker struct {
	queue  *Queue
	syncer ItemSyncer
	cfg    config.Queue
	batch  int
}

// NewWorker creates a queue worker.
func NewWorker(q *Queue, syncer ItemSyncer, cfg config.Queue) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &Worker{queue: q, syncer: syncer, cfg: cfg, batch: 25}
}

// Serve polls for due tasks until ctx is done. It satisfies the
// supervisor's service contract.
func (w *Worker) Serve(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	logging.Info().Dur("poll_interval", w.cfg.PollInterval).Int("max_attempts", w.cfg.MaxAttempts).Msg("Queue worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Drain(ctx)
		}
	}
}

// Drain processes every currently due task once. Exposed separately so
// tests can drive the worker without timers.
func (w *Worker) Drain(ctx context.Context) {
	due, err := w.queue.Due(w.batch)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to read due tasks")
		return
	}

	for _, task := range due {
		if ctx.Err() != nil {
			return
		}
		w.process(ctx, task)
	}
}

func (w *Worker) process(ctx context.Context, task Task) {
	err := w.syncer.SyncItemResult(ctx, task.LocalID, syncsvc.ItemOptions{IncludeCredits: true})
	if err == nil {
		metrics.QueueTasks.WithLabelValues("completed").Inc()
		if err := w.queue.Complete(task); err != nil {
			logging.Warn().Err(err).Str("task_id", task.ID).Msg("Failed to remove completed task")
		}
		return
	}

	se := syncerr.As(err)
	retryable := se != nil && se.Retryable()

	if !retryable || task.Attempts+1 >= w.cfg.MaxAttempts {
		logging.Warn().Err(err).
			Str("task_id", task.ID).
			Int64("local_id", task.LocalID).
			Int("attempts", task.Attempts+1).
			Msg("Dropping failed task")
		metrics.QueueTasks.WithLabelValues("dropped").Inc()
		if err := w.queue.Complete(task); err != nil {
			logging.Warn().Err(err).Str("task_id", task.ID).Msg("Failed to remove dropped task")
		}
		return
	}

	delay := time.Duration(se.RetryDelaySeconds()) * time.Second
	if delay <= 0 {
		delay = time.Minute
	}
	logging.Info().
		Str("task_id", task.ID).
		Int64("local_id", task.LocalID).
		Dur("retry_in", delay).
		Msg("Re-queueing failed task")
	metrics.QueueTasks.WithLabelValues("retried").Inc()
	if err := w.queue.Retry(task, delay); err != nil {
		logging.Error().Err(err).Str("task_id", task.ID).Msg("Failed to re-queue task")
	}
}
