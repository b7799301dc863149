// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

// Package main is the entry point for the Cinegraph server.
//
// Cinegraph keeps a local content catalog synchronized with an external
// metadata provider (a TMDB-compatible API). It pulls details for movies,
// series, and people on incremental and full schedules, accepts provider
// webhooks for near-real-time changes, and serves run and stats
// introspection over HTTP.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Koanf v2 layered sources (env over file over defaults)
//  2. Local store: DuckDB when DATABASE_PATH is set, in-memory otherwise
//  3. Response cache and rate limiter: badger-backed when paths are set
//  4. Provider client: circuit breaker, cache, and admission control
//  5. Sync engine: mapper, item service, deferred queue, scheduler
//  6. HTTP server: webhook intake, sync introspection, Prometheus metrics
//
// Long-lived components (scheduler, queue worker, HTTP server) run under a
// suture supervisor tree, so a panic in one layer restarts that layer
// without taking down the rest.
//
// # Configuration
//
// Key environment variables:
//   - PROVIDER_BASE_URL, PROVIDER_API_KEY: the metadata provider
//   - DATABASE_PATH: DuckDB file (empty selects the in-memory store)
//   - SYNC_ENABLED, SYNC_INCREMENTAL_INTERVAL, SYNC_FULL_INTERVAL
//   - WEBHOOK_SECRET, WEBHOOK_DELETION_POLICY (hard, mark, mark_demote)
//   - SERVER_PORT (default 8480)
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the supervisor tree stops
// its services (bounded by the shutdown timeout), then backing stores are
// closed in reverse initialization order.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/cinegraph/internal/api"
	"github.com/tomtom215/cinegraph/internal/clock"
	"github.com/tomtom215/cinegraph/internal/config"
	"github.com/tomtom215/cinegraph/internal/database"
	"github.com/tomtom215/cinegraph/internal/logging"
	"github.com/tomtom215/cinegraph/internal/mapper"
	"github.com/tomtom215/cinegraph/internal/queue"
	"github.com/tomtom215/cinegraph/internal/ratelimit"
	"github.com/tomtom215/cinegraph/internal/respcache"
	"github.com/tomtom215/cinegraph/internal/store"
	"github.com/tomtom215/cinegraph/internal/supervisor"
	syncsvc "github.com/tomtom215/cinegraph/internal/sync"
	"github.com/tomtom215/cinegraph/internal/tmdb"
	"github.com/tomtom215/cinegraph/internal/webhook"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("provider", cfg.Provider.BaseURL).
		Str("db_path", cfg.Database.Path).
		Bool("sync_enabled", cfg.Sync.Enabled).
		Bool("webhook_enabled", cfg.Webhook.Enabled).
		Msg("Starting Cinegraph")

	clk := clock.NewSystem()

	// Local store: DuckDB when a path is configured, in-memory otherwise.
	var (
		content store.ContentStore
		terms   store.TermStore
		runs    store.SyncRunStore
		health  func() error
	)
	if cfg.Database.Path != "" {
		db, err := database.New(cfg.Database, clk)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer func() {
			if err := db.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing database")
			}
		}()
		content, terms, runs = db, db, db
		health = func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return db.Health(ctx)
		}
	} else {
		logging.Warn().Msg("No database path configured, using in-memory store (not durable)")
		content = store.NewMemoryContentStore(clk)
		terms = store.NewMemoryTermStore()
		runs = store.NewMemoryRunStore()
	}

	// Response cache, badger-backed when a path is configured.
	var entryStore respcache.EntryStore
	if cfg.Cache.Path != "" {
		bs, err := respcache.NewBadgerStore(cfg.Cache.Path)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to open cache store")
		}
		defer func() { _ = bs.Close() }()
		entryStore = bs
	} else {
		entryStore = respcache.NewMemoryStore()
	}
	cache := respcache.New(entryStore, respcache.Options{
		MaxEntries:     cfg.Cache.MaxEntries,
		EvictionBuffer: cfg.Cache.EvictionBuffer,
		Clock:          clk,
	})

	// Rate limiter over a persistent or in-process window store.
	var windowStore ratelimit.WindowStore
	if cfg.Rate.Path != "" {
		bs, err := ratelimit.NewBadgerStore(cfg.Rate.Path)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to open rate window store")
		}
		defer func() { _ = bs.Close() }()
		windowStore = bs
	} else {
		windowStore = ratelimit.NewMemoryStore()
	}
	limiter := ratelimit.New(windowStore, ratelimit.Options{
		Window:     cfg.Rate.Window,
		Capacity:   cfg.Rate.Capacity,
		MaxBackoff: cfg.Rate.MaxBackoff,
		Clock:      clk,
	})

	var admission tmdb.AdmissionController = limiter
	var inspector api.LimiterInspector = limiter
	if cfg.Rate.Adaptive {
		adaptive := ratelimit.NewAdaptive(limiter, clk)
		admission, inspector = adaptive, adaptive
	}

	client := tmdb.New(cfg.Provider, cache, admission)
	if client.TestConnection(context.Background()) {
		logging.Info().Msg("Provider connection verified")
	} else {
		logging.Warn().Msg("Provider unreachable at startup (will retry during sync)")
	}

	// Deferred task queue: shared badger dir, or in-memory when unset.
	var taskQueue *queue.Queue
	if cfg.Queue.Path != "" {
		taskQueue, err = queue.Open(cfg.Queue.Path, clk)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to open task queue")
		}
	} else {
		qdb, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to open in-memory task queue")
		}
		taskQueue = queue.NewWithDB(qdb, clk)
		defer func() { _ = qdb.Close() }()
	}
	defer func() { _ = taskQueue.Close() }()

	// Sync engine.
	m := mapper.New(content, terms)
	service := syncsvc.NewService(content, m, client, cfg.Sync.ItemDelay, clk)
	scheduler := syncsvc.NewScheduler(cfg.Sync, cfg.Webhook, service, content, runs, clk)
	worker := queue.NewWorker(taskQueue, service, cfg.Queue)

	// HTTP surface.
	ingester := webhook.New(cfg.Webhook, content, taskQueue)
	handlers := api.NewHandlers(ingester, cache, inspector, runs, content, taskQueue, health)
	router := api.NewRouter(cfg.Server, handlers)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       2 * cfg.Server.Timeout,
	}

	// Supervisor tree: sync layer (scheduler, worker) and api layer.
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddSyncService(scheduler)
	tree.AddSyncService(worker)
	tree.AddAPIService(supervisor.NewHTTPService(server, 10*time.Second))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		logging.Fatal().Err(err).Msg("Supervisor tree failed")
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within timeout")
		}
	}
	logging.Info().Msg("Shutdown complete")
}
