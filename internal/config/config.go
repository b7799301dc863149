// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

// Package config holds the layered application configuration.
//
// Configuration is assembled from three sources with clear precedence:
// environment variables > optional YAML config file > built-in defaults.
package config

import (
	"fmt"
	"time"

	"github.com/tomtom215/cinegraph/internal/validation"
)

// DeletionPolicy controls what happens to a local record when the provider
// reports it deleted.
type DeletionPolicy string

const (
	// DeletionHard removes the local record entirely.
	DeletionHard DeletionPolicy = "hard"
	// DeletionMark flags the record unavailable but keeps it queryable.
	DeletionMark DeletionPolicy = "mark"
	// DeletionMarkDemote flags the record unavailable and additionally
	// demotes its publication status to DemoteStatus.
	DeletionMarkDemote DeletionPolicy = "mark_demote"
)

// Config is the root configuration for the Cinegraph service.
type Config struct {
	Provider Provider `koanf:"provider"`
	Sync     Sync     `koanf:"sync"`
	Webhook  Webhook  `koanf:"webhook"`
	Cache    Cache    `koanf:"cache"`
	Rate     Rate     `koanf:"rate"`
	Database Database `koanf:"database"`
	Queue    Queue    `koanf:"queue"`
	Server   Server   `koanf:"server"`
	Logging  Logging  `koanf:"logging"`
}

// Provider configures access to the external content API.
type Provider struct {
	// BaseURL is the API root, e.g. https://api.themoviedb.org/3
	BaseURL string `koanf:"base_url" validate:"required,url"`
	// ImageBaseURL is the asset root used by ImageURL, e.g. https://image.tmdb.org/t/p
	ImageBaseURL string `koanf:"image_base_url" validate:"required,url"`
	// APIKey authenticates every request.
	APIKey string `koanf:"api_key" validate:"required"`
	// Language is the default language tag sent with requests, e.g. en-US.
	Language string `koanf:"language"`
	// Region is the default region hint, e.g. US.
	Region string `koanf:"region"`
	// Timeout bounds each individual network call.
	Timeout time.Duration `koanf:"timeout"`
	// UserAgent identifies this service to the provider.
	UserAgent string `koanf:"user_agent"`
}

// Sync configures the scheduled batch driver.
type Sync struct {
	// Enabled is the global on/off flag checked at the start of every run.
	Enabled bool `koanf:"enabled"`
	// IncludeImages enables best-effort secondary image fetches.
	IncludeImages bool `koanf:"include_images"`

	// IncrementalInterval is the cadence of the frequent run.
	IncrementalInterval time.Duration `koanf:"incremental_interval"`
	// IncrementalWindow selects records changed within this trailing window.
	IncrementalWindow time.Duration `koanf:"incremental_window"`
	// IncrementalBatchSize bounds the frequent run.
	IncrementalBatchSize int `koanf:"incremental_batch_size" validate:"min=1"`

	// FullInterval is the cadence of the comprehensive run.
	FullInterval time.Duration `koanf:"full_interval"`
	// FullBatchSize bounds the comprehensive run.
	FullBatchSize int `koanf:"full_batch_size" validate:"min=1"`

	// CleanupInterval is the cadence of orphan cleanup and rank recompute.
	CleanupInterval time.Duration `koanf:"cleanup_interval"`

	// ItemDelay is the deliberate pause inserted between batch items.
	ItemDelay time.Duration `koanf:"item_delay"`
	// RunRetention bounds how long finished run records are kept.
	RunRetention time.Duration `koanf:"run_retention"`
}

// Webhook configures the inbound change-notification endpoint.
type Webhook struct {
	Enabled bool `koanf:"enabled"`
	// Secret is the shared HMAC secret. Empty means signature verification
	// is explicitly skipped.
	Secret string `koanf:"secret"`
	// SettleDelay defers the targeted sync so provider-side consistency
	// can settle before we read.
	SettleDelay time.Duration `koanf:"settle_delay"`
	// DeletionPolicy: hard, mark, or mark_demote.
	DeletionPolicy DeletionPolicy `koanf:"deletion_policy" validate:"oneof=hard mark mark_demote"`
	// DemoteStatus is the publication status applied under mark_demote.
	DemoteStatus string `koanf:"demote_status"`
}

// Cache configures the provider response cache.
type Cache struct {
	// MaxEntries bounds the cache size.
	MaxEntries int `koanf:"max_entries" validate:"min=1"`
	// EvictionBuffer is how far below MaxEntries eviction drains.
	EvictionBuffer int `koanf:"eviction_buffer" validate:"min=0"`
	// Path enables badger-backed persistence when non-empty.
	Path string `koanf:"path"`
}

// Rate configures per-endpoint admission control.
type Rate struct {
	// Window is the sliding window duration.
	Window time.Duration `koanf:"window"`
	// Capacity is the admission count per window per endpoint.
	Capacity int `koanf:"capacity" validate:"min=1"`
	// MaxBackoff caps the failure backoff.
	MaxBackoff time.Duration `koanf:"max_backoff"`
	// Adaptive scales waits by load and time-of-day factors.
	Adaptive bool `koanf:"adaptive"`
	// Path enables badger-backed window persistence when non-empty.
	Path string `koanf:"path"`
}

// Database configures the DuckDB-backed local store.
type Database struct {
	// Path is the DuckDB file path. Empty selects the in-memory store
	// (useful for evaluation; not durable).
	Path string `koanf:"path"`
	// MaxMemory is passed to DuckDB, e.g. "2GB".
	MaxMemory string `koanf:"max_memory"`
}

// Queue configures the deferred sync task queue.
type Queue struct {
	// Path is the badger directory backing the queue.
	Path string `koanf:"path"`
	// PollInterval is how often the worker checks for due tasks.
	PollInterval time.Duration `koanf:"poll_interval"`
	// MaxAttempts bounds retries of a failing task.
	MaxAttempts int `koanf:"max_attempts" validate:"min=1"`
}

// Server configures the HTTP surface.
type Server struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout time.Duration `koanf:"timeout"`
	// WebhookRateLimit bounds requests per minute on the webhook endpoint.
	WebhookRateLimit int `koanf:"webhook_rate_limit" validate:"min=1"`
}

// Logging configures the global logger.
type Logging struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Validate checks structural constraints and inter-field rules.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Rate.Window <= 0 {
		return fmt.Errorf("rate.window must be positive")
	}
	if c.Cache.EvictionBuffer >= c.Cache.MaxEntries {
		return fmt.Errorf("cache.eviction_buffer must be smaller than cache.max_entries")
	}
	if c.Provider.Timeout <= 0 {
		return fmt.Errorf("provider.timeout must be positive")
	}
	return nil
}
