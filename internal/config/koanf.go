// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order
// of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/cinegraph/config.yaml",
	"/etc/cinegraph/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all sensible default values. These are
// applied first, then overridden by the config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Provider: Provider{
			BaseURL:      "https://api.themoviedb.org/3",
			ImageBaseURL: "https://image.tmdb.org/t/p",
			APIKey:       "",
			Language:     "en-US",
			Region:       "US",
			Timeout:      30 * time.Second,
			UserAgent:    "Cinegraph/1.0 (+https://github.com/tomtom215/cinegraph)",
		},
		Sync: Sync{
			Enabled:              true,
			IncludeImages:        false,
			IncrementalInterval:  time.Hour,
			IncrementalWindow:    7 * 24 * time.Hour,
			IncrementalBatchSize: 50,
			FullInterval:         24 * time.Hour,
			FullBatchSize:        200,
			CleanupInterval:      7 * 24 * time.Hour,
			ItemDelay:            250 * time.Millisecond,
			RunRetention:         30 * 24 * time.Hour,
		},
		Webhook: Webhook{
			Enabled:        false,
			Secret:         "",
			SettleDelay:    30 * time.Second,
			DeletionPolicy: DeletionMark,
			DemoteStatus:   "draft",
		},
		Cache: Cache{
			MaxEntries:     1000,
			EvictionBuffer: 100,
			Path:           "",
		},
		Rate: Rate{
			Window:     10 * time.Second,
			Capacity:   40,
			MaxBackoff: 300 * time.Second,
			Adaptive:   false,
			Path:       "",
		},
		Database: Database{
			Path:      "/data/cinegraph.duckdb",
			MaxMemory: "2GB",
		},
		Queue: Queue{
			Path:         "/data/queue",
			PollInterval: 5 * time.Second,
			MaxAttempts:  5,
		},
		Server: Server{
			Host:             "0.0.0.0",
			Port:             3858,
			Timeout:          30 * time.Second,
			WebhookRateLimit: 120,
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load assembles configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML file (if found)
//  3. Environment variables: override any setting
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// CINEGRAPH_PROVIDER_API_KEY -> provider.api_key, and a handful of
	// legacy unprefixed names kept for operator convenience.
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// findConfigFile searches the override env var, then the default paths.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings maps accepted environment variable names (lowercased) to config
// paths. Unmapped variables are ignored so random environment noise cannot
// pollute the configuration.
var envMappings = map[string]string{
	// Provider
	"provider_base_url":       "provider.base_url",
	"provider_image_base_url": "provider.image_base_url",
	"provider_api_key":        "provider.api_key",
	"provider_language":       "provider.language",
	"provider_region":         "provider.region",
	"provider_timeout":        "provider.timeout",
	"provider_user_agent":     "provider.user_agent",

	// Sync
	"sync_enabled":                "sync.enabled",
	"sync_include_images":         "sync.include_images",
	"sync_incremental_interval":   "sync.incremental_interval",
	"sync_incremental_window":     "sync.incremental_window",
	"sync_incremental_batch_size": "sync.incremental_batch_size",
	"sync_full_interval":          "sync.full_interval",
	"sync_full_batch_size":        "sync.full_batch_size",
	"sync_cleanup_interval":       "sync.cleanup_interval",
	"sync_item_delay":             "sync.item_delay",
	"sync_run_retention":          "sync.run_retention",

	// Webhook
	"webhook_enabled":         "webhook.enabled",
	"webhook_secret":          "webhook.secret",
	"webhook_settle_delay":    "webhook.settle_delay",
	"webhook_deletion_policy": "webhook.deletion_policy",
	"webhook_demote_status":   "webhook.demote_status",

	// Cache
	"cache_max_entries":     "cache.max_entries",
	"cache_eviction_buffer": "cache.eviction_buffer",
	"cache_path":            "cache.path",

	// Rate limiter
	"rate_window":      "rate.window",
	"rate_capacity":    "rate.capacity",
	"rate_max_backoff": "rate.max_backoff",
	"rate_adaptive":    "rate.adaptive",
	"rate_path":        "rate.path",

	// Database
	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",

	// Queue
	"queue_path":          "queue.path",
	"queue_poll_interval": "queue.poll_interval",
	"queue_max_attempts":  "queue.max_attempts",

	// Server
	"http_host":          "server.host",
	"http_port":          "server.port",
	"http_timeout":       "server.timeout",
	"webhook_rate_limit": "server.webhook_rate_limit",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps environment variable names onto koanf config paths.
// Variables may carry a CINEGRAPH_ prefix; both forms are accepted.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)
	key = strings.TrimPrefix(key, "cinegraph_")

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
