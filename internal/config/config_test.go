// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

package config

import (
	"testing"
	"time"
)

func TestDefaultConfigIsValidWithKey(t *testing.T) {
	cfg := defaultConfig()
	cfg.Provider.APIKey = "test-key"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config with API key should validate: %v", err)
	}
}

func TestValidateRejectsMissingAPIKey(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation failure for empty api key")
	}
}

func TestValidateRejectsBadDeletionPolicy(t *testing.T) {
	cfg := defaultConfig()
	cfg.Provider.APIKey = "test-key"
	cfg.Webhook.DeletionPolicy = "obliterate"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation failure for unknown deletion policy")
	}
}

func TestValidateRejectsEvictionBufferAtCapacity(t *testing.T) {
	cfg := defaultConfig()
	cfg.Provider.APIKey = "test-key"
	cfg.Cache.MaxEntries = 100
	cfg.Cache.EvictionBuffer = 100

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation failure when buffer >= max entries")
	}
}

func TestValidateRejectsNonPositiveTimeout(t *testing.T) {
	cfg := defaultConfig()
	cfg.Provider.APIKey = "test-key"
	cfg.Provider.Timeout = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation failure for zero provider timeout")
	}
}

func TestDefaultsMatchProviderContract(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Rate.Window != 10*time.Second {
		t.Errorf("rate window default = %v, want 10s", cfg.Rate.Window)
	}
	if cfg.Rate.Capacity != 40 {
		t.Errorf("rate capacity default = %d, want 40", cfg.Rate.Capacity)
	}
	if cfg.Rate.MaxBackoff != 300*time.Second {
		t.Errorf("max backoff default = %v, want 300s", cfg.Rate.MaxBackoff)
	}
	if cfg.Cache.MaxEntries != 1000 {
		t.Errorf("cache max entries default = %d, want 1000", cfg.Cache.MaxEntries)
	}
}

func TestEnvTransform(t *testing.T) {
	tests := map[string]string{
		"CINEGRAPH_PROVIDER_API_KEY": "provider.api_key",
		"PROVIDER_API_KEY":           "provider.api_key",
		"SYNC_ENABLED":               "sync.enabled",
		"WEBHOOK_DELETION_POLICY":    "webhook.deletion_policy",
		"DUCKDB_PATH":                "database.path",
		"HTTP_PORT":                  "server.port",
		"LOG_LEVEL":                  "logging.level",
		"RANDOM_UNRELATED_VAR":       "",
		"PATH":                       "",
	}
	for in, want := range tests {
		if got := envTransformFunc(in); got != want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", in, got, want)
		}
	}
}
