// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

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

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/cadence/config.yaml",
	"/etc/cadence/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Contributions: ContributionsConfig{
			URL:               "https://github-contributions-api.jogruber.de/v4",
			Timeout:           15 * time.Second,
			RequestsPerSecond: 5,
			Burst:             5,
			CacheTTL:          30 * time.Minute,
		},
		Posts: PostsConfig{
			URL:      "https://mastodon.social",
			Timeout:  15 * time.Second,
			PageSize: 40,
		},
		// Mastodon's default budget: 300 requests per 5 minutes.
		Throttle: ThrottleConfig{
			MaxRequests:  300,
			Window:       5 * time.Minute,
			EvenlySpaced: false,
			StartDelay:   0,
		},
		Paginator: PaginatorConfig{
			SafetyCeiling: 100,
			SnapshotEvery: 5,
		},
		Snapshot: SnapshotConfig{
			Backend:    "badger",
			Path:       "/data/snapshots",
			RedisURL:   "",
			SyncWrites: true,
		},
		Results: ResultsConfig{
			Path:     "/data/cadence.duckdb",
			CacheTTL: time.Hour,
		},
		Breaker: BreakerConfig{
			MaxRequests:  3,
			Interval:     time.Minute,
			Timeout:      30 * time.Second,
			MinRequests:  5,
			FailureRatio: 0.6,
		},
		Events: EventsConfig{
			Enabled:  false,
			URL:      "nats://127.0.0.1:4222",
			Embedded: true,
			StoreDir: "/data/nats/jetstream",
			Subject:  "cadence.runs.completed",
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3857,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources.
// Configuration is loaded in the following order (later sources override earlier):
//
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// POSTS_URL -> posts.url
	// THROTTLE_MAX_REQUESTS -> throttle.max_requests
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
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

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars arrive as strings while the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML or defaults)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
var envMappings = map[string]string{
	// Contribution-history API
	"contributions_url":                 "contributions.url",
	"contributions_token":               "contributions.token",
	"contributions_timeout":             "contributions.timeout",
	"contributions_requests_per_second": "contributions.requests_per_second",
	"contributions_burst":               "contributions.burst",
	"contributions_cache_ttl":           "contributions.cache_ttl",

	// Social post API
	"posts_url":       "posts.url",
	"posts_token":     "posts.token",
	"posts_timeout":   "posts.timeout",
	"posts_page_size": "posts.page_size",

	// Throttle
	"throttle_max_requests":  "throttle.max_requests",
	"throttle_window":        "throttle.window",
	"throttle_evenly_spaced": "throttle.evenly_spaced",
	"throttle_start_delay":   "throttle.start_delay",

	// Paginator
	"paginator_safety_ceiling": "paginator.safety_ceiling",
	"paginator_snapshot_every": "paginator.snapshot_every",

	// Snapshot store
	"snapshot_backend":     "snapshot.backend",
	"snapshot_path":        "snapshot.path",
	"snapshot_sync_writes": "snapshot.sync_writes",
	"redis_url":            "snapshot.redis_url",

	// Result archive
	"duckdb_path":       "results.path",
	"results_cache_ttl": "results.cache_ttl",

	// Circuit breaker
	"breaker_max_requests":  "breaker.max_requests",
	"breaker_interval":      "breaker.interval",
	"breaker_timeout":       "breaker.timeout",
	"breaker_min_requests":  "breaker.min_requests",
	"breaker_failure_ratio": "breaker.failure_ratio",

	// Events
	"nats_enabled":   "events.enabled",
	"nats_url":       "events.url",
	"nats_embedded":  "events.embedded",
	"nats_store_dir": "events.store_dir",
	"nats_subject":   "events.subject",

	// HTTP server
	"http_host":         "server.host",
	"http_port":         "server.port",
	"http_timeout":      "server.timeout",
	"cors_origins":      "server.cors_origins",
	"rate_limit_reqs":   "server.rate_limit_requests",
	"rate_limit_window": "server.rate_limit_window",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Supervisor
	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_decay":     "supervisor.failure_decay",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
	"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - POSTS_URL -> posts.url
//   - REDIS_URL -> snapshot.redis_url
//   - DUCKDB_PATH -> results.path
//   - HTTP_PORT -> server.port
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}

	// Unmapped keys are skipped so unrelated environment variables
	// never pollute the config.
	return ""
}
