// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

// Package config loads the service configuration.
//
// Values are layered with koanf: built-in defaults, then an optional YAML
// file, then environment variables. See LoadWithKoanf.
package config

import (
	"time"
)

// Config holds all application configuration
type Config struct {
	Contributions ContributionsConfig `koanf:"contributions"`
	Posts         PostsConfig         `koanf:"posts"`
	Throttle      ThrottleConfig      `koanf:"throttle"`
	Paginator     PaginatorConfig     `koanf:"paginator"`
	Snapshot      SnapshotConfig      `koanf:"snapshot"`
	Results       ResultsConfig       `koanf:"results"`
	Breaker       BreakerConfig       `koanf:"breaker"`
	Events        EventsConfig        `koanf:"events"`
	Server        ServerConfig        `koanf:"server"`
	Logging       LoggingConfig       `koanf:"logging"`
	Supervisor    SupervisorConfig    `koanf:"supervisor"`
}

// ContributionsConfig holds the contribution-history API settings
type ContributionsConfig struct {
	URL               string        `koanf:"url"`
	Token             string        `koanf:"token"`
	Timeout           time.Duration `koanf:"timeout"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	Burst             int           `koanf:"burst"`

	// CacheTTL is how long a fetched series is reused before refetching.
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

// PostsConfig holds the social post API settings
type PostsConfig struct {
	URL      string        `koanf:"url"`
	Token    string        `koanf:"token"`
	Timeout  time.Duration `koanf:"timeout"`
	PageSize int           `koanf:"page_size"`
}

// ThrottleConfig bounds post API calls to MaxRequests per Window.
type ThrottleConfig struct {
	MaxRequests  int           `koanf:"max_requests"`
	Window       time.Duration `koanf:"window"`
	EvenlySpaced bool          `koanf:"evenly_spaced"`
	StartDelay   time.Duration `koanf:"start_delay"`
}

// PaginatorConfig holds post-walk limits
type PaginatorConfig struct {
	SafetyCeiling int `koanf:"safety_ceiling"`
	SnapshotEvery int `koanf:"snapshot_every"`
}

// SnapshotConfig selects the snapshot backend: badger, redis or memory.
type SnapshotConfig struct {
	Backend    string `koanf:"backend"`
	Path       string `koanf:"path"`
	RedisURL   string `koanf:"redis_url"`
	SyncWrites bool   `koanf:"sync_writes"`
}

// ResultsConfig holds the final-result archive settings
type ResultsConfig struct {
	// Path of the DuckDB archive. Empty keeps results in memory only.
	Path     string        `koanf:"path"`
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

// BreakerConfig tunes the circuit breakers around both upstream APIs.
type BreakerConfig struct {
	MaxRequests  uint32        `koanf:"max_requests"`
	Interval     time.Duration `koanf:"interval"`
	Timeout      time.Duration `koanf:"timeout"`
	MinRequests  uint32        `koanf:"min_requests"`
	FailureRatio float64       `koanf:"failure_ratio"`
}

// EventsConfig holds run-completion event publishing settings
type EventsConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`

	// Embedded starts an in-process NATS server and publishes to it.
	Embedded bool   `koanf:"embedded"`
	StoreDir string `koanf:"store_dir"`
	Subject  string `koanf:"subject"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_requests"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// SupervisorConfig tunes the suture supervisor tree.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

// Load reads configuration from defaults, an optional config file and the
// environment, in that order of precedence.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
