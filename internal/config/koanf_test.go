// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// noConfigFile points CONFIG_PATH at a missing file so tests never pick up
// a config.yaml from the working directory.
func noConfigFile(t *testing.T) {
	t.Helper()
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to create config file: %v", err)
	}
	return path
}

// TestDefaultConfig verifies that defaultConfig() returns proper defaults
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Throttle.MaxRequests != 300 || cfg.Throttle.Window != 5*time.Minute {
		t.Errorf("Throttle = %+v, want 300 per 5m", cfg.Throttle)
	}
	if cfg.Posts.PageSize != 40 {
		t.Errorf("Posts.PageSize = %d, want 40", cfg.Posts.PageSize)
	}
	if cfg.Paginator.SafetyCeiling != 100 || cfg.Paginator.SnapshotEvery != 5 {
		t.Errorf("Paginator = %+v, want ceiling 100, snapshot every 5", cfg.Paginator)
	}
	if cfg.Snapshot.Backend != "badger" {
		t.Errorf("Snapshot.Backend = %q, want badger", cfg.Snapshot.Backend)
	}
	if cfg.Events.Enabled {
		t.Error("Events.Enabled should be false by default")
	}
	if cfg.Server.Port != 3857 || cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server = %s:%d, want 0.0.0.0:3857", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want info/json", cfg.Logging)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	t.Parallel()

	tests := []struct {
		env  string
		want string
	}{
		{"POSTS_URL", "posts.url"},
		{"CONTRIBUTIONS_REQUESTS_PER_SECOND", "contributions.requests_per_second"},
		{"THROTTLE_MAX_REQUESTS", "throttle.max_requests"},
		{"REDIS_URL", "snapshot.redis_url"},
		{"DUCKDB_PATH", "results.path"},
		{"NATS_ENABLED", "events.enabled"},
		{"HTTP_PORT", "server.port"},
		{"CORS_ORIGINS", "server.cors_origins"},
		{"log_level", "logging.level"},
		{"HOME", ""},
		{"PATH", ""},
		{"RANDOM_VAR", ""},
	}
	for _, tt := range tests {
		if got := envTransformFunc(tt.env); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
		}
	}
}

func TestFindConfigFile(t *testing.T) {
	path := writeConfigFile(t, "logging:\n  level: debug\n")

	t.Run("env path", func(t *testing.T) {
		t.Setenv(ConfigPathEnvVar, path)
		if got := findConfigFile(); got != path {
			t.Errorf("findConfigFile() = %q, want %q", got, path)
		}
	})

	t.Run("missing env path falls back to defaults", func(t *testing.T) {
		t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "nope.yaml"))
		for _, p := range DefaultConfigPaths {
			if _, err := os.Stat(p); err == nil {
				t.Skipf("default config %s exists on this machine", p)
			}
		}
		if got := findConfigFile(); got != "" {
			t.Errorf("findConfigFile() = %q, want empty", got)
		}
	})
}

func TestLoadWithKoanfEnvVars(t *testing.T) {
	noConfigFile(t)
	t.Setenv("POSTS_URL", "https://fosstodon.org")
	t.Setenv("THROTTLE_MAX_REQUESTS", "60")
	t.Setenv("THROTTLE_WINDOW", "1m")
	t.Setenv("THROTTLE_EVENLY_SPACED", "true")
	t.Setenv("SNAPSHOT_BACKEND", "redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Posts.URL != "https://fosstodon.org" {
		t.Errorf("Posts.URL = %q", cfg.Posts.URL)
	}
	if cfg.Throttle.MaxRequests != 60 || cfg.Throttle.Window != time.Minute || !cfg.Throttle.EvenlySpaced {
		t.Errorf("Throttle = %+v", cfg.Throttle)
	}
	if cfg.Snapshot.Backend != "redis" || cfg.Snapshot.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("Snapshot = %+v", cfg.Snapshot)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}

	// Defaults still apply for unset values
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want 0.0.0.0 (default)", cfg.Server.Host)
	}
	if cfg.Paginator.SafetyCeiling != 100 {
		t.Errorf("Paginator.SafetyCeiling = %d, want 100 (default)", cfg.Paginator.SafetyCeiling)
	}
}

func TestLoadWithKoanfConfigFile(t *testing.T) {
	path := writeConfigFile(t, `
posts:
  url: "https://hachyderm.io"
  page_size: 20
paginator:
  safety_ceiling: 10
server:
  port: 8888
  cors_origins:
    - "https://a.example"
    - "https://b.example"
logging:
  level: "warn"
`)
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Posts.URL != "https://hachyderm.io" || cfg.Posts.PageSize != 20 {
		t.Errorf("Posts = %+v", cfg.Posts)
	}
	if cfg.Paginator.SafetyCeiling != 10 {
		t.Errorf("Paginator.SafetyCeiling = %d, want 10", cfg.Paginator.SafetyCeiling)
	}
	if cfg.Server.Port != 8888 {
		t.Errorf("Server.Port = %d, want 8888", cfg.Server.Port)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("Server.CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
	if cfg.Results.Path != "/data/cadence.duckdb" {
		t.Errorf("Results.Path = %q, want default", cfg.Results.Path)
	}
}

func TestLoadWithKoanfEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 8888
logging:
  level: "warn"
`)
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HTTP_PORT", "7777")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}
	if cfg.Server.Port != 7777 {
		t.Errorf("Server.Port = %d, want 7777 (env wins)", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn (file)", cfg.Logging.Level)
	}
}

func TestLoadWithKoanfCommaSeparatedOrigins(t *testing.T) {
	noConfigFile(t)
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,,")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.Server.CORSOrigins) != len(want) {
		t.Fatalf("CORSOrigins = %v, want %v", cfg.Server.CORSOrigins, want)
	}
	for i := range want {
		if cfg.Server.CORSOrigins[i] != want[i] {
			t.Errorf("CORSOrigins[%d] = %q, want %q", i, cfg.Server.CORSOrigins[i], want[i])
		}
	}
	if cfg.ShouldWarnAboutCORS() {
		t.Error("ShouldWarnAboutCORS() = true for explicit origins")
	}
}

func TestLoadWithKoanfValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"bad log level", map[string]string{"LOG_LEVEL": "verbose"}, "LOG_LEVEL"},
		{"bad backend", map[string]string{"SNAPSHOT_BACKEND": "etcd"}, "SNAPSHOT_BACKEND"},
		{"redis without url", map[string]string{"SNAPSHOT_BACKEND": "redis"}, "REDIS_URL"},
		{"posts url with path", map[string]string{"POSTS_URL": "https://mastodon.social/api/v1"}, "POSTS_URL"},
		{"nats external bad scheme", map[string]string{"NATS_ENABLED": "true", "NATS_EMBEDDED": "false", "NATS_URL": "http://nats:4222"}, "NATS_URL"},
		{"port out of range", map[string]string{"HTTP_PORT": "70000"}, "HTTP_PORT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			noConfigFile(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadWithKoanf()
			if err == nil {
				t.Fatal("LoadWithKoanf() error = nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}
