// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateContributions,
		c.validatePosts,
		c.validateThrottle,
		c.validatePaginator,
		c.validateSnapshot,
		c.validateBreaker,
		c.validateEvents,
		c.validateServer,
		c.validateRateLimits,
		c.validateSupervisor,
		c.validateLogging,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

// validateContributions validates the contribution-history API settings
func (c *Config) validateContributions() error {
	if c.Contributions.URL == "" {
		return fmt.Errorf("CONTRIBUTIONS_URL is required")
	}
	if err := validateAPIPrefixURL(c.Contributions.URL, "CONTRIBUTIONS_URL"); err != nil {
		return err
	}
	if c.Contributions.Token != "" && containsPlaceholder(c.Contributions.Token) {
		return fmt.Errorf("CONTRIBUTIONS_TOKEN contains a placeholder value, set a real token or leave it empty")
	}
	if c.Contributions.Timeout <= 0 {
		return fmt.Errorf("CONTRIBUTIONS_TIMEOUT must be positive")
	}
	if c.Contributions.RequestsPerSecond <= 0 {
		return fmt.Errorf("CONTRIBUTIONS_REQUESTS_PER_SECOND must be positive")
	}
	if c.Contributions.Burst < 1 {
		return fmt.Errorf("CONTRIBUTIONS_BURST must be at least 1")
	}
	return nil
}

// validatePosts validates the social post API settings
func (c *Config) validatePosts() error {
	if c.Posts.URL == "" {
		return fmt.Errorf("POSTS_URL is required")
	}
	if err := validateHTTPURL(c.Posts.URL, "POSTS_URL"); err != nil {
		return err
	}
	if c.Posts.Token != "" && containsPlaceholder(c.Posts.Token) {
		return fmt.Errorf("POSTS_TOKEN contains a placeholder value, set a real token or leave it empty")
	}
	if c.Posts.Timeout <= 0 {
		return fmt.Errorf("POSTS_TIMEOUT must be positive")
	}
	// Mastodon caps statuses pages at 40.
	if c.Posts.PageSize < 1 || c.Posts.PageSize > 40 {
		return fmt.Errorf("POSTS_PAGE_SIZE must be between 1 and 40")
	}
	return nil
}

// validateThrottle validates the request budget of the post API
func (c *Config) validateThrottle() error {
	if c.Throttle.MaxRequests < 1 {
		return fmt.Errorf("THROTTLE_MAX_REQUESTS must be at least 1")
	}
	if c.Throttle.Window <= 0 {
		return fmt.Errorf("THROTTLE_WINDOW must be positive")
	}
	if c.Throttle.StartDelay < 0 {
		return fmt.Errorf("THROTTLE_START_DELAY must not be negative")
	}
	return nil
}

func (c *Config) validatePaginator() error {
	if c.Paginator.SafetyCeiling < 1 {
		return fmt.Errorf("PAGINATOR_SAFETY_CEILING must be at least 1")
	}
	if c.Paginator.SnapshotEvery < 1 {
		return fmt.Errorf("PAGINATOR_SNAPSHOT_EVERY must be at least 1")
	}
	return nil
}

// validSnapshotBackends defines the allowed snapshot backends
var validSnapshotBackends = map[string]bool{
	"badger": true,
	"redis":  true,
	"memory": true,
}

// validateSnapshot validates the snapshot store selection
func (c *Config) validateSnapshot() error {
	if !validSnapshotBackends[c.Snapshot.Backend] {
		return fmt.Errorf("SNAPSHOT_BACKEND must be one of: badger, redis, memory")
	}
	switch c.Snapshot.Backend {
	case "badger":
		if c.Snapshot.Path == "" {
			return fmt.Errorf("SNAPSHOT_PATH is required for the badger backend")
		}
	case "redis":
		if c.Snapshot.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis backend")
		}
		if err := validateRedisURL(c.Snapshot.RedisURL); err != nil {
			return fmt.Errorf("REDIS_URL: %w", err)
		}
	}
	return nil
}

func (c *Config) validateBreaker() error {
	if c.Breaker.FailureRatio <= 0 || c.Breaker.FailureRatio > 1 {
		return fmt.Errorf("BREAKER_FAILURE_RATIO must be in (0, 1]")
	}
	if c.Breaker.MinRequests < 1 {
		return fmt.Errorf("BREAKER_MIN_REQUESTS must be at least 1")
	}
	if c.Breaker.Timeout <= 0 {
		return fmt.Errorf("BREAKER_TIMEOUT must be positive")
	}
	return nil
}

// validateEvents validates event publishing (only if enabled)
func (c *Config) validateEvents() error {
	if !c.Events.Enabled {
		return nil
	}
	if c.Events.Subject == "" {
		return fmt.Errorf("NATS_SUBJECT is required when NATS_ENABLED=true")
	}
	if c.Events.Embedded {
		if c.Events.StoreDir == "" {
			return fmt.Errorf("NATS_STORE_DIR is required for the embedded server")
		}
		return nil
	}
	if c.Events.URL == "" {
		return fmt.Errorf("NATS_URL is required when NATS_ENABLED=true and NATS_EMBEDDED=false")
	}
	if err := validateNATSURL(c.Events.URL); err != nil {
		return fmt.Errorf("NATS_URL: %w", err)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	return nil
}

// Rate limit constants
const (
	minRateLimitRequests = 1           // Minimum 1 request allowed
	maxRateLimitRequests = 100000      // Maximum 100K requests per window
	minRateLimitWindow   = time.Second // Minimum 1 second window
	maxRateLimitWindow   = time.Hour   // Maximum 1 hour window
)

// validateRateLimits validates the API rate limit bounds.
func (c *Config) validateRateLimits() error {
	if c.Server.RateLimitReqs < minRateLimitRequests || c.Server.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Server.RateLimitWindow < minRateLimitWindow || c.Server.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

func (c *Config) validateSupervisor() error {
	if c.Supervisor.FailureThreshold <= 0 {
		return fmt.Errorf("SUPERVISOR_FAILURE_THRESHOLD must be positive")
	}
	if c.Supervisor.ShutdownTimeout <= 0 {
		return fmt.Errorf("SUPERVISOR_SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

// validLogLevels defines the allowed log levels
var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validLogFormats defines the allowed log formats
var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// placeholderPatterns defines common placeholder patterns that indicate
// the user forgot to set a real value.
var placeholderPatterns = []string{
	"REPLACE",
	"CHANGEME",
	"CHANGE_ME",
	"YOUR_TOKEN",
	"PLACEHOLDER",
	"EXAMPLE",
}

// containsPlaceholder checks if a value contains common placeholder patterns
func containsPlaceholder(value string) bool {
	upperValue := strings.ToUpper(value)
	for _, pattern := range placeholderPatterns {
		if strings.Contains(upperValue, pattern) {
			return true
		}
	}
	return false
}

// ShouldWarnAboutCORS reports whether CORS allows any origin.
func (c *Config) ShouldWarnAboutCORS() bool {
	for _, origin := range c.Server.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}
