// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/cadence/internal/cache"
	"github.com/tomtom215/cadence/internal/logging"
	"github.com/tomtom215/cadence/internal/metrics"
	"github.com/tomtom215/cadence/internal/models"
)

// ContributionFetcher returns the full contribution series of a code-host handle.
type ContributionFetcher interface {
	FetchContributions(ctx context.Context, handle string) (*models.ContributionSeries, error)
}

// ContributionConfig configures ContributionClient.
type ContributionConfig struct {
	BaseURL           string
	Token             string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	Breaker           BreakerConfig
}

// ContributionClient fetches contribution calendars over HTTP:
//
//	GET {base}/v1/{handle}
//	{"contributions":[{"date":"2024-01-01","count":3}, ...]}
//
// The contribution source is called once per run, so it is paced by its own
// token bucket instead of the shared page throttle.
type ContributionClient struct {
	baseURL string
	token   string
	client  *http.Client
	limiter *rate.Limiter
	breaker *breaker
}

// NewContributionClient creates a client.
func NewContributionClient(cfg ContributionConfig) *ContributionClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &ContributionClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
		breaker: newBreaker("contribution-api", cfg.Breaker),
	}
}

type contributionResponse struct {
	Contributions []struct {
		Date  string `json:"date"`
		Count int    `json:"count"`
	} `json:"contributions"`
	Error string `json:"error"`
}

// FetchContributions returns the contribution series of handle.
func (c *ContributionClient) FetchContributions(ctx context.Context, handle string) (*models.ContributionSeries, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("contribution rate limiter: %w", err)
	}
	return castResult[*models.ContributionSeries](c.breaker.execute(func() (interface{}, error) {
		return c.fetch(ctx, handle)
	}))
}

func (c *ContributionClient) fetch(ctx context.Context, handle string) (*models.ContributionSeries, error) {
	reqURL := c.baseURL + "/v1/" + url.PathEscape(handle)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: contribution request: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("contribution-api", resp)
	}

	var body contributionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode contributions: %w", ErrTransport, err)
	}
	if body.Error != "" {
		return nil, &UpstreamError{Source: "contribution-api", Status: resp.StatusCode, Message: body.Error}
	}

	series := &models.ContributionSeries{
		Handle:    handle,
		Points:    make([]models.ContributionPoint, 0, len(body.Contributions)),
		FetchedAt: time.Now().UTC(),
	}
	for _, p := range body.Contributions {
		day, err := models.ParseDay(p.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: contribution series: %w", ErrTransport, err)
		}
		series.Points = append(series.Points, models.ContributionPoint{Day: day, Count: p.Count})
	}
	return series, nil
}

// BreakerState reports the contribution breaker state.
func (c *ContributionClient) BreakerState() string {
	return c.breaker.State()
}

// statusError converts a non-2xx response into an *UpstreamError when the
// body carries an error payload, or a transport error otherwise.
func statusError(name string, resp *http.Response) error {
	body := readBodyForError(resp.Body)
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return &UpstreamError{Source: name, Status: resp.StatusCode, Message: payload.Error}
	}
	return fmt.Errorf("%w: %s returned status %d: %s", ErrTransport, name, resp.StatusCode, string(body))
}

// CachedContributions caches contribution series per handle for a TTL.
// Invalidate drops one handle so the next run refetches it.
type CachedContributions struct {
	next  ContributionFetcher
	cache *cache.Cache[*models.ContributionSeries]
}

// NewCachedContributions wraps next with a TTL cache.
func NewCachedContributions(next ContributionFetcher, ttl time.Duration) *CachedContributions {
	return &CachedContributions{next: next, cache: cache.New[*models.ContributionSeries](ttl)}
}

// FetchContributions serves from cache or fetches and caches.
func (c *CachedContributions) FetchContributions(ctx context.Context, handle string) (*models.ContributionSeries, error) {
	key := strings.ToLower(handle)
	if series, ok := c.cache.Get(key); ok {
		metrics.ContributionFetches.WithLabelValues("hit").Inc()
		return series, nil
	}

	series, err := c.next.FetchContributions(ctx, handle)
	if err != nil {
		metrics.ContributionFetches.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.ContributionFetches.WithLabelValues("miss").Inc()
	c.cache.Set(key, series)
	logging.Ctx(ctx).Debug().
		Str("handle", handle).
		Int("days", len(series.Points)).
		Msg("Contribution series cached")
	return series, nil
}

// Invalidate drops the cached series for handle.
func (c *CachedContributions) Invalidate(handle string) {
	c.cache.Delete(strings.ToLower(handle))
}

// Close stops the cache sweeper.
func (c *CachedContributions) Close() {
	c.cache.Close()
}
