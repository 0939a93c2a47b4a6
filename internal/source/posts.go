// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cadence/internal/models"
)

// PostConfig configures PostClient.
type PostConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Breaker BreakerConfig
}

// PostClient pages through a social account's posts, newest first:
//
//	GET {base}/api/v1/accounts/{handle}/statuses?limit=40&max_id=123
//
// max_id is inclusive. A JSON body of the form {"error":"..."} on any
// status is reported as *UpstreamError. The client never retries: each
// request spends rate budget, and retry policy belongs to the caller.
type PostClient struct {
	baseURL string
	token   string
	client  *http.Client
	breaker *breaker
}

// NewPostClient creates a client.
func NewPostClient(cfg PostConfig) *PostClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PostClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  &http.Client{Timeout: timeout},
		breaker: newBreaker("post-api", cfg.Breaker),
	}
}

// maxPageBodySize bounds a single page response.
const maxPageBodySize = 8 << 20

// postID accepts ids encoded as JSON strings or bare numbers.
type postID string

func (id *postID) UnmarshalJSON(b []byte) error {
	*id = postID(strings.Trim(string(b), `"`))
	return nil
}

type postJSON struct {
	ID         postID    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Replies    int64     `json:"replies_count"`
	Reposts    int64     `json:"reblogs_count"`
	Favourites int64     `json:"favourites_count"`
}

// FetchPage returns up to limit posts of handle with id <= maxID.
func (c *PostClient) FetchPage(ctx context.Context, handle string, maxID models.RecordID, limit int) ([]models.ActivityRecord, error) {
	return castResult[[]models.ActivityRecord](c.breaker.execute(func() (interface{}, error) {
		return c.fetchPage(ctx, handle, maxID, limit)
	}))
}

func (c *PostClient) fetchPage(ctx context.Context, handle string, maxID models.RecordID, limit int) ([]models.ActivityRecord, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	if maxID != "" {
		params.Set("max_id", string(maxID))
	}
	reqURL := fmt.Sprintf("%s/api/v1/accounts/%s/statuses?%s", c.baseURL, url.PathEscape(handle), params.Encode())

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
		return nil, fmt.Errorf("%w: post request: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("post-api", resp)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: read post page: %w", ErrTransport, err)
	}
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '{' {
		var payload struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
			return nil, &UpstreamError{Source: "post-api", Status: resp.StatusCode, Message: payload.Error}
		}
		return nil, fmt.Errorf("%w: unexpected post page object: %s", ErrTransport, string(body))
	}

	var posts []postJSON
	if err := json.Unmarshal(body, &posts); err != nil {
		return nil, fmt.Errorf("%w: decode post page: %w", ErrTransport, err)
	}

	records := make([]models.ActivityRecord, 0, len(posts))
	for _, p := range posts {
		id := models.RecordID(p.ID)
		if !id.Valid() {
			return nil, fmt.Errorf("%w: invalid post id %q", ErrTransport, string(p.ID))
		}
		records = append(records, models.ActivityRecord{
			ID:        id,
			CreatedAt: p.CreatedAt.UTC(),
			Engagement: models.Engagement{
				Replies: p.Replies,
				Reposts: p.Reposts,
				Likes:   p.Favourites,
			},
		})
	}
	return records, nil
}

// BreakerState reports the post breaker state.
func (c *PostClient) BreakerState() string {
	return c.breaker.State()
}
