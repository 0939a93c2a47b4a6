// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

// Package events announces completed ingestion runs to other services.
//
// The default build only has NoopPublisher. Build with -tags=nats for the
// Watermill NATS JetStream publisher and the embedded NATS server.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// DefaultSubject is the subject run-completed events are published on.
const DefaultSubject = "cadence.runs.completed"

// DefaultStream is the JetStream stream holding run events.
const DefaultStream = "CADENCE_RUNS"

// SchemaVersion is bumped on breaking changes to RunCompleted.
const SchemaVersion = 1

// RunCompleted describes the end of one ingestion run, successful or not.
type RunCompleted struct {
	SchemaVersion int       `json:"schema_version"`
	EventID       string    `json:"event_id"`
	RunID         string    `json:"run_id"`
	PairKey       string    `json:"pair_key"`
	Days          int       `json:"days"`
	Records       int       `json:"records"`
	Iterations    int       `json:"iterations"`
	StopReason    string    `json:"stop_reason,omitempty"`
	Err           string    `json:"error,omitempty"`
	CompletedAt   time.Time `json:"completed_at"`
}

// NewRunCompleted fills in the envelope fields.
func NewRunCompleted(runID, pairKey string) *RunCompleted {
	return &RunCompleted{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.New().String(),
		RunID:         runID,
		PairKey:       pairKey,
		CompletedAt:   time.Now().UTC(),
	}
}

// Marshal encodes the event.
func (e *RunCompleted) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal run event: %w", err)
	}
	return data, nil
}

// UnmarshalRunCompleted decodes an event.
func UnmarshalRunCompleted(data []byte) (*RunCompleted, error) {
	var e RunCompleted
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal run event: %w", err)
	}
	return &e, nil
}

// Publisher delivers run events.
type Publisher interface {
	PublishRunCompleted(ctx context.Context, event *RunCompleted) error
	Close() error
}

// NoopPublisher discards every event.
type NoopPublisher struct{}

func (NoopPublisher) PublishRunCompleted(context.Context, *RunCompleted) error { return nil }

func (NoopPublisher) Close() error { return nil }

// PublisherConfig configures the NATS publisher.
type PublisherConfig struct {
	URL           string
	Subject       string
	Stream        string
	MaxReconnects int
	ReconnectWait time.Duration
	MaxAge        time.Duration
}

func (c PublisherConfig) withDefaults() PublisherConfig {
	if c.Subject == "" {
		c.Subject = DefaultSubject
	}
	if c.Stream == "" {
		c.Stream = DefaultStream
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = -1
	}
	if c.ReconnectWait <= 0 {
		c.ReconnectWait = 2 * time.Second
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 7 * 24 * time.Hour
	}
	return c
}

// ServerConfig configures the embedded NATS server.
type ServerConfig struct {
	Host     string
	Port     int
	StoreDir string
}
