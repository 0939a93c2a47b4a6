// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

//go:build !nats

package events

import (
	"context"
	"fmt"
)

// NATSPublisher is a stub when NATS dependencies are not available.
// Build with -tags=nats to enable it.
type NATSPublisher struct{}

// NewNATSPublisher returns an error when NATS dependencies are not available.
func NewNATSPublisher(_ context.Context, _ PublisherConfig) (*NATSPublisher, error) {
	return nil, fmt.Errorf("NATS publisher not available: build with -tags=nats")
}

// PublishRunCompleted is a stub that returns an error.
func (p *NATSPublisher) PublishRunCompleted(context.Context, *RunCompleted) error {
	return fmt.Errorf("NATS publisher not available: build with -tags=nats")
}

// Subscribe is a stub that returns an error.
func (p *NATSPublisher) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, fmt.Errorf("NATS publisher not available: build with -tags=nats")
}

// Connected always returns false for the stub.
func (p *NATSPublisher) Connected() bool {
	return false
}

// Close is a no-op stub.
func (p *NATSPublisher) Close() error {
	return nil
}
