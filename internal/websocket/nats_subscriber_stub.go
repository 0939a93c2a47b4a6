// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

//go:build !nats

package websocket

import (
	"context"
	"fmt"
)

// NATSMessageHandler delivers raw messages from a subject.
type NATSMessageHandler interface {
	Subscribe(ctx context.Context, subject string) (<-chan []byte, error)
	Close() error
}

// NATSSubscriber is a stub for non-NATS builds.
type NATSSubscriber struct{}

// NewNATSSubscriber returns nil in non-NATS builds.
func NewNATSSubscriber(_ *Hub, _ NATSMessageHandler, _ string) *NATSSubscriber {
	return nil
}

// Start returns an error in non-NATS builds.
func (s *NATSSubscriber) Start(_ context.Context) error {
	return fmt.Errorf("NATS support not enabled (build with -tags nats)")
}

// Stop is a no-op stub.
func (s *NATSSubscriber) Stop() {}

// Serve returns an error in non-NATS builds.
func (s *NATSSubscriber) Serve(ctx context.Context) error {
	return s.Start(ctx)
}

// String implements fmt.Stringer.
func (s *NATSSubscriber) String() string {
	return "nats-websocket-bridge"
}
