// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

//go:build !nats

package websocket

import (
	"context"
	"testing"
)

func TestNATSSubscriberStub(t *testing.T) {
	t.Parallel()

	if sub := NewNATSSubscriber(NewHub(), nil, ""); sub != nil {
		t.Error("NewNATSSubscriber() should return nil in non-NATS build")
	}

	sub := &NATSSubscriber{}
	if err := sub.Start(context.Background()); err == nil {
		t.Error("Start() should return error in non-NATS build")
	}
	if err := sub.Serve(context.Background()); err == nil {
		t.Error("Serve() should return error in non-NATS build")
	}
	sub.Stop()
}
