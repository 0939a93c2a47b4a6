// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

//go:build !nats

package main

import (
	"context"

	"github.com/tomtom215/cadence/internal/config"
	"github.com/tomtom215/cadence/internal/events"
	"github.com/tomtom215/cadence/internal/logging"
	ws "github.com/tomtom215/cadence/internal/websocket"
)

// NATSComponents is empty when NATS is not compiled in.
type NATSComponents struct{}

// InitNATS warns when events are enabled in a build without -tags=nats.
// Run-completed events then only reach local websocket feed clients.
func InitNATS(_ context.Context, cfg *config.Config, _ *ws.Hub) (*NATSComponents, error) {
	if cfg.Events.Enabled {
		logging.Warn().Msg("NATS_ENABLED=true but NATS support is not compiled in (build with -tags=nats); publishing to websocket clients only")
	}
	return nil, nil
}

// Publisher returns nil.
func (c *NATSComponents) Publisher() events.Publisher { return nil }

// Ready always succeeds.
func (c *NATSComponents) Ready(context.Context) error { return nil }

// Shutdown is a no-op.
func (c *NATSComponents) Shutdown(context.Context) error { return nil }
