// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

//go:build nats

package main

import (
	"time"

	"github.com/tomtom215/cadence/internal/logging"
	"github.com/tomtom215/cadence/internal/supervisor"
	"github.com/tomtom215/cadence/internal/supervisor/services"
)

// AddNATSToSupervisor adds the NATS components, and the websocket bridge
// when there is one, to the messaging layer.
func AddNATSToSupervisor(tree *supervisor.SupervisorTree, comps *NATSComponents, shutdownTimeout time.Duration) {
	if comps == nil {
		return
	}
	tree.AddMessagingService(services.NewEventComponentsService(comps, shutdownTimeout))
	if comps.bridge != nil {
		tree.AddMessagingService(comps.bridge)
	}
	logging.Info().Bool("bridge", comps.bridge != nil).Msg("NATS components added to supervisor tree (messaging layer)")
}
