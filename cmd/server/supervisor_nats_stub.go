// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

//go:build !nats

package main

import (
	"time"

	"github.com/tomtom215/cadence/internal/supervisor"
)

// AddNATSToSupervisor is a no-op without NATS.
func AddNATSToSupervisor(*supervisor.SupervisorTree, *NATSComponents, time.Duration) {}
