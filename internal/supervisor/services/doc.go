// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

// Package services adapts components whose lifecycle is not already a
// suture.Service.
//
// The throttle queue, websocket hub and NATS bridge implement Serve and
// String themselves and are added to the tree directly. What remains:
//
//   - HTTPServerService turns http.Server's ListenAndServe and Shutdown into
//     a context-driven Serve.
//   - EventComponentsService owns the embedded NATS server and the event
//     publisher: it checks they are up, waits for shutdown and closes them.
package services
