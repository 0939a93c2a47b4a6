// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

/*
Package supervisor runs cadence's long-lived services under a suture v4 tree.

	RootSupervisor ("cadence")
	├── DataSupervisor ("data-layer")
	│   └── throttle queue (admits post-page fetches)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── websocket hub
	│   ├── event components: NATS publisher and embedded server (build tag: nats)
	│   └── NATS to WebSocket bridge (events enabled, build tag: nats)
	└── APISupervisor ("api-layer")
	    └── HTTP server

A crash in one layer restarts only that layer's services. Runs already in
flight keep going while the HTTP server restarts, because they execute on
the ingest service's own context rather than under the tree.

Supervisor events are logged through sutureslog, backed by the zerolog
global logger via logging.NewSlogLogger:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(),
	    supervisor.TreeConfigFrom(cfg.Supervisor))
	tree.AddDataService(queue)
	tree.AddMessagingService(hub)
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Supervisor.ShutdownTimeout))
	err = tree.Serve(ctx)

Service wrappers that adapt non-suture lifecycles live in the services
subpackage.
*/
package supervisor
