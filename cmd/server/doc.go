// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

/*
Package main is the entry point for the Cadence server.

Cadence merges a developer's daily contribution counts with the daily post
counts of their social account. Post history is paginated behind a strict
rate limit, so runs are resumable, throttled and shared between every
client that asks for the same identity pair while one is in flight.

# Supervisor Tree

	RootSupervisor ("cadence")
	├── DataSupervisor ("data-layer")
	│   └── throttle queue (post API admission)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── WebSocket hub
	│   ├── event components (optional, -tags nats)
	│   └── NATS to websocket bridge (optional, -tags nats)
	└── APISupervisor ("api-layer")
	    └── HTTP server

Startup order:

 1. Configuration: koanf v2 (defaults, optional config.yaml, environment)
 2. Logging: zerolog, also behind slog for suture
 3. Stores: snapshot store (badger, redis or memory) and the DuckDB result archive
 4. Upstreams: contribution and post clients, each behind a circuit breaker
 5. Ingestion: throttle queue, paginator, pipeline, ingest service
 6. Events: embedded NATS server and publisher when NATS_ENABLED=true
 7. HTTP: chi router, then the supervisor tree

SIGINT or SIGTERM cancels the root context. In-flight runs stop, the tree
shuts down within SUPERVISOR_SHUTDOWN_TIMEOUT, and the stores are closed.

# Configuration

Frequently used environment variables:

	CONTRIBUTIONS_URL   contribution history API
	POSTS_URL           social post API
	THROTTLE_MAX_REQUESTS, THROTTLE_WINDOW
	SNAPSHOT_BACKEND    badger (default), redis or memory
	REDIS_URL           used when SNAPSHOT_BACKEND=redis
	DUCKDB_PATH         result archive; empty keeps results in memory
	NATS_ENABLED, NATS_EMBEDDED, NATS_URL
	HTTP_PORT           default 3857
	CORS_ORIGINS        comma separated; "*" allows any origin

# Build Tags

	go build ./cmd/server             websocket feed only
	go build -tags nats ./cmd/server  NATS JetStream events
*/
package main
