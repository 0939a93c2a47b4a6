// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

//go:build nats

package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/tomtom215/cadence/internal/config"
	"github.com/tomtom215/cadence/internal/events"
	"github.com/tomtom215/cadence/internal/logging"
	ws "github.com/tomtom215/cadence/internal/websocket"
)

// eventPublisher is what NATSComponents needs from the publisher.
type eventPublisher interface {
	events.Publisher
	Subscribe(ctx context.Context, subject string) (<-chan []byte, error)
	Connected() bool
}

// embeddedServer is what NATSComponents needs from the embedded server.
type embeddedServer interface {
	Shutdown(ctx context.Context) error
	IsRunning() bool
}

// NATSComponents holds the NATS side of the process: the optional embedded
// server, the run-completed publisher and the bridge that relays published
// events to websocket feed clients.
type NATSComponents struct {
	server    embeddedServer
	publisher eventPublisher
	bridge    *ws.NATSSubscriber
	subject   string

	mu      sync.Mutex
	running bool
}

// InitNATS starts the embedded server when configured and connects the
// publisher. It returns nil components when events are disabled.
func InitNATS(ctx context.Context, cfg *config.Config, hub *ws.Hub) (*NATSComponents, error) {
	if !cfg.Events.Enabled {
		return nil, nil
	}

	comps := &NATSComponents{subject: cfg.Events.Subject}
	url := cfg.Events.URL

	if cfg.Events.Embedded {
		srv, err := events.NewEmbeddedServer(events.ServerConfig{
			Host:     "127.0.0.1",
			StoreDir: cfg.Events.StoreDir,
		})
		if err != nil {
			return nil, fmt.Errorf("start embedded NATS server: %w", err)
		}
		comps.server = srv
		url = srv.ClientURL()
		logging.Info().Str("url", url).Str("store_dir", cfg.Events.StoreDir).Msg("Embedded NATS server started")
	}

	publisher, err := events.NewNATSPublisher(ctx, events.PublisherConfig{
		URL:     url,
		Subject: cfg.Events.Subject,
	})
	if err != nil {
		comps.shutdownServer(ctx)
		return nil, fmt.Errorf("connect event publisher: %w", err)
	}
	comps.publisher = publisher

	if hub != nil {
		comps.bridge = ws.NewNATSSubscriber(hub, publisher, cfg.Events.Subject)
	}

	comps.running = true
	logging.Info().
		Str("url", url).
		Str("subject", cfg.Events.Subject).
		Bool("bridge", comps.bridge != nil).
		Msg("Run-completed events enabled")
	return comps, nil
}

// Publisher returns the publisher handed to the ingest service.
func (c *NATSComponents) Publisher() events.Publisher {
	if c == nil || c.publisher == nil {
		return nil
	}
	return c.publisher
}

// Start is a no-op; InitNATS already started everything. It only fails when
// the components were shut down.
func (c *NATSComponents) Start(context.Context) error {
	if !c.IsRunning() {
		return fmt.Errorf("NATS components already shut down")
	}
	return nil
}

// Ready is the readiness check for the event publisher.
func (c *NATSComponents) Ready(context.Context) error {
	if !c.IsRunning() {
		return fmt.Errorf("NATS components not running")
	}
	if !c.publisher.Connected() {
		return fmt.Errorf("NATS connection down")
	}
	return nil
}

// Shutdown closes the publisher, then stops the embedded server. Safe to
// call more than once and on nil components.
func (c *NATSComponents) Shutdown(ctx context.Context) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	c.mu.Unlock()

	var firstErr error
	if c.publisher != nil {
		if err := c.publisher.Close(); err != nil {
			logging.Warn().Err(err).Msg("Event publisher close failed")
			firstErr = err
		}
	}
	if err := c.shutdownServer(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	logging.Info().Msg("NATS components stopped")
	return firstErr
}

func (c *NATSComponents) shutdownServer(ctx context.Context) error {
	if c.server == nil || !c.server.IsRunning() {
		return nil
	}
	if err := c.server.Shutdown(ctx); err != nil {
		logging.Warn().Err(err).Msg("Embedded NATS server shutdown failed")
		return err
	}
	return nil
}

// IsRunning reports whether the components are up.
func (c *NATSComponents) IsRunning() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
