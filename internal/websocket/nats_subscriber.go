// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

//go:build nats

package websocket

import (
	"context"
	"sync"

	"github.com/tomtom215/cadence/internal/events"
	"github.com/tomtom215/cadence/internal/logging"
)

// NATSMessageHandler delivers raw messages from a subject.
type NATSMessageHandler interface {
	Subscribe(ctx context.Context, subject string) (<-chan []byte, error)
	Close() error
}

// NATSSubscriber relays run-completed events from NATS to the hub's feed
// clients, so every instance behind a shared broker sees every run.
type NATSSubscriber struct {
	hub     *Hub
	handler NATSMessageHandler
	subject string

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewNATSSubscriber creates a NATS to WebSocket bridge for subject.
func NewNATSSubscriber(hub *Hub, handler NATSMessageHandler, subject string) *NATSSubscriber {
	if subject == "" {
		subject = events.DefaultSubject
	}
	return &NATSSubscriber{
		hub:     hub,
		handler: handler,
		subject: subject,
	}
}

// Start subscribes and begins forwarding. Calling it twice is a no-op.
func (s *NATSSubscriber) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	s.stopCh, s.doneCh = stopCh, doneCh
	s.mu.Unlock()

	messages, err := s.handler.Subscribe(ctx, s.subject)
	if err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return err
	}

	go s.processMessages(ctx, messages, stopCh, doneCh)

	logging.Info().Str("subject", s.subject).Msg("NATS to WebSocket subscriber started")
	return nil
}

// Stop stops forwarding and waits for the relay goroutine to exit.
func (s *NATSSubscriber) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)
	<-doneCh
	logging.Info().Msg("NATS to WebSocket subscriber stopped")
}

// Serve runs the bridge until ctx is canceled. It implements suture.Service.
func (s *NATSSubscriber) Serve(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	doneCh := s.doneCh
	s.mu.Unlock()

	select {
	case <-ctx.Done():
	case <-doneCh:
	}
	s.Stop()
	return ctx.Err()
}

// String implements fmt.Stringer for suture logging.
func (s *NATSSubscriber) String() string {
	return "nats-websocket-bridge"
}

func (s *NATSSubscriber) processMessages(ctx context.Context, messages <-chan []byte, stopCh <-chan struct{}, doneCh chan struct{}) {
	defer close(doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case data, ok := <-messages:
			if !ok {
				return
			}
			s.handleMessage(data)
		}
	}
}

func (s *NATSSubscriber) handleMessage(data []byte) {
	event, err := events.UnmarshalRunCompleted(data)
	if err != nil {
		logging.Warn().Err(err).Msg("failed to unmarshal NATS run event")
		return
	}
	s.hub.BroadcastRunCompleted(event)
}
