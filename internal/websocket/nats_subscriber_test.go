// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

//go:build nats

package websocket

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/cadence/internal/events"
)

// mockNATSHandler implements NATSMessageHandler for testing.
type mockNATSHandler struct {
	mu       sync.Mutex
	messages chan []byte
	subject  string
	closed   bool
}

func newMockNATSHandler() *mockNATSHandler {
	return &mockNATSHandler{messages: make(chan []byte, 16)}
}

func (m *mockNATSHandler) Subscribe(_ context.Context, subject string) (<-chan []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subject = subject
	return m.messages, nil
}

func (m *mockNATSHandler) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.messages)
	}
	return nil
}

func (m *mockNATSHandler) Subject() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subject
}

func TestNATSSubscriber_RelaysRunCompleted(t *testing.T) {
	hub := startHub(t)
	feed := testClient(hub, 4)
	hub.Register <- feed
	eventually(t, func() bool { return hub.GetClientCount() == 1 }, "feed client registered")

	handler := newMockNATSHandler()
	sub := NewNATSSubscriber(hub, handler, "")
	if err := sub.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer sub.Stop()

	if handler.Subject() != events.DefaultSubject {
		t.Errorf("subscribed to %q, want %q", handler.Subject(), events.DefaultSubject)
	}

	handler.messages <- []byte("not json")
	data, err := events.NewRunCompleted("run00007", "octo:octo").Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	handler.messages <- data

	select {
	case msg := <-feed.send:
		event, ok := msg.Data.(*events.RunCompleted)
		if msg.Type != MessageTypeRunCompleted || !ok || event.RunID != "run00007" {
			t.Errorf("message = %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run event not relayed")
	}
}

func TestNATSSubscriber_StartIdempotent(t *testing.T) {
	hub := NewHub()
	handler := newMockNATSHandler()
	sub := NewNATSSubscriber(hub, handler, "custom.subject")

	for i := 0; i < 3; i++ {
		if err := sub.Start(context.Background()); err != nil {
			t.Errorf("Start() call %d error = %v", i+1, err)
		}
	}
	sub.Stop()
	sub.Stop()

	if handler.Subject() != "custom.subject" {
		t.Errorf("subject = %q", handler.Subject())
	}
}

func TestNATSSubscriber_ServeStopsOnCancel(t *testing.T) {
	hub := NewHub()
	sub := NewNATSSubscriber(hub, newMockNATSHandler(), "")

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- sub.Serve(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}

	// A supervisor restart must work after a stop.
	ctx2, cancel2 := context.WithCancel(context.Background())
	go func() { errCh <- sub.Serve(ctx2) }()
	time.Sleep(20 * time.Millisecond)
	cancel2()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("second Serve() error = %v", err)
	}
}

type failingHandler struct{}

func (failingHandler) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("no connection")
}

func (failingHandler) Close() error { return nil }

func TestNATSSubscriber_StartError(t *testing.T) {
	sub := NewNATSSubscriber(NewHub(), failingHandler{}, "")
	if err := sub.Start(context.Background()); err == nil {
		t.Fatal("Start() error = nil")
	}
	// Stop after a failed start is a no-op.
	sub.Stop()
}
