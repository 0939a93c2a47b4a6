// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

//go:build nats

package main

import (
	"context"
	"errors"
	"testing"

	"github.com/tomtom215/cadence/internal/config"
	"github.com/tomtom215/cadence/internal/events"
)

type fakePublisher struct {
	connected bool
	closed    int
}

func (f *fakePublisher) PublishRunCompleted(context.Context, *events.RunCompleted) error { return nil }
func (f *fakePublisher) Subscribe(context.Context, string) (<-chan []byte, error) {
	return make(chan []byte), nil
}
func (f *fakePublisher) Connected() bool { return f.connected }
func (f *fakePublisher) Close() error {
	f.closed++
	return nil
}

type fakeServer struct {
	running  bool
	shutdown int
	err      error
}

func (f *fakeServer) Shutdown(context.Context) error {
	f.shutdown++
	f.running = false
	return f.err
}
func (f *fakeServer) IsRunning() bool { return f.running }

func TestInitNATS_Disabled(t *testing.T) {
	comps, err := InitNATS(context.Background(), &config.Config{}, nil)
	if err != nil || comps != nil {
		t.Fatalf("InitNATS() = %v, %v; want nil, nil", comps, err)
	}
	if comps.Publisher() != nil {
		t.Error("Publisher() on nil components should be nil")
	}
	if comps.IsRunning() {
		t.Error("nil components report running")
	}
	if err := comps.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() on nil components = %v", err)
	}
}

func TestNATSComponents_Lifecycle(t *testing.T) {
	pub := &fakePublisher{connected: true}
	srv := &fakeServer{running: true}
	comps := &NATSComponents{server: srv, publisher: pub, running: true}
	ctx := context.Background()

	if err := comps.Start(ctx); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	if err := comps.Ready(ctx); err != nil {
		t.Fatalf("Ready() = %v", err)
	}
	if comps.Publisher() == nil {
		t.Fatal("Publisher() = nil")
	}

	pub.connected = false
	if err := comps.Ready(ctx); err == nil {
		t.Error("Ready() succeeded with the connection down")
	}

	if err := comps.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() = %v", err)
	}
	if err := comps.Shutdown(ctx); err != nil {
		t.Fatalf("second Shutdown() = %v", err)
	}
	if pub.closed != 1 || srv.shutdown != 1 {
		t.Errorf("publisher closed %d times, server shut down %d times; want 1 and 1", pub.closed, srv.shutdown)
	}
	if comps.IsRunning() {
		t.Error("IsRunning() after Shutdown")
	}
	if err := comps.Start(ctx); err == nil {
		t.Error("Start() succeeded after Shutdown")
	}
}

func TestNATSComponents_ShutdownReportsServerError(t *testing.T) {
	srv := &fakeServer{running: true, err: errors.New("store busy")}
	comps := &NATSComponents{server: srv, publisher: &fakePublisher{}, running: true}

	if err := comps.Shutdown(context.Background()); !errors.Is(err, srv.err) {
		t.Errorf("Shutdown() = %v, want %v", err, srv.err)
	}
}
