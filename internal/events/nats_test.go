// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

//go:build nats

package events

import (
	"context"
	"testing"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

func TestNATSPublisherRoundTrip(t *testing.T) {
	srv, err := NewEmbeddedServer(ServerConfig{Host: "127.0.0.1", StoreDir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewEmbeddedServer() error = %v", err)
	}
	defer func() { _ = srv.Shutdown(context.Background()) }()
	if !srv.IsRunning() {
		t.Fatal("embedded server not running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pub, err := NewNATSPublisher(ctx, PublisherConfig{URL: srv.ClientURL()})
	if err != nil {
		t.Fatalf("NewNATSPublisher() error = %v", err)
	}
	defer pub.Close()

	event := NewRunCompleted("run00001", "octo:octo")
	event.Days = 3
	if err := pub.PublishRunCompleted(ctx, event); err != nil {
		t.Fatalf("PublishRunCompleted() error = %v", err)
	}

	nc, err := natsgo.Connect(srv.ClientURL())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer nc.Close()
	js, err := jetstream.New(nc)
	if err != nil {
		t.Fatalf("jetstream.New() error = %v", err)
	}
	stream, err := js.Stream(ctx, DefaultStream)
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	raw, err := stream.GetLastMsgForSubject(ctx, DefaultSubject)
	if err != nil {
		t.Fatalf("GetLastMsgForSubject() error = %v", err)
	}
	got, err := UnmarshalRunCompleted(raw.Data)
	if err != nil {
		t.Fatalf("UnmarshalRunCompleted() error = %v", err)
	}
	if got.RunID != "run00001" || got.Days != 3 {
		t.Errorf("received %+v", got)
	}

	if err := pub.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := pub.PublishRunCompleted(ctx, event); err == nil {
		t.Error("PublishRunCompleted() after Close error = nil")
	}
}

func TestNATSPublisherSubscribe(t *testing.T) {
	srv, err := NewEmbeddedServer(ServerConfig{Host: "127.0.0.1", StoreDir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewEmbeddedServer() error = %v", err)
	}
	defer func() { _ = srv.Shutdown(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pub, err := NewNATSPublisher(ctx, PublisherConfig{URL: srv.ClientURL()})
	if err != nil {
		t.Fatalf("NewNATSPublisher() error = %v", err)
	}
	defer pub.Close()

	subCtx, stop := context.WithCancel(ctx)
	msgs, err := pub.Subscribe(subCtx, DefaultSubject)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if err := pub.conn.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	if err := pub.PublishRunCompleted(ctx, NewRunCompleted("run00002", "a:b")); err != nil {
		t.Fatalf("PublishRunCompleted() error = %v", err)
	}

	select {
	case data := <-msgs:
		got, err := UnmarshalRunCompleted(data)
		if err != nil || got.RunID != "run00002" {
			t.Errorf("received %+v, %v", got, err)
		}
	case <-ctx.Done():
		t.Fatal("no message received")
	}

	stop()
	for range msgs {
	}
}
