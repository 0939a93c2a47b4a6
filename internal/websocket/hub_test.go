// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package websocket

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/cadence/internal/broadcast"
	"github.com/tomtom215/cadence/internal/events"
	"github.com/tomtom215/cadence/internal/logging"
	"github.com/tomtom215/cadence/internal/models"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

var _ events.Publisher = (*Hub)(nil)

// startHub runs a hub until the test ends.
func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.Serve(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}

func testClient(hub *Hub, buffer int) *Client {
	return &Client{id: clientIDCounter.Add(1), hub: hub, send: make(chan Message, buffer)}
}

type fakeStream struct {
	ch    chan broadcast.Event[[]models.MergedDayRecord]
	unsub chan struct{}
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		ch:    make(chan broadcast.Event[[]models.MergedDayRecord], 8),
		unsub: make(chan struct{}),
	}
}

func (f *fakeStream) Events() <-chan broadcast.Event[[]models.MergedDayRecord] { return f.ch }

func (f *fakeStream) Unsubscribe() {
	select {
	case <-f.unsub:
	default:
		close(f.unsub)
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := startHub(t)

	a, b := testClient(hub, 4), testClient(hub, 4)
	hub.Register <- a
	hub.Register <- b
	eventually(t, func() bool { return hub.GetClientCount() == 2 }, "two clients registered")

	hub.Unregister <- a
	eventually(t, func() bool { return hub.GetClientCount() == 1 }, "one client left")
	if _, ok := <-a.send; ok {
		t.Error("unregistered client's send channel still open")
	}

	// Unregistering twice must not close the channel again.
	hub.Unregister <- a
	eventually(t, func() bool { return hub.GetClientCount() == 1 }, "count unchanged")
}

func TestHub_BroadcastSkipsStreamClients(t *testing.T) {
	hub := startHub(t)

	feed := testClient(hub, 4)
	stream := testClient(hub, 4)
	stream.stream = newFakeStream()
	hub.Register <- feed
	hub.Register <- stream
	eventually(t, func() bool { return hub.GetClientCount() == 2 }, "clients registered")

	event := events.NewRunCompleted("run00001", "octo:octo")
	hub.BroadcastRunCompleted(event)

	select {
	case msg := <-feed.send:
		if msg.Type != MessageTypeRunCompleted {
			t.Errorf("Type = %q, want %q", msg.Type, MessageTypeRunCompleted)
		}
		if got, ok := msg.Data.(*events.RunCompleted); !ok || got.RunID != "run00001" {
			t.Errorf("Data = %#v", msg.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("feed client did not receive the broadcast")
	}

	select {
	case msg := <-stream.send:
		t.Errorf("stream client received broadcast %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_DropsFullClient(t *testing.T) {
	hub := startHub(t)

	slow := testClient(hub, 0)
	hub.Register <- slow
	eventually(t, func() bool { return hub.GetClientCount() == 1 }, "client registered")

	if err := hub.PublishRunCompleted(context.Background(), events.NewRunCompleted("r", "a:b")); err != nil {
		t.Fatalf("PublishRunCompleted() error = %v", err)
	}
	eventually(t, func() bool { return hub.GetClientCount() == 0 }, "full client dropped")
	if _, ok := <-slow.send; ok {
		t.Error("dropped client's send channel still open")
	}
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- hub.Serve(ctx) }()

	clients := []*Client{testClient(hub, 1), testClient(hub, 1)}
	for _, c := range clients {
		hub.Register <- c
	}
	eventually(t, func() bool { return hub.GetClientCount() == 2 }, "clients registered")

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}

	if n := hub.GetClientCount(); n != 0 {
		t.Errorf("GetClientCount() = %d after shutdown, want 0", n)
	}
	for i, c := range clients {
		if _, ok := <-c.send; ok {
			t.Errorf("client %d send channel still open", i)
		}
	}
}

func TestHub_ShutdownOnDeadline(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := hub.RunWithContext(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("RunWithContext() error = %v, want DeadlineExceeded", err)
	}
}

func TestGetShutdownReason(t *testing.T) {
	t.Parallel()

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	if got := getShutdownReason(canceled); got != ShutdownReasonContextCanceled {
		t.Errorf("canceled reason = %q", got)
	}

	expired, cancel2 := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel2()
	if got := getShutdownReason(expired); got != ShutdownReasonContextDeadline {
		t.Errorf("deadline reason = %q", got)
	}
}

func TestMarshalMessage(t *testing.T) {
	t.Parallel()

	data, err := MarshalMessage(Message{
		Type: MessageTypeFinal,
		Data: []models.MergedDayRecord{{Day: "2024-01-01", PostCount: 2, ContributionCount: 3}},
	})
	if err != nil {
		t.Fatalf("MarshalMessage() error = %v", err)
	}
	want := `{"type":"final","data":[{"day":"2024-01-01","posts":2,"contributions":3}]}`
	if got := strings.TrimSpace(string(data)); got != want {
		t.Errorf("MarshalMessage() = %s, want %s", got, want)
	}
}

func TestHubString(t *testing.T) {
	t.Parallel()
	if got := NewHub().String(); got != "websocket-hub" {
		t.Errorf("String() = %q", got)
	}
}
