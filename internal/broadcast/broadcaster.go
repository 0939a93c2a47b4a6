// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

// Package broadcast shares one in-flight computation between every caller
// asking for the same key.
//
// The first Subscribe for a key starts the run; later subscribers attach to
// it and receive every event published after they attached. Each stream ends
// with exactly one final event, after which its channel is closed. The
// registry entry for a key is removed in the same critical section that
// publishes the final event, so nobody can attach to a finished run and the
// next Subscribe starts a fresh one.
//
// Unsubscribing only detaches the caller. Runs execute on the broadcaster's
// own context and are never cancelled by subscribers.
package broadcast

import (
	"context"
	"fmt"
	"sync"

	"github.com/tomtom215/cadence/internal/logging"
	"github.com/tomtom215/cadence/internal/metrics"
)

// DefaultBuffer is the per-subscriber event buffer.
const DefaultBuffer = 16

// Event is one message on a subscription stream.
type Event[P any] struct {
	Data    P
	IsFinal bool
	Err     error
}

// RunFunc computes the value for one key. It calls emit for every
// intermediate result and returns the final one.
type RunFunc[P any] func(ctx context.Context, emit func(P)) (P, error)

// Broadcaster owns the registry of in-flight runs. The zero value is not
// usable; call New.
type Broadcaster[P any] struct {
	ctx    context.Context
	buffer int

	mu   sync.Mutex
	runs map[string]*run[P]
}

type run[P any] struct {
	key  string
	subs map[*Subscription[P]]struct{}
}

// Subscription is one caller's view of a run.
type Subscription[P any] struct {
	b      *Broadcaster[P]
	run    *run[P]
	ch     chan Event[P]
	leader bool
	closed bool // guarded by b.mu
}

// New creates a broadcaster whose runs execute on ctx. A buffer <= 0 means
// DefaultBuffer.
func New[P any](ctx context.Context, buffer int) *Broadcaster[P] {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Broadcaster[P]{
		ctx:    ctx,
		buffer: buffer,
		runs:   make(map[string]*run[P]),
	}
}

// Subscribe attaches to the in-flight run for key, starting one with start
// if none exists.
func (b *Broadcaster[P]) Subscribe(key string, start RunFunc[P]) *Subscription[P] {
	b.mu.Lock()
	r, inFlight := b.runs[key]
	if !inFlight {
		r = &run[P]{key: key, subs: make(map[*Subscription[P]]struct{})}
		b.runs[key] = r
	}
	sub := &Subscription[P]{
		b:      b,
		run:    r,
		ch:     make(chan Event[P], b.buffer),
		leader: !inFlight,
	}
	r.subs[sub] = struct{}{}
	b.mu.Unlock()

	metrics.RunSubscribers.Inc()
	if !inFlight {
		metrics.RunsInFlight.Inc()
		go b.execute(r, start)
	} else {
		logging.Debug().Str("key", key).Msg("Attached to in-flight run")
	}
	return sub
}

func (b *Broadcaster[P]) execute(r *run[P], start RunFunc[P]) {
	defer metrics.RunsInFlight.Dec()

	emit := func(p P) {
		b.publish(r, Event[P]{Data: p})
	}

	result, err := func() (result P, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("run %s panicked: %v", r.key, rec)
			}
		}()
		return start(b.ctx, emit)
	}()

	b.finish(r, Event[P]{Data: result, IsFinal: true, Err: err})
}

func (b *Broadcaster[P]) publish(r *run[P], ev Event[P]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range r.subs {
		offer(sub.ch, ev)
	}
}

func (b *Broadcaster[P]) finish(r *run[P], ev Event[P]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.runs[r.key] == r {
		delete(b.runs, r.key)
	}
	for sub := range r.subs {
		offer(sub.ch, ev)
		close(sub.ch)
		sub.closed = true
		metrics.RunSubscribers.Dec()
	}
	r.subs = nil
}

// offer sends ev without blocking. When the buffer is full the oldest
// buffered event is discarded; progress events are cumulative, so only
// stale state is lost. Must be called with the broadcaster lock held, which
// makes it the only sender.
func offer[P any](ch chan Event[P], ev Event[P]) {
	for {
		select {
		case ch <- ev:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// InFlight reports whether a run for key is in progress.
func (b *Broadcaster[P]) InFlight(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.runs[key]
	return ok
}

// Len returns the number of in-flight runs.
func (b *Broadcaster[P]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.runs)
}

// Events returns the stream. It is closed after the final event or on
// Unsubscribe.
func (s *Subscription[P]) Events() <-chan Event[P] {
	return s.ch
}

// Leader reports whether this subscription started the run.
func (s *Subscription[P]) Leader() bool {
	return s.leader
}

// Unsubscribe detaches from the run without affecting it. Safe to call
// more than once and after the stream has ended.
func (s *Subscription[P]) Unsubscribe() {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if s.closed {
		return
	}
	delete(s.run.subs, s)
	close(s.ch)
	s.closed = true
	metrics.RunSubscribers.Dec()
}

// Wait drains the stream and returns the final event. ok is false if the
// stream was closed by Unsubscribe or ctx ended first.
func (s *Subscription[P]) Wait(ctx context.Context) (final Event[P], ok bool) {
	for {
		select {
		case ev, open := <-s.ch:
			if !open {
				return final, false
			}
			if ev.IsFinal {
				return ev, true
			}
		case <-ctx.Done():
			return final, false
		}
	}
}
