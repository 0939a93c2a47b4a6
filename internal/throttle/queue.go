// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

// Package throttle implements the shared rate-limited execution queue that
// every post-page request goes through.
//
// The queue admits at most MaxRequests tasks per fixed Window. Tasks that
// cannot be admitted wait in FIFO order and are released by DrainDue, which
// the Serve loop calls whenever the current window has elapsed. Admitted
// tasks start in their own goroutine; their result is delivered through the
// Pending returned by Schedule.
//
// The queue has no priorities, no cancellation of queued tasks and no
// per-task timeout. A task that never returns holds its Pending forever but
// does not block the queue.
package throttle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/cadence/internal/logging"
	"github.com/tomtom215/cadence/internal/metrics"
)

// Clock abstracts time so tests can drive the queue deterministically.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// RealClock is the wall clock.
type RealClock struct{}

// Now returns time.Now().
func (RealClock) Now() time.Time { return time.Now() }

// After returns time.After(d).
func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Config controls admission.
type Config struct {
	// MaxRequests is the number of tasks admitted per window.
	MaxRequests int

	// Window is the length of one admission window.
	Window time.Duration

	// EvenlySpaced admits one task every Window/MaxRequests instead of
	// bursts of MaxRequests at the start of each window.
	EvenlySpaced bool

	// StartDelay holds back every task until this long after New.
	StartDelay time.Duration

	// OnThrottle is called with the new queue length each time a task has
	// to wait. It runs on the caller's goroutine and must not block.
	OnThrottle func(queueLen int)
}

// Task is a unit of work run by the queue.
type Task func() (interface{}, error)

// Scheduler is the part of Queue that callers depend on.
type Scheduler interface {
	Schedule(task Task) *Pending
}

// ErrTaskPanicked is returned by Pending.Wait when the task panicked.
var ErrTaskPanicked = errors.New("throttled task panicked")

// Pending is the eventual result of a scheduled task.
type Pending struct {
	task  Task
	done  chan struct{}
	value interface{}
	err   error
}

// Done is closed once the task has returned.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the task returns or ctx is done. Giving up on ctx does
// not stop the task.
func (p *Pending) Wait(ctx context.Context) (interface{}, error) {
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pending) run() {
	defer close(p.done)
	defer func() {
		if r := recover(); r != nil {
			p.err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()
	p.value, p.err = p.task()
}

// Queue is a fixed-window rate-limited FIFO executor. It is safe for
// concurrent use.
type Queue struct {
	limit      int
	window     time.Duration
	onThrottle func(int)
	clock      Clock
	logger     zerolog.Logger

	mu          sync.Mutex
	notBefore   time.Time
	windowStart time.Time
	admitted    int
	waiting     []*Pending

	wake chan struct{}
}

// New creates a queue. A nil clock means RealClock.
func New(cfg Config, clock Clock) (*Queue, error) {
	if cfg.MaxRequests <= 0 {
		return nil, fmt.Errorf("throttle: MaxRequests must be positive, got %d", cfg.MaxRequests)
	}
	if cfg.Window <= 0 {
		return nil, fmt.Errorf("throttle: Window must be positive, got %s", cfg.Window)
	}
	if clock == nil {
		clock = RealClock{}
	}

	limit, window := cfg.MaxRequests, cfg.Window
	if cfg.EvenlySpaced {
		window /= time.Duration(limit)
		limit = 1
	}

	now := clock.Now()
	return &Queue{
		limit:       limit,
		window:      window,
		onThrottle:  cfg.OnThrottle,
		clock:       clock,
		logger:      logging.WithComponent("throttle"),
		notBefore:   now.Add(cfg.StartDelay),
		windowStart: now.Add(cfg.StartDelay).Add(-window),
		wake:        make(chan struct{}, 1),
	}, nil
}

// Schedule submits task and never blocks. The task starts immediately when
// nothing is waiting and the current window has room; otherwise it joins the
// back of the wait queue.
func (q *Queue) Schedule(task Task) *Pending {
	p := &Pending{task: task, done: make(chan struct{})}
	now := q.clock.Now()

	q.mu.Lock()
	if len(q.waiting) == 0 && q.admitLocked(now) {
		q.mu.Unlock()
		metrics.ThrottleAdmitted.WithLabelValues("immediate").Inc()
		go p.run()
		return p
	}
	q.waiting = append(q.waiting, p)
	queued := len(q.waiting)
	q.mu.Unlock()

	metrics.ThrottleQueueLength.Set(float64(queued))
	q.logger.Debug().Int("queue_len", queued).Msg("Task throttled")
	if q.onThrottle != nil {
		q.onThrottle(queued)
	}

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return p
}

// admitLocked starts a new window when the current one has elapsed and
// takes one slot from it. Must be called with mu held.
func (q *Queue) admitLocked(now time.Time) bool {
	if now.Before(q.notBefore) {
		return false
	}
	if now.Sub(q.windowStart) >= q.window {
		q.windowStart = now
		q.admitted = 0
	}
	if q.admitted < q.limit {
		q.admitted++
		return true
	}
	return false
}

// DrainDue releases as many waiting tasks as the current window allows, in
// FIFO order. It returns how long to wait before calling it again, or zero
// when nothing is left waiting. Calling it before the window has elapsed
// admits nothing and returns the remaining time.
func (q *Queue) DrainDue() time.Duration {
	now := q.clock.Now()

	q.mu.Lock()
	if len(q.waiting) == 0 {
		q.mu.Unlock()
		return 0
	}
	if now.Before(q.notBefore) {
		q.mu.Unlock()
		return q.notBefore.Sub(now)
	}
	if now.Sub(q.windowStart) >= q.window {
		q.windowStart = now
		q.admitted = 0
	}

	n := q.limit - q.admitted
	if n > len(q.waiting) {
		n = len(q.waiting)
	}
	if n <= 0 {
		next := q.windowStart.Add(q.window).Sub(now)
		q.mu.Unlock()
		return next
	}

	batch := make([]*Pending, n)
	copy(batch, q.waiting[:n])
	q.waiting = append(q.waiting[:0], q.waiting[n:]...)
	q.admitted += n

	var next time.Duration
	if len(q.waiting) > 0 {
		next = q.windowStart.Add(q.window).Sub(now)
	}
	remaining := len(q.waiting)
	q.mu.Unlock()

	metrics.ThrottleQueueLength.Set(float64(remaining))
	metrics.ThrottleAdmitted.WithLabelValues("drained").Add(float64(n))
	for _, p := range batch {
		go p.run()
	}
	return next
}

// Len returns the number of waiting tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}

// Serve runs the drain timer until ctx is done. The timer is armed only
// while tasks are waiting and re-armed from the remaining time DrainDue
// reports, so an early wake-up corrects itself.
func (q *Queue) Serve(ctx context.Context) error {
	q.logger.Info().
		Int("max_requests", q.limit).
		Dur("window", q.window).
		Msg("Throttle queue started")

	for {
		next := q.DrainDue()
		if next == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-q.wake:
				continue
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.clock.After(next):
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (q *Queue) String() string {
	return "throttle-queue"
}

// Do schedules fn on s and waits for its result.
func Do[T any](ctx context.Context, s Scheduler, fn func() (T, error)) (T, error) {
	var zero T
	v, err := s.Schedule(func() (interface{}, error) { return fn() }).Wait(ctx)
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok && v != nil {
		return zero, fmt.Errorf("throttle: unexpected result type %T", v)
	}
	return out, nil
}
