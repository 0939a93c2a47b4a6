// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

//go:build nats

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/cadence/internal/logging"
	"github.com/tomtom215/cadence/internal/metrics"
)

// NATSPublisher publishes run events to NATS JetStream through Watermill.
// Publishing is guarded by a circuit breaker so a dead broker costs one
// fast failure per run instead of a publish timeout.
type NATSPublisher struct {
	publisher message.Publisher
	conn      *natsgo.Conn
	breaker   *gobreaker.CircuitBreaker[interface{}]
	subject   string

	mu     sync.RWMutex
	closed bool
}

// NewNATSPublisher connects to cfg.URL, ensures the run stream exists and
// returns a publisher.
func NewNATSPublisher(ctx context.Context, cfg PublisherConfig) (*NATSPublisher, error) {
	cfg = cfg.withDefaults()
	logger := newWatermillLogger()

	natsOpts := []natsgo.Option{
		natsgo.Name("cadence"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := natsgo.Connect(cfg.URL, natsOpts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	if err := ensureStream(ctx, nc, cfg); err != nil {
		nc.Close()
		return nil, err
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: false,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	return &NATSPublisher{
		publisher: pub,
		conn:      nc,
		breaker:   newPublishBreaker(),
		subject:   cfg.Subject,
	}, nil
}

func ensureStream(ctx context.Context, nc *natsgo.Conn, cfg PublisherConfig) error {
	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}
	streamCfg := jetstream.StreamConfig{
		Name:       cfg.Stream,
		Subjects:   []string{cfg.Subject},
		Retention:  jetstream.LimitsPolicy,
		MaxAge:     cfg.MaxAge,
		Storage:    jetstream.FileStorage,
		Discard:    jetstream.DiscardOld,
		Duplicates: 2 * time.Minute,
	}

	_, err = js.Stream(ctx, cfg.Stream)
	switch {
	case err == nil:
		if _, err := js.UpdateStream(ctx, streamCfg); err != nil {
			return fmt.Errorf("update stream %s: %w", cfg.Stream, err)
		}
	case errors.Is(err, jetstream.ErrStreamNotFound):
		if _, err := js.CreateStream(ctx, streamCfg); err != nil {
			return fmt.Errorf("create stream %s: %w", cfg.Stream, err)
		}
	default:
		return fmt.Errorf("check stream %s: %w", cfg.Stream, err)
	}
	return nil
}

func newPublishBreaker() *gobreaker.CircuitBreaker[interface{}] {
	return gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        "nats-publisher",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})
}

// PublishRunCompleted publishes event. The event ID doubles as the
// JetStream deduplication ID.
func (p *NATSPublisher) PublishRunCompleted(ctx context.Context, event *RunCompleted) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return fmt.Errorf("publisher is closed")
	}

	data, err := event.Marshal()
	if err != nil {
		return err
	}
	msg := message.NewMessage(event.EventID, data)
	msg.SetContext(ctx)
	msg.Metadata.Set(natsgo.MsgIdHdr, event.EventID)
	msg.Metadata.Set("run_id", event.RunID)
	msg.Metadata.Set("pair_key", event.PairKey)

	_, err = p.breaker.Execute(func() (interface{}, error) {
		return nil, p.publisher.Publish(p.subject, msg)
	})
	if err != nil {
		metrics.EventsPublished.WithLabelValues("error").Inc()
		return fmt.Errorf("publish run event %s: %w", event.RunID, err)
	}
	metrics.EventsPublished.WithLabelValues("ok").Inc()
	return nil
}

// Subscribe delivers the payload of every message on subject until ctx is
// done, then closes the returned channel. It uses a core NATS subscription,
// so it sees messages published after the call, not the stream history.
func (p *NATSPublisher) Subscribe(ctx context.Context, subject string) (<-chan []byte, error) {
	msgs := make(chan *natsgo.Msg, 64)
	sub, err := p.conn.ChanSubscribe(subject, msgs)
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", subject, err)
	}

	out := make(chan []byte)
	go func() {
		defer close(out)
		defer func() { _ = sub.Unsubscribe() }()
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-msgs:
				select {
				case out <- m.Data:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Connected reports whether the NATS connection is up.
func (p *NATSPublisher) Connected() bool {
	return p.conn != nil && p.conn.IsConnected()
}

// Close shuts down the publisher and its connection.
func (p *NATSPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	err := p.publisher.Close()
	p.conn.Close()
	return err
}

// watermillLogger routes Watermill logs to zerolog.
type watermillLogger struct {
	fields watermill.LogFields
}

func newWatermillLogger() watermill.LoggerAdapter {
	return watermillLogger{fields: watermill.LogFields{"component": "watermill"}}
}

func (l watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	logging.Error().Err(err).Fields(map[string]interface{}(l.fields.Add(fields))).Msg(msg)
}

func (l watermillLogger) Info(msg string, fields watermill.LogFields) {
	logging.Info().Fields(map[string]interface{}(l.fields.Add(fields))).Msg(msg)
}

func (l watermillLogger) Debug(msg string, fields watermill.LogFields) {
	logging.Debug().Fields(map[string]interface{}(l.fields.Add(fields))).Msg(msg)
}

func (l watermillLogger) Trace(msg string, fields watermill.LogFields) {
	logger := logging.Logger()
	logger.Trace().Fields(map[string]interface{}(l.fields.Add(fields))).Msg(msg)
}

func (l watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return watermillLogger{fields: l.fields.Add(fields)}
}
