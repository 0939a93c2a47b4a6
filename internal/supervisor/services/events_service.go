// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/thejerf/suture/v4"
)

// EventComponents is the lifecycle of the NATS side of cadence: the
// optional embedded server and the run-completed publisher. They are
// created before the tree starts, because the ingest service needs the
// publisher at construction time.
type EventComponents interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
	IsRunning() bool
}

// EventComponentsService supervises EventComponents.
type EventComponentsService struct {
	components      EventComponents
	shutdownTimeout time.Duration
	name            string
}

// NewEventComponentsService wraps components. shutdownTimeout <= 0 means 10s.
func NewEventComponentsService(components EventComponents, shutdownTimeout time.Duration) *EventComponentsService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &EventComponentsService{
		components:      components,
		shutdownTimeout: shutdownTimeout,
		name:            "event-components",
	}
}

// Serve implements suture.Service.
//
// A failed Start is returned so suture retries it. Once the components
// have been shut down they cannot be revived in place, so a service that
// finds them stopped returns suture.ErrDoNotRestart.
func (s *EventComponentsService) Serve(ctx context.Context) error {
	if err := s.components.Start(ctx); err != nil {
		return fmt.Errorf("event components start failed: %w", err)
	}
	if !s.components.IsRunning() {
		return fmt.Errorf("event components not running: %w", suture.ErrDoNotRestart)
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.components.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("event components shutdown failed: %w", err)
	}
	return ctx.Err()
}

// String implements fmt.Stringer for suture logging.
func (s *EventComponentsService) String() string {
	return s.name
}
