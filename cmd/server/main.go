// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/tomtom215/cadence/internal/api"
	"github.com/tomtom215/cadence/internal/config"
	"github.com/tomtom215/cadence/internal/database"
	"github.com/tomtom215/cadence/internal/events"
	"github.com/tomtom215/cadence/internal/ingest"
	"github.com/tomtom215/cadence/internal/logging"
	"github.com/tomtom215/cadence/internal/paginator"
	"github.com/tomtom215/cadence/internal/snapshot"
	"github.com/tomtom215/cadence/internal/source"
	"github.com/tomtom215/cadence/internal/supervisor"
	"github.com/tomtom215/cadence/internal/supervisor/services"
	"github.com/tomtom215/cadence/internal/throttle"
	ws "github.com/tomtom215/cadence/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})

	logging.Info().
		Str("contributions_url", cfg.Contributions.URL).
		Str("posts_url", cfg.Posts.URL).
		Str("snapshot_backend", cfg.Snapshot.Backend).
		Str("results_path", cfg.Results.Path).
		Bool("events", cfg.Events.Enabled).
		Msg("Starting Cadence with supervisor tree")

	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("CORS allows any origin (CORS_ORIGINS=*); restrict it outside development")
	}

	snapshots, err := snapshot.Open(snapshot.Config{
		Backend:    cfg.Snapshot.Backend,
		Path:       cfg.Snapshot.Path,
		RedisURL:   cfg.Snapshot.RedisURL,
		SyncWrites: cfg.Snapshot.SyncWrites,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open snapshot store")
	}
	defer func() {
		if err := snapshots.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing snapshot store")
		}
	}()

	archive, err := database.OpenArchive(cfg.Results.Path)
	if err != nil {
		// defers do not run after Fatal
		_ = snapshots.Close()
		logging.Fatal().Err(err).Msg("Failed to open result archive")
	}
	defer func() {
		if err := archive.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing result archive")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue, err := throttle.New(throttle.Config{
		MaxRequests:  cfg.Throttle.MaxRequests,
		Window:       cfg.Throttle.Window,
		EvenlySpaced: cfg.Throttle.EvenlySpaced,
		StartDelay:   cfg.Throttle.StartDelay,
		OnThrottle: func(queueLen int) {
			logging.Debug().Int("queue_len", queueLen).Msg("Post request throttled")
		},
	}, nil)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create throttle queue")
	}

	breaker := breakerConfig(cfg.Breaker)
	contributions := source.NewCachedContributions(
		source.NewContributionClient(source.ContributionConfig{
			BaseURL:           cfg.Contributions.URL,
			Token:             cfg.Contributions.Token,
			Timeout:           cfg.Contributions.Timeout,
			RequestsPerSecond: cfg.Contributions.RequestsPerSecond,
			Burst:             cfg.Contributions.Burst,
			Breaker:           breaker,
		}),
		cfg.Contributions.CacheTTL,
	)
	defer contributions.Close()

	posts := source.NewPostClient(source.PostConfig{
		BaseURL: cfg.Posts.URL,
		Token:   cfg.Posts.Token,
		Timeout: cfg.Posts.Timeout,
		Breaker: breaker,
	})

	pag := paginator.New(posts, queue, snapshots, paginator.Config{
		PageSize:      cfg.Posts.PageSize,
		SafetyCeiling: cfg.Paginator.SafetyCeiling,
		SnapshotEvery: cfg.Paginator.SnapshotEvery,
	})

	hub := ws.NewHub()

	natsComps, err := InitNATS(ctx, cfg, hub)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize NATS")
	}

	// Without NATS the hub itself announces completed runs.
	var publisher events.Publisher = hub
	if p := natsComps.Publisher(); p != nil {
		publisher = p
	}

	service := ingest.NewService(ctx, ingest.ServiceConfig{
		Runner:        ingest.NewPipeline(contributions, pag, snapshots),
		Archive:       archive,
		Publisher:     publisher,
		Contributions: contributions,
		Snapshots:     snapshots,
		ResultTTL:     cfg.Results.CacheTTL,
	})
	defer service.Close()

	checks := map[string]api.ReadinessCheck{
		"archive": archive.Ping,
	}
	if natsComps != nil {
		checks["events"] = natsComps.Ready
	}

	handler := api.NewHandler(api.HandlerConfig{
		Service:     service,
		Hub:         hub,
		Checks:      checks,
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	mwConfig := api.DefaultChiMiddlewareConfig()
	mwConfig.CORSAllowedOrigins = cfg.Server.CORSOrigins
	if cfg.Server.RateLimitReqs > 0 {
		mwConfig.RateLimitRequests = cfg.Server.RateLimitReqs
	}
	if cfg.Server.RateLimitWindow > 0 {
		mwConfig.RateLimitWindow = cfg.Server.RateLimitWindow
	}
	router := api.NewRouter(handler, api.NewChiMiddleware(mwConfig))

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfigFrom(cfg.Supervisor))
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddDataService(queue)
	tree.AddMessagingService(hub)
	AddNATSToSupervisor(tree, natsComps, cfg.Supervisor.ShutdownTimeout)

	server := &http.Server{
		Addr:              serverAddr(cfg.Server),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	tree.LogUnstopped()
	logging.Info().Msg("Application stopped gracefully")
}

func breakerConfig(cfg config.BreakerConfig) source.BreakerConfig {
	out := source.DefaultBreakerConfig()
	if cfg.MaxRequests > 0 {
		out.MaxRequests = cfg.MaxRequests
	}
	if cfg.Interval > 0 {
		out.Interval = cfg.Interval
	}
	if cfg.Timeout > 0 {
		out.Timeout = cfg.Timeout
	}
	if cfg.MinRequests > 0 {
		out.MinRequests = cfg.MinRequests
	}
	if cfg.FailureRatio > 0 {
		out.FailureRatio = cfg.FailureRatio
	}
	return out
}

func serverAddr(cfg config.ServerConfig) string {
	return net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
}

