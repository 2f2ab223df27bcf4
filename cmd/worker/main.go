package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"feed-digest/internal/config"
	"feed-digest/internal/infra/annotator"
	"feed-digest/internal/infra/fetcher"
	"feed-digest/internal/infra/scraper"
	workerPkg "feed-digest/internal/infra/worker"
	"feed-digest/internal/observability/logging"
	"feed-digest/internal/observability/tracing"
	"feed-digest/internal/usecase/dedup"
	"feed-digest/internal/usecase/notify"
	"feed-digest/internal/usecase/poll"
	"feed-digest/internal/utils/redact"
	pkgconfig "feed-digest/pkg/config"
)

// shutdownGrace bounds how long main waits for running cron jobs after a signal.
const shutdownGrace = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	workerMetrics := workerPkg.NewWorkerMetrics(nil)

	// Configuration is fail-closed: any invalid key stops startup.
	cfg, err := config.Load()
	if err != nil {
		logger := logging.NewLogger(logging.Options{})
		for _, field := range pkgconfig.InvalidFields(err) {
			workerMetrics.RecordValidationError(field)
		}
		logger.Error("failed to load configuration", slog.Any("error", err))
		return err
	}
	workerMetrics.RecordLoadTimestamp()

	logger := logging.NewLogger(cfg.Log)
	slog.SetDefault(logger)
	logger.Info("configuration loaded",
		slog.Int("sources", len(cfg.Sources)),
		slog.Duration("poll_interval", cfg.PollInterval),
		slog.Duration("freshness_window", cfg.Poll.FreshnessWindow),
		slog.Duration("cycle_timeout", cfg.CycleTimeout),
		slog.String("annotator", cfg.Annotator.Provider),
		slog.Bool("content_fetch", cfg.ContentFetch.Enabled),
		slog.Int("health_port", cfg.HealthPort),
		slog.Int("metrics_port", cfg.MetricsPort))

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		logger.Error("failed to initialize tracing", slog.String("error", redact.Error(err)))
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing shutdown failed", slog.Any("error", err))
		}
	}()

	notifyService := setupNotifyService(cfg, logger)

	pollService, err := setupPollService(cfg, notifyService, logger)
	if err != nil {
		logger.Error("failed to build poll service", slog.String("error", redact.Error(err)))
		return err
	}

	startMetricsServer(ctx, logger, cfg.MetricsPort, notifyService)

	healthAddr := fmt.Sprintf(":%d", cfg.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	scheduler, err := workerPkg.NewScheduler(pollService, workerPkg.SchedulerConfig{
		Interval:     cfg.PollInterval,
		CycleTimeout: cfg.CycleTimeout,
	}, workerMetrics, healthServer, logger)
	if err != nil {
		logger.Error("failed to create scheduler", slog.Any("error", err))
		return err
	}
	if err := scheduler.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", slog.Any("error", err))
		return err
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	// Nothing is marked seen before delivery, so abandoning a cycle here is safe.
	select {
	case <-scheduler.Stop().Done():
		logger.Info("worker stopped")
	case <-time.After(shutdownGrace):
		logger.Warn("worker stopped with cycles still running", slog.Duration("grace", shutdownGrace))
	}
	return nil
}

// setupNotifyService builds the email channel plus any enabled webhook channels.
func setupNotifyService(cfg *config.Config, logger *slog.Logger) notify.Service {
	channels := []notify.Channel{notify.NewEmailChannel(cfg.Email)}
	logger.Info("email channel initialized", slog.Int("recipients", len(cfg.Email.To)))

	if cfg.Slack.Enabled {
		channels = append(channels, notify.NewSlackChannel(cfg.Slack))
		logger.Info("Slack channel initialized", slog.String("status", "enabled"))
	} else {
		logger.Info("Slack channel disabled")
	}

	if cfg.Discord.Enabled {
		channels = append(channels, notify.NewDiscordChannel(cfg.Discord))
		logger.Info("Discord channel initialized", slog.String("status", "enabled"))
	} else {
		logger.Info("Discord channel disabled")
	}

	// Webhooks are best-effort; email alone decides whether items are marked seen.
	return notify.NewService(channels, notify.WithBestEffort("slack", "discord"))
}

// setupPollService wires the tracker, fetchers and annotator into the cycle orchestrator.
func setupPollService(cfg *config.Config, notifyService notify.Service, logger *slog.Logger) (*poll.Service, error) {
	tracker := dedup.NewTracker(dedup.WithLogger(logger))
	feeds := scraper.NewRSSFetcher(createHTTPClient())

	// Assigned only when enabled so the interface stays nil otherwise.
	var content poll.ContentFetcher
	if cfg.ContentFetch.Enabled {
		content = fetcher.NewReadabilityFetcher(cfg.ContentFetch)
		logger.Info("content fetching enabled",
			slog.Int("threshold", cfg.ContentFetch.Threshold),
			slog.Int("parallelism", cfg.ContentFetch.Parallelism),
			slog.Duration("timeout", cfg.ContentFetch.Timeout))
	} else {
		logger.Info("content fetching disabled")
	}

	ann, err := annotator.New(cfg.Annotator)
	if err != nil {
		return nil, fmt.Errorf("create annotator: %w", err)
	}
	logger.Info("annotator initialized",
		slog.String("provider", cfg.Annotator.Provider),
		slog.String("model", cfg.Annotator.Model))

	return poll.NewService(cfg.Poll, cfg.Sources, tracker, feeds, content, ann, notifyService)
}

// createHTTPClient creates the feed HTTP client with connection pooling.
// TLS 1.2+ is enforced. Per-request deadlines come from the caller's context.
func createHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
}
