package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/move-leads-platform/cmd/mainconfig"
	"github.com/wolfman30/move-leads-platform/internal/api/router"
	"github.com/wolfman30/move-leads-platform/internal/app/bootstrap"
	appconfig "github.com/wolfman30/move-leads-platform/internal/config"
	"github.com/wolfman30/move-leads-platform/internal/intake"
	"github.com/wolfman30/move-leads-platform/internal/jobs"
	"github.com/wolfman30/move-leads-platform/internal/leads"
	"github.com/wolfman30/move-leads-platform/internal/observability/metrics"
	"github.com/wolfman30/move-leads-platform/internal/sweeper"
	"github.com/wolfman30/move-leads-platform/pkg/logging"
)

const (
	shutdownTimeout = 30 * time.Second
	drainMargin     = 5 * time.Second
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
	}

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	loc := cfg.Location()
	logger.Info("starting move-leads API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"timezone", loc.String(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	storage, err := bootstrap.BuildRepository(ctx, cfg, awsCfg, logger)
	if err != nil {
		logger.Error("failed to initialize lead storage", "error", err)
		os.Exit(1)
	}
	defer storage.Close()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	metricsHandler, leadMetrics := setupMetrics()

	scheduler, worker, closeLLM := setupEnrichment(ctx, cfg, awsCfg, storage.Repo, leadMetrics, logger)
	defer closeLLM()

	pipeline := intake.NewPipeline(storage.Repo, scheduler, loc, logger, intake.WithObserver(leadMetrics))
	archiver := bootstrap.BuildArchiver(cfg, awsCfg, logger)

	sweep, err := setupSweeper(cfg, storage.Repo, scheduler, leadMetrics, loc, logger)
	if err != nil {
		logger.Error("failed to schedule sweeper", "error", err)
		os.Exit(1)
	}
	if sweep != nil {
		sweep.Start()
	}

	if cfg.AdminJWTSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET not set; admin endpoints will reject every request")
	}

	handler := router.New(&router.Config{
		Logger:             logger,
		IntakeHandler:      intake.NewHandler(pipeline, logger),
		LeadsHandler:       leads.NewHandler(storage.Repo, archiver, loc, logger),
		SubmitLimiter:      bootstrap.BuildSubmitLimiter(ctx, cfg, redisClient, logger),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if sweep != nil {
		sweep.Stop(shutdownCtx)
	}
	waitForInlineWorker(worker, workerDrainWindow(cfg), logger)

	logger.Info("server stopped")
}

func setupMetrics() (http.Handler, *metrics.LeadMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	leadMetrics := metrics.NewLeadMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), leadMetrics
}

// setupEnrichment returns the scheduler used by intake and, when the in-memory
// queue is selected, the in-process worker consuming it. Both are nil when no
// model provider is configured; leads are then stored without enrichment. The
// returned func releases the model client and must run after the worker drains.
func setupEnrichment(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, repo leads.Repository, m *metrics.LeadMetrics, logger *logging.Logger) (intake.EnrichmentScheduler, *jobs.Worker, func()) {
	noop := func() {}
	llm, err := bootstrap.BuildLLMClient(ctx, cfg, awsCfg, logger)
	if err != nil {
		if errors.Is(err, bootstrap.ErrLLMNotConfigured) {
			logger.Warn("enrichment disabled: no llm provider configured")
		} else {
			logger.Error("enrichment disabled", "error", err)
		}
		return nil, nil, noop
	}

	queue, memoryQueue, err := bootstrap.BuildQueue(cfg, awsCfg)
	if err != nil {
		bootstrap.CloseLLMClient(llm, logger)
		logger.Error("enrichment disabled", "error", err)
		return nil, nil, noop
	}
	publisher := jobs.NewPublisher(queue, logger)
	if memoryQueue == nil {
		// The SQS consumer runs elsewhere; this process only publishes.
		bootstrap.CloseLLMClient(llm, logger)
		logger.Info("enrichment jobs published to SQS", "queue_url", cfg.EnrichmentQueueURL)
		return publisher, nil, noop
	}

	email := bootstrap.BuildEmailSender(cfg, awsCfg, logger)
	worker := bootstrap.BuildWorker(cfg, bootstrap.WorkerDeps{
		Queue:    memoryQueue,
		Repo:     repo,
		LLM:      llm,
		Notifier: bootstrap.BuildNotifier(cfg, email, cfg.Location(), logger),
		Metrics:  m,
		Location: cfg.Location(),
		Logger:   logger,
	})
	worker.Start(ctx)
	logger.Info("in-process enrichment worker started", "workers", cfg.WorkerCount)
	return publisher, worker, func() { bootstrap.CloseLLMClient(llm, logger) }
}

func setupSweeper(cfg *appconfig.Config, repo leads.Repository, scheduler intake.EnrichmentScheduler, m *metrics.LeadMetrics, loc *time.Location, logger *logging.Logger) (*sweeper.Sweeper, error) {
	if !cfg.SweeperEnabled {
		return nil, nil
	}
	var publisher sweeper.Publisher
	if scheduler != nil {
		publisher = scheduler
	}
	s := sweeper.New(repo, publisher, loc, logger, sweeper.WithObserver(m))
	if err := s.Schedule(cfg.UrgencyRefreshSchedule, cfg.BackfillSchedule); err != nil {
		return nil, err
	}
	return s, nil
}

// workerDrainWindow covers one running job per worker goroutine: both model calls
// run concurrently under the enrichment timeout, then the write and the alert each
// get the write timeout.
func workerDrainWindow(cfg *appconfig.Config) time.Duration {
	return cfg.EnrichmentTimeout + 2*cfg.WriteTimeout + drainMargin
}

func waitForInlineWorker(worker *jobs.Worker, window time.Duration, logger *logging.Logger) {
	if worker == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		worker.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("enrichment worker stopped")
	case <-time.After(window):
		logger.Warn("enrichment worker did not drain in time; unfinished leads are left to the backfill sweep")
	}
}
