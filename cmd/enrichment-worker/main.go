package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/move-leads-platform/cmd/mainconfig"
	"github.com/wolfman30/move-leads-platform/internal/app/bootstrap"
	appconfig "github.com/wolfman30/move-leads-platform/internal/config"
	"github.com/wolfman30/move-leads-platform/internal/observability/metrics"
	"github.com/wolfman30/move-leads-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	loc := cfg.Location()

	if cfg.UseMemoryQueue {
		logger.Error("enrichment worker needs SQS; set USE_MEMORY_QUEUE=false and ENRICHMENT_QUEUE_URL")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsConfig, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	storage, err := bootstrap.BuildRepository(ctx, cfg, awsConfig, logger)
	if err != nil {
		logger.Error("failed to initialize lead storage", "error", err)
		os.Exit(1)
	}
	defer storage.Close()

	llm, err := bootstrap.BuildLLMClient(ctx, cfg, awsConfig, logger)
	if err != nil {
		logger.Error("failed to initialize llm client", "error", err)
		os.Exit(1)
	}
	defer bootstrap.CloseLLMClient(llm, logger)

	queue, _, err := bootstrap.BuildQueue(cfg, awsConfig)
	if err != nil {
		logger.Error("failed to initialize queue", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	leadMetrics := metrics.NewLeadMetrics(reg)
	metricsSrv := &http.Server{Addr: ":" + cfg.Port, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics listener stopped", "error", err)
		}
	}()

	email := bootstrap.BuildEmailSender(cfg, awsConfig, logger)
	worker := bootstrap.BuildWorker(cfg, bootstrap.WorkerDeps{
		Queue:    queue,
		Repo:     storage.Repo,
		LLM:      llm,
		Notifier: bootstrap.BuildNotifier(cfg, email, loc, logger),
		Metrics:  leadMetrics,
		Location: loc,
		Logger:   logger,
	})
	worker.Start(ctx)
	logger.Info("enrichment worker started", "workers", cfg.WorkerCount, "queue_url", cfg.EnrichmentQueueURL)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down enrichment worker...")
	cancel()

	// One running job per goroutine: the model calls, then the write and the alert.
	drain := cfg.EnrichmentTimeout + 2*cfg.WriteTimeout + 5*time.Second
	doneCtx, doneCancel := context.WithTimeout(context.Background(), drain)
	defer doneCancel()
	_ = metricsSrv.Shutdown(doneCtx)

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("enrichment worker stopped")
	case <-doneCtx.Done():
		logger.Error("enrichment worker shutdown timed out", "error", doneCtx.Err())
	}
}
