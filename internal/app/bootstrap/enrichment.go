package bootstrap

import (
	"time"

	appconfig "github.com/wolfman30/move-leads-platform/internal/config"
	"github.com/wolfman30/move-leads-platform/internal/enrichment"
	"github.com/wolfman30/move-leads-platform/internal/jobs"
	"github.com/wolfman30/move-leads-platform/internal/leads"
	"github.com/wolfman30/move-leads-platform/internal/observability/metrics"
	"github.com/wolfman30/move-leads-platform/pkg/logging"
)

// WorkerDeps are the collaborators shared by every enrichment consumer.
type WorkerDeps struct {
	Queue    jobs.Queue
	Repo     leads.Repository
	LLM      enrichment.LLMClient
	Notifier jobs.HighPriorityNotifier
	Metrics  *metrics.LeadMetrics
	Location *time.Location
	Logger   *logging.Logger
}

// BuildWorker assembles the enricher and the job worker around it. Queue may be
// nil for consumers that call Process directly.
func BuildWorker(cfg *appconfig.Config, deps WorkerDeps) *jobs.Worker {
	var enricherOpts []enrichment.Option
	workerOpts := []jobs.WorkerOption{
		jobs.WithWorkerCount(cfg.WorkerCount),
		jobs.WithWriteTimeout(cfg.WriteTimeout),
	}
	if deps.Metrics != nil {
		enricherOpts = append(enricherOpts, enrichment.WithObserver(deps.Metrics))
		workerOpts = append(workerOpts, jobs.WithJobObserver(deps.Metrics))
	}
	if deps.Notifier != nil {
		workerOpts = append(workerOpts, jobs.WithNotifier(deps.Notifier))
	}

	enricher := enrichment.NewEnricher(deps.LLM, cfg.EnrichmentTimeout, deps.Location, deps.Logger, enricherOpts...)
	return jobs.NewWorker(deps.Queue, deps.Repo, enricher, deps.Logger, workerOpts...)
}
