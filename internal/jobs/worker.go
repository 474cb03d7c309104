package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wolfman30/move-leads-platform/internal/leads"
	"github.com/wolfman30/move-leads-platform/pkg/logging"
)

// LeadEnricher produces the enrichment update for a stored lead.
type LeadEnricher interface {
	Enrich(ctx context.Context, lead *leads.Lead) (leads.LeadUpdate, error)
}

// HighPriorityNotifier is told about leads whose writeback set priority to high.
type HighPriorityNotifier interface {
	NotifyHighPriority(ctx context.Context, lead *leads.Lead) error
}

// JobObserver records the outcome of each processed job.
type JobObserver interface {
	ObserveEnrichmentJob(outcome string, duration time.Duration)
}

// Job outcomes reported to the JobObserver.
const (
	OutcomeEnriched    = "enriched"
	OutcomePartial     = "partial"
	OutcomeFailed      = "failed"
	OutcomeSkipped     = "skipped"
	OutcomeNotFound    = "not_found"
	OutcomeWriteFailed = "write_failed"
	OutcomeBadPayload  = "bad_payload"
	OutcomeError       = "error"
	OutcomePanic       = "panic"
)

const (
	defaultWorkerCount  = 2
	defaultWaitSeconds  = 2
	defaultBatchSize    = 5
	maxWaitSeconds      = 20
	maxReceiveBatchSize = 10
	defaultWriteTimeout = 10 * time.Second
	deleteTimeout       = 5 * time.Second
)

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	writeTimeout     time.Duration
	notifier         HighPriorityNotifier
	observer         JobObserver
	now              func() time.Time
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait used on Receive.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages a single Receive may return.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// WithWriteTimeout bounds the enrichment writeback.
func WithWriteTimeout(d time.Duration) WorkerOption {
	return func(cfg *workerConfig) {
		if d > 0 {
			cfg.writeTimeout = d
		}
	}
}

// WithNotifier wires the high-priority alert.
func WithNotifier(n HighPriorityNotifier) WorkerOption {
	return func(cfg *workerConfig) { cfg.notifier = n }
}

// WithJobObserver wires job outcome metrics.
func WithJobObserver(o JobObserver) WorkerOption {
	return func(cfg *workerConfig) { cfg.observer = o }
}

// WithWorkerClock overrides the clock used for the attempt marker.
func WithWorkerClock(now func() time.Time) WorkerOption {
	return func(cfg *workerConfig) {
		if now != nil {
			cfg.now = now
		}
	}
}

// Worker consumes enrichment jobs, runs the enricher and writes the result back.
type Worker struct {
	queue    Queue
	repo     leads.Repository
	enricher LeadEnricher
	logger   *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

// NewWorker constructs a queue consumer. queue may be nil when the worker is only
// driven through Process (the Lambda consumer).
func NewWorker(queue Queue, repo leads.Repository, enricher LeadEnricher, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if repo == nil {
		panic("jobs: repository cannot be nil")
	}
	if enricher == nil {
		panic("jobs: enricher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
		writeTimeout:     defaultWriteTimeout,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Worker{
		queue:    queue,
		repo:     repo,
		enricher: enricher,
		logger:   logger,
		cfg:      cfg,
	}
}

// Start launches worker goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	if w.queue == nil {
		panic("jobs: worker started without a queue")
	}
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit. A job already running when ctx was
// cancelled runs to completion first; the rest of its batch is not started.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("enrichment worker started", "worker_id", workerID)

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("enrichment worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to receive enrichment jobs", "error", err, "worker_id", workerID)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for i, msg := range messages {
			if ctx.Err() != nil {
				w.logger.Info("shutdown started, leaving received jobs unprocessed",
					"worker_id", workerID, "skipped", len(messages)-i)
				return
			}
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg Message) {
	// Received jobs finish even when shutdown starts mid-flight.
	jobCtx := context.WithoutCancel(ctx)
	if err := w.Process(jobCtx, msg.Body); err != nil && !errors.Is(err, ErrBadPayload) {
		w.logger.Error("enrichment job failed, leaving for redelivery", "error", err, "msg_id", msg.ID)
		return
	}
	w.deleteMessage(jobCtx, msg.ReceiptHandle)
}

// Process runs one job body. A nil error means the message is done with, including
// jobs that were dropped (unknown lead) or whose enrichment failed. A non-nil error
// means the job may succeed if redelivered; ErrBadPayload never will.
func (w *Worker) Process(ctx context.Context, body string) (err error) {
	start := time.Now()
	outcome := OutcomeError
	defer func() {
		if r := recover(); r != nil {
			outcome = OutcomePanic
			err = fmt.Errorf("jobs: enrichment job panicked: %v", r)
			w.logger.Error("enrichment job panicked", "panic", r)
		}
		if w.cfg.observer != nil {
			w.cfg.observer.ObserveEnrichmentJob(outcome, time.Since(start))
		}
	}()

	payload, err := decodePayload(body)
	if err != nil {
		outcome = OutcomeBadPayload
		w.logger.Error("failed to decode enrichment job", "error", err)
		return err
	}
	logger := w.logger.With("job_id", payload.ID, "lead_id", payload.LeadID)

	lead, err := w.repo.Get(ctx, payload.LeadID)
	if errors.Is(err, leads.ErrLeadNotFound) {
		outcome = OutcomeNotFound
		logger.Warn("enrichment job for unknown lead dropped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("jobs: load lead: %w", err)
	}
	if lead.EnrichmentAttempted() {
		outcome = OutcomeSkipped
		logger.Debug("lead enrichment already attempted")
		return nil
	}

	update, enrichErr := w.enricher.Enrich(ctx, lead)
	failed := update.IsEmpty()
	if enrichErr != nil {
		logger.Warn("lead enrichment failed", "error", enrichErr, "partial", !failed)
	}

	// The marker goes out with the result so a failed lead is never picked up again.
	attemptedAt := w.cfg.now().UTC()
	update.EnrichmentAttemptedAt = &attemptedAt

	writeCtx, cancel := context.WithTimeout(ctx, w.cfg.writeTimeout)
	defer cancel()
	if err := w.repo.UpdateFields(writeCtx, lead.ID, update); err != nil {
		outcome = OutcomeWriteFailed
		logger.Error("failed to write enrichment", "error", err)
		return nil
	}
	if failed {
		outcome = OutcomeFailed
		return nil
	}

	outcome = OutcomeEnriched
	if enrichErr != nil {
		outcome = OutcomePartial
	}
	logger.Info("lead enriched", "outcome", outcome)

	if update.Priority != nil && *update.Priority == leads.PriorityHigh && w.cfg.notifier != nil {
		update.Apply(lead)
		notifyCtx, cancelNotify := context.WithTimeout(ctx, w.cfg.writeTimeout)
		defer cancelNotify()
		if err := w.cfg.notifier.NotifyHighPriority(notifyCtx, lead); err != nil {
			logger.Warn("high priority alert failed", "error", err)
		}
	}
	return nil
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if receiptHandle == "" {
		return
	}
	deleteCtx, cancel := context.WithTimeout(ctx, deleteTimeout)
	defer cancel()
	if err := w.queue.Delete(deleteCtx, receiptHandle); err != nil {
		w.logger.Error("failed to delete enrichment job", "error", err)
	}
}
