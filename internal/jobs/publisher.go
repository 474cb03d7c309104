package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/move-leads-platform/pkg/logging"
)

// Publisher enqueues enrichment jobs for asynchronous processing.
type Publisher struct {
	queue  Queue
	now    func() time.Time
	logger *logging.Logger
}

// NewPublisher creates a queue-backed publisher.
func NewPublisher(queue Queue, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("jobs: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{
		queue:  queue,
		now:    time.Now,
		logger: logger,
	}
}

// EnqueueEnrichment publishes a job asking a worker to enrich leadID.
func (p *Publisher) EnqueueEnrichment(ctx context.Context, leadID string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	payload, body, err := encodePayload(kindEnrichLead, leadID, p.now())
	if err != nil {
		return err
	}
	if err := p.queue.Send(ctx, body); err != nil {
		return fmt.Errorf("jobs: failed to enqueue enrichment: %w", err)
	}
	p.logger.Debug("enrichment job enqueued", "job_id", payload.ID, "lead_id", leadID)
	return nil
}
