package intake

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/move-leads-platform/internal/leads"
	"github.com/wolfman30/move-leads-platform/pkg/logging"
)

const publishTimeout = 3 * time.Second

// Submission outcomes reported to the SubmissionObserver.
const (
	OutcomeAccepted     = "accepted"
	OutcomeInvalid      = "invalid"
	OutcomeStorageError = "storage_error"
)

var tracer = otel.Tracer("moveleads.internal.intake")

// LeadStore persists new leads.
type LeadStore interface {
	Create(ctx context.Context, lead *leads.Lead) (*leads.Lead, error)
}

// EnrichmentScheduler hands a stored lead to the enrichment workers.
type EnrichmentScheduler interface {
	EnqueueEnrichment(ctx context.Context, leadID string) error
}

// SubmissionObserver records submission outcomes.
type SubmissionObserver interface {
	ObserveSubmission(outcome string)
	ObserveEnqueueFailure()
}

// Result is the structured answer returned to the form.
type Result struct {
	Success     bool              `json:"success"`
	LeadID      string            `json:"leadId,omitempty"`
	Error       string            `json:"error,omitempty"`
	FieldErrors map[string]string `json:"fieldErrors,omitempty"`
	MinEstimate int               `json:"minEstimate,omitempty"`
	MaxEstimate int               `json:"maxEstimate,omitempty"`
}

// Pipeline validates, prices and stores submissions, then schedules enrichment.
type Pipeline struct {
	store     LeadStore
	scheduler EnrichmentScheduler
	observer  SubmissionObserver
	loc       *time.Location
	now       func() time.Time
	logger    *logging.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock overrides the clock used for "today" and consent timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// WithObserver reports submission outcomes to o.
func WithObserver(o SubmissionObserver) Option {
	return func(p *Pipeline) { p.observer = o }
}

// NewPipeline builds the intake pipeline. scheduler may be nil, in which case
// leads are stored without enrichment. loc is the business time zone.
func NewPipeline(store LeadStore, scheduler EnrichmentScheduler, loc *time.Location, logger *logging.Logger, opts ...Option) *Pipeline {
	if store == nil {
		panic("intake: lead store cannot be nil")
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	p := &Pipeline{
		store:     store,
		scheduler: scheduler,
		loc:       loc,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit runs one submission. The returned Result is always populated; the error is
// a *leads.ValidationError or a *leads.StorageError when Success is false. Enrichment
// is only scheduled here and never waited on.
func (p *Pipeline) Submit(ctx context.Context, req leads.SubmitRequest) (Result, error) {
	ctx, span := tracer.Start(ctx, "intake.submit")
	defer span.End()

	now := p.now()
	today := now.In(p.loc)

	sub, err := req.Validate(today)
	if err != nil {
		p.observe(OutcomeInvalid)
		span.SetStatus(codes.Error, "validation failed")
		var verr *leads.ValidationError
		fields := map[string]string{}
		if errors.As(err, &verr) {
			fields = verr.Fields
		}
		return Result{Error: "Invalid form data.", FieldErrors: fields}, err
	}

	est := leads.CalculateEstimate(sub.EstimateInput())
	urgency := leads.ClassifyTimeline(sub.MovingDay, today)

	lead, err := p.store.Create(ctx, sub.ToLead(est, urgency, now))
	if err != nil {
		p.observe(OutcomeStorageError)
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		p.logger.Error("failed to store lead", "error", err)
		return Result{Error: "Failed to submit lead. Please try again."}, err
	}

	span.SetAttributes(
		attribute.String("moveleads.lead_id", lead.ID),
		attribute.String("moveleads.urgency", string(urgency)),
	)
	p.observe(OutcomeAccepted)
	p.logger.Info("lead submitted", "lead_id", lead.ID, "urgency", urgency, "min_estimate", est.MinEstimate, "max_estimate", est.MaxEstimate)

	p.scheduleEnrichment(ctx, lead.ID)

	return Result{
		Success:     true,
		LeadID:      lead.ID,
		MinEstimate: est.MinEstimate,
		MaxEstimate: est.MaxEstimate,
	}, nil
}

// scheduleEnrichment never fails the submission. Leads whose job is lost are picked
// up by the backfill sweeper.
func (p *Pipeline) scheduleEnrichment(ctx context.Context, leadID string) {
	if p.scheduler == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := p.scheduler.EnqueueEnrichment(pubCtx, leadID); err != nil {
		if p.observer != nil {
			p.observer.ObserveEnqueueFailure()
		}
		p.logger.Warn("failed to schedule lead enrichment", "lead_id", leadID, "error", err)
	}
}

func (p *Pipeline) observe(outcome string) {
	if p.observer != nil {
		p.observer.ObserveSubmission(outcome)
	}
}
