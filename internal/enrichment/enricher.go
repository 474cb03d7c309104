package enrichment

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/move-leads-platform/internal/leads"
	"github.com/wolfman30/move-leads-platform/pkg/logging"
)

// DefaultCallTimeout bounds each model call when none is configured.
const DefaultCallTimeout = 20 * time.Second

var tracer = otel.Tracer("moveleads.internal.enrichment")

// CallObserver records the outcome of each model call.
type CallObserver interface {
	ObserveEnrichmentCall(call, outcome string, duration time.Duration)
}

// Enricher runs the categorization and scoring calls for a lead.
type Enricher struct {
	llm      LLMClient
	timeout  time.Duration
	loc      *time.Location
	now      func() time.Time
	observer CallObserver
	logger   *logging.Logger
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithObserver reports call outcomes to o.
func WithObserver(o CallObserver) Option {
	return func(e *Enricher) { e.observer = o }
}

// WithClock overrides the clock used for timelines and enrichedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Enricher) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEnricher builds an Enricher. loc is the business time zone.
func NewEnricher(llm LLMClient, timeout time.Duration, loc *time.Location, logger *logging.Logger, opts ...Option) *Enricher {
	if llm == nil {
		panic("enrichment: llm client cannot be nil")
	}
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	e := &Enricher{
		llm:     llm,
		timeout: timeout,
		loc:     loc,
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich runs both calls concurrently. Each call has its own timeout and fails on
// its own; the returned update carries whatever succeeded and is empty when both
// failed. The error joins one *Error per failed call.
func (e *Enricher) Enrich(ctx context.Context, lead *leads.Lead) (leads.LeadUpdate, error) {
	ctx, span := tracer.Start(ctx, "enrichment.enrich", trace.WithAttributes(
		attribute.String("moveleads.lead_id", lead.ID),
	))
	defer span.End()

	today := e.now().In(e.loc)
	var (
		update           leads.LeadUpdate
		catErr, scoreErr error
		g                errgroup.Group
	)

	g.Go(func() error {
		cat, err := e.categorize(ctx, NewCategorizeInput(lead))
		if err != nil {
			catErr = &Error{Call: CallCategorize, Err: err}
			return catErr
		}
		update.AICategory = &cat.Category
		update.UrgencyScore = &cat.UrgencyScore
		update.CategoryReason = &cat.Reason
		return nil
	})
	g.Go(func() error {
		score, err := e.score(ctx, NewScoreInput(lead, today))
		if err != nil {
			scoreErr = &Error{Call: CallScore, Err: err}
			return scoreErr
		}
		update.LeadScore = &score.LeadScore
		update.Priority = &score.Priority
		update.ScoreReasoning = &score.Reasoning
		return nil
	})
	_ = g.Wait()

	if !update.IsEmpty() {
		enrichedAt := e.now().UTC()
		update.EnrichedAt = &enrichedAt
	}

	err := errors.Join(catErr, scoreErr)
	if err != nil {
		span.RecordError(err)
		if update.IsEmpty() {
			span.SetStatus(codes.Error, "all enrichment calls failed")
		}
	}
	return update, err
}

func (e *Enricher) categorize(ctx context.Context, in CategorizeInput) (Categorization, error) {
	var out Categorization
	err := e.call(ctx, CallCategorize, in.request(), func(text string) error {
		var err error
		out, err = parseCategorization(text)
		return err
	})
	return out, err
}

func (e *Enricher) score(ctx context.Context, in ScoreInput) (Score, error) {
	var out Score
	err := e.call(ctx, CallScore, in.request(), func(text string) error {
		var err error
		out, err = parseScore(text)
		return err
	})
	return out, err
}

func (e *Enricher) call(ctx context.Context, name string, req LLMRequest, parse func(string) error) error {
	ctx, span := tracer.Start(ctx, "enrichment."+name)
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	outcome := "ok"
	defer func() {
		if e.observer != nil {
			e.observer.ObserveEnrichmentCall(name, outcome, time.Since(start))
		}
	}()

	resp, err := e.llm.Complete(callCtx, req)
	if err != nil {
		outcome = "error"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			outcome = "timeout"
		}
		span.RecordError(err)
		return err
	}
	span.SetAttributes(
		attribute.Int("moveleads.llm.input_tokens", int(resp.Usage.InputTokens)),
		attribute.Int("moveleads.llm.output_tokens", int(resp.Usage.OutputTokens)),
	)
	if err := parse(resp.Text); err != nil {
		outcome = "invalid"
		span.RecordError(err)
		e.logger.Warn("enrichment response rejected", "call", name, "error", err)
		return err
	}
	return nil
}
