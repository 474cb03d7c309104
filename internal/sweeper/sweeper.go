package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wolfman30/move-leads-platform/internal/leads"
	"github.com/wolfman30/move-leads-platform/pkg/logging"
)

// Sweep names reported to the Observer.
const (
	SweepUrgencyRefresh = "urgency_refresh"
	SweepBackfill       = "enrichment_backfill"
)

const (
	// DefaultUrgencySchedule runs shortly after midnight in the business time zone.
	DefaultUrgencySchedule = "5 0 * * *"
	// DefaultBackfillSchedule runs every 10 minutes.
	DefaultBackfillSchedule = "*/10 * * * *"

	backfillMinAge = 15 * time.Minute
	backfillMaxAge = 24 * time.Hour
	runTimeout     = 5 * time.Minute
)

var errStop = errors.New("sweeper: stop iteration")

// Publisher re-queues enrichment for a lead.
type Publisher interface {
	EnqueueEnrichment(ctx context.Context, leadID string) error
}

// Observer records how many leads a sweep touched.
type Observer interface {
	ObserveSweep(sweep string, touched int)
}

// Sweeper runs periodic maintenance over the lead store.
type Sweeper struct {
	repo      leads.Repository
	publisher Publisher
	observer  Observer
	loc       *time.Location
	now       func() time.Time
	logger    *logging.Logger
	cron      *cron.Cron
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithClock overrides the sweeper clock.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// WithObserver reports sweep results to o.
func WithObserver(o Observer) Option {
	return func(s *Sweeper) { s.observer = o }
}

// New builds a Sweeper. publisher may be nil, which disables the backfill sweep.
func New(repo leads.Repository, publisher Publisher, loc *time.Location, logger *logging.Logger, opts ...Option) *Sweeper {
	if repo == nil {
		panic("sweeper: repository cannot be nil")
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Sweeper{
		repo:      repo,
		publisher: publisher,
		loc:       loc,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RefreshUrgency recomputes every lead's urgency bucket against today and writes the
// ones that moved. It returns the number of leads updated.
func (s *Sweeper) RefreshUrgency(ctx context.Context) (int, error) {
	today := s.now().In(s.loc)
	updated, failed := 0, 0

	err := leads.ForEach(ctx, s.repo, func(lead *leads.Lead) error {
		urgency := leads.ClassifyTimeline(lead.MovingDate, today)
		if urgency == lead.Urgency {
			return nil
		}
		if err := s.repo.UpdateFields(ctx, lead.ID, leads.LeadUpdate{Urgency: &urgency}); err != nil {
			failed++
			s.logger.Warn("failed to refresh urgency", "lead_id", lead.ID, "error", err)
			return nil
		}
		updated++
		return nil
	})
	s.report(SweepUrgencyRefresh, updated)
	if err != nil {
		return updated, fmt.Errorf("sweeper: urgency refresh: %w", err)
	}
	s.logger.Info("urgency refresh complete", "updated", updated, "failed", failed)
	return updated, nil
}

// BackfillEnrichment re-queues leads that are old enough that their original job
// should have finished, young enough to still be worth enriching, and whose job
// never ran. Leads whose enrichment failed carry the attempt marker and are left
// alone. It returns the number of jobs published.
func (s *Sweeper) BackfillEnrichment(ctx context.Context) (int, error) {
	if s.publisher == nil {
		return 0, nil
	}
	now := s.now()
	newest := now.Add(-backfillMinAge)
	oldest := now.Add(-backfillMaxAge)
	queued := 0

	err := leads.ForEach(ctx, s.repo, func(lead *leads.Lead) error {
		if lead.CreatedAt.After(newest) {
			return nil
		}
		// Pages are newest first, so everything after this is older still.
		if lead.CreatedAt.Before(oldest) {
			return errStop
		}
		if lead.EnrichmentAttempted() {
			return nil
		}
		if err := s.publisher.EnqueueEnrichment(ctx, lead.ID); err != nil {
			return fmt.Errorf("enqueue %s: %w", lead.ID, err)
		}
		queued++
		return nil
	})
	s.report(SweepBackfill, queued)
	if err != nil && !errors.Is(err, errStop) {
		return queued, fmt.Errorf("sweeper: enrichment backfill: %w", err)
	}
	if queued > 0 {
		s.logger.Info("re-queued unenriched leads", "count", queued)
	}
	return queued, nil
}

// Schedule registers both sweeps on a cron scheduler in the business time zone.
// An empty spec disables that sweep.
func (s *Sweeper) Schedule(urgencySpec, backfillSpec string) error {
	logger := cronLogger{s.logger}
	c := cron.New(
		cron.WithLocation(s.loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger)),
	)
	if urgencySpec != "" {
		if _, err := c.AddFunc(urgencySpec, s.job(SweepUrgencyRefresh, s.RefreshUrgency)); err != nil {
			return fmt.Errorf("sweeper: invalid urgency schedule %q: %w", urgencySpec, err)
		}
	}
	if backfillSpec != "" && s.publisher != nil {
		if _, err := c.AddFunc(backfillSpec, s.job(SweepBackfill, s.BackfillEnrichment)); err != nil {
			return fmt.Errorf("sweeper: invalid backfill schedule %q: %w", backfillSpec, err)
		}
	}
	s.cron = c
	return nil
}

// Start runs the scheduled sweeps in the background.
func (s *Sweeper) Start() {
	if s.cron != nil {
		s.cron.Start()
	}
}

// Stop stops the scheduler and waits for a running sweep or ctx, whichever is first.
func (s *Sweeper) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Sweeper) job(name string, run func(context.Context) (int, error)) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		if _, err := run(ctx); err != nil {
			s.logger.Error("scheduled sweep failed", "sweep", name, "error", err)
		}
	}
}

// cronLogger sends the scheduler's own messages, including recovered panics, to
// the application logger.
type cronLogger struct {
	logger *logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

func (s *Sweeper) report(sweep string, touched int) {
	if s.observer != nil {
		s.observer.ObserveSweep(sweep, touched)
	}
}
