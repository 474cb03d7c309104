package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/wolfman30/move-leads-platform/internal/leads"
	"github.com/wolfman30/move-leads-platform/pkg/logging"
)

type enricherFunc func(ctx context.Context, lead *leads.Lead) (leads.LeadUpdate, error)

func (f enricherFunc) Enrich(ctx context.Context, lead *leads.Lead) (leads.LeadUpdate, error) {
	return f(ctx, lead)
}

type recordingNotifier struct {
	mu    sync.Mutex
	leads []*leads.Lead
}

func (n *recordingNotifier) NotifyHighPriority(_ context.Context, lead *leads.Lead) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.leads = append(n.leads, lead)
	return nil
}

type recordingJobs struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recordingJobs) ObserveEnrichmentJob(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *recordingJobs) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.outcomes) == 0 {
		return ""
	}
	return r.outcomes[len(r.outcomes)-1]
}

func ptr[T any](v T) *T { return &v }

func fullUpdate(priority leads.Priority) leads.LeadUpdate {
	return leads.LeadUpdate{
		AICategory:     ptr("Residential"),
		CategoryReason: ptr("family home"),
		UrgencyScore:   ptr(0.6),
		LeadScore:      ptr(82),
		Priority:       ptr(priority),
		ScoreReasoning: ptr("moving soon"),
		EnrichedAt:     ptr(time.Date(2026, 5, 4, 14, 0, 0, 0, time.UTC)),
	}
}

func seedLead(t *testing.T, repo leads.Repository) *leads.Lead {
	t.Helper()
	lead, err := repo.Create(context.Background(), &leads.Lead{
		Name:       "Jane Doe",
		Email:      "jane@x.com",
		Phone:      "5551234567",
		MovingDate: time.Date(2026, 5, 14, 0, 0, 0, 0, time.UTC),
		Urgency:    leads.UrgencyModerate,
	})
	if err != nil {
		t.Fatalf("seed lead: %v", err)
	}
	return lead
}

func jobBody(t *testing.T, leadID string) string {
	t.Helper()
	_, body, err := encodePayload(kindEnrichLead, leadID, time.Now())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return body
}

func TestWorkerProcess_WritesEnrichmentAndAlerts(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	lead := seedLead(t, repo)
	notifier := &recordingNotifier{}
	observer := &recordingJobs{}
	enricher := enricherFunc(func(context.Context, *leads.Lead) (leads.LeadUpdate, error) {
		return fullUpdate(leads.PriorityHigh), nil
	})
	w := NewWorker(nil, repo, enricher, logging.Discard(), WithNotifier(notifier), WithJobObserver(observer))

	if err := w.Process(context.Background(), jobBody(t, lead.ID)); err != nil {
		t.Fatalf("process: %v", err)
	}

	got, _ := repo.Get(context.Background(), lead.ID)
	if got.LeadScore == nil || *got.LeadScore != 82 || got.AICategory == nil || *got.AICategory != "Residential" {
		t.Fatalf("enrichment not written: %+v", got)
	}
	if got.EnrichmentAttemptedAt == nil {
		t.Fatal("attempt marker should be written with the result")
	}
	if got.Urgency != leads.UrgencyModerate || got.Name != "Jane Doe" {
		t.Fatalf("submitted fields changed: %+v", got)
	}
	if len(notifier.leads) != 1 || notifier.leads[0].Priority == nil || *notifier.leads[0].Priority != leads.PriorityHigh {
		t.Fatalf("expected one high priority alert, got %+v", notifier.leads)
	}
	if observer.last() != OutcomeEnriched {
		t.Fatalf("expected %s outcome, got %v", OutcomeEnriched, observer.outcomes)
	}
}

func TestWorkerProcess_PartialResultIsWritten(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	lead := seedLead(t, repo)
	notifier := &recordingNotifier{}
	observer := &recordingJobs{}
	enricher := enricherFunc(func(context.Context, *leads.Lead) (leads.LeadUpdate, error) {
		return leads.LeadUpdate{LeadScore: ptr(30), Priority: ptr(leads.PriorityLow)}, errors.New("categorize failed")
	})
	w := NewWorker(nil, repo, enricher, logging.Discard(), WithNotifier(notifier), WithJobObserver(observer))

	if err := w.Process(context.Background(), jobBody(t, lead.ID)); err != nil {
		t.Fatalf("enrichment errors must not surface: %v", err)
	}
	got, _ := repo.Get(context.Background(), lead.ID)
	if got.LeadScore == nil || got.AICategory != nil {
		t.Fatalf("expected only scoring fields, got %+v", got)
	}
	if len(notifier.leads) != 0 {
		t.Fatal("low priority lead must not alert")
	}
	if observer.last() != OutcomePartial {
		t.Fatalf("expected partial outcome, got %v", observer.outcomes)
	}
}

func TestWorkerProcess_FailedEnrichmentOnlyMarksAttempt(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	lead := seedLead(t, repo)
	observer := &recordingJobs{}
	calls := 0
	enricher := enricherFunc(func(context.Context, *leads.Lead) (leads.LeadUpdate, error) {
		calls++
		return leads.LeadUpdate{}, errors.New("both failed")
	})
	attemptedAt := time.Date(2026, 5, 4, 14, 5, 0, 0, time.UTC)
	w := NewWorker(nil, repo, enricher, logging.Discard(),
		WithJobObserver(observer),
		WithWorkerClock(func() time.Time { return attemptedAt }))

	if err := w.Process(context.Background(), jobBody(t, lead.ID)); err != nil {
		t.Fatalf("process: %v", err)
	}
	got, _ := repo.Get(context.Background(), lead.ID)
	if got.HasEnrichment() || got.EnrichedAt != nil {
		t.Fatalf("expected no enrichment, got %+v", got)
	}
	if got.EnrichmentAttemptedAt == nil || !got.EnrichmentAttemptedAt.Equal(attemptedAt) {
		t.Fatalf("expected attempt marker %v, got %v", attemptedAt, got.EnrichmentAttemptedAt)
	}
	if observer.last() != OutcomeFailed {
		t.Fatalf("expected failed outcome, got %v", observer.outcomes)
	}

	if err := w.Process(context.Background(), jobBody(t, lead.ID)); err != nil {
		t.Fatalf("redelivered job: %v", err)
	}
	if calls != 1 || observer.last() != OutcomeSkipped {
		t.Fatalf("failed lead must not be enriched again, calls=%d outcomes=%v", calls, observer.outcomes)
	}
}

func TestWorkerProcess_DropsAndSkips(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	enriched := seedLead(t, repo)
	if err := repo.UpdateFields(context.Background(), enriched.ID, fullUpdate(leads.PriorityMedium)); err != nil {
		t.Fatalf("seed enrichment: %v", err)
	}
	calls := 0
	enricher := enricherFunc(func(context.Context, *leads.Lead) (leads.LeadUpdate, error) {
		calls++
		return fullUpdate(leads.PriorityHigh), nil
	})
	observer := &recordingJobs{}
	w := NewWorker(nil, repo, enricher, logging.Discard(), WithJobObserver(observer))

	if err := w.Process(context.Background(), jobBody(t, "missing")); err != nil {
		t.Fatalf("unknown lead should be dropped, got %v", err)
	}
	if observer.last() != OutcomeNotFound {
		t.Fatalf("expected not_found, got %v", observer.outcomes)
	}

	if err := w.Process(context.Background(), jobBody(t, enriched.ID)); err != nil {
		t.Fatalf("already enriched lead: %v", err)
	}
	if observer.last() != OutcomeSkipped || calls != 0 {
		t.Fatalf("expected skip without enrichment, outcomes=%v calls=%d", observer.outcomes, calls)
	}

	if err := w.Process(context.Background(), "{"); !errors.Is(err, ErrBadPayload) {
		t.Fatalf("expected ErrBadPayload, got %v", err)
	}
}

type failingRepo struct {
	leads.Repository
	getErr    error
	updateErr error
}

func (f *failingRepo) Get(ctx context.Context, id string) (*leads.Lead, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.Repository.Get(ctx, id)
}

func (f *failingRepo) UpdateFields(ctx context.Context, id string, update leads.LeadUpdate) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	return f.Repository.UpdateFields(ctx, id, update)
}

func TestWorkerProcess_StorageErrors(t *testing.T) {
	mem := leads.NewInMemoryRepository()
	lead := seedLead(t, mem)
	enricher := enricherFunc(func(context.Context, *leads.Lead) (leads.LeadUpdate, error) {
		return fullUpdate(leads.PriorityHigh), nil
	})

	readFail := &failingRepo{Repository: mem, getErr: errors.New("connection reset")}
	if err := NewWorker(nil, readFail, enricher, logging.Discard()).Process(context.Background(), jobBody(t, lead.ID)); err == nil {
		t.Fatal("expected load error so the job is redelivered")
	}

	notifier := &recordingNotifier{}
	observer := &recordingJobs{}
	writeFail := &failingRepo{Repository: mem, updateErr: errors.New("write timeout")}
	w := NewWorker(nil, writeFail, enricher, logging.Discard(), WithNotifier(notifier), WithJobObserver(observer))
	if err := w.Process(context.Background(), jobBody(t, lead.ID)); err != nil {
		t.Fatalf("write failures are logged only, got %v", err)
	}
	if observer.last() != OutcomeWriteFailed || len(notifier.leads) != 0 {
		t.Fatalf("expected write_failed and no alert, outcomes=%v alerts=%d", observer.outcomes, len(notifier.leads))
	}
}

func TestWorkerProcess_RecoversPanic(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	lead := seedLead(t, repo)
	observer := &recordingJobs{}
	enricher := enricherFunc(func(context.Context, *leads.Lead) (leads.LeadUpdate, error) {
		panic("nil map")
	})
	w := NewWorker(nil, repo, enricher, logging.Discard(), WithJobObserver(observer))

	if err := w.Process(context.Background(), jobBody(t, lead.ID)); err == nil {
		t.Fatal("expected panic to surface as an error")
	}
	if observer.last() != OutcomePanic {
		t.Fatalf("expected panic outcome, got %v", observer.outcomes)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWorker_ConsumesPublishedJobs(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	lead := seedLead(t, repo)
	queue := NewMemoryQueue(8)
	enricher := enricherFunc(func(context.Context, *leads.Lead) (leads.LeadUpdate, error) {
		return fullUpdate(leads.PriorityMedium), nil
	})
	w := NewWorker(queue, repo, enricher, logging.Discard(), WithWorkerCount(2), WithReceiveWaitSeconds(1))

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	if err := NewPublisher(queue, logging.Discard()).EnqueueEnrichment(context.Background(), lead.ID); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitFor(t, func() bool {
		got, _ := repo.Get(context.Background(), lead.ID)
		return got.LeadScore != nil
	})

	cancel()
	w.Wait()
}

func TestWorker_InFlightJobFinishesAfterShutdown(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	lead := seedLead(t, repo)
	queue := NewMemoryQueue(8)
	started := make(chan struct{})
	release := make(chan struct{})
	enricher := enricherFunc(func(ctx context.Context, _ *leads.Lead) (leads.LeadUpdate, error) {
		close(started)
		<-release
		if ctx.Err() != nil {
			return leads.LeadUpdate{}, ctx.Err()
		}
		return fullUpdate(leads.PriorityLow), nil
	})
	w := NewWorker(queue, repo, enricher, logging.Discard(), WithWorkerCount(1), WithReceiveWaitSeconds(1))

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	if err := NewPublisher(queue, logging.Discard()).EnqueueEnrichment(context.Background(), lead.ID); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	<-started
	cancel()
	close(release)
	w.Wait()

	got, _ := repo.Get(context.Background(), lead.ID)
	if got.LeadScore == nil {
		t.Fatal("in-flight job should complete its write after cancellation")
	}
}

func TestWorker_ShutdownLeavesRestOfBatch(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	queue := NewMemoryQueue(8)
	var ids []string
	for i := 0; i < 3; i++ {
		lead := seedLead(t, repo)
		ids = append(ids, lead.ID)
		if err := NewPublisher(queue, logging.Discard()).EnqueueEnrichment(context.Background(), lead.ID); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	var mu sync.Mutex
	calls := 0
	started := make(chan struct{})
	release := make(chan struct{})
	enricher := enricherFunc(func(context.Context, *leads.Lead) (leads.LeadUpdate, error) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			close(started)
			<-release
		}
		return fullUpdate(leads.PriorityLow), nil
	})
	w := NewWorker(queue, repo, enricher, logging.Discard(), WithWorkerCount(1), WithReceiveBatchSize(5), WithReceiveWaitSeconds(1))

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	<-started
	cancel()
	close(release)
	w.Wait()

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected only the running job to finish, got %d enrichments", calls)
	}
	enriched := 0
	for _, id := range ids {
		got, _ := repo.Get(context.Background(), id)
		if got.EnrichmentAttempted() {
			enriched++
		}
	}
	if enriched != 1 {
		t.Fatalf("expected one lead processed, got %d", enriched)
	}
}
