package leads

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// steppedClock advances every two calls so some leads share a createdAt.
func steppedClock(start time.Time) func() time.Time {
	calls := 0
	return func() time.Time {
		t := start.Add(time.Duration(calls/2) * time.Second)
		calls++
		return t
	}
}

func seedLeads(t *testing.T, repo Repository, n int) []*Lead {
	t.Helper()
	out := make([]*Lead, 0, n)
	for i := 0; i < n; i++ {
		lead, err := repo.Create(context.Background(), &Lead{
			Name:          fmt.Sprintf("Lead %02d", i),
			Email:         fmt.Sprintf("lead%02d@example.com", i),
			Phone:         "5551234567",
			NumberOfRooms: "2",
			Urgency:       UrgencyLow,
		})
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		out = append(out, lead)
	}
	return out
}

func TestInMemoryRepositoryPaging(t *testing.T) {
	repo := NewInMemoryRepository(WithClock(steppedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))))
	seedLeads(t, repo, 25)

	seen := map[string]bool{}
	var ordered []*Lead
	cursor := ""
	pages := 0
	for {
		page, err := repo.ListPage(context.Background(), cursor)
		if err != nil {
			t.Fatalf("list page: %v", err)
		}
		pages++
		if len(page.Leads) > PageSize {
			t.Fatalf("page too large: %d", len(page.Leads))
		}
		for _, lead := range page.Leads {
			if seen[lead.ID] {
				t.Fatalf("lead %s returned twice", lead.ID)
			}
			seen[lead.ID] = true
			ordered = append(ordered, lead)
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	if pages != 3 {
		t.Fatalf("expected 3 pages, got %d", pages)
	}
	if len(seen) != 25 {
		t.Fatalf("expected 25 leads, got %d", len(seen))
	}
	for i := 1; i < len(ordered); i++ {
		if newestFirst(ordered[i-1], ordered[i]) >= 0 {
			t.Fatalf("leads out of order at %d: %v/%s then %v/%s", i,
				ordered[i-1].CreatedAt, ordered[i-1].ID, ordered[i].CreatedAt, ordered[i].ID)
		}
	}
}

func TestInMemoryRepositoryExactPageHasNoCursor(t *testing.T) {
	repo := NewInMemoryRepository()
	seedLeads(t, repo, PageSize)

	page, err := repo.ListPage(context.Background(), "")
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page.Leads) != PageSize || page.NextCursor != "" {
		t.Fatalf("expected full page without cursor, got %d leads cursor %q", len(page.Leads), page.NextCursor)
	}
}

func TestInMemoryRepositoryRejectsBadCursor(t *testing.T) {
	repo := NewInMemoryRepository()
	if _, err := repo.ListPage(context.Background(), "not-a-cursor!"); !errors.Is(err, ErrInvalidCursor) {
		t.Fatalf("expected ErrInvalidCursor, got %v", err)
	}
}

func TestInMemoryRepositoryUpdateFieldsMergesPresentFields(t *testing.T) {
	repo := NewInMemoryRepository()
	lead := seedLeads(t, repo, 1)[0]

	category := "Residential"
	reason := "family home"
	score := 0.7
	if err := repo.UpdateFields(context.Background(), lead.ID, LeadUpdate{
		AICategory:     &category,
		CategoryReason: &reason,
		UrgencyScore:   &score,
	}); err != nil {
		t.Fatalf("update categorization: %v", err)
	}

	leadScore := 82
	priority := PriorityHigh
	if err := repo.UpdateFields(context.Background(), lead.ID, LeadUpdate{
		LeadScore: &leadScore,
		Priority:  &priority,
	}); err != nil {
		t.Fatalf("update scoring: %v", err)
	}

	got, err := repo.Get(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.AICategory == nil || *got.AICategory != category || got.UrgencyScore == nil || *got.UrgencyScore != score {
		t.Fatalf("categorization fields lost: %+v", got)
	}
	if got.LeadScore == nil || *got.LeadScore != 82 || got.Priority == nil || *got.Priority != PriorityHigh {
		t.Fatalf("scoring fields missing: %+v", got)
	}
	if got.ScoreReasoning != nil {
		t.Fatalf("absent field was written: %v", *got.ScoreReasoning)
	}
	if got.Name != lead.Name || got.Urgency != UrgencyLow {
		t.Fatalf("write-once fields changed: %+v", got)
	}
}

func TestInMemoryRepositoryAttemptMarkerOnly(t *testing.T) {
	repo := NewInMemoryRepository()
	lead := seedLeads(t, repo, 1)[0]
	if lead.EnrichmentAttempted() {
		t.Fatal("new lead should not be marked as attempted")
	}

	attempted := time.Date(2026, 5, 4, 12, 30, 0, 0, time.UTC)
	if err := repo.UpdateFields(context.Background(), lead.ID, LeadUpdate{EnrichmentAttemptedAt: &attempted}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := repo.Get(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.HasEnrichment() || got.EnrichedAt != nil {
		t.Fatalf("marker must not look like enrichment: %+v", got)
	}
	if !got.EnrichmentAttempted() || !got.EnrichmentAttemptedAt.Equal(attempted) {
		t.Fatalf("expected attempt marker %v, got %v", attempted, got.EnrichmentAttemptedAt)
	}
}

func TestInMemoryRepositoryUpdateMissingLead(t *testing.T) {
	repo := NewInMemoryRepository()
	score := 10
	err := repo.UpdateFields(context.Background(), "missing", LeadUpdate{LeadScore: &score})
	if !errors.Is(err, ErrLeadNotFound) {
		t.Fatalf("expected ErrLeadNotFound, got %v", err)
	}
}

func TestInMemoryRepositoryReturnsCopies(t *testing.T) {
	repo := NewInMemoryRepository()
	lead := seedLeads(t, repo, 1)[0]
	lead.Name = "mutated"

	got, err := repo.Get(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name == "mutated" {
		t.Fatal("stored lead was mutated through returned pointer")
	}
}

func TestInMemoryRepositoryDeleteAll(t *testing.T) {
	repo := NewInMemoryRepository()
	seedLeads(t, repo, 12)

	n, err := repo.DeleteAll(context.Background())
	if err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if n != 12 {
		t.Fatalf("expected 12 deleted, got %d", n)
	}
	page, err := repo.ListPage(context.Background(), "")
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if page.Leads == nil || len(page.Leads) != 0 || page.NextCursor != "" {
		t.Fatalf("expected empty page, got %+v", page)
	}
}

func TestForEachVisitsEveryLead(t *testing.T) {
	repo := NewInMemoryRepository(WithClock(steppedClock(time.Now())))
	seedLeads(t, repo, 23)

	count := 0
	if err := ForEach(context.Background(), repo, func(*Lead) error {
		count++
		return nil
	}); err != nil {
		t.Fatalf("for each: %v", err)
	}
	if count != 23 {
		t.Fatalf("expected 23 visits, got %d", count)
	}
}
