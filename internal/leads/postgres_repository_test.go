package leads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
)

var pgLeadColumns = []string{
	"id", "name", "email", "phone", "current_address", "destination_address", "moving_date",
	"moving_preference", "number_of_rooms", "approximate_boxes_count", "approximate_furniture_count",
	"special_instructions", "additional_notes", "category", "min_estimate", "max_estimate", "urgency",
	"ai_category", "category_reason", "urgency_score", "lead_score", "priority", "score_reasoning", "enriched_at",
	"enrichment_attempted_at", "consent_accepted_at", "created_at",
}

func addLeadRow(t *testing.T, rows *pgxmock.Rows, id string, createdAt time.Time, enriched bool) *pgxmock.Rows {
	t.Helper()
	addr, err := json.Marshal(Address{Street: "1 Main St, Unit 2", City: "Boston", State: "MA", ZipCode: "02110"})
	if err != nil {
		t.Fatalf("marshal address: %v", err)
	}
	var (
		aiCategory, reason, reasoning, priority any
		urgencyScore, leadScore, enrichedAt     any
		attemptedAt                             any
	)
	if enriched {
		cat, r, sr, p := "Residential", "apartment move", "close date", "high"
		us, ls, at := 0.9, int32(88), createdAt.Add(time.Minute)
		aiCategory, reason, reasoning, priority = &cat, &r, &sr, &p
		urgencyScore, leadScore, enrichedAt = &us, &ls, &at
		attemptedAt = &at
	}
	return rows.AddRow(
		id, "Jane Doe", "jane@x.com", "5551234567", addr, addr,
		time.Date(2026, 5, 14, 0, 0, 0, 0, time.UTC),
		"local", "3", "20", "5", "", "", "Residential", int32(900), int32(1700), "Urgent Moderate",
		aiCategory, reason, urgencyScore, leadScore, priority, reasoning, enrichedAt,
		attemptedAt, createdAt, createdAt,
	)
}

func TestPostgresRepositoryCreate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	repo := newPostgresRepositoryWithExec(mock, func() time.Time { return now })

	args := make([]any, 19)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	args[1] = "Jane Doe"
	args[13] = "Residential"
	args[14] = 900
	args[16] = "Urgent Moderate"
	args[18] = now
	mock.ExpectExec("INSERT INTO leads").WithArgs(args...).WillReturnResult(pgxmock.NewResult("INSERT", 1))

	lead, err := repo.Create(context.Background(), &Lead{
		Name:        "Jane Doe",
		Category:    CategoryResidential,
		MinEstimate: 900,
		MaxEstimate: 1700,
		Urgency:     UrgencyModerate,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if lead.ID == "" || !lead.CreatedAt.Equal(now) {
		t.Fatalf("expected id and createdAt to be assigned, got %+v", lead)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRepositoryCreateWrapsStorageError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newPostgresRepositoryWithExec(mock, nil)
	args := make([]any, 19)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	mock.ExpectExec("INSERT INTO leads").WithArgs(args...).WillReturnError(errors.New("connection reset"))

	_, err = repo.Create(context.Background(), &Lead{Name: "Jane Doe"})
	var serr *StorageError
	if !errors.As(err, &serr) || serr.Op != "create" {
		t.Fatalf("expected create StorageError, got %v", err)
	}
	if serr.Err == nil || serr.Err.Error() != "connection reset" {
		t.Fatalf("expected driver error to be wrapped, got %v", err)
	}
}

func TestPostgresRepositoryGet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newPostgresRepositoryWithExec(mock, nil)
	createdAt := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	rows := addLeadRow(t, pgxmock.NewRows(pgLeadColumns), "lead-1", createdAt, true)
	mock.ExpectQuery("SELECT id, name").WithArgs("lead-1").WillReturnRows(rows)

	lead, err := repo.Get(context.Background(), "lead-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if lead.CurrentAddress.Street != "1 Main St, Unit 2" || lead.MinEstimate != 900 || lead.Urgency != UrgencyModerate {
		t.Fatalf("unexpected lead: %+v", lead)
	}
	if lead.LeadScore == nil || *lead.LeadScore != 88 || lead.Priority == nil || *lead.Priority != PriorityHigh {
		t.Fatalf("enrichment not decoded: %+v", lead)
	}
	if lead.EnrichmentAttemptedAt == nil || !lead.EnrichmentAttempted() {
		t.Fatalf("attempt marker not decoded: %+v", lead)
	}

	mock.ExpectQuery("SELECT id, name").WithArgs("missing").WillReturnRows(pgxmock.NewRows(pgLeadColumns))
	if _, err := repo.Get(context.Background(), "missing"); !errors.Is(err, ErrLeadNotFound) {
		t.Fatalf("expected ErrLeadNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRepositoryListPage(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newPostgresRepositoryWithExec(mock, nil)
	start := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

	first := pgxmock.NewRows(pgLeadColumns)
	for i := 0; i < PageSize+1; i++ {
		first = addLeadRow(t, first, fmt.Sprintf("lead-%02d", 20-i), start.Add(-time.Duration(i)*time.Minute), false)
	}
	mock.ExpectQuery("ORDER BY created_at DESC, id DESC").WithArgs(PageSize + 1).WillReturnRows(first)

	page, err := repo.ListPage(context.Background(), "")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(page.Leads) != PageSize || page.NextCursor == "" {
		t.Fatalf("expected full page with cursor, got %d leads cursor %q", len(page.Leads), page.NextCursor)
	}
	last := page.Leads[PageSize-1]
	if last.ID != "lead-11" {
		t.Fatalf("unexpected last lead %s", last.ID)
	}

	second := addLeadRow(t, pgxmock.NewRows(pgLeadColumns), "lead-10", start.Add(-10*time.Minute), false)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE (created_at, id) < ($1, $2)")).
		WithArgs(pgxmock.AnyArg(), "lead-11", PageSize+1).
		WillReturnRows(second)

	page, err = repo.ListPage(context.Background(), page.NextCursor)
	if err != nil {
		t.Fatalf("list second page failed: %v", err)
	}
	if len(page.Leads) != 1 || page.NextCursor != "" {
		t.Fatalf("expected final page of one lead, got %d cursor %q", len(page.Leads), page.NextCursor)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRepositoryUpdateFieldsWritesOnlyPresentFields(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newPostgresRepositoryWithExec(mock, nil)
	score := 72
	priority := PriorityMedium
	reasoning := "moving soon"

	mock.ExpectExec(regexp.QuoteMeta("UPDATE leads SET lead_score = $1, priority = $2, score_reasoning = $3 WHERE id = $4")).
		WithArgs(72, "medium", "moving soon", "lead-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = repo.UpdateFields(context.Background(), "lead-1", LeadUpdate{
		LeadScore:      &score,
		Priority:       &priority,
		ScoreReasoning: &reasoning,
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE leads SET lead_score = $1 WHERE id = $2")).
		WithArgs(72, "gone").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	if err := repo.UpdateFields(context.Background(), "gone", LeadUpdate{LeadScore: &score}); !errors.Is(err, ErrLeadNotFound) {
		t.Fatalf("expected ErrLeadNotFound, got %v", err)
	}

	attempted := time.Date(2026, 5, 4, 12, 30, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE leads SET enrichment_attempted_at = $1 WHERE id = $2")).
		WithArgs(attempted, "lead-2").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	if err := repo.UpdateFields(context.Background(), "lead-2", LeadUpdate{EnrichmentAttemptedAt: &attempted}); err != nil {
		t.Fatalf("attempt marker update failed: %v", err)
	}

	if err := repo.UpdateFields(context.Background(), "lead-1", LeadUpdate{}); err != nil {
		t.Fatalf("empty update should be a no-op: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRepositoryDeleteAll(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newPostgresRepositoryWithExec(mock, nil)
	mock.ExpectExec("DELETE FROM leads").WillReturnResult(pgxmock.NewResult("DELETE", 7))

	n, err := repo.DeleteAll(context.Background())
	if err != nil {
		t.Fatalf("delete all failed: %v", err)
	}
	if n != 7 {
		t.Fatalf("expected 7 deleted, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
