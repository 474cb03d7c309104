package leads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const leadColumns = `id, name, email, phone, current_address, destination_address, moving_date,
	moving_preference, number_of_rooms, approximate_boxes_count, approximate_furniture_count,
	special_instructions, additional_notes, category, min_estimate, max_estimate, urgency,
	ai_category, category_reason, urgency_score, lead_score, priority, score_reasoning, enriched_at,
	enrichment_attempted_at, consent_accepted_at, created_at`

// PostgresRepository stores leads in the relational database.
type PostgresRepository struct {
	db  pgxQuerier
	now func() time.Time
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("leads: pgx pool required")
	}
	return &PostgresRepository{db: pool, now: time.Now}
}

func newPostgresRepositoryWithExec(db pgxQuerier, now func() time.Time) *PostgresRepository {
	if db == nil {
		panic("leads: exec required")
	}
	if now == nil {
		now = time.Now
	}
	return &PostgresRepository{db: db, now: now}
}

// Create inserts a new row.
func (r *PostgresRepository) Create(ctx context.Context, lead *Lead) (*Lead, error) {
	if lead == nil {
		return nil, storageErr("create", errNilLead)
	}
	stored := lead.Clone()
	stored.ID = uuid.New().String()
	stored.CreatedAt = r.now().UTC()

	current, err := json.Marshal(stored.CurrentAddress)
	if err != nil {
		return nil, storageErr("create", fmt.Errorf("marshal current address: %w", err))
	}
	destination, err := json.Marshal(stored.DestinationAddress)
	if err != nil {
		return nil, storageErr("create", fmt.Errorf("marshal destination address: %w", err))
	}

	query := `
		INSERT INTO leads (id, name, email, phone, current_address, destination_address, moving_date,
			moving_preference, number_of_rooms, approximate_boxes_count, approximate_furniture_count,
			special_instructions, additional_notes, category, min_estimate, max_estimate, urgency,
			consent_accepted_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	if _, err := r.db.Exec(ctx, query,
		stored.ID,
		stored.Name,
		stored.Email,
		stored.Phone,
		current,
		destination,
		stored.MovingDate,
		string(stored.MovingPreference),
		stored.NumberOfRooms,
		stored.ApproximateBoxesCount,
		stored.ApproximateFurnitureCount,
		stored.SpecialInstructions,
		stored.AdditionalNotes,
		string(stored.Category),
		stored.MinEstimate,
		stored.MaxEstimate,
		string(stored.Urgency),
		stored.ConsentAcceptedAt,
		stored.CreatedAt,
	); err != nil {
		return nil, storageErr("create", err)
	}
	return stored, nil
}

// Get fetches one lead by id.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`
	lead, err := scanLead(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, storageErr("get", err)
	}
	return lead, nil
}

// ListPage fetches one extra row to learn whether another page exists.
func (r *PostgresRepository) ListPage(ctx context.Context, cursor string) (*Page, error) {
	pos, err := decodeCursor(cursor)
	if err != nil {
		return nil, err
	}

	var rows pgx.Rows
	if pos == nil {
		query := `SELECT ` + leadColumns + ` FROM leads
			ORDER BY created_at DESC, id DESC
			LIMIT $1`
		rows, err = r.db.Query(ctx, query, PageSize+1)
	} else {
		query := `SELECT ` + leadColumns + ` FROM leads
			WHERE (created_at, id) < ($1, $2)
			ORDER BY created_at DESC, id DESC
			LIMIT $3`
		rows, err = r.db.Query(ctx, query, pos.CreatedAt, pos.ID, PageSize+1)
	}
	if err != nil {
		return nil, storageErr("list", err)
	}
	defer rows.Close()

	var out []*Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, storageErr("list", err)
		}
		out = append(out, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list", err)
	}
	return buildPage(out), nil
}

// UpdateFields issues a single UPDATE covering only the present fields.
func (r *PostgresRepository) UpdateFields(ctx context.Context, id string, update LeadUpdate) error {
	fields := update.Fields()
	if len(fields) == 0 {
		return nil
	}
	sets := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)+1)
	for i, f := range fields {
		sets = append(sets, fmt.Sprintf("%s = $%d", f.Column, i+1))
		args = append(args, f.Value)
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE leads SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))

	ct, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return storageErr("update", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrLeadNotFound
	}
	return nil
}

// DeleteAll removes every row.
func (r *PostgresRepository) DeleteAll(ctx context.Context) (int, error) {
	ct, err := r.db.Exec(ctx, `DELETE FROM leads`)
	if err != nil {
		return 0, storageErr("delete all", err)
	}
	return int(ct.RowsAffected()), nil
}

func scanLead(row pgx.Row) (*Lead, error) {
	var (
		lead                                  Lead
		current, destination                  []byte
		preference, category, urgency         string
		aiCategory, categoryReason, reasoning *string
		priority                              *string
		urgencyScore                          *float64
		leadScore                             *int32
		enrichedAt, attemptedAt               *time.Time
		minEstimate, maxEstimate              int32
	)
	if err := row.Scan(
		&lead.ID,
		&lead.Name,
		&lead.Email,
		&lead.Phone,
		&current,
		&destination,
		&lead.MovingDate,
		&preference,
		&lead.NumberOfRooms,
		&lead.ApproximateBoxesCount,
		&lead.ApproximateFurnitureCount,
		&lead.SpecialInstructions,
		&lead.AdditionalNotes,
		&category,
		&minEstimate,
		&maxEstimate,
		&urgency,
		&aiCategory,
		&categoryReason,
		&urgencyScore,
		&leadScore,
		&priority,
		&reasoning,
		&enrichedAt,
		&attemptedAt,
		&lead.ConsentAcceptedAt,
		&lead.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(current) > 0 {
		if err := json.Unmarshal(current, &lead.CurrentAddress); err != nil {
			return nil, fmt.Errorf("decode current address: %w", err)
		}
	}
	if len(destination) > 0 {
		if err := json.Unmarshal(destination, &lead.DestinationAddress); err != nil {
			return nil, fmt.Errorf("decode destination address: %w", err)
		}
	}
	lead.MovingPreference = MovingPreference(preference)
	lead.Category = Category(category)
	lead.Urgency = Urgency(urgency)
	lead.MinEstimate = int(minEstimate)
	lead.MaxEstimate = int(maxEstimate)
	lead.AICategory = aiCategory
	lead.CategoryReason = categoryReason
	lead.ScoreReasoning = reasoning
	lead.UrgencyScore = urgencyScore
	if leadScore != nil {
		v := int(*leadScore)
		lead.LeadScore = &v
	}
	if priority != nil {
		p := Priority(*priority)
		lead.Priority = &p
	}
	if enrichedAt != nil {
		t := enrichedAt.UTC()
		lead.EnrichedAt = &t
	}
	if attemptedAt != nil {
		t := attemptedAt.UTC()
		lead.EnrichmentAttemptedAt = &t
	}
	lead.CreatedAt = lead.CreatedAt.UTC()
	lead.ConsentAcceptedAt = lead.ConsentAcceptedAt.UTC()
	return &lead, nil
}
