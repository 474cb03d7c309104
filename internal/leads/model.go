package leads

import (
	"time"
)

// MovingPreference is the distance class the customer picked on the form.
type MovingPreference string

const (
	MovingLocal        MovingPreference = "local"
	MovingLongDistance MovingPreference = "longDistance"
)

// Category is the customer-declared property type.
type Category string

const (
	CategoryResidential Category = "Residential"
	CategoryCommercial  Category = "Commercial"
)

// Priority is the follow-up priority assigned by lead scoring.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Address is a street address. It is never modified after the lead is stored.
type Address struct {
	Street  string `json:"street" dynamodbav:"street"`
	City    string `json:"city" dynamodbav:"city"`
	State   string `json:"state" dynamodbav:"state"`
	ZipCode string `json:"zipCode" dynamodbav:"zipCode"`
}

// Lead is one customer's moving-quote inquiry plus any enrichment written later.
type Lead struct {
	ID    string `json:"id" dynamodbav:"id"`
	Name  string `json:"name" dynamodbav:"name"`
	Email string `json:"email" dynamodbav:"email"`
	Phone string `json:"phone" dynamodbav:"phone"`

	CurrentAddress            Address          `json:"currentAddress" dynamodbav:"currentAddress"`
	DestinationAddress        Address          `json:"destinationAddress" dynamodbav:"destinationAddress"`
	MovingDate                time.Time        `json:"movingDate" dynamodbav:"movingDate"`
	MovingPreference          MovingPreference `json:"movingPreference" dynamodbav:"movingPreference"`
	NumberOfRooms             string           `json:"numberOfRooms" dynamodbav:"numberOfRooms"`
	ApproximateBoxesCount     string           `json:"approximateBoxesCount" dynamodbav:"approximateBoxesCount"`
	ApproximateFurnitureCount string           `json:"approximateFurnitureCount" dynamodbav:"approximateFurnitureCount"`
	SpecialInstructions       string           `json:"specialInstructions" dynamodbav:"specialInstructions"`
	AdditionalNotes           string           `json:"additionalNotes" dynamodbav:"additionalNotes"`
	Category                  Category         `json:"category" dynamodbav:"category"`

	MinEstimate int     `json:"minEstimate" dynamodbav:"minEstimate"`
	MaxEstimate int     `json:"maxEstimate" dynamodbav:"maxEstimate"`
	Urgency     Urgency `json:"urgency" dynamodbav:"urgency"`

	// Enrichment fields stay nil until the enrichment worker writes them.
	AICategory     *string    `json:"aiCategory,omitempty" dynamodbav:"aiCategory,omitempty"`
	CategoryReason *string    `json:"categoryReason,omitempty" dynamodbav:"categoryReason,omitempty"`
	UrgencyScore   *float64   `json:"urgencyScore,omitempty" dynamodbav:"urgencyScore,omitempty"`
	LeadScore      *int       `json:"leadScore,omitempty" dynamodbav:"leadScore,omitempty"`
	Priority       *Priority  `json:"priority,omitempty" dynamodbav:"priority,omitempty"`
	ScoreReasoning *string    `json:"scoreReasoning,omitempty" dynamodbav:"scoreReasoning,omitempty"`
	EnrichedAt     *time.Time `json:"enrichedAt,omitempty" dynamodbav:"enrichedAt,omitempty"`

	// EnrichmentAttemptedAt is set once a job has run, whatever the outcome.
	EnrichmentAttemptedAt *time.Time `json:"enrichmentAttemptedAt,omitempty" dynamodbav:"enrichmentAttemptedAt,omitempty"`

	ConsentAcceptedAt time.Time `json:"consentAcceptedAt" dynamodbav:"consentAcceptedAt"`
	CreatedAt         time.Time `json:"createdAt" dynamodbav:"createdAt"`
}

// HasEnrichment reports whether any enrichment field has been written.
func (l *Lead) HasEnrichment() bool {
	return l.AICategory != nil || l.CategoryReason != nil || l.UrgencyScore != nil ||
		l.LeadScore != nil || l.Priority != nil || l.ScoreReasoning != nil
}

// EnrichmentAttempted reports whether an enrichment job has already run for the lead.
// A lead whose calls all failed carries only the attempt marker and is not retried.
func (l *Lead) EnrichmentAttempted() bool {
	return l.EnrichmentAttemptedAt != nil || l.HasEnrichment()
}

// ContactCompleteness is the fraction of name, email and phone that are non-empty.
func (l *Lead) ContactCompleteness() float64 {
	filled := 0
	for _, v := range []string{l.Name, l.Email, l.Phone} {
		if v != "" {
			filled++
		}
	}
	return float64(filled) / 3
}

// Clone returns a deep copy so callers cannot mutate stored records.
func (l *Lead) Clone() *Lead {
	if l == nil {
		return nil
	}
	out := *l
	out.AICategory = clonePtr(l.AICategory)
	out.CategoryReason = clonePtr(l.CategoryReason)
	out.UrgencyScore = clonePtr(l.UrgencyScore)
	out.LeadScore = clonePtr(l.LeadScore)
	out.Priority = clonePtr(l.Priority)
	out.ScoreReasoning = clonePtr(l.ScoreReasoning)
	out.EnrichedAt = clonePtr(l.EnrichedAt)
	out.EnrichmentAttemptedAt = clonePtr(l.EnrichmentAttemptedAt)
	return &out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// LeadUpdate is a partial update. A nil field is absent and is never written.
type LeadUpdate struct {
	AICategory     *string
	CategoryReason *string
	UrgencyScore   *float64
	LeadScore      *int
	Priority       *Priority
	ScoreReasoning *string
	Urgency        *Urgency
	EnrichedAt     *time.Time

	EnrichmentAttemptedAt *time.Time
}

// FieldValue names one present field of a LeadUpdate for each storage backend.
type FieldValue struct {
	Column    string
	Attribute string
	Value     any
}

// Fields lists the present fields in a stable order.
func (u LeadUpdate) Fields() []FieldValue {
	var out []FieldValue
	if u.AICategory != nil {
		out = append(out, FieldValue{"ai_category", "aiCategory", *u.AICategory})
	}
	if u.CategoryReason != nil {
		out = append(out, FieldValue{"category_reason", "categoryReason", *u.CategoryReason})
	}
	if u.UrgencyScore != nil {
		out = append(out, FieldValue{"urgency_score", "urgencyScore", *u.UrgencyScore})
	}
	if u.LeadScore != nil {
		out = append(out, FieldValue{"lead_score", "leadScore", *u.LeadScore})
	}
	if u.Priority != nil {
		out = append(out, FieldValue{"priority", "priority", string(*u.Priority)})
	}
	if u.ScoreReasoning != nil {
		out = append(out, FieldValue{"score_reasoning", "scoreReasoning", *u.ScoreReasoning})
	}
	if u.Urgency != nil {
		out = append(out, FieldValue{"urgency", "urgency", string(*u.Urgency)})
	}
	if u.EnrichedAt != nil {
		out = append(out, FieldValue{"enriched_at", "enrichedAt", u.EnrichedAt.UTC()})
	}
	if u.EnrichmentAttemptedAt != nil {
		out = append(out, FieldValue{"enrichment_attempted_at", "enrichmentAttemptedAt", u.EnrichmentAttemptedAt.UTC()})
	}
	return out
}

// IsEmpty reports whether the update carries no fields.
func (u LeadUpdate) IsEmpty() bool {
	return len(u.Fields()) == 0
}

// Apply merges the present fields into lead.
func (u LeadUpdate) Apply(lead *Lead) {
	if u.AICategory != nil {
		lead.AICategory = clonePtr(u.AICategory)
	}
	if u.CategoryReason != nil {
		lead.CategoryReason = clonePtr(u.CategoryReason)
	}
	if u.UrgencyScore != nil {
		lead.UrgencyScore = clonePtr(u.UrgencyScore)
	}
	if u.LeadScore != nil {
		lead.LeadScore = clonePtr(u.LeadScore)
	}
	if u.Priority != nil {
		lead.Priority = clonePtr(u.Priority)
	}
	if u.ScoreReasoning != nil {
		lead.ScoreReasoning = clonePtr(u.ScoreReasoning)
	}
	if u.Urgency != nil {
		lead.Urgency = *u.Urgency
	}
	if u.EnrichedAt != nil {
		t := u.EnrichedAt.UTC()
		lead.EnrichedAt = &t
	}
	if u.EnrichmentAttemptedAt != nil {
		t := u.EnrichmentAttemptedAt.UTC()
		lead.EnrichmentAttemptedAt = &t
	}
}

// Page is one page of leads, newest first.
type Page struct {
	Leads      []*Lead `json:"leads"`
	NextCursor string  `json:"nextCursor,omitempty"`
}
