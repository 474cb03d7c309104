package enrichment

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/wolfman30/move-leads-platform/internal/leads"
)

// Categorization is a validated categorization response.
type Categorization struct {
	Category     string
	UrgencyScore float64
	Reason       string
}

// Score is a validated scoring response.
type Score struct {
	LeadScore int
	Priority  leads.Priority
	Reasoning string
}

// extractJSON returns the outermost JSON object in text, ignoring markdown code fences
// and any prose around the object.
func extractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if nl := strings.IndexByte(text, '\n'); nl >= 0 {
			text = text[nl+1:]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return "", ErrEmptyResponse
	}
	return text[start : end+1], nil
}

func parseCategorization(text string) (Categorization, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return Categorization{}, err
	}
	var payload struct {
		Category     *string  `json:"category"`
		UrgencyScore *float64 `json:"urgencyScore"`
		Reason       *string  `json:"reason"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return Categorization{}, invalid("decode categorization: %v", err)
	}
	if payload.Category == nil || strings.TrimSpace(*payload.Category) == "" {
		return Categorization{}, invalid("category missing")
	}
	if payload.UrgencyScore == nil {
		return Categorization{}, invalid("urgencyScore missing")
	}
	score := *payload.UrgencyScore
	if math.IsNaN(score) || score < 0 || score > 1 {
		return Categorization{}, invalid("urgencyScore %v outside [0,1]", score)
	}
	out := Categorization{
		Category:     normalizeCategory(*payload.Category),
		UrgencyScore: score,
	}
	if payload.Reason != nil {
		out.Reason = strings.TrimSpace(*payload.Reason)
	}
	return out, nil
}

func parseScore(text string) (Score, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return Score{}, err
	}
	var payload struct {
		LeadScore *float64 `json:"leadScore"`
		Priority  *string  `json:"priority"`
		Reasoning *string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return Score{}, invalid("decode score: %v", err)
	}
	if payload.LeadScore == nil {
		return Score{}, invalid("leadScore missing")
	}
	value := *payload.LeadScore
	if math.IsNaN(value) || value < 0 || value > 100 {
		return Score{}, invalid("leadScore %v outside [0,100]", value)
	}
	if payload.Priority == nil {
		return Score{}, invalid("priority missing")
	}
	priority := leads.Priority(strings.ToLower(strings.TrimSpace(*payload.Priority)))
	if !priority.Valid() {
		return Score{}, invalid("unknown priority %q", *payload.Priority)
	}
	out := Score{
		LeadScore: int(math.Round(value)),
		Priority:  priority,
	}
	if payload.Reasoning != nil {
		out.Reasoning = strings.TrimSpace(*payload.Reasoning)
	}
	return out, nil
}

func normalizeCategory(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "residential":
		return string(leads.CategoryResidential)
	case "commercial":
		return string(leads.CategoryCommercial)
	}
	return s
}
