package enrichment

import (
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/move-leads-platform/internal/leads"
)

const categorizeSystemPrompt = `You are an assistant that categorizes inquiries for a moving company.
Classify the inquiry as "Residential" or "Commercial", rate how urgent it is from 0 (not urgent) to 1 (extremely urgent) and explain briefly.
Respond with a single JSON object and nothing else:
{"category": string, "urgencyScore": number, "reason": string}`

const scoreSystemPrompt = `You are an assistant that scores leads for a moving company.
Assign a lead score from 0 to 100 (likelihood to convert), a priority of "high", "medium" or "low", and explain your reasoning.
Consider these factors:
- Moving distance: long distance moves are generally higher value.
- Timeline: short timelines indicate higher urgency and likelihood to convert.
- Contact information: complete contact information makes follow up easier.
- Urgency: urgent moves indicate higher likelihood to convert.
Respond with a single JSON object and nothing else:
{"leadScore": number, "priority": string, "reasoning": string}`

// CategorizeInput is what the categorization prompt sees.
type CategorizeInput struct {
	MovingDistance                 string
	MovingDate                     string
	ContactInformationCompleteness float64
}

// ScoreInput is what the scoring prompt sees.
type ScoreInput struct {
	MovingDistance      string
	Timeline            leads.Urgency
	ContactInfoComplete bool
	Urgency             leads.Urgency
}

// NewCategorizeInput derives the categorization input from a stored lead.
func NewCategorizeInput(lead *leads.Lead) CategorizeInput {
	return CategorizeInput{
		MovingDistance:                 string(lead.MovingPreference),
		MovingDate:                     longDate(lead.MovingDate),
		ContactInformationCompleteness: lead.ContactCompleteness(),
	}
}

// NewScoreInput derives the scoring input. today must be in the business time zone.
func NewScoreInput(lead *leads.Lead, today time.Time) ScoreInput {
	timeline := leads.ClassifyTimeline(lead.MovingDate, today)
	distance := "local"
	if lead.MovingPreference == leads.MovingLongDistance {
		distance = "long distance"
	}
	return ScoreInput{
		MovingDistance:      distance,
		Timeline:            timeline,
		ContactInfoComplete: lead.ContactCompleteness() == 1,
		Urgency:             timeline,
	}
}

func longDate(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Format("January 2, 2006")
}

func (in CategorizeInput) request() LLMRequest {
	var b strings.Builder
	fmt.Fprintf(&b, "Moving Distance: %s\n", in.MovingDistance)
	fmt.Fprintf(&b, "Moving Date: %s\n", in.MovingDate)
	fmt.Fprintf(&b, "Contact Information Completeness: %.2f\n", in.ContactInformationCompleteness)
	return LLMRequest{
		System:      []string{categorizeSystemPrompt},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: b.String()}},
		MaxTokens:   512,
		Temperature: 0.2,
	}
}

func (in ScoreInput) request() LLMRequest {
	var b strings.Builder
	fmt.Fprintf(&b, "Moving Distance: %s\n", in.MovingDistance)
	fmt.Fprintf(&b, "Timeline: %s\n", in.Timeline)
	fmt.Fprintf(&b, "Contact Info Complete: %t\n", in.ContactInfoComplete)
	fmt.Fprintf(&b, "Urgency: %s\n", in.Urgency)
	return LLMRequest{
		System:      []string{scoreSystemPrompt},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: b.String()}},
		MaxTokens:   512,
		Temperature: 0.2,
	}
}
