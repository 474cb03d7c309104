package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrBadPayload marks a queue message that can never be processed.
var ErrBadPayload = errors.New("jobs: malformed payload")

// Queue is the transport between the intake pipeline and enrichment workers.
type Queue interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// Message is one received queue entry.
type Message struct {
	ID            string
	Body          string
	ReceiptHandle string
}

type jobKind string

const kindEnrichLead jobKind = "enrich_lead"

type queuePayload struct {
	ID         string    `json:"id"`
	Kind       jobKind   `json:"kind"`
	LeadID     string    `json:"leadId"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

func encodePayload(kind jobKind, leadID string, now time.Time) (queuePayload, string, error) {
	payload := queuePayload{
		ID:         uuid.NewString(),
		Kind:       kind,
		LeadID:     leadID,
		EnqueuedAt: now.UTC(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return queuePayload{}, "", fmt.Errorf("jobs: failed to encode payload: %w", err)
	}
	return payload, string(body), nil
}

func decodePayload(body string) (queuePayload, error) {
	var payload queuePayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return queuePayload{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if payload.Kind != kindEnrichLead {
		return queuePayload{}, fmt.Errorf("%w: unknown kind %q", ErrBadPayload, payload.Kind)
	}
	if strings.TrimSpace(payload.LeadID) == "" {
		return queuePayload{}, fmt.Errorf("%w: lead id missing", ErrBadPayload)
	}
	return payload, nil
}
