package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/move-leads-platform/internal/leads"
	"github.com/wolfman30/move-leads-platform/pkg/logging"
)

// LeadAlerter emails the sales inbox when scoring marks a lead high priority.
type LeadAlerter struct {
	email      EmailSender
	recipients []string
	loc        *time.Location
	logger     *logging.Logger
}

// NewLeadAlerter builds an alerter. With no recipients every alert is a no-op.
func NewLeadAlerter(email EmailSender, recipients []string, loc *time.Location, logger *logging.Logger) *LeadAlerter {
	if email == nil {
		panic("notify: email sender cannot be nil")
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	clean := make([]string, 0, len(recipients))
	for _, r := range recipients {
		if r = strings.TrimSpace(r); r != "" {
			clean = append(clean, r)
		}
	}
	return &LeadAlerter{email: email, recipients: clean, loc: loc, logger: logger}
}

// NotifyHighPriority sends one email per recipient. All recipients are attempted.
func (a *LeadAlerter) NotifyHighPriority(ctx context.Context, lead *leads.Lead) error {
	if lead == nil || len(a.recipients) == 0 {
		return nil
	}
	msg := highPriorityMessage(lead, a.loc)

	var errs []error
	for _, to := range a.recipients {
		msg.To = to
		if err := a.email.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d of %d alert(s) failed: %w", len(errs), len(a.recipients), errors.Join(errs...))
	}
	a.logger.Info("high priority alert sent", "lead_id", lead.ID, "recipients", len(a.recipients))
	return nil
}

func highPriorityMessage(lead *leads.Lead, loc *time.Location) EmailMessage {
	score := "n/a"
	if lead.LeadScore != nil {
		score = fmt.Sprintf("%d", *lead.LeadScore)
	}
	reasoning := ""
	if lead.ScoreReasoning != nil {
		reasoning = *lead.ScoreReasoning
	}

	var b strings.Builder
	fmt.Fprintf(&b, "A high priority moving lead just came in.\n\n")
	fmt.Fprintf(&b, "Name: %s\nPhone: %s\nEmail: %s\n", lead.Name, lead.Phone, lead.Email)
	fmt.Fprintf(&b, "From: %s, %s %s\n", lead.CurrentAddress.City, lead.CurrentAddress.State, lead.CurrentAddress.ZipCode)
	fmt.Fprintf(&b, "To: %s, %s %s\n", lead.DestinationAddress.City, lead.DestinationAddress.State, lead.DestinationAddress.ZipCode)
	fmt.Fprintf(&b, "Move date: %s (%s)\n", lead.MovingDate.Format("January 2, 2006"), lead.Urgency)
	fmt.Fprintf(&b, "Estimate: $%d - $%d\n", lead.MinEstimate, lead.MaxEstimate)
	fmt.Fprintf(&b, "Lead score: %s\n", score)
	if reasoning != "" {
		fmt.Fprintf(&b, "Why: %s\n", reasoning)
	}
	fmt.Fprintf(&b, "\nSubmitted %s", lead.CreatedAt.In(loc).Format("Jan 2, 2006 3:04 PM MST"))

	return EmailMessage{
		Subject: fmt.Sprintf("High priority lead - %s (%s)", lead.Name, lead.Urgency),
		Body:    b.String(),
	}
}
