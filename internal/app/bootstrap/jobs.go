package bootstrap

import (
	"errors"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/wolfman30/move-leads-platform/internal/config"
	"github.com/wolfman30/move-leads-platform/internal/jobs"
	"github.com/wolfman30/move-leads-platform/internal/notify"
	"github.com/wolfman30/move-leads-platform/pkg/logging"
)

const memoryQueueBuffer = 256

// BuildQueue returns the enrichment queue. The in-memory queue is also returned on
// its own so the caller knows to run an in-process worker against it.
func BuildQueue(cfg *appconfig.Config, awsCfg aws.Config) (jobs.Queue, *jobs.MemoryQueue, error) {
	if cfg.UseMemoryQueue {
		q := jobs.NewMemoryQueue(memoryQueueBuffer)
		return q, q, nil
	}
	if strings.TrimSpace(cfg.EnrichmentQueueURL) == "" {
		return nil, nil, errors.New("bootstrap: ENRICHMENT_QUEUE_URL is required when the memory queue is disabled")
	}
	return jobs.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.EnrichmentQueueURL), nil, nil
}

// BuildEmailSender picks the configured provider and falls back to the logging
// stub when credentials are missing.
func BuildEmailSender(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	switch cfg.EmailProvider {
	case "sendgrid":
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger)
		if sender != nil {
			return sender
		}
		logger.Warn("sendgrid selected without an api key; alerts will only be logged")
	case "ses":
		if strings.TrimSpace(cfg.EmailFromAddress) != "" {
			return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
				FromEmail: cfg.EmailFromAddress,
				FromName:  cfg.EmailFromName,
			}, logger)
		}
		logger.Warn("ses selected without a from address; alerts will only be logged")
	}
	return notify.NewStubEmailSender(logger)
}

// BuildNotifier returns the high-priority alerter, or nil when no recipients are set.
func BuildNotifier(cfg *appconfig.Config, email notify.EmailSender, loc *time.Location, logger *logging.Logger) jobs.HighPriorityNotifier {
	recipients := splitRecipients(cfg.AlertEmailTo)
	if len(recipients) == 0 || email == nil {
		return nil
	}
	return notify.NewLeadAlerter(email, recipients, loc, logger)
}

func splitRecipients(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
