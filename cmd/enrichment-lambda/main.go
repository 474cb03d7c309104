package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/wolfman30/move-leads-platform/cmd/mainconfig"
	"github.com/wolfman30/move-leads-platform/internal/app/bootstrap"
	appconfig "github.com/wolfman30/move-leads-platform/internal/config"
	"github.com/wolfman30/move-leads-platform/pkg/logging"
)

// jobProcessor is the slice of jobs.Worker the handler needs.
type jobProcessor interface {
	Process(ctx context.Context, body string) error
}

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	loc := cfg.Location()
	ctx := context.Background()

	awsConfig, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	storage, err := bootstrap.BuildRepository(ctx, cfg, awsConfig, logger)
	if err != nil {
		logger.Error("failed to initialize lead storage", "error", err)
		os.Exit(1)
	}
	llm, err := bootstrap.BuildLLMClient(ctx, cfg, awsConfig, logger)
	if err != nil {
		logger.Error("failed to initialize llm client", "error", err)
		os.Exit(1)
	}

	email := bootstrap.BuildEmailSender(cfg, awsConfig, logger)
	worker := bootstrap.BuildWorker(cfg, bootstrap.WorkerDeps{
		Repo:     storage.Repo,
		LLM:      llm,
		Notifier: bootstrap.BuildNotifier(cfg, email, loc, logger),
		Location: loc,
		Logger:   logger,
	})

	lambda.Start(func(ctx context.Context, evt events.SQSEvent) (events.SQSEventResponse, error) {
		return handle(ctx, worker, logger, evt)
	})
}

// handle processes each record and reports the ones that should be retried, so a
// single failure does not redeliver the whole batch.
func handle(ctx context.Context, worker jobProcessor, logger *logging.Logger, evt events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, record := range evt.Records {
		if err := worker.Process(ctx, record.Body); err != nil {
			logger.Warn("enrichment job will be retried", "message_id", record.MessageId, "error", err)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{
				ItemIdentifier: record.MessageId,
			})
		}
	}
	return resp, nil
}
