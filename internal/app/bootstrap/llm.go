package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/move-leads-platform/internal/config"
	"github.com/wolfman30/move-leads-platform/internal/enrichment"
	"github.com/wolfman30/move-leads-platform/pkg/logging"
)

// ErrLLMNotConfigured means no model provider is selected. Callers run without
// enrichment in that case.
var ErrLLMNotConfigured = errors.New("bootstrap: no llm provider configured")

// BuildLLMClient builds the primary provider and, when one is named, wraps it with
// a fallback provider.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (enrichment.LLMClient, error) {
	if logger == nil {
		logger = logging.Default()
	}
	primaryName := strings.TrimSpace(cfg.LLMProvider)
	if primaryName == "" || primaryName == "none" {
		return nil, ErrLLMNotConfigured
	}
	primary, err := buildProvider(ctx, primaryName, cfg, awsCfg)
	if err != nil {
		return nil, err
	}

	fallbackName := strings.TrimSpace(cfg.LLMFallbackProvider)
	if fallbackName == "" || fallbackName == primaryName {
		logger.Info("llm provider configured", "provider", primaryName)
		return primary, nil
	}
	fallback, err := buildProvider(ctx, fallbackName, cfg, awsCfg)
	if err != nil {
		logger.Warn("fallback llm provider unavailable", "provider", fallbackName, "error", err)
		return primary, nil
	}
	logger.Info("llm provider configured", "provider", primaryName, "fallback", fallbackName)
	return enrichment.NewFallbackLLMClient(primary, fallback, logger), nil
}

func buildProvider(ctx context.Context, name string, cfg *appconfig.Config, awsCfg aws.Config) (enrichment.LLMClient, error) {
	switch name {
	case "gemini":
		client, err := enrichment.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return nil, err
		}
		return client, nil
	case "anthropic":
		client, err := enrichment.NewAnthropicLLMClient(cfg.AnthropicAPIKey, cfg.AnthropicModelID)
		if err != nil {
			return nil, err
		}
		return client, nil
	case "bedrock":
		if strings.TrimSpace(cfg.BedrockModelID) == "" {
			return nil, errors.New("bootstrap: BEDROCK_MODEL_ID is required for bedrock")
		}
		return enrichment.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown llm provider %q", name)
	}
}

// CloseLLMClient releases the client built by BuildLLMClient. Safe on nil.
func CloseLLMClient(llm enrichment.LLMClient, logger *logging.Logger) {
	if llm == nil {
		return
	}
	if logger == nil {
		logger = logging.Default()
	}
	if err := enrichment.CloseLLMClient(llm); err != nil {
		logger.Warn("failed to close llm client", "error", err)
	}
}
