package enrichment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultAnthropicModel is used when no model id is configured.
const DefaultAnthropicModel = "claude-haiku-4-5-20251001"

const defaultAnthropicMaxTokens = 1024

type anthropicMessagesAPI interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// AnthropicLLMClient implements LLMClient using the Anthropic Messages API.
type AnthropicLLMClient struct {
	messages anthropicMessagesAPI
	modelID  string
}

// NewAnthropicLLMClient creates a client backed by the official SDK.
func NewAnthropicLLMClient(apiKey, modelID string) (*AnthropicLLMClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("enrichment: anthropic api key is required")
	}
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return newAnthropicLLMClient(&client.Messages, modelID), nil
}

func newAnthropicLLMClient(messages anthropicMessagesAPI, modelID string) *AnthropicLLMClient {
	if messages == nil {
		panic("enrichment: anthropic messages client cannot be nil")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = DefaultAnthropicModel
	}
	return &AnthropicLLMClient{messages: messages, modelID: modelID}
}

func (c *AnthropicLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	modelID := c.modelID
	if strings.TrimSpace(req.Model) != "" {
		modelID = req.Model
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(modelID),
		MaxTokens: maxTokens,
	}
	for _, block := range req.System {
		if strings.TrimSpace(block) != "" {
			params.System = append(params.System, sdk.TextBlockParam{Text: block})
		}
	}
	for _, msg := range req.Messages {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		switch msg.Role {
		case ChatRoleSystem:
			params.System = append(params.System, sdk.TextBlockParam{Text: content})
		case ChatRoleUser:
			params.Messages = append(params.Messages, sdk.NewUserMessage(sdk.NewTextBlock(content)))
		case ChatRoleAssistant:
			params.Messages = append(params.Messages, sdk.NewAssistantMessage(sdk.NewTextBlock(content)))
		default:
			return LLMResponse{}, fmt.Errorf("enrichment: unsupported role %q", msg.Role)
		}
	}
	if len(params.Messages) == 0 {
		return LLMResponse{}, errors.New("enrichment: anthropic requires at least one message")
	}
	if req.Temperature >= 0 {
		params.Temperature = sdk.Float(float64(req.Temperature))
	}

	msg, err := c.messages.New(ctx, params)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("enrichment: anthropic completion failed: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return LLMResponse{}, errors.New("enrichment: anthropic response contained no text")
	}

	in, out := int32(msg.Usage.InputTokens), int32(msg.Usage.OutputTokens)
	return LLMResponse{
		Text:       strings.TrimSpace(text.String()),
		StopReason: string(msg.StopReason),
		Usage: TokenUsage{
			InputTokens:  in,
			OutputTokens: out,
			TotalTokens:  in + out,
		},
	}, nil
}
