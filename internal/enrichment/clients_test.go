package enrichment

import (
	"context"
	"errors"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/wolfman30/move-leads-platform/pkg/logging"
)

type fakeConverse struct {
	input *bedrockruntime.ConverseInput
	out   *bedrockruntime.ConverseOutput
	err   error
}

func (f *fakeConverse) Converse(_ context.Context, in *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.input = in
	return f.out, f.err
}

func TestBedrockLLMClientComplete(t *testing.T) {
	api := &fakeConverse{out: &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Role:    brtypes.ConversationRoleAssistant,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: ` {"leadScore": 10} `}},
		}},
		StopReason: brtypes.StopReasonEndTurn,
		Usage:      &brtypes.TokenUsage{InputTokens: aws.Int32(12), OutputTokens: aws.Int32(5), TotalTokens: aws.Int32(17)},
	}}
	client := NewBedrockLLMClient(api, "anthropic.claude-3-haiku")

	resp, err := client.Complete(context.Background(), ScoreInput{MovingDistance: "local"}.request())
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if resp.Text != `{"leadScore": 10}` || resp.Usage.TotalTokens != 17 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if aws.ToString(api.input.ModelId) != "anthropic.claude-3-haiku" || len(api.input.System) != 1 || len(api.input.Messages) != 1 {
		t.Fatalf("unexpected converse input %+v", api.input)
	}
	if aws.ToInt32(api.input.InferenceConfig.MaxTokens) != 512 {
		t.Fatalf("expected max tokens to be forwarded")
	}
}

func TestBedrockLLMClientRequiresModel(t *testing.T) {
	client := NewBedrockLLMClient(&fakeConverse{}, "")
	if _, err := client.Complete(context.Background(), LLMRequest{Messages: []ChatMessage{{Role: ChatRoleUser, Content: "hi"}}}); err == nil {
		t.Fatal("expected error without model id")
	}
}

type fakeMessages struct {
	params sdk.MessageNewParams
	msg    *sdk.Message
	err    error
}

func (f *fakeMessages) New(_ context.Context, params sdk.MessageNewParams, _ ...option.RequestOption) (*sdk.Message, error) {
	f.params = params
	return f.msg, f.err
}

func TestAnthropicLLMClientComplete(t *testing.T) {
	api := &fakeMessages{msg: &sdk.Message{
		Content: []sdk.ContentBlockUnion{{Type: "text", Text: `{"category":"Residential","urgencyScore":0.5}`}},
	}}
	client := newAnthropicLLMClient(api, "")

	resp, err := client.Complete(context.Background(), CategorizeInput{MovingDistance: "local"}.request())
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := parseCategorization(resp.Text); err != nil {
		t.Fatalf("response should parse: %v", err)
	}
	if string(api.params.Model) != DefaultAnthropicModel || api.params.MaxTokens != 512 {
		t.Fatalf("unexpected params model=%s max=%d", api.params.Model, api.params.MaxTokens)
	}
	if len(api.params.System) != 1 || len(api.params.Messages) != 1 {
		t.Fatalf("expected one system block and one message, got %d/%d", len(api.params.System), len(api.params.Messages))
	}
}

func TestAnthropicLLMClientEmptyText(t *testing.T) {
	client := newAnthropicLLMClient(&fakeMessages{msg: &sdk.Message{}}, "")
	if _, err := client.Complete(context.Background(), ScoreInput{}.request()); err == nil {
		t.Fatal("expected error for empty content")
	}
}

type stubLLM struct {
	resp  LLMResponse
	err   error
	calls int
}

func (s *stubLLM) Complete(context.Context, LLMRequest) (LLMResponse, error) {
	s.calls++
	return s.resp, s.err
}

func TestFallbackLLMClient(t *testing.T) {
	primary := &stubLLM{err: errors.New("throttled")}
	fallback := &stubLLM{resp: LLMResponse{Text: "ok"}}
	client := NewFallbackLLMClient(primary, fallback, logging.Discard())

	resp, err := client.Complete(context.Background(), LLMRequest{})
	if err != nil || resp.Text != "ok" {
		t.Fatalf("expected fallback response, got %+v %v", resp, err)
	}
	if primary.calls != 1 || fallback.calls != 1 {
		t.Fatalf("expected one call each, got %d/%d", primary.calls, fallback.calls)
	}

	noFallback := NewFallbackLLMClient(primary, nil, logging.Discard())
	if _, err := noFallback.Complete(context.Background(), LLMRequest{}); err == nil || err.Error() != "throttled" {
		t.Fatalf("expected primary error, got %v", err)
	}

	ok := &stubLLM{resp: LLMResponse{Text: "primary"}}
	unused := &stubLLM{}
	resp, _ = NewFallbackLLMClient(ok, unused, logging.Discard()).Complete(context.Background(), LLMRequest{})
	if resp.Text != "primary" || unused.calls != 0 {
		t.Fatalf("fallback should not be used when primary succeeds")
	}
}

type closingLLM struct {
	stubLLM
	closed   bool
	closeErr error
}

func (c *closingLLM) Close() error {
	c.closed = true
	return c.closeErr
}

func TestCloseLLMClient(t *testing.T) {
	if err := CloseLLMClient(&stubLLM{}); err != nil {
		t.Fatalf("client without Close should be a no-op: %v", err)
	}

	primary := &closingLLM{}
	fallback := &closingLLM{closeErr: errors.New("close failed")}
	err := CloseLLMClient(NewFallbackLLMClient(primary, fallback, logging.Discard()))
	if !primary.closed || !fallback.closed {
		t.Fatalf("expected both providers closed, got %v/%v", primary.closed, fallback.closed)
	}
	if err == nil || err.Error() != "close failed" {
		t.Fatalf("expected fallback close error, got %v", err)
	}

	if err := CloseLLMClient(NewFallbackLLMClient(&closingLLM{}, nil, logging.Discard())); err != nil {
		t.Fatalf("missing fallback should close cleanly: %v", err)
	}
}
