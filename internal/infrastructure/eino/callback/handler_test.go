package callback

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"aida-engine/pkg/metrics"
)

func TestProviderFromContext(t *testing.T) {
	if got := ProviderFromContext(context.Background()); got != "unknown" {
		t.Errorf("expected unknown, got %q", got)
	}
	ctx := WithProvider(context.Background(), " openai ")
	if got := ProviderFromContext(ctx); got != "openai" {
		t.Errorf("expected openai, got %q", got)
	}
	if got := ProviderFromContext(WithProvider(context.Background(), "")); got != "unknown" {
		t.Errorf("blank provider must be ignored, got %q", got)
	}
}

func TestChatModelHandlerRecordsTokens(t *testing.T) {
	h := newChatModelCallbackHandler()
	prompt := metrics.ProviderTokensUsed.WithLabelValues("openai", "cb-test-model", "prompt")
	completion := metrics.ProviderTokensUsed.WithLabelValues("openai", "cb-test-model", "completion")
	beforePrompt := testutil.ToFloat64(prompt)
	beforeCompletion := testutil.ToFloat64(completion)

	ctx := WithProvider(context.Background(), "openai")
	ctx = h.OnStart(ctx, nil, &model.CallbackInput{Config: &model.Config{Model: "cb-test-model"}})
	if elapsedMs(ctx) < 0 {
		t.Fatal("start time must be recorded")
	}
	h.OnEnd(ctx, nil, &model.CallbackOutput{
		Config:     &model.Config{Model: "cb-test-model"},
		TokenUsage: &model.TokenUsage{PromptTokens: 120, CompletionTokens: 30, TotalTokens: 150},
	})

	if got := testutil.ToFloat64(prompt) - beforePrompt; got != 120 {
		t.Errorf("expected 120 prompt tokens, got %v", got)
	}
	if got := testutil.ToFloat64(completion) - beforeCompletion; got != 30 {
		t.Errorf("expected 30 completion tokens, got %v", got)
	}
}

func TestChatModelHandlerError(t *testing.T) {
	h := newChatModelCallbackHandler()
	ctx := h.OnStart(context.Background(), nil, nil)
	// 无追踪 provider 时也不应 panic
	h.OnError(ctx, nil, errors.New("rate limited"))
}
