package execution

import (
	"context"
	"strings"
	"testing"
	"time"

	"aida-engine/internal/domain/entity"
)

func TestStepRunnerFallsBackToNextModel(t *testing.T) {
	provider := newFakeProvider().
		fail("flux-pro-1.1", "network error").
		succeed("flux-schnell", "https://cdn.example.com/a.png", 0.03)
	catalog := newTestCatalog(t, provider, "flux-pro-1.1", "flux-schnell", "seedream-4.0")
	runner := NewStepRunner(catalog, time.Second, nil)

	primary := &entity.ModelSelection{Name: "flux-pro-1.1", ModelID: "flux-pro-1.1", EstimatedCost: 0.05, EstimatedTimeMs: 8000}
	res := runner.Run(context.Background(), entity.PlanStep{
		ID:             "main",
		PrimaryModel:   primary,
		FallbackModels: sels("flux-schnell", "seedream-4.0"),
	})

	if res.Status != entity.StepStatusSuccess {
		t.Fatalf("expected success, got %s (%s)", res.Status, res.Error)
	}
	if res.ModelUsed != "flux-schnell" {
		t.Errorf("expected model_used flux-schnell, got %s", res.ModelUsed)
	}
	if res.ActualCost != 0.03 {
		t.Errorf("expected actual cost 0.03, got %v", res.ActualCost)
	}
	if res.AssetReference != "https://cdn.example.com/a.png" {
		t.Errorf("unexpected asset reference %q", res.AssetReference)
	}
	if calls := provider.Calls(); len(calls) != 2 || calls[0] != "flux-pro-1.1" || calls[1] != "flux-schnell" {
		t.Errorf("unexpected call sequence %v", calls)
	}
	if len(res.Attempts) != 2 || res.Attempts[0].Error != "network error" || !res.Attempts[1].Success {
		t.Errorf("unexpected attempts %+v", res.Attempts)
	}
	if !res.UsedFallback() {
		t.Error("expected UsedFallback to be true")
	}
}

func TestStepRunnerExhaustion(t *testing.T) {
	provider := newFakeProvider().
		fail("p", "primary unavailable").
		fail("f1", "rate limited").
		fail("f2", "upstream returned 502: bad gateway")
	catalog := newTestCatalog(t, provider, "p", "f1", "f2")
	runner := NewStepRunner(catalog, time.Second, nil)

	res := runner.Run(context.Background(), entity.PlanStep{
		ID:             "main",
		PrimaryModel:   sel("p"),
		FallbackModels: sels("f1", "f2"),
	})

	if res.Status != entity.StepStatusFailed {
		t.Fatalf("expected failed, got %s", res.Status)
	}
	if got := len(provider.Calls()); got != 3 {
		t.Errorf("expected 3 provider calls, got %d", got)
	}
	if !strings.Contains(res.Error, "upstream returned 502: bad gateway") {
		t.Errorf("final provider message missing from error: %q", res.Error)
	}
	if want := "p: primary unavailable; f1: rate limited; f2: upstream returned 502: bad gateway"; res.Error != want {
		t.Errorf("error = %q, want %q", res.Error, want)
	}
	if res.ModelUsed != "f2" {
		t.Errorf("expected model_used to be last attempted candidate, got %s", res.ModelUsed)
	}
	if res.ActualCost != 0 {
		t.Errorf("expected zero cost for failed step, got %v", res.ActualCost)
	}
}

func TestStepRunnerWithoutFallbacks(t *testing.T) {
	provider := newFakeProvider().fail("solo", "boom")
	catalog := newTestCatalog(t, provider, "solo")
	runner := NewStepRunner(catalog, time.Second, nil)

	res := runner.Run(context.Background(), step("main", "solo"))

	if res.Status != entity.StepStatusFailed || res.ModelUsed != "solo" {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := len(provider.Calls()); got != 1 {
		t.Errorf("expected exactly one call, got %d", got)
	}
}

func TestStepRunnerStopsOnNonRetryableError(t *testing.T) {
	provider := newFakeProvider().succeed("f1", "asset://f1", 0.01)
	provider.handlers["p"] = func(ctx context.Context, id string, _ map[string]any, _ time.Duration) (*InvokeResult, error) {
		return nil, &ProviderError{ModelID: id, Message: "content policy violation", Retryable: false}
	}
	catalog := newTestCatalog(t, provider, "p", "f1")
	runner := NewStepRunner(catalog, time.Second, nil)

	res := runner.Run(context.Background(), entity.PlanStep{ID: "main", PrimaryModel: sel("p"), FallbackModels: sels("f1")})

	if res.Status != entity.StepStatusFailed {
		t.Fatalf("expected failed, got %s", res.Status)
	}
	if calls := provider.Calls(); len(calls) != 1 {
		t.Errorf("expected cascade to stop after non-retryable error, calls=%v", calls)
	}
}

func TestStepRunnerTimeoutTriggersFallback(t *testing.T) {
	provider := newFakeProvider().hang("slow").succeed("fast", "asset://fast", 0.02)
	catalog := newTestCatalog(t, provider, "slow", "fast")
	runner := NewStepRunner(catalog, 20*time.Millisecond, nil)

	res := runner.Run(context.Background(), entity.PlanStep{ID: "main", PrimaryModel: sel("slow"), FallbackModels: sels("fast")})

	if res.Status != entity.StepStatusSuccess || res.ModelUsed != "fast" {
		t.Fatalf("expected fallback success, got %+v", res)
	}
	if !strings.Contains(res.Attempts[0].Error, "timed out") {
		t.Errorf("expected timeout recorded on first attempt, got %q", res.Attempts[0].Error)
	}
}

func TestStepRunnerPerModelTimeoutOverride(t *testing.T) {
	provider := newFakeProvider().hang("slow")
	catalog, err := NewCatalog(ModelEntry{ModelID: "slow", ProviderID: "test", Adapter: provider, Timeout: 10 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	runner := NewStepRunner(catalog, time.Hour, nil)

	start := time.Now()
	res := runner.Run(context.Background(), step("main", "slow"))
	if res.Status != entity.StepStatusFailed {
		t.Fatalf("expected failure, got %s", res.Status)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("per-model timeout not applied, took %s", elapsed)
	}
}

func TestStepRunnerTreatsEmptyResultAsFailure(t *testing.T) {
	provider := newFakeProvider().succeed("good", "asset://good", 0.01)
	provider.handlers["empty"] = func(ctx context.Context, _ string, _ map[string]any, _ time.Duration) (*InvokeResult, error) {
		return &InvokeResult{Cost: 0.05}, nil
	}
	catalog := newTestCatalog(t, provider, "empty", "good")
	runner := NewStepRunner(catalog, time.Second, nil)

	res := runner.Run(context.Background(), entity.PlanStep{ID: "main", PrimaryModel: sel("empty"), FallbackModels: sels("good")})

	if res.ModelUsed != "good" || res.ActualCost != 0.01 {
		t.Fatalf("expected fallback after empty payload, got %+v", res)
	}
}

func TestStepRunnerMergesParameters(t *testing.T) {
	provider := newFakeProvider().succeed("m", "asset://m", 0)
	catalog := newTestCatalog(t, provider, "m")
	runner := NewStepRunner(catalog, time.Second, nil)

	primary := sel("m")
	primary.Parameters = map[string]any{"steps": 4}
	runner.Run(context.Background(), entity.PlanStep{
		ID:           "main",
		Prompt:       "a lighthouse at dusk",
		Parameters:   map[string]any{"steps": 28, "aspect_ratio": "16:9"},
		PrimaryModel: primary,
	})

	got := provider.params[0]
	if got["steps"] != 4 {
		t.Errorf("expected model parameters to override step parameters, got %v", got["steps"])
	}
	if got["aspect_ratio"] != "16:9" || got["prompt"] != "a lighthouse at dusk" {
		t.Errorf("unexpected merged parameters %v", got)
	}
}

func TestStepRunnerCancelledContext(t *testing.T) {
	provider := newFakeProvider().succeed("m", "asset://m", 0.01)
	catalog := newTestCatalog(t, provider, "m")
	runner := NewStepRunner(catalog, time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := runner.Run(ctx, step("main", "m"))

	if res.Status != entity.StepStatusFailed || res.Error != "execution cancelled" {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(provider.Calls()) != 0 {
		t.Error("expected no provider call after cancellation")
	}
}
