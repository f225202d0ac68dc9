package execution

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"aida-engine/internal/domain/entity"
)

func fluxPlan() *entity.ExecutionPlan {
	return &entity.ExecutionPlan{
		ID:         "plan-flux",
		Capability: "generate_image",
		Prompt:     "a red fox in snow",
		PrimaryModel: &entity.ModelSelection{
			Name: "flux-pro-1.1", ProviderID: "bfl", ModelID: "flux-pro-1.1",
			EstimatedCost: 0.05, EstimatedTimeMs: 8000,
		},
		FallbackModels: sels("flux-schnell", "seedream-4.0"),
	}
}

func TestCoordinatorFluxFallbackScenario(t *testing.T) {
	provider := newFakeProvider().
		fail("flux-pro-1.1", "dial tcp: connection refused").
		succeed("flux-schnell", "https://cdn.example.com/fox.png", 0.03)
	catalog := newTestCatalog(t, provider, "flux-pro-1.1", "flux-schnell", "seedream-4.0")
	coord := NewCoordinator(catalog, Options{CallTimeout: time.Second}, nil)

	res, err := coord.Execute(context.Background(), fluxPlan())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if res.Status != entity.WorkflowStatusSuccess {
		t.Errorf("expected success, got %s", res.Status)
	}
	if len(res.Steps) != 1 || res.Steps[0].StepID != entity.MainStepID {
		t.Fatalf("expected single normalized step, got %+v", res.Steps)
	}
	if res.Steps[0].ModelUsed != "flux-schnell" {
		t.Errorf("expected model_used flux-schnell, got %s", res.Steps[0].ModelUsed)
	}
	if math.Abs(res.TotalCost-0.03) > 1e-9 {
		t.Errorf("expected total cost 0.03, got %v", res.TotalCost)
	}
	if res.TotalCost >= 0.05 {
		t.Errorf("total cost must reflect actual fallback cost, not the primary estimate")
	}
	if got := len(provider.Calls()); got != 2 {
		t.Errorf("expected 2 provider calls, got %d", got)
	}
	if res.WorkflowID == "" || res.PlanID != "plan-flux" {
		t.Errorf("unexpected identifiers %q / %q", res.WorkflowID, res.PlanID)
	}
}

func TestCoordinatorPartialSuccess(t *testing.T) {
	provider := newFakeProvider().
		succeed("img", "asset://img", 0.04).
		fail("vid", "video provider unavailable")
	catalog := newTestCatalog(t, provider, "img", "vid")
	coord := NewCoordinator(catalog, Options{CallTimeout: time.Second}, nil)

	res, err := coord.Execute(context.Background(), &entity.ExecutionPlan{
		ID: "plan-mixed",
		Steps: []entity.PlanStep{
			step("image", "img"),
			step("video", "vid", "image"),
		},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if res.Status != entity.WorkflowStatusPartialSuccess {
		t.Errorf("expected partial_success, got %s", res.Status)
	}
	if res.Steps[1].Error != "vid: video provider unavailable" {
		t.Errorf("unexpected failure summary %q", res.Steps[1].Error)
	}
	if math.Abs(res.TotalCost-0.04) > 1e-9 {
		t.Errorf("expected total cost 0.04, got %v", res.TotalCost)
	}
}

func TestCoordinatorAllFailed(t *testing.T) {
	provider := newFakeProvider().fail("a", "down").fail("b", "down")
	catalog := newTestCatalog(t, provider, "a", "b")
	coord := NewCoordinator(catalog, Options{}, nil)

	res, err := coord.Execute(context.Background(), &entity.ExecutionPlan{
		ID:    "plan-down",
		Steps: []entity.PlanStep{step("one", "a"), step("two", "b")},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != entity.WorkflowStatusFailed || res.TotalCost != 0 {
		t.Errorf("expected failed with zero cost, got %s / %v", res.Status, res.TotalCost)
	}
}

func TestCoordinatorRepeatedExecutionShape(t *testing.T) {
	provider := newFakeProvider().succeed("a", "asset://a", 0.01).succeed("b", "asset://b", 0.02)
	catalog := newTestCatalog(t, provider, "a", "b")
	coord := NewCoordinator(catalog, Options{}, nil)

	plan := &entity.ExecutionPlan{
		ID:    "plan-repeat",
		Steps: []entity.PlanStep{step("second", "b", "first"), step("first", "a")},
	}

	first, err := coord.Execute(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}
	second, err := coord.Execute(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}

	if first.WorkflowID == second.WorkflowID {
		t.Error("expected a fresh workflow id per execution")
	}
	for i := range plan.Steps {
		if first.Steps[i].StepID != plan.Steps[i].ID || second.Steps[i].StepID != plan.Steps[i].ID {
			t.Errorf("step %d out of declared order", i)
		}
	}
}

func TestCoordinatorRejectsInvalidPlanWithoutCalls(t *testing.T) {
	provider := newFakeProvider().succeed("a", "asset://a", 0.01)
	catalog := newTestCatalog(t, provider, "a")
	coord := NewCoordinator(catalog, Options{}, nil)

	res, err := coord.Execute(context.Background(), &entity.ExecutionPlan{
		ID:    "plan-cycle",
		Steps: []entity.PlanStep{step("x", "a", "y"), step("y", "a", "x")},
	})

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Kind() != IssueCycle {
		t.Errorf("expected cycle issue, got %s", verr.Kind())
	}
	if res != nil {
		t.Error("expected no result for an invalid plan")
	}
	if len(provider.Calls()) != 0 {
		t.Error("no provider may be called for an invalid plan")
	}
}

func TestCoordinatorPlanTimeout(t *testing.T) {
	provider := newFakeProvider().hang("slow").succeed("fast", "asset://fast", 0.02)
	catalog := newTestCatalog(t, provider, "slow", "fast")
	coord := NewCoordinator(catalog, Options{CallTimeout: 5 * time.Second, PlanTimeout: 50 * time.Millisecond}, nil)

	res, err := coord.Execute(context.Background(), &entity.ExecutionPlan{
		ID: "plan-deadline",
		Steps: []entity.PlanStep{
			step("quick", "fast"),
			step("long", "slow"),
			step("after", "fast", "long"),
		},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if res.Status != entity.WorkflowStatusPartialSuccess {
		t.Errorf("expected partial_success, got %s", res.Status)
	}
	if res.Steps[1].Status != entity.StepStatusFailed {
		t.Errorf("expected hanging step to fail, got %s", res.Steps[1].Status)
	}
	if res.Steps[2].Error != "plan deadline exceeded" {
		t.Errorf("expected abandoned step marked with deadline, got %q", res.Steps[2].Error)
	}
	if res.TotalTimeMs > 5000 {
		t.Errorf("plan deadline not enforced, took %dms", res.TotalTimeMs)
	}
}

func TestCoordinatorStepInheritsCapability(t *testing.T) {
	provider := newFakeProvider().succeed("a", "asset://a", 0.01)
	catalog := newTestCatalog(t, provider, "a")
	coord := NewCoordinator(catalog, Options{}, nil)

	plan := &entity.ExecutionPlan{ID: "p", Capability: "generate_image", Steps: []entity.PlanStep{step("s", "a")}}
	if _, err := coord.Execute(context.Background(), plan); err != nil {
		t.Fatal(err)
	}
	if plan.Steps[0].Capability != "" {
		t.Error("plan must not be mutated by execution")
	}
}
