package entity

import (
	"encoding/json"
	"testing"
)

func TestExecutionPlanSingleStepNormalization(t *testing.T) {
	raw := `{
		"id": "plan-1",
		"capability": "generate_image",
		"prompt": "a red fox",
		"primary_model": {"name": "flux-pro-1.1", "provider_id": "bfl", "model_id": "flux-pro-1.1", "estimated_cost": 0.05, "estimated_time_ms": 8000},
		"fallback_models": ["flux-schnell", {"model_id": "seedream-4.0"}]
	}`

	var plan ExecutionPlan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	steps := plan.NormalizedSteps()
	if len(steps) != 1 || steps[0].ID != MainStepID {
		t.Fatalf("expected one step %q, got %+v", MainStepID, steps)
	}
	if steps[0].Prompt != "a red fox" {
		t.Errorf("expected prompt carried to step, got %q", steps[0].Prompt)
	}

	candidates := steps[0].Candidates()
	want := []string{"flux-pro-1.1", "flux-schnell", "seedream-4.0"}
	if len(candidates) != len(want) {
		t.Fatalf("expected %d candidates, got %d", len(want), len(candidates))
	}
	for i, c := range candidates {
		if c.ModelID != want[i] || c.DisplayName() != want[i] {
			t.Errorf("candidate %d = %+v, want %s", i, c, want[i])
		}
	}
	if candidates[0].EstimatedCost != 0.05 {
		t.Errorf("expected estimate preserved, got %v", candidates[0].EstimatedCost)
	}
}

func TestExecutionPlanMultiStep(t *testing.T) {
	raw := `{
		"id": "plan-2",
		"steps": [
			{"id": "image", "primary_model": "flux-schnell"},
			{"id": "video", "primary_model": "kling-2.1", "depends_on": ["image"]}
		]
	}`

	var plan ExecutionPlan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if plan.IsSingleStep() {
		t.Fatal("expected multi-step form")
	}

	steps := plan.NormalizedSteps()
	if len(steps) != 2 || steps[1].DependsOn[0] != "image" {
		t.Fatalf("unexpected steps: %+v", steps)
	}
	if got := plan.ModelIDs(); len(got) != 2 || got[0] != "flux-schnell" || got[1] != "kling-2.1" {
		t.Errorf("unexpected model ids: %v", got)
	}
}

func TestModelSelectionNameDefaults(t *testing.T) {
	var byName ModelSelection
	if err := json.Unmarshal([]byte(`{"name": "flux-schnell"}`), &byName); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if byName.ModelID != "flux-schnell" {
		t.Errorf("expected model_id to default to name, got %q", byName.ModelID)
	}

	var display ModelSelection
	if err := json.Unmarshal([]byte(`{"name": "Flux Schnell", "model_id": "flux-schnell"}`), &display); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if display.DisplayName() != "Flux Schnell" || display.ModelID != "flux-schnell" {
		t.Errorf("unexpected selection: %+v", display)
	}
}

func TestAggregateStatus(t *testing.T) {
	ok := StepResult{Status: StepStatusSuccess}
	bad := StepResult{Status: StepStatusFailed}

	cases := []struct {
		name  string
		steps []StepResult
		want  WorkflowStatus
	}{
		{"all success", []StepResult{ok, ok}, WorkflowStatusSuccess},
		{"all failed", []StepResult{bad, bad}, WorkflowStatusFailed},
		{"mixed", []StepResult{ok, bad}, WorkflowStatusPartialSuccess},
		{"empty", nil, WorkflowStatusFailed},
	}
	for _, tc := range cases {
		if got := AggregateStatus(tc.steps); got != tc.want {
			t.Errorf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestExecutionJobTransitions(t *testing.T) {
	job := NewExecutionJob("job-1", &ExecutionPlan{ID: "plan-1"}, "")
	if !job.Cancel() || job.Status != JobStatusCancelled {
		t.Fatalf("expected pending job to cancel, got %s", job.Status)
	}

	job = NewExecutionJob("job-2", &ExecutionPlan{ID: "plan-1"}, "")
	job.Start()
	if job.Cancel() {
		t.Fatal("running job must not be cancelable")
	}
	job.Complete(&WorkflowResult{WorkflowID: "wf-1", Status: WorkflowStatusPartialSuccess})
	if !job.IsTerminal() || job.WorkflowID != "wf-1" || job.ResultStatus != WorkflowStatusPartialSuccess {
		t.Errorf("unexpected completed job: %+v", job)
	}
}
