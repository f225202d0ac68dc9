package execution

import (
	"errors"
	"strings"
	"testing"

	"aida-engine/internal/domain/entity"
)

func TestValidatePlan(t *testing.T) {
	catalog := newTestCatalog(t, newFakeProvider(), "a", "b")

	cases := []struct {
		name string
		plan *entity.ExecutionPlan
		kind IssueKind
		want string
	}{
		{
			name: "missing id",
			plan: &entity.ExecutionPlan{Steps: []entity.PlanStep{step("s", "a")}},
			kind: IssueMissingField,
			want: "plan id is required",
		},
		{
			name: "no steps",
			plan: &entity.ExecutionPlan{ID: "p"},
			kind: IssueMissingField,
			want: "at least one step",
		},
		{
			name: "both forms",
			plan: &entity.ExecutionPlan{ID: "p", PrimaryModel: sel("a"), Steps: []entity.PlanStep{step("s", "a")}},
			kind: IssueAmbiguousForm,
			want: "not both",
		},
		{
			name: "missing primary",
			plan: &entity.ExecutionPlan{ID: "p", Steps: []entity.PlanStep{{ID: "s"}}},
			kind: IssueMissingField,
			want: "primary model is required",
		},
		{
			name: "duplicate step",
			plan: &entity.ExecutionPlan{ID: "p", Steps: []entity.PlanStep{step("s", "a"), step("s", "b")}},
			kind: IssueDuplicateStep,
			want: `duplicate step id "s"`,
		},
		{
			name: "unknown dependency",
			plan: &entity.ExecutionPlan{ID: "p", Steps: []entity.PlanStep{step("s", "a", "ghost")}},
			kind: IssueUnknownDependency,
			want: `dependency "ghost" not found`,
		},
		{
			name: "self dependency",
			plan: &entity.ExecutionPlan{ID: "p", Steps: []entity.PlanStep{step("s", "a", "s")}},
			kind: IssueUnknownDependency,
			want: "depends on itself",
		},
		{
			name: "unknown model",
			plan: &entity.ExecutionPlan{ID: "p", Steps: []entity.PlanStep{{ID: "s", PrimaryModel: sel("a"), FallbackModels: sels("zeta")}}},
			kind: IssueUnknownModel,
			want: `unknown model "zeta"`,
		},
		{
			name: "cycle",
			plan: &entity.ExecutionPlan{ID: "p", Steps: []entity.PlanStep{step("x", "a", "z"), step("y", "a", "x"), step("z", "a", "y")}},
			kind: IssueCycle,
			want: "dependency graph contains a cycle",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidatePlan(tc.plan, catalog)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Kind() != tc.kind {
				t.Errorf("kind = %s, want %s", verr.Kind(), tc.kind)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err.Error(), tc.want)
			}
		})
	}
}

func TestValidatePlanAcceptsDiamond(t *testing.T) {
	catalog := newTestCatalog(t, newFakeProvider(), "a")
	plan := &entity.ExecutionPlan{ID: "p", Steps: []entity.PlanStep{
		step("top", "a"),
		step("left", "a", "top"),
		step("right", "a", "top"),
		step("bottom", "a", "left", "right"),
	}}

	steps, err := ValidatePlan(plan, catalog)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(steps) != 4 {
		t.Errorf("expected 4 steps, got %d", len(steps))
	}
}

func TestNewCatalogRejectsDuplicates(t *testing.T) {
	p := newFakeProvider()
	if _, err := NewCatalog(ModelEntry{ModelID: "a", Adapter: p}, ModelEntry{ModelID: "a", Adapter: p}); err == nil {
		t.Error("expected duplicate model error")
	}
	if _, err := NewCatalog(ModelEntry{ModelID: "a"}); err == nil {
		t.Error("expected missing adapter error")
	}

	c, err := NewCatalog(ModelEntry{ModelID: "b", Adapter: p}, ModelEntry{ModelID: "a", Adapter: p})
	if err != nil {
		t.Fatal(err)
	}
	models := c.Models()
	if len(models) != 2 || models[0].ModelID != "a" {
		t.Errorf("expected models sorted by id, got %+v", models)
	}
}
