package execution

import (
	"fmt"
	"strings"

	"aida-engine/internal/domain/entity"
)

// IssueKind 计划校验问题的类别
type IssueKind string

const (
	IssueMissingField      IssueKind = "missing_field"
	IssueAmbiguousForm     IssueKind = "ambiguous_form"
	IssueDuplicateStep     IssueKind = "duplicate_step"
	IssueUnknownDependency IssueKind = "unknown_dependency"
	IssueUnknownModel      IssueKind = "unknown_model"
	IssueCycle             IssueKind = "dependency_cycle"
)

// ValidationIssue 单条校验问题
type ValidationIssue struct {
	Kind   IssueKind `json:"kind"`
	Field  string    `json:"field"`
	Reason string    `json:"reason"`
}

// ValidationError 计划校验失败，是 Execute 唯一返回的错误类型
type ValidationError struct {
	PlanID string
	Issues []ValidationIssue
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		if is.Field == "" {
			parts = append(parts, is.Reason)
			continue
		}
		parts = append(parts, is.Field+": "+is.Reason)
	}
	return "invalid execution plan: " + strings.Join(parts, "; ")
}

// Kind 返回首条问题的类别
func (e *ValidationError) Kind() IssueKind {
	if len(e.Issues) == 0 {
		return IssueMissingField
	}
	return e.Issues[0].Kind
}

func (e *ValidationError) add(kind IssueKind, field, format string, args ...any) {
	e.Issues = append(e.Issues, ValidationIssue{Kind: kind, Field: field, Reason: fmt.Sprintf(format, args...)})
}

func (e *ValidationError) orNil() error {
	if len(e.Issues) == 0 {
		return nil
	}
	return e
}

// ValidatePlan 校验计划并返回归一化后的步骤
//
// 校验在任何 provider 调用之前完成：必填字段、步骤 ID 唯一、
// depends_on 引用存在、模型在目录中注册、依赖图无环。
func ValidatePlan(plan *entity.ExecutionPlan, catalog *Catalog) ([]entity.PlanStep, error) {
	issues := &ValidationError{}
	if plan == nil {
		issues.add(IssueMissingField, "plan", "plan is required")
		return nil, issues
	}
	issues.PlanID = plan.ID

	if strings.TrimSpace(plan.ID) == "" {
		issues.add(IssueMissingField, "id", "plan id is required")
	}
	if plan.IsSingleStep() && len(plan.Steps) > 0 {
		issues.add(IssueAmbiguousForm, "steps", "plan must use either top-level primary_model or steps, not both")
		return nil, issues
	}

	steps := plan.NormalizedSteps()
	if len(steps) == 0 {
		issues.add(IssueMissingField, "steps", "plan must contain at least one step")
		return nil, issues
	}

	index := make(map[string]int, len(steps))
	for i, step := range steps {
		id := strings.TrimSpace(step.ID)
		field := fmt.Sprintf("steps[%d]", i)
		if id == "" {
			issues.add(IssueMissingField, field+".id", "step id is required")
			continue
		}
		if _, dup := index[id]; dup {
			issues.add(IssueDuplicateStep, field+".id", "duplicate step id %q", id)
			continue
		}
		index[id] = i
	}

	for i, step := range steps {
		field := fmt.Sprintf("steps[%d]", i)
		if step.PrimaryModel == nil || strings.TrimSpace(step.PrimaryModel.ModelID) == "" {
			issues.add(IssueMissingField, field+".primary_model", "primary model is required")
		}
		for j, c := range step.Candidates() {
			if strings.TrimSpace(c.ModelID) == "" {
				if j > 0 {
					issues.add(IssueMissingField, fmt.Sprintf("%s.fallback_models[%d]", field, j-1), "model id is required")
				}
				continue
			}
			if !catalog.Has(c.ModelID) {
				issues.add(IssueUnknownModel, field, "unknown model %q", c.ModelID)
			}
		}
		for _, dep := range step.DependsOn {
			if dep == step.ID {
				issues.add(IssueUnknownDependency, field+".depends_on", "step %q depends on itself", step.ID)
				continue
			}
			if _, ok := index[dep]; !ok {
				issues.add(IssueUnknownDependency, field+".depends_on", "dependency %q not found", dep)
			}
		}
	}

	if err := issues.orNil(); err != nil {
		return nil, err
	}

	if _, err := topoOrder(steps); err != nil {
		issues.add(IssueCycle, "steps", "%s", err.Error())
		return nil, issues
	}
	return steps, nil
}

// topoOrder Kahn 算法拓扑排序，入度相同时保持声明顺序
func topoOrder(steps []entity.PlanStep) ([]int, error) {
	index := make(map[string]int, len(steps))
	for i, s := range steps {
		index[s.ID] = i
	}

	indegree := make([]int, len(steps))
	dependents := make([][]int, len(steps))
	for i, s := range steps {
		for _, dep := range s.DependsOn {
			j, ok := index[dep]
			if !ok {
				return nil, fmt.Errorf("dependency %q not found", dep)
			}
			indegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	queue := make([]int, 0, len(steps))
	for i := range steps {
		if indegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	order := make([]int, 0, len(steps))
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		order = append(order, cur)
		for _, next := range dependents[cur] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) != len(steps) {
		return nil, fmt.Errorf("dependency graph contains a cycle")
	}
	return order, nil
}
