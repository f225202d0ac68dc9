package entity

import "time"

// StepStatus 步骤状态
type StepStatus string

const (
	StepStatusSuccess StepStatus = "success"
	StepStatusFailed  StepStatus = "failed"
)

// WorkflowStatus 工作流整体状态
type WorkflowStatus string

const (
	WorkflowStatusSuccess        WorkflowStatus = "success"
	WorkflowStatusPartialSuccess WorkflowStatus = "partial_success"
	WorkflowStatusFailed         WorkflowStatus = "failed"
)

// Attempt 一次候选模型调用记录
type Attempt struct {
	Model      string  `json:"model"`
	ProviderID string  `json:"provider_id,omitempty"`
	Success    bool    `json:"success"`
	Error      string  `json:"error,omitempty"`
	Cost       float64 `json:"cost"`
	TimeMs     int64   `json:"time_ms"`
}

// StepResult 单个步骤的执行结果，创建后不再修改
type StepResult struct {
	StepID         string     `json:"step_id"`
	Status         StepStatus `json:"status"`
	ModelUsed      string     `json:"model_used"`
	ProviderID     string     `json:"provider_id,omitempty"`
	ActualCost     float64    `json:"actual_cost"`
	ActualTimeMs   int64      `json:"actual_time_ms"`
	AssetReference string     `json:"asset_reference,omitempty"`
	Content        string     `json:"content,omitempty"`
	Error          string     `json:"error,omitempty"`
	Attempts       []Attempt  `json:"attempts,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     time.Time  `json:"finished_at"`
}

// Succeeded 是否成功
func (r StepResult) Succeeded() bool {
	return r.Status == StepStatusSuccess
}

// UsedFallback 成功结果是否来自降级模型
func (r StepResult) UsedFallback() bool {
	return r.Succeeded() && len(r.Attempts) > 1
}

// WorkflowResult 一次计划执行的结果
type WorkflowResult struct {
	WorkflowID  string         `json:"workflow_id"`
	PlanID      string         `json:"plan_id"`
	Capability  string         `json:"capability,omitempty"`
	Status      WorkflowStatus `json:"status"`
	Steps       []StepResult   `json:"steps"`
	TotalCost   float64        `json:"total_cost"`
	TotalTimeMs int64          `json:"total_time_ms"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
}

// AggregateStatus 由步骤结果推导整体状态
// 全部成功为 success，全部失败（或无步骤）为 failed，其余为 partial_success。
func AggregateStatus(steps []StepResult) WorkflowStatus {
	succeeded := 0
	for _, s := range steps {
		if s.Succeeded() {
			succeeded++
		}
	}
	switch {
	case len(steps) > 0 && succeeded == len(steps):
		return WorkflowStatusSuccess
	case succeeded == 0:
		return WorkflowStatusFailed
	default:
		return WorkflowStatusPartialSuccess
	}
}

// TotalCost 汇总实际成本
func TotalCost(steps []StepResult) float64 {
	var total float64
	for _, s := range steps {
		total += s.ActualCost
	}
	return total
}

// ModelsUsed 返回各步骤实际使用的模型
func (w *WorkflowResult) ModelsUsed() []string {
	out := make([]string, 0, len(w.Steps))
	for _, s := range w.Steps {
		out = append(out, s.ModelUsed)
	}
	return out
}
