package dto

import (
	"time"

	"aida-engine/internal/domain/entity"
)

// StepResultResponse 步骤结果响应
type StepResultResponse struct {
	StepID         string           `json:"step_id"`
	Status         string           `json:"status"`
	ModelUsed      string           `json:"model_used"`
	ProviderID     string           `json:"provider_id,omitempty"`
	ActualCost     float64          `json:"actual_cost"`
	ActualTimeMs   int64            `json:"actual_time_ms"`
	AssetReference string           `json:"asset_reference,omitempty"`
	Content        string           `json:"content,omitempty"`
	Error          string           `json:"error,omitempty"`
	UsedFallback   bool             `json:"used_fallback"`
	Attempts       []entity.Attempt `json:"attempts,omitempty"`
	StartedAt      time.Time        `json:"started_at"`
	FinishedAt     time.Time        `json:"finished_at"`
}

// ExecutionResponse 工作流结果响应
type ExecutionResponse struct {
	WorkflowID  string                `json:"workflow_id"`
	PlanID      string                `json:"plan_id"`
	Capability  string                `json:"capability,omitempty"`
	Status      string                `json:"status"`
	Steps       []*StepResultResponse `json:"steps"`
	ModelsUsed  []string              `json:"models_used"`
	TotalCost   float64               `json:"total_cost"`
	TotalTimeMs int64                 `json:"total_time_ms"`
	StartedAt   time.Time             `json:"started_at"`
	FinishedAt  time.Time             `json:"finished_at"`
}

// ExecutionListResponse 执行历史列表响应
type ExecutionListResponse struct {
	Executions []*ExecutionResponse `json:"executions"`
}

// ToExecutionResponse 将工作流结果转换为响应 DTO
func ToExecutionResponse(r *entity.WorkflowResult) *ExecutionResponse {
	if r == nil {
		return nil
	}

	resp := &ExecutionResponse{
		WorkflowID:  r.WorkflowID,
		PlanID:      r.PlanID,
		Capability:  r.Capability,
		Status:      string(r.Status),
		Steps:       make([]*StepResultResponse, 0, len(r.Steps)),
		ModelsUsed:  r.ModelsUsed(),
		TotalCost:   r.TotalCost,
		TotalTimeMs: r.TotalTimeMs,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
	}
	for _, s := range r.Steps {
		resp.Steps = append(resp.Steps, &StepResultResponse{
			StepID:         s.StepID,
			Status:         string(s.Status),
			ModelUsed:      s.ModelUsed,
			ProviderID:     s.ProviderID,
			ActualCost:     s.ActualCost,
			ActualTimeMs:   s.ActualTimeMs,
			AssetReference: s.AssetReference,
			Content:        s.Content,
			Error:          s.Error,
			UsedFallback:   s.UsedFallback(),
			Attempts:       s.Attempts,
			StartedAt:      s.StartedAt,
			FinishedAt:     s.FinishedAt,
		})
	}
	return resp
}

// ToExecutionListResponse 将结果列表转换为响应 DTO
func ToExecutionListResponse(results []*entity.WorkflowResult) *ExecutionListResponse {
	resp := &ExecutionListResponse{
		Executions: make([]*ExecutionResponse, 0, len(results)),
	}
	for _, r := range results {
		resp.Executions = append(resp.Executions, ToExecutionResponse(r))
	}
	return resp
}
