package dto

import (
	"time"

	"aida-engine/internal/domain/entity"
)

// JobResponse 异步执行任务响应
type JobResponse struct {
	ID             string     `json:"id"`
	PlanID         string     `json:"plan_id"`
	Status         string     `json:"status"`
	WorkflowID     string     `json:"workflow_id,omitempty"`
	ResultStatus   string     `json:"result_status,omitempty"`
	ErrorMsg       string     `json:"error_msg,omitempty"`
	IdempotencyKey string     `json:"idempotency_key,omitempty"`
	RetryCount     int        `json:"retry_count"`
	DurationMs     int64      `json:"duration_ms,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// CancelJobResponse 取消任务响应
type CancelJobResponse struct {
	ID        string `json:"id"`
	Cancelled bool   `json:"cancelled"`
}

// ToJobResponse 将领域实体转换为响应 DTO
func ToJobResponse(j *entity.ExecutionJob) *JobResponse {
	if j == nil {
		return nil
	}

	return &JobResponse{
		ID:             j.ID,
		PlanID:         j.PlanID,
		Status:         string(j.Status),
		WorkflowID:     j.WorkflowID,
		ResultStatus:   string(j.ResultStatus),
		ErrorMsg:       j.ErrorMessage,
		IdempotencyKey: j.IdempotencyKey,
		RetryCount:     j.RetryCount,
		DurationMs:     j.DurationMs,
		StartedAt:      j.StartedAt,
		CompletedAt:    j.CompletedAt,
		CreatedAt:      j.CreatedAt,
		UpdatedAt:      j.UpdatedAt,
	}
}
