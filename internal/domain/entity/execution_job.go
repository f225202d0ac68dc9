package entity

import (
	"time"
)

// JobStatus 任务状态
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// ExecutionJob 异步执行任务
type ExecutionJob struct {
	ID             string         `json:"id" gorm:"type:uuid;primaryKey"`
	PlanID         string         `json:"plan_id" gorm:"type:varchar(255);index;not null"`
	Plan           *ExecutionPlan `json:"plan" gorm:"type:jsonb;serializer:json"`
	Status         JobStatus      `json:"status" gorm:"type:varchar(32);index;default:'pending'"`
	WorkflowID     string         `json:"workflow_id,omitempty" gorm:"type:varchar(64)"`
	ResultStatus   WorkflowStatus `json:"result_status,omitempty" gorm:"type:varchar(32)"`
	ErrorMessage   string         `json:"error_message,omitempty" gorm:"type:text"`
	IdempotencyKey string         `json:"idempotency_key,omitempty" gorm:"type:varchar(255);uniqueIndex:idx_execution_jobs_idem,where:idempotency_key <> ''"`
	RetryCount     int            `json:"retry_count" gorm:"default:0"`
	DurationMs     int64          `json:"duration_ms,omitempty"`
	CreatedAt      time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	StartedAt      *time.Time     `json:"started_at,omitempty"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
}

// TableName 指定表名
func (ExecutionJob) TableName() string {
	return "execution_jobs"
}

// NewExecutionJob 创建新任务
func NewExecutionJob(id string, plan *ExecutionPlan, idempotencyKey string) *ExecutionJob {
	return &ExecutionJob{
		ID:             id,
		PlanID:         plan.ID,
		Plan:           plan,
		Status:         JobStatusPending,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      time.Now(),
	}
}

// Start 开始执行任务
func (j *ExecutionJob) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
}

// Complete 完成任务并关联工作流结果
func (j *ExecutionJob) Complete(result *WorkflowResult) {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.WorkflowID = result.WorkflowID
	j.ResultStatus = result.Status
	j.CompletedAt = &now
	if j.StartedAt != nil {
		j.DurationMs = now.Sub(*j.StartedAt).Milliseconds()
	}
}

// Fail 任务失败
func (j *ExecutionJob) Fail(errMsg string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.ErrorMessage = errMsg
	j.CompletedAt = &now
	if j.StartedAt != nil {
		j.DurationMs = now.Sub(*j.StartedAt).Milliseconds()
	}
}

// Cancel 取消任务，仅 pending 状态可取消
func (j *ExecutionJob) Cancel() bool {
	if j.Status != JobStatusPending {
		return false
	}
	now := time.Now()
	j.Status = JobStatusCancelled
	j.CompletedAt = &now
	return true
}

// IsTerminal 是否已处于终态
func (j *ExecutionJob) IsTerminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}
