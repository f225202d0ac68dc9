// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"aida-engine/internal/domain/entity"
)

// JobRepository 异步执行任务仓储接口
type JobRepository interface {
	// Create 创建任务
	Create(ctx context.Context, job *entity.ExecutionJob) error

	// GetByID 根据 ID 获取任务，不存在时返回 nil, nil
	GetByID(ctx context.Context, id string) (*entity.ExecutionJob, error)

	// GetByIdempotencyKey 根据幂等键获取任务
	GetByIdempotencyKey(ctx context.Context, key string) (*entity.ExecutionJob, error)

	// Update 更新任务
	Update(ctx context.Context, job *entity.ExecutionJob) error

	// TransitionStatus 仅当当前状态为 from 时更新为 to，返回是否更新成功
	TransitionStatus(ctx context.Context, id string, from, to entity.JobStatus) (bool, error)

	// ListByPlan 获取计划下的任务列表
	ListByPlan(ctx context.Context, planID string, pagination Pagination) (*PagedResult[*entity.ExecutionJob], error)
}
