package repository

import (
	"context"

	"aida-engine/internal/domain/entity"
)

// WorkflowResultRepository 工作流结果仓储接口
// 结果只写一次，不提供更新操作。
type WorkflowResultRepository interface {
	// Save 保存工作流结果
	Save(ctx context.Context, result *entity.WorkflowResult) error

	// GetByID 根据 workflow_id 获取结果，不存在时返回 nil, nil
	GetByID(ctx context.Context, workflowID string) (*entity.WorkflowResult, error)

	// ListByPlan 获取计划的历史执行结果（按开始时间倒序）
	ListByPlan(ctx context.Context, planID string, pagination Pagination) (*PagedResult[*entity.WorkflowResult], error)
}
