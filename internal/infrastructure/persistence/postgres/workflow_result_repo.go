package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"aida-engine/internal/domain/entity"
	"aida-engine/internal/domain/repository"
)

// workflowResultRow workflow_results 表行
// 步骤结果整体存为 jsonb；models_used 单独成列以便按模型检索。
type workflowResultRow struct {
	WorkflowID  string              `gorm:"column:workflow_id;type:uuid;primaryKey"`
	PlanID      string              `gorm:"column:plan_id;type:varchar(255);index;not null"`
	Capability  string              `gorm:"column:capability;type:varchar(100)"`
	Status      string              `gorm:"column:status;type:varchar(32);index;not null"`
	Steps       []entity.StepResult `gorm:"column:steps;type:jsonb;serializer:json"`
	ModelsUsed  pq.StringArray      `gorm:"column:models_used;type:text[]"`
	TotalCost   float64             `gorm:"column:total_cost;type:numeric(12,6)"`
	TotalTimeMs int64               `gorm:"column:total_time_ms"`
	StartedAt   time.Time           `gorm:"column:started_at;index"`
	FinishedAt  time.Time           `gorm:"column:finished_at"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
}

// TableName 指定表名
func (workflowResultRow) TableName() string {
	return "workflow_results"
}

func toWorkflowResultRow(r *entity.WorkflowResult) *workflowResultRow {
	return &workflowResultRow{
		WorkflowID:  r.WorkflowID,
		PlanID:      r.PlanID,
		Capability:  r.Capability,
		Status:      string(r.Status),
		Steps:       r.Steps,
		ModelsUsed:  pq.StringArray(r.ModelsUsed()),
		TotalCost:   r.TotalCost,
		TotalTimeMs: r.TotalTimeMs,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
	}
}

func (row *workflowResultRow) toEntity() *entity.WorkflowResult {
	return &entity.WorkflowResult{
		WorkflowID:  row.WorkflowID,
		PlanID:      row.PlanID,
		Capability:  row.Capability,
		Status:      entity.WorkflowStatus(row.Status),
		Steps:       row.Steps,
		TotalCost:   row.TotalCost,
		TotalTimeMs: row.TotalTimeMs,
		StartedAt:   row.StartedAt,
		FinishedAt:  row.FinishedAt,
	}
}

// WorkflowResultRepository 工作流结果仓储实现
type WorkflowResultRepository struct {
	client *Client
}

// NewWorkflowResultRepository 创建工作流结果仓储
func NewWorkflowResultRepository(client *Client) *WorkflowResultRepository {
	return &WorkflowResultRepository{client: client}
}

// Save 保存工作流结果
func (r *WorkflowResultRepository) Save(ctx context.Context, result *entity.WorkflowResult) error {
	ctx, span := tracer.Start(ctx, "postgres.WorkflowResultRepository.Save")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(toWorkflowResultRow(result)).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to save workflow result: %w", err)
	}
	return nil
}

// GetByID 根据 workflow_id 获取结果
func (r *WorkflowResultRepository) GetByID(ctx context.Context, workflowID string) (*entity.WorkflowResult, error) {
	ctx, span := tracer.Start(ctx, "postgres.WorkflowResultRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var row workflowResultRow
	if err := db.First(&row, "workflow_id = ?", workflowID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get workflow result: %w", err)
	}
	return row.toEntity(), nil
}

// ListByPlan 获取计划的历史执行结果
func (r *WorkflowResultRepository) ListByPlan(ctx context.Context, planID string, pagination repository.Pagination) (*repository.PagedResult[*entity.WorkflowResult], error) {
	ctx, span := tracer.Start(ctx, "postgres.WorkflowResultRepository.ListByPlan")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&workflowResultRow{}).Where("plan_id = ?", planID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count workflow results: %w", err)
	}

	var rows []*workflowResultRow
	if err := query.Order("started_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&rows).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list workflow results: %w", err)
	}

	items := make([]*entity.WorkflowResult, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return repository.NewPagedResult(items, total, pagination), nil
}
