// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"aida-engine/internal/domain/entity"
	"aida-engine/internal/domain/repository"
)

// JobRepository 异步执行任务仓储实现
type JobRepository struct {
	client *Client
}

// NewJobRepository 创建任务仓储
func NewJobRepository(client *Client) *JobRepository {
	return &JobRepository{client: client}
}

// Create 创建任务
func (r *JobRepository) Create(ctx context.Context, job *entity.ExecutionJob) error {
	ctx, span := tracer.Start(ctx, "postgres.JobRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(job).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取任务
func (r *JobRepository) GetByID(ctx context.Context, id string) (*entity.ExecutionJob, error) {
	ctx, span := tracer.Start(ctx, "postgres.JobRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var job entity.ExecutionJob
	if err := db.First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// GetByIdempotencyKey 根据幂等键获取任务
func (r *JobRepository) GetByIdempotencyKey(ctx context.Context, key string) (*entity.ExecutionJob, error) {
	ctx, span := tracer.Start(ctx, "postgres.JobRepository.GetByIdempotencyKey")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var job entity.ExecutionJob
	if err := db.First(&job, "idempotency_key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get job by idempotency key: %w", err)
	}
	return &job, nil
}

// Update 更新任务
func (r *JobRepository) Update(ctx context.Context, job *entity.ExecutionJob) error {
	ctx, span := tracer.Start(ctx, "postgres.JobRepository.Update")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Save(job).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update job: %w", err)
	}
	return nil
}

// TransitionStatus 条件更新任务状态（乐观并发，防止重复领取）
func (r *JobRepository) TransitionStatus(ctx context.Context, id string, from, to entity.JobStatus) (bool, error) {
	ctx, span := tracer.Start(ctx, "postgres.JobRepository.TransitionStatus")
	defer span.End()

	updates := map[string]interface{}{"status": to}
	switch to {
	case entity.JobStatusRunning:
		updates["started_at"] = time.Now()
	case entity.JobStatusCancelled, entity.JobStatusCompleted, entity.JobStatusFailed:
		updates["completed_at"] = time.Now()
	}

	db := getDB(ctx, r.client.db)
	res := db.Model(&entity.ExecutionJob{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		span.RecordError(res.Error)
		return false, fmt.Errorf("failed to transition job status: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ListByPlan 获取计划下的任务列表
func (r *JobRepository) ListByPlan(ctx context.Context, planID string, pagination repository.Pagination) (*repository.PagedResult[*entity.ExecutionJob], error) {
	ctx, span := tracer.Start(ctx, "postgres.JobRepository.ListByPlan")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.ExecutionJob{}).Where("plan_id = ?", planID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}

	var jobs []*entity.ExecutionJob
	if err := query.Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&jobs).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return repository.NewPagedResult(jobs, total, pagination), nil
}
