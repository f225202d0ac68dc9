// Package workflow 提供计划执行的应用服务：同步执行、结果查询与异步任务
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"aida-engine/internal/domain/entity"
	"aida-engine/internal/domain/repository"
	apperrors "aida-engine/pkg/errors"
	"aida-engine/pkg/logger"
)

// Executor 计划执行器
type Executor interface {
	Execute(ctx context.Context, plan *entity.ExecutionPlan) (*entity.WorkflowResult, error)
	Validate(plan *entity.ExecutionPlan) error
}

// ResultCache 工作流结果缓存
type ResultCache interface {
	// GetOrLoad 缓存未命中时调用 load 并回填
	GetOrLoad(ctx context.Context, workflowID string, load func(ctx context.Context) (*entity.WorkflowResult, error)) (*entity.WorkflowResult, error)
	Set(ctx context.Context, result *entity.WorkflowResult) error
}

// JobPublisher 异步任务投递
type JobPublisher interface {
	PublishExecutionJob(ctx context.Context, jobID, planID string) error
}

// Service 工作流应用服务
type Service struct {
	executor  Executor
	results   repository.WorkflowResultRepository
	jobs      repository.JobRepository
	tx        repository.Transactor
	cache     ResultCache
	publisher JobPublisher
	log       *slog.Logger
	newID     func() string
}

// NewService 创建工作流服务
// results/jobs/cache/publisher 均可为 nil，对应能力随之关闭。
func NewService(
	executor Executor,
	results repository.WorkflowResultRepository,
	jobs repository.JobRepository,
	cache ResultCache,
	publisher JobPublisher,
	log *slog.Logger,
) *Service {
	if log == nil {
		log = logger.Component("workflow")
	}
	return &Service{
		executor:  executor,
		results:   results,
		jobs:      jobs,
		cache:     cache,
		publisher: publisher,
		log:       log,
		newID:     uuid.NewString,
	}
}

// WithTransactor 设置事务管理器，任务状态的多步更新在同一事务中完成
func (s *Service) WithTransactor(tx repository.Transactor) *Service {
	s.tx = tx
	return s
}

func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return s.tx.WithTransaction(ctx, fn)
}

// Execute 同步执行计划并保存结果
//
// 保存失败只记录日志，不影响返回的结果。
func (s *Service) Execute(ctx context.Context, plan *entity.ExecutionPlan) (*entity.WorkflowResult, error) {
	result, err := s.executor.Execute(ctx, plan)
	if err != nil {
		return nil, err
	}
	s.persist(ctx, result)
	return result, nil
}

func (s *Service) persist(ctx context.Context, result *entity.WorkflowResult) {
	// 请求结束后仍需完成写入
	ctx = context.WithoutCancel(ctx)
	log := logger.Enrich(ctx, s.log).With("workflow_id", result.WorkflowID)

	if s.results != nil {
		if err := s.results.Save(ctx, result); err != nil {
			log.Warn("failed to persist workflow result", "error", err.Error())
		}
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, result); err != nil {
			log.Warn("failed to cache workflow result", "error", err.Error())
		}
	}
}

// GetResult 获取工作流结果
func (s *Service) GetResult(ctx context.Context, workflowID string) (*entity.WorkflowResult, error) {
	if s.results == nil {
		return nil, apperrors.ErrExecutionNotFound
	}
	load := func(ctx context.Context) (*entity.WorkflowResult, error) {
		res, err := s.results.GetByID(ctx, workflowID)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load workflow result")
		}
		if res == nil {
			return nil, apperrors.ErrExecutionNotFound
		}
		return res, nil
	}
	if s.cache == nil {
		return load(ctx)
	}
	return s.cache.GetOrLoad(ctx, workflowID, load)
}

// ListByPlan 获取计划的历史执行结果
func (s *Service) ListByPlan(ctx context.Context, planID string, pagination repository.Pagination) (*repository.PagedResult[*entity.WorkflowResult], error) {
	if s.results == nil {
		return repository.NewPagedResult[*entity.WorkflowResult](nil, 0, pagination), nil
	}
	page, err := s.results.ListByPlan(ctx, planID, pagination)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to list workflow results")
	}
	return page, nil
}

// Submit 校验计划并创建异步任务
//
// 携带幂等键时，若已存在同键任务则直接返回该任务，created 为 false。
func (s *Service) Submit(ctx context.Context, plan *entity.ExecutionPlan, idempotencyKey string) (job *entity.ExecutionJob, created bool, err error) {
	if s.jobs == nil || s.publisher == nil {
		return nil, false, apperrors.ErrServiceUnavailable.WithDetail("async execution is not configured")
	}
	if err := s.executor.Validate(plan); err != nil {
		return nil, false, err
	}

	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if idempotencyKey != "" {
		existing, err := s.jobs.GetByIdempotencyKey(ctx, idempotencyKey)
		if err != nil {
			return nil, false, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to look up job")
		}
		if existing != nil {
			return existing, false, nil
		}
	}

	job = entity.NewExecutionJob(s.newID(), plan, idempotencyKey)
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, false, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to create job")
	}

	ctx = logger.WithContext(ctx, logger.JobIDKey, job.ID)
	if err := s.publisher.PublishExecutionJob(ctx, job.ID, plan.ID); err != nil {
		job.Fail(fmt.Sprintf("enqueue failed: %v", err))
		if uerr := s.jobs.Update(context.WithoutCancel(ctx), job); uerr != nil {
			logger.Enrich(ctx, s.log).Warn("failed to mark job as failed", "error", uerr.Error())
		}
		return nil, false, apperrors.ErrQueueError.WithError(err)
	}

	logger.Enrich(ctx, s.log).Info("execution job submitted", "plan_id", plan.ID)
	return job, true, nil
}

// RunJob 执行异步任务（由 worker 调用）
//
// 任务不存在、已取消或已被其他 worker 领取时直接返回 nil，避免重复执行。
// 返回的错误表示基础设施失败，调用方可重试。
func (s *Service) RunJob(ctx context.Context, jobID string) error {
	ctx = logger.WithContext(ctx, logger.JobIDKey, jobID)
	log := logger.Enrich(ctx, s.log)

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if job == nil {
		log.Warn("job not found, dropping message")
		return nil
	}

	claimed, err := s.jobs.TransitionStatus(ctx, jobID, entity.JobStatusPending, entity.JobStatusRunning)
	if err != nil {
		return fmt.Errorf("claim job: %w", err)
	}
	if !claimed {
		log.Info("job is not pending, skipping", "status", job.Status)
		return nil
	}

	job.Start()
	if err := s.jobs.Update(ctx, job); err != nil {
		log.Warn("failed to record job start", "error", err.Error())
	}

	result, execErr := s.Execute(ctx, job.Plan)
	if execErr != nil {
		job.Fail(execErr.Error())
	} else {
		job.Complete(result)
	}
	if err := s.jobs.Update(context.WithoutCancel(ctx), job); err != nil {
		return fmt.Errorf("save job outcome: %w", err)
	}

	log.Info("execution job finished", "status", job.Status, "workflow_id", job.WorkflowID)
	return nil
}

// GetJob 获取异步任务
func (s *Service) GetJob(ctx context.Context, jobID string) (*entity.ExecutionJob, error) {
	if s.jobs == nil {
		return nil, apperrors.ErrJobNotFound
	}
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load job")
	}
	if job == nil {
		return nil, apperrors.ErrJobNotFound
	}
	return job, nil
}

// CancelJob 取消尚未开始的任务
func (s *Service) CancelJob(ctx context.Context, jobID string) (*entity.ExecutionJob, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.Cancel() {
		return nil, apperrors.ErrJobNotCancelable.WithDetail(fmt.Sprintf("job status is %s", job.Status))
	}

	err = s.inTx(ctx, func(ctx context.Context) error {
		ok, err := s.jobs.TransitionStatus(ctx, jobID, entity.JobStatusPending, entity.JobStatusCancelled)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to cancel job")
		}
		if !ok {
			return apperrors.ErrJobNotCancelable
		}
		if err := s.jobs.Update(ctx, job); err != nil {
			return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to cancel job")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}
