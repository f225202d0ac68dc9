package execution

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"aida-engine/internal/domain/entity"
	"aida-engine/pkg/logger"
	"aida-engine/pkg/metrics"
	"aida-engine/pkg/tracer"
)

// Options 执行引擎选项
type Options struct {
	CallTimeout      time.Duration
	PlanTimeout      time.Duration
	DependencyPolicy DependencyPolicy
	MaxParallel      int
}

// Coordinator 计划执行入口：校验、调度、汇总
//
// 除计划校验失败外不返回错误；provider 失败全部体现在结果中。
// 协调器本身不重试，同一计划再次执行会得到新的 workflow_id。
type Coordinator struct {
	catalog   *Catalog
	scheduler *Scheduler
	opts      Options
	log       *slog.Logger
	newID     func() string
}

// NewCoordinator 创建执行协调器
func NewCoordinator(catalog *Catalog, opts Options, log *slog.Logger) *Coordinator {
	if log == nil {
		log = logger.Component("execution")
	}
	runner := NewStepRunner(catalog, opts.CallTimeout, log.With("stage", "runner"))
	return &Coordinator{
		catalog:   catalog,
		scheduler: NewScheduler(runner, opts.DependencyPolicy, opts.MaxParallel, log.With("stage", "scheduler")),
		opts:      opts,
		log:       log,
		newID:     uuid.NewString,
	}
}

// Catalog 返回模型目录
func (c *Coordinator) Catalog() *Catalog {
	return c.catalog
}

// Validate 校验计划但不执行
func (c *Coordinator) Validate(plan *entity.ExecutionPlan) error {
	_, err := ValidatePlan(plan, c.catalog)
	return err
}

// Execute 执行计划
func (c *Coordinator) Execute(ctx context.Context, plan *entity.ExecutionPlan) (*entity.WorkflowResult, error) {
	ctx, span := tracer.Start(ctx, "execution.Execute")
	defer span.End()

	steps, err := ValidatePlan(plan, c.catalog)
	if err != nil {
		metrics.PlanValidationFailures.Inc()
		tracer.Fail(span, err)
		logger.Enrich(ctx, c.log).Warn("plan rejected", "error", err.Error())
		return nil, err
	}

	workflowID := c.newID()
	ctx = logger.WithContext(ctx, logger.WorkflowIDKey, workflowID)
	ctx = logger.WithContext(ctx, logger.PlanIDKey, plan.ID)
	span.SetAttributes(
		attribute.String("workflow.id", workflowID),
		attribute.String("plan.id", plan.ID),
		attribute.Int("plan.steps", len(steps)),
	)
	log := logger.Enrich(ctx, c.log)
	log.Info("execution started", "steps", len(steps), "capability", plan.Capability)

	started := time.Now()
	runCtx := ctx
	if c.opts.PlanTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.opts.PlanTimeout)
		defer cancel()
	}

	steps = withPlanDefaults(plan, steps)
	results := c.scheduler.Run(runCtx, steps)

	finished := started
	for _, r := range results {
		if r.FinishedAt.After(finished) {
			finished = r.FinishedAt
		}
	}

	result := &entity.WorkflowResult{
		WorkflowID:  workflowID,
		PlanID:      plan.ID,
		Capability:  plan.Capability,
		Status:      entity.AggregateStatus(results),
		Steps:       results,
		TotalCost:   entity.TotalCost(results),
		TotalTimeMs: finished.Sub(started).Milliseconds(),
		StartedAt:   started,
		FinishedAt:  finished,
	}

	span.SetAttributes(
		attribute.String("workflow.status", string(result.Status)),
		attribute.Float64("workflow.total_cost", result.TotalCost),
	)
	metrics.WorkflowExecutionsTotal.WithLabelValues(string(result.Status)).Inc()
	metrics.WorkflowDuration.Observe(finished.Sub(started).Seconds())
	metrics.WorkflowCost.Observe(result.TotalCost)

	log.Info("execution finished",
		"status", result.Status,
		"total_cost", result.TotalCost,
		"total_time_ms", result.TotalTimeMs,
	)
	return result, nil
}

// withPlanDefaults 多步计划中未声明 capability 的步骤继承计划的 capability
func withPlanDefaults(plan *entity.ExecutionPlan, steps []entity.PlanStep) []entity.PlanStep {
	out := make([]entity.PlanStep, len(steps))
	for i, st := range steps {
		if st.Capability == "" {
			st.Capability = plan.Capability
		}
		out[i] = st
	}
	return out
}
