package execution

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"aida-engine/internal/domain/entity"
	"aida-engine/pkg/logger"
	"aida-engine/pkg/tracer"
)

// DependencyPolicy 依赖步骤失败时的处理策略
type DependencyPolicy string

const (
	// PolicyAttempt 依赖只约束执行顺序，依赖失败仍执行
	PolicyAttempt DependencyPolicy = "attempt"
	// PolicySkip 依赖失败时跳过并记为失败
	PolicySkip DependencyPolicy = "skip"
)

// ParseDependencyPolicy 解析策略，空值为 attempt
func ParseDependencyPolicy(s string) (DependencyPolicy, error) {
	switch DependencyPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyAttempt:
		return PolicyAttempt, nil
	case PolicySkip:
		return PolicySkip, nil
	default:
		return "", fmt.Errorf("unknown dependency policy %q", s)
	}
}

// stepExecutor 执行单个步骤
type stepExecutor interface {
	Run(ctx context.Context, step entity.PlanStep) entity.StepResult
}

// Scheduler 按依赖关系分波并发执行步骤
type Scheduler struct {
	runner      stepExecutor
	policy      DependencyPolicy
	maxParallel int
	log         *slog.Logger
}

// NewScheduler 创建调度器
func NewScheduler(runner stepExecutor, policy DependencyPolicy, maxParallel int, log *slog.Logger) *Scheduler {
	if policy == "" {
		policy = PolicyAttempt
	}
	if log == nil {
		log = logger.Component("execution.scheduler")
	}
	return &Scheduler{runner: runner, policy: policy, maxParallel: maxParallel, log: log}
}

// Run 执行已校验的步骤，返回与声明顺序一致的结果
//
// 每一波启动所有依赖均已结束的步骤，等待整波结束后再计算下一波。
// ctx 结束后不再启动新的波次，未完成的步骤记为失败，不会丢弃。
func (s *Scheduler) Run(ctx context.Context, steps []entity.PlanStep) []entity.StepResult {
	results := make([]entity.StepResult, len(steps))
	done := make([]bool, len(steps))
	index := make(map[string]int, len(steps))
	for i, st := range steps {
		index[st.ID] = i
	}

	log := logger.Enrich(ctx, s.log)
	finished := 0
	for wave := 1; finished < len(steps); wave++ {
		if ctx.Err() != nil {
			break
		}

		ready := s.readySteps(steps, index, done)
		if len(ready) == 0 {
			// 校验保证无环，这里只防御调用方传入未校验的步骤
			log.Error("no runnable steps left", "unfinished", len(steps)-finished)
			break
		}

		s.runWave(ctx, wave, steps, ready, index, results)
		for _, i := range ready {
			done[i] = true
		}
		finished += len(ready)
	}

	if finished < len(steps) {
		reason := abortCancelled
		if err := ctx.Err(); err != nil {
			reason = abortReason(err)
		}
		now := time.Now()
		for i, st := range steps {
			if done[i] {
				continue
			}
			results[i] = entity.StepResult{
				StepID:     st.ID,
				Status:     entity.StepStatusFailed,
				Error:      reason,
				StartedAt:  now,
				FinishedAt: now,
			}
		}
		log.Warn("execution stopped before all steps ran", "unfinished", len(steps)-finished, "reason", reason)
	}
	return results
}

// runWave 并发执行一波步骤，每个 goroutine 只写自己的结果槽位
func (s *Scheduler) runWave(ctx context.Context, wave int, steps []entity.PlanStep, ready []int, index map[string]int, results []entity.StepResult) {
	ctx, span := tracer.Start(ctx, "execution.Wave", trace.WithAttributes(
		attribute.Int("wave.number", wave),
		attribute.Int("wave.size", len(ready)),
	))
	defer span.End()

	g, gctx := errgroup.WithContext(ctx)
	if s.maxParallel > 0 {
		g.SetLimit(s.maxParallel)
	}

	for _, i := range ready {
		step := steps[i]
		if s.policy == PolicySkip {
			if dep, failed := failedDependency(step, index, results); failed {
				now := time.Now()
				results[i] = entity.StepResult{
					StepID:     step.ID,
					Status:     entity.StepStatusFailed,
					Error:      fmt.Sprintf("dependency %s failed", dep),
					StartedAt:  now,
					FinishedAt: now,
				}
				continue
			}
		}

		g.Go(func() error {
			results[i] = s.runner.Run(gctx, step)
			return nil
		})
	}
	_ = g.Wait()
}

// readySteps 返回依赖已全部结束且尚未执行的步骤（保持声明顺序）
func (s *Scheduler) readySteps(steps []entity.PlanStep, index map[string]int, done []bool) []int {
	var ready []int
	for i, st := range steps {
		if done[i] {
			continue
		}
		ok := true
		for _, dep := range st.DependsOn {
			if j, exists := index[dep]; !exists || !done[j] {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, i)
		}
	}
	return ready
}

func failedDependency(step entity.PlanStep, index map[string]int, results []entity.StepResult) (string, bool) {
	for _, dep := range step.DependsOn {
		if !results[index[dep]].Succeeded() {
			return dep, true
		}
	}
	return "", false
}
