package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"aida-engine/internal/domain/entity"
	"aida-engine/pkg/logger"
	"aida-engine/pkg/metrics"
	"aida-engine/pkg/tracer"
)

// DefaultCallTimeout 单次 provider 调用的默认超时
const DefaultCallTimeout = 30 * time.Second

const (
	abortDeadline  = "plan deadline exceeded"
	abortCancelled = "execution cancelled"
)

// StepRunner 以顺序降级的方式执行单个步骤
//
// 候选模型严格逐个尝试，同一步骤不会有两个调用同时进行。
type StepRunner struct {
	catalog     *Catalog
	callTimeout time.Duration
	log         *slog.Logger
}

// NewStepRunner 创建步骤执行器
func NewStepRunner(catalog *Catalog, callTimeout time.Duration, log *slog.Logger) *StepRunner {
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}
	if log == nil {
		log = logger.Component("execution.runner")
	}
	return &StepRunner{catalog: catalog, callTimeout: callTimeout, log: log}
}

// Run 执行步骤并返回唯一的 StepResult
func (r *StepRunner) Run(ctx context.Context, step entity.PlanStep) entity.StepResult {
	ctx = logger.WithContext(ctx, logger.StepIDKey, step.ID)
	ctx, span := tracer.Start(ctx, "execution.Step", trace.WithAttributes(
		attribute.String("step.id", step.ID),
		attribute.String("step.capability", step.Capability),
	))
	defer span.End()

	log := logger.Enrich(ctx, r.log)
	started := time.Now()
	result := entity.StepResult{StepID: step.ID, StartedAt: started}

	candidates := step.Candidates()
	failures := make([]string, 0, len(candidates))

	for i, cand := range candidates {
		if err := ctx.Err(); err != nil {
			failures = append(failures, abortReason(err))
			break
		}

		attempt, invokeRes, perr := r.invoke(ctx, step, cand)
		result.Attempts = append(result.Attempts, attempt)
		result.ModelUsed = attempt.Model
		result.ProviderID = attempt.ProviderID

		if perr == nil {
			result.Status = entity.StepStatusSuccess
			result.ActualCost = invokeRes.Cost
			result.ActualTimeMs = attempt.TimeMs
			result.AssetReference = invokeRes.AssetReference
			result.Content = invokeRes.Content
			if i > 0 {
				log.Info("step succeeded on fallback model",
					"model", attempt.Model,
					"attempt", i+1,
					"cost", invokeRes.Cost,
				)
			}
			break
		}

		failures = append(failures, fmt.Sprintf("%s: %s", attempt.Model, perr.Message))
		remaining := len(candidates) - i - 1
		log.Warn("model call failed",
			"model", attempt.Model,
			"provider", attempt.ProviderID,
			"error", perr.Message,
			"retryable", perr.Retryable,
			"remaining_candidates", remaining,
		)

		if err := ctx.Err(); err != nil {
			if remaining > 0 {
				failures = append(failures, abortReason(err))
			}
			break
		}
		if !perr.Retryable {
			break
		}
	}

	result.FinishedAt = time.Now()
	if result.Status != entity.StepStatusSuccess {
		result.Status = entity.StepStatusFailed
		result.ActualCost = 0
		result.ActualTimeMs = result.FinishedAt.Sub(started).Milliseconds()
		result.Error = strings.Join(failures, "; ")
		if result.Error == "" {
			result.Error = "no model candidates"
		}
		tracer.Fail(span, errors.New(result.Error))
	}

	span.SetAttributes(
		attribute.String("step.status", string(result.Status)),
		attribute.String("step.model_used", result.ModelUsed),
		attribute.Int("step.attempts", len(result.Attempts)),
	)
	metrics.StepResultsTotal.WithLabelValues(string(result.Status)).Inc()
	metrics.StepFallbackDepth.Observe(float64(len(result.Attempts)))
	return result
}

// invoke 调用单个候选模型
func (r *StepRunner) invoke(ctx context.Context, step entity.PlanStep, cand entity.ModelSelection) (entity.Attempt, *InvokeResult, *ProviderError) {
	entry, ok := r.catalog.Lookup(cand.ModelID)
	providerID := cand.ProviderID
	if ok && entry.ProviderID != "" {
		providerID = entry.ProviderID
	}
	attempt := entity.Attempt{Model: cand.DisplayName(), ProviderID: providerID}
	if !ok {
		attempt.Error = fmt.Sprintf("model %q is not in the catalog", cand.ModelID)
		return attempt, nil, NewProviderError(providerID, cand.ModelID, attempt.Error, nil)
	}

	timeout := r.callTimeout
	if entry.Timeout > 0 {
		timeout = entry.Timeout
	}

	ctx, span := tracer.Start(ctx, "provider.Invoke", trace.WithAttributes(
		attribute.String("provider.id", providerID),
		attribute.String("provider.model", cand.ModelID),
	))
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	callStart := time.Now()
	res, err := entry.Adapter.Invoke(callCtx, cand.ModelID, mergeParams(step, cand), timeout)
	elapsed := time.Since(callStart)

	if err == nil && (res == nil || (res.AssetReference == "" && res.Content == "")) {
		err = NewProviderError(providerID, cand.ModelID, "provider returned no asset", nil)
	}

	var perr *ProviderError
	if err != nil {
		var typed *ProviderError
		if !errors.As(err, &typed) && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			perr = NewProviderError(providerID, cand.ModelID, fmt.Sprintf("request timed out after %s", timeout), err)
		} else {
			perr = asProviderError(err, providerID, cand.ModelID)
		}
	}

	status := "success"
	if perr != nil {
		status = "error"
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			status = "timeout"
		}
	}
	metrics.ProviderCallTotal.WithLabelValues(providerID, cand.ModelID, status).Inc()
	metrics.ProviderCallDuration.WithLabelValues(providerID, cand.ModelID).Observe(elapsed.Seconds())

	if perr != nil {
		tracer.Fail(span, perr)
		attempt.Error = perr.Message
		attempt.TimeMs = elapsed.Milliseconds()
		return attempt, nil, perr
	}

	duration := res.Duration
	if duration <= 0 {
		duration = elapsed
	}
	attempt.Success = true
	attempt.Cost = res.Cost
	attempt.TimeMs = duration.Milliseconds()
	if res.Cost > 0 {
		metrics.ProviderCost.WithLabelValues(providerID, cand.ModelID).Add(res.Cost)
	}
	return attempt, res, nil
}

// mergeParams 合并步骤参数与模型自身参数，后者优先；每次调用返回新 map
func mergeParams(step entity.PlanStep, cand entity.ModelSelection) map[string]any {
	out := make(map[string]any, len(step.Parameters)+len(cand.Parameters)+1)
	for k, v := range step.Parameters {
		out[k] = v
	}
	for k, v := range cand.Parameters {
		out[k] = v
	}
	if _, ok := out["prompt"]; !ok && step.Prompt != "" {
		out["prompt"] = step.Prompt
	}
	return out
}

func abortReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return abortDeadline
	}
	return abortCancelled
}
