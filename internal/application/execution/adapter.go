// Package execution 实现生成计划的执行引擎：
// 模型适配器目录、步骤降级执行、依赖调度与结果汇总。
package execution

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// InvokeResult 单次模型调用的结果
type InvokeResult struct {
	AssetReference string
	Content        string
	// Cost 本次调用的实际成本（USD）
	Cost float64
	// Duration 由适配器报告的耗时，为 0 时由调用方测量
	Duration time.Duration
}

// Adapter 单一模型的统一调用接口
//
// 实现必须无状态、单次调用，并在 ctx 取消或超时时尽快返回。
// 失败时返回 *ProviderError。
type Adapter interface {
	Invoke(ctx context.Context, modelID string, params map[string]any, timeout time.Duration) (*InvokeResult, error)
}

// AdapterFunc 函数形式的 Adapter
type AdapterFunc func(ctx context.Context, modelID string, params map[string]any, timeout time.Duration) (*InvokeResult, error)

// Invoke 实现 Adapter
func (f AdapterFunc) Invoke(ctx context.Context, modelID string, params map[string]any, timeout time.Duration) (*InvokeResult, error) {
	return f(ctx, modelID, params, timeout)
}

// ProviderError 模型调用失败
type ProviderError struct {
	ProviderID string
	ModelID    string
	Message    string
	StatusCode int
	// Retryable 为 true 时步骤会继续尝试下一个候选模型
	Retryable bool
	Err       error
}

func (e *ProviderError) Error() string {
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError 创建可降级的 provider 错误
func NewProviderError(providerID, modelID, message string, cause error) *ProviderError {
	return &ProviderError{
		ProviderID: providerID,
		ModelID:    modelID,
		Message:    message,
		Retryable:  true,
		Err:        cause,
	}
}

// asProviderError 将任意错误归一化为 ProviderError
func asProviderError(err error, providerID, modelID string) *ProviderError {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewProviderError(providerID, modelID, "request timed out", err)
	case errors.Is(err, context.Canceled):
		return NewProviderError(providerID, modelID, "request cancelled", err)
	default:
		return NewProviderError(providerID, modelID, fmt.Sprintf("provider call failed: %v", err), err)
	}
}
