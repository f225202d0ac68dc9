// Package metrics 提供 Prometheus 指标采集功能
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "aida"
)

var (
	// HTTP 请求指标
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path"},
	)

	HTTPResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
		},
		[]string{"method", "path"},
	)

	// 执行引擎指标 - 工作流
	WorkflowExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "workflows_total",
			Help:      "Total number of executed workflows by outcome",
		},
		[]string{"status"},
	)

	WorkflowDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "workflow_duration_seconds",
			Help:      "Wall-clock duration of workflow executions",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	WorkflowCost = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "workflow_cost_usd",
			Help:      "Actual provider cost per workflow in USD",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	PlanValidationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "plan_validation_failures_total",
			Help:      "Total number of rejected execution plans",
		},
	)

	// 执行引擎指标 - 步骤
	StepResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "steps_total",
			Help:      "Total number of finished plan steps by outcome",
		},
		[]string{"status"},
	)

	StepFallbackDepth = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "fallback_depth",
			Help:      "Number of candidates attempted per step",
			Buckets:   []float64{1, 2, 3, 4, 5, 8},
		},
	)

	// Provider 调用指标
	ProviderCallTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "calls_total",
			Help:      "Total number of provider calls",
		},
		[]string{"provider", "model", "status"},
	)

	ProviderCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "call_duration_seconds",
			Help:      "Provider call duration in seconds",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"provider", "model"},
	)

	ProviderCost = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "cost_usd_total",
			Help:      "Accumulated actual provider cost in USD",
		},
		[]string{"provider", "model"},
	)

	ProviderTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "tokens_total",
			Help:      "Total number of tokens consumed by chat model providers",
		},
		[]string{"provider", "model", "kind"},
	)

	// 队列指标
	RedisStreamProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "stream_processed_total",
			Help:      "Total number of Redis stream messages processed",
		},
		[]string{"stream", "status"},
	)

	RedisStreamDLQ = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "stream_dlq_total",
			Help:      "Total number of messages moved to the dead-letter stream",
		},
		[]string{"stream"},
	)
)
