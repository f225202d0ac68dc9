package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	"aida-engine/pkg/logger"
)

const (
	// RequestIDHeader 请求 ID 头
	RequestIDHeader = "X-Request-ID"
	// TraceIDHeader 追踪 ID 响应头
	TraceIDHeader = "X-Trace-ID"
	// IdempotencyKeyHeader 异步提交的幂等键请求头
	IdempotencyKeyHeader = "Idempotency-Key"
)

// routeParamKeys 路径参数到日志上下文键的映射
var routeParamKeys = map[string]logger.ContextKey{
	"pid": logger.PlanIDKey,
	"wid": logger.WorkflowIDKey,
	"jid": logger.JobIDKey,
}

// RequestID 透传或生成请求 ID，写入日志上下文与响应头
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Set("request_id", requestID)
		ctx := logger.WithContext(c.Request.Context(), logger.RequestIDKey, requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(RequestIDHeader, requestID)

		c.Next()
	}
}

// Trace OpenTelemetry 追踪中间件
func Trace(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}

// TraceContext 将 otelgin 创建的 span 标识注入日志上下文
func TraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		sc := trace.SpanFromContext(c.Request.Context()).SpanContext()
		if sc.IsValid() {
			traceID := sc.TraceID().String()
			c.Set("trace_id", traceID)

			ctx := logger.WithContext(c.Request.Context(), logger.TraceIDKey, traceID)
			ctx = logger.WithContext(ctx, logger.SpanIDKey, sc.SpanID().String())
			c.Request = c.Request.WithContext(ctx)
			c.Header(TraceIDHeader, traceID)
		}

		c.Next()
	}
}

// RouteParams 将计划、执行与任务 ID 路径参数写入日志上下文
func RouteParams() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		for _, p := range c.Params {
			if key, ok := routeParamKeys[p.Key]; ok && p.Value != "" {
				ctx = logger.WithContext(ctx, key, p.Value)
			}
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
