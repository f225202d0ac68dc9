package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"aida-engine/pkg/logger"
)

// DefaultAuditSkipPaths 默认跳过访问日志的探针路径
var DefaultAuditSkipPaths = []string{
	"/health",
	"/ready",
	"/live",
	"/metrics",
}

// Audit 访问日志中间件，记录每个请求的方法、路由、状态与耗时
func Audit(skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		fields := []any{
			"method", c.Request.Method,
			"route", c.FullPath(),
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
			"body_size", c.Writer.Size(),
		}
		if key := c.GetHeader(IdempotencyKeyHeader); key != "" {
			fields = append(fields, "idempotency_key", key)
		}

		if c.Writer.Status() >= 500 {
			logger.Warn(c.Request.Context(), "api request", fields...)
			return
		}
		logger.Info(c.Request.Context(), "api request", fields...)
	}
}
