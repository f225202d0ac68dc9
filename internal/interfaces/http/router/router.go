// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aida-engine/internal/config"
	"aida-engine/internal/interfaces/http/handler"
	"aida-engine/internal/interfaces/http/middleware"
)

// Router HTTP 路由器
type Router struct {
	engine *gin.Engine
	cfg    *config.Config
}

// Deps 路由依赖的处理器与限流器
type Deps struct {
	Health      *handler.HealthHandler
	Executions  *handler.ExecutionHandler
	Jobs        *handler.JobHandler
	Models      *handler.ModelHandler
	RateLimiter middleware.RateLimiter
}

// NewWithDeps 创建路由器并注册全部路由
func NewWithDeps(cfg *config.Config, deps Deps) *Router {
	// 设置 Gin 模式
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := &Router{
		engine: gin.New(),
		cfg:    cfg,
	}

	r.setupMiddleware()
	r.setupRoutes(deps)

	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// setupMiddleware 配置中间件
func (r *Router) setupMiddleware() {
	// 基础中间件
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.Audit(middleware.DefaultAuditSkipPaths...))

	// CORS 中间件
	r.engine.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: r.cfg.Security.CORS.AllowedOrigins,
		AllowedMethods: r.cfg.Security.CORS.AllowedMethods,
		AllowedHeaders: r.cfg.Security.CORS.AllowedHeaders,
	}))

	// 追踪中间件
	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name))
		r.engine.Use(middleware.TraceContext())
	}

	r.engine.Use(middleware.RouteParams())

	// 指标中间件
	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics(r.cfg.Observability.Metrics.Path))
	}
}

// setupRoutes 配置路由
func (r *Router) setupRoutes(deps Deps) {
	// 系统端点
	if deps.Health != nil {
		r.engine.GET("/health", deps.Health.Health)
		r.engine.GET("/ready", deps.Health.Ready)
		r.engine.GET("/live", deps.Health.Live)
	}

	// Prometheus 指标端点
	if r.cfg.Observability.Metrics.Enabled {
		r.engine.GET(r.cfg.Observability.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	rateLimit := middleware.RateLimit(middleware.RateLimitConfig{
		Enabled:           r.cfg.Security.RateLimit.Enabled,
		RequestsPerSecond: r.cfg.Security.RateLimit.RequestsPerSecond,
	}, deps.RateLimiter)

	RegisterV1Routes(r.engine.Group("/v1"), rateLimit, deps)
}
