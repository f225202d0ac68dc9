package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"aida-engine/internal/application/execution"
	"aida-engine/internal/infrastructure/persistence/postgres"
	"aida-engine/internal/infrastructure/persistence/redis"
)

// healthChecker 依赖的健康检查
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler 健康检查处理器
type HealthHandler struct {
	checks      map[string]healthChecker
	catalogSize int
	version     string
}

// NewHealthHandler 创建健康检查处理器
// pg/redisClient 为 nil 时对应检查报告 missing。
func NewHealthHandler(pg *postgres.Client, redisClient *redis.Client, catalog *execution.Catalog, version string) *HealthHandler {
	checks := map[string]healthChecker{"postgres": nil, "redis": nil}
	if pg != nil {
		checks["postgres"] = pg
	}
	if redisClient != nil {
		checks["redis"] = redisClient
	}
	return newHealthHandler(checks, catalog.Len(), version)
}

func newHealthHandler(checks map[string]healthChecker, catalogSize int, version string) *HealthHandler {
	return &HealthHandler{checks: checks, catalogSize: catalogSize, version: version}
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

type readinessCheck struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
}

type readinessResponse struct {
	Status string                     `json:"status"`
	Models int                        `json:"models"`
	Checks map[string]*readinessCheck `json:"checks,omitempty"`
}

// Health 健康检查接口
// @Summary 健康检查
// @Description 检查服务健康状态
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: h.version,
	})
}

// Ready 就绪检查接口
// 任一依赖不可用或模型目录为空时返回 503。
// @Summary 就绪检查
// @Description 检查服务是否可以接收流量
// @Tags System
// @Produce json
// @Success 200 {object} readinessResponse
// @Failure 503 {object} readinessResponse
// @Router /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	ready := h.catalogSize > 0
	checks := make(map[string]*readinessCheck, len(h.checks))
	for name, checker := range h.checks {
		if checker == nil {
			checks[name] = &readinessCheck{Status: "missing", Error: name + " client not configured"}
			ready = false
			continue
		}

		start := time.Now()
		err := checker.HealthCheck(ctx)
		check := &readinessCheck{Status: "ok", LatencyMs: time.Since(start).Milliseconds()}
		if err != nil {
			check.Status = "error"
			check.Error = err.Error()
			ready = false
		}
		checks[name] = check
	}

	resp := readinessResponse{
		Status: "ok",
		Models: h.catalogSize,
		Checks: checks,
	}
	if !ready {
		resp.Status = "not_ready"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Live 存活检查接口
// @Summary 存活检查
// @Description 检查服务是否存活
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /live [get]
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
	})
}
