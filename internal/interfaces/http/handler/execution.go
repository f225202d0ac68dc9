package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"aida-engine/internal/domain/entity"
	"aida-engine/internal/domain/repository"
	"aida-engine/internal/interfaces/http/dto"
	"aida-engine/internal/interfaces/http/middleware"
	"aida-engine/pkg/errors"
	"aida-engine/pkg/logger"
)

// IdempotencyKeyHeader 异步提交的幂等键请求头
const IdempotencyKeyHeader = middleware.IdempotencyKeyHeader

// ExecutionHandler 计划执行处理器
type ExecutionHandler struct {
	svc ExecutionService
}

// NewExecutionHandler 创建执行处理器
func NewExecutionHandler(svc ExecutionService) *ExecutionHandler {
	return &ExecutionHandler{svc: svc}
}

// Execute 同步执行计划
// @Summary 同步执行计划
// @Description 按计划执行全部步骤并返回工作流结果，部分或全部失败仍返回 200
// @Tags Executions
// @Accept json
// @Produce json
// @Param body body entity.ExecutionPlan true "执行计划"
// @Success 200 {object} dto.Response[dto.ExecutionResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/executions [post]
func (h *ExecutionHandler) Execute(c *gin.Context) {
	plan, ok := bindPlan(c)
	if !ok {
		return
	}

	ctx := logger.WithContext(c.Request.Context(), logger.PlanIDKey, plan.ID)
	result, err := h.svc.Execute(ctx, plan)
	if err != nil {
		writeError(c, err, "failed to execute plan")
		return
	}

	dto.Success(c, dto.ToExecutionResponse(result))
}

// Submit 异步提交计划
// @Summary 异步执行计划
// @Description 校验计划并投递异步任务，返回任务 ID
// @Tags Executions
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "幂等键"
// @Param body body entity.ExecutionPlan true "执行计划"
// @Success 202 {object} dto.Response[dto.JobResponse]
// @Success 200 {object} dto.Response[dto.JobResponse] "幂等键命中已有任务"
// @Failure 400 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /v1/executions/async [post]
func (h *ExecutionHandler) Submit(c *gin.Context) {
	plan, ok := bindPlan(c)
	if !ok {
		return
	}

	ctx := logger.WithContext(c.Request.Context(), logger.PlanIDKey, plan.ID)
	job, created, err := h.svc.Submit(ctx, plan, c.GetHeader(IdempotencyKeyHeader))
	if err != nil {
		writeError(c, err, "failed to submit execution")
		return
	}

	if !created {
		dto.Success(c, dto.ToJobResponse(job))
		return
	}
	dto.Accepted(c, dto.ToJobResponse(job))
}

// GetExecution 获取执行结果
// @Summary 获取执行结果
// @Tags Executions
// @Produce json
// @Param wid path string true "工作流 ID"
// @Success 200 {object} dto.Response[dto.ExecutionResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/executions/{wid} [get]
func (h *ExecutionHandler) GetExecution(c *gin.Context) {
	result, err := h.svc.GetResult(c.Request.Context(), dto.BindWorkflowID(c))
	if err != nil {
		writeError(c, err, "failed to get execution")
		return
	}

	dto.Success(c, dto.ToExecutionResponse(result))
}

// ListPlanExecutions 获取计划的执行历史
// @Summary 获取计划执行历史
// @Tags Executions
// @Produce json
// @Param pid path string true "计划 ID"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} dto.Response[dto.ExecutionListResponse]
// @Router /v1/plans/{pid}/executions [get]
func (h *ExecutionHandler) ListPlanExecutions(c *gin.Context) {
	pageReq := dto.BindPage(c)

	result, err := h.svc.ListByPlan(c.Request.Context(), dto.BindPlanID(c), repository.NewPagination(pageReq.Page, pageReq.PageSize))
	if err != nil {
		writeError(c, err, "failed to list executions")
		return
	}

	meta := dto.NewPageMeta(pageReq.Page, pageReq.PageSize, int(result.Total))
	dto.SuccessWithPage(c, dto.ToExecutionListResponse(result.Items), meta)
}

// bindPlan 解析请求体中的执行计划，字段级校验交给引擎
func bindPlan(c *gin.Context) (*entity.ExecutionPlan, bool) {
	var plan entity.ExecutionPlan
	if err := c.ShouldBindJSON(&plan); err != nil {
		dto.ErrorWithDetail(c, http.StatusBadRequest, "invalid request body", &dto.ErrorDetail{
			ErrorCode: string(errors.CodeInvalidParam),
			Details:   err.Error(),
		})
		return nil, false
	}
	return &plan, true
}
