package handler

import (
	"github.com/gin-gonic/gin"

	"aida-engine/internal/interfaces/http/dto"
)

// JobHandler 异步任务处理器
type JobHandler struct {
	svc ExecutionService
}

// NewJobHandler 创建任务处理器
func NewJobHandler(svc ExecutionService) *JobHandler {
	return &JobHandler{svc: svc}
}

// GetJob 获取任务详情
// @Summary 获取任务详情
// @Description 获取指定任务的状态，完成后包含工作流 ID
// @Tags Jobs
// @Produce json
// @Param jid path string true "任务 ID"
// @Success 200 {object} dto.Response[dto.JobResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/jobs/{jid} [get]
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.svc.GetJob(c.Request.Context(), dto.BindJobID(c))
	if err != nil {
		writeError(c, err, "failed to get job")
		return
	}

	dto.Success(c, dto.ToJobResponse(job))
}

// CancelJob 取消任务
// @Summary 取消任务
// @Description 取消尚未开始执行的任务
// @Tags Jobs
// @Produce json
// @Param jid path string true "任务 ID"
// @Success 200 {object} dto.Response[dto.CancelJobResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse "任务无法取消"
// @Router /v1/jobs/{jid} [delete]
func (h *JobHandler) CancelJob(c *gin.Context) {
	job, err := h.svc.CancelJob(c.Request.Context(), dto.BindJobID(c))
	if err != nil {
		writeError(c, err, "failed to cancel job")
		return
	}

	dto.Success(c, &dto.CancelJobResponse{
		ID:        job.ID,
		Cancelled: true,
	})
}
