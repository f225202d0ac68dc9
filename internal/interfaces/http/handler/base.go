// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"aida-engine/internal/application/execution"
	"aida-engine/internal/domain/entity"
	"aida-engine/internal/domain/repository"
	"aida-engine/internal/interfaces/http/dto"
	"aida-engine/pkg/errors"
	"aida-engine/pkg/logger"
)

// ExecutionService 执行相关的应用服务
type ExecutionService interface {
	Execute(ctx context.Context, plan *entity.ExecutionPlan) (*entity.WorkflowResult, error)
	GetResult(ctx context.Context, workflowID string) (*entity.WorkflowResult, error)
	ListByPlan(ctx context.Context, planID string, pagination repository.Pagination) (*repository.PagedResult[*entity.WorkflowResult], error)
	Submit(ctx context.Context, plan *entity.ExecutionPlan, idempotencyKey string) (*entity.ExecutionJob, bool, error)
	GetJob(ctx context.Context, jobID string) (*entity.ExecutionJob, error)
	CancelJob(ctx context.Context, jobID string) (*entity.ExecutionJob, error)
}

// writeError 将错误映射为统一错误响应
func writeError(c *gin.Context, err error, fallbackMsg string) {
	var verr *execution.ValidationError
	if stderrors.As(err, &verr) {
		code := errors.CodePlanInvalid
		switch verr.Kind() {
		case execution.IssueUnknownModel:
			code = errors.CodeUnknownModel
		case execution.IssueCycle:
			code = errors.CodeDependencyCycle
		}
		dto.ErrorWithDetail(c, http.StatusBadRequest, verr.Error(), &dto.ErrorDetail{
			ErrorCode: string(code),
			Details:   string(verr.Kind()),
		})
		return
	}

	if errors.IsAppError(err) {
		appErr := errors.AsAppError(err)
		if appErr.HTTPStatus >= http.StatusInternalServerError {
			logger.Error(c.Request.Context(), fallbackMsg, err)
		}
		dto.ErrorWithDetail(c, appErr.HTTPStatus, appErr.Message, &dto.ErrorDetail{
			ErrorCode: string(appErr.Code),
			Details:   appErr.Detail,
		})
		return
	}

	logger.Error(c.Request.Context(), fallbackMsg, err)
	dto.InternalError(c, fallbackMsg)
}
