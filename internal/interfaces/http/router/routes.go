package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(v1 *gin.RouterGroup, rateLimit gin.HandlerFunc, deps Deps) {
	// 计划执行（限流）
	executions := v1.Group("/executions", rateLimit)
	{
		executions.POST("", deps.Executions.Execute)
		executions.POST("/async", deps.Executions.Submit)
		executions.GET("/:wid", deps.Executions.GetExecution)
	}

	// 计划执行历史
	plans := v1.Group("/plans")
	{
		plans.GET("/:pid/executions", deps.Executions.ListPlanExecutions)
	}

	// 异步任务
	jobs := v1.Group("/jobs")
	{
		jobs.GET("/:jid", deps.Jobs.GetJob)
		jobs.DELETE("/:jid", deps.Jobs.CancelJob)
	}

	// 模型目录
	v1.GET("/models", deps.Models.ListModels)
}
