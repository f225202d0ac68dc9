// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// PageRequest 分页请求参数
type PageRequest struct {
	Page     int `form:"page" json:"page"`
	PageSize int `form:"page_size" json:"page_size"`
}

// Normalize 规范化分页参数
func (r *PageRequest) Normalize() {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PageSize < 1 {
		r.PageSize = defaultPageSize
	}
	if r.PageSize > maxPageSize {
		r.PageSize = maxPageSize
	}
}

// BindPage 从查询参数绑定分页，非法值回落到默认
func BindPage(c *gin.Context) PageRequest {
	req := PageRequest{
		Page:     parseIntWithDefault(c.Query("page"), 1),
		PageSize: parseIntWithDefault(c.Query("page_size"), defaultPageSize),
	}
	req.Normalize()
	return req
}

func parseIntWithDefault(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// BindPlanID 从 URI 绑定计划 ID
func BindPlanID(c *gin.Context) string {
	return c.Param("pid")
}

// BindWorkflowID 从 URI 绑定执行 ID
func BindWorkflowID(c *gin.Context) string {
	return c.Param("wid")
}

// BindJobID 从 URI 绑定任务 ID
func BindJobID(c *gin.Context) string {
	return c.Param("jid")
}
