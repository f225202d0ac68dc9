// Package middleware 提供 HTTP 中间件
package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"aida-engine/internal/interfaces/http/dto"
	"aida-engine/pkg/errors"
	"aida-engine/pkg/logger"
)

// Recovery 捕获 handler panic，记录堆栈并返回统一的 500 响应
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			logger.Error(c.Request.Context(), "panic recovered",
				fmt.Errorf("%v", rec),
				"stack", string(debug.Stack()),
				"route", c.FullPath(),
				"method", c.Request.Method,
			)
			c.Abort()
			dto.ErrorWithDetail(c, http.StatusInternalServerError, "internal server error", &dto.ErrorDetail{
				ErrorCode: string(errors.CodeInternalError),
			})
		}()

		c.Next()
	}
}
