package middleware

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSConfig CORS 配置，未设置的字段使用默认值
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

var (
	defaultCORSMethods = []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}
	defaultCORSHeaders = []string{"Origin", "Content-Type", RequestIDHeader, IdempotencyKeyHeader}
)

// CORS 跨域中间件
func CORS(cfg CORSConfig) gin.HandlerFunc {
	c := cors.Config{
		AllowOrigins:  cfg.AllowedOrigins,
		AllowMethods:  cfg.AllowedMethods,
		AllowHeaders:  cfg.AllowedHeaders,
		ExposeHeaders: []string{RequestIDHeader, TraceIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(c.AllowOrigins) == 0 {
		c.AllowOrigins = []string{"*"}
	}
	if len(c.AllowMethods) == 0 {
		c.AllowMethods = defaultCORSMethods
	}
	if len(c.AllowHeaders) == 0 {
		c.AllowHeaders = defaultCORSHeaders
	}
	return cors.New(c)
}
