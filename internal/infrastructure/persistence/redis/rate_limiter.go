package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

// slidingWindowScript 在单次往返内完成清理、计数与登记，避免并发请求同时通过检查
//
// KEYS[1] 限流键；ARGV: now_ms, window_ms, limit, member。返回 1 表示放行。
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
if redis.call('ZCARD', key) >= limit then
	return 0
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window * 2)
return 1
`)

// RateLimiter 基于有序集合的滑动窗口限流器，执行接口按客户端与路由计数
type RateLimiter struct {
	rdb redis.Scripter
}

// NewRateLimiter 创建限流器
func NewRateLimiter(client *Client) *RateLimiter {
	return &RateLimiter{rdb: client.rdb}
}

// Allow 判断 key 在 window 内的请求数是否仍低于 limit，放行时登记本次请求
func (l *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	ctx, span := tracer.Start(ctx, "ratelimit.Allow")
	defer span.End()
	span.SetAttributes(
		attribute.String("ratelimit.key", key),
		attribute.Int("ratelimit.limit", limit),
	)

	now := time.Now().UnixMilli()
	// 同一毫秒内的请求用随机后缀区分
	member := fmt.Sprintf("%d-%s", now, uuid.NewString()[:8])

	allowed, err := slidingWindowScript.Run(ctx, l.rdb, []string{key},
		now, window.Milliseconds(), limit, member).Int()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("rate limit script: %w", err)
	}

	span.SetAttributes(attribute.Bool("ratelimit.allowed", allowed == 1))
	return allowed == 1, nil
}

// BuildRateLimitKey 构建限流键
func BuildRateLimitKey(clientID, endpoint string) string {
	return fmt.Sprintf("ratelimit:%s:%s", clientID, endpoint)
}
