package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"aida-engine/internal/domain/entity"
)

var cacheTracer = otel.Tracer("redis.cache")

const (
	resultKeyPrefix  = "execution:result:"
	defaultResultTTL = time.Hour
)

// kv ResultCache 使用的最小命令集，*redis.Client 满足该接口
type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// ResultCache 工作流结果缓存（Read-Through + singleflight 防击穿）
type ResultCache struct {
	rdb   kv
	ttl   time.Duration
	group singleflight.Group
}

// NewResultCache 创建结果缓存
func NewResultCache(client *Client, ttl time.Duration) *ResultCache {
	return newResultCache(client.rdb, ttl)
}

func newResultCache(rdb kv, ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = defaultResultTTL
	}
	return &ResultCache{rdb: rdb, ttl: ttl}
}

// ResultKey 构建结果缓存键
func ResultKey(workflowID string) string {
	return resultKeyPrefix + workflowID
}

// Set 写入结果
func (c *ResultCache) Set(ctx context.Context, result *entity.WorkflowResult) error {
	key := ResultKey(result.WorkflowID)
	ctx, span := cacheTracer.Start(ctx, "cache.Set",
		trace.WithAttributes(
			attribute.String("cache.key", key),
			attribute.Int64("cache.ttl_ms", c.ttl.Milliseconds()),
		))
	defer span.End()

	bytes, err := json.Marshal(result)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal workflow result: %w", err)
	}
	if err := c.rdb.Set(ctx, key, bytes, c.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to cache workflow result: %w", err)
	}
	return nil
}

// GetOrLoad 读取结果，未命中时通过 singleflight 合并并发加载并回填
//
// Redis 不可用时直接回源，缓存只是加速层。
func (c *ResultCache) GetOrLoad(ctx context.Context, workflowID string, load func(ctx context.Context) (*entity.WorkflowResult, error)) (*entity.WorkflowResult, error) {
	key := ResultKey(workflowID)
	ctx, span := cacheTracer.Start(ctx, "cache.GetOrLoad",
		trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	if res, ok := c.get(ctx, key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return res, nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		// 再次检查缓存（可能已被其他请求填充）
		if res, ok := c.get(ctx, key); ok {
			return res, nil
		}
		res, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.Set(ctx, res); err != nil {
			// 缓存写入失败不影响返回结果
			span.RecordError(err)
		}
		return res, nil
	})
	span.SetAttributes(attribute.Bool("cache.shared", shared))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return v.(*entity.WorkflowResult), nil
}

func (c *ResultCache) get(ctx context.Context, key string) (*entity.WorkflowResult, bool) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var res entity.WorkflowResult
	if err := json.Unmarshal(val, &res); err != nil {
		return nil, false
	}
	return &res, true
}
