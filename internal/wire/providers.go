// Package wire 提供依赖注入配置
package wire

import (
	"context"
	"fmt"

	"aida-engine/internal/application/execution"
	"aida-engine/internal/application/workflow"
	"aida-engine/internal/config"
	"aida-engine/internal/domain/repository"
	"aida-engine/internal/infrastructure/messaging"
	"aida-engine/internal/infrastructure/persistence/postgres"
	"aida-engine/internal/infrastructure/persistence/redis"
	"aida-engine/internal/infrastructure/provider"
	"aida-engine/internal/interfaces/http/handler"
	"aida-engine/pkg/logger"
)

// Worker 异步执行 worker 依赖容器
type Worker struct {
	Service  *workflow.Service
	Consumer *messaging.Consumer
}

// ProvidePostgresClient 提供 PostgreSQL 客户端，按配置自动建表
func ProvidePostgresClient(ctx context.Context, cfg *config.Config) (*postgres.Client, func(), error) {
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		client.Close()
	}
	if cfg.Database.Postgres.AutoMigrate {
		if err := client.AutoMigrate(ctx); err != nil {
			cleanup()
			return nil, nil, err
		}
	}
	return client, cleanup, nil
}

// ProvideRedisClient 提供 Redis 客户端
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		client.Close()
	}
	return client, cleanup, nil
}

// ProvideResultCache 提供工作流结果缓存
func ProvideResultCache(client *redis.Client, cfg *config.Config) *redis.ResultCache {
	return redis.NewResultCache(client, cfg.Cache.ResultTTL)
}

// ProvideMessagingProducer 提供消息生产者
func ProvideMessagingProducer(redisClient *redis.Client, cfg *config.Config) *messaging.Producer {
	return messaging.NewProducer(redisClient.Redis(), int64(cfg.Messaging.RedisStream.MaxLen))
}

// ProvideMessagingConsumer 提供执行任务消费者
func ProvideMessagingConsumer(redisClient *redis.Client, cfg *config.Config) *messaging.Consumer {
	stream := cfg.Messaging.RedisStream
	return messaging.NewConsumer(redisClient.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamExecutionRun,
		Group:         messaging.ConsumerGroupExecutionWorker,
		ConsumerName:  messaging.DefaultConsumerName(),
		BlockTimeout:  stream.BlockTimeout,
		ClaimInterval: stream.ClaimInterval,
		RetryLimit:    stream.RetryLimit,
		Backoff:       messaging.BackoffFromConfig(stream.RetryBackoff),
	})
}

// ProvideCatalog 由配置构建模型目录
func ProvideCatalog(ctx context.Context, cfg *config.Config) (*execution.Catalog, error) {
	catalog, err := provider.BuildCatalog(ctx, &cfg.Catalog)
	if err != nil {
		return nil, err
	}
	if catalog.Len() == 0 {
		logger.Warn(ctx, "model catalog is empty, every plan will be rejected")
	}
	return catalog, nil
}

// ProvideCoordinator 提供执行协调器
func ProvideCoordinator(catalog *execution.Catalog, cfg *config.Config) (*execution.Coordinator, error) {
	policy, err := execution.ParseDependencyPolicy(cfg.Engine.DependencyPolicy)
	if err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	return execution.NewCoordinator(catalog, execution.Options{
		CallTimeout:      cfg.Engine.CallTimeout,
		PlanTimeout:      cfg.Engine.PlanTimeout,
		DependencyPolicy: policy,
		MaxParallel:      cfg.Engine.MaxParallel,
	}, logger.Component("execution")), nil
}

// ProvideWorkflowService 提供工作流应用服务
func ProvideWorkflowService(
	executor workflow.Executor,
	results repository.WorkflowResultRepository,
	jobs repository.JobRepository,
	cache workflow.ResultCache,
	publisher workflow.JobPublisher,
	tx repository.Transactor,
) *workflow.Service {
	return workflow.NewService(executor, results, jobs, cache, publisher, logger.Component("workflow")).
		WithTransactor(tx)
}

// ProvideHealthHandler 提供健康检查处理器
func ProvideHealthHandler(pg *postgres.Client, redisClient *redis.Client, catalog *execution.Catalog, cfg *config.Config) *handler.HealthHandler {
	return handler.NewHealthHandler(pg, redisClient, catalog, cfg.App.Version)
}
