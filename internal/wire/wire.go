//go:build wireinject
// +build wireinject

package wire

import (
	"context"

	"github.com/google/wire"

	"aida-engine/internal/application/execution"
	"aida-engine/internal/application/workflow"
	"aida-engine/internal/config"
	"aida-engine/internal/domain/repository"
	"aida-engine/internal/infrastructure/messaging"
	"aida-engine/internal/infrastructure/persistence/postgres"
	"aida-engine/internal/infrastructure/persistence/redis"
	"aida-engine/internal/interfaces/http/handler"
	"aida-engine/internal/interfaces/http/middleware"
	"aida-engine/internal/interfaces/http/router"
)

// InitializeApp 初始化 API 网关（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		RepoSet,
		RedisSet,
		MessagingSet,
		EngineSet,
		RouterSet,
	)
	return nil, nil, nil
}

// InitializeWorker 初始化异步执行 worker
func InitializeWorker(ctx context.Context, cfg *config.Config) (*Worker, func(), error) {
	wire.Build(
		RepoSet,
		RedisSet,
		MessagingSet,
		EngineSet,
		ProvideMessagingConsumer,
		wire.Struct(new(Worker), "*"),
	)
	return nil, nil, nil
}

// PostgresSet PostgreSQL 提供者集合
var PostgresSet = wire.NewSet(
	ProvidePostgresClient,
	postgres.NewTxManager,
	postgres.NewJobRepository,
	postgres.NewWorkflowResultRepository,
)

// RepoSet 整合了具体实现与接口绑定的集合
var RepoSet = wire.NewSet(
	PostgresSet,
	// 接口绑定
	wire.Bind(new(repository.Transactor), new(*postgres.TxManager)),
	wire.Bind(new(repository.JobRepository), new(*postgres.JobRepository)),
	wire.Bind(new(repository.WorkflowResultRepository), new(*postgres.WorkflowResultRepository)),
)

// RedisSet Redis 提供者集合
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	ProvideResultCache,
	redis.NewRateLimiter,
	wire.Bind(new(workflow.ResultCache), new(*redis.ResultCache)),
	wire.Bind(new(middleware.RateLimiter), new(*redis.RateLimiter)),
)

// MessagingSet 消息队列提供者集合
var MessagingSet = wire.NewSet(
	ProvideMessagingProducer,
	wire.Bind(new(workflow.JobPublisher), new(*messaging.Producer)),
)

// EngineSet 执行引擎与应用服务
var EngineSet = wire.NewSet(
	ProvideCatalog,
	ProvideCoordinator,
	ProvideWorkflowService,
	wire.Bind(new(workflow.Executor), new(*execution.Coordinator)),
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	ProvideHealthHandler,
	handler.NewExecutionHandler,
	handler.NewJobHandler,
	handler.NewModelHandler,
	wire.Bind(new(handler.ExecutionService), new(*workflow.Service)),
	wire.Struct(new(router.Deps), "*"),
	router.NewWithDeps,
)
