// Package main 异步执行 worker 入口：消费执行任务流并运行计划
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"aida-engine/internal/config"
	"aida-engine/internal/infrastructure/eino/callback"
	"aida-engine/internal/infrastructure/messaging"
	"aida-engine/internal/wire"
	"aida-engine/pkg/logger"
	"aida-engine/pkg/tracer"
)

// DLQ 积压告警阈值
const dlqAlertThreshold = 10

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "execution-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
		Environment: cfg.App.Env,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	callback.Init()

	worker, cleanup, err := wire.InitializeWorker(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize worker", err)
	}
	defer cleanup()

	worker.Consumer.RegisterHandler(messaging.MessageTypeExecutionRun, func(ctx context.Context, msg *messaging.Message) error {
		var payload messaging.ExecutionJobMessage
		if err := msg.UnmarshalPayload(&payload); err != nil {
			return messaging.Permanent(fmt.Errorf("decode execution job payload: %w", err))
		}
		if payload.JobID == "" {
			return messaging.Permanent(fmt.Errorf("execution job payload without job_id"))
		}
		return worker.Service.RunJob(ctx, payload.JobID)
	})

	if err := worker.Consumer.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start consumer", err)
	}
	go worker.Consumer.MonitorDLQ(ctx, dlqAlertThreshold)

	log := logger.FromContext(ctx)
	log.Info("execution-worker started", "stream", messaging.StreamExecutionRun)

	<-ctx.Done()

	log.Info("execution-worker shutting down")
	worker.Consumer.Stop()
}
