package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"aida-engine/pkg/logger"
	"aida-engine/pkg/metrics"
)

const (
	readBatchSize    = 10
	pendingBatchSize = 20
)

// MessageHandler 消息处理函数
type MessageHandler func(ctx context.Context, msg *Message) error

// permanentError 标记重试无意义的失败，消费者直接移入死信队列
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent 包装不可重试的处理错误（例如载荷无法解析）
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent 判断错误是否被标记为不可重试
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// dlqEntry 死信队列中的记录
type dlqEntry struct {
	OriginalStream string   `json:"original_stream"`
	Message        *Message `json:"data"`
	Error          string   `json:"error"`
	FailedAt       int64    `json:"failed_at"`
}

// Consumer 执行任务流消费者
//
// 失败的消息留在 PEL 中，按指数退避由本消费者重新领取；其他消费者
// 空闲过久的消息在 reclaimIdle 之后被接管。投递次数达到 retryLimit
// 或处理器返回 Permanent 错误时移入死信队列。
type Consumer struct {
	client        *redis.Client
	stream        Stream
	group         ConsumerGroup
	consumerName  string
	blockTimeout  time.Duration
	claimInterval time.Duration
	reclaimIdle   time.Duration
	retryLimit    int
	backoff       BackoffConfig

	handlers map[string]MessageHandler
	mu       sync.RWMutex
	running  bool
	stopCh   chan struct{}
}

// ConsumerConfig 消费者配置
type ConsumerConfig struct {
	Stream        Stream
	Group         ConsumerGroup
	ConsumerName  string
	BlockTimeout  time.Duration
	ClaimInterval time.Duration
	RetryLimit    int
	Backoff       BackoffConfig
}

// NewConsumer 创建消息消费者
func NewConsumer(client *redis.Client, cfg ConsumerConfig) *Consumer {
	if cfg.ConsumerName == "" {
		cfg.ConsumerName = DefaultConsumerName()
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 5 * time.Second
	}
	if cfg.ClaimInterval <= 0 {
		cfg.ClaimInterval = 30 * time.Second
	}
	if cfg.RetryLimit <= 0 {
		cfg.RetryLimit = 3
	}
	if cfg.Backoff.Initial <= 0 {
		cfg.Backoff = DefaultBackoffConfig()
	}

	reclaimIdle := 5 * time.Minute
	if d := cfg.Backoff.Max * 2; d > reclaimIdle {
		reclaimIdle = d
	}

	return &Consumer{
		client:        client,
		stream:        cfg.Stream,
		group:         cfg.Group,
		consumerName:  cfg.ConsumerName,
		blockTimeout:  cfg.BlockTimeout,
		claimInterval: cfg.ClaimInterval,
		reclaimIdle:   reclaimIdle,
		retryLimit:    cfg.RetryLimit,
		backoff:       cfg.Backoff,
		handlers:      make(map[string]MessageHandler),
		stopCh:        make(chan struct{}),
	}
}

// RegisterHandler 注册消息处理器
func (c *Consumer) RegisterHandler(msgType string, handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[msgType] = handler
}

// Start 确保消费者组存在并启动消费循环
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("consumer already running")
	}
	c.running = true
	c.mu.Unlock()

	err := c.client.XGroupCreateMkStream(ctx, string(c.stream), string(c.group), "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	go c.run(ctx)
	return nil
}

// Stop 停止消费者，正在处理的消息会执行完毕
func (c *Consumer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		close(c.stopCh)
		c.running = false
	}
}

func (c *Consumer) run(ctx context.Context) {
	log := logger.FromContext(ctx).With("stream", c.stream, "group", c.group, "consumer", c.consumerName)
	log.Info("consumer started")

	lastReclaim := time.Now().Add(-c.claimInterval)
	for {
		select {
		case <-ctx.Done():
			log.Info("consumer stopped", "reason", ctx.Err())
			return
		case <-c.stopCh:
			log.Info("consumer stopped")
			return
		default:
		}

		// 自己的失败消息按退避重试
		c.claimPending(ctx, c.consumerName, c.backoff.CalculateBackoff)
		if time.Since(lastReclaim) >= c.claimInterval {
			// 接管其他消费者遗留的消息
			c.claimPending(ctx, "", func(int) time.Duration { return c.reclaimIdle })
			lastReclaim = time.Now()
		}

		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    string(c.group),
			Consumer: c.consumerName,
			Streams:  []string{string(c.stream), ">"},
			Count:    readBatchSize,
			Block:    c.blockTimeout,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			log.Error("failed to read from stream", "error", err)
			time.Sleep(time.Second)
			continue
		}

		for _, s := range streams {
			for _, xmsg := range s.Messages {
				c.processMessage(ctx, xmsg)
			}
		}
	}
}

// claimPending 扫描 PEL 并领取已到期的消息
//
// owner 为空时扫描整个组并跳过自己的消息；minIdle 按投递次数给出领取前需要的空闲时长。
func (c *Consumer) claimPending(ctx context.Context, owner string, minIdle func(retry int) time.Duration) {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream:   string(c.stream),
		Group:    string(c.group),
		Start:    "-",
		End:      "+",
		Count:    pendingBatchSize,
		Consumer: owner,
	}).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			logger.FromContext(ctx).Error("failed to query pending messages", "error", err, "stream", c.stream)
		}
		return
	}

	for _, p := range pending {
		if owner == "" && p.Consumer == c.consumerName {
			continue
		}
		retries := int(p.RetryCount)
		idle := minIdle(retries)
		if p.Idle < idle {
			continue
		}

		claimed, err := c.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   string(c.stream),
			Group:    string(c.group),
			Consumer: c.consumerName,
			MinIdle:  idle,
			Messages: []string{p.ID},
		}).Result()
		if err != nil {
			logger.FromContext(ctx).Error("failed to claim pending message", "error", err, "message_id", p.ID)
			continue
		}

		for _, xmsg := range claimed {
			if retries >= c.retryLimit {
				c.deadLetter(ctx, xmsg, fmt.Errorf("exceeded %d deliveries", c.retryLimit))
				continue
			}
			c.processMessage(ctx, xmsg)
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, xmsg redis.XMessage) {
	ctx, span := tracer.Start(ctx, "consumer.processMessage",
		trace.WithAttributes(
			attribute.String("stream", string(c.stream)),
			attribute.String("stream.message_id", xmsg.ID),
		))
	defer span.End()

	msg, ok := decodeMessage(xmsg)
	if !ok {
		logger.FromContext(ctx).Error("invalid message format", "message_id", xmsg.ID)
		metrics.RedisStreamProcessed.WithLabelValues(string(c.stream), "invalid").Inc()
		c.ack(ctx, xmsg.ID)
		return
	}

	ctx = messageContext(ctx, msg)
	log := logger.FromContext(ctx)
	span.SetAttributes(
		attribute.String("message.type", msg.Type),
		attribute.String("job_id", msg.ID),
		attribute.String("plan_id", msg.PlanID),
	)

	c.mu.RLock()
	handler, exists := c.handlers[msg.Type]
	c.mu.RUnlock()
	if !exists {
		log.Warn("no handler for message type", "type", msg.Type)
		c.ack(ctx, xmsg.ID)
		return
	}

	err := handler(ctx, msg)
	if err == nil {
		metrics.RedisStreamProcessed.WithLabelValues(string(c.stream), "success").Inc()
		c.ack(ctx, xmsg.ID)
		return
	}

	span.RecordError(err)
	metrics.RedisStreamProcessed.WithLabelValues(string(c.stream), "error").Inc()
	if IsPermanent(err) {
		log.Error("handler failed permanently", "error", err)
		c.deadLetter(ctx, xmsg, err)
		return
	}
	// 不确认，消息留在 PEL 中等待退避后重试
	log.Warn("handler failed, message left pending for retry", "error", err)
}

// messageContext 将消息中的任务、计划与请求标识写入日志上下文
func messageContext(ctx context.Context, msg *Message) context.Context {
	if msg.ID != "" {
		ctx = logger.WithContext(ctx, logger.JobIDKey, msg.ID)
	}
	if msg.PlanID != "" {
		ctx = logger.WithContext(ctx, logger.PlanIDKey, msg.PlanID)
	}
	if v := msg.GetMetadata("request_id"); v != "" {
		ctx = logger.WithContext(ctx, logger.RequestIDKey, v)
	}
	if v := msg.GetMetadata("trace_id"); v != "" {
		ctx = logger.WithContext(ctx, logger.TraceIDKey, v)
	}
	return ctx
}

func (c *Consumer) ack(ctx context.Context, id string) {
	if err := c.client.XAck(ctx, string(c.stream), string(c.group), id).Err(); err != nil {
		logger.FromContext(ctx).Error("failed to ack message", "error", err, "message_id", id)
	}
}

// deadLetter 写入死信队列后确认原消息；写入失败时保留在 PEL 中
func (c *Consumer) deadLetter(ctx context.Context, xmsg redis.XMessage, cause error) {
	msg, _ := decodeMessage(xmsg)
	entry := dlqEntry{
		OriginalStream: string(c.stream),
		Message:        msg,
		Error:          cause.Error(),
		FailedAt:       time.Now().Unix(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		logger.FromContext(ctx).Error("failed to encode DLQ entry", "error", err, "message_id", xmsg.ID)
		return
	}

	if err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.stream.DLQStream(),
		Values: map[string]interface{}{"data": string(data)},
	}).Err(); err != nil {
		logger.FromContext(ctx).Error("failed to write DLQ message", "error", err, "message_id", xmsg.ID)
		return
	}

	metrics.RedisStreamDLQ.WithLabelValues(string(c.stream)).Inc()
	logger.FromContext(ctx).Warn("message moved to DLQ", "message_id", xmsg.ID, "cause", cause.Error())
	c.ack(ctx, xmsg.ID)
}

func decodeMessage(xmsg redis.XMessage) (*Message, bool) {
	raw, ok := xmsg.Values["data"].(string)
	if !ok {
		return nil, false
	}
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return nil, false
	}
	return &msg, true
}

// MonitorDLQ 每分钟检查死信队列长度，超过阈值时告警
func (c *Consumer) MonitorDLQ(ctx context.Context, alertThreshold int64) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	dlq := c.stream.DLQStream()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			n, err := c.client.XLen(ctx, dlq).Result()
			if err != nil {
				continue
			}
			if n > alertThreshold {
				logger.Warn(ctx, "DLQ has pending messages", "stream", dlq, "count", n)
			}
		}
	}
}

// DefaultConsumerName 以主机名和进程号生成消费者名称
func DefaultConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
