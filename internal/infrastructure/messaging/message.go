// Package messaging 提供基于 Redis Stream 的异步执行任务队列
package messaging

import (
	"encoding/json"
	"fmt"
	"time"
)

// Stream 流名称
type Stream string

// ConsumerGroup 消费者组名称
type ConsumerGroup string

const (
	StreamExecutionRun           Stream        = "stream:execution:run"
	ConsumerGroupExecutionWorker ConsumerGroup = "cg-execution-worker"

	// MessageTypeExecutionRun 异步执行任务
	MessageTypeExecutionRun = "execution_run"
)

// DLQStream 对应的死信流
func (s Stream) DLQStream() string {
	return "dlq:" + string(s)
}

// Message 流中传输的信封，Payload 由 Type 决定具体结构
type Message struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	PlanID    string            `json:"plan_id"`
	Payload   json.RawMessage   `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
}

// ExecutionJobMessage 执行任务载荷，计划本体保存在任务表中
type ExecutionJobMessage struct {
	JobID  string `json:"job_id"`
	PlanID string `json:"plan_id"`
}

func NewMessage(id, msgType, planID string, payload any) (*Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", msgType, err)
	}
	return &Message{
		ID:        id,
		Type:      msgType,
		PlanID:    planID,
		Payload:   raw,
		Metadata:  map[string]string{},
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (m *Message) SetMetadata(key, value string) {
	if m.Metadata == nil {
		m.Metadata = map[string]string{}
	}
	m.Metadata[key] = value
}

// GetMetadata 缺失时返回空串
func (m *Message) GetMetadata(key string) string {
	return m.Metadata[key]
}

func (m *Message) UnmarshalPayload(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("message %s has empty payload", m.ID)
	}
	return json.Unmarshal(m.Payload, v)
}
