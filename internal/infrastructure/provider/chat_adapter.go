package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"aida-engine/internal/application/execution"
	"aida-engine/internal/config"
	"aida-engine/internal/infrastructure/eino/callback"
)

// chatGenerator 对话模型的最小调用面，model.BaseChatModel 满足该接口
type chatGenerator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// ChatAdapter 基于 Eino 的 OpenAI 兼容对话模型适配器，用于文案生成
type ChatAdapter struct {
	providerID      string
	chat            chatGenerator
	costPerCall     float64
	promptPrice     float64
	completionPrice float64
}

// NewChatAdapter 创建对话模型适配器
func NewChatAdapter(ctx context.Context, cfg config.ModelConfig) (*ChatAdapter, error) {
	upstream := cfg.UpstreamModel
	if upstream == "" {
		upstream = cfg.ID
	}

	chatCfg := &openai.ChatModelConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.Endpoint,
		Model:   upstream,
		Timeout: cfg.Timeout,
	}
	if cfg.MaxTokens > 0 {
		chatCfg.MaxTokens = &cfg.MaxTokens
	}
	if cfg.Temperature > 0 {
		chatCfg.Temperature = ptrFloat32(float32(cfg.Temperature))
	}

	chatModel, err := openai.NewChatModel(ctx, chatCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create eino chat model for %s: %w", cfg.ID, err)
	}
	return newChatAdapter(cfg, chatModel), nil
}

func newChatAdapter(cfg config.ModelConfig, chat chatGenerator) *ChatAdapter {
	return &ChatAdapter{
		providerID:      cfg.Provider,
		chat:            chat,
		costPerCall:     cfg.CostPerCall,
		promptPrice:     cfg.PromptTokenPrice,
		completionPrice: cfg.CompletionTokenPrice,
	}
}

// Invoke 实现 execution.Adapter
//
// parameters 中 prompt 为用户消息，system 为可选系统消息；
// temperature / max_tokens 覆盖模型默认值。
func (a *ChatAdapter) Invoke(ctx context.Context, modelID string, params map[string]any, timeout time.Duration) (*execution.InvokeResult, error) {
	prompt, _ := params["prompt"].(string)
	if strings.TrimSpace(prompt) == "" {
		return nil, &execution.ProviderError{
			ProviderID: a.providerID,
			ModelID:    modelID,
			Message:    "prompt is required for chat models",
			Retryable:  false,
		}
	}

	msgs := make([]*schema.Message, 0, 2)
	if system, _ := params["system"].(string); strings.TrimSpace(system) != "" {
		msgs = append(msgs, schema.SystemMessage(system))
	}
	msgs = append(msgs, schema.UserMessage(prompt))

	var opts []model.Option
	if t, ok := toFloat(params["temperature"]); ok {
		opts = append(opts, model.WithTemperature(float32(t)))
	}
	if n, ok := toFloat(params["max_tokens"]); ok && n > 0 {
		opts = append(opts, model.WithMaxTokens(int(n)))
	}

	start := time.Now()
	out, err := a.chat.Generate(callback.WithProvider(ctx, a.providerID), msgs, opts...)
	if err != nil {
		msg := fmt.Sprintf("chat completion failed: %v", err)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			msg = fmt.Sprintf("request timed out after %s", timeout)
		}
		return nil, execution.NewProviderError(a.providerID, modelID, msg, err)
	}
	if out == nil || strings.TrimSpace(out.Content) == "" {
		return nil, execution.NewProviderError(a.providerID, modelID, "model returned empty content", nil)
	}

	return &execution.InvokeResult{
		AssetReference: textReference(out.Content),
		Content:        out.Content,
		Cost:           a.cost(out),
		Duration:       time.Since(start),
	}, nil
}

// cost 有 token 用量与单价时按用量计费（单价为每千 token），否则按次计费
func (a *ChatAdapter) cost(out *schema.Message) float64 {
	if out.ResponseMeta == nil || out.ResponseMeta.Usage == nil {
		return a.costPerCall
	}
	if a.promptPrice <= 0 && a.completionPrice <= 0 {
		return a.costPerCall
	}
	usage := out.ResponseMeta.Usage
	return float64(usage.PromptTokens)/1000*a.promptPrice +
		float64(usage.CompletionTokens)/1000*a.completionPrice
}

// textReference 文本产物的内容寻址引用
func textReference(content string) string {
	sum := sha256.Sum256([]byte(content))
	return "text://" + hex.EncodeToString(sum[:16])
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func ptrFloat32(f float32) *float32 {
	return &f
}
