package callback

import (
	"context"
	"strings"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	cbtemplate "github.com/cloudwego/eino/utils/callbacks"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"aida-engine/pkg/logger"
	"aida-engine/pkg/metrics"
)

type startTimeKey struct{}

type providerKey struct{}

// WithProvider 记录本次调用所属的 provider，供回调打标签
func WithProvider(ctx context.Context, provider string) context.Context {
	p := strings.TrimSpace(provider)
	if p == "" {
		return ctx
	}
	return context.WithValue(ctx, providerKey{}, p)
}

// ProviderFromContext 读取 provider，缺省为 unknown
func ProviderFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(providerKey{}).(string); ok && s != "" {
		return s
	}
	return "unknown"
}

func newChatModelCallbackHandler() *cbtemplate.ModelCallbackHandler {
	return &cbtemplate.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *model.CallbackInput) context.Context {
			ctx = context.WithValue(ctx, startTimeKey{}, time.Now())

			attrs := []attribute.KeyValue{
				attribute.String("llm.provider", ProviderFromContext(ctx)),
				attribute.String("llm.model", modelNameFromInput(input)),
			}
			if info != nil {
				attrs = append(attrs, attribute.String("eino.type", info.Type))
			}

			ctx, _ = otel.Tracer("eino").Start(ctx, "llm.generate", trace.WithAttributes(attrs...))
			return ctx
		},

		OnEnd: func(ctx context.Context, _ *einocb.RunInfo, output *model.CallbackOutput) context.Context {
			provider := ProviderFromContext(ctx)
			modelName := modelNameFromOutput(output)
			span := trace.SpanFromContext(ctx)

			if output != nil && output.TokenUsage != nil {
				usage := output.TokenUsage
				metrics.ProviderTokensUsed.WithLabelValues(provider, modelName, "prompt").Add(float64(usage.PromptTokens))
				metrics.ProviderTokensUsed.WithLabelValues(provider, modelName, "completion").Add(float64(usage.CompletionTokens))
				span.SetAttributes(
					attribute.Int("llm.prompt_tokens", usage.PromptTokens),
					attribute.Int("llm.completion_tokens", usage.CompletionTokens),
				)
				logger.Debug(ctx, "llm generate finished",
					"provider", provider,
					"model", modelName,
					"prompt_tokens", usage.PromptTokens,
					"completion_tokens", usage.CompletionTokens,
					"duration_ms", elapsedMs(ctx),
				)
			}
			span.End()
			return ctx
		},

		OnError: func(ctx context.Context, _ *einocb.RunInfo, err error) context.Context {
			span := trace.SpanFromContext(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			return ctx
		},
	}
}

func elapsedMs(ctx context.Context) int64 {
	start, ok := ctx.Value(startTimeKey{}).(time.Time)
	if !ok || start.IsZero() {
		return 0
	}
	return time.Since(start).Milliseconds()
}

// modelNameFromInput 从输入配置中提取模型名称
func modelNameFromInput(in *model.CallbackInput) string {
	if in == nil || in.Config == nil {
		return ""
	}
	return in.Config.Model
}

// modelNameFromOutput 从输出配置中提取模型名称
func modelNameFromOutput(out *model.CallbackOutput) string {
	if out == nil || out.Config == nil {
		return ""
	}
	return out.Config.Model
}
