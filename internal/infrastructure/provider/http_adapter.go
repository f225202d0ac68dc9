// Package provider 提供各类生成模型的适配器实现
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"aida-engine/internal/application/execution"
	"aida-engine/internal/config"
)

const maxErrorBody = 512

// HTTPAdapter 通用 JSON-over-HTTP 生成接口适配器
//
// 请求体为 {"model": ..., "parameters": {...}}，
// 响应体需包含 asset_url / asset_reference / url 之一，或文本 content。
type HTTPAdapter struct {
	providerID    string
	endpoint      string
	apiKey        string
	upstreamModel string
	headers       map[string]string
	costPerCall   float64
	httpClient    *http.Client
}

type generateRequest struct {
	Model      string         `json:"model"`
	Parameters map[string]any `json:"parameters"`
}

type generateResponse struct {
	AssetURL       string   `json:"asset_url"`
	AssetReference string   `json:"asset_reference"`
	URL            string   `json:"url"`
	Content        string   `json:"content"`
	Cost           *float64 `json:"cost"`
}

// NewHTTPAdapter 创建 HTTP 适配器
func NewHTTPAdapter(cfg config.ModelConfig, httpClient *http.Client) *HTTPAdapter {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &HTTPAdapter{
		providerID:    cfg.Provider,
		endpoint:      strings.TrimSpace(cfg.Endpoint),
		apiKey:        cfg.APIKey,
		upstreamModel: cfg.UpstreamModel,
		headers:       cfg.Headers,
		costPerCall:   cfg.CostPerCall,
		httpClient:    httpClient,
	}
}

// Invoke 实现 execution.Adapter
func (a *HTTPAdapter) Invoke(ctx context.Context, modelID string, params map[string]any, timeout time.Duration) (*execution.InvokeResult, error) {
	if a.endpoint == "" {
		return nil, a.fail(modelID, 0, "provider endpoint is not configured", nil)
	}

	upstream := a.upstreamModel
	if upstream == "" {
		upstream = modelID
	}
	body, err := json.Marshal(&generateRequest{Model: upstream, Parameters: params})
	if err != nil {
		return nil, &execution.ProviderError{
			ProviderID: a.providerID,
			ModelID:    modelID,
			Message:    fmt.Sprintf("failed to marshal request: %v", err),
			Retryable:  false,
			Err:        err,
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, a.fail(modelID, 0, fmt.Sprintf("failed to create request: %v", err), err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}
	for k, v := range a.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := a.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, a.fail(modelID, 0, fmt.Sprintf("request timed out after %s", timeout), err)
		}
		return nil, a.fail(modelID, 0, fmt.Sprintf("request failed: %v", err), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := fmt.Sprintf("upstream returned %d", resp.StatusCode)
		if s := strings.TrimSpace(string(snippet)); s != "" {
			msg += ": " + s
		}
		return nil, a.fail(modelID, resp.StatusCode, msg, nil)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, a.fail(modelID, resp.StatusCode, fmt.Sprintf("malformed response: %v", err), err)
	}

	asset := firstNonEmpty(out.AssetURL, out.AssetReference, out.URL)
	if asset == "" && out.Content == "" {
		return nil, a.fail(modelID, resp.StatusCode, "provider returned no asset", nil)
	}

	cost := a.costPerCall
	if out.Cost != nil {
		cost = *out.Cost
	}
	return &execution.InvokeResult{
		AssetReference: asset,
		Content:        out.Content,
		Cost:           cost,
		Duration:       time.Since(start),
	}, nil
}

func (a *HTTPAdapter) fail(modelID string, status int, msg string, cause error) *execution.ProviderError {
	pe := execution.NewProviderError(a.providerID, modelID, msg, cause)
	pe.StatusCode = status
	return pe
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
