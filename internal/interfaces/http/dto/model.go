package dto

import "aida-engine/internal/application/execution"

// ModelResponse 目录中的模型
type ModelResponse struct {
	ModelID     string  `json:"model_id"`
	ProviderID  string  `json:"provider_id"`
	Kind        string  `json:"kind,omitempty"`
	TimeoutMs   int64   `json:"timeout_ms,omitempty"`
	CostPerCall float64 `json:"cost_per_call,omitempty"`
}

// ModelListResponse 模型目录响应
type ModelListResponse struct {
	Models []*ModelResponse `json:"models"`
}

// ToModelListResponse 将目录条目转换为响应 DTO
func ToModelListResponse(entries []execution.ModelEntry) *ModelListResponse {
	resp := &ModelListResponse{
		Models: make([]*ModelResponse, 0, len(entries)),
	}
	for _, e := range entries {
		resp.Models = append(resp.Models, &ModelResponse{
			ModelID:     e.ModelID,
			ProviderID:  e.ProviderID,
			Kind:        e.Kind,
			TimeoutMs:   e.Timeout.Milliseconds(),
			CostPerCall: e.CostPerCall,
		})
	}
	return resp
}
