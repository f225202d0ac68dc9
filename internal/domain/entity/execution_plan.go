// Package entity 定义领域实体
package entity

import (
	"bytes"
	"encoding/json"
	"strings"
)

// MainStepID 单步计划归一化后的步骤 ID
const MainStepID = "main"

// ModelSelection 规划阶段选定的模型
//
// 估算字段仅供展示，执行引擎从不参与计算。
type ModelSelection struct {
	Name            string         `json:"name"`
	ProviderID      string         `json:"provider_id,omitempty"`
	ModelID         string         `json:"model_id"`
	EstimatedCost   float64        `json:"estimated_cost,omitempty"`
	EstimatedTimeMs int64          `json:"estimated_time_ms,omitempty"`
	Parameters      map[string]any `json:"parameters,omitempty"`
}

// modelSelectionJSON 避免 UnmarshalJSON 递归
type modelSelectionJSON ModelSelection

// UnmarshalJSON 支持对象形式与裸字符串形式（字符串即 model_id）
func (m *ModelSelection) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*m = ModelSelection{Name: id, ModelID: id}
		return nil
	}

	var raw modelSelectionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = ModelSelection(raw)
	if m.ModelID == "" {
		m.ModelID = m.Name
	}
	if m.Name == "" {
		m.Name = m.ModelID
	}
	return nil
}

// DisplayName 返回用于结果展示的模型名
func (m ModelSelection) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.ModelID
}

// PlanStep 计划中的一个步骤
type PlanStep struct {
	ID             string           `json:"id"`
	Capability     string           `json:"capability,omitempty"`
	Prompt         string           `json:"prompt,omitempty"`
	Parameters     map[string]any   `json:"parameters,omitempty"`
	PrimaryModel   *ModelSelection  `json:"primary_model"`
	FallbackModels []ModelSelection `json:"fallback_models,omitempty"`
	DependsOn      []string         `json:"depends_on,omitempty"`
}

// Candidates 按声明顺序返回主模型与降级模型
func (s PlanStep) Candidates() []ModelSelection {
	out := make([]ModelSelection, 0, 1+len(s.FallbackModels))
	if s.PrimaryModel != nil {
		out = append(out, *s.PrimaryModel)
	}
	return append(out, s.FallbackModels...)
}

// ExecutionPlan 执行计划（引擎输入，执行期间只读）
//
// 单步形式使用顶层 primary_model/fallback_models/parameters；
// 多步形式使用 steps。两者互斥。
type ExecutionPlan struct {
	ID             string           `json:"id"`
	Capability     string           `json:"capability,omitempty"`
	Prompt         string           `json:"prompt,omitempty"`
	Parameters     map[string]any   `json:"parameters,omitempty"`
	PrimaryModel   *ModelSelection  `json:"primary_model,omitempty"`
	FallbackModels []ModelSelection `json:"fallback_models,omitempty"`
	Steps          []PlanStep       `json:"steps,omitempty"`
}

// IsSingleStep 是否为单步形式
func (p *ExecutionPlan) IsSingleStep() bool {
	return p.PrimaryModel != nil || len(p.FallbackModels) > 0
}

// NormalizedSteps 将两种形式统一为步骤列表
func (p *ExecutionPlan) NormalizedSteps() []PlanStep {
	if len(p.Steps) > 0 || !p.IsSingleStep() {
		return p.Steps
	}
	return []PlanStep{{
		ID:             MainStepID,
		Capability:     p.Capability,
		Prompt:         p.Prompt,
		Parameters:     p.Parameters,
		PrimaryModel:   p.PrimaryModel,
		FallbackModels: p.FallbackModels,
	}}
}

// ModelIDs 返回计划引用的全部模型 ID（去重，保持首次出现顺序）
func (p *ExecutionPlan) ModelIDs() []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, step := range p.NormalizedSteps() {
		for _, c := range step.Candidates() {
			id := strings.TrimSpace(c.ModelID)
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}
