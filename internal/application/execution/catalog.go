package execution

import (
	"fmt"
	"sort"
	"time"
)

// ModelEntry 目录中的一个模型
type ModelEntry struct {
	ModelID    string
	ProviderID string
	Kind       string
	Adapter    Adapter
	// Timeout 覆盖默认单次调用超时，0 表示使用引擎默认值
	Timeout time.Duration
	// CostPerCall 配置的参考单价，仅用于展示
	CostPerCall float64
}

// Catalog 模型 ID 到适配器的映射
//
// 启动时构建一次，之后只读，并发访问无需加锁。
type Catalog struct {
	entries map[string]ModelEntry
}

// NewCatalog 创建模型目录
func NewCatalog(entries ...ModelEntry) (*Catalog, error) {
	c := &Catalog{entries: make(map[string]ModelEntry, len(entries))}
	for _, e := range entries {
		if e.ModelID == "" {
			return nil, fmt.Errorf("catalog entry without model id")
		}
		if e.Adapter == nil {
			return nil, fmt.Errorf("catalog entry %q has no adapter", e.ModelID)
		}
		if _, dup := c.entries[e.ModelID]; dup {
			return nil, fmt.Errorf("duplicate catalog entry %q", e.ModelID)
		}
		c.entries[e.ModelID] = e
	}
	return c, nil
}

// Lookup 查找模型
func (c *Catalog) Lookup(modelID string) (ModelEntry, bool) {
	if c == nil {
		return ModelEntry{}, false
	}
	e, ok := c.entries[modelID]
	return e, ok
}

// Has 模型是否存在
func (c *Catalog) Has(modelID string) bool {
	_, ok := c.Lookup(modelID)
	return ok
}

// Models 按模型 ID 排序返回全部条目
func (c *Catalog) Models() []ModelEntry {
	if c == nil {
		return nil
	}
	out := make([]ModelEntry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModelID < out[j].ModelID })
	return out
}

// Len 模型数量
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}
