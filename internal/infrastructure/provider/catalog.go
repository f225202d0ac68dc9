package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"aida-engine/internal/application/execution"
	"aida-engine/internal/config"
)

const (
	KindHTTP = "http"
	KindChat = "chat"
)

// BuildCatalog 根据配置构建模型目录，进程启动时调用一次
func BuildCatalog(ctx context.Context, cfg *config.CatalogConfig) (*execution.Catalog, error) {
	// 所有 HTTP 适配器共享连接池，超时由调用方 context 控制
	httpClient := &http.Client{Transport: http.DefaultTransport}

	entries := make([]execution.ModelEntry, 0, len(cfg.Models))
	for _, m := range cfg.Models {
		kind := strings.ToLower(strings.TrimSpace(m.Kind))
		if kind == "" {
			kind = KindHTTP
		}

		var adapter execution.Adapter
		switch kind {
		case KindHTTP:
			adapter = NewHTTPAdapter(m, httpClient)
		case KindChat:
			chat, err := NewChatAdapter(ctx, m)
			if err != nil {
				return nil, err
			}
			adapter = chat
		default:
			return nil, fmt.Errorf("model %s: unsupported adapter kind %q", m.ID, m.Kind)
		}

		entries = append(entries, execution.ModelEntry{
			ModelID:     m.ID,
			ProviderID:  m.Provider,
			Kind:        kind,
			Adapter:     adapter,
			Timeout:     m.Timeout,
			CostPerCall: m.CostPerCall,
		})
	}
	return execution.NewCatalog(entries...)
}
