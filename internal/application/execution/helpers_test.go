package execution

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"aida-engine/internal/domain/entity"
)

// fakeProvider 记录调用顺序，按模型返回预设结果
type fakeProvider struct {
	mu       sync.Mutex
	calls    []string
	params   []map[string]any
	handlers map[string]AdapterFunc
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{handlers: make(map[string]AdapterFunc)}
}

func (f *fakeProvider) succeed(modelID, asset string, cost float64) *fakeProvider {
	f.handlers[modelID] = func(ctx context.Context, _ string, _ map[string]any, _ time.Duration) (*InvokeResult, error) {
		return &InvokeResult{AssetReference: asset, Cost: cost, Duration: 10 * time.Millisecond}, nil
	}
	return f
}

func (f *fakeProvider) fail(modelID, message string) *fakeProvider {
	f.handlers[modelID] = func(ctx context.Context, id string, _ map[string]any, _ time.Duration) (*InvokeResult, error) {
		return nil, NewProviderError("test", id, message, nil)
	}
	return f
}

func (f *fakeProvider) hang(modelID string) *fakeProvider {
	f.handlers[modelID] = func(ctx context.Context, _ string, _ map[string]any, _ time.Duration) (*InvokeResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f
}

func (f *fakeProvider) Invoke(ctx context.Context, modelID string, params map[string]any, timeout time.Duration) (*InvokeResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, modelID)
	f.params = append(f.params, params)
	h, ok := f.handlers[modelID]
	f.mu.Unlock()
	if !ok {
		return nil, errors.New("no handler")
	}
	return h(ctx, modelID, params, timeout)
}

func (f *fakeProvider) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// newTestCatalog 为每个模型注册同一个 fake provider
func newTestCatalog(t *testing.T, provider Adapter, models ...string) *Catalog {
	t.Helper()
	entries := make([]ModelEntry, 0, len(models))
	for _, m := range models {
		entries = append(entries, ModelEntry{ModelID: m, ProviderID: "test", Kind: "http", Adapter: provider})
	}
	catalog, err := NewCatalog(entries...)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	return catalog
}

func sel(id string) *entity.ModelSelection {
	return &entity.ModelSelection{Name: id, ModelID: id}
}

func sels(ids ...string) []entity.ModelSelection {
	out := make([]entity.ModelSelection, 0, len(ids))
	for _, id := range ids {
		out = append(out, *sel(id))
	}
	return out
}

func step(id, primary string, deps ...string) entity.PlanStep {
	return entity.PlanStep{ID: id, PrimaryModel: sel(primary), DependsOn: deps}
}
