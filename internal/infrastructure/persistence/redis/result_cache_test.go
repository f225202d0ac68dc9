package redis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"aida-engine/internal/config"
	"aida-engine/internal/domain/entity"
)

// memKV 内存实现的 kv，用 go-redis 的结果构造器返回命令
type memKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttl     map[string]time.Duration
	failSet bool
}

func newMemKV() *memKV {
	return &memKV{data: map[string][]byte{}, ttl: map[string]time.Duration{}}
}

func (m *memKV) Get(_ context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (m *memKV) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet {
		return redis.NewStatusResult("", errors.New("connection refused"))
	}
	m.data[key] = value.([]byte)
	m.ttl[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func TestResultKey(t *testing.T) {
	if got := ResultKey("wf-1"); got != "execution:result:wf-1" {
		t.Errorf("unexpected key %q", got)
	}
	if got := BuildRateLimitKey("10.0.0.1", "/v1/executions"); got != "ratelimit:10.0.0.1:/v1/executions" {
		t.Errorf("unexpected rate limit key %q", got)
	}
}

func TestResultCacheSetAndHit(t *testing.T) {
	kv := newMemKV()
	cache := newResultCache(kv, 10*time.Minute)
	ctx := context.Background()

	want := &entity.WorkflowResult{WorkflowID: "wf-1", PlanID: "plan-1", Status: entity.WorkflowStatusSuccess, TotalCost: 0.05}
	if err := cache.Set(ctx, want); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if kv.ttl[ResultKey("wf-1")] != 10*time.Minute {
		t.Errorf("expected ttl 10m, got %v", kv.ttl[ResultKey("wf-1")])
	}

	got, err := cache.GetOrLoad(ctx, "wf-1", func(context.Context) (*entity.WorkflowResult, error) {
		t.Fatal("loader must not run on cache hit")
		return nil, nil
	})
	if err != nil {
		t.Fatalf("GetOrLoad failed: %v", err)
	}
	if got.PlanID != "plan-1" || got.TotalCost != 0.05 {
		t.Errorf("unexpected cached result: %+v", got)
	}
}

func TestResultCacheMissLoadsAndFills(t *testing.T) {
	kv := newMemKV()
	cache := newResultCache(kv, 0)
	var loads int32

	load := func(context.Context) (*entity.WorkflowResult, error) {
		atomic.AddInt32(&loads, 1)
		return &entity.WorkflowResult{WorkflowID: "wf-2", Status: entity.WorkflowStatusFailed}, nil
	}
	for i := 0; i < 3; i++ {
		if _, err := cache.GetOrLoad(context.Background(), "wf-2", load); err != nil {
			t.Fatalf("GetOrLoad failed: %v", err)
		}
	}
	if loads != 1 {
		t.Errorf("expected exactly one load, got %d", loads)
	}
	if kv.ttl[ResultKey("wf-2")] != defaultResultTTL {
		t.Errorf("expected default ttl, got %v", kv.ttl[ResultKey("wf-2")])
	}
}

func TestResultCacheLoaderErrorAndSetFailure(t *testing.T) {
	kv := newMemKV()
	kv.failSet = true
	cache := newResultCache(kv, time.Minute)

	notFound := errors.New("not found")
	if _, err := cache.GetOrLoad(context.Background(), "wf-3", func(context.Context) (*entity.WorkflowResult, error) {
		return nil, notFound
	}); !errors.Is(err, notFound) {
		t.Errorf("expected loader error, got %v", err)
	}

	got, err := cache.GetOrLoad(context.Background(), "wf-4", func(context.Context) (*entity.WorkflowResult, error) {
		return &entity.WorkflowResult{WorkflowID: "wf-4"}, nil
	})
	if err != nil || got.WorkflowID != "wf-4" {
		t.Errorf("cache write failure must not fail the read: %v %+v", err, got)
	}
}

func TestAddr(t *testing.T) {
	if got := Addr(&config.RedisConfig{Host: "cache", Port: 6380}); got != "cache:6380" {
		t.Errorf("unexpected addr %q", got)
	}
}
