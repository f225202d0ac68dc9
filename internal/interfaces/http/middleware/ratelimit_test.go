package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type countingLimiter struct {
	limit int
	seen  map[string]int
	err   error
}

func (l *countingLimiter) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.limit = limit
	l.seen[key]++
	return l.seen[key] <= limit, nil
}

func newLimitedEngine(cfg RateLimitConfig, limiter RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(RateLimit(cfg, limiter))
	engine.POST("/v1/executions", func(c *gin.Context) { c.Status(http.StatusOK) })
	return engine
}

func hit(engine *gin.Engine, remoteAddr string) int {
	req := httptest.NewRequest(http.MethodPost, "/v1/executions", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimitPerClient(t *testing.T) {
	limiter := &countingLimiter{seen: map[string]int{}}
	engine := newLimitedEngine(RateLimitConfig{Enabled: true, RequestsPerSecond: 2}, limiter)

	for i := 0; i < 2; i++ {
		if code := hit(engine, "10.0.0.1:1234"); code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, code)
		}
	}
	if code := hit(engine, "10.0.0.1:1234"); code != http.StatusTooManyRequests {
		t.Errorf("expected 429 after limit, got %d", code)
	}
	if code := hit(engine, "10.0.0.2:1234"); code != http.StatusOK {
		t.Errorf("other client must not be limited, got %d", code)
	}
	if _, ok := limiter.seen["ratelimit:10.0.0.1:/v1/executions"]; !ok {
		t.Errorf("unexpected keys: %v", limiter.seen)
	}
}

func TestRateLimitFailsOpen(t *testing.T) {
	limiter := &countingLimiter{err: errors.New("redis down")}
	engine := newLimitedEngine(RateLimitConfig{Enabled: true}, limiter)
	if code := hit(engine, "10.0.0.1:1234"); code != http.StatusOK {
		t.Errorf("limiter failure must let requests through, got %d", code)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	limiter := &countingLimiter{seen: map[string]int{}}
	engine := newLimitedEngine(RateLimitConfig{Enabled: false, RequestsPerSecond: 1}, limiter)
	for i := 0; i < 3; i++ {
		if code := hit(engine, "10.0.0.1:1234"); code != http.StatusOK {
			t.Fatalf("expected 200 when disabled, got %d", code)
		}
	}
	if len(limiter.seen) != 0 {
		t.Error("disabled limiter must not be consulted")
	}
}
