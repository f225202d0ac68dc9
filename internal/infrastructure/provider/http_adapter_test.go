package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"aida-engine/internal/application/execution"
	"aida-engine/internal/config"
)

func TestHTTPAdapterSuccess(t *testing.T) {
	var gotAuth string
	var gotBody generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"asset_url": "https://cdn.example.com/fox.png", "cost": 0.03}`))
	}))
	defer srv.Close()

	a := NewHTTPAdapter(config.ModelConfig{ID: "flux-schnell", Provider: "bfl", Endpoint: srv.URL, APIKey: "k", CostPerCall: 0.9}, nil)
	res, err := a.Invoke(context.Background(), "flux-schnell", map[string]any{"prompt": "fox"}, time.Second)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	if res.AssetReference != "https://cdn.example.com/fox.png" || res.Cost != 0.03 {
		t.Errorf("unexpected result %+v", res)
	}
	if gotAuth != "Bearer k" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
	if gotBody.Model != "flux-schnell" || gotBody.Parameters["prompt"] != "fox" {
		t.Errorf("unexpected request body %+v", gotBody)
	}
}

func TestHTTPAdapterFallsBackToConfiguredCost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"url": "https://cdn.example.com/x.png"}`))
	}))
	defer srv.Close()

	a := NewHTTPAdapter(config.ModelConfig{Provider: "bfl", Endpoint: srv.URL, CostPerCall: 0.05}, nil)
	res, err := a.Invoke(context.Background(), "flux-pro-1.1", nil, time.Second)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if res.Cost != 0.05 {
		t.Errorf("expected configured cost 0.05, got %v", res.Cost)
	}
}

func TestHTTPAdapterFailures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		status  int
		message string
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				_, _ = w.Write([]byte("bad gateway"))
			},
			status:  http.StatusBadGateway,
			message: "upstream returned 502: bad gateway",
		},
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			status:  http.StatusTooManyRequests,
			message: "upstream returned 429",
		},
		{
			name: "malformed",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html>"))
			},
			status:  http.StatusOK,
			message: "malformed response",
		},
		{
			name: "missing asset",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"cost": 0.01}`))
			},
			status:  http.StatusOK,
			message: "provider returned no asset",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			a := NewHTTPAdapter(config.ModelConfig{Provider: "bfl", Endpoint: srv.URL}, nil)
			_, err := a.Invoke(context.Background(), "m", nil, time.Second)

			var pe *execution.ProviderError
			if !errors.As(err, &pe) {
				t.Fatalf("expected ProviderError, got %v", err)
			}
			if !pe.Retryable {
				t.Error("provider failures must be retryable by fallback")
			}
			if pe.StatusCode != tc.status {
				t.Errorf("status = %d, want %d", pe.StatusCode, tc.status)
			}
			if !strings.HasPrefix(pe.Message, tc.message) {
				t.Errorf("message = %q, want prefix %q", pe.Message, tc.message)
			}
		})
	}
}

func TestHTTPAdapterHonorsContextTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	a := NewHTTPAdapter(config.ModelConfig{Provider: "bfl", Endpoint: srv.URL}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := a.Invoke(ctx, "m", nil, 20*time.Millisecond)
	var pe *execution.ProviderError
	if !errors.As(err, &pe) || !strings.Contains(pe.Message, "timed out") {
		t.Fatalf("expected timeout ProviderError, got %v", err)
	}
}
