package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lazysoft/consultant/pkg/llm"
)

const testAPIKey = "test-key"

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name      string
		config    map[string]any
		wantError bool
	}{
		{
			name:   "valid config",
			config: map[string]any{"api_key": testAPIKey},
		},
		{
			name: "custom config",
			config: map[string]any{
				"api_key":      testAPIKey,
				"base_url":     "https://api.openai.com/v1",
				"model":        "gpt-4o",
				"organization": "org-123",
			},
		},
		{
			name:      "missing api_key",
			config:    map[string]any{},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(tt.config)
			if tt.wantError {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if provider.Name() != ProviderName {
				t.Errorf("expected provider name %s, got %s", ProviderName, provider.Name())
			}
		})
	}
}

func TestProviderEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("expected path /embeddings, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Error("expected Authorization Bearer test-key")
		}
		// 故意打乱顺序，验证按 index 重排
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.4,0.5,0.6],"index":1},{"embedding":[0.1,0.2,0.3],"index":0}],"model":"m"}`))
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.APIKey = testAPIKey
	provider := NewProviderWithConfig(cfg)

	embeddings, err := provider.Embed(context.Background(), []string{"text1", "text2"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(embeddings) != 2 || embeddings[0][0] != 0.1 || embeddings[1][0] != 0.4 {
		t.Errorf("unexpected embeddings: %v", embeddings)
	}
}

func TestProviderChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected path /chat/completions, got %s", r.URL.Path)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Model != "gpt-4o-mini-fallback" {
			t.Errorf("expected per-call model override, got %s", req.Model)
		}
		if req.MaxTokens != 1000 || req.Temperature != 0.7 {
			t.Errorf("unexpected generation params: %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"gpt-4o-mini-fallback","choices":[{"message":{"role":"assistant","content":"Привіт"}}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`))
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.APIKey = testAPIKey
	provider := NewProviderWithConfig(cfg)

	resp, err := provider.Chat(context.Background(),
		[]llm.Message{{Role: llm.RoleUser, Content: "Привіт"}},
		llm.WithModel("gpt-4o-mini-fallback"), llm.WithTemperature(0.7), llm.WithMaxTokens(1000))
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "Привіт" || resp.Usage.TotalTokens != 15 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestProviderEmbedEmpty(t *testing.T) {
	provider := NewProviderWithConfig(DefaultConfig())
	embeddings, err := provider.Embed(context.Background(), nil)
	if err != nil || embeddings != nil {
		t.Errorf("expected nil result for empty input, got %v, %v", embeddings, err)
	}
}
