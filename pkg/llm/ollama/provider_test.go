package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lazysoft/consultant/pkg/llm"
)

func TestRegistered(t *testing.T) {
	p, err := llm.NewEmbeddingProvider(ProviderName, map[string]any{"model": "bge-m3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != ProviderName {
		t.Errorf("unexpected name %s", p.Name())
	}
}

func TestChatAndEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/embed":
			_, _ = w.Write([]byte(`{"model":"nomic-embed-text","embeddings":[[0.1,0.2]]}`))
		case "/api/chat":
			var req chatRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if req.Stream {
				t.Error("stream must be disabled")
			}
			if req.Options["num_predict"] != float64(500) {
				t.Errorf("num_predict not forwarded: %v", req.Options)
			}
			_, _ = w.Write([]byte(`{"model":"llama3.1:8b","message":{"role":"assistant","content":"ok"},"done":true,"prompt_eval_count":4,"eval_count":1}`))
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	p := NewProviderWithConfig(cfg)
	ctx := context.Background()

	vec, err := p.EmbedSingle(ctx, "hello")
	if err != nil || len(vec) != 2 {
		t.Fatalf("EmbedSingle: %v %v", vec, err)
	}

	resp, err := p.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, llm.WithMaxTokens(500))
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "ok" || resp.Usage.TotalTokens != 5 {
		t.Errorf("unexpected response %+v", resp)
	}

	if err := p.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
