package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lazysoft/consultant/pkg/llm"
)

func newTestProvider(url string) *Provider {
	cfg := DefaultConfig()
	cfg.BaseURL = url
	cfg.APIKey = "k"
	cfg.MaxRetries = 0
	return NewProviderWithConfig(cfg)
}

func TestNewProviderRequiresKey(t *testing.T) {
	if _, err := NewProvider(map[string]any{}); err == nil {
		t.Error("expected error without api_key")
	}
}

func TestEmbedStripsModelsPrefix(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/embedding-001:batchEmbedContents" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "k" {
			t.Error("api key not sent")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embeddings":[{"values":[1,0]},{"values":[0,1]}]}`))
	}))
	defer server.Close()

	vecs, err := newTestProvider(server.URL).Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vecs) != 2 || vecs[1][1] != 1 {
		t.Errorf("unexpected vectors %v", vecs)
	}
}

func TestChatMapsRoles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.SystemInstruction == nil || req.SystemInstruction.Parts[0].Text != "sys" {
			t.Error("system prompt not mapped to systemInstruction")
		}
		if len(req.Contents) != 2 || req.Contents[1].Role != "model" {
			t.Errorf("unexpected contents %+v", req.Contents)
		}
		if req.GenerationConfig.MaxOutputTokens != 1000 {
			t.Errorf("max tokens not forwarded: %+v", req.GenerationConfig)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Hello"},{"text":" there"}]}}],"usageMetadata":{"promptTokenCount":3,"candidatesTokenCount":2,"totalTokenCount":5}}`))
	}))
	defer server.Close()

	resp, err := newTestProvider(server.URL).Chat(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "sys"},
		{Role: llm.RoleUser, Content: "hi"},
		{Role: llm.RoleAssistant, Content: "hello"},
	}, llm.WithMaxTokens(1000))
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "Hello there" || resp.Usage.TotalTokens != 5 || resp.Model != "gemini-1.5-flash" {
		t.Errorf("unexpected response %+v", resp)
	}
}
