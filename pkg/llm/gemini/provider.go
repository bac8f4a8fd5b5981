// Package gemini 提供 Google Gemini LLM 供应商实现。
package gemini

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/lazysoft/consultant/pkg/llm"
	"github.com/lazysoft/consultant/pkg/utils/httpclient"
)

const ProviderName = "gemini"

func init() {
	llm.RegisterEmbeddingProvider(ProviderName, func(m map[string]any) (llm.EmbeddingProvider, error) {
		return NewProvider(m)
	})
	llm.RegisterChatProvider(ProviderName, func(m map[string]any) (llm.ChatProvider, error) {
		return NewProvider(m)
	})
}

// Config Gemini 供应商配置。
type Config struct {
	// BaseURL API 基础地址。
	BaseURL string

	// APIKey Google AI API 密钥。
	APIKey string

	// EmbedModel 用于生成嵌入的模型，可带或不带 "models/" 前缀。
	EmbedModel string

	// ChatModel 用于对话的模型。
	ChatModel string

	Timeout    time.Duration
	MaxRetries int

	// Dimensions outputDimensionality，0 表示模型默认。
	Dimensions int
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "https://generativelanguage.googleapis.com/v1beta",
		EmbedModel: "models/embedding-001",
		ChatModel:  "gemini-1.5-flash",
		Timeout:    60 * time.Second,
		MaxRetries: 2,
	}
}

// Provider Gemini 供应商实现。
type Provider struct {
	config *Config
	client *httpclient.Client
}

// NewProvider 从配置 map 创建 Gemini 供应商。
func NewProvider(configMap map[string]any) (*Provider, error) {
	cfg := DefaultConfig()

	if v := llm.ConfigString(configMap, "base_url"); v != "" {
		cfg.BaseURL = v
	}
	cfg.APIKey = llm.ConfigString(configMap, "api_key")
	if v := llm.ConfigString(configMap, "embed_model", "model"); v != "" {
		cfg.EmbedModel = v
	}
	if v := llm.ConfigString(configMap, "chat_model", "model"); v != "" {
		cfg.ChatModel = v
	}
	if v := llm.ConfigDuration(configMap, "timeout"); v > 0 {
		cfg.Timeout = v
	}
	if v, ok := llm.ConfigInt(configMap, "max_retries"); ok && v >= 0 {
		cfg.MaxRetries = v
	}
	if v, ok := llm.ConfigInt(configMap, "dimensions"); ok && v > 0 {
		cfg.Dimensions = v
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: api_key 是必需的")
	}

	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建 Gemini 供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	return &Provider{
		config: cfg,
		client: httpclient.NewClient(cfg.Timeout, cfg.MaxRetries),
	}
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

func modelPath(model string) string {
	return "models/" + strings.TrimPrefix(model, "models/")
}

func (p *Provider) endpoint(model, method string) string {
	return fmt.Sprintf("%s/%s:%s?key=%s", p.config.BaseURL, modelPath(model), method, url.QueryEscape(p.config.APIKey))
}

// embedRequest Gemini batchEmbedContents 请求体。
type embedRequest struct {
	Requests []embedContentRequest `json:"requests"`
}

type embedContentRequest struct {
	Model                string  `json:"model"`
	Content              content `json:"content"`
	OutputDimensionality int     `json:"outputDimensionality,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embeddings []struct {
		Values []float32 `json:"values"`
	} `json:"embeddings"`
}

// Embed 为多个文本生成向量嵌入。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	// Gemini 使用 batchEmbedContents API
	requests := make([]embedContentRequest, len(texts))
	for i, text := range texts {
		requests[i] = embedContentRequest{
			Model:                modelPath(p.config.EmbedModel),
			Content:              content{Parts: []part{{Text: text}}},
			OutputDimensionality: p.config.Dimensions,
		}
	}

	var resp embedResponse
	if err := p.client.PostJSON(ctx, p.endpoint(p.config.EmbedModel, "batchEmbedContents"), nil,
		embedRequest{Requests: requests}, &resp); err != nil {
		return nil, fmt.Errorf("gemini embeddings: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini embeddings: expected %d vectors, got %d", len(texts), len(resp.Embeddings))
	}

	embeddings := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		embeddings[i] = emb.Values
	}
	return embeddings, nil
}

// EmbedSingle 为单个文本生成向量嵌入。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// chatRequest Gemini generateContent 请求体。
type chatRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type chatResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion string `json:"modelVersion"`
}

// Chat 进行多轮对话。system 消息合并为 systemInstruction，assistant 映射为 model 角色。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.ChatOption) (*llm.ChatResponse, error) {
	o := llm.ApplyChatOptions(llm.ChatOptions{Model: p.config.ChatModel}, opts...)

	var (
		contents []content
		system   []string
	)
	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			system = append(system, msg.Content)
		case llm.RoleUser:
			contents = append(contents, content{Role: "user", Parts: []part{{Text: msg.Content}}})
		case llm.RoleAssistant:
			contents = append(contents, content{Role: "model", Parts: []part{{Text: msg.Content}}})
		}
	}

	req := chatRequest{
		Contents: contents,
		GenerationConfig: &generationConfig{
			Temperature:     o.Temperature,
			MaxOutputTokens: o.MaxTokens,
		},
	}
	if len(system) > 0 {
		req.SystemInstruction = &content{Parts: []part{{Text: strings.Join(system, "\n\n")}}}
	}

	var resp chatResponse
	if err := p.client.PostJSON(ctx, p.endpoint(o.Model, "generateContent"), nil, req, &resp); err != nil {
		return nil, fmt.Errorf("gemini chat: %w", err)
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini chat: 未返回响应内容")
	}

	var sb strings.Builder
	for _, pt := range resp.Candidates[0].Content.Parts {
		sb.WriteString(pt.Text)
	}

	model := resp.ModelVersion
	if model == "" {
		model = o.Model
	}
	return &llm.ChatResponse{
		Content: sb.String(),
		Model:   model,
		Usage: llm.TokenUsage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		},
	}, nil
}
