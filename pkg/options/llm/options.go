// Package llm provides embedding and chat provider configuration options.
package llm

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/lazysoft/consultant/pkg/options"
)

var (
	_ options.IOptions = (*EmbeddingOptions)(nil)
	_ options.IOptions = (*ChatOptions)(nil)
)

// 默认 embedding 模型及维度。
var defaultEmbeddingModels = map[string]struct {
	Model string
	Dim   int
}{
	"openai": {"text-embedding-3-small", 1536},
	"gemini": {"models/embedding-001", 768},
	"ollama": {"nomic-embed-text", 768},
}

// ProviderOptions 定义 LLM 供应商的公共配置。
type ProviderOptions struct {
	// Provider 供应商名称（openai, gemini, ollama）。
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL API 基础地址，为空时使用供应商默认地址。
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey API 密钥。
	APIKey string `json:"-" mapstructure:"api-key"`

	// Model 使用的模型名称。
	Model string `json:"model" mapstructure:"model"`

	// Timeout 请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries 最大重试次数。
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`

	// Organization 组织 ID（OpenAI 可选）。
	Organization string `json:"organization" mapstructure:"organization"`
}

func (o *ProviderOptions) addFlags(fs *pflag.FlagSet, p string) {
	fs.StringVar(&o.Provider, p+"provider", o.Provider, "Provider name (openai, gemini, ollama).")
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "Provider API base URL (empty = provider default).")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "Provider API key.")
	fs.StringVar(&o.Model, p+"model", o.Model, "Model name.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Per-request timeout.")
	fs.IntVar(&o.MaxRetries, p+"max-retries", o.MaxRetries, "Maximum number of retries for transient failures.")
	fs.StringVar(&o.Organization, p+"organization", o.Organization, "Organization ID (openai, optional).")
}

func (o *ProviderOptions) validate(section string) []error {
	var errs []error
	switch o.Provider {
	case "openai", "gemini", "ollama":
	default:
		errs = append(errs, fmt.Errorf("%s.provider %q is not supported", section, o.Provider))
	}
	if o.Model == "" {
		errs = append(errs, fmt.Errorf("%s.model is required", section))
	}
	if (o.Provider == "openai" || o.Provider == "gemini") && o.APIKey == "" {
		errs = append(errs, fmt.Errorf("%s.api-key is required for %s provider", section, o.Provider))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%s.timeout must be positive", section))
	}
	return errs
}

// ToConfigMap 转换为配置 map，用于供应商工厂。
func (o *ProviderOptions) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":     o.BaseURL,
		"api_key":      o.APIKey,
		"model":        o.Model,
		"timeout":      o.Timeout,
		"max_retries":  o.MaxRetries,
		"organization": o.Organization,
	}
}

// EmbeddingOptions 定义 embedding 供应商配置。
type EmbeddingOptions struct {
	ProviderOptions `mapstructure:",squash"`

	// Dimension 向量维度 D，索引生命周期内固定。
	Dimension int `json:"dimension" mapstructure:"dimension"`

	// CacheTTL Redis 中缓存 embedding 的时间，0 表示不缓存。
	CacheTTL time.Duration `json:"cache-ttl" mapstructure:"cache-ttl"`
}

// NewEmbeddingOptions 创建默认 Embedding 供应商配置。
func NewEmbeddingOptions() *EmbeddingOptions {
	return &EmbeddingOptions{
		ProviderOptions: ProviderOptions{
			Provider:   "openai",
			Timeout:    20 * time.Second,
			MaxRetries: 2,
		},
		CacheTTL: 24 * time.Hour,
	}
}

// AddFlags adds embedding flags.
func (o *EmbeddingOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(append(prefixes, "embedding")...)
	o.addFlags(fs, p)
	fs.IntVar(&o.Dimension, p+"dimension", o.Dimension, "Embedding dimension D (0 = provider default).")
	fs.DurationVar(&o.CacheTTL, p+"cache-ttl", o.CacheTTL, "TTL of cached query embeddings in redis (0 disables).")
}

// Complete fills model and dimension from the provider defaults.
func (o *EmbeddingOptions) Complete() error {
	if d, ok := defaultEmbeddingModels[o.Provider]; ok {
		if o.Model == "" {
			o.Model = d.Model
		}
		if o.Dimension == 0 && o.Model == d.Model {
			o.Dimension = d.Dim
		}
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	return nil
}

// Validate validates the embedding options.
func (o *EmbeddingOptions) Validate() []error {
	if o == nil {
		return nil
	}
	errs := o.validate("embedding")
	if o.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("embedding.dimension must be set for model %q", o.Model))
	}
	return errs
}

// ChatOptions 定义生成模型配置。
type ChatOptions struct {
	ProviderOptions `mapstructure:",squash"`

	// FallbackModel 同一供应商的较小模型，主模型失败时重试一次。
	FallbackModel string `json:"fallback-model" mapstructure:"fallback-model"`

	Temperature float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `json:"max-tokens" mapstructure:"max-tokens"`

	// CostPer1KTokens 用于累计会话成本（美元）。
	CostPer1KTokens float64 `json:"cost-per-1k-tokens" mapstructure:"cost-per-1k-tokens"`
}

// NewChatOptions 创建默认 Chat 供应商配置。
func NewChatOptions() *ChatOptions {
	return &ChatOptions{
		ProviderOptions: ProviderOptions{
			Provider:   "openai",
			Model:      "gpt-4o",
			Timeout:    20 * time.Second,
			MaxRetries: 1,
		},
		FallbackModel:   "gpt-4o-mini",
		Temperature:     0.7,
		MaxTokens:       1000,
		CostPer1KTokens: 0.005,
	}
}

// AddFlags adds chat flags.
func (o *ChatOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(append(prefixes, "chat")...)
	o.addFlags(fs, p)
	fs.StringVar(&o.FallbackModel, p+"fallback-model", o.FallbackModel, "Smaller same-provider model used once when the primary fails.")
	fs.Float64Var(&o.Temperature, p+"temperature", o.Temperature, "Sampling temperature.")
	fs.IntVar(&o.MaxTokens, p+"max-tokens", o.MaxTokens, "Maximum tokens per answer.")
	fs.Float64Var(&o.CostPer1KTokens, p+"cost-per-1k-tokens", o.CostPer1KTokens, "Cost per 1000 tokens for session accounting.")
}

// Complete completes the chat options.
func (o *ChatOptions) Complete() error {
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	return nil
}

// Validate validates the chat options.
func (o *ChatOptions) Validate() []error {
	if o == nil {
		return nil
	}
	errs := o.validate("chat")
	if o.Temperature < 0 || o.Temperature > 2 {
		errs = append(errs, fmt.Errorf("chat.temperature must be within [0, 2]"))
	}
	if o.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("chat.max-tokens must be positive"))
	}
	return errs
}
