package resilience

import (
	"context"

	"github.com/lazysoft/consultant/pkg/llm"
)

var (
	_ llm.EmbeddingProvider = (*ResilientEmbeddingProvider)(nil)
	_ llm.ChatProvider      = (*ResilientChatProvider)(nil)
)

// ResilientEmbeddingProvider 带重试和熔断的 Embedding Provider 包装器。
type ResilientEmbeddingProvider struct {
	provider llm.EmbeddingProvider
	retry    *RetryConfig
	cb       *CircuitBreaker
}

// NewResilientEmbeddingProvider 创建带韧性功能的 Embedding Provider。
func NewResilientEmbeddingProvider(provider llm.EmbeddingProvider, retry *RetryConfig, cbConfig *CircuitBreakerConfig) *ResilientEmbeddingProvider {
	if retry == nil {
		retry = DefaultRetryConfig()
	}
	if cbConfig == nil {
		cbConfig = DefaultCircuitBreakerConfig()
	}
	if cbConfig.Name == "" {
		cbConfig.Name = "embedding:" + provider.Name()
	}
	return &ResilientEmbeddingProvider{provider: provider, retry: retry, cb: NewCircuitBreaker(cbConfig)}
}

// Embed 为多个文本生成向量嵌入。
func (r *ResilientEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return Retry(ctx, r.retry, func() ([][]float32, error) {
		var out [][]float32
		err := r.cb.Execute(func() error {
			var err error
			out, err = r.provider.Embed(ctx, texts)
			return err
		}, isCallerCancel)
		return out, err
	})
}

// EmbedSingle 为单个文本生成向量嵌入。
func (r *ResilientEmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return Retry(ctx, r.retry, func() ([]float32, error) {
		var out []float32
		err := r.cb.Execute(func() error {
			var err error
			out, err = r.provider.EmbedSingle(ctx, text)
			return err
		}, isCallerCancel)
		return out, err
	})
}

// Name 返回底层供应商名称。
func (r *ResilientEmbeddingProvider) Name() string {
	return r.provider.Name()
}

// CircuitBreaker 获取熔断器实例（用于监控）。
func (r *ResilientEmbeddingProvider) CircuitBreaker() *CircuitBreaker {
	return r.cb
}

// ResilientChatProvider 带重试和熔断的 Chat Provider 包装器。
type ResilientChatProvider struct {
	provider llm.ChatProvider
	retry    *RetryConfig
	cb       *CircuitBreaker
}

// NewResilientChatProvider 创建带韧性功能的 Chat Provider。
func NewResilientChatProvider(provider llm.ChatProvider, retry *RetryConfig, cbConfig *CircuitBreakerConfig) *ResilientChatProvider {
	if retry == nil {
		retry = DefaultRetryConfig()
	}
	if cbConfig == nil {
		cbConfig = DefaultCircuitBreakerConfig()
	}
	if cbConfig.Name == "" {
		cbConfig.Name = "chat:" + provider.Name()
	}
	return &ResilientChatProvider{provider: provider, retry: retry, cb: NewCircuitBreaker(cbConfig)}
}

// Chat 进行多轮对话。
func (r *ResilientChatProvider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.ChatOption) (*llm.ChatResponse, error) {
	return Retry(ctx, r.retry, func() (*llm.ChatResponse, error) {
		var out *llm.ChatResponse
		err := r.cb.Execute(func() error {
			var err error
			out, err = r.provider.Chat(ctx, messages, opts...)
			return err
		}, isCallerCancel)
		return out, err
	})
}

// Name 返回底层供应商名称。
func (r *ResilientChatProvider) Name() string {
	return r.provider.Name()
}

// CircuitBreaker 获取熔断器实例（用于监控）。
func (r *ResilientChatProvider) CircuitBreaker() *CircuitBreaker {
	return r.cb
}
