package biz

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lazysoft/consultant/internal/consultant/metrics"
	"github.com/lazysoft/consultant/pkg/infra/tracing"
	"github.com/lazysoft/consultant/pkg/llm"
	"github.com/lazysoft/consultant/pkg/utils/errors"
)

// EmbedderConfig 启动时确定的 embedding 配置，运行期间不变。
type EmbedderConfig struct {
	// Model 写入向量行的模型名称。
	Model string
	// Dimension 向量维度 D。
	Dimension int
}

// Embedder 调用 embedding 供应商，并把结果规范为长度为 D 的单位向量。
type Embedder struct {
	provider llm.EmbeddingProvider
	config   EmbedderConfig
	metrics  *metrics.ConsultantMetrics
}

// NewEmbedder creates an embedder. m may be nil.
func NewEmbedder(provider llm.EmbeddingProvider, config EmbedderConfig, m *metrics.ConsultantMetrics) *Embedder {
	return &Embedder{provider: provider, config: config, metrics: m}
}

// Provider returns the provider name.
func (e *Embedder) Provider() string {
	return e.provider.Name()
}

// Model returns the configured model name.
func (e *Embedder) Model() string {
	return e.config.Model
}

// Dimension returns D.
func (e *Embedder) Dimension() int {
	return e.config.Dimension
}

// Embed 生成文本向量。空文本返回 ErrEmptyQuery，供应商失败返回 ErrProviderUnavailable。
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.ErrEmptyQuery
	}

	ctx, span := tracing.StartSpan(ctx, "embedding.embed",
		attribute.String(tracing.ProviderName, e.provider.Name()),
		attribute.String(tracing.ProviderModel, e.config.Model),
	)
	defer span.End()

	start := time.Now()
	raw, err := e.provider.EmbedSingle(ctx, text)
	if e.metrics != nil {
		e.metrics.RecordEmbedding(time.Since(start), err)
	}
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, errors.ErrProviderUnavailable.WithCause(err)
	}

	vec, fixed := NormalizeVector(raw, e.config.Dimension)
	if fixed {
		logger.Warnw("embedding shape normalized",
			"provider", e.provider.Name(),
			"model", e.config.Model,
			"got", len(raw),
			"want", e.config.Dimension,
		)
	}
	return vec, nil
}

// NormalizeVector 将 NaN/±Inf 置 0，截断或补零到 dim，然后做 L2 归一化。
// fixed 表示原始向量维度不符或含非法值。
func NormalizeVector(raw []float32, dim int) (vec []float32, fixed bool) {
	vec = make([]float32, dim)
	fixed = len(raw) != dim

	var norm float64
	for i := 0; i < dim && i < len(raw); i++ {
		f := float64(raw[i])
		if math.IsNaN(f) || math.IsInf(f, 0) {
			fixed = true
			continue
		}
		vec[i] = raw[i]
		norm += f * f
	}
	if norm == 0 {
		return vec, fixed
	}
	inv := 1 / math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) * inv)
	}
	return vec, fixed
}
