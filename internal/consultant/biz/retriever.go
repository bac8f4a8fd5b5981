package biz

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lazysoft/consultant/internal/consultant/metrics"
	"github.com/lazysoft/consultant/internal/consultant/store"
	"github.com/lazysoft/consultant/internal/model"
	"github.com/lazysoft/consultant/pkg/infra/tracing"
	"github.com/lazysoft/consultant/pkg/utils/errors"
)

// maxPerServiceKey 多样化检索时每个服务键最多保留的结果数。
const maxPerServiceKey = 2

// RetrieverConfig 检索器配置。
type RetrieverConfig struct {
	// MaxResults 默认返回条数。
	MaxResults int
	// Threshold 默认相似度阈值。
	Threshold float64
}

// SearchRequest 一次检索请求，零值字段使用默认配置。
type SearchRequest struct {
	Query     string
	Language  string
	Category  string
	Limit     int
	Threshold *float64
	Diversify bool
}

// ServiceKeyFunc 计算多样化分组使用的服务键。
type ServiceKeyFunc func(hit *model.SearchHit) string

// serviceVocabulary 标题关键词到服务键的映射，按顺序匹配。
var serviceVocabulary = []struct {
	keyword string
	key     string
}{
	{"chatbot", "chatbot"},
	{"chat-bot", "chatbot"},
	{"чат-бот", "chatbot"},
	{"чатбот", "chatbot"},
	{"crm", "crm"},
	{"etl", "etl"},
	{"landing", "landing"},
	{"лендінг", "landing"},
	{"seo", "seo"},
}

// DefaultServiceKey 依次使用 service_title 元数据、标题关键词、类别。
func DefaultServiceKey(hit *model.SearchHit) string {
	if hit.ServiceTitle != "" {
		return strings.ToLower(hit.ServiceTitle)
	}
	title := strings.ToLower(hit.Title)
	for _, v := range serviceVocabulary {
		if strings.Contains(title, v.keyword) {
			return v.key
		}
	}
	return hit.Category
}

// Retriever 负责向量检索。
type Retriever struct {
	vectors    store.VectorStore
	embedder   *Embedder
	metrics    *metrics.ConsultantMetrics
	config     RetrieverConfig
	serviceKey ServiceKeyFunc
}

// NewRetriever 创建检索器实例。
func NewRetriever(vectors store.VectorStore, e *Embedder, m *metrics.ConsultantMetrics, config RetrieverConfig) *Retriever {
	if config.MaxResults <= 0 {
		config.MaxResults = 10
	}
	if config.Threshold <= 0 {
		config.Threshold = 0.7
	}
	return &Retriever{
		vectors:    vectors,
		embedder:   e,
		metrics:    m,
		config:     config,
		serviceKey: DefaultServiceKey,
	}
}

// WithServiceKey replaces the grouping key used by diversification.
func (r *Retriever) WithServiceKey(fn ServiceKeyFunc) *Retriever {
	if fn != nil {
		r.serviceKey = fn
	}
	return r
}

// Search 执行检索。
// 空查询返回 ErrEmptyQuery；embedding 失败时记录日志并返回空结果。
func (r *Retriever) Search(ctx context.Context, req SearchRequest) ([]model.SearchHit, error) {
	if strings.TrimSpace(req.Query) == "" {
		return []model.SearchHit{}, errors.ErrEmptyQuery
	}

	limit := req.Limit
	if limit <= 0 {
		limit = r.config.MaxResults
	}
	threshold := r.config.Threshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	ctx, span := tracing.StartSpan(ctx, "retriever.search",
		attribute.String(tracing.Language, req.Language),
	)
	defer span.End()

	vec, err := r.embedder.Embed(ctx, req.Query)
	if err != nil {
		logger.Warnw("query embedding failed, returning empty result",
			"provider", r.embedder.Provider(),
			"language", req.Language,
			"error", err,
		)
		r.record(0)
		return []model.SearchHit{}, nil
	}

	fetch := limit
	if req.Diversify {
		fetch = limit * 3
	}
	scored, err := r.vectors.Search(ctx, &store.SearchQuery{
		Vector:      vec,
		Language:    req.Language,
		Category:    req.Category,
		MaxDistance: 1 - threshold,
		Limit:       fetch,
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		return []model.SearchHit{}, err
	}

	hits := make([]model.SearchHit, 0, len(scored))
	for _, sc := range scored {
		hits = append(hits, toSearchHit(sc))
	}
	if req.Diversify {
		hits = r.diversify(hits, limit)
	} else if len(hits) > limit {
		hits = hits[:limit]
	}

	span.SetAttributes(attribute.Int(tracing.RetrievalHits, len(hits)))
	r.record(len(hits))
	return hits, nil
}

func (r *Retriever) record(hits int) {
	if r.metrics != nil {
		r.metrics.RecordRetrieval(hits)
	}
}

// diversify 按排名顺序选取，每个服务键最多 2 条。
// 不足 limit 时不用超出上限的结果补齐。
func (r *Retriever) diversify(hits []model.SearchHit, limit int) []model.SearchHit {
	perKey := make(map[string]int)
	out := make([]model.SearchHit, 0, limit)
	for i := range hits {
		if len(out) == limit {
			break
		}
		key := r.serviceKey(&hits[i])
		if perKey[key] >= maxPerServiceKey {
			continue
		}
		perKey[key]++
		out = append(out, hits[i])
	}
	return out
}

func toSearchHit(sc store.ScoredChunk) model.SearchHit {
	c := sc.Chunk
	hit := model.SearchHit{
		EntityKind:  c.EntityKind,
		EntityID:    c.EntityID,
		Title:       c.Title,
		Category:    c.Category,
		ContentText: c.ContentText,
		Similarity:  similarity(sc.Distance),
		Metadata:    c.Metadata,
	}
	meta := c.Metadata
	hit.URL = metaString(meta, model.MetaURL)
	hit.Slug = metaString(meta, model.MetaSlug)
	hit.ServiceTitle = metaString(meta, model.MetaServiceTitle)
	hit.PackageName = metaString(meta, model.MetaPackageName)
	hit.Currency = metaString(meta, model.MetaCurrency)
	hit.PriceFrom = metaFloat(meta, model.MetaPriceFrom)
	hit.PriceTo = metaFloat(meta, model.MetaPriceTo)
	return hit
}

// similarity = round(1 - distance, 3)，限制在 [0, 1]。
func similarity(distance float64) float64 {
	s := math.Round((1-distance)*1000) / 1000
	return math.Max(0, math.Min(1, s))
}

func metaString(meta map[string]any, key string) string {
	if v, ok := meta[key].(string); ok {
		return v
	}
	return ""
}

func metaFloat(meta map[string]any, key string) *float64 {
	var f float64
	switch v := meta[key].(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	return &f
}
