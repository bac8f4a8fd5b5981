package biz

import (
	"context"
	stderrors "errors"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lazysoft/consultant/internal/consultant/metrics"
	"github.com/lazysoft/consultant/internal/consultant/store"
	"github.com/lazysoft/consultant/internal/model"
	"github.com/lazysoft/consultant/pkg/infra/pool"
	"github.com/lazysoft/consultant/pkg/infra/tracing"
	"github.com/lazysoft/consultant/pkg/utils/errors"
)

// IndexerConfig 索引器配置。
type IndexerConfig struct {
	// Languages 每个对象需要索引的语言。
	Languages []string
	// Kinds 允许索引的对象类型。
	Kinds []string
	// MaxContentChars content_text 的最大字符数。
	MaxContentChars int
	// Version 写入分块的索引版本号。
	Version string
}

// Indexer 负责把目录实体写入向量存储。
type Indexer struct {
	store    store.Factory
	embedder *Embedder
	caps     *Capabilities
	pool     *pool.Pool
	metrics  *metrics.ConsultantMetrics
	config   IndexerConfig
}

// NewIndexer 创建索引器实例。p 为 nil 时批量索引串行执行。
func NewIndexer(s store.Factory, e *Embedder, caps *Capabilities, p *pool.Pool, m *metrics.ConsultantMetrics, config IndexerConfig) *Indexer {
	if caps == nil {
		caps = NewCapabilities()
	}
	if config.MaxContentChars <= 0 {
		config.MaxContentChars = 5000
	}
	return &Indexer{store: s, embedder: e, caps: caps, pool: p, metrics: m, config: config}
}

// classKinds knowledge 条目的 source_type 到对应实体类型的映射。
var classKinds = map[string]string{
	model.SourceService: model.KindService,
	model.SourceProject: model.KindProject,
	model.SourceFAQ:     model.KindFAQ,
	model.SourcePricing: model.KindPricing,
}

type objectRef struct {
	kind string
	id   uint64
}

func (i *Indexer) load(ctx context.Context, kind string, id uint64) (*Source, error) {
	loader, ok := i.caps.Lookup(kind)
	if !ok {
		return nil, errors.ErrInvalidParam.WithMessagef("unsupported entity kind %q", kind)
	}
	return loader(ctx, i.store, id)
}

// IndexObject 为单个对象的一种语言生成或刷新分块。
// 内容为空时跳过并返回 false；对象未启用时停用其分块。
func (i *Indexer) IndexObject(ctx context.Context, kind string, id uint64, lang string) (bool, error) {
	src, err := i.load(ctx, kind, id)
	if err != nil {
		return false, err
	}
	if !src.Active {
		_, err := i.store.Vectors().Deactivate(ctx, kind, idString(id))
		return false, err
	}
	return i.indexSource(ctx, src, lang)
}

func (i *Indexer) indexSource(ctx context.Context, src *Source, lang string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "indexer.index",
		attribute.String(tracing.ObjectKind, src.Kind),
		attribute.String(tracing.Language, lang),
	)
	defer span.End()

	ex := src.Extract(lang)
	text := truncateRunes(strings.TrimSpace(ex.Text), i.config.MaxContentChars)
	if text == "" {
		logger.Warnw("empty text extracted, skipped",
			"entity_kind", src.Kind,
			"entity_id", src.ID,
			"language", lang,
		)
		return false, nil
	}

	vec, err := i.embedder.Embed(ctx, text)
	if err != nil {
		i.recordIndexed(err)
		tracing.RecordError(ctx, err)
		return false, err
	}

	chunk := &model.IndexedChunk{
		EntityKind:  src.Kind,
		EntityID:    idString(src.ID),
		Language:    lang,
		Category:    ex.Category,
		Title:       ex.Title,
		ContentText: text,
		Tags:        ex.Tags,
		Metadata:    ex.Metadata,
		Vector:      vec,
		ModelName:   i.embedder.Model(),
		Version:     i.config.Version,
		Active:      true,
	}
	if err := i.store.Vectors().Upsert(ctx, chunk); err != nil {
		i.recordIndexed(err)
		tracing.RecordError(ctx, err)
		return false, err
	}
	i.recordIndexed(nil)

	if src.Kind == model.KindKnowledge {
		if err := i.store.Knowledge().TouchEmbedding(ctx, src.ID, time.Now()); err != nil {
			logger.Warnw("failed to update knowledge embedding time", "entity_id", src.ID, "error", err)
		}
	}
	return true, nil
}

func (i *Indexer) recordIndexed(err error) {
	if i.metrics != nil {
		i.metrics.RecordIndexed(err)
	}
}

// Reindex 在所有语言下重建单个对象的分块，返回写入的分块数。
// 对象不存在时删除其分块；source_type 为实体类别的知识条目触发该类别的批量重建。
func (i *Indexer) Reindex(ctx context.Context, kind string, id uint64) (int, error) {
	src, err := i.load(ctx, kind, id)
	if stderrors.Is(err, errors.ErrEntityNotFound) || stderrors.Is(err, errors.ErrNotFound) {
		if _, rerr := i.Remove(ctx, kind, id); rerr != nil {
			return 0, rerr
		}
		return 0, err
	}
	if err != nil {
		return 0, err
	}

	if target, ok := classKinds[src.SourceType]; ok && src.Kind == model.KindKnowledge {
		logger.Infow("knowledge entry triggers class reindex", "entity_id", id, "target_kind", target)
		return i.ReindexAll(ctx, target)
	}
	return i.reindexSource(ctx, src)
}

func (i *Indexer) reindexSource(ctx context.Context, src *Source) (int, error) {
	if !src.Active {
		n, err := i.store.Vectors().Deactivate(ctx, src.Kind, idString(src.ID))
		if err == nil && n > 0 {
			logger.Infow("chunks deactivated", "entity_kind", src.Kind, "entity_id", src.ID, "rows", n)
		}
		return 0, err
	}

	var (
		written  int
		firstErr error
	)
	for _, lang := range i.config.Languages {
		ok, err := i.indexSource(ctx, src, lang)
		if err != nil {
			logger.Errorw("failed to index object",
				"entity_kind", src.Kind,
				"entity_id", src.ID,
				"language", lang,
				"provider", i.embedder.Provider(),
				"error", err,
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			written++
		}
	}
	return written, firstErr
}

// ReindexAll 批量重建指定类型（默认全部允许的类型）在所有语言下的分块，
// 返回成功处理的对象数。单个对象失败只记录日志。重复执行结果相同。
func (i *Indexer) ReindexAll(ctx context.Context, kinds ...string) (int, error) {
	if len(kinds) == 0 {
		kinds = i.config.Kinds
	}
	start := time.Now()

	var refs []objectRef
	for _, kind := range kinds {
		if !slices.Contains(i.config.Kinds, kind) {
			logger.Warnw("kind not indexable, skipped", "entity_kind", kind)
			continue
		}
		ids, err := i.store.Catalog().IDs(ctx, kind)
		if err != nil {
			return 0, err
		}
		for _, id := range ids {
			refs = append(refs, objectRef{kind: kind, id: id})
		}
	}

	var (
		processed atomic.Int64
		mu        sync.Mutex
	)
	triggered := map[string]bool{}
	work := func(ctx context.Context, ref objectRef) {
		src, err := i.load(ctx, ref.kind, ref.id)
		if err != nil {
			logger.Errorw("failed to load object", "entity_kind", ref.kind, "entity_id", ref.id, "error", err)
			return
		}
		if target, ok := classKinds[src.SourceType]; ok && src.Kind == model.KindKnowledge {
			mu.Lock()
			triggered[target] = true
			mu.Unlock()
			return
		}
		n, err := i.reindexSource(ctx, src)
		if err == nil && n > 0 {
			processed.Add(1)
		}
	}

	if i.pool == nil {
		for _, ref := range refs {
			if ctx.Err() != nil {
				return int(processed.Load()), ctx.Err()
			}
			work(ctx, ref)
		}
	} else if err := pool.Each(ctx, i.pool, refs, work); err != nil {
		return int(processed.Load()), err
	}

	total := int(processed.Load())
	for target := range triggered {
		if slices.Contains(kinds, target) {
			continue
		}
		n, err := i.ReindexAll(ctx, target)
		if err != nil {
			return total + n, err
		}
		total += n
	}

	logger.Infow("bulk reindex finished",
		"kinds", kinds,
		"objects", len(refs),
		"processed", total,
		"duration", time.Since(start).String(),
	)
	return total, nil
}

// SweepOrphans 删除引用对象已不存在的分块，返回删除的行数。
func (i *Indexer) SweepOrphans(ctx context.Context) (int64, error) {
	var deleted int64
	for _, kind := range i.config.Kinds {
		keys, err := i.store.Vectors().Keys(ctx, kind)
		if err != nil {
			return deleted, err
		}
		if len(keys) == 0 {
			continue
		}
		ids, err := i.store.Catalog().IDs(ctx, kind)
		if err != nil {
			return deleted, err
		}
		live := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			live[idString(id)] = struct{}{}
		}

		var orphans []model.ChunkKey
		for _, k := range keys {
			if _, ok := live[k.ID]; !ok {
				orphans = append(orphans, k)
			}
		}
		if len(orphans) == 0 {
			continue
		}
		n, err := i.store.Vectors().Delete(ctx, orphans...)
		if err != nil {
			return deleted, err
		}
		deleted += n
		logger.Infow("orphan chunks deleted", "entity_kind", kind, "rows", n)
	}
	if i.metrics != nil {
		i.metrics.RecordOrphansDeleted(deleted)
	}
	return deleted, nil
}

// Remove 删除对象在所有语言下的分块。
func (i *Indexer) Remove(ctx context.Context, kind string, id uint64) (int64, error) {
	keys, err := i.store.Vectors().Keys(ctx, kind)
	if err != nil {
		return 0, err
	}
	target := idString(id)
	var matched []model.ChunkKey
	for _, k := range keys {
		if k.ID == target {
			matched = append(matched, k)
		}
	}
	if len(matched) == 0 {
		return 0, nil
	}
	return i.store.Vectors().Delete(ctx, matched...)
}

func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
