package biz

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazysoft/consultant/internal/model"
	"github.com/lazysoft/consultant/pkg/utils/errors"
)

func TestNormalizeVector(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	tests := []struct {
		name      string
		raw       []float32
		dim       int
		want      []float32
		wantFixed bool
	}{
		{"unit already", []float32{1, 0, 0}, 3, []float32{1, 0, 0}, false},
		{"scaled", []float32{3, 4}, 2, []float32{0.6, 0.8}, false},
		{"padded", []float32{2}, 3, []float32{1, 0, 0}, true},
		{"truncated", []float32{0, 5, 7}, 2, []float32{0, 1}, true},
		{"non finite zeroed", []float32{nan, 2, inf}, 3, []float32{0, 1, 0}, true},
		{"all zero", []float32{0, 0}, 2, []float32{0, 0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vec, fixed := NormalizeVector(tt.raw, tt.dim)
			assert.Equal(t, tt.wantFixed, fixed)
			require.Len(t, vec, tt.dim)
			for i := range vec {
				assert.InDelta(t, tt.want[i], vec[i], 1e-6)
			}
		})
	}
}

func TestEmbedder_WrongDimension(t *testing.T) {
	e := NewEmbedder(&topicEmbedder{}, EmbedderConfig{Model: "topic-v1", Dimension: 12}, nil)
	vec, err := e.Embed(context.Background(), "чат-бот")
	require.NoError(t, err)
	require.Len(t, vec, 12)
	assert.InDelta(t, 1, vec[0], 1e-6)

	_, err = e.Embed(context.Background(), " ")
	assert.ErrorIs(t, err, errors.ErrEmptyQuery)
}

func TestEmbedder_ProviderFailure(t *testing.T) {
	e := NewEmbedder(&topicEmbedder{fail: true}, EmbedderConfig{Dimension: testDim}, nil)
	_, err := e.Embed(context.Background(), "чат-бот")
	assert.ErrorIs(t, err, errors.ErrProviderUnavailable)
}

func TestIndexer_ReindexAllIsIdempotent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedAndIndex(t)

	vectors := env.store.Vectors()
	before, err := vectors.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 14, before)

	key := model.ChunkKey{Kind: model.KindService, ID: "1", Language: "uk"}
	first, err := vectors.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "topic-v1", first.ModelName)
	assert.Equal(t, "test", first.Version)
	assert.Len(t, first.Vector, testDim)

	time.Sleep(10 * time.Millisecond)
	n, err := env.indexer.ReindexAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	after, err := vectors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	second, err := vectors.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
	assert.True(t, second.CreatedAt.Equal(first.CreatedAt))

	byCategory, err := vectors.CountByCategory(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 8, byCategory[model.CategoryService])
	assert.EqualValues(t, 6, byCategory[model.CategoryPricing])
}

func TestIndexer_InactiveObjectDeactivated(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedAndIndex(t)

	require.NoError(t, env.db.Model(&model.ServiceCategory{}).Where("slug = ?", "seo").Update("active", false).Error)
	var seo model.ServiceCategory
	require.NoError(t, env.db.Where("slug = ?", "seo").First(&seo).Error)

	n, err := env.indexer.Reindex(ctx, model.KindService, seo.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	chunk, err := env.store.Vectors().Get(ctx, model.ChunkKey{Kind: model.KindService, ID: idString(seo.ID), Language: "uk"})
	require.NoError(t, err)
	assert.False(t, chunk.Active)

	hits, err := env.retriever.Search(ctx, SearchRequest{Query: "seo", Language: "uk"})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndexer_SweepOrphans(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedAndIndex(t)

	require.NoError(t, env.db.Where("slug = ?", "landing").Delete(&model.ServiceCategory{}).Error)

	deleted, err := env.indexer.SweepOrphans(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	deleted, err = env.indexer.SweepOrphans(ctx)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	count, err := env.store.Vectors().Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 12, count)
}

func TestIndexer_ReindexMissingObjectRemovesChunks(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedAndIndex(t)

	var seo model.ServiceCategory
	require.NoError(t, env.db.Where("slug = ?", "seo").First(&seo).Error)
	require.NoError(t, env.db.Delete(&seo).Error)

	_, err := env.indexer.Reindex(ctx, model.KindService, seo.ID)
	assert.ErrorIs(t, err, errors.ErrEntityNotFound)

	_, err = env.store.Vectors().Get(ctx, model.ChunkKey{Kind: model.KindService, ID: idString(seo.ID), Language: "uk"})
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestIndexer_KnowledgeEntry(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	entry := &model.KnowledgeEntry{
		Title:      "Гарантія",
		SourceType: model.SourceManual,
		Content:    model.LocalizedText{"uk": "Ми надаємо гарантійний сервіс 3 місяці."},
		Priority:   2,
		Active:     true,
	}
	require.NoError(t, env.store.Knowledge().Create(ctx, entry))

	n, err := env.indexer.Reindex(ctx, model.KindKnowledge, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "content falls back to uk for en")

	chunk, err := env.store.Vectors().Get(ctx, model.ChunkKey{Kind: model.KindKnowledge, ID: idString(entry.ID), Language: "en"})
	require.NoError(t, err)
	assert.Equal(t, model.CategoryManual, chunk.Category)
	assert.Contains(t, chunk.ContentText, "гарантійний")

	stored, err := env.store.Knowledge().Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastEmbeddingUpdate)

	removed, err := env.indexer.Remove(ctx, model.KindKnowledge, entry.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)
}

func TestIndexer_UnsupportedKind(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.indexer.Reindex(context.Background(), "vacancy", 1)
	assert.ErrorIs(t, err, errors.ErrInvalidParam)
}
