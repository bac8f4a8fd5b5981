package biz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazysoft/consultant/internal/model"
	"github.com/lazysoft/consultant/pkg/utils/errors"
)

func TestDefaultServiceKey(t *testing.T) {
	tests := []struct {
		name string
		hit  model.SearchHit
		want string
	}{
		{"service title wins", model.SearchHit{ServiceTitle: "CRM-інтеграція", Title: "Чат-бот", Category: model.CategoryPricing}, "crm-інтеграція"},
		{"title keyword", model.SearchHit{Title: "Telegram Chat-Bot для салону", Category: model.CategoryProject}, "chatbot"},
		{"cyrillic keyword", model.SearchHit{Title: "Лендінг для школи", Category: model.CategoryProject}, "landing"},
		{"category fallback", model.SearchHit{Title: "Про компанію", Category: model.CategoryAbout}, model.CategoryAbout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultServiceKey(&tt.hit))
		})
	}
}

func TestRetriever_Diversify(t *testing.T) {
	r := NewRetriever(nil, nil, nil, RetrieverConfig{})
	hits := []model.SearchHit{
		{EntityID: "1", ServiceTitle: "A"},
		{EntityID: "2", ServiceTitle: "A"},
		{EntityID: "3", ServiceTitle: "A"},
		{EntityID: "4", ServiceTitle: "B"},
		{EntityID: "5", ServiceTitle: "A"},
		{EntityID: "6", ServiceTitle: "C"},
	}

	t.Run("caps each key at two", func(t *testing.T) {
		out := r.diversify(hits, 10)
		ids := make([]string, 0, len(out))
		for _, h := range out {
			ids = append(ids, h.EntityID)
		}
		assert.Equal(t, []string{"1", "2", "4", "6"}, ids)
	})

	t.Run("stops at limit", func(t *testing.T) {
		out := r.diversify(hits, 3)
		require.Len(t, out, 3)
		assert.Equal(t, "4", out[2].EntityID)
	})

	t.Run("no top-up past the cap", func(t *testing.T) {
		out := r.diversify(hits[:4], 4)
		ids := make([]string, 0, len(out))
		for _, h := range out {
			ids = append(ids, h.EntityID)
		}
		assert.Equal(t, []string{"1", "2", "4"}, ids)
	})

	t.Run("custom key", func(t *testing.T) {
		r := NewRetriever(nil, nil, nil, RetrieverConfig{}).WithServiceKey(func(*model.SearchHit) string { return "same" })
		assert.Len(t, r.diversify(hits, 10), 2)
	})
}

func TestRetriever_Search(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedAndIndex(t)

	t.Run("language and threshold", func(t *testing.T) {
		hits, err := env.retriever.Search(ctx, SearchRequest{Query: "чат-бот", Language: "uk"})
		require.NoError(t, err)
		require.Len(t, hits, 3)
		for _, h := range hits {
			assert.Equal(t, "Чат-бот для бізнесу", h.ServiceTitle)
			assert.InDelta(t, 0.707, h.Similarity, 0.001)
		}
	})

	t.Run("per request threshold", func(t *testing.T) {
		hits, err := env.retriever.Search(ctx, SearchRequest{Query: "чат-бот", Language: "uk", Threshold: ptr(0.9)})
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("category filter", func(t *testing.T) {
		hits, err := env.retriever.Search(ctx, SearchRequest{Query: "послуги", Language: "uk", Category: model.CategoryPricing})
		require.NoError(t, err)
		require.Len(t, hits, 3)
		for _, h := range hits {
			assert.Equal(t, model.CategoryPricing, h.Category)
			assert.NotNil(t, h.PriceFrom)
			assert.Equal(t, "USD", h.Currency)
		}
	})

	t.Run("diversified", func(t *testing.T) {
		hits, err := env.retriever.Search(ctx, SearchRequest{Query: "чат-бот", Language: "uk", Diversify: true})
		require.NoError(t, err)
		assert.Len(t, hits, 2)
	})

	t.Run("empty query", func(t *testing.T) {
		hits, err := env.retriever.Search(ctx, SearchRequest{Query: "  ", Language: "uk"})
		assert.ErrorIs(t, err, errors.ErrEmptyQuery)
		assert.NotNil(t, hits)
		assert.Empty(t, hits)
	})

	t.Run("embedding failure degrades to empty", func(t *testing.T) {
		env.embed.fail = true
		defer func() { env.embed.fail = false }()

		hits, err := env.retriever.Search(ctx, SearchRequest{Query: "чат-бот", Language: "uk"})
		require.NoError(t, err)
		assert.Empty(t, hits)
	})
}
