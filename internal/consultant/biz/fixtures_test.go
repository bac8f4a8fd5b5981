package biz

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/lazysoft/consultant/internal/consultant/metrics"
	"github.com/lazysoft/consultant/internal/consultant/store"
	"github.com/lazysoft/consultant/internal/model"
	"github.com/lazysoft/consultant/pkg/llm"
)

const testDim = 8

// topicKeywords 每个维度对应一组关键词，未命中任何主题的文本落在最后一维。
var topicKeywords = [][]string{
	{"чат-бот", "chatbot"},
	{"crm"},
	{"лендінг", "landing"},
	{"seo"},
	{"сервіс", "послуг", "service"},
}

// topicEmbedder 按关键词主题生成确定性的向量。
type topicEmbedder struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (e *topicEmbedder) Name() string { return "topic" }

func (e *topicEmbedder) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.fail {
		return nil, stderrors.New("embedding endpoint unavailable")
	}
	vec := make([]float32, testDim)
	lower := strings.ToLower(text)
	matched := false
	for i, keywords := range topicKeywords {
		for _, k := range keywords {
			if strings.Contains(lower, k) {
				vec[i] = 1
				matched = true
				break
			}
		}
	}
	if !matched {
		vec[testDim-1] = 1
	}
	return vec, nil
}

func (e *topicEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := e.EmbedSingle(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

type chatCall struct {
	model  string
	system string
	user   string
}

// scriptedChat 按提示词中的模式返回固定回复，服务概览时复述上下文中的服务名。
type scriptedChat struct {
	mu         sync.Mutex
	calls      []chatCall
	failModels map[string]bool
	// during 在生成期间执行一次，模拟并发的其他写入。
	during func()
}

func (c *scriptedChat) Name() string { return "scripted" }

func (c *scriptedChat) Chat(_ context.Context, msgs []llm.Message, opts ...llm.ChatOption) (*llm.ChatResponse, error) {
	o := llm.ApplyChatOptions(llm.ChatOptions{}, opts...)
	system, user := msgs[0].Content, msgs[len(msgs)-1].Content

	c.mu.Lock()
	c.calls = append(c.calls, chatCall{model: o.Model, system: system, user: user})
	fail := c.failModels[o.Model]
	during := c.during
	c.during = nil
	c.mu.Unlock()
	if during != nil {
		during()
	}
	if fail {
		return nil, stderrors.New("model overloaded")
	}

	var text string
	switch {
	case strings.Contains(system, pricingAskPrompt):
		text = "Базовий пакет коштує від 500 $.\nРозкажіть більше про ваш бізнес."
	case strings.Contains(system, pricingFollowupPrompt):
		text = "Для вашого магазину підійде пакет Стандарт.\n1. Чи потрібна мобільна версія?"
	default:
		var names []string
		for _, line := range strings.Split(user, "\n") {
			if name, ok := strings.CutPrefix(line, "Сервіс: "); ok {
				names = append(names, name)
			}
		}
		if len(names) > 0 {
			text = "Ми пропонуємо: " + strings.Join(names, ", ") + "."
		} else {
			text = "Чим можу допомогти вашому бізнесу сьогодні?"
		}
	}
	return &llm.ChatResponse{
		Content: text,
		Model:   o.Model,
		Usage:   llm.TokenUsage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150},
	}, nil
}

func (c *scriptedChat) models() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.calls))
	for _, call := range c.calls {
		out = append(out, call.model)
	}
	return out
}

// testEnv 基于内存 SQLite 的完整业务环境。
type testEnv struct {
	db        *gorm.DB
	store     store.Factory
	embed     *topicEmbedder
	chat      *scriptedChat
	metrics   *metrics.ConsultantMetrics
	embedder  *Embedder
	indexer   *Indexer
	retriever *Retriever
	locker    store.SessionLocker
	engine    *DialogueEngine
}

var testKinds = []string{
	model.KindService, model.KindProject, model.KindFAQ, model.KindPricing,
	model.KindKnowledge, model.KindAbout, model.KindContact,
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	f := store.NewStore(db, store.NewSQLVectorStore(db))
	require.NoError(t, f.Migrate(context.Background()))

	env := &testEnv{
		db:      db,
		store:   f,
		embed:   &topicEmbedder{},
		chat:    &scriptedChat{failModels: map[string]bool{}},
		metrics: metrics.New(),
		locker:  store.NewMemoryLocker(),
	}
	env.embedder = NewEmbedder(env.embed, EmbedderConfig{Model: "topic-v1", Dimension: testDim}, env.metrics)
	env.indexer = NewIndexer(f, env.embedder, nil, nil, env.metrics, IndexerConfig{
		Languages: []string{"uk", "en"},
		Kinds:     testKinds,
		Version:   "test",
	})
	env.retriever = NewRetriever(f.Vectors(), env.embedder, env.metrics, RetrieverConfig{
		MaxResults: 10,
		Threshold:  0.6,
	})
	env.engine = NewDialogueEngine(f.Sessions(), env.retriever, env.chat, env.locker, env.metrics, DialogueConfig{
		Languages:       []string{"uk", "en", "pl"},
		Personas:        map[string]string{"uk": "Юлія", "en": "Julie", "pl": "Julia"},
		Company:         "LazySoft",
		ConsultationURL: "https://calendly.com/lazysoft/60min",
		ChatModel:       "primary",
		FallbackModel:   "mini",
		CostPer1KTokens: 0.002,
	})
	return env
}

func ptr[T any](v T) *T { return &v }

// seedCatalog 写入四个服务和三个价格包，返回服务的乌克兰语标题。
func (env *testEnv) seedCatalog(t *testing.T) []string {
	t.Helper()
	services := []*model.ServiceCategory{
		{Slug: "chatbot", Title: model.LocalizedText{"uk": "Чат-бот для бізнесу", "en": "Chatbot for business"}, Description: model.LocalizedText{"uk": "Розробляємо ботів для Telegram і Viber."}, Active: true},
		{Slug: "crm", Title: model.LocalizedText{"uk": "CRM-інтеграція", "en": "CRM integration"}, Description: model.LocalizedText{"uk": "Підключаємо облік клієнтів до ваших систем."}, Active: true},
		{Slug: "landing", Title: model.LocalizedText{"uk": "Лендінг під ключ", "en": "Turnkey landing page"}, Description: model.LocalizedText{"uk": "Односторінкові сайти для реклами."}, Active: true},
		{Slug: "seo", Title: model.LocalizedText{"uk": "SEO-просування", "en": "SEO promotion"}, Description: model.LocalizedText{"uk": "Пошукова оптимізація сайтів."}, Active: true},
	}
	for _, s := range services {
		require.NoError(t, env.db.Create(s).Error)
	}
	basic := &model.PricingTier{Name: "basic", DisplayName: model.LocalizedText{"uk": "Базовий"}, Order: 1}
	standard := &model.PricingTier{Name: "standard", DisplayName: model.LocalizedText{"uk": "Стандарт"}, Order: 2}
	require.NoError(t, env.db.Create(basic).Error)
	require.NoError(t, env.db.Create(standard).Error)

	pricing := []*model.ServicePricing{
		{ServiceID: services[0].ID, TierID: basic.ID, PriceFrom: ptr(500.0), PriceTo: ptr(1000.0), Currency: "USD", TimelineWeeksFrom: ptr(2), TimelineWeeksTo: ptr(3), Active: true},
		{ServiceID: services[0].ID, TierID: standard.ID, PriceFrom: ptr(1200.0), PriceTo: ptr(2500.0), Currency: "USD", Active: true},
		{ServiceID: services[1].ID, TierID: standard.ID, PriceFrom: ptr(1500.0), PriceTo: ptr(3000.0), Currency: "USD", Active: true},
	}
	for _, p := range pricing {
		require.NoError(t, env.db.Omit(clause.Associations).Create(p).Error)
	}

	titles := make([]string, 0, len(services))
	for _, s := range services {
		titles = append(titles, s.Title.Get("uk"))
	}
	return titles
}

// seedAndIndex 写入目录并建立索引。
func (env *testEnv) seedAndIndex(t *testing.T) []string {
	t.Helper()
	titles := env.seedCatalog(t)
	n, err := env.indexer.ReindexAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 7, n)
	return titles
}
