package consultant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kart-io/logger"

	"github.com/lazysoft/consultant/internal/consultant/biz"
	"github.com/lazysoft/consultant/internal/consultant/metrics"
	"github.com/lazysoft/consultant/internal/consultant/scheduler"
	"github.com/lazysoft/consultant/internal/consultant/store"
	"github.com/lazysoft/consultant/pkg/component/database"
	"github.com/lazysoft/consultant/pkg/component/milvus"
	"github.com/lazysoft/consultant/pkg/component/redis"
	"github.com/lazysoft/consultant/pkg/component/storage"
	"github.com/lazysoft/consultant/pkg/infra/app"
	"github.com/lazysoft/consultant/pkg/infra/pool"
	"github.com/lazysoft/consultant/pkg/infra/tracing"
	"github.com/lazysoft/consultant/pkg/llm"
	// 导入 LLM 供应商以自动注册
	_ "github.com/lazysoft/consultant/pkg/llm/gemini"
	_ "github.com/lazysoft/consultant/pkg/llm/ollama"
	_ "github.com/lazysoft/consultant/pkg/llm/openai"
	"github.com/lazysoft/consultant/pkg/llm/resilience"
	consultantopts "github.com/lazysoft/consultant/pkg/options/consultant"
	dbopts "github.com/lazysoft/consultant/pkg/options/database"
	apierrors "github.com/lazysoft/consultant/pkg/utils/errors"
	"github.com/lazysoft/consultant/pkg/utils/validator"
)

// Runtime holds the wired consultant components shared by the server and the
// maintenance commands.
type Runtime struct {
	Service   *biz.Service
	Watcher   *biz.KnowledgeWatcher
	Scheduler *scheduler.Scheduler
	Clients   *storage.Manager
	Metrics   *metrics.ConsultantMetrics

	// closers 按注册的逆序执行。
	closers []func(context.Context) error
}

func (r *Runtime) onClose(fn func(context.Context) error) {
	r.closers = append(r.closers, fn)
}

// Close releases pools, backing store clients and the tracer provider.
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// NewRuntime connects the backing stores and builds the business layer.
// On error everything opened so far is closed again.
func (cfg *Config) NewRuntime(ctx context.Context) (_ *Runtime, err error) {
	rt := &Runtime{Clients: storage.NewManager(), Metrics: metrics.New()}
	defer func() {
		if err != nil {
			_ = rt.Close(context.Background())
		}
	}()

	// 1. 初始化日志
	if err := cfg.LogOptions.Init(Name, app.GetVersion()); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	rt.onClose(func(context.Context) error { return logger.Flush() })
	logger.Info("Starting consultant service...")

	// 2. 初始化链路追踪
	tp, err := tracing.NewProvider(ctx, cfg.TracingOptions, Name, app.GetVersion())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	rt.onClose(tp.Shutdown)
	if cfg.TracingOptions.Enabled {
		logger.Infow("Tracing initialized", "exporter", cfg.TracingOptions.Exporter, "endpoint", cfg.TracingOptions.Endpoint)
	}

	// 3. 初始化数据库
	db, err := database.New(ctx, cfg.DatabaseOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	rt.onClose(func(context.Context) error { return rt.Clients.CloseAll() })
	if err := rt.Clients.Register("database", db); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Infow("Database initialized", "driver", db.Driver())

	// 4. 初始化 Redis（会话锁、嵌入缓存、线索流）
	var rc *redis.Client
	if cfg.RedisOptions.Enabled {
		rc, err = redis.New(ctx, cfg.RedisOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		if err := rt.Clients.Register("redis", rc); err != nil {
			_ = rc.Close()
			return nil, err
		}
		logger.Infow("Redis initialized", "addr", cfg.RedisOptions.Addr())
	} else {
		logger.Info("Redis is disabled, using in-process session locks")
	}

	// 5. 初始化向量存储
	vectors, err := cfg.newVectorStore(ctx, db, rt.Clients)
	if err != nil {
		return nil, err
	}
	f := store.NewStore(db.DB(), vectors)
	if cfg.DatabaseOptions.AutoMigrate {
		if err := f.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("failed to migrate: %w", err)
		}
		logger.Info("Database migration completed")
	}
	dim, err := vectors.Dimension(ctx)
	if err != nil {
		return nil, err
	}
	if dim != 0 && dim != cfg.EmbeddingOptions.Dimension {
		return nil, apierrors.ErrConfig.WithMessagef(
			"stored vectors have dimension %d but embedding model %s produces %d, reindex with a matching model",
			dim, cfg.EmbeddingOptions.Model, cfg.EmbeddingOptions.Dimension)
	}
	logger.Infow("Vector store initialized", "backend", vectors.Name(), "dimension", cfg.EmbeddingOptions.Dimension)

	// 6. 初始化 LLM 供应商
	embedProvider, chatProvider, err := cfg.newProviders(rc)
	if err != nil {
		return nil, err
	}

	// 7. 初始化协程池
	indexPool, err := pool.NewPool("index", pool.IndexPoolConfig(cfg.ConsultantOptions.IndexWorkers))
	if err != nil {
		return nil, err
	}
	rt.onClose(func(context.Context) error { return indexPool.Release(30 * time.Second) })
	backgroundPool, err := pool.NewPool("background", pool.BackgroundPoolConfig())
	if err != nil {
		return nil, err
	}
	rt.onClose(func(context.Context) error { return backgroundPool.Release(10 * time.Second) })

	// 8. 初始化线索投递
	sinks := []biz.LeadSink{biz.LogSink{}}
	if cfg.QuoteOptions.WebhookURL != "" {
		sinks = append(sinks, biz.NewWebhookSink(cfg.QuoteOptions.WebhookURL, cfg.QuoteOptions.WebhookTimeout, cfg.QuoteOptions.WebhookRetries))
	}
	if rc != nil && cfg.QuoteOptions.StreamKey != "" {
		sinks = append(sinks, biz.NewRedisStreamSink(rc, cfg.QuoteOptions.StreamKey))
	}

	// 9. 初始化 Biz 层
	co := cfg.ConsultantOptions
	validator.Global().SetLanguages(co.Languages)
	personas := make(map[string]string, len(co.Languages))
	for _, lang := range co.Languages {
		personas[lang] = co.PersonaName(lang)
	}

	embedder := biz.NewEmbedder(embedProvider, biz.EmbedderConfig{
		Model:     cfg.EmbeddingOptions.Model,
		Dimension: cfg.EmbeddingOptions.Dimension,
	}, rt.Metrics)
	indexer := biz.NewIndexer(f, embedder, nil, indexPool, rt.Metrics, biz.IndexerConfig{
		Languages:       co.Languages,
		Kinds:           co.IndexableKinds,
		MaxContentChars: co.MaxContentChars,
		Version:         app.GetVersion(),
	})
	retriever := biz.NewRetriever(vectors, embedder, rt.Metrics, biz.RetrieverConfig{
		MaxResults: co.MaxSearchResults,
		Threshold:  co.SimilarityThreshold,
	})
	dialogue := biz.NewDialogueEngine(f.Sessions(), retriever, chatProvider, store.NewSessionLocker(rc), rt.Metrics, biz.DialogueConfig{
		Languages:            co.Languages,
		Personas:             personas,
		Company:              co.Company,
		ConsultationURL:      co.ConsultationURL,
		ConsultationShortURL: co.ConsultationShortURL,
		ChatModel:            cfg.ChatOptions.Model,
		FallbackModel:        cfg.ChatOptions.FallbackModel,
		Temperature:          cfg.ChatOptions.Temperature,
		MaxTokens:            cfg.ChatOptions.MaxTokens,
		CostPer1KTokens:      cfg.ChatOptions.CostPer1KTokens,
		ChatTimeout:          cfg.ChatOptions.Timeout,
		TurnTimeout:          co.TurnTimeout,
	})
	lo := cfg.LearningOptions
	learner := biz.NewLearner(f, indexer, rt.Metrics, biz.LearnerConfig{
		AutoApprove:  lo.AutoApprove,
		MinFrequency: lo.MinFrequency,
		MinSuccess:   lo.MinSuccess,
		Retention:    lo.Retention,
	})
	rt.Service = biz.NewService(f, biz.Components{
		Indexer:   indexer,
		Retriever: retriever,
		Dialogue:  dialogue,
		Learner:   learner,
		Quotes:    biz.NewQuoteService(f, sinks, backgroundPool, rt.Metrics),
	}, rt.Metrics, biz.ServiceConfig{
		Languages:     co.Languages,
		Personas:      personas,
		Company:       co.Company,
		SessionTTL:    co.SessionTTL,
		AnalyzeWindow: lo.AnalyzeWindow,
	})
	logger.Infow("Business layer initialized",
		"languages", co.Languages,
		"lead_sinks", len(sinks),
		"auto_approve", lo.AutoApprove,
	)

	// 10. 后台组件
	if co.KnowledgeDir != "" {
		rt.Watcher = biz.NewKnowledgeWatcher(co.KnowledgeDir, f.Knowledge(), indexer)
	}
	rt.Scheduler = scheduler.New(scheduler.Jobs(rt.Service, lo)...)

	return rt, nil
}

func (cfg *Config) newVectorStore(ctx context.Context, db *database.Client, clients *storage.Manager) (store.VectorStore, error) {
	dim := cfg.EmbeddingOptions.Dimension
	switch cfg.ConsultantOptions.VectorBackend {
	case consultantopts.VectorBackendPGVector:
		if db.Driver() != dbopts.DriverPostgres {
			return nil, apierrors.ErrConfig.WithMessagef("vector backend pgvector needs the postgres driver, got %s", db.Driver())
		}
		return store.NewPGVectorStore(db.DB(), dim), nil
	case consultantopts.VectorBackendMilvus:
		mc, err := milvus.New(ctx, cfg.MilvusOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize milvus: %w", err)
		}
		if err := clients.Register("milvus", mc); err != nil {
			_ = mc.Close()
			return nil, err
		}
		return store.NewMilvusVectorStore(mc, dim), nil
	default:
		return store.NewSQLVectorStore(db.DB()), nil
	}
}

// newProviders 创建嵌入与生成供应商，外层依次包装重试熔断和 redis 缓存。
func (cfg *Config) newProviders(rc *redis.Client) (llm.EmbeddingProvider, llm.ChatProvider, error) {
	eo, co := cfg.EmbeddingOptions, cfg.ChatOptions

	embed, err := llm.NewEmbeddingProvider(eo.Provider, eo.ToConfigMap())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = eo.MaxRetries + 1
	embed = resilience.NewResilientEmbeddingProvider(embed, retry, resilience.DefaultCircuitBreakerConfig())
	if rc != nil && eo.CacheTTL > 0 {
		embed = llm.NewCachedEmbeddingProvider(embed, rc.Client(), &llm.EmbeddingCacheConfig{
			TTL:       eo.CacheTTL,
			KeyPrefix: rc.Key("emb", eo.Model) + ":",
		})
	}
	logger.Infow("Embedding provider initialized",
		"provider", eo.Provider,
		"model", eo.Model,
		"cache", rc != nil && eo.CacheTTL > 0,
	)

	chat, err := llm.NewChatProvider(co.Provider, co.ToConfigMap())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	retry = resilience.DefaultRetryConfig()
	retry.MaxAttempts = co.MaxRetries + 1
	chat = resilience.NewResilientChatProvider(chat, retry, resilience.DefaultCircuitBreakerConfig())
	logger.Infow("Chat provider initialized",
		"provider", co.Provider,
		"model", co.Model,
		"fallback_model", co.FallbackModel,
	)
	return embed, chat, nil
}
