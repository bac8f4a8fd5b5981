// Package consultant wires the consultant service: backing stores, model
// providers, the business layer, the HTTP API and the background jobs.
package consultant

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"

	"github.com/lazysoft/consultant/internal/consultant/handler"
	"github.com/lazysoft/consultant/internal/consultant/router"
	"github.com/lazysoft/consultant/pkg/infra/middleware"
	"github.com/lazysoft/consultant/pkg/infra/server"
	consultantopts "github.com/lazysoft/consultant/pkg/options/consultant"
	dbopts "github.com/lazysoft/consultant/pkg/options/database"
	learningopts "github.com/lazysoft/consultant/pkg/options/learning"
	llmopts "github.com/lazysoft/consultant/pkg/options/llm"
	logopts "github.com/lazysoft/consultant/pkg/options/logger"
	middlewareopts "github.com/lazysoft/consultant/pkg/options/middleware"
	milvusopts "github.com/lazysoft/consultant/pkg/options/milvus"
	quoteopts "github.com/lazysoft/consultant/pkg/options/quote"
	redisopts "github.com/lazysoft/consultant/pkg/options/redis"
	httpopts "github.com/lazysoft/consultant/pkg/options/server/http"
	tracingopts "github.com/lazysoft/consultant/pkg/options/tracing"
)

// Name is the name of the application.
const Name = "consultant"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions       *httpopts.Options
	MiddlewareOptions *middlewareopts.Options
	LogOptions        *logopts.Options
	DatabaseOptions   *dbopts.Options
	RedisOptions      *redisopts.Options
	MilvusOptions     *milvusopts.Options
	EmbeddingOptions  *llmopts.EmbeddingOptions
	ChatOptions       *llmopts.ChatOptions
	ConsultantOptions *consultantopts.Options
	LearningOptions   *learningopts.Options
	QuoteOptions      *quoteopts.Options
	TracingOptions    *tracingopts.Options
	ShutdownTimeout   time.Duration
}

// Server represents the consultant server.
type Server struct {
	rt  *Runtime
	srv *server.Manager
	cfg *Config
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	printBanner(cfg)

	rt, err := cfg.NewRuntime(ctx)
	if err != nil {
		return nil, err
	}

	// 初始化 Handler 层
	handlers := router.Handlers{
		Consultant: handler.NewConsultantHandler(rt.Service),
		Admin:      handler.NewAdminHandler(rt.Service),
		System:     handler.NewSystemHandler(rt.Clients, rt.Metrics, Name),
		TurnLimit: middleware.RateLimitConfig{
			Rate:  cfg.ConsultantOptions.TurnRateLimit,
			Burst: cfg.ConsultantOptions.TurnRateBurst,
		},
	}
	logger.Info("Handler layer initialized")

	// 初始化服务器并注册路由
	srv := server.NewManager(cfg.HTTPOptions, cfg.MiddlewareOptions, cfg.ShutdownTimeout)
	router.Register(srv.Engine(), handlers)

	// 后台组件与 HTTP 服务共享生命周期
	if rt.Watcher != nil {
		srv.AddServer(rt.Watcher)
	}
	if cfg.LearningOptions.EnableScheduler {
		srv.AddServer(rt.Scheduler)
	} else {
		logger.Info("Scheduler is disabled, run the maintenance commands manually")
	}

	logger.Infow("Consultant service is ready", "addr", cfg.HTTPOptions.Addr)
	return &Server{rt: rt, srv: srv, cfg: cfg}, nil
}

// Run starts the server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.rt.Close(closeCtx); err != nil {
			logger.Warnw("failed to release resources", "error", err)
		}
	}()
	return s.srv.Run(ctx)
}

func printBanner(cfg *Config) {
	fmt.Printf("Starting %s...\n", Name)
	fmt.Printf("  HTTP: %s\n", cfg.HTTPOptions.Addr)
	fmt.Printf("  Database: %s\n", cfg.DatabaseOptions.Driver)
	fmt.Printf("  Vector backend: %s\n", cfg.ConsultantOptions.VectorBackend)
	fmt.Printf("  Embedding: %s (%s, %d dims)\n", cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.Model, cfg.EmbeddingOptions.Dimension)
	fmt.Printf("  Chat: %s (%s)\n", cfg.ChatOptions.Provider, cfg.ChatOptions.Model)
	fmt.Printf("  Languages: %v\n", cfg.ConsultantOptions.Languages)
	fmt.Printf("  Enabled Middlewares: %v\n", cfg.MiddlewareOptions.Middleware)
}
