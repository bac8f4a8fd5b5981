// Package router provides consultant service routing.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/lazysoft/consultant/api/swagger" // swagger docs
	"github.com/lazysoft/consultant/internal/consultant/handler"
	"github.com/lazysoft/consultant/pkg/infra/middleware"
	"github.com/lazysoft/consultant/pkg/utils/errors"
	"github.com/lazysoft/consultant/pkg/utils/response"
)

// Handlers groups the handlers mounted by Register.
type Handlers struct {
	Consultant *handler.ConsultantHandler
	Admin      *handler.AdminHandler
	System     *handler.SystemHandler
	// TurnLimit 对话接口的限流配置，Rate <= 0 时不限流。
	TurnLimit middleware.RateLimitConfig
}

// Register registers the consultant routes.
func Register(engine *gin.Engine, h Handlers) {
	logger.Info("Registering consultant routes...")

	engine.GET("/healthz", h.System.Health)
	engine.GET("/version", h.System.Version)
	engine.GET("/metrics", h.System.Metrics)

	// Swagger UI - /swagger/index.html
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	rag := engine.Group("/rag")
	{
		// Dialogue
		rag.POST("/turn", middleware.RateLimit(h.TurnLimit), h.Consultant.Turn)
		rag.POST("/sessions", h.Consultant.StartSession)
		rag.GET("/sessions/:id/messages", h.Consultant.Messages)
		rag.POST("/sessions/:id/rating", h.Consultant.Rate)

		// Quotes
		rag.POST("/quote", h.Consultant.RequestQuote)
		rag.GET("/quote/:id", h.Consultant.GetQuote)
		rag.POST("/quote/:id/status", h.Consultant.UpdateQuoteStatus)

		// Index maintenance
		rag.POST("/index/reindex", h.Admin.Reindex)
		rag.POST("/index/sweep", h.Admin.Sweep)
		rag.POST("/index/:kind/:id", h.Admin.ReindexObject)
		rag.POST("/search", h.Admin.Search)

		// Learning loop
		rag.GET("/patterns", h.Admin.Patterns)
		rag.POST("/patterns/:id/approve", h.Admin.Approve)
		rag.POST("/patterns/:id/reject", h.Admin.Reject)
		rag.POST("/learning/analyze", h.Admin.Analyze)

		rag.GET("/stats", h.Admin.Stats)
	}

	engine.NoRoute(func(c *gin.Context) {
		response.Fail(c, errors.ErrRouteNotFound)
	})

	logger.Info("HTTP routes registered")
}
