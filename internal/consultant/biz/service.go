package biz

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/kart-io/logger"

	"github.com/lazysoft/consultant/internal/consultant/metrics"
	"github.com/lazysoft/consultant/internal/consultant/store"
	"github.com/lazysoft/consultant/internal/model"
	"github.com/lazysoft/consultant/pkg/utils/errors"
	"github.com/lazysoft/consultant/pkg/utils/id"
	"github.com/lazysoft/consultant/pkg/utils/validator"
)

// ServiceConfig 服务层配置。
type ServiceConfig struct {
	Languages []string
	Personas  map[string]string
	Company   string
	// SessionTTL 会话空闲超过该时长后关闭。
	SessionTTL time.Duration
	// AnalyzeWindow 学习分析默认的时间窗口。
	AnalyzeWindow time.Duration
}

// Components 组成服务的业务组件。
type Components struct {
	Indexer   *Indexer
	Retriever *Retriever
	Dialogue  *DialogueEngine
	Learner   *Learner
	Quotes    *QuoteService
}

// Service 顾问服务的门面，供 handler、调度器和命令行使用。
type Service struct {
	store     store.Factory
	indexer   *Indexer
	retriever *Retriever
	dialogue  *DialogueEngine
	learner   *Learner
	quotes    *QuoteService
	metrics   *metrics.ConsultantMetrics
	config    ServiceConfig
}

// NewService 创建服务实例。
func NewService(s store.Factory, c Components, m *metrics.ConsultantMetrics, config ServiceConfig) *Service {
	if config.SessionTTL <= 0 {
		config.SessionTTL = 24 * time.Hour
	}
	if config.AnalyzeWindow <= 0 {
		config.AnalyzeWindow = 24 * time.Hour
	}
	return &Service{
		store:     s,
		indexer:   c.Indexer,
		retriever: c.Retriever,
		dialogue:  c.Dialogue,
		learner:   c.Learner,
		quotes:    c.Quotes,
		metrics:   m,
		config:    config,
	}
}

func (s *Service) Indexer() *Indexer { return s.indexer }
func (s *Service) Retriever() *Retriever { return s.retriever }
func (s *Service) Learner() *Learner { return s.learner }
func (s *Service) Quotes() *QuoteService { return s.quotes }
func (s *Service) Metrics() *metrics.ConsultantMetrics { return s.metrics }

// DefaultLanguage returns the first configured language.
func (s *Service) DefaultLanguage() string {
	if len(s.config.Languages) == 0 {
		return fallbackLang
	}
	return s.config.Languages[0]
}

// StartSessionRequest 新会话请求。
type StartSessionRequest struct {
	Language  string
	ClientIP  string
	UserAgent string
}

// StartSessionResponse 新会话的欢迎信息。
type StartSessionResponse struct {
	SessionID   string   `json:"session_id"`
	Language    string   `json:"language"`
	Welcome     string   `json:"welcome"`
	Suggestions []string `json:"suggestions"`
}

// StartSession 生成新会话并保存客户端信息。欢迎语不写入历史，
// 第一轮回复仍带自我介绍和隐私声明。
func (s *Service) StartSession(ctx context.Context, req StartSessionRequest) (*StartSessionResponse, error) {
	lang := req.Language
	if lang == "" {
		lang = s.DefaultLanguage()
	}
	if !slices.Contains(s.config.Languages, lang) {
		return nil, errors.ErrUnsupportedLanguage.WithMessagef("language %q is not supported", lang)
	}

	now := time.Now()
	sess := &model.Session{
		SessionID:      id.New(),
		ClientIP:       req.ClientIP,
		Language:       lang,
		DetectedIntent: model.IntentGeneral,
		Metadata:       model.SessionMetadata{UserAgent: req.UserAgent},
		StartedAt:      now,
		LastActivity:   now,
	}
	if err := s.store.Sessions().AppendTurn(ctx, sess); err != nil {
		return nil, err
	}
	logger.Infow("session started", "session_id", sess.SessionID, "language", lang)

	persona := s.config.Personas[lang]
	return &StartSessionResponse{
		SessionID:   sess.SessionID,
		Language:    lang,
		Welcome:     fmt.Sprintf(welcomeTexts.get(lang), persona, s.config.Company),
		Suggestions: suggestionsFor(lang, model.IntentGreeting),
	}, nil
}

// Turn 处理一轮对话。
func (s *Service) Turn(ctx context.Context, req TurnRequest) (*TurnResponse, error) {
	return s.dialogue.Turn(ctx, req)
}

// Messages 返回会话的全部消息。
func (s *Service) Messages(ctx context.Context, sessionID string) ([]*model.Message, error) {
	if !validator.ValidSessionID(sessionID) {
		return nil, errors.ErrInvalidSessionID
	}
	return s.store.Sessions().Messages(ctx, sessionID)
}

// Rate 记录会话满意度，rating 取值 1-5。
func (s *Service) Rate(ctx context.Context, sessionID string, rating int, feedback string) error {
	if !validator.ValidSessionID(sessionID) {
		return errors.ErrInvalidSessionID
	}
	if rating < 1 || rating > 5 {
		return errors.ErrValidation.WithMessage("rating must be between 1 and 5")
	}
	return s.store.Sessions().Rate(ctx, sessionID, rating, feedback)
}

// RequestQuote 保存报价请求并投递线索。
func (s *Service) RequestQuote(ctx context.Context, in QuoteInput) (*model.QuoteRequest, error) {
	if !validator.ValidSessionID(in.SessionID) {
		return nil, errors.ErrInvalidSessionID
	}
	return s.quotes.Request(ctx, in)
}

// Analyze 使用默认窗口运行学习分析。
func (s *Service) Analyze(ctx context.Context) (*AnalyzeResult, error) {
	return s.learner.Analyze(ctx, s.config.AnalyzeWindow)
}

// ExpireSessions 关闭空闲超过 TTL 的会话。
func (s *Service) ExpireSessions(ctx context.Context) (int64, error) {
	n, err := s.store.Sessions().CloseIdle(ctx, time.Now().Add(-s.config.SessionTTL))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.Infow("idle sessions closed", "sessions", n, "ttl", s.config.SessionTTL.String())
	}
	return n, nil
}

// Stats 服务统计。
type Stats struct {
	*store.SessionStats
	QuoteRequests int64            `json:"quote_requests"`
	Chunks        int64            `json:"chunks"`
	ChunksByKind  map[string]int64 `json:"chunks_by_category"`
	Patterns      map[string]int64 `json:"patterns_by_status"`
	VectorBackend string           `json:"vector_backend"`
}

// Stats 汇总会话、索引和学习模式的统计。
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	sessions, err := s.store.Sessions().Stats(ctx)
	if err != nil {
		return nil, err
	}
	quotes, err := s.store.Quotes().Count(ctx)
	if err != nil {
		return nil, err
	}
	chunks, err := s.store.Vectors().Count(ctx)
	if err != nil {
		return nil, err
	}
	byCategory, err := s.store.Vectors().CountByCategory(ctx)
	if err != nil {
		return nil, err
	}
	patterns, err := s.store.Patterns().CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{
		SessionStats:  sessions,
		QuoteRequests: quotes,
		Chunks:        chunks,
		ChunksByKind:  byCategory,
		Patterns:      patterns,
		VectorBackend: s.store.Vectors().Name(),
	}, nil
}
