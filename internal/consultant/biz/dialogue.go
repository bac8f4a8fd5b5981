package biz

import (
	"context"
	stderrors "errors"
	"slices"
	"strings"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lazysoft/consultant/internal/consultant/metrics"
	"github.com/lazysoft/consultant/internal/consultant/store"
	"github.com/lazysoft/consultant/internal/model"
	"github.com/lazysoft/consultant/pkg/infra/tracing"
	"github.com/lazysoft/consultant/pkg/llm"
	"github.com/lazysoft/consultant/pkg/utils/errors"
	"github.com/lazysoft/consultant/pkg/utils/validator"
)

const (
	// historyLimit 提示词中携带的历史消息数。
	historyLimit = 4
	// wideSearchLimit 询问服务范围时的检索条数。
	wideSearchLimit = 15
	// narrowSearchLimit 其余情况的检索条数。
	narrowSearchLimit = 5
)

// DialogueConfig 对话引擎配置，启动时确定。
type DialogueConfig struct {
	Languages            []string
	Personas             map[string]string
	Company              string
	ConsultationURL      string
	ConsultationShortURL string

	ChatModel       string
	FallbackModel   string
	Temperature     float64
	MaxTokens       int
	CostPer1KTokens float64
	// ChatTimeout 单次生成调用的超时，主模型和备用模型分别计时。
	ChatTimeout time.Duration
	// TurnTimeout 整轮对话的超时。
	TurnTimeout time.Duration
	// LockTTL 会话锁的最长持有时间。
	LockTTL time.Duration
}

func (c DialogueConfig) persona(lang string) string {
	if n, ok := c.Personas[lang]; ok && n != "" {
		return n
	}
	if len(c.Languages) > 0 {
		return c.Personas[c.Languages[0]]
	}
	return ""
}

// TurnRequest 一轮对话的输入。
type TurnRequest struct {
	SessionID string
	Query     string
	Language  string
	ClientIP  string
	UserAgent string
}

// TurnResponse 一轮对话的输出。
type TurnResponse struct {
	Response       string            `json:"response"`
	Intent         string            `json:"intent"`
	Sources        []model.SearchHit `json:"sources"`
	Suggestions    []string          `json:"suggestions"`
	Actions        []Action          `json:"actions"`
	Prices         []model.PriceLine `json:"prices,omitempty"`
	PricesReady    bool              `json:"prices_ready"`
	SessionID      string            `json:"session_id"`
	ProcessingTime float64           `json:"processing_time"`
}

// lockTTLMargin 会话锁在整轮超时之外多保留的时间。
const lockTTLMargin = 30 * time.Second

// DialogueEngine 会话状态机：意图识别、定价澄清、提示词组装、生成和后处理。
type DialogueEngine struct {
	sessions  store.SessionStore
	retriever *Retriever
	chat      llm.ChatProvider
	locker    store.SessionLocker
	metrics   *metrics.ConsultantMetrics
	config    DialogueConfig
}

// NewDialogueEngine 创建对话引擎。locker 为 nil 时使用进程内锁。
func NewDialogueEngine(
	sessions store.SessionStore,
	retriever *Retriever,
	chat llm.ChatProvider,
	locker store.SessionLocker,
	m *metrics.ConsultantMetrics,
	config DialogueConfig,
) *DialogueEngine {
	if locker == nil {
		locker = store.NewMemoryLocker()
	}
	if config.LockTTL <= 0 {
		config.LockTTL = 90 * time.Second
	}
	// 锁必须比整轮对话活得久，否则超时前就会放进第二个请求。
	if config.TurnTimeout > 0 && config.LockTTL <= config.TurnTimeout {
		config.LockTTL = config.TurnTimeout + lockTTLMargin
	}
	if config.Temperature == 0 {
		config.Temperature = 0.7
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 1000
	}
	return &DialogueEngine{
		sessions:  sessions,
		retriever: retriever,
		chat:      chat,
		locker:    locker,
		metrics:   m,
		config:    config,
	}
}

// turnState 一轮对话中逐步计算出的状态。
type turnState struct {
	session  *model.Session
	meta     model.SessionMetadata
	history  []*model.Message
	followup bool
	hits     []model.SearchHit
	priced   []model.SearchHit
	intent   string
	mode     pricingMode
}

func (e *DialogueEngine) validate(req *TurnRequest) error {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return errors.ErrEmptyQuery
	}
	if req.Language == "" && len(e.config.Languages) > 0 {
		req.Language = e.config.Languages[0]
	}
	if !slices.Contains(e.config.Languages, req.Language) {
		return errors.ErrUnsupportedLanguage.WithMessagef("language %q is not supported", req.Language)
	}
	if !validator.ValidSessionID(req.SessionID) {
		return errors.ErrInvalidSessionID
	}
	return nil
}

// Turn 处理一轮对话。同一会话的并发请求返回 ErrConcurrencyConflict；
// 生成失败时不写入任何状态。
func (e *DialogueEngine) Turn(ctx context.Context, req TurnRequest) (resp *TurnResponse, err error) {
	start := time.Now()
	intent := ""
	defer func() {
		if e.metrics != nil {
			e.metrics.RecordTurn(intent, time.Since(start), err)
		}
	}()

	if err := e.validate(&req); err != nil {
		return nil, err
	}

	unlock, ok, err := e.locker.TryLock(ctx, req.SessionID, e.config.LockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		if e.metrics != nil {
			e.metrics.RecordConcurrencyConflict()
		}
		logger.Warnw("overlapping turn rejected", "session_id", req.SessionID)
		return nil, errors.ErrConcurrencyConflict
	}
	defer unlock()

	if e.config.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.TurnTimeout)
		defer cancel()
	}
	ctx, span := tracing.StartSpan(ctx, "dialogue.turn",
		attribute.String(tracing.SessionID, req.SessionID),
		attribute.String(tracing.Language, req.Language),
	)
	defer span.End()

	st, err := e.prepare(ctx, req)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	intent = st.intent
	span.SetAttributes(
		attribute.String(tracing.Intent, st.intent),
		attribute.Int(tracing.RetrievalHits, len(st.hits)),
	)

	resp, err = e.respond(ctx, req, st, start)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	return resp, nil
}

// prepare 加载会话、检索并确定意图和定价模式。
func (e *DialogueEngine) prepare(ctx context.Context, req TurnRequest) (*turnState, error) {
	sess, err := e.loadSession(ctx, req)
	if err != nil {
		return nil, err
	}
	st := &turnState{session: sess, meta: sess.Metadata}

	history, err := e.sessions.History(ctx, sess.ID, historyLimit)
	if err != nil {
		return nil, err
	}
	for _, m := range history {
		if m.CreatedAt.Before(sess.StartedAt) {
			continue
		}
		st.history = append(st.history, m)
		if m.Role == model.RoleAssistant {
			st.followup = true
		}
	}

	limit := narrowSearchLimit
	if MentionsServices(req.Query) {
		limit = wideSearchLimit
	}
	st.hits = e.search(ctx, req, SearchRequest{
		Query:     req.Query,
		Language:  req.Language,
		Limit:     limit,
		Diversify: true,
	})

	st.intent = stickyIntent(st.meta, ClassifyIntent(req.Query, st.hits))
	if st.intent == model.IntentPricing {
		if !st.meta.ClarificationAsked && !st.followup {
			st.mode = pricingAsk
		} else {
			st.mode = pricingFollowup
		}
	}

	if st.mode == pricingFollowup {
		st.priced = pricingHits(st.hits)
		if len(st.priced) == 0 {
			st.priced = e.search(ctx, req, SearchRequest{
				Query:    req.Query,
				Language: req.Language,
				Category: model.CategoryPricing,
				Limit:    maxPriceLines,
			})
		}
	}
	return st, nil
}

func (e *DialogueEngine) search(ctx context.Context, req TurnRequest, sr SearchRequest) []model.SearchHit {
	hits, err := e.retriever.Search(ctx, sr)
	if err != nil {
		logger.Warnw("retrieval failed, continuing without context",
			"session_id", req.SessionID,
			"category", sr.Category,
			"error", err,
		)
		return nil
	}
	return hits
}

func pricingHits(hits []model.SearchHit) []model.SearchHit {
	var out []model.SearchHit
	for _, h := range hits {
		if h.Category == model.CategoryPricing {
			out = append(out, h)
		}
	}
	return out
}

// loadSession 获取或创建会话。已关闭的会话作为新对话重新打开。
func (e *DialogueEngine) loadSession(ctx context.Context, req TurnRequest) (*model.Session, error) {
	now := time.Now()
	sess, err := e.sessions.Get(ctx, req.SessionID)
	if stderrors.Is(err, errors.ErrSessionNotFound) {
		return &model.Session{
			SessionID:      req.SessionID,
			ClientIP:       req.ClientIP,
			Language:       req.Language,
			DetectedIntent: model.IntentGeneral,
			Metadata:       model.SessionMetadata{UserAgent: req.UserAgent},
			StartedAt:      now,
			LastActivity:   now,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	if sess.Closed() {
		logger.Infow("closed session reopened", "session_id", sess.SessionID)
		sess.EndedAt = nil
		sess.StartedAt = now
		sess.DetectedIntent = model.IntentGeneral
		sess.Metadata.ClarificationAsked = false
		sess.Metadata.AwaitingPricingDetails = false
		sess.Metadata.PricingCompleted = false
	}
	return sess, nil
}

// respond 生成回复、后处理并持久化本轮对话。
func (e *DialogueEngine) respond(ctx context.Context, req TurnRequest, st *turnState, start time.Time) (*TurnResponse, error) {
	lang := req.Language
	persona := e.config.persona(lang)

	sources := mergeHits(st.hits, st.priced)
	var (
		text        string
		usage       llm.TokenUsage
		modelUsed   string
		prices      []model.PriceLine
		pricesReady bool
		suggestions []string
	)

	if len(sources) == 0 {
		text = fallbackReply(lang, st.intent)
		suggestions = suggestionsFor(lang, "fallback")
		if e.metrics != nil {
			e.metrics.RecordFallbackReply()
		}
	} else {
		msgs := buildPrompt(promptInput{
			Language:  lang,
			Intent:    st.intent,
			Persona:   persona,
			Company:   e.config.Company,
			FirstTurn: !st.followup,
			Pricing:   st.mode,
			Hits:      sources,
			History:   st.history,
			Query:     req.Query,
		})
		out, err := e.generate(ctx, req.SessionID, msgs)
		if err != nil {
			return nil, err
		}
		text = strings.TrimSpace(out.Content)
		usage = out.Usage
		modelUsed = out.Model

		switch st.mode {
		case pricingAsk:
			if st.meta.ClarificationAsked {
				logger.Errorw("second clarification blocked", "session_id", req.SessionID)
				return nil, errors.ErrStateInvariant
			}
			text = ensureClarificationList(stripCurrencyLines(text), lang)
			st.meta.ClarificationAsked = true
			st.meta.AwaitingPricingDetails = true
			if e.metrics != nil {
				e.metrics.RecordClarification()
			}
		case pricingFollowup:
			text = stripNumberedQuestions(text)
			prices = collectPrices(st.priced)
			text = injectPrices(text, lang, prices)
			st.meta.PricingCompleted = true
			st.meta.AwaitingPricingDetails = false
			pricesReady = true
			if e.metrics != nil {
				e.metrics.RecordPricesDelivered()
			}
		default:
			pricesReady = mentionsPrices(text)
		}
		suggestions = suggestionsFor(lang, st.intent)
	}

	if !st.followup {
		text = appendGDPR(ensurePersonaIntro(text, lang, persona, e.config.Company), lang)
	}
	actions := buildActions(lang, e.config.ConsultationURL, e.config.ConsultationShortURL, pricesReady)

	elapsed := time.Since(start)
	cost := float64(usage.TotalTokens) / 1000 * e.config.CostPer1KTokens
	if err := e.persist(ctx, req, st, text, sources, modelUsed, elapsed, cost); err != nil {
		return nil, err
	}

	logger.Infow("turn completed",
		"session_id", req.SessionID,
		"intent", st.intent,
		"hits", len(sources),
		"prices_ready", pricesReady,
		"tokens", usage.TotalTokens,
		"duration", elapsed.String(),
	)

	if sources == nil {
		sources = []model.SearchHit{}
	}
	return &TurnResponse{
		Response:       text,
		Intent:         st.intent,
		Sources:        sources,
		Suggestions:    suggestions,
		Actions:        actions,
		Prices:         prices,
		PricesReady:    pricesReady,
		SessionID:      req.SessionID,
		ProcessingTime: elapsed.Seconds(),
	}, nil
}

// generate 调用主模型，失败后用备用模型重试一次。
func (e *DialogueEngine) generate(ctx context.Context, sessionID string, msgs []llm.Message) (*llm.ChatResponse, error) {
	resp, err := e.callChat(ctx, msgs, e.config.ChatModel, false)
	if err == nil {
		return resp, nil
	}
	logger.Warnw("chat primary model failed",
		"session_id", sessionID,
		"provider", e.chat.Name(),
		"model", e.config.ChatModel,
		"error", err,
	)
	if ctx.Err() != nil || e.config.FallbackModel == "" || e.config.FallbackModel == e.config.ChatModel {
		return nil, errors.ErrProviderUnavailable.WithCause(err)
	}

	resp, ferr := e.callChat(ctx, msgs, e.config.FallbackModel, true)
	if ferr != nil {
		logger.Errorw("chat fallback model failed",
			"session_id", sessionID,
			"provider", e.chat.Name(),
			"model", e.config.FallbackModel,
			"error", ferr,
		)
		return nil, errors.ErrProviderUnavailable.WithCause(ferr)
	}
	return resp, nil
}

func (e *DialogueEngine) callChat(ctx context.Context, msgs []llm.Message, modelName string, fallback bool) (*llm.ChatResponse, error) {
	if e.config.ChatTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.ChatTimeout)
		defer cancel()
	}
	ctx, span := tracing.StartSpan(ctx, "chat.generate",
		attribute.String(tracing.ProviderName, e.chat.Name()),
		attribute.String(tracing.ProviderModel, modelName),
	)
	defer span.End()

	opts := []llm.ChatOption{
		llm.WithTemperature(e.config.Temperature),
		llm.WithMaxTokens(e.config.MaxTokens),
	}
	if modelName != "" {
		opts = append(opts, llm.WithModel(modelName))
	}

	start := time.Now()
	resp, err := e.chat.Chat(ctx, msgs, opts...)
	var usage llm.TokenUsage
	if resp != nil {
		usage = resp.Usage
	}
	if e.metrics != nil {
		e.metrics.RecordChat(time.Since(start), usage.PromptTokens, usage.CompletionTokens, fallback, err)
	}
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int(tracing.TokensConsumed, usage.TotalTokens))
	if resp.Model == "" {
		resp.Model = modelName
	}
	return resp, nil
}

func (e *DialogueEngine) persist(
	ctx context.Context,
	req TurnRequest,
	st *turnState,
	text string,
	sources []model.SearchHit,
	modelUsed string,
	elapsed time.Duration,
	cost float64,
) error {
	now := time.Now()
	sess := st.session

	titles := make([]string, 0, len(sources))
	for _, h := range sources {
		titles = append(titles, h.Title)
	}
	userMsg := &model.Message{
		Role:      model.RoleUser,
		Content:   req.Query,
		CreatedAt: now,
	}
	assistantMsg := &model.Message{
		Role:                model.RoleAssistant,
		Content:             text,
		RAGSourcesUsed:      titles,
		VectorSearchResults: sources,
		AIModelUsed:         modelUsed,
		ProcessingTime:      elapsed.Seconds(),
		Cost:                cost,
		CreatedAt:           now.Add(time.Microsecond),
	}

	sess.Metadata = st.meta
	sess.DetectedIntent = st.intent
	sess.Language = req.Language
	sess.TotalMessages += 2
	sess.TotalCost += cost
	sess.LastActivity = now
	if st.intent == model.IntentConsultation {
		sess.ConsultationRequested = true
	}
	if slug := serviceSlug(sources); slug != "" {
		sess.DetectedServiceCategory = slug
	}
	return e.sessions.AppendTurn(ctx, sess, userMsg, assistantMsg)
}

// serviceSlug 返回第一个服务或定价结果的 slug。
func serviceSlug(hits []model.SearchHit) string {
	for _, h := range hits {
		if (h.Category == model.CategoryService || h.Category == model.CategoryPricing) && h.Slug != "" {
			return h.Slug
		}
	}
	return ""
}

// mergeHits 合并两组结果，按实体去重。
func mergeHits(a, b []model.SearchHit) []model.SearchHit {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]model.SearchHit, 0, len(a)+len(b))
	for _, list := range [][]model.SearchHit{a, b} {
		for _, h := range list {
			k := h.EntityKind + ":" + h.EntityID
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, h)
		}
	}
	return out
}
