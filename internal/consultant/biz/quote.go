package biz

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/lazysoft/consultant/internal/consultant/metrics"
	"github.com/lazysoft/consultant/internal/consultant/store"
	"github.com/lazysoft/consultant/internal/model"
	"github.com/lazysoft/consultant/pkg/infra/pool"
	"github.com/lazysoft/consultant/pkg/utils/errors"
	"github.com/lazysoft/consultant/pkg/utils/id"
	"github.com/lazysoft/consultant/pkg/utils/validator"
)

const (
	// detectMessages 识别服务类别时参考的最近用户消息数。
	detectMessages = 3
	// excerptMessages 聊天摘录包含的消息数。
	excerptMessages = 6
	excerptRunes    = 300
	emitTimeout     = 15 * time.Second
)

// serviceCategoryKeywords 服务类别的识别关键词，按优先级排列。
var serviceCategoryKeywords = []struct {
	slug     string
	keywords []string
}{
	{"ai-automation", []string{"чат-бот", "чатбот", "бот", "chatbot", "bot", "ai", "штучн", "автоматизац", "automation", "automatyzacj", "crm", "etl"}},
	{"mobile-app", []string{"мобільн", "додаток", "застосунок", "mobile", "app", "ios", "android", "aplikacj"}},
	{"web-development", []string{"сайт", "веб", "web", "website", "лендінг", "landing", "магазин", "shop", "strona", "sklep"}},
	{"design", []string{"дизайн", "design", "ui", "ux", "логотип", "logo", "брендинг", "branding"}},
}

// DetectServiceCategory 根据文本识别服务类别，匹配数最多者胜出。
func DetectServiceCategory(text string) string {
	q := newQueryText(text)
	best, bestScore := "", 0
	for _, c := range serviceCategoryKeywords {
		score := 0
		for _, k := range c.keywords {
			if q.has(k) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = c.slug, score
		}
	}
	return best
}

// quoteStatusOrder 报价请求状态只能前进，任何未关闭状态都可以关闭。
var quoteStatusOrder = []string{
	model.QuoteNew,
	model.QuoteAnalyzed,
	model.QuoteQuoted,
	model.QuoteConsulted,
	model.QuoteConverted,
	model.QuoteClosed,
}

// CanAdvanceQuote reports whether a quote may move from one status to another.
func CanAdvanceQuote(from, to string) bool {
	i, j := slices.Index(quoteStatusOrder, from), slices.Index(quoteStatusOrder, to)
	if i < 0 || j < 0 || from == model.QuoteClosed {
		return false
	}
	return j > i
}

// QuoteInput 报价请求表单。
type QuoteInput struct {
	SessionID   string
	ClientName  string
	ClientEmail string
	Phone       string
	Company     string
	Message     string
	ClientIP    string
}

// QuoteService 持久化报价请求并投递线索。
type QuoteService struct {
	store   store.Factory
	sinks   []LeadSink
	pool    *pool.Pool
	metrics *metrics.ConsultantMetrics
}

// NewQuoteService 创建报价服务。p 为 nil 时同步投递。
func NewQuoteService(s store.Factory, sinks []LeadSink, p *pool.Pool, m *metrics.ConsultantMetrics) *QuoteService {
	return &QuoteService{store: s, sinks: sinks, pool: p, metrics: m}
}

func (in *QuoteInput) validate() error {
	in.ClientName = strings.TrimSpace(in.ClientName)
	in.ClientEmail = strings.TrimSpace(in.ClientEmail)
	in.Message = strings.TrimSpace(in.Message)
	if in.ClientName == "" || in.ClientEmail == "" || in.Message == "" {
		return errors.ErrQuoteInvalid.WithMessage("client_name, client_email and message are required")
	}
	if err := validator.Global().Engine().Var(in.ClientEmail, "email"); err != nil {
		return errors.ErrQuoteInvalid.WithMessage("client_email is not a valid address")
	}
	return nil
}

// Request 保存报价请求，标记会话产生线索，并异步投递线索记录。
func (q *QuoteService) Request(ctx context.Context, in QuoteInput) (*model.QuoteRequest, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	sess, err := q.store.Sessions().Get(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	msgs, err := q.store.Sessions().Messages(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}

	category := DetectServiceCategory(recentUserText(msgs, detectMessages))
	if category == "" {
		category = sess.DetectedServiceCategory
	}

	req := &model.QuoteRequest{
		RequestID:               id.New(),
		SessionID:               sess.SessionID,
		ClientName:              in.ClientName,
		ClientEmail:             in.ClientEmail,
		ClientPhone:             in.Phone,
		ClientCompany:           in.Company,
		Message:                 in.Message,
		DetectedServiceCategory: category,
		OriginalQuery:           firstUserText(msgs),
		Prices:                  lastPrices(msgs),
		ChatExcerpt:             chatExcerpt(msgs, excerptMessages),
		Status:                  model.QuoteNew,
	}
	if err := q.store.Quotes().Create(ctx, req); err != nil {
		return nil, err
	}

	if err := q.store.Sessions().MarkQuoteRequested(ctx, sess.SessionID, in.ClientName, in.ClientEmail, category); err != nil {
		return nil, err
	}
	if q.metrics != nil {
		q.metrics.RecordQuote()
	}

	ip := in.ClientIP
	if ip == "" {
		ip = sess.ClientIP
	}
	rec := &LeadRecord{
		RequestID: req.RequestID,
		SessionID: req.SessionID,
		ClientInfo: ClientInfo{
			Name:    in.ClientName,
			Email:   in.ClientEmail,
			Phone:   in.Phone,
			Company: in.Company,
			IP:      ip,
		},
		DetectedServiceCategory: category,
		OriginalQuery:           req.OriginalQuery,
		Message:                 in.Message,
		Prices:                  req.Prices,
		ChatExcerpt:             req.ChatExcerpt,
		CreatedAt:               req.CreatedAt,
	}
	q.emit(rec)

	logger.Infow("quote requested",
		"session_id", sess.SessionID,
		"request_id", req.RequestID,
		"service_category", category,
	)
	return req, nil
}

func (q *QuoteService) emit(rec *LeadRecord) {
	if len(q.sinks) == 0 {
		return
	}
	task := func() {
		ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		for _, s := range q.sinks {
			if err := s.Emit(ctx, rec); err != nil {
				logger.Warnw("lead emission failed",
					"sink", s.Name(),
					"request_id", rec.RequestID,
					"session_id", rec.SessionID,
					"error", err,
				)
			}
		}
	}
	if q.pool == nil {
		task()
		return
	}
	if err := q.pool.Submit(task); err != nil {
		logger.Warnw("lead emission not scheduled", "request_id", rec.RequestID, "error", err)
	}
}

// Get returns a quote request by its public id.
func (q *QuoteService) Get(ctx context.Context, requestID string) (*model.QuoteRequest, error) {
	return q.store.Quotes().Get(ctx, requestID)
}

// UpdateStatus 推进报价请求状态。
func (q *QuoteService) UpdateStatus(ctx context.Context, requestID, status string) error {
	req, err := q.store.Quotes().Get(ctx, requestID)
	if err != nil {
		return err
	}
	if !CanAdvanceQuote(req.Status, status) {
		return errors.ErrQuoteInvalid.WithMessagef("quote status %s -> %s is not allowed", req.Status, status)
	}
	return q.store.Quotes().UpdateStatus(ctx, requestID, status)
}

func recentUserText(msgs []*model.Message, n int) string {
	var parts []string
	for i := len(msgs) - 1; i >= 0 && len(parts) < n; i-- {
		if msgs[i].Role == model.RoleUser {
			parts = append(parts, msgs[i].Content)
		}
	}
	return strings.Join(parts, "\n")
}

func firstUserText(msgs []*model.Message) string {
	for _, m := range msgs {
		if m.Role == model.RoleUser {
			return m.Content
		}
	}
	return ""
}

// lastPrices 取最近一条带定价结果的助手消息中的价格。
func lastPrices(msgs []*model.Message) model.PriceLines {
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Role != model.RoleAssistant {
			continue
		}
		if prices := collectPrices(m.VectorSearchResults); len(prices) > 0 {
			return prices
		}
	}
	return model.PriceLines{}
}

func chatExcerpt(msgs []*model.Message, n int) string {
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, roleLabel(m.Role)+": "+truncateRunes(m.Content, excerptRunes))
	}
	return strings.Join(lines, "\n")
}
