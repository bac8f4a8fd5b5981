package biz

import (
	"context"
	"slices"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kart-io/logger"

	"github.com/lazysoft/consultant/internal/consultant/metrics"
	"github.com/lazysoft/consultant/internal/consultant/store"
	"github.com/lazysoft/consultant/internal/model"
	"github.com/lazysoft/consultant/pkg/utils/errors"
)

const (
	minQueryRunes    = 10
	minResponseRunes = 20
	minSatisfaction  = 3
	// overlapThreshold 共有词数超过该值视为相似问题。
	overlapThreshold = 2
	maxKeywords      = 5
	maxAutoApprove   = 10
	learnedPriority  = 5
	titlePrefixRunes = 50
)

// errorMarkers 出现在回复中即视为失败回复。
var errorMarkers = []string{"помилка", "error", "вибачте, зараз я не можу"}

var stopWords = map[string]bool{
	// uk
	"який": true, "яка": true, "яке": true, "які": true, "якщо": true, "коли": true, "тому": true,
	"також": true, "можна": true, "потрібно": true, "будь": true, "ласка": true, "чи": true,
	"мені": true, "вам": true, "ваш": true, "ваша": true, "ваші": true, "для": true, "щоб": true,
	"цього": true, "цей": true, "через": true, "після": true, "перед": true, "буде": true,
	// en
	"what": true, "which": true, "when": true, "where": true, "that": true, "this": true,
	"with": true, "have": true, "does": true, "your": true, "from": true, "would": true,
	"could": true, "should": true, "about": true, "there": true, "their": true, "please": true,
}

// patternTransitions 模式状态的合法转换。
var patternTransitions = map[string][]string{
	model.PatternDetected:      {model.PatternPendingReview, model.PatternRejected},
	model.PatternPendingReview: {model.PatternApproved, model.PatternRejected},
	model.PatternApproved:      {model.PatternIndexed, model.PatternRejected},
	model.PatternRejected:      {model.PatternApproved},
	model.PatternIndexed:       {},
}

// CanTransition reports whether a pattern may move from one status to another.
func CanTransition(from, to string) bool {
	return slices.Contains(patternTransitions[from], to)
}

func transition(p *model.LearningPattern, to string) error {
	if !CanTransition(p.Status, to) {
		return errors.ErrPatternTransition.WithMessagef("pattern %d: %s -> %s is not allowed", p.ID, p.Status, to)
	}
	p.Status = to
	return nil
}

// LearnerConfig 学习循环配置。
type LearnerConfig struct {
	AutoApprove  bool
	MinFrequency int
	MinSuccess   float64
	Retention    time.Duration
}

// AnalyzeResult 一次分析的统计。
type AnalyzeResult struct {
	Sessions     int `json:"sessions"`
	Pairs        int `json:"pairs"`
	Created      int `json:"created"`
	Updated      int `json:"updated"`
	AutoApproved int `json:"auto_approved"`
}

// Learner 从历史对话中提取问答模式，并把审核通过的模式写回知识库。
type Learner struct {
	store   store.Factory
	indexer *Indexer
	metrics *metrics.ConsultantMetrics
	config  LearnerConfig
}

// NewLearner 创建学习循环。
func NewLearner(s store.Factory, indexer *Indexer, m *metrics.ConsultantMetrics, config LearnerConfig) *Learner {
	if config.MinFrequency <= 0 {
		config.MinFrequency = 3
	}
	if config.MinSuccess <= 0 {
		config.MinSuccess = 0.8
	}
	if config.Retention <= 0 {
		config.Retention = 60 * 24 * time.Hour
	}
	return &Learner{store: s, indexer: indexer, metrics: m, config: config}
}

// qaPair 一组候选问答。
type qaPair struct {
	query    string
	response string
}

// extractPairs 把每条用户消息与其后的第一条助手消息配对，并过滤低质量的组合。
func extractPairs(sess *model.Session) []qaPair {
	if sess.Satisfaction != nil && *sess.Satisfaction < minSatisfaction {
		return nil
	}
	var pairs []qaPair
	msgs := sess.Messages
	for i := 0; i < len(msgs); i++ {
		if msgs[i].Role != model.RoleUser {
			continue
		}
		j := i + 1
		for j < len(msgs) && msgs[j].Role != model.RoleAssistant {
			j++
		}
		if j == len(msgs) {
			break
		}
		q := strings.TrimSpace(msgs[i].Content)
		a := strings.TrimSpace(msgs[j].Content)
		if utf8.RuneCountInString(q) < minQueryRunes || utf8.RuneCountInString(a) < minResponseRunes {
			continue
		}
		if containsErrorMarker(a) {
			continue
		}
		pairs = append(pairs, qaPair{query: q, response: a})
	}
	return pairs
}

func containsErrorMarker(s string) bool {
	lower := strings.ToLower(s)
	for _, m := range errorMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// significantWords 长度大于 3 的小写词集合。
func significantWords(s string) map[string]bool {
	words := make(map[string]bool)
	for _, t := range newQueryText(s).tokens {
		if utf8.RuneCountInString(t) > 3 {
			words[t] = true
		}
	}
	return words
}

func overlap(a, b map[string]bool) int {
	n := 0
	for w := range a {
		if b[w] {
			n++
		}
	}
	return n
}

// similarTo reports whether query shares enough words with the pattern or one
// of its variations.
func similarTo(words map[string]bool, p *model.LearningPattern) bool {
	if overlap(words, significantWords(p.QueryPattern)) > overlapThreshold {
		return true
	}
	for _, v := range p.QueryVariations {
		if overlap(words, significantWords(v)) > overlapThreshold {
			return true
		}
	}
	return false
}

// extractKeywords 去掉停用词后按长度取前 5 个。
func extractKeywords(s string) []string {
	seen := make(map[string]bool)
	var words []string
	for _, t := range newQueryText(s).tokens {
		if utf8.RuneCountInString(t) <= 3 || stopWords[t] || seen[t] {
			continue
		}
		seen[t] = true
		words = append(words, t)
	}
	sort.SliceStable(words, func(i, j int) bool {
		return utf8.RuneCountInString(words[i]) > utf8.RuneCountInString(words[j])
	})
	if len(words) > maxKeywords {
		words = words[:maxKeywords]
	}
	return words
}

func responseSource(sess *model.Session) string {
	switch {
	case sess.LeadGenerated:
		return model.ResponseSuccessfulConversion
	case sess.Satisfaction != nil && *sess.Satisfaction >= 4:
		return model.ResponsePositiveFeedback
	default:
		return model.ResponseHighSimilarity
	}
}

var sourceRank = map[string]int{
	model.ResponseHighSimilarity:       1,
	model.ResponsePositiveFeedback:     2,
	model.ResponseSuccessfulConversion: 3,
	model.ResponseManualApproval:       4,
}

func successRate(p *model.LearningPattern) float64 {
	if p.Frequency == 0 {
		return 0
	}
	return min(1, float64(p.LeadSessions)/float64(p.Frequency))
}

// Analyze 分析 window 内活跃的会话，更新或创建学习模式。
// 对同一窗口重复执行不会重复计数。
func (l *Learner) Analyze(ctx context.Context, window time.Duration) (*AnalyzeResult, error) {
	start := time.Now()
	sessions, err := l.store.Sessions().ListActiveSince(ctx, start.Add(-window))
	if err != nil {
		return nil, err
	}
	patterns, err := l.store.Patterns().List(ctx)
	if err != nil {
		return nil, err
	}

	res := &AnalyzeResult{Sessions: len(sessions)}
	dirty := make(map[*model.LearningPattern]bool)
	var created []*model.LearningPattern

	for _, sess := range sessions {
		for _, pair := range extractPairs(sess) {
			res.Pairs++
			words := significantWords(pair.query)

			var match *model.LearningPattern
			for _, p := range patterns {
				if similarTo(words, p) {
					match = p
					break
				}
			}
			if match == nil {
				p := newPattern(sess, pair)
				patterns = append(patterns, p)
				created = append(created, p)
				continue
			}
			if l.merge(match, sess, pair) {
				dirty[match] = true
			}
		}
	}

	for _, p := range created {
		if err := l.store.Patterns().Create(ctx, p); err != nil {
			return res, err
		}
		delete(dirty, p)
		res.Created++
		if l.metrics != nil {
			l.metrics.RecordPatternCreated()
		}
	}
	for p := range dirty {
		if p.ID == 0 {
			continue
		}
		if err := l.store.Patterns().Update(ctx, p); err != nil {
			return res, err
		}
		res.Updated++
	}

	if l.config.AutoApprove {
		res.AutoApproved = l.autoApprove(ctx, patterns)
	}

	logger.Infow("learning analysis finished",
		"sessions", res.Sessions,
		"pairs", res.Pairs,
		"created", res.Created,
		"updated", res.Updated,
		"auto_approved", res.AutoApproved,
		"duration", time.Since(start).String(),
	)
	return res, nil
}

func newPattern(sess *model.Session, pair qaPair) *model.LearningPattern {
	p := &model.LearningPattern{
		QueryPattern:    pair.query,
		QueryVariations: model.StringSlice{},
		BestResponse:    pair.response,
		ResponseSource:  responseSource(sess),
		Frequency:       1,
		Status:          model.PatternPendingReview,
		DetectedIntent:  ClassifyIntent(pair.query, nil),
		Language:        sess.Language,
		Keywords:        extractKeywords(pair.query),
		SessionIDs:      model.StringSlice{sess.SessionID},
	}
	if sess.LeadGenerated {
		p.LeadSessions = 1
	}
	p.SuccessRate = successRate(p)
	return p
}

// merge 把一次新的出现合并进已有模式，返回是否有变化。
func (l *Learner) merge(p *model.LearningPattern, sess *model.Session, pair qaPair) bool {
	seenSession := slices.Contains(p.SessionIDs, sess.SessionID)
	seenQuery := p.QueryPattern == pair.query || slices.Contains(p.QueryVariations, pair.query)
	if seenSession && seenQuery {
		return false
	}

	p.Frequency++
	if !seenQuery {
		p.QueryVariations = append(p.QueryVariations, pair.query)
	}
	if !seenSession {
		p.SessionIDs = append(p.SessionIDs, sess.SessionID)
		if sess.LeadGenerated {
			p.LeadSessions++
		}
	}
	if src := responseSource(sess); sourceRank[src] > sourceRank[p.ResponseSource] {
		p.ResponseSource = src
		p.BestResponse = pair.response
	}
	p.SuccessRate = successRate(p)
	return true
}

// autoApprove 审核通过频次和成功率达标的待审核模式，最多 10 个。
func (l *Learner) autoApprove(ctx context.Context, patterns []*model.LearningPattern) int {
	var eligible []*model.LearningPattern
	for _, p := range patterns {
		if p.ID != 0 && p.Status == model.PatternPendingReview &&
			p.Frequency >= l.config.MinFrequency && p.SuccessRate >= l.config.MinSuccess {
			eligible = append(eligible, p)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Frequency > eligible[j].Frequency
	})
	if len(eligible) > maxAutoApprove {
		eligible = eligible[:maxAutoApprove]
	}

	approved := 0
	for _, p := range eligible {
		if err := l.approve(ctx, p, "auto"); err != nil {
			logger.Warnw("auto approval failed", "pattern_id", p.ID, "error", err)
			continue
		}
		approved++
	}
	return approved
}

// Approve 人工审核通过模式并写入知识库。
func (l *Learner) Approve(ctx context.Context, id uint64, reviewer string) (*model.LearningPattern, error) {
	p, err := l.store.Patterns().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p.ResponseSource = model.ResponseManualApproval
	if err := l.approve(ctx, p, reviewer); err != nil {
		return p, err
	}
	return p, nil
}

func (l *Learner) approve(ctx context.Context, p *model.LearningPattern, reviewer string) error {
	if err := transition(p, model.PatternApproved); err != nil {
		return err
	}
	now := time.Now()
	p.ReviewedBy = reviewer
	p.ReviewedAt = &now
	if err := l.store.Patterns().Update(ctx, p); err != nil {
		return err
	}
	if l.metrics != nil {
		l.metrics.RecordPatternApproved()
	}
	return l.Promote(ctx, p)
}

// Reject 拒绝模式。
func (l *Learner) Reject(ctx context.Context, id uint64, reviewer string) (*model.LearningPattern, error) {
	p, err := l.store.Patterns().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := transition(p, model.PatternRejected); err != nil {
		return p, err
	}
	now := time.Now()
	p.ReviewedBy = reviewer
	p.ReviewedAt = &now
	if err := l.store.Patterns().Update(ctx, p); err != nil {
		return p, err
	}
	if l.metrics != nil {
		l.metrics.RecordPatternRejected()
	}
	return p, nil
}

// Promote 为已审核的模式创建知识条目并建立索引，成功后状态为 indexed。
// 索引失败时删除条目，模式转为 rejected。
func (l *Learner) Promote(ctx context.Context, p *model.LearningPattern) error {
	lang := p.Language
	if lang == "" {
		lang = fallbackLang
	}
	entry := &model.KnowledgeEntry{
		Title:      "Q&A: " + truncateRunes(p.QueryPattern, titlePrefixRunes) + "...",
		SourceType: model.SourceDialogs,
		Content: model.LocalizedText{
			lang: "Питання: " + p.QueryPattern + "\n\nВідповідь: " + p.BestResponse,
		},
		Tags:     p.Keywords,
		Priority: learnedPriority,
		Active:   true,
	}
	if err := l.store.Knowledge().Create(ctx, entry); err != nil {
		return err
	}

	written, err := l.indexer.IndexObject(ctx, model.KindKnowledge, entry.ID, lang)
	if err == nil && !written {
		err = errors.ErrInternal.WithMessage("knowledge entry produced no indexable text")
	}
	if err != nil {
		logger.Errorw("failed to index learned pattern",
			"pattern_id", p.ID,
			"entity_id", entry.ID,
			"language", lang,
			"error", err,
		)
		if derr := l.store.Knowledge().Delete(ctx, entry.ID); derr != nil {
			logger.Warnw("failed to delete knowledge entry", "entity_id", entry.ID, "error", derr)
		}
		p.Status = model.PatternRejected
		if uerr := l.store.Patterns().Update(ctx, p); uerr != nil {
			logger.Warnw("failed to mark pattern rejected", "pattern_id", p.ID, "error", uerr)
		}
		if l.metrics != nil {
			l.metrics.RecordPatternRejected()
		}
		return err
	}

	if err := transition(p, model.PatternIndexed); err != nil {
		return err
	}
	p.KnowledgeEntryID = &entry.ID
	if err := l.store.Patterns().Update(ctx, p); err != nil {
		return err
	}
	if l.metrics != nil {
		l.metrics.RecordPatternIndexed()
	}
	logger.Infow("learned pattern indexed", "pattern_id", p.ID, "entity_id", entry.ID, "language", lang)
	return nil
}

// Cleanup 删除超过保留期的 rejected 模式。
func (l *Learner) Cleanup(ctx context.Context) (int64, error) {
	n, err := l.store.Patterns().DeleteRejectedBefore(ctx, time.Now().Add(-l.config.Retention))
	if err != nil {
		return 0, err
	}
	logger.Infow("rejected patterns cleaned up", "rows", n)
	return n, nil
}

// Patterns 按状态列出学习模式。
func (l *Learner) Patterns(ctx context.Context, statuses ...string) ([]*model.LearningPattern, error) {
	return l.store.Patterns().List(ctx, statuses...)
}
