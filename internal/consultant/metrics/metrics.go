// Package metrics 提供顾问服务的业务指标收集。
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Namespace 指标名称前缀。
const Namespace = "consultant"

// ConsultantMetrics 顾问服务业务指标。
type ConsultantMetrics struct {
	// 对话指标
	turnsTotal           uint64 // 对话轮次
	turnErrors           uint64 // 失败轮次
	fallbackReplies      uint64 // 无检索结果时的兜底回复
	clarificationsAsked  uint64 // 定价澄清问题
	pricesDelivered      uint64 // 返回价格的回复
	concurrencyConflicts uint64 // 同一会话并发请求被拒绝

	// 检索指标
	retrievals     uint64
	retrievalHits  uint64 // 返回的结果总条数
	retrievalEmpty uint64 // 无结果的检索次数

	// 供应商指标
	embeddingCalls     uint64
	embeddingErrors    uint64
	chatCalls          uint64
	chatErrors         uint64
	chatFallbackCalls  uint64 // 主模型失败后的降级调用
	tokensPrompt       uint64
	tokensCompletion   uint64
	circuitBreakerOpen uint64 // 熔断器打开次数

	// 索引指标
	chunksIndexed  uint64
	indexErrors    uint64
	orphansDeleted uint64

	// 学习循环与线索
	patternsCreated  uint64
	patternsApproved uint64
	patternsIndexed  uint64
	patternsRejected uint64
	quotesCreated    uint64

	mu            sync.Mutex
	turnsByIntent map[string]uint64

	durationMu        sync.Mutex
	turnDuration      float64 // 秒
	embeddingDuration float64
	chatDuration      float64

	startTime time.Time
}

// New creates an empty metrics set.
func New() *ConsultantMetrics {
	return &ConsultantMetrics{
		turnsByIntent: make(map[string]uint64),
		startTime:     time.Now(),
	}
}

// RecordTurn 记录一次对话轮次。
func (m *ConsultantMetrics) RecordTurn(intent string, duration time.Duration, err error) {
	atomic.AddUint64(&m.turnsTotal, 1)
	m.addDuration(&m.turnDuration, duration)
	if err != nil {
		atomic.AddUint64(&m.turnErrors, 1)
		return
	}
	m.mu.Lock()
	m.turnsByIntent[intent]++
	m.mu.Unlock()
}

// RecordFallbackReply counts a canned reply sent because retrieval was empty.
func (m *ConsultantMetrics) RecordFallbackReply() {
	atomic.AddUint64(&m.fallbackReplies, 1)
}

// RecordClarification counts a turn that asked pricing clarifications.
func (m *ConsultantMetrics) RecordClarification() {
	atomic.AddUint64(&m.clarificationsAsked, 1)
}

// RecordPricesDelivered counts a reply with prices_ready=true.
func (m *ConsultantMetrics) RecordPricesDelivered() {
	atomic.AddUint64(&m.pricesDelivered, 1)
}

// RecordConcurrencyConflict counts a rejected overlapping turn.
func (m *ConsultantMetrics) RecordConcurrencyConflict() {
	atomic.AddUint64(&m.concurrencyConflicts, 1)
}

// RecordRetrieval 记录一次检索及其结果数。
func (m *ConsultantMetrics) RecordRetrieval(hits int) {
	atomic.AddUint64(&m.retrievals, 1)
	if hits == 0 {
		atomic.AddUint64(&m.retrievalEmpty, 1)
		return
	}
	atomic.AddUint64(&m.retrievalHits, uint64(hits))
}

// RecordEmbedding 记录 embedding 调用。
func (m *ConsultantMetrics) RecordEmbedding(duration time.Duration, err error) {
	atomic.AddUint64(&m.embeddingCalls, 1)
	m.addDuration(&m.embeddingDuration, duration)
	if err != nil {
		atomic.AddUint64(&m.embeddingErrors, 1)
	}
}

// RecordChat 记录生成模型调用。
func (m *ConsultantMetrics) RecordChat(duration time.Duration, promptTokens, completionTokens int, fallback bool, err error) {
	atomic.AddUint64(&m.chatCalls, 1)
	if fallback {
		atomic.AddUint64(&m.chatFallbackCalls, 1)
	}
	m.addDuration(&m.chatDuration, duration)
	if err != nil {
		atomic.AddUint64(&m.chatErrors, 1)
		return
	}
	atomic.AddUint64(&m.tokensPrompt, uint64(max(promptTokens, 0)))
	atomic.AddUint64(&m.tokensCompletion, uint64(max(completionTokens, 0)))
}

// RecordCircuitBreakerOpen 记录熔断器打开。
func (m *ConsultantMetrics) RecordCircuitBreakerOpen() {
	atomic.AddUint64(&m.circuitBreakerOpen, 1)
}

// RecordIndexed 记录索引写入。
func (m *ConsultantMetrics) RecordIndexed(err error) {
	if err != nil {
		atomic.AddUint64(&m.indexErrors, 1)
		return
	}
	atomic.AddUint64(&m.chunksIndexed, 1)
}

// RecordOrphansDeleted adds n rows removed by the orphan sweep.
func (m *ConsultantMetrics) RecordOrphansDeleted(n int64) {
	if n > 0 {
		atomic.AddUint64(&m.orphansDeleted, uint64(n))
	}
}

// RecordPatternCreated counts a new learning pattern.
func (m *ConsultantMetrics) RecordPatternCreated() {
	atomic.AddUint64(&m.patternsCreated, 1)
}

// RecordPatternApproved counts an approval, manual or automatic.
func (m *ConsultantMetrics) RecordPatternApproved() {
	atomic.AddUint64(&m.patternsApproved, 1)
}

// RecordPatternIndexed counts a pattern promoted into the index.
func (m *ConsultantMetrics) RecordPatternIndexed() {
	atomic.AddUint64(&m.patternsIndexed, 1)
}

// RecordPatternRejected counts a rejected pattern.
func (m *ConsultantMetrics) RecordPatternRejected() {
	atomic.AddUint64(&m.patternsRejected, 1)
}

// RecordQuote counts a stored quote request.
func (m *ConsultantMetrics) RecordQuote() {
	atomic.AddUint64(&m.quotesCreated, 1)
}

func (m *ConsultantMetrics) addDuration(sum *float64, d time.Duration) {
	m.durationMu.Lock()
	*sum += d.Seconds()
	m.durationMu.Unlock()
}

type sample struct {
	name  string
	help  string
	kind  string
	value string
}

func counter(name, help string, v *uint64) sample {
	return sample{name: name, help: help, kind: "counter", value: fmt.Sprintf("%d", atomic.LoadUint64(v))}
}

func seconds(name, help string, v float64) sample {
	return sample{name: name, help: help, kind: "counter", value: fmt.Sprintf("%.6f", v)}
}

func (m *ConsultantMetrics) samples() []sample {
	m.durationMu.Lock()
	turnDur, embDur, chatDur := m.turnDuration, m.embeddingDuration, m.chatDuration
	m.durationMu.Unlock()

	return []sample{
		counter("turns_total", "Total number of dialogue turns.", &m.turnsTotal),
		counter("turn_errors_total", "Number of failed dialogue turns.", &m.turnErrors),
		seconds("turn_duration_seconds_total", "Total dialogue turn duration.", turnDur),
		counter("fallback_replies_total", "Replies sent without retrieved context.", &m.fallbackReplies),
		counter("clarifications_total", "Turns that asked pricing clarifications.", &m.clarificationsAsked),
		counter("prices_delivered_total", "Replies that delivered prices.", &m.pricesDelivered),
		counter("concurrency_conflicts_total", "Overlapping turns rejected for one session.", &m.concurrencyConflicts),
		counter("retrievals_total", "Total number of retrievals.", &m.retrievals),
		counter("retrieval_hits_total", "Total number of retrieved hits.", &m.retrievalHits),
		counter("retrieval_empty_total", "Retrievals that returned nothing.", &m.retrievalEmpty),
		counter("embedding_calls_total", "Embedding provider calls.", &m.embeddingCalls),
		counter("embedding_errors_total", "Failed embedding provider calls.", &m.embeddingErrors),
		seconds("embedding_duration_seconds_total", "Total embedding call duration.", embDur),
		counter("chat_calls_total", "Generative provider calls.", &m.chatCalls),
		counter("chat_errors_total", "Failed generative provider calls.", &m.chatErrors),
		counter("chat_fallback_calls_total", "Calls made against the fallback model.", &m.chatFallbackCalls),
		seconds("chat_duration_seconds_total", "Total generative call duration.", chatDur),
		counter("tokens_prompt_total", "Prompt tokens consumed.", &m.tokensPrompt),
		counter("tokens_completion_total", "Completion tokens consumed.", &m.tokensCompletion),
		counter("circuit_breaker_opens_total", "Number of times a provider circuit breaker opened.", &m.circuitBreakerOpen),
		counter("chunks_indexed_total", "Chunks written to the vector store.", &m.chunksIndexed),
		counter("index_errors_total", "Objects that failed to index.", &m.indexErrors),
		counter("orphans_deleted_total", "Chunks removed by the orphan sweep.", &m.orphansDeleted),
		counter("patterns_created_total", "Learning patterns created.", &m.patternsCreated),
		counter("patterns_approved_total", "Learning patterns approved.", &m.patternsApproved),
		counter("patterns_indexed_total", "Learning patterns promoted into the index.", &m.patternsIndexed),
		counter("patterns_rejected_total", "Learning patterns rejected.", &m.patternsRejected),
		counter("quotes_total", "Quote requests captured.", &m.quotesCreated),
	}
}

// Export 以 Prometheus 文本格式导出指标。
func (m *ConsultantMetrics) Export(namespace, subsystem string) string {
	prefix := namespace
	if subsystem != "" {
		prefix = prefix + "_" + subsystem
	}

	var sb strings.Builder
	for _, s := range m.samples() {
		fmt.Fprintf(&sb, "# HELP %s_%s %s\n", prefix, s.name, s.help)
		fmt.Fprintf(&sb, "# TYPE %s_%s %s\n", prefix, s.name, s.kind)
		fmt.Fprintf(&sb, "%s_%s %s\n\n", prefix, s.name, s.value)
	}

	intents := m.intentCounts()
	names := make([]string, 0, len(intents))
	for k := range intents {
		names = append(names, k)
	}
	sort.Strings(names)
	fmt.Fprintf(&sb, "# HELP %s_turns_by_intent_total Successful turns per detected intent.\n", prefix)
	fmt.Fprintf(&sb, "# TYPE %s_turns_by_intent_total counter\n", prefix)
	for _, name := range names {
		fmt.Fprintf(&sb, "%s_turns_by_intent_total{intent=%q} %d\n", prefix, name, intents[name])
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "# HELP %s_uptime_seconds Time since the metrics were created.\n", prefix)
	fmt.Fprintf(&sb, "# TYPE %s_uptime_seconds gauge\n", prefix)
	fmt.Fprintf(&sb, "%s_uptime_seconds %.0f\n", prefix, time.Since(m.startTime).Seconds())
	return sb.String()
}

func (m *ConsultantMetrics) intentCounts() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.turnsByIntent))
	for k, v := range m.turnsByIntent {
		out[k] = v
	}
	return out
}

// Stats 返回指标快照，用于 /rag/stats。
func (m *ConsultantMetrics) Stats() map[string]interface{} {
	turns := atomic.LoadUint64(&m.turnsTotal)
	retrievals := atomic.LoadUint64(&m.retrievals)

	m.durationMu.Lock()
	avgTurn := 0.0
	if turns > 0 {
		avgTurn = m.turnDuration / float64(turns)
	}
	m.durationMu.Unlock()

	emptyRate := 0.0
	if retrievals > 0 {
		emptyRate = float64(atomic.LoadUint64(&m.retrievalEmpty)) / float64(retrievals)
	}

	return map[string]interface{}{
		"turns": map[string]interface{}{
			"total":                 turns,
			"errors":                atomic.LoadUint64(&m.turnErrors),
			"by_intent":             m.intentCounts(),
			"fallback_replies":      atomic.LoadUint64(&m.fallbackReplies),
			"clarifications":        atomic.LoadUint64(&m.clarificationsAsked),
			"prices_delivered":      atomic.LoadUint64(&m.pricesDelivered),
			"concurrency_conflicts": atomic.LoadUint64(&m.concurrencyConflicts),
			"avg_duration_ms":       avgTurn * 1000,
		},
		"retrieval": map[string]interface{}{
			"total":      retrievals,
			"hits":       atomic.LoadUint64(&m.retrievalHits),
			"empty":      atomic.LoadUint64(&m.retrievalEmpty),
			"empty_rate": emptyRate,
		},
		"providers": map[string]interface{}{
			"embedding_calls":      atomic.LoadUint64(&m.embeddingCalls),
			"embedding_errors":     atomic.LoadUint64(&m.embeddingErrors),
			"chat_calls":           atomic.LoadUint64(&m.chatCalls),
			"chat_errors":          atomic.LoadUint64(&m.chatErrors),
			"chat_fallback_calls":  atomic.LoadUint64(&m.chatFallbackCalls),
			"tokens_prompt":        atomic.LoadUint64(&m.tokensPrompt),
			"tokens_completion":    atomic.LoadUint64(&m.tokensCompletion),
			"circuit_breaker_open": atomic.LoadUint64(&m.circuitBreakerOpen),
		},
		"indexing": map[string]interface{}{
			"chunks":  atomic.LoadUint64(&m.chunksIndexed),
			"errors":  atomic.LoadUint64(&m.indexErrors),
			"orphans": atomic.LoadUint64(&m.orphansDeleted),
		},
		"learning": map[string]interface{}{
			"created":  atomic.LoadUint64(&m.patternsCreated),
			"approved": atomic.LoadUint64(&m.patternsApproved),
			"indexed":  atomic.LoadUint64(&m.patternsIndexed),
			"rejected": atomic.LoadUint64(&m.patternsRejected),
		},
		"quotes":         atomic.LoadUint64(&m.quotesCreated),
		"uptime_seconds": time.Since(m.startTime).Seconds(),
	}
}

// Reset 重置所有指标（仅用于测试）。
func (m *ConsultantMetrics) Reset() {
	for _, p := range []*uint64{
		&m.turnsTotal, &m.turnErrors, &m.fallbackReplies, &m.clarificationsAsked,
		&m.pricesDelivered, &m.concurrencyConflicts, &m.retrievals, &m.retrievalHits,
		&m.retrievalEmpty, &m.embeddingCalls, &m.embeddingErrors, &m.chatCalls,
		&m.chatErrors, &m.chatFallbackCalls, &m.tokensPrompt, &m.tokensCompletion,
		&m.circuitBreakerOpen, &m.chunksIndexed, &m.indexErrors, &m.orphansDeleted,
		&m.patternsCreated, &m.patternsApproved, &m.patternsIndexed, &m.patternsRejected,
		&m.quotesCreated,
	} {
		atomic.StoreUint64(p, 0)
	}

	m.mu.Lock()
	m.turnsByIntent = make(map[string]uint64)
	m.mu.Unlock()

	m.durationMu.Lock()
	m.turnDuration, m.embeddingDuration, m.chatDuration = 0, 0, 0
	m.durationMu.Unlock()

	m.startTime = time.Now()
}
