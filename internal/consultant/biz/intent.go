package biz

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lazysoft/consultant/internal/model"
)

// 各意图的关键词（跨语言合并）。
// 不少于 4 个字符的关键词按子串匹配，以覆盖词形变化；更短的按词前缀匹配。
var (
	greetingKeywords = []string{
		"привіт", "вітаю", "добрий день", "доброго дня", "добрий вечір", "hello", "hi", "hey",
		"good morning", "good afternoon", "cześć", "dzień dobry", "witam",
	}
	pricingKeywords = []string{
		"ціна", "ціни", "цін", "скільки", "коштує", "коштуват", "вартість", "бюджет",
		"price", "pricing", "cost", "budget", "how much", "cena", "ceny", "koszt", "ile kosztuje",
	}
	consultationKeywords = []string{
		"консультаці", "зустріч", "поговорити", "дзвінок", "consultation", "consult", "meeting",
		"call", "konsultacj", "spotkani", "rozmow",
	}
	portfolioKeywords = []string{
		"проєкт", "проект", "портфоліо", "кейс", "приклад", "portfolio", "case", "example",
		"project", "projekt", "realizacj", "przykład",
	}
	servicesKeywords = []string{
		"послуг", "сервіс", "що робите", "що ви робите", "пропонуєте", "надаєте",
		"service", "offer", "what do you do", "usług", "oferuj",
	}
)

// greetingMaxLen 超过该长度的消息不再视为单纯的问候。
const greetingMaxLen = 30

// queryText 预处理后的用户消息。
type queryText struct {
	lower  string
	tokens []string
}

func newQueryText(s string) queryText {
	lower := strings.ToLower(s)
	tokens := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	return queryText{lower: lower, tokens: tokens}
}

func (q queryText) has(keyword string) bool {
	if utf8.RuneCountInString(keyword) >= 4 || strings.Contains(keyword, " ") {
		return strings.Contains(q.lower, keyword)
	}
	for _, t := range q.tokens {
		if t == keyword || (utf8.RuneCountInString(keyword) == 3 && strings.HasPrefix(t, keyword)) {
			return true
		}
	}
	return false
}

func (q queryText) hasAny(keywords []string) bool {
	for _, k := range keywords {
		if q.has(k) {
			return true
		}
	}
	return false
}

// MentionsServices reports whether the query asks about the offering, which
// widens the retrieval window.
func MentionsServices(query string) bool {
	return newQueryText(query).hasAny(servicesKeywords)
}

// ClassifyIntent 按规则顺序识别意图：问候、定价、咨询、案例、服务，
// 然后参考首个检索结果的类别，最后回退到 general。
func ClassifyIntent(query string, hits []model.SearchHit) string {
	q := newQueryText(query)
	switch {
	case utf8.RuneCountInString(strings.TrimSpace(query)) < greetingMaxLen && q.hasAny(greetingKeywords):
		return model.IntentGreeting
	case q.hasAny(pricingKeywords):
		return model.IntentPricing
	case q.hasAny(consultationKeywords):
		return model.IntentConsultation
	case q.hasAny(portfolioKeywords):
		return model.IntentPortfolio
	case q.hasAny(servicesKeywords):
		return model.IntentServices
	case len(hits) > 0 && hits[0].Category == model.CategoryService:
		return model.IntentServices
	default:
		return model.IntentGeneral
	}
}

// stickyIntent 处于等待定价细节状态时，下一轮强制为 pricing。
func stickyIntent(meta model.SessionMetadata, detected string) string {
	if meta.AwaitingPricingDetails && !meta.PricingCompleted {
		return model.IntentPricing
	}
	return detected
}
