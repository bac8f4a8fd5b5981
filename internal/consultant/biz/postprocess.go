package biz

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/lazysoft/consultant/internal/model"
)

// maxPriceLines 定价跟进时最多注入的价格行数。
const maxPriceLines = 5

var (
	// numberedLine 匹配 "1. ..." 或 "1) ..." 形式的行。
	numberedLine = regexp.MustCompile(`^\s*\d{1,2}[.)]\s+\S`)
	// firstNumbered 匹配编号列表的第一项。
	firstNumbered = regexp.MustCompile(`(?m)^\s*1[.)]\s+\S`)
)

var currencySymbols = []string{"$", "€", "₴", "zł"}

var currencyCodes = map[string]bool{
	"usd": true, "eur": true, "pln": true, "uah": true, "грн": true, "zł": true,
}

// priceIndicators 回复中出现即视为已给出价格。
var priceIndicators = []string{"$", "€", "₴", "usd", "eur", "грн", "pln", "price", "cost", "орієнтовн", "вартіст", "ціна", "ціни", "cena", "ceny", "koszt"}

// mentionsCurrency reports whether a line names an amount of money.
func mentionsCurrency(line string) bool {
	for _, s := range currencySymbols {
		if strings.Contains(line, s) {
			return true
		}
	}
	for _, tok := range newQueryText(line).tokens {
		tok = strings.TrimLeftFunc(tok, unicode.IsDigit)
		if currencyCodes[tok] {
			return true
		}
	}
	return false
}

// stripCurrencyLines 删除包含金额的行。
func stripCurrencyLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if !mentionsCurrency(line) {
			kept = append(kept, line)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// hasNumberedList reports whether text contains a list starting at "1.".
func hasNumberedList(text string) bool {
	return firstNumbered.MatchString(text)
}

// ensureClarificationList 模型没有给出编号问题时追加默认问题。
func ensureClarificationList(text, lang string) string {
	if hasNumberedList(text) {
		return text
	}
	qs, ok := clarificationQuestions[lang]
	if !ok {
		qs = clarificationQuestions[fallbackLang]
	}
	var b strings.Builder
	if text != "" {
		b.WriteString(text)
		b.WriteString("\n\n")
	}
	b.WriteString(clarificationLeads.get(lang))
	for i, q := range qs {
		b.WriteString("\n")
		b.WriteString(string(rune('1' + i)))
		b.WriteString(". ")
		b.WriteString(q)
	}
	return b.String()
}

// stripNumberedQuestions 删除编号形式的问题行。
func stripNumberedQuestions(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if numberedLine.MatchString(line) && strings.Contains(line, "?") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// collectPrices 从定价结果中提取去重后的价格行，最多 5 条。
func collectPrices(hits []model.SearchHit) []model.PriceLine {
	seen := make(map[string]bool)
	var out []model.PriceLine
	for i := range hits {
		h := &hits[i]
		if h.Category != model.CategoryPricing {
			continue
		}
		price := FormatPrice(h.PriceFrom, h.PriceTo, h.Currency)
		if price == "" {
			continue
		}
		pkg := h.PackageName
		if pkg == "" {
			pkg = h.Title
		}
		key := strings.ToLower(pkg + "|" + h.ServiceTitle)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, model.PriceLine{
			Package:   pkg,
			Service:   h.ServiceTitle,
			Price:     price,
			PriceFrom: h.PriceFrom,
			PriceTo:   h.PriceTo,
			Currency:  h.Currency,
		})
		if len(out) == maxPriceLines {
			break
		}
	}
	return out
}

func formatPriceLine(p model.PriceLine) string {
	if p.Service == "" {
		return "- " + p.Package + ": " + p.Price
	}
	return "- " + p.Package + ": " + p.Price + " (" + p.Service + ")"
}

// injectPrices 回复中没有价格段落时追加。
func injectPrices(text, lang string, prices []model.PriceLine) string {
	header := pricesHeaders.get(lang)
	if len(prices) == 0 || strings.Contains(text, header) {
		return text
	}
	var b strings.Builder
	b.WriteString(text)
	b.WriteString("\n\n")
	b.WriteString(header)
	for _, p := range prices {
		b.WriteString("\n")
		b.WriteString(formatPriceLine(p))
	}
	return b.String()
}

// mentionsPrices reports whether a reply contains price indicators.
func mentionsPrices(text string) bool {
	lower := strings.ToLower(text)
	for _, t := range priceIndicators {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// ensurePersonaIntro 首轮回复缺少顾问名字时在开头加上自我介绍。
func ensurePersonaIntro(text, lang, name, company string) string {
	if name != "" && strings.Contains(text, name) {
		return text
	}
	return personaIntro(lang, name, company) + " " + text
}

func appendGDPR(text, lang string) string {
	return text + "\n\n" + gdprNotices.get(lang)
}

// Action 回复附带的操作按钮或链接。
type Action struct {
	Type       string `json:"type"`
	Text       string `json:"text"`
	URL        string `json:"url,omitempty"`
	Action     string `json:"action,omitempty"`
	Style      string `json:"style"`
	Persistent bool   `json:"persistent,omitempty"`
}

// Action identifiers understood by the web widget.
const (
	ActionRequestQuote = "request_quote"
	ActionOpenCalendly = "open_calendly"
)

func buildActions(lang, consultURL, shortURL string, pricesReady bool) []Action {
	labels := actionLabel(lang)
	actions := make([]Action, 0, 3)
	if consultURL != "" {
		actions = append(actions, Action{
			Type:       "link",
			Text:       labels.consultLong,
			URL:        consultURL,
			Style:      "secondary",
			Persistent: true,
		})
	}
	if shortURL != "" {
		actions = append(actions, Action{
			Type:   "button",
			Text:   labels.consultShort,
			URL:    shortURL,
			Action: ActionOpenCalendly,
			Style:  "secondary",
		})
	}
	if pricesReady {
		actions = append(actions, Action{
			Type:   "button",
			Text:   labels.quote,
			Action: ActionRequestQuote,
			Style:  "primary",
		})
	}
	return actions
}
