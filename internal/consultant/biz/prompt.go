package biz

import (
	"fmt"
	"strings"

	"github.com/lazysoft/consultant/internal/model"
	"github.com/lazysoft/consultant/pkg/llm"
)

// pricingMode 本轮的定价流程。
type pricingMode int

const (
	pricingNone pricingMode = iota
	// pricingAsk 只提澄清问题，不给价格。
	pricingAsk
	// pricingFollowup 直接给出价格，不再提问。
	pricingFollowup
)

const (
	maxServiceBlocks  = 7
	maxOtherBlocks    = 2
	maxPackagesPerSvc = 3
	maxSourceBlocks   = 3
	maxSourceChars    = 800
	maxServiceChars   = 400
)

// promptInput 组装提示词所需的全部输入。
type promptInput struct {
	Language  string
	Intent    string
	Persona   string
	Company   string
	FirstTurn bool
	Pricing   pricingMode
	Hits      []model.SearchHit
	History   []*model.Message
	Query     string
}

func buildPrompt(in promptInput) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt(in)},
		{Role: llm.RoleUser, Content: userPrompt(in)},
	}
}

const basePrompt = `Ти - %s, досвідчена IT-консультантка компанії %s.
Ти допомагаєш клієнтам з технічними рішеннями та бізнес-автоматизацією.
Мова відповіді: %s. Відповідай лише цією мовою.

Твоя поведінка:
- Відповідай професійно, але дружелюбно
- Не використовуй Markdown (заголовки, жирний шрифт, таблиці)
- Використовуй конкретні факти з наданої інформації
- Ніколи не згадуй "базу знань", "контекст" чи джерела
- Коли доречно, пропонуй безкоштовну консультацію
- Якщо питання поза твоєю компетенцією, чесно про це скажи`

var intentPrompts = map[string]string{
	model.IntentPricing: `Фокус на ціни:
- Пропонуй конкретні пакети (базовий/стандарт/преміум)
- Згадуй приклади схожих проєктів
- Пропонуй безкоштовну консультацію або детальний прорахунок`,
	model.IntentConsultation: `Фокус на консультації:
- Підкреслюй переваги особистого спілкування
- Запропонуй обрати зручний час для зустрічі
- Допоможи підготувати питання до зустрічі`,
	model.IntentServices: `Фокус на сервіси:
- Назви кожен доречний сервіс окремо, своїми словами
- Наводь конкретні приклади використання
- Пропонуй супутні послуги`,
	model.IntentPortfolio: `Фокус на проєкти:
- Розповідай про конкретні кейси
- Підкреслюй результати та ROI
- Пропонуй схожі рішення`,
	model.IntentGreeting: `Клієнт вітається:
- Коротко привітайся і запитай, яке завдання він хоче вирішити`,
}

const pricingAskPrompt = `Режим уточнення ціни:
- НЕ називай жодних цін, сум чи валют у цій відповіді
- Постав рівно один нумерований список (1. ... 5.) з не більше ніж 5 уточнювальних питань
- Питання мають стосуватися типу бізнесу, функцій, інтеграцій, мов і термінів`

const pricingFollowupPrompt = `Режим надання цін:
- Клієнт уже відповів на уточнення, НЕ став нових питань
- Назви орієнтовні ціни пакетів з наданої інформації
- Порадь пакет, який найкраще підходить під опис клієнта`

func systemPrompt(in promptInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, basePrompt, in.Persona, in.Company, languageNames.get(in.Language))
	b.WriteString("\n")
	if in.FirstTurn {
		fmt.Fprintf(&b, "- Почни відповідь з представлення: %s\n", personaIntro(in.Language, in.Persona, in.Company))
	} else {
		b.WriteString("- Не представляйся повторно\n")
	}
	if p, ok := intentPrompts[in.Intent]; ok {
		b.WriteString("\n")
		b.WriteString(p)
		b.WriteString("\n")
	}
	switch in.Pricing {
	case pricingAsk:
		b.WriteString("\n")
		b.WriteString(pricingAskPrompt)
		b.WriteString("\n")
	case pricingFollowup:
		b.WriteString("\n")
		b.WriteString(pricingFollowupPrompt)
		b.WriteString("\n")
	}
	return b.String()
}

func userPrompt(in promptInput) string {
	var b strings.Builder
	if ctx := contextBlock(in.Intent, in.Hits); ctx != "" {
		b.WriteString("Інформація про компанію:\n")
		b.WriteString(ctx)
		b.WriteString("\n\n")
	}
	if len(in.History) > 0 {
		b.WriteString("Історія розмови:\n")
		for _, m := range in.History {
			fmt.Fprintf(&b, "%s: %s\n", roleLabel(m.Role), m.Content)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Запит користувача: %s", in.Query)
	return b.String()
}

func roleLabel(role string) string {
	switch role {
	case model.RoleAssistant:
		return "Консультант"
	case model.RoleSystem:
		return "Система"
	default:
		return "Клієнт"
	}
}

func contextBlock(intent string, hits []model.SearchHit) string {
	if len(hits) == 0 {
		return ""
	}
	if intent == model.IntentServices {
		return serviceContext(hits)
	}
	parts := make([]string, 0, maxSourceBlocks)
	for i := range hits {
		if i == maxSourceBlocks {
			break
		}
		h := &hits[i]
		parts = append(parts, fmt.Sprintf("Джерело: %s (схожість: %.3f)\nТип: %s\nКонтент: %s",
			h.Title, h.Similarity, h.Category, truncateRunes(h.ContentText, maxSourceChars)))
	}
	return strings.Join(parts, "\n---\n")
}

// serviceBlock 一个服务在上下文中的汇总。
type serviceBlock struct {
	title    string
	text     string
	packages []string
}

// serviceContext 按服务名去重，价格包归入所属服务。
func serviceContext(hits []model.SearchHit) string {
	var order, others []string
	blocks := map[string]*serviceBlock{}
	get := func(title string) *serviceBlock {
		key := strings.ToLower(strings.TrimSpace(title))
		if sb, ok := blocks[key]; ok {
			return sb
		}
		if len(order) == maxServiceBlocks {
			return nil
		}
		sb := &serviceBlock{title: title}
		blocks[key] = sb
		order = append(order, key)
		return sb
	}

	for i := range hits {
		h := &hits[i]
		switch {
		case h.Category == model.CategoryService:
			title := h.ServiceTitle
			if title == "" {
				title = h.Title
			}
			if sb := get(title); sb != nil && sb.text == "" {
				sb.text = truncateRunes(h.ContentText, maxServiceChars)
			}
		case h.Category == model.CategoryPricing && h.ServiceTitle != "":
			sb := get(h.ServiceTitle)
			if sb == nil || h.PackageName == "" || len(sb.packages) == maxPackagesPerSvc {
				continue
			}
			if !containsFold(sb.packages, h.PackageName) {
				sb.packages = append(sb.packages, h.PackageName)
			}
		case len(others) < maxOtherBlocks:
			others = append(others, fmt.Sprintf("Джерело: %s\nТип: %s\nКонтент: %s",
				h.Title, h.Category, truncateRunes(h.ContentText, maxServiceChars)))
		}
	}

	parts := make([]string, 0, len(order)+len(others))
	for _, key := range order {
		sb := blocks[key]
		var b strings.Builder
		fmt.Fprintf(&b, "Сервіс: %s", sb.title)
		if len(sb.packages) > 0 {
			fmt.Fprintf(&b, "\nПакети: %s", strings.Join(sb.packages, ", "))
		}
		if sb.text != "" {
			fmt.Fprintf(&b, "\nОпис: %s", sb.text)
		}
		parts = append(parts, b.String())
	}
	parts = append(parts, others...)
	return strings.Join(parts, "\n---\n")
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
