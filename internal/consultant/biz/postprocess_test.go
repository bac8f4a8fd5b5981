package biz

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazysoft/consultant/internal/model"
)

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		name     string
		from, to *float64
		want     string
	}{
		{"range", ptr(500.0), ptr(1000.0), "500 - 1000 USD"},
		{"equal bounds", ptr(800.0), ptr(800.0), "800 USD"},
		{"from only", ptr(1200.5), nil, "1200.5 USD"},
		{"to only", nil, ptr(300.0), "300 USD"},
		{"unknown", nil, nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatPrice(tt.from, tt.to, "USD"))
		})
	}
}

func TestMentionsCurrency(t *testing.T) {
	assert.True(t, mentionsCurrency("Базовий пакет від 500 $"))
	assert.True(t, mentionsCurrency("Cena: 2000 zł"))
	assert.True(t, mentionsCurrency("Budget around 100usd"))
	assert.True(t, mentionsCurrency("Вартість 3000 грн"))
	assert.False(t, mentionsCurrency("Розкажіть про ваш бізнес"))
}

func TestClarificationFlowText(t *testing.T) {
	t.Run("currency lines removed and questions appended", func(t *testing.T) {
		text := ensureClarificationList(stripCurrencyLines("Пакет коштує 500 USD.\nДавайте уточнимо деталі."), "uk")
		assert.NotContains(t, text, "USD")
		assert.True(t, strings.HasPrefix(text, "Давайте уточнимо деталі."))
		assert.Contains(t, text, clarificationLeads.get("uk"))
		for _, q := range clarificationQuestions["uk"] {
			assert.Contains(t, text, q)
		}
		assert.Contains(t, text, "5. ")
	})

	t.Run("model list kept", func(t *testing.T) {
		text := "Уточніть:\n1. Яка галузь?\n2. Які терміни?"
		assert.Equal(t, text, ensureClarificationList(text, "uk"))
	})

	t.Run("numbered questions stripped", func(t *testing.T) {
		got := stripNumberedQuestions("Рекомендую Стандарт.\n1. Чи потрібна CRM?\n2) Скільки мов?\n3. Налаштування домену")
		assert.Equal(t, "Рекомендую Стандарт.\n3. Налаштування домену", got)
		assert.True(t, hasNumberedList("Вступ\n 1) Перше"))
		assert.False(t, hasNumberedList("2. Друге"))
	})
}

func TestCollectPrices(t *testing.T) {
	hit := func(pkg, service string, from float64) model.SearchHit {
		return model.SearchHit{
			Category:     model.CategoryPricing,
			PackageName:  pkg,
			ServiceTitle: service,
			PriceFrom:    ptr(from),
			Currency:     "USD",
		}
	}
	hits := []model.SearchHit{
		{Category: model.CategoryService, Title: "Чат-бот"},
		hit("Базовий", "Чат-бот", 500),
		hit("базовий", "Чат-бот", 600),
		{Category: model.CategoryPricing, PackageName: "Преміум", ServiceTitle: "Чат-бот"},
		hit("Стандарт", "Чат-бот", 1200),
		hit("Базовий", "CRM", 900),
		hit("Стандарт", "CRM", 1500),
		hit("Преміум", "CRM", 3000),
		hit("Преміум", "SEO", 2000),
	}

	prices := collectPrices(hits)
	require.Len(t, prices, maxPriceLines)
	assert.Equal(t, "Базовий", prices[0].Package)
	assert.Equal(t, "500 USD", prices[0].Price)
	assert.Equal(t, "Стандарт", prices[1].Package)
	assert.Equal(t, "CRM", prices[4].Service)
}

func TestInjectPrices(t *testing.T) {
	prices := []model.PriceLine{
		{Package: "Стандарт", Service: "CRM-інтеграція", Price: "1500 - 3000 USD"},
		{Package: "Базовий", Price: "500 USD"},
	}
	got := injectPrices("Рекомендую Стандарт.", "uk", prices)
	assert.Equal(t, "Рекомендую Стандарт.\n\nЦіни (орієнтовно):\n- Стандарт: 1500 - 3000 USD (CRM-інтеграція)\n- Базовий: 500 USD", got)

	assert.Equal(t, got, injectPrices(got, "uk", prices), "header already present")
	assert.Equal(t, "Текст", injectPrices("Текст", "uk", nil))
}

func TestPersonaIntroAndGDPR(t *testing.T) {
	text := ensurePersonaIntro("Чим можу допомогти?", "uk", "Юлія", "LazySoft")
	assert.Equal(t, "Вітаю! Я Юлія, IT-консультантка компанії LazySoft. Чим можу допомогти?", text)

	same := "Я Юлія, рада допомогти."
	assert.Equal(t, same, ensurePersonaIntro(same, "uk", "Юлія", "LazySoft"))

	assert.True(t, strings.HasSuffix(appendGDPR("Текст", "en"), gdprNotices.get("en")))
}

func TestBuildActions(t *testing.T) {
	actions := buildActions("en", "https://cal.example/60", "https://cal.example/30", false)
	require.Len(t, actions, 2)
	assert.Equal(t, "link", actions[0].Type)
	assert.True(t, actions[0].Persistent)
	assert.Equal(t, ActionOpenCalendly, actions[1].Action)

	actions = buildActions("uk", "https://cal.example/60", "", true)
	require.Len(t, actions, 2)
	assert.Equal(t, ActionRequestQuote, actions[1].Action)
	assert.Equal(t, "primary", actions[1].Style)

	assert.Empty(t, buildActions("uk", "", "", false))
}

func TestMentionsPrices(t *testing.T) {
	assert.True(t, mentionsPrices("The price starts at 500"))
	assert.True(t, mentionsPrices("Орієнтовна вартість проєкту"))
	assert.False(t, mentionsPrices("Ми робимо сайти"))
}
