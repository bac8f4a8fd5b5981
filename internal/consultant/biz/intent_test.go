package biz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lazysoft/consultant/internal/model"
)

func TestClassifyIntent(t *testing.T) {
	serviceHit := []model.SearchHit{{Category: model.CategoryService}}

	tests := []struct {
		name  string
		query string
		hits  []model.SearchHit
		want  string
	}{
		{"short greeting", "Привіт!", nil, model.IntentGreeting},
		{"english greeting", "Hi", nil, model.IntentGreeting},
		{"polish greeting", "Dzień dobry", nil, model.IntentGreeting},
		{"long greeting is not a greeting", "Hello, how much does a website cost?", nil, model.IntentPricing},
		{"pricing", "Скільки коштує чат-бот?", nil, model.IntentPricing},
		{"consultation", "Хочу записатися на консультацію", nil, model.IntentConsultation},
		{"portfolio", "Покажіть ваше портфоліо", nil, model.IntentPortfolio},
		{"services", "Які послуги ви надаєте?", nil, model.IntentServices},
		{"top hit is a service", "Розкажіть детальніше", serviceHit, model.IntentServices},
		{"general", "Розкажіть детальніше", nil, model.IntentGeneral},
		{"short keyword needs a whole word", "history lessons", nil, model.IntentGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyIntent(tt.query, tt.hits))
		})
	}
}

func TestStickyIntent(t *testing.T) {
	awaiting := model.SessionMetadata{ClarificationAsked: true, AwaitingPricingDetails: true}
	assert.Equal(t, model.IntentPricing, stickyIntent(awaiting, model.IntentGeneral))

	done := model.SessionMetadata{ClarificationAsked: true, PricingCompleted: true}
	assert.Equal(t, model.IntentGeneral, stickyIntent(done, model.IntentGeneral))

	assert.Equal(t, model.IntentPortfolio, stickyIntent(model.SessionMetadata{}, model.IntentPortfolio))
}

func TestMentionsServices(t *testing.T) {
	assert.True(t, MentionsServices("Які послуги ви надаєте?"))
	assert.True(t, MentionsServices("What services do you offer?"))
	assert.False(t, MentionsServices("Скільки коштує чат-бот?"))
}
