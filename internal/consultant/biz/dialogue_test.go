package biz

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazysoft/consultant/internal/model"
	"github.com/lazysoft/consultant/pkg/utils/errors"
)

func hasAction(actions []Action, action string) bool {
	for _, a := range actions {
		if a.Action == action {
			return true
		}
	}
	return false
}

func TestDialogue_GreetingFirstTurn(t *testing.T) {
	env := newTestEnv(t)
	env.seedAndIndex(t)

	resp, err := env.engine.Turn(context.Background(), TurnRequest{SessionID: "s1", Query: "Привіт!", Language: "uk"})
	require.NoError(t, err)

	assert.Equal(t, model.IntentGreeting, resp.Intent)
	assert.True(t, strings.HasPrefix(resp.Response, personaIntro("uk", "Юлія", "LazySoft")))
	assert.Contains(t, resp.Response, gdprNotices.get("uk"))
	assert.False(t, resp.PricesReady)
	assert.Len(t, resp.Suggestions, 3)
	require.NotEmpty(t, resp.Actions)
	assert.Equal(t, "link", resp.Actions[0].Type)
	assert.True(t, resp.Actions[0].Persistent)
	assert.False(t, hasAction(resp.Actions, ActionRequestQuote))

	second, err := env.engine.Turn(context.Background(), TurnRequest{SessionID: "s1", Query: "Привіт ще раз", Language: "uk"})
	require.NoError(t, err)
	assert.NotContains(t, second.Response, "Юлія")
	assert.NotContains(t, second.Response, gdprNotices.get("uk"))
}

func TestDialogue_PricingFlow(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedAndIndex(t)

	// 首次询价：只提澄清问题，不给价格。
	first, err := env.engine.Turn(ctx, TurnRequest{SessionID: "s2", Query: "Скільки коштує чат-бот?", Language: "uk"})
	require.NoError(t, err)
	assert.Equal(t, model.IntentPricing, first.Intent)
	for _, n := range []string{"1. ", "2. ", "3. ", "4. ", "5. "} {
		assert.Contains(t, first.Response, n)
	}
	assert.NotContains(t, first.Response, "$")
	assert.NotContains(t, first.Response, "USD")
	assert.False(t, first.PricesReady)
	assert.False(t, hasAction(first.Actions, ActionRequestQuote))

	sess, err := env.store.Sessions().Get(ctx, "s2")
	require.NoError(t, err)
	assert.True(t, sess.Metadata.ClarificationAsked)
	assert.True(t, sess.Metadata.AwaitingPricingDetails)
	assert.False(t, sess.Metadata.PricingCompleted)

	// 跟进：关键词不含定价词，但意图保持为 pricing。
	second, err := env.engine.Turn(ctx, TurnRequest{SessionID: "s2", Query: "Для інтернет-магазину, інтеграція з CRM, 2 мови.", Language: "uk"})
	require.NoError(t, err)
	assert.Equal(t, model.IntentPricing, second.Intent)
	assert.Contains(t, second.Response, "Ціни (орієнтовно):")
	assert.Contains(t, second.Response, "- Стандарт: 1500 - 3000 USD (CRM-інтеграція)")
	assert.False(t, hasNumberedList(second.Response))
	assert.True(t, second.PricesReady)
	require.NotEmpty(t, second.Prices)
	assert.Equal(t, "Стандарт", second.Prices[0].Package)
	assert.True(t, hasAction(second.Actions, ActionRequestQuote))

	sess, err = env.store.Sessions().Get(ctx, "s2")
	require.NoError(t, err)
	assert.True(t, sess.Metadata.ClarificationAsked)
	assert.False(t, sess.Metadata.AwaitingPricingDetails)
	assert.True(t, sess.Metadata.PricingCompleted)
	assert.Equal(t, 4, sess.TotalMessages)
	assert.Equal(t, "crm", sess.DetectedServiceCategory)
	assert.InDelta(t, 2*0.15*0.002, sess.TotalCost, 1e-9)

	// 已完成状态：再次询价直接给出价格，不再提问。
	third, err := env.engine.Turn(ctx, TurnRequest{SessionID: "s2", Query: "А скільки коштує чат-бот у пакеті Стандарт?", Language: "uk"})
	require.NoError(t, err)
	assert.Equal(t, model.IntentPricing, third.Intent)
	assert.True(t, third.PricesReady)
	assert.False(t, hasNumberedList(third.Response))

	msgs, err := env.store.Sessions().Messages(ctx, "s2")
	require.NoError(t, err)
	require.Len(t, msgs, 6)
	clarifications := 0
	for _, m := range msgs {
		if m.Role == model.RoleAssistant && hasNumberedList(m.Content) {
			clarifications++
		}
	}
	assert.Equal(t, 1, clarifications)
}

func TestDialogue_ServicesOverview(t *testing.T) {
	env := newTestEnv(t)
	titles := env.seedAndIndex(t)

	resp, err := env.engine.Turn(context.Background(), TurnRequest{SessionID: "s3", Query: "Які послуги ви надаєте?", Language: "uk"})
	require.NoError(t, err)
	assert.Equal(t, model.IntentServices, resp.Intent)

	mentioned := 0
	for _, title := range titles {
		if strings.Contains(resp.Response, title) {
			mentioned++
		}
	}
	assert.GreaterOrEqual(t, mentioned, 3)

	perKey := map[string]int{}
	for i := range resp.Sources {
		perKey[DefaultServiceKey(&resp.Sources[i])]++
	}
	for key, n := range perKey {
		assert.LessOrEqual(t, n, 2, "service key %q", key)
	}
}

func TestDialogue_EmptyRetrievalFallback(t *testing.T) {
	env := newTestEnv(t)
	env.seedAndIndex(t)

	resp, err := env.engine.Turn(context.Background(), TurnRequest{SessionID: "s4", Query: "Do you sell tractors?", Language: "en"})
	require.NoError(t, err)
	assert.Empty(t, resp.Sources)
	assert.NotNil(t, resp.Sources)
	assert.False(t, resp.PricesReady)
	assert.Contains(t, resp.Response, "consultation")
	assert.Equal(t, suggestionsFor("en", "fallback"), resp.Suggestions)
	assert.Empty(t, env.chat.models(), "fallback reply must not call the chat provider")
}

func TestDialogue_ModelFallback(t *testing.T) {
	ctx := context.Background()

	t.Run("fallback model answers", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedAndIndex(t)
		env.chat.failModels["primary"] = true

		resp, err := env.engine.Turn(ctx, TurnRequest{SessionID: "f1", Query: "Які послуги ви надаєте?", Language: "uk"})
		require.NoError(t, err)
		assert.Equal(t, []string{"primary", "mini"}, env.chat.models())

		msgs, err := env.store.Sessions().Messages(ctx, resp.SessionID)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "mini", msgs[1].AIModelUsed)
	})

	t.Run("both models fail", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedAndIndex(t)
		env.chat.failModels["primary"] = true
		env.chat.failModels["mini"] = true

		_, err := env.engine.Turn(ctx, TurnRequest{SessionID: "f2", Query: "Які послуги ви надаєте?", Language: "uk"})
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrProviderUnavailable)

		_, err = env.store.Sessions().Get(ctx, "f2")
		assert.ErrorIs(t, err, errors.ErrSessionNotFound)
	})
}

func TestDialogue_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		req  TurnRequest
		want *errors.Errno
	}{
		{"empty query", TurnRequest{SessionID: "v1", Query: "   ", Language: "uk"}, errors.ErrEmptyQuery},
		{"unsupported language", TurnRequest{SessionID: "v1", Query: "Hallo", Language: "de"}, errors.ErrUnsupportedLanguage},
		{"malformed session id", TurnRequest{SessionID: "bad id!", Query: "Привіт", Language: "uk"}, errors.ErrInvalidSessionID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.engine.Turn(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDialogue_ConcurrentTurnRejected(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	unlock, ok, err := env.locker.TryLock(ctx, "busy", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = env.engine.Turn(ctx, TurnRequest{SessionID: "busy", Query: "Привіт!", Language: "uk"})
	assert.ErrorIs(t, err, errors.ErrConcurrencyConflict)
	turns := env.metrics.Stats()["turns"].(map[string]interface{})
	assert.EqualValues(t, 1, turns["concurrency_conflicts"])

	unlock()
	_, err = env.engine.Turn(ctx, TurnRequest{SessionID: "busy", Query: "Привіт!", Language: "uk"})
	assert.NoError(t, err)
}

func TestDialogue_ClosedSessionReopened(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedAndIndex(t)

	_, err := env.engine.Turn(ctx, TurnRequest{SessionID: "r1", Query: "Скільки коштує чат-бот?", Language: "uk"})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	n, err := env.store.Sessions().CloseIdle(ctx, time.Now())
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	time.Sleep(5 * time.Millisecond)

	resp, err := env.engine.Turn(ctx, TurnRequest{SessionID: "r1", Query: "Скільки коштує чат-бот?", Language: "uk"})
	require.NoError(t, err)
	assert.True(t, hasNumberedList(resp.Response), "reopened session asks clarifications again")
	assert.Contains(t, resp.Response, personaIntro("uk", "Юлія", "LazySoft"))

	sess, err := env.store.Sessions().Get(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, sess.Closed())
}

func TestDialogue_TurnKeepsConcurrentOutcome(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedAndIndex(t)
	quotes := NewQuoteService(env.store, nil, nil, nil)

	_, err := env.engine.Turn(ctx, TurnRequest{SessionID: "race1", Query: "Скільки коштує чат-бот?", Language: "uk"})
	require.NoError(t, err)

	env.chat.during = func() {
		assert.NoError(t, env.store.Sessions().Rate(ctx, "race1", 5, "дякую"))
		_, err := quotes.Request(ctx, QuoteInput{
			SessionID:   "race1",
			ClientName:  "Олена",
			ClientEmail: "olena@example.com",
			Message:     "Потрібен прорахунок",
		})
		assert.NoError(t, err)
	}
	_, err = env.engine.Turn(ctx, TurnRequest{SessionID: "race1", Query: "Для інтернет-магазину, інтеграція з CRM, 2 мови.", Language: "uk"})
	require.NoError(t, err)

	sess, err := env.store.Sessions().Get(ctx, "race1")
	require.NoError(t, err)
	require.NotNil(t, sess.Satisfaction)
	assert.Equal(t, 5, *sess.Satisfaction)
	assert.Equal(t, "дякую", sess.Feedback)
	assert.True(t, sess.LeadGenerated)
	assert.True(t, sess.QuoteRequested)
	assert.Equal(t, "olena@example.com", sess.ClientEmail)
	assert.Equal(t, 4, sess.TotalMessages)
	assert.True(t, sess.Metadata.ClarificationAsked)
	assert.True(t, sess.Metadata.PricingCompleted)
}

func TestNewDialogueEngine_LockOutlivesTurn(t *testing.T) {
	tests := []struct {
		name string
		in   DialogueConfig
		want time.Duration
	}{
		{"defaults", DialogueConfig{}, 90 * time.Second},
		{"short turn", DialogueConfig{TurnTimeout: 60 * time.Second}, 90 * time.Second},
		{"long turn", DialogueConfig{TurnTimeout: 3 * time.Minute}, 3*time.Minute + lockTTLMargin},
		{"explicit ttl too short", DialogueConfig{TurnTimeout: 2 * time.Minute, LockTTL: time.Minute}, 2*time.Minute + lockTTLMargin},
		{"explicit ttl kept", DialogueConfig{TurnTimeout: time.Minute, LockTTL: 5 * time.Minute}, 5 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewDialogueEngine(nil, nil, nil, nil, nil, tt.in)
			assert.Equal(t, tt.want, e.config.LockTTL)
			assert.Greater(t, e.config.LockTTL, e.config.TurnTimeout)
		})
	}
}
