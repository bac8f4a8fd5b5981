package biz

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazysoft/consultant/internal/model"
	"github.com/lazysoft/consultant/pkg/utils/errors"
)

// addSession 写入一个包含若干问答的会话，texts 依次为用户和助手消息。
func (env *testEnv) addSession(t *testing.T, id string, lead bool, rating *int, texts ...string) {
	t.Helper()
	now := time.Now()
	sess := &model.Session{
		SessionID:      id,
		Language:       "uk",
		DetectedIntent: model.IntentGeneral,
		LeadGenerated:  lead,
		Satisfaction:   rating,
		StartedAt:      now,
		LastActivity:   now,
	}
	msgs := make([]*model.Message, 0, len(texts))
	for i, text := range texts {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		msgs = append(msgs, &model.Message{Role: role, Content: text, CreatedAt: now.Add(time.Duration(i) * time.Millisecond)})
	}
	require.NoError(t, env.store.Sessions().AppendTurn(context.Background(), sess, msgs...))
}

func (env *testEnv) seedDialogs(t *testing.T) {
	t.Helper()
	answer := "Розробка чат-бота коштує від 500 доларів залежно від функцій."
	env.addSession(t, "a", true, nil, "Скільки коштує розробка чат-бота для магазину?", answer)
	env.addSession(t, "b", false, nil, "Скільки коштує розробка чат-бота для салону?", "Для салону зазвичай достатньо базового пакета чат-бота.")
	env.addSession(t, "c", true, ptr(5), "Скільки коштує розробка чат-бота для кафе?", answer)
	env.addSession(t, "d", false, nil, "Скільки коштує розробка чат-бота для аптеки?", "Вибачте, зараз я не можу обробити ваш запит.")
	env.addSession(t, "e", true, ptr(2), "Скільки коштує розробка чат-бота для школи?", answer)
	env.addSession(t, "f", false, nil, "Привіт", "Вітаю! Чим можу допомогти вашому бізнесу?")
}

func TestLearner_Analyze(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedDialogs(t)
	learner := NewLearner(env.store, env.indexer, env.metrics, LearnerConfig{})

	res, err := learner.Analyze(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 6, res.Sessions)
	assert.Equal(t, 3, res.Pairs)
	assert.Equal(t, 1, res.Created)
	assert.Zero(t, res.AutoApproved)

	patterns, err := learner.Patterns(ctx, model.PatternPendingReview)
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	p := patterns[0]
	assert.Equal(t, "Скільки коштує розробка чат-бота для магазину?", p.QueryPattern)
	assert.Len(t, p.QueryVariations, 2)
	assert.Equal(t, 3, p.Frequency)
	assert.Equal(t, 2, p.LeadSessions)
	assert.InDelta(t, 2.0/3.0, p.SuccessRate, 1e-9)
	assert.Equal(t, model.ResponseSuccessfulConversion, p.ResponseSource)
	assert.Equal(t, model.IntentPricing, p.DetectedIntent)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, []string(p.SessionIDs))
	assert.NotEmpty(t, p.Keywords)

	// 同一窗口再次分析不重复计数。
	res, err = learner.Analyze(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, res.Created)
	assert.Zero(t, res.Updated)

	again, err := learner.Patterns(ctx)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, 3, again[0].Frequency)
}

func TestLearner_AutoApprovePromotes(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedDialogs(t)
	learner := NewLearner(env.store, env.indexer, env.metrics, LearnerConfig{
		AutoApprove:  true,
		MinFrequency: 3,
		MinSuccess:   0.6,
	})

	res, err := learner.Analyze(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, res.AutoApproved)

	indexed, err := learner.Patterns(ctx, model.PatternIndexed)
	require.NoError(t, err)
	require.Len(t, indexed, 1)
	p := indexed[0]
	require.NotNil(t, p.KnowledgeEntryID)
	assert.Equal(t, "auto", p.ReviewedBy)

	entry, err := env.store.Knowledge().Get(ctx, *p.KnowledgeEntryID)
	require.NoError(t, err)
	assert.Equal(t, model.SourceDialogs, entry.SourceType)
	assert.Contains(t, entry.Content.Get("uk"), "Питання: Скільки коштує розробка чат-бота для магазину?")

	chunk, err := env.store.Vectors().Get(ctx, model.ChunkKey{Kind: model.KindKnowledge, ID: idString(entry.ID), Language: "uk"})
	require.NoError(t, err)
	assert.True(t, chunk.Active)
}

func TestLearner_ReviewAndCleanup(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedDialogs(t)
	learner := NewLearner(env.store, env.indexer, env.metrics, LearnerConfig{Retention: time.Millisecond})

	_, err := learner.Analyze(ctx, time.Hour)
	require.NoError(t, err)
	patterns, err := learner.Patterns(ctx)
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	id := patterns[0].ID

	rejected, err := learner.Reject(ctx, id, "admin")
	require.NoError(t, err)
	assert.Equal(t, model.PatternRejected, rejected.Status)

	_, err = learner.Reject(ctx, id, "admin")
	assert.ErrorIs(t, err, errors.ErrPatternTransition)

	approved, err := learner.Approve(ctx, id, "admin")
	require.NoError(t, err)
	assert.Equal(t, model.PatternIndexed, approved.Status)
	assert.Equal(t, model.ResponseManualApproval, approved.ResponseSource)

	_, err = learner.Approve(ctx, 999, "admin")
	assert.ErrorIs(t, err, errors.ErrPatternNotFound)

	other := &model.LearningPattern{QueryPattern: "q", BestResponse: "a", Frequency: 1, Status: model.PatternRejected}
	require.NoError(t, env.store.Patterns().Create(ctx, other))
	time.Sleep(5 * time.Millisecond)

	n, err := learner.Cleanup(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{model.PatternDetected, model.PatternPendingReview, true},
		{model.PatternPendingReview, model.PatternApproved, true},
		{model.PatternPendingReview, model.PatternIndexed, false},
		{model.PatternApproved, model.PatternIndexed, true},
		{model.PatternRejected, model.PatternApproved, true},
		{model.PatternIndexed, model.PatternRejected, false},
		{model.PatternRejected, model.PatternRejected, false},
	}
	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestExtractKeywords(t *testing.T) {
	got := extractKeywords("Скільки коштує розробка чат-бота для магазину, будь ласка?")
	assert.Equal(t, []string{"розробка", "магазину", "скільки", "коштує", "бота"}, got)
}
