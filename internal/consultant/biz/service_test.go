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

func newTestService(env *testEnv, ttl time.Duration) *Service {
	return NewService(env.store, Components{
		Indexer:   env.indexer,
		Retriever: env.retriever,
		Dialogue:  env.engine,
		Learner:   NewLearner(env.store, env.indexer, env.metrics, LearnerConfig{}),
		Quotes:    NewQuoteService(env.store, nil, nil, env.metrics),
	}, env.metrics, ServiceConfig{
		Languages:  []string{"uk", "en", "pl"},
		Personas:   map[string]string{"uk": "Юлія", "en": "Julie", "pl": "Julia"},
		Company:    "LazySoft",
		SessionTTL: ttl,
	})
}

func TestService_StartSession(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedAndIndex(t)
	svc := newTestService(env, 0)

	started, err := svc.StartSession(ctx, StartSessionRequest{Language: "en", ClientIP: "127.0.0.1", UserAgent: "test"})
	require.NoError(t, err)
	assert.Equal(t, "en", started.Language)
	assert.Contains(t, started.Welcome, "Julie")
	assert.Contains(t, started.Welcome, "LazySoft")
	assert.Len(t, started.Suggestions, 3)

	sess, err := env.store.Sessions().Get(ctx, started.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", sess.ClientIP)
	assert.Equal(t, "test", sess.Metadata.UserAgent)
	assert.Zero(t, sess.TotalMessages)

	// 欢迎语不写入历史，第一轮仍带自我介绍。
	resp, err := svc.Turn(ctx, TurnRequest{SessionID: started.SessionID, Query: "Do you sell tractors?", Language: "en"})
	require.NoError(t, err)
	assert.Contains(t, resp.Response, "Julie")

	msgs, err := svc.Messages(ctx, started.SessionID)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	defaulted, err := svc.StartSession(ctx, StartSessionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "uk", defaulted.Language)

	_, err = svc.StartSession(ctx, StartSessionRequest{Language: "de"})
	assert.ErrorIs(t, err, errors.ErrUnsupportedLanguage)
}

func TestService_Rate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	svc := newTestService(env, 0)

	started, err := svc.StartSession(ctx, StartSessionRequest{Language: "uk"})
	require.NoError(t, err)

	require.NoError(t, svc.Rate(ctx, started.SessionID, 5, "Дякую!"))
	sess, err := env.store.Sessions().Get(ctx, started.SessionID)
	require.NoError(t, err)
	require.NotNil(t, sess.Satisfaction)
	assert.Equal(t, 5, *sess.Satisfaction)
	assert.Equal(t, "Дякую!", sess.Feedback)

	assert.ErrorIs(t, svc.Rate(ctx, started.SessionID, 0, ""), errors.ErrValidation)
	assert.ErrorIs(t, svc.Rate(ctx, started.SessionID, 6, ""), errors.ErrValidation)
	assert.ErrorIs(t, svc.Rate(ctx, "missing", 4, ""), errors.ErrSessionNotFound)
	assert.ErrorIs(t, svc.Rate(ctx, "bad id", 4, ""), errors.ErrInvalidSessionID)
}

func TestService_StatsAndExpiry(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedAndIndex(t)
	svc := newTestService(env, time.Millisecond)

	_, err := svc.Turn(ctx, TurnRequest{SessionID: "st1", Query: "Які послуги ви надаєте?", Language: "uk"})
	require.NoError(t, err)
	_, err = svc.RequestQuote(ctx, QuoteInput{SessionID: "st1", ClientName: "Ірина", ClientEmail: "iryna@example.com", Message: "Прорахунок"})
	require.NoError(t, err)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Sessions)
	assert.EqualValues(t, 2, stats.Messages)
	assert.EqualValues(t, 1, stats.Leads)
	assert.EqualValues(t, 1, stats.QuoteRequests)
	assert.EqualValues(t, 14, stats.Chunks)
	assert.EqualValues(t, 8, stats.ChunksByKind[model.CategoryService])
	assert.Equal(t, "sql", stats.VectorBackend)

	time.Sleep(5 * time.Millisecond)
	n, err := svc.ExpireSessions(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = svc.ExpireSessions(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
