package biz

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazysoft/consultant/internal/model"
	"github.com/lazysoft/consultant/pkg/utils/errors"
)

type captureSink struct {
	mu      sync.Mutex
	records []*LeadRecord
}

func (s *captureSink) Name() string { return "capture" }

func (s *captureSink) Emit(_ context.Context, rec *LeadRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func TestDetectServiceCategory(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Потрібен чат-бот для Telegram з CRM", "ai-automation"},
		{"We need a mobile app for iOS and Android", "mobile-app"},
		{"Хочу сайт для інтернет-магазину", "web-development"},
		{"Потрібен новий логотип і брендинг", "design"},
		{"Просто цікавлюсь", ""},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectServiceCategory(tt.text))
		})
	}
}

func TestCanAdvanceQuote(t *testing.T) {
	assert.True(t, CanAdvanceQuote(model.QuoteNew, model.QuoteAnalyzed))
	assert.True(t, CanAdvanceQuote(model.QuoteQuoted, model.QuoteClosed))
	assert.True(t, CanAdvanceQuote(model.QuoteNew, model.QuoteConverted))
	assert.False(t, CanAdvanceQuote(model.QuoteAnalyzed, model.QuoteNew))
	assert.False(t, CanAdvanceQuote(model.QuoteClosed, model.QuoteClosed))
	assert.False(t, CanAdvanceQuote(model.QuoteNew, "archived"))
}

func TestQuoteService_Request(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedAndIndex(t)

	_, err := env.engine.Turn(ctx, TurnRequest{SessionID: "q1", Query: "Скільки коштує чат-бот?", Language: "uk", ClientIP: "10.0.0.7"})
	require.NoError(t, err)
	_, err = env.engine.Turn(ctx, TurnRequest{SessionID: "q1", Query: "Для інтернет-магазину, інтеграція з CRM, 2 мови.", Language: "uk"})
	require.NoError(t, err)

	sink := &captureSink{}
	quotes := NewQuoteService(env.store, []LeadSink{sink, LogSink{}}, nil, env.metrics)

	req, err := quotes.Request(ctx, QuoteInput{
		SessionID:   "q1",
		ClientName:  " Олена ",
		ClientEmail: "olena@example.com",
		Phone:       "+380501112233",
		Message:     "Потрібен прорахунок",
	})
	require.NoError(t, err)
	assert.Len(t, req.RequestID, 26)
	assert.Equal(t, model.QuoteNew, req.Status)
	assert.Equal(t, "Олена", req.ClientName)
	assert.Equal(t, "ai-automation", req.DetectedServiceCategory)
	assert.Equal(t, "Скільки коштує чат-бот?", req.OriginalQuery)
	require.Len(t, req.Prices, 1)
	assert.Equal(t, "1500 - 3000 USD", req.Prices[0].Price)
	assert.Contains(t, req.ChatExcerpt, "Клієнт: Скільки коштує чат-бот?")

	require.Len(t, sink.records, 1)
	rec := sink.records[0]
	assert.Equal(t, req.RequestID, rec.RequestID)
	assert.Equal(t, "10.0.0.7", rec.ClientInfo.IP)
	assert.Equal(t, "+380501112233", rec.ClientInfo.Phone)

	sess, err := env.store.Sessions().Get(ctx, "q1")
	require.NoError(t, err)
	assert.True(t, sess.QuoteRequested)
	assert.True(t, sess.LeadGenerated)
	assert.Equal(t, "olena@example.com", sess.ClientEmail)
	assert.Equal(t, "crm", sess.DetectedServiceCategory)

	stored, err := quotes.Get(ctx, req.RequestID)
	require.NoError(t, err)
	assert.Equal(t, req.Prices, stored.Prices)

	require.NoError(t, quotes.UpdateStatus(ctx, req.RequestID, model.QuoteAnalyzed))
	assert.ErrorIs(t, quotes.UpdateStatus(ctx, req.RequestID, model.QuoteNew), errors.ErrQuoteInvalid)
}

func TestQuoteService_Validation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	quotes := NewQuoteService(env.store, nil, nil, nil)

	tests := []struct {
		name string
		in   QuoteInput
		want *errors.Errno
	}{
		{"missing name", QuoteInput{SessionID: "x", ClientEmail: "a@b.co", Message: "hi"}, errors.ErrQuoteInvalid},
		{"bad email", QuoteInput{SessionID: "x", ClientName: "A", ClientEmail: "not-an-email", Message: "hi"}, errors.ErrQuoteInvalid},
		{"unknown session", QuoteInput{SessionID: "missing", ClientName: "A", ClientEmail: "a@b.co", Message: "hi"}, errors.ErrSessionNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := quotes.Request(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := quotes.Get(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}
