package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type turnRequest struct {
	SessionID string `json:"session_id" validate:"required,session_id"`
	Query     string `json:"query" validate:"required,notblank,max=2000"`
	Language  string `json:"language" validate:"omitempty,language"`
}

func TestValidateTurnRequest(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		req     turnRequest
		field   string
		wantErr bool
	}{
		{"valid", turnRequest{SessionID: "s1", Query: "Привіт!", Language: "uk"}, "", false},
		{"blank query", turnRequest{SessionID: "s1", Query: "   "}, "query", true},
		{"bad session", turnRequest{SessionID: "s 1/..", Query: "hi"}, "session_id", true},
		{"unknown language", turnRequest{SessionID: "s1", Query: "hi", Language: "de"}, "language", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := v.ValidateWithLang(tt.req, LangEN)
			if !tt.wantErr {
				assert.Nil(t, errs)
				return
			}
			require.NotNil(t, errs)
			assert.Equal(t, tt.field, errs.Errors[0].Field)
		})
	}
}

func TestUkrainianMessages(t *testing.T) {
	v := New()
	errs := v.ValidateWithLang(turnRequest{Query: "hi"}, LangUK)
	require.NotNil(t, errs)
	assert.Equal(t, "session_id є обов'язковим полем", errs.First())
}

func TestSetLanguages(t *testing.T) {
	v := New()
	v.SetLanguages([]string{"uk", "EN "})
	assert.True(t, v.SupportsLanguage("en"))
	assert.False(t, v.SupportsLanguage("pl"))
}
