package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChat struct{}

func (stubChat) Name() string { return "stub" }
func (stubChat) Chat(context.Context, []Message, ...ChatOption) (*ChatResponse, error) {
	return &ChatResponse{Content: "ok"}, nil
}

func TestRegistry(t *testing.T) {
	RegisterChatProvider("stub", func(map[string]any) (ChatProvider, error) { return stubChat{}, nil })

	p, err := NewChatProvider("stub", nil)
	require.NoError(t, err)
	assert.Equal(t, "stub", p.Name())
	assert.Contains(t, ListProviders(), "stub")

	_, err = NewChatProvider("missing", nil)
	assert.Error(t, err)
	_, err = NewEmbeddingProvider("missing", nil)
	assert.Error(t, err)
}

func TestApplyChatOptions(t *testing.T) {
	o := ApplyChatOptions(ChatOptions{Model: "big", Temperature: 0.2},
		WithModel("small"), WithMaxTokens(1000))
	assert.Equal(t, ChatOptions{Model: "small", Temperature: 0.2, MaxTokens: 1000}, o)
}

func TestConfigHelpers(t *testing.T) {
	m := map[string]any{
		"model":       "",
		"chat_model":  "gpt-4o",
		"timeout":     "15s",
		"max_retries": 3,
		"dimensions":  float64(768),
	}
	assert.Equal(t, "gpt-4o", ConfigString(m, "model", "chat_model"))
	assert.Equal(t, 15*time.Second, ConfigDuration(m, "timeout"))
	assert.Zero(t, ConfigDuration(m, "missing"))

	n, ok := ConfigInt(m, "max_retries")
	assert.True(t, ok)
	assert.Equal(t, 3, n)
	n, ok = ConfigInt(m, "dimensions")
	assert.True(t, ok)
	assert.Equal(t, 768, n)
	_, ok = ConfigInt(m, "missing")
	assert.False(t, ok)
}
