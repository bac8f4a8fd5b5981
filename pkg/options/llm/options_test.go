package llm

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingCompleteFillsProviderDefaults(t *testing.T) {
	tests := []struct {
		provider string
		model    string
		dim      int
	}{
		{"openai", "text-embedding-3-small", 1536},
		{"gemini", "models/embedding-001", 768},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			o := NewEmbeddingOptions()
			o.Provider = tt.provider
			o.APIKey = "k"
			require.NoError(t, o.Complete())
			assert.Equal(t, tt.model, o.Model)
			assert.Equal(t, tt.dim, o.Dimension)
			assert.Empty(t, o.Validate())
		})
	}
}

func TestEmbeddingCustomModelNeedsDimension(t *testing.T) {
	o := NewEmbeddingOptions()
	o.APIKey = "k"
	o.Model = "text-embedding-3-large"
	require.NoError(t, o.Complete())
	assert.NotEmpty(t, o.Validate())
}

func TestChatFlags(t *testing.T) {
	o := NewChatOptions()
	fs := pflag.NewFlagSet("chat", pflag.ContinueOnError)
	o.AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--chat.temperature=0.3", "--chat.fallback-model=gpt-4o-mini", "--chat.api-key=x"}))
	assert.InDelta(t, 0.3, o.Temperature, 1e-9)
	assert.Empty(t, o.Validate())

	o.Provider = "anthropic"
	assert.NotEmpty(t, o.Validate())
}
