package app

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazysoft/consultant/pkg/app/cliflag"
)

type testOptions struct {
	Chat struct {
		APIKey string `mapstructure:"api-key"`
		Model  string `mapstructure:"model"`
	} `mapstructure:"chat"`

	completed bool
}

func (o *testOptions) Flags() (fss cliflag.NamedFlagSets) {
	fs := fss.FlagSet("chat")
	fs.StringVar(&o.Chat.APIKey, "chat.api-key", "", "")
	fs.StringVar(&o.Chat.Model, "chat.model", "gpt-4o", "")
	return fss
}

func (o *testOptions) Complete() error { o.completed = true; return nil }
func (o *testOptions) Validate() error { return nil }

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestApp_ConfigPrecedence(t *testing.T) {
	tests := []struct {
		name      string
		config    string
		env       map[string]string
		args      []string
		wantKey   string
		wantModel string
	}{
		{
			name:      "flag defaults",
			config:    "",
			wantModel: "gpt-4o",
		},
		{
			name:      "config file with expansion",
			config:    "chat:\n  api-key: ${TEST_KEY}\n  model: gpt-4o-mini\n",
			env:       map[string]string{"TEST_KEY": "sk-1"},
			wantKey:   "sk-1",
			wantModel: "gpt-4o-mini",
		},
		{
			name:      "unset variable expands to empty",
			config:    "chat:\n  api-key: ${TEST_MISSING_KEY}\n",
			wantKey:   "",
			wantModel: "gpt-4o",
		},
		{
			name:      "env beats config",
			config:    "chat:\n  model: gpt-4o-mini\n",
			env:       map[string]string{"TESTAPP_CHAT_MODEL": "llama3"},
			wantModel: "llama3",
		},
		{
			name:      "flag beats env",
			config:    "chat:\n  model: gpt-4o-mini\n",
			env:       map[string]string{"TESTAPP_CHAT_MODEL": "llama3"},
			args:      []string{"--chat.model", "gemini-pro"},
			wantModel: "gemini-pro",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			opts := &testOptions{}
			var ran bool
			a := NewApp(
				WithName("testapp"),
				WithOptions(opts),
				WithRunFunc(func() error { ran = true; return nil }),
			)

			args := tt.args
			if tt.config != "" {
				args = append([]string{"--config", writeConfig(t, tt.config)}, args...)
			}
			a.Command().SetArgs(args)
			require.NoError(t, a.Command().Execute())

			assert.True(t, ran)
			assert.True(t, opts.completed)
			assert.Equal(t, tt.wantKey, opts.Chat.APIKey)
			assert.Equal(t, tt.wantModel, opts.Chat.Model)
		})
	}
}

func TestApp_MissingExplicitConfig(t *testing.T) {
	a := NewApp(WithName("testapp"), WithOptions(&testOptions{}))
	a.Command().SetArgs([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml")})
	a.Command().SetErr(io.Discard)
	assert.Error(t, a.Command().Execute())
}

func TestApp_Subcommand(t *testing.T) {
	opts := &testOptions{}
	var got []string
	a := NewApp(
		WithName("testapp"),
		WithOptions(opts),
		WithCommands(&Command{
			Name: "reindex",
			Run:  func(args []string) error { got = args; return nil },
		}),
	)
	a.Command().SetArgs([]string{"reindex", "faq", "project", "--chat.model", "llama3"})
	require.NoError(t, a.Command().Execute())

	assert.Equal(t, []string{"faq", "project"}, got)
	assert.Equal(t, "llama3", opts.Chat.Model)
	assert.True(t, opts.completed)
}
