package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantName string
		wantErr  string
	}{
		{
			name:     "ollama",
			cfg:      Config{Provider: "ollama"},
			wantName: "ollama",
		},
		{
			name:     "ollama case insensitive",
			cfg:      Config{Provider: "Ollama"},
			wantName: "ollama",
		},
		{
			name: "gemini with key",
			cfg: Config{
				Provider: "gemini",
				Gemini:   GeminiConfig{APIKey: "test-key"},
			},
			wantName: "gemini",
		},
		{
			name:    "gemini without key",
			cfg:     Config{Provider: "gemini"},
			wantErr: "API key",
		},
		{
			name:    "unknown provider",
			cfg:     Config{Provider: "claude"},
			wantErr: `unknown LLM provider "claude"`,
		},
		{
			name:    "empty provider",
			cfg:     Config{},
			wantErr: "unknown LLM provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, p.Name())
		})
	}
}

type plainProvider struct{}

func (plainProvider) Name() string { return "plain" }
func (plainProvider) Chat(context.Context, []Message) (*ChatResponse, error) {
	return &ChatResponse{}, nil
}

func TestCheckReadyWithoutProbe(t *testing.T) {
	// Providers without a readiness probe are assumed ready.
	require.NoError(t, CheckReady(context.Background(), plainProvider{}))
}

func TestOllamaDefaults(t *testing.T) {
	o := NewOllama(OllamaConfig{})
	assert.Equal(t, DefaultOllamaHost, o.host)
	assert.Equal(t, DefaultOllamaModel, o.Model())
}

func TestGeminiDefaults(t *testing.T) {
	g, err := NewGemini(GeminiConfig{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultGeminiModel, g.Model())
	assert.Equal(t, defaultGeminiBaseURL, g.baseURL)
}
