package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	require.NoError(t, config.Validate())
	assert.Equal(t, "ollama", config.LLM.Provider)
	assert.Equal(t, "http://localhost:11434", config.LLM.Ollama.Host)
	assert.Equal(t, "llama3", config.LLM.Ollama.Model)
	assert.Equal(t, "gemini-2.0-flash", config.LLM.Gemini.Model)
	assert.Equal(t, "reports", config.Reports.Dir)
	assert.Equal(t, "logs", config.Logs.Dir)
	assert.Equal(t, 50, config.Dashboard.PageSize)
	assert.Equal(t, 10*time.Second, config.HTTP.Timeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults valid",
			mutate: func(*Config) {},
		},
		{
			name: "gemini with key",
			mutate: func(c *Config) {
				c.LLM.Provider = "gemini"
				c.LLM.Gemini.APIKey = "key"
			},
		},
		{
			name: "gemini without key",
			mutate: func(c *Config) {
				c.LLM.Provider = "gemini"
			},
			wantErr: "api_key",
		},
		{
			name: "unknown provider",
			mutate: func(c *Config) {
				c.LLM.Provider = "gpt4"
			},
			wantErr: "llm.provider",
		},
		{
			name: "zero page size",
			mutate: func(c *Config) {
				c.Dashboard.PageSize = 0
			},
			wantErr: "page_size",
		},
		{
			name: "zero timeout",
			mutate: func(c *Config) {
				c.HTTP.Timeout = 0
			},
			wantErr: "timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)

			err := config.Validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestMerge(t *testing.T) {
	config := DefaultConfig()

	config.Merge(&Config{
		LLM: LLMConfig{
			Provider: "gemini",
			Gemini:   GeminiConfig{APIKey: "from-file"},
		},
		Reports: ReportsConfig{Dir: "/data/reports"},
	})

	assert.Equal(t, "gemini", config.LLM.Provider)
	assert.Equal(t, "from-file", config.LLM.Gemini.APIKey)
	assert.Equal(t, "/data/reports", config.Reports.Dir)

	// Untouched fields keep their defaults.
	assert.Equal(t, "llama3", config.LLM.Ollama.Model)
	assert.Equal(t, 50, config.Dashboard.PageSize)

	// Merging nil is a no-op.
	config.Merge(nil)
	assert.Equal(t, "gemini", config.LLM.Provider)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vector.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  provider: gemini
  gemini:
    model: gemini-2.5-pro
    api_key: secret
dashboard:
  page_size: 25
`), 0o644))

	config, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "gemini", config.LLM.Provider)
	assert.Equal(t, "gemini-2.5-pro", config.LLM.Gemini.Model)
	assert.Equal(t, 25, config.Dashboard.PageSize)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	config := DefaultConfig()
	config.LLM.Ollama.Model = "mistral"
	require.NoError(t, config.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "mistral", loaded.LLM.Ollama.Model)
	assert.Equal(t, config.HTTP.Timeout, loaded.HTTP.Timeout)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "gemini")
	t.Setenv("OLLAMA_MODEL", "qwen2.5")
	t.Setenv("GEMINI_API_KEY", "env-key")

	config := DefaultConfig()
	config.ApplyEnv()

	assert.Equal(t, "gemini", config.LLM.Provider)
	assert.Equal(t, "qwen2.5", config.LLM.Ollama.Model)
	assert.Equal(t, "env-key", config.LLM.Gemini.APIKey)
	// Untouched vars leave defaults alone.
	assert.Equal(t, "http://localhost:11434", config.LLM.Ollama.Host)
}

func TestProviderConfig(t *testing.T) {
	config := DefaultConfig()
	config.LLM.Gemini.APIKey = "k"

	pc := config.ProviderConfig()
	assert.Equal(t, "ollama", pc.Provider)
	assert.Equal(t, "http://localhost:11434", pc.Ollama.Host)
	assert.Equal(t, "llama3", pc.Ollama.Model)
	assert.Equal(t, "gemini-2.0-flash", pc.Gemini.Model)
	assert.Equal(t, "k", pc.Gemini.APIKey)
}

func TestWatcherReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vector.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  provider: ollama\n"), 0o644))

	changed := make(chan *Config, 1)
	watcher := NewWatcher(path, func(c *Config) {
		select {
		case changed <- c:
		default:
		}
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = watcher.Watch(ctx)
		close(done)
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  ollama:\n    model: mistral\n"), 0o644))

	select {
	case config := <-changed:
		assert.Equal(t, "mistral", config.LLM.Ollama.Model)
		// Layering applies on reload: unspecified fields return to defaults.
		assert.Equal(t, "ollama", config.LLM.Provider)
	case <-time.After(5 * time.Second):
		t.Fatal("config change never observed")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcherIgnoresInvalidChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vector.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  provider: ollama\n"), 0o644))

	changed := make(chan *Config, 1)
	watcher := NewWatcher(path, func(c *Config) { changed <- c }, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = watcher.Watch(ctx) }()

	time.Sleep(100 * time.Millisecond)
	// Selecting gemini with no key fails validation; the callback must not fire.
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  provider: gemini\n"), 0o644))

	select {
	case <-changed:
		t.Fatal("invalid config change was applied")
	case <-time.After(1500 * time.Millisecond):
	}
}
