// Package config provides configuration loading and management for Vector.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/vector/llm"
)

// Config represents the complete Vector configuration
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Reports   ReportsConfig   `yaml:"reports"`
	Logs      LogsConfig      `yaml:"logs"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	HTTP      HTTPConfig      `yaml:"http"`
}

// LLMConfig selects and configures the analysis backend
type LLMConfig struct {
	// Provider is the backend identifier: "ollama" or "gemini"
	Provider string `yaml:"provider"`

	Ollama OllamaConfig `yaml:"ollama"`
	Gemini GeminiConfig `yaml:"gemini"`
}

// OllamaConfig configures the local Ollama runtime
type OllamaConfig struct {
	// Host is the Ollama API endpoint (default: http://localhost:11434)
	Host string `yaml:"host"`
	// Model is the model name (default: llama3)
	Model string `yaml:"model"`
}

// GeminiConfig configures the Gemini API backend
type GeminiConfig struct {
	// Model is the Gemini model name (default: gemini-2.0-flash)
	Model string `yaml:"model"`
	// APIKey authenticates requests; usually supplied via GEMINI_API_KEY
	APIKey string `yaml:"api_key"`
}

// ReportsConfig configures report persistence
type ReportsConfig struct {
	// Dir is where report and context files live
	Dir string `yaml:"dir"`
}

// LogsConfig configures log output locations
type LogsConfig struct {
	// Dir is the root for app logs and usage stats
	Dir string `yaml:"dir"`
}

// DashboardConfig configures the story dashboard
type DashboardConfig struct {
	// PageSize is the number of stories per dashboard page
	PageSize int `yaml:"page_size"`
}

// HTTPConfig configures outbound HTTP behavior
type HTTPConfig struct {
	// Timeout applies to Hacker News and article fetches, not LLM calls
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: "ollama",
			Ollama: OllamaConfig{
				Host:  "http://localhost:11434",
				Model: "llama3",
			},
			Gemini: GeminiConfig{
				Model: "gemini-2.0-flash",
			},
		},
		Reports: ReportsConfig{
			Dir: "reports",
		},
		Logs: LogsConfig{
			Dir: "logs",
		},
		Dashboard: DashboardConfig{
			PageSize: 50,
		},
		HTTP: HTTPConfig{
			Timeout: 10 * time.Second,
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	switch strings.ToLower(c.LLM.Provider) {
	case "ollama":
	case "gemini":
		if c.LLM.Gemini.APIKey == "" {
			return fmt.Errorf("llm.gemini.api_key is required when the gemini provider is selected (or set GEMINI_API_KEY)")
		}
	default:
		return fmt.Errorf("llm.provider must be \"ollama\" or \"gemini\", got %q", c.LLM.Provider)
	}

	if c.Dashboard.PageSize <= 0 {
		return fmt.Errorf("dashboard.page_size must be positive")
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be positive")
	}
	return nil
}

// ProviderConfig converts the LLM section into the llm package's form
func (c *Config) ProviderConfig() llm.Config {
	return llm.Config{
		Provider: c.LLM.Provider,
		Ollama: llm.OllamaConfig{
			Host:  c.LLM.Ollama.Host,
			Model: c.LLM.Ollama.Model,
		},
		Gemini: llm.GeminiConfig{
			Model:  c.LLM.Gemini.Model,
			APIKey: c.LLM.Gemini.APIKey,
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// LLM
	if other.LLM.Provider != "" {
		c.LLM.Provider = other.LLM.Provider
	}
	if other.LLM.Ollama.Host != "" {
		c.LLM.Ollama.Host = other.LLM.Ollama.Host
	}
	if other.LLM.Ollama.Model != "" {
		c.LLM.Ollama.Model = other.LLM.Ollama.Model
	}
	if other.LLM.Gemini.Model != "" {
		c.LLM.Gemini.Model = other.LLM.Gemini.Model
	}
	if other.LLM.Gemini.APIKey != "" {
		c.LLM.Gemini.APIKey = other.LLM.Gemini.APIKey
	}

	// Paths
	if other.Reports.Dir != "" {
		c.Reports.Dir = other.Reports.Dir
	}
	if other.Logs.Dir != "" {
		c.Logs.Dir = other.Logs.Dir
	}

	// Dashboard
	if other.Dashboard.PageSize != 0 {
		c.Dashboard.PageSize = other.Dashboard.PageSize
	}

	// HTTP
	if other.HTTP.Timeout != 0 {
		c.HTTP.Timeout = other.HTTP.Timeout
	}
}

// ApplyEnv overlays the recognized environment variables
func (c *Config) ApplyEnv() {
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		c.LLM.Ollama.Host = v
	}
	if v := os.Getenv("OLLAMA_MODEL"); v != "" {
		c.LLM.Ollama.Model = v
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		c.LLM.Gemini.Model = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.LLM.Gemini.APIKey = v
	}
}
