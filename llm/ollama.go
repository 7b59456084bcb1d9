package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Defaults for the local runtime.
const (
	DefaultOllamaHost  = "http://localhost:11434"
	DefaultOllamaModel = "llama3"
)

// OllamaConfig configures the local Ollama backend.
type OllamaConfig struct {
	// Host is the runtime base URL (default http://localhost:11434).
	Host string

	// Model is the model name passed to the runtime.
	Model string
}

// Ollama talks to a local Ollama runtime over its native chat API. Messages
// are forwarded verbatim; token counts and duration come straight from the
// runtime's response.
type Ollama struct {
	host       string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// OllamaOption configures an Ollama provider.
type OllamaOption func(*Ollama)

// WithOllamaHTTPClient sets a custom HTTP client.
func WithOllamaHTTPClient(httpClient *http.Client) OllamaOption {
	return func(o *Ollama) {
		o.httpClient = httpClient
	}
}

// WithOllamaLogger sets the logger.
func WithOllamaLogger(logger *slog.Logger) OllamaOption {
	return func(o *Ollama) {
		o.logger = logger
	}
}

// NewOllama creates the local-runtime backend.
func NewOllama(cfg OllamaConfig, opts ...OllamaOption) *Ollama {
	o := &Ollama{
		host:  strings.TrimSuffix(cfg.Host, "/"),
		model: cfg.Model,
		// Chat calls carry no deadline of their own; local generation can
		// legitimately take minutes.
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}
	if o.host == "" {
		o.host = DefaultOllamaHost
	}
	if o.model == "" {
		o.model = DefaultOllamaModel
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Name returns "ollama".
func (o *Ollama) Name() string { return "ollama" }

// Model returns the configured model name.
func (o *Ollama) Model() string { return o.model }

type ollamaChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type ollamaChatResponse struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	PromptEvalCount int   `json:"prompt_eval_count"`
	EvalCount       int   `json:"eval_count"`
	TotalDuration   int64 `json:"total_duration"` // nanoseconds
}

// Chat sends the message history to the runtime's /api/chat endpoint.
func (o *Ollama) Chat(ctx context.Context, messages []Message) (*ChatResponse, error) {
	body, err := json.Marshal(ollamaChatRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   false,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama chat: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read chat response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(resp.StatusCode, respBody)
	}

	var parsed ollamaChatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("parse chat response: %w", err)
	}

	o.logger.Debug("Ollama chat completed",
		"model", o.model,
		"prompt_eval_count", parsed.PromptEvalCount,
		"eval_count", parsed.EvalCount)

	return &ChatResponse{
		Content: parsed.Message.Content,
		Usage: Usage{
			InputTokens:  parsed.PromptEvalCount,
			OutputTokens: parsed.EvalCount,
			Duration:     time.Duration(parsed.TotalDuration),
		},
	}, nil
}

type ollamaTagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

// CheckReady verifies the runtime is reachable and the configured model has
// been pulled.
func (o *Ollama) CheckReady(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.host+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connect to Ollama at %s: %w (make sure Ollama is running)", o.host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("list Ollama models: HTTP %d", resp.StatusCode)
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("parse Ollama model list: %w", err)
	}

	for _, m := range tags.Models {
		if m.Name == o.model || m.Model == o.model {
			return nil
		}
	}

	return fmt.Errorf("model %q not found in Ollama; run: ollama pull %s", o.model, o.model)
}
