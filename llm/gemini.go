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

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiConfig configures the Gemini backend.
type GeminiConfig struct {
	// APIKey authenticates requests. Required.
	APIKey string

	// Model is the model name (default gemini-2.0-flash).
	Model string
}

// Gemini talks to the Gemini generateContent REST API. Transient failures
// (rate limits, server errors, network faults) are retried with exponential
// backoff; auth and request errors fail immediately.
type Gemini struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	retry      RetryConfig
	logger     *slog.Logger
}

// GeminiOption configures a Gemini provider.
type GeminiOption func(*Gemini)

// WithGeminiHTTPClient sets a custom HTTP client.
func WithGeminiHTTPClient(httpClient *http.Client) GeminiOption {
	return func(g *Gemini) {
		g.httpClient = httpClient
	}
}

// WithGeminiBaseURL overrides the API base URL.
func WithGeminiBaseURL(baseURL string) GeminiOption {
	return func(g *Gemini) {
		g.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithGeminiRetryConfig overrides the retry policy.
func WithGeminiRetryConfig(cfg RetryConfig) GeminiOption {
	return func(g *Gemini) {
		g.retry = cfg
	}
}

// WithGeminiLogger sets the logger.
func WithGeminiLogger(logger *slog.Logger) GeminiOption {
	return func(g *Gemini) {
		g.logger = logger
	}
}

// NewGemini creates the Gemini backend. A missing API key is a construction
// error so the problem surfaces at startup instead of on the first call.
func NewGemini(cfg GeminiConfig, opts ...GeminiOption) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini provider requires an API key (set GEMINI_API_KEY)")
	}

	g := &Gemini{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    defaultGeminiBaseURL,
		httpClient: &http.Client{},
		retry:      DefaultRetryConfig(),
		logger:     slog.Default(),
	}
	if g.model == "" {
		g.model = DefaultGeminiModel
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

// Name returns "gemini".
func (g *Gemini) Name() string { return "gemini" }

// Model returns the configured model name.
func (g *Gemini) Model() string { return g.model }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// Chat sends the message history to generateContent. Assistant turns map to
// Gemini's "model" role. The API reports token counts but no latency, so
// Duration is measured wall-clock across all attempts.
func (g *Gemini) Chat(ctx context.Context, messages []Message) (*ChatResponse, error) {
	contents := make([]geminiContent, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		if role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: m.Content}},
		})
	}

	body, err := json.Marshal(geminiRequest{Contents: contents})
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)

	start := time.Now()
	var resp *ChatResponse
	err = doWithRetry(ctx, g.retry, g.logger, func() error {
		var sendErr error
		resp, sendErr = g.send(ctx, endpoint, body)
		return sendErr
	})
	if err != nil {
		return nil, fmt.Errorf("gemini chat: %w", err)
	}

	resp.Usage.Duration = time.Since(start)
	return resp, nil
}

// send performs a single generateContent call.
func (g *Gemini) send(ctx context.Context, endpoint string, body []byte) (*ChatResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	httpResp, err := g.httpClient.Do(req)
	if err != nil {
		// Network faults are worth retrying.
		return nil, NewTransientError(fmt.Errorf("send request: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("read response: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(httpResp.StatusCode, respBody)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, NewFatalError(fmt.Errorf("parse response: %w", err))
	}

	if len(parsed.Candidates) == 0 {
		return nil, NewFatalError(fmt.Errorf("response contained no candidates"))
	}

	var text strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}

	return &ChatResponse{
		Content: text.String(),
		Usage: Usage{
			InputTokens:  parsed.UsageMetadata.PromptTokenCount,
			OutputTokens: parsed.UsageMetadata.CandidatesTokenCount,
		},
	}, nil
}
