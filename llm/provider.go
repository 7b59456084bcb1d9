// Package llm provides interchangeable chat backends behind a single
// Provider interface: a local Ollama runtime and the Gemini API. Backend
// selection happens once, at construction, so callers never touch ambient
// provider state.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// maxResponseSize limits API response bodies.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// Message represents one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage holds normalized token accounting for a single chat call. Backends
// that do not report a duration measure wall-clock time instead.
type Usage struct {
	InputTokens  int
	OutputTokens int
	Duration     time.Duration
}

// ChatResponse is the result of a chat call.
type ChatResponse struct {
	Content string
	Usage   Usage
}

// Provider is a chat-capable LLM backend.
type Provider interface {
	// Name returns the provider identifier ("ollama", "gemini").
	Name() string

	// Chat sends the full message history and returns the next assistant
	// turn with usage accounting.
	Chat(ctx context.Context, messages []Message) (*ChatResponse, error)
}

// ReadinessChecker is implemented by providers that can verify their backend
// is reachable before the session starts.
type ReadinessChecker interface {
	CheckReady(ctx context.Context) error
}

// Config selects and configures a backend.
type Config struct {
	// Provider is the backend identifier: "ollama" or "gemini".
	Provider string

	Ollama OllamaConfig
	Gemini GeminiConfig
}

// New constructs the configured provider. Unknown identifiers are rejected
// rather than falling back, and selecting gemini without a credential fails
// here, not on first use.
func New(cfg Config) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "ollama":
		return NewOllama(cfg.Ollama), nil
	case "gemini":
		return NewGemini(cfg.Gemini)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q (supported: ollama, gemini)", cfg.Provider)
	}
}

// CheckReady verifies the provider's backend is usable. Providers without a
// readiness probe are assumed ready.
func CheckReady(ctx context.Context, p Provider) error {
	checker, ok := p.(ReadinessChecker)
	if !ok {
		return nil
	}
	return checker.CheckReady(ctx)
}
