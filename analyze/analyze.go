// Package analyze turns a fetched story, its article text, and its comment
// tree into LLM prompts and runs the two analysis operations: report
// generation and context-grounded chat. Provider failures come back as
// error-prefixed reply strings rather than errors, so the session can show
// them in place of the report or answer.
package analyze

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/c360studio/vector/hn"
	"github.com/c360studio/vector/llm"
	"github.com/c360studio/vector/metrics"
	"github.com/c360studio/vector/usagelog"
)

// Prompt budgets. Report prompts get a short article excerpt and the top of
// the comment list; chat prompts get a much larger context window.
const (
	reportArticleChars = 4000
	reportMaxComments  = 30
	chatArticleChars   = 12000
	chatMaxComments    = 100
)

// Reply prefixes for failed operations.
const (
	errReportPrefix = "Error analyzing story: "
	errAnswerPrefix = "Error generating answer: "
)

// IsErrorReply reports whether s is a failed-operation reply rather than
// real model output.
func IsErrorReply(s string) bool {
	return strings.HasPrefix(s, errReportPrefix) || strings.HasPrefix(s, errAnswerPrefix)
}

// Analyzer runs analysis operations against a swappable provider.
type Analyzer struct {
	mu       sync.RWMutex
	provider llm.Provider

	usage  *usagelog.Logger
	logger *slog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithUsageLog enables per-call usage recording.
func WithUsageLog(usage *usagelog.Logger) Option {
	return func(a *Analyzer) {
		a.usage = usage
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = logger
	}
}

// New creates an Analyzer backed by provider.
func New(provider llm.Provider, opts ...Option) *Analyzer {
	a := &Analyzer{
		provider: provider,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetProvider swaps the backend. In-flight calls finish on the old one.
func (a *Analyzer) SetProvider(p llm.Provider) {
	a.mu.Lock()
	a.provider = p
	a.mu.Unlock()
}

// Provider returns the current backend.
func (a *Analyzer) Provider() llm.Provider {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.provider
}

// GenerateReport asks the model for a structured Markdown report on the
// story. The reply is either the report or an "Error analyzing story: "
// string.
func (a *Analyzer) GenerateReport(ctx context.Context, story *hn.Item, articleText string, comments []*hn.Item) string {
	prompt := buildReportPrompt(story, articleText, comments)

	reply, err := a.chat(ctx, usagelog.OpReportGeneration, []llm.Message{
		{Role: llm.RoleUser, Content: prompt},
	})
	if err != nil {
		return errReportPrefix + err.Error()
	}
	return reply
}

// ChatWithContext answers a follow-up question grounded in the cached story
// context. History turns precede the context prompt so the conversation
// stays coherent. The reply is either the answer or an
// "Error generating answer: " string.
func (a *Analyzer) ChatWithContext(ctx context.Context, story *hn.Item, articleText string, comments []*hn.Item, question string, history []llm.Message) string {
	prompt := buildChatPrompt(story, articleText, comments, question)

	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: prompt})

	reply, err := a.chat(ctx, usagelog.OpChatQuery, messages)
	if err != nil {
		return errAnswerPrefix + err.Error()
	}
	return reply
}

// chat runs one provider call with usage accounting and metrics.
func (a *Analyzer) chat(ctx context.Context, operation string, messages []llm.Message) (string, error) {
	provider := a.Provider()
	requestID := uuid.NewString()

	a.logger.Info("LLM call started",
		"request_id", requestID,
		"provider", provider.Name(),
		"operation", operation)

	resp, err := provider.Chat(ctx, messages)
	if err != nil {
		metrics.LLMCalls.WithLabelValues(provider.Name(), operation, "error").Inc()
		a.logger.Error("LLM call failed",
			"request_id", requestID,
			"provider", provider.Name(),
			"operation", operation,
			"error", err)
		return "", err
	}

	metrics.LLMCalls.WithLabelValues(provider.Name(), operation, "ok").Inc()
	a.logger.Info("LLM call completed",
		"request_id", requestID,
		"provider", provider.Name(),
		"operation", operation,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"duration", resp.Usage.Duration)

	if a.usage != nil {
		a.usage.Append(usagelog.Record{
			RequestID:    requestID,
			Model:        modelName(provider),
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			Duration:     resp.Usage.Duration,
			Operation:    operation,
		})
	}

	return resp.Content, nil
}

// modelName prefers the backend's model identifier over its provider name.
func modelName(p llm.Provider) string {
	if m, ok := p.(interface{ Model() string }); ok {
		return m.Model()
	}
	return p.Name()
}

func buildReportPrompt(story *hn.Item, articleText string, comments []*hn.Item) string {
	var commentLines []string
	for _, c := range comments {
		if len(commentLines) >= reportMaxComments {
			break
		}
		commentLines = append(commentLines, fmt.Sprintf("- %s: %s", commentAuthor(c), CleanHTML(c.Text)))
	}

	return fmt.Sprintf(`You are an expert tech analyst. Analyze this Hacker News submission.

Metadata:
Title: %s
URL: %s
Score: %d

Article Content (Excerpt):
%s

Top Comments:
%s

Task:
Create a detailed Markdown summary. Use the following structure EXACTLY:

# %s

## 📝 Summary
(A concise 3-sentence summary of the article)

## ⚖️ Pro & Cons / Key Arguments
(Bulleted list of pros, cons, or key technical points discussed in article and comments)

## 💬 Community Sentiment
(What are the commenters saying? What is the controversy? What are the top insights?)

## 🧠 Deep Dive Hooks
(List 3 specific complex topics mentioned in this thread that the user might want to ask more about)`,
		story.Title, story.URL, story.Score,
		truncate(articleText, reportArticleChars),
		strings.Join(commentLines, "\n"),
		story.Title)
}

func buildChatPrompt(story *hn.Item, articleText string, comments []*hn.Item, question string) string {
	var commentLines []string
	for _, c := range comments {
		if len(commentLines) >= chatMaxComments {
			break
		}
		indent := strings.Repeat("  ", c.Depth)
		commentLines = append(commentLines, fmt.Sprintf("%s- %s: %s", indent, commentAuthor(c), CleanHTML(c.Text)))
	}

	return fmt.Sprintf(`This is the article:
---
TITLE: %s
CONTENT:
%s
---

And these are the comments (top 100 with hierarchy):
---
%s
---

The user wants to know more about: %s

Task:
Provide a detailed, well-structured answer based strictly on the provided context.
If the information is not in the article or comments, state that.
Use Markdown for structure.`,
		story.Title,
		truncate(articleText, chatArticleChars),
		strings.Join(commentLines, "\n"),
		question)
}

func commentAuthor(c *hn.Item) string {
	if c.By == "" {
		return "anon"
	}
	return c.By
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
