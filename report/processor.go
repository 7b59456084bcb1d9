package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360studio/vector/hn"
	"github.com/c360studio/vector/llm"
	"github.com/c360studio/vector/metrics"
)

// CommentLimit caps how many comments one story analysis fetches.
const CommentLimit = 100

// Fetcher supplies story data. Satisfied by hn.Client.
type Fetcher interface {
	FetchItem(ctx context.Context, id int) (*hn.Item, error)
	FetchArticleText(ctx context.Context, url string) string
	FetchComments(ctx context.Context, rootIDs []int, limit int) []*hn.Item
}

// Generator produces the report text. Satisfied by analyze.Analyzer.
type Generator interface {
	GenerateReport(ctx context.Context, story *hn.Item, articleText string, comments []*hn.Item) string
}

// Result is a processed story ready for viewing and chat.
type Result struct {
	Story       *hn.Item
	ArticleText string
	Comments    []*hn.Item
	Report      string
	ReportPath  string
	ContextPath string
	ChatHistory []llm.Message

	// FromCache is true when both files existed and nothing was fetched or
	// generated.
	FromCache bool
}

// Processor runs the story pipeline: cache lookup, fetch, generation,
// persistence.
type Processor struct {
	store     *Store
	fetcher   Fetcher
	generator Generator
	logger    *slog.Logger
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithProcessorLogger sets the logger.
func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logger
	}
}

// NewProcessor wires the pipeline.
func NewProcessor(store *Store, fetcher Fetcher, generator Generator, opts ...ProcessorOption) *Processor {
	p := &Processor{
		store:     store,
		fetcher:   fetcher,
		generator: generator,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process produces a Result for the story. When both the report and context
// files already exist they are loaded as-is with no network or LLM activity.
// When only the report exists (context lost), the story data is refetched and
// a fresh context written around the existing report. Otherwise the full
// fetch-and-generate pipeline runs and both files are written.
func (p *Processor) Process(ctx context.Context, id int) (*Result, error) {
	reportPath, err := p.store.FindReport(id)
	if err != nil {
		return nil, err
	}

	if reportPath != "" && p.store.HasContext(id) {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		p.logger.Info("Cache hit", "story_id", id, "report", reportPath)
		return p.loadCached(id, reportPath)
	}

	metrics.CacheLookups.WithLabelValues("miss").Inc()

	story, err := p.fetcher.FetchItem(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch story %d: %w", id, err)
	}

	articleText := p.fetcher.FetchArticleText(ctx, story.URL)
	comments := p.fetcher.FetchComments(ctx, story.Kids, CommentLimit)

	var reportText string
	if reportPath != "" {
		// Report survived but its context file is gone. Keep the report and
		// rebuild the context from freshly fetched data.
		p.logger.Warn("Context file missing for existing report, rebuilding", "story_id", id)
		reportText, err = p.store.ReadReport(reportPath)
		if err != nil {
			return nil, err
		}
	} else {
		p.logger.Info("Generating report", "story_id", id, "comments", len(comments))
		reportText = p.generator.GenerateReport(ctx, story, articleText, comments)

		reportPath, err = p.store.WriteReport(id, reportText)
		if err != nil {
			return nil, err
		}
	}

	reportCtx := &Context{
		Story:       story,
		ArticleText: articleText,
		Comments:    comments,
		ChatHistory: []llm.Message{},
	}
	if err := p.store.SaveContext(id, reportCtx); err != nil {
		return nil, err
	}

	return &Result{
		Story:       story,
		ArticleText: articleText,
		Comments:    comments,
		Report:      reportText,
		ReportPath:  reportPath,
		ContextPath: p.store.ContextPath(id),
		ChatHistory: reportCtx.ChatHistory,
	}, nil
}

// loadCached restores a Result from disk.
func (p *Processor) loadCached(id int, reportPath string) (*Result, error) {
	reportCtx, err := p.store.LoadContext(id)
	if err != nil {
		return nil, err
	}

	reportText, err := p.store.ReadReport(reportPath)
	if err != nil {
		return nil, err
	}

	history := reportCtx.ChatHistory
	if history == nil {
		history = []llm.Message{}
	}

	return &Result{
		Story:       reportCtx.Story,
		ArticleText: reportCtx.ArticleText,
		Comments:    reportCtx.Comments,
		Report:      reportText,
		ReportPath:  reportPath,
		ContextPath: p.store.ContextPath(id),
		ChatHistory: history,
		FromCache:   true,
	}, nil
}

// Retry discards the story's report files and regenerates from scratch. The
// context file is overwritten by the rerun.
func (p *Processor) Retry(ctx context.Context, id int) (*Result, error) {
	if err := p.store.DeleteReports(id); err != nil {
		return nil, err
	}
	return p.Process(ctx, id)
}

// RecordChatTurn persists one successful Q&A exchange: the in-memory history
// grows by the user and assistant turns, the report file gains a chat log
// section, and the context file is rewritten to match. Partial failures are
// returned joined so the session can warn; the in-memory history is updated
// regardless, keeping the conversation usable.
func (p *Processor) RecordChatTurn(result *Result, speaker, question, answer string, when time.Time) error {
	result.ChatHistory = append(result.ChatHistory,
		llm.Message{Role: llm.RoleUser, Content: question},
		llm.Message{Role: llm.RoleAssistant, Content: answer},
	)

	logErr := p.store.AppendChatLog(result.ReportPath, speaker, question, answer, when)
	if logErr != nil {
		p.logger.Error("Failed to append chat log", "report", result.ReportPath, "error", logErr)
	}

	ctxErr := p.store.SaveContext(result.Story.ID, &Context{
		Story:       result.Story,
		ArticleText: result.ArticleText,
		Comments:    result.Comments,
		ChatHistory: result.ChatHistory,
	})
	if ctxErr != nil {
		p.logger.Error("Failed to update context", "story_id", result.Story.ID, "error", ctxErr)
	}

	return errors.Join(logErr, ctxErr)
}
