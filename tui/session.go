// Package tui runs the interactive terminal session: a paged dashboard of
// top stories, the per-story analysis flow, and the follow-up chat loop. All
// input and output go through an io.Reader/io.Writer pair so tests can
// script a whole session.
package tui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/c360studio/vector/analyze"
	"github.com/c360studio/vector/config"
	"github.com/c360studio/vector/hn"
	"github.com/c360studio/vector/llm"
	"github.com/c360studio/vector/metrics"
	"github.com/c360studio/vector/report"
)

const maxTitleWidth = 70

// StoryLister supplies dashboard pages. Satisfied by hn.Client.
type StoryLister interface {
	FetchTopStories(ctx context.Context, page, limit int) ([]*hn.Item, error)
}

// Session is one interactive run of the assistant.
type Session struct {
	lister    StoryLister
	analyzer  *analyze.Analyzer
	processor *report.Processor
	pageSize  int

	in     *bufio.Scanner
	out    io.Writer
	logger *slog.Logger

	page    int
	stories []*hn.Item
	now     func() time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithClock overrides the chat log timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// New creates a session reading commands from in and writing to out.
func New(lister StoryLister, analyzer *analyze.Analyzer, processor *report.Processor, pageSize int, in io.Reader, out io.Writer, opts ...Option) *Session {
	s := &Session{
		lister:    lister,
		analyzer:  analyzer,
		processor: processor,
		pageSize:  pageSize,
		in:        bufio.NewScanner(in),
		out:       out,
		logger:    slog.Default(),
		page:      1,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UpdateProvider rebuilds the analysis backend from a changed configuration.
// A backend that cannot be constructed (typically gemini without a
// credential) is reported and the current one stays active.
func (s *Session) UpdateProvider(cfg *config.Config) {
	provider, err := llm.New(cfg.ProviderConfig())
	if err != nil {
		s.logger.Warn("Ignoring provider change", "error", err)
		fmt.Fprintf(s.out, "\nConfig change ignored: %v\n", err)
		return
	}

	s.analyzer.SetProvider(provider)
	s.logger.Info("Provider switched", "provider", provider.Name())
	fmt.Fprintf(s.out, "\nProvider switched to %s.\n", speakerName(provider))
}

// Run drives the dashboard loop until the user quits, input ends, or ctx is
// canceled.
func (s *Session) Run(ctx context.Context) error {
	if err := s.loadPage(ctx); err != nil {
		return err
	}

	for {
		s.printDashboard()
		line, ok := s.prompt(ctx, "> ")
		if !ok {
			return ctx.Err()
		}

		switch strings.ToLower(line) {
		case "":
			continue
		case "q", "quit", "exit":
			fmt.Fprintln(s.out, "Bye.")
			return nil
		case "n":
			s.page++
			if err := s.loadPage(ctx); err != nil {
				fmt.Fprintf(s.out, "Failed to load stories: %v\n", err)
				s.page--
			} else if len(s.stories) == 0 {
				fmt.Fprintln(s.out, "No more stories.")
				s.page--
				_ = s.loadPage(ctx)
			}
		case "p":
			if s.page == 1 {
				fmt.Fprintln(s.out, "Already on the first page.")
				continue
			}
			s.page--
			if err := s.loadPage(ctx); err != nil {
				fmt.Fprintf(s.out, "Failed to load stories: %v\n", err)
			}
		case "r":
			if err := s.loadPage(ctx); err != nil {
				fmt.Fprintf(s.out, "Failed to refresh: %v\n", err)
			}
		case "/stats":
			if err := metrics.Dump(s.out); err != nil {
				fmt.Fprintf(s.out, "Failed to dump stats: %v\n", err)
			}
		default:
			id, err := s.resolveStory(line)
			if err != nil {
				fmt.Fprintln(s.out, err)
				continue
			}
			s.openStory(ctx, id)
		}
	}
}

func (s *Session) loadPage(ctx context.Context) error {
	stories, err := s.lister.FetchTopStories(ctx, s.page, s.pageSize)
	if err != nil {
		return err
	}
	s.stories = stories
	return nil
}

func (s *Session) printDashboard() {
	fmt.Fprintf(s.out, "\nTop stories, page %d\n", s.page)
	fmt.Fprintf(s.out, "%4s | %5s | %8s | %9s | %s\n", "Rank", "Score", "Comments", "ID", "Title")
	fmt.Fprintln(s.out, strings.Repeat("-", 100))

	for i, story := range s.stories {
		title := story.Title
		if len(title) > maxTitleWidth {
			title = title[:maxTitleWidth-3] + "..."
		}
		rank := (s.page-1)*s.pageSize + i + 1
		fmt.Fprintf(s.out, "%4d | %5d | %8d | %9d | %s\n", rank, story.Score, story.Descendants, story.ID, title)
	}

	fmt.Fprintln(s.out, "\nEnter a rank or story id to open it. Commands: n(ext), p(rev), r(efresh), /stats, q(uit)")
}

// resolveStory maps dashboard input to a story id: small numbers are ranks
// on the current page, anything else is taken as a raw item id.
func (s *Session) resolveStory(line string) (int, error) {
	n, err := strconv.Atoi(line)
	if err != nil {
		return 0, fmt.Errorf("unknown command %q", line)
	}

	rank := n - (s.page-1)*s.pageSize
	if rank >= 1 && rank <= len(s.stories) {
		return s.stories[rank-1].ID, nil
	}
	if n > 0 {
		return n, nil
	}
	return 0, fmt.Errorf("no story %d on this page", n)
}

func (s *Session) openStory(ctx context.Context, id int) {
	fmt.Fprintf(s.out, "\nFetching story %d...\n", id)

	result, err := s.processor.Process(ctx, id)
	if err != nil {
		fmt.Fprintf(s.out, "Failed to process story: %v\n", err)
		return
	}
	if result.FromCache {
		fmt.Fprintln(s.out, "Loaded from cache.")
	}

	for analyze.IsErrorReply(result.Report) {
		fmt.Fprintf(s.out, "\nAnalysis failed:\n  %s\n", result.Report)
		line, ok := s.prompt(ctx, "retry or back? ")
		if !ok || strings.ToLower(line) != "retry" {
			return
		}

		fmt.Fprintln(s.out, "Regenerating...")
		result, err = s.processor.Retry(ctx, id)
		if err != nil {
			fmt.Fprintf(s.out, "Failed to process story: %v\n", err)
			return
		}
	}

	s.viewReport(ctx, result)
}

func (s *Session) viewReport(ctx context.Context, result *report.Result) {
	fmt.Fprintf(s.out, "\n%s\n", result.Report)
	fmt.Fprintln(s.out, "\nAsk follow-up questions. Commands: /article, /copy, /back")

	var lastAnswer string
	for {
		line, ok := s.prompt(ctx, "ask> ")
		if !ok {
			return
		}

		switch strings.ToLower(line) {
		case "":
			continue
		case "/back":
			return
		case "/article":
			fmt.Fprintf(s.out, "\n%s\n", result.ArticleText)
		case "/copy":
			if lastAnswer == "" {
				fmt.Fprintln(s.out, "Nothing to copy yet.")
				continue
			}
			fmt.Fprintf(s.out, "\n%s\n", lastAnswer)
		default:
			fmt.Fprintln(s.out, "Thinking...")
			answer := s.analyzer.ChatWithContext(ctx, result.Story, result.ArticleText, result.Comments, line, result.ChatHistory)
			fmt.Fprintf(s.out, "\n%s\n", answer)

			if analyze.IsErrorReply(answer) {
				continue
			}
			lastAnswer = answer

			speaker := speakerName(s.analyzer.Provider())
			if err := s.processor.RecordChatTurn(result, speaker, line, answer, s.now()); err != nil {
				fmt.Fprintf(s.out, "Warning: chat history not fully saved: %v\n", err)
			}
		}
	}
}

// prompt reads one trimmed input line. ok is false when input is exhausted
// or ctx is done.
func (s *Session) prompt(ctx context.Context, label string) (string, bool) {
	select {
	case <-ctx.Done():
		return "", false
	default:
	}

	fmt.Fprint(s.out, label)
	if !s.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(s.in.Text()), true
}

// speakerName renders a provider name for chat log attribution.
func speakerName(p llm.Provider) string {
	name := p.Name()
	if name == "" {
		return "Assistant"
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
