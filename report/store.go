// Package report persists analysis output on disk and drives the processing
// pipeline around it. Each story owns at most one report file
// (hn_<id>_<timestamp>.md) and one context file (hn_<id>_context.json) under
// the store directory; the pair is the cache key that lets a story reopen
// without refetching or regenerating.
package report

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/c360studio/vector/hn"
	"github.com/c360studio/vector/llm"
)

const reportTimeFormat = "20060102_150405"

// Context is everything a chat turn needs, serialized alongside the report.
type Context struct {
	Story       *hn.Item      `json:"story"`
	ArticleText string        `json:"article_text"`
	Comments    []*hn.Item    `json:"comments"`
	ChatHistory []llm.Message `json:"chat_history"`
}

// Store reads and writes report and context files in a single directory.
// Writes are serialized so concurrent flows touching the same story cannot
// interleave a context rewrite with a report append.
type Store struct {
	dir    string
	mu     sync.Mutex
	logger *slog.Logger
	now    func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreLogger sets the logger.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithStoreClock overrides the timestamp source used in report filenames.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a store rooted at dir, creating it if needed.
func NewStore(dir string, opts ...StoreOption) (*Store, error) {
	s := &Store{
		dir:    dir,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create reports directory: %w", err)
	}

	return s, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string { return s.dir }

// FindReport returns the path of the story's report file, or "" when none
// exists. Multiple matches (which Retry prevents) resolve to the
// lexicographically first.
func (s *Store) FindReport(id int) (string, error) {
	matches, err := doublestar.FilepathGlob(filepath.Join(s.dir, fmt.Sprintf("hn_%d_*.md", id)))
	if err != nil {
		return "", fmt.Errorf("glob reports: %w", err)
	}
	if len(matches) == 0 {
		return "", nil
	}
	sort.Strings(matches)
	return matches[0], nil
}

// ContextPath returns the story's context file path.
func (s *Store) ContextPath(id int) string {
	return filepath.Join(s.dir, fmt.Sprintf("hn_%d_context.json", id))
}

// HasContext reports whether the story's context file exists.
func (s *Store) HasContext(id int) bool {
	_, err := os.Stat(s.ContextPath(id))
	return err == nil
}

// LoadContext reads and decodes the story's context file.
func (s *Store) LoadContext(id int) (*Context, error) {
	data, err := os.ReadFile(s.ContextPath(id))
	if err != nil {
		return nil, fmt.Errorf("read context: %w", err)
	}

	var c Context
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse context: %w", err)
	}
	return &c, nil
}

// SaveContext rewrites the story's context file in full.
func (s *Store) SaveContext(id int, c *Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode context: %w", err)
	}

	if err := os.WriteFile(s.ContextPath(id), data, 0o644); err != nil {
		return fmt.Errorf("write context: %w", err)
	}
	return nil
}

// WriteReport writes a new timestamped report file and returns its path.
func (s *Store) WriteReport(id int, content string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, fmt.Sprintf("hn_%d_%s.md", id, s.now().Format(reportTimeFormat)))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// ReadReport returns the report file's content.
func (s *Store) ReadReport(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read report: %w", err)
	}
	return string(data), nil
}

// AppendChatLog appends one Q&A exchange to the report file.
func (s *Store) AppendChatLog(path, speaker, question, answer string, when time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open report: %w", err)
	}
	defer f.Close()

	entry := fmt.Sprintf("\n\n## Chat Log (%s)\n\n**User**: %s\n\n**%s**: %s\n",
		when.Format("2006-01-02 15:04:05"), question, speaker, answer)

	if _, err := f.WriteString(entry); err != nil {
		return fmt.Errorf("append chat log: %w", err)
	}
	return nil
}

// DeleteReports removes every report file for the story. The context file is
// left alone; regeneration overwrites it.
func (s *Store) DeleteReports(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches, err := doublestar.FilepathGlob(filepath.Join(s.dir, fmt.Sprintf("hn_%d_*.md", id)))
	if err != nil {
		return fmt.Errorf("glob reports: %w", err)
	}

	for _, path := range matches {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("delete report: %w", err)
		}
		s.logger.Debug("Deleted report", "path", path)
	}
	return nil
}
