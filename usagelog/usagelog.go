// Package usagelog appends one CSV row per LLM call for offline cost
// tracking. Logging failures are reported through slog and never propagate:
// a broken stats file must not take down an analysis session.
package usagelog

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Operation values recorded in the Type column.
const (
	OpReportGeneration = "report_generation"
	OpChatQuery        = "chat_query"
)

const timestampFormat = "2006-01-02 15:04:05"

var csvHeader = []string{"Timestamp", "Model", "Input Tokens", "Output Tokens", "Duration (s)", "Type"}

// Record is one LLM call's usage accounting.
type Record struct {
	// RequestID correlates the CSV row with app-log lines for the same call.
	RequestID string

	Model        string
	InputTokens  int
	OutputTokens int
	Duration     time.Duration

	// Operation is one of the Op* constants.
	Operation string
}

// Logger writes usage records to a CSV file.
type Logger struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Logger.
type Option func(*Logger)

// WithLogger sets the slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Logger) {
		l.logger = logger
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		l.now = now
	}
}

// New creates a usage logger writing to path. The parent directory is created
// and the header row written if the file does not exist yet.
func New(path string, opts ...Option) (*Logger, error) {
	l := &Logger{
		path:   path,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create stats directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := l.writeHeader(); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat stats file: %w", err)
	}

	return l, nil
}

func (l *Logger) writeHeader() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create stats file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("write stats header: %w", err)
	}
	w.Flush()
	return w.Error()
}

// Append writes one usage row. Errors are logged, not returned.
func (l *Logger) Append(rec Record) {
	l.mu.Lock()
	defer l.mu.Unlock()

	row := []string{
		l.now().Format(timestampFormat),
		rec.Model,
		fmt.Sprintf("%d", rec.InputTokens),
		fmt.Sprintf("%d", rec.OutputTokens),
		fmt.Sprintf("%.2f", rec.Duration.Seconds()),
		rec.Operation,
	}

	if err := l.appendRow(row); err != nil {
		l.logger.Error("Failed to record usage stats",
			"request_id", rec.RequestID,
			"path", l.path,
			"error", err)
		return
	}

	l.logger.Debug("Recorded usage stats",
		"request_id", rec.RequestID,
		"model", rec.Model,
		"input_tokens", rec.InputTokens,
		"output_tokens", rec.OutputTokens,
		"duration", rec.Duration,
		"type", rec.Operation)
}

func (l *Logger) appendRow(row []string) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open stats file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write stats row: %w", err)
	}
	w.Flush()
	return w.Error()
}
