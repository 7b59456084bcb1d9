// Package main provides the vector binary entry point.
// Vector is a terminal Hacker News assistant: it lists top stories, builds
// an LLM-generated analysis report for a selected story, and answers
// follow-up questions grounded in the story's article and comments.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/c360studio/vector/analyze"
	"github.com/c360studio/vector/config"
	"github.com/c360studio/vector/hn"
	"github.com/c360studio/vector/llm"
	"github.com/c360studio/vector/report"
	"github.com/c360studio/vector/tui"
	"github.com/c360studio/vector/usagelog"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "vector"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Hacker News deep dive assistant",
		Long: `Vector is a terminal Hacker News assistant.

It lists the current top stories, and for any story you open it fetches the
linked article and the comment tree, asks an LLM for a structured analysis
report, and then answers follow-up questions grounded strictly in that
context. Reports and their context are cached under reports/ so reopening a
story is instant.`,
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start the interactive session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(logLevel)
		},
	}
	runCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.AddCommand(runCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func run(logLevel string) error {
	printBanner()

	// Bootstrap logger for config loading; the file handler replaces it once
	// the log directory is known.
	bootstrap := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	loader := config.NewLoader(bootstrap)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logFile, err := openLogFile(cfg.Logs.Dir)
	if err != nil {
		return err
	}
	defer logFile.Close()

	logger := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: parseLogLevel(logLevel)}))
	slog.SetDefault(logger)
	logger.Info("Vector starting", "version", Version, "provider", cfg.LLM.Provider)

	usage, err := usagelog.New(filepath.Join(cfg.Logs.Dir, "stats", "usage_stats.csv"), usagelog.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("set up usage log: %w", err)
	}

	store, err := report.NewStore(cfg.Reports.Dir, report.WithStoreLogger(logger))
	if err != nil {
		return fmt.Errorf("set up report store: %w", err)
	}

	provider, err := llm.New(cfg.ProviderConfig())
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := checkProviderReady(ctx, provider, os.Stdin, os.Stdout); err != nil {
		return err
	}

	client := hn.NewClient(
		hn.WithHTTPClient(&http.Client{Timeout: cfg.HTTP.Timeout}),
		hn.WithLogger(logger),
	)
	analyzer := analyze.New(provider, analyze.WithUsageLog(usage), analyze.WithLogger(logger))
	processor := report.NewProcessor(store, client, analyzer, report.WithProcessorLogger(logger))
	session := tui.New(client, analyzer, processor, cfg.Dashboard.PageSize, os.Stdin, os.Stdout,
		tui.WithLogger(logger))

	// Follow the active config file so provider and model switches take
	// effect without a restart.
	if configPath := loader.ActiveConfigPath(); configPath != "" {
		watcher := config.NewWatcher(configPath, session.UpdateProvider, logger)
		go func() {
			if err := watcher.Watch(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("Config watcher stopped", "error", err)
			}
		}()
	}

	err = session.Run(ctx)
	logger.Info("Vector shutdown complete")
	return err
}

// checkProviderReady probes the backend and, on failure, lets the user
// decide whether to start anyway.
func checkProviderReady(ctx context.Context, provider llm.Provider, in io.Reader, out io.Writer) error {
	err := llm.CheckReady(ctx, provider)
	if err == nil {
		return nil
	}

	fmt.Fprintf(out, "LLM backend not ready: %v\n", err)
	fmt.Fprint(out, "Attempt to start anyway? (y/N) ")

	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return fmt.Errorf("llm backend not ready: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	if answer == "y" || answer == "yes" {
		return nil
	}
	return fmt.Errorf("llm backend not ready: %w", err)
}

func openLogFile(logsDir string) (*os.File, error) {
	appLogDir := filepath.Join(logsDir, "app")
	if err := os.MkdirAll(appLogDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(appLogDir, "app.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

func parseLogLevel(logLevel string) slog.Level {
	switch strings.ToLower(logLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func printBanner() {
	fmt.Println("╔═══════════════════════════════════════════════╗")
	fmt.Println("║             Vector v" + Version + "                      ║")
	fmt.Println("║      Hacker News Deep Dive Assistant          ║")
	fmt.Println("╚═══════════════════════════════════════════════╝")
}
