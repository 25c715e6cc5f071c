// Command leadwatch is the form-submission capture agent.
//
// Usage:
//
//	leadwatch -config leadwatch.yaml        # watch pages from YAML config
//	leadwatch -url https://example.com \
//	          -collector https://c.test/h   # quick single-page watch
//	leadwatch -scan https://example.com     # static form scan, no browser
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gushwork/leadwatch"
	"github.com/gushwork/leadwatch/internal/extract"
	"github.com/gushwork/leadwatch/internal/scan"
)

func main() {
	configPath := flag.String("config", "", "path to leadwatch.yaml config file")
	singleURL := flag.String("url", "", "watch a single URL")
	collectorURL := flag.String("collector", "", "collector endpoint for -url mode")
	authToken := flag.String("token", "", "shared-secret token for -url mode")
	scanURL := flag.String("scan", "", "scan a single URL for static forms and exit")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *singleURL, *collectorURL, *authToken, *scanURL); err != nil {
		logger.Error("leadwatch: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, singleURL, collectorURL, authToken, scanURL string) error {
	if scanURL != "" {
		return runScan(ctx, scanURL)
	}

	if singleURL != "" {
		if collectorURL == "" {
			return fmt.Errorf("-url mode requires -collector")
		}
		cfg := &leadwatch.Config{
			Collector: leadwatch.CollectorConfig{URL: collectorURL, AuthToken: authToken},
			Pages:     []leadwatch.PageConfig{{URL: singleURL}},
		}
		cfg.ApplyDefaults()
		return runAgent(ctx, logger, cfg)
	}

	if configPath != "" {
		cfg, err := leadwatch.LoadConfigFile(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return runAgent(ctx, logger, cfg)
	}

	fmt.Fprintln(os.Stderr, "usage: leadwatch -config <file> | -url <url> -collector <url> | -scan <url>")
	os.Exit(1)
	return nil
}

func runAgent(ctx context.Context, logger *slog.Logger, cfg *leadwatch.Config) error {
	if cfg.Verbose {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	agent := leadwatch.New(cfg, logger)
	if err := agent.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	<-ctx.Done()
	agent.Stop()
	return nil
}

func runScan(ctx context.Context, url string) error {
	s := scan.New(nil, extract.DefaultRules(""))
	report, err := s.Page(ctx, url)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
