// Command classify tags scraped news articles with locations and food
// security features and appends them to the article dataset.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/ipc-forecast/internal/adapter/csvfile"
	"github.com/couchcryptid/ipc-forecast/internal/bootstrap"
	"github.com/couchcryptid/ipc-forecast/internal/classify"
	"github.com/couchcryptid/ipc-forecast/internal/config"
	"github.com/couchcryptid/ipc-forecast/internal/domain"
	"github.com/couchcryptid/ipc-forecast/internal/observability"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	llm, err := bootstrap.NewLLM(ctx, cfg, metrics, logger)
	if err != nil {
		logger.Error("failed to create llm client", "provider", cfg.LLMProvider, "error", err)
		return 1
	}

	files, err := classify.SourceFiles(cfg.ClassifyInputDir)
	if err != nil {
		logger.Error("failed to list source files", "dir", cfg.ClassifyInputDir, "error", err)
		return 1
	}
	seen, err := csvfile.LoadTitles(cfg.ArticlesPath)
	if err != nil {
		logger.Error("failed to read existing titles", "path", cfg.ArticlesPath, "error", err)
		return 1
	}

	appender, err := csvfile.NewArticleAppender(cfg.ArticlesPath)
	if err != nil {
		logger.Error("failed to open article dataset", "path", cfg.ArticlesPath, "error", err)
		return 1
	}
	defer func() {
		if err := appender.Close(); err != nil {
			logger.Error("article dataset close error", "error", err)
		}
	}()

	svc := classify.New(domain.DefaultReference(), llm, cfg.Workers, logger, metrics)
	stats, err := svc.Run(ctx, files, seen, appender)
	logger.Info("classification finished",
		"files", stats.Files,
		"classified", stats.Classified,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
	)
	if err != nil {
		logger.Error("classification error", "error", err)
		return 1
	}
	return 0
}
