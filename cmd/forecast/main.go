package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/ipc-forecast/internal/adapter/csvfile"
	"github.com/couchcryptid/ipc-forecast/internal/adapter/httpadapter"
	"github.com/couchcryptid/ipc-forecast/internal/adapter/kafka"
	"github.com/couchcryptid/ipc-forecast/internal/adapter/nominatim"
	"github.com/couchcryptid/ipc-forecast/internal/adapter/openmeteo"
	"github.com/couchcryptid/ipc-forecast/internal/adapter/postgres"
	"github.com/couchcryptid/ipc-forecast/internal/bootstrap"
	"github.com/couchcryptid/ipc-forecast/internal/config"
	"github.com/couchcryptid/ipc-forecast/internal/domain"
	"github.com/couchcryptid/ipc-forecast/internal/observability"
	"github.com/couchcryptid/ipc-forecast/internal/pipeline"
	"github.com/couchcryptid/ipc-forecast/internal/report"
	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
)

func main() {
	os.Exit(run())
}

// run wires the service and returns the process exit code.
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

	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				logger.Error("close error", "error", err)
			}
		}
	}()

	geocoder := nominatim.NewCachedGeocoder(nominatim.NewClient(nominatim.Options{
		BaseURL:   cfg.GeocodeURL,
		UserAgent: cfg.GeocodeUserAgent,
		Country:   cfg.GeocodeCountry,
		Timeout:   cfg.GeocodeTimeout,
	}, bootstrap.Policy("geocode", cfg.Geocode, cfg, metrics, logger), metrics, logger), cfg.GeocodeCacheSize, metrics)

	var weather domain.WeatherSource = openmeteo.NewClient(openmeteo.Options{
		BaseURL:  cfg.WeatherURL,
		Timezone: cfg.WeatherTimezone,
		Timeout:  cfg.WeatherTimeout,
	}, bootstrap.Policy("weather", cfg.Weather, cfg, metrics, logger), metrics, logger)
	if cfg.WeatherCacheDir != "" {
		store, err := openmeteo.OpenStore(cfg.WeatherCacheDir)
		if err != nil {
			logger.Error("failed to open weather cache", "dir", cfg.WeatherCacheDir, "error", err)
			return 1
		}
		closers = append(closers, store)
		weather = openmeteo.NewCachedSource(weather, store, clockwork.NewRealClock(), metrics, logger)
		logger.Info("weather cache enabled", "dir", cfg.WeatherCacheDir)
	}

	llm, err := bootstrap.NewLLM(ctx, cfg, metrics, logger)
	if err != nil {
		logger.Error("failed to create llm client", "provider", cfg.LLMProvider, "error", err)
		return 1
	}
	logger.Info("llm client ready", "provider", cfg.LLMProvider, "model", cfg.LLMModel)

	sinks, sinkClosers, err := buildSinks(ctx, cfg, logger)
	closers = append(closers, sinkClosers...)
	if err != nil {
		logger.Error("failed to create result sinks", "error", err)
		return 1
	}

	composer := domain.NewComposer(domain.ComposerOptions{
		BackdateMonths:  cfg.BackdateMonths,
		LegacyTitleEcho: cfg.PromptLegacyTitleEcho,
	})
	p := pipeline.New(pipeline.Deps{
		Reference:  domain.DefaultReference(),
		Geocoder:   geocoder,
		Weather:    weather,
		Predictor:  llm,
		Summarizer: llm,
		Composer:   composer,
		Sinks:      sinks,
	}, pipeline.Options{
		Window:           domain.Window{PredictionStart: cfg.PredictionDate, BackdateMonths: cfg.BackdateMonths},
		PredictionPeriod: cfg.PredictionPeriod,
		NumberOfArticles: cfg.NumberOfArticles,
		Workers:          cfg.Workers,
		Seed:             cfg.SampleSeed,
		Variables:        cfg.WeatherVariables,
		Summarize:        cfg.SummarizeArticles,
	}, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	runOnce := func() error {
		articles, err := csvfile.LoadArticles(cfg.ArticlesPath, logger)
		if err != nil {
			return err
		}
		_, err = p.Run(ctx, articles)
		return err
	}

	exitCode := 0
	if cfg.Schedule == "" {
		if err := runOnce(); err != nil {
			logger.Error("pipeline error", "error", err)
			exitCode = 1
		}
	} else {
		scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
		if _, err := scheduler.AddFunc(cfg.Schedule, func() {
			if err := runOnce(); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		}); err != nil {
			logger.Error("invalid schedule", "schedule", cfg.Schedule, "error", err)
			return 1
		}
		scheduler.Start()
		logger.Info("scheduled runs enabled", "schedule", cfg.Schedule)

		<-ctx.Done()
		logger.Info("shutting down")
		<-scheduler.Stop().Done()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return exitCode
}

// buildSinks returns the CSV result sink plus every optional sink enabled in
// cfg. Closers are returned even on error so that opened sinks are released.
func buildSinks(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]pipeline.ResultSink, []io.Closer, error) {
	sinks := []pipeline.ResultSink{csvfile.NewResultWriter(cfg.ResultsPath)}
	var closers []io.Closer

	if cfg.ResponsesDir != "" {
		sinks = append(sinks, csvfile.NewResponseWriter(cfg.ResponsesDir))
	}
	if cfg.ReportPath != "" {
		sinks = append(sinks, report.NewWriter(cfg.ReportPath))
	}
	if len(cfg.KafkaBrokers) > 0 {
		w := kafka.NewWriter(cfg, logger)
		sinks = append(sinks, w)
		closers = append(closers, w)
		logger.Info("kafka sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaResultsTopic)
	}
	if cfg.DatabaseURL != "" {
		store, err := postgres.Open(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return sinks, closers, err
		}
		closers = append(closers, store)
		if err := store.EnsureSchema(ctx); err != nil {
			return sinks, closers, err
		}
		sinks = append(sinks, store)
		logger.Info("postgres sink enabled")
	}
	return sinks, closers, nil
}
