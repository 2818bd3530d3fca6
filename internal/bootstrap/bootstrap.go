// Package bootstrap builds the external-service clients shared by the
// command binaries from a loaded config.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/ipc-forecast/internal/adapter/claude"
	"github.com/couchcryptid/ipc-forecast/internal/adapter/gemini"
	"github.com/couchcryptid/ipc-forecast/internal/config"
	"github.com/couchcryptid/ipc-forecast/internal/domain"
	"github.com/couchcryptid/ipc-forecast/internal/observability"
	"github.com/couchcryptid/ipc-forecast/internal/resilience"
)

// LLM is a language model client able to predict, summarize, and classify.
type LLM interface {
	domain.Predictor
	domain.Summarizer
	domain.Classifier
}

// Policy builds the retry, rate-limit, and circuit-breaker policy for one
// service. Every retry is logged and counted.
func Policy(name string, rc config.RetryConfig, cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *resilience.Policy {
	breaker := resilience.NewBreaker(name, resilience.BreakerConfig{
		Timeout:      cfg.BreakerTimeout,
		MinRequests:  cfg.BreakerMinRequests,
		FailureRatio: cfg.BreakerFailureRatio,
	}, logger)

	return resilience.New(name, rc.MaxAttempts,
		resilience.WithBackoff(rc.Initial, rc.Max, 2),
		resilience.WithLimiter(resilience.NewLimiter(rc.RateCalls, rc.RatePeriod)),
		resilience.WithBreaker(breaker),
		resilience.WithRetryHook(func(attempt int, delay time.Duration, err error) {
			metrics.Retries.WithLabelValues(name).Inc()
			logger.Warn("retrying request",
				"service", name,
				"attempt", attempt,
				"delay", delay,
				"error", err,
			)
		}),
	)
}

// NewLLM creates the client for the configured provider.
func NewLLM(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (LLM, error) {
	policy := Policy("llm", cfg.LLM, cfg, metrics, logger)

	switch cfg.LLMProvider {
	case config.ProviderAnthropic:
		return claude.NewClient(claude.Options{
			APIKey:    cfg.AnthropicAPIKey,
			Model:     cfg.LLMModel,
			MaxTokens: cfg.LLMMaxTokens,
			Timeout:   cfg.LLMTimeout,
		}, policy, metrics, logger), nil
	case config.ProviderGemini:
		client, err := gemini.NewClient(ctx, gemini.Options{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.LLMModel,
			Timeout: cfg.LLMTimeout,
		}, policy, metrics, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}
}
