// Package claude implements the free-text prediction protocol and the
// article summarizer and classifier on the Anthropic Messages API.
package claude

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/couchcryptid/ipc-forecast/internal/domain"
	"github.com/couchcryptid/ipc-forecast/internal/observability"
	"github.com/couchcryptid/ipc-forecast/internal/resilience"
)

const service = "llm"

// Options configures the Messages API client.
type Options struct {
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
	// BaseURL overrides the API endpoint. Empty uses the SDK default.
	BaseURL string
}

// Client calls the Anthropic Messages API with temperature 0. The SDK's own
// retries are disabled so the policy alone governs attempts.
type Client struct {
	api       anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
	policy    *resilience.Policy
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewClient creates a Messages API client. Every request runs under policy.
func NewClient(opts Options, policy *resilience.Policy, metrics *observability.Metrics, logger *slog.Logger) *Client {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	return &Client{
		api:       anthropic.NewClient(reqOpts...),
		model:     opts.Model,
		maxTokens: int64(opts.MaxTokens),
		timeout:   opts.Timeout,
		policy:    policy,
		metrics:   metrics,
		logger:    logger,
	}
}

// Predict asks for an IPC phase and extracts it from the free-text answer.
func (c *Client) Predict(ctx context.Context, p domain.Prompt) (*domain.PredictionResult, error) {
	text, err := c.complete(ctx, p)
	if err != nil {
		return nil, err
	}
	return domain.ParseFreeTextPrediction(text)
}

// Summarize condenses the articles in the prompt into a short brief.
func (c *Client) Summarize(ctx context.Context, p domain.Prompt) (string, error) {
	text, err := c.complete(ctx, p)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Classify returns the model's raw answer; the prompt asks for a JSON object.
func (c *Client) Classify(ctx context.Context, p domain.Prompt) (string, error) {
	return c.complete(ctx, p)
}

func (c *Client) complete(ctx context.Context, p domain.Prompt) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.maxTokens,
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(p.User))},
		Temperature: anthropic.Float(0),
	}
	if p.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: p.System}}
	}

	return resilience.Call(ctx, c.policy, func(ctx context.Context) (string, error) {
		if c.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		start := time.Now()
		resp, err := c.api.Messages.New(ctx, params)
		c.metrics.ExternalDuration.WithLabelValues(service).Observe(time.Since(start).Seconds())
		if err != nil {
			c.metrics.ExternalRequests.WithLabelValues(service, "error").Inc()
			return "", classify(err)
		}

		var parts []string
		for _, block := range resp.Content {
			if block.Type == "text" && block.Text != "" {
				parts = append(parts, block.Text)
			}
		}
		if len(parts) == 0 {
			c.metrics.ExternalRequests.WithLabelValues(service, "empty").Inc()
			c.logger.Warn("model returned no text", "model", c.model, "stop_reason", resp.StopReason)
			return "", resilience.Permanent(domain.ErrModelRefusal)
		}

		c.metrics.ExternalRequests.WithLabelValues(service, "success").Inc()
		return strings.Join(parts, "\n"), nil
	})
}

// classify marks API errors that a retry cannot fix as permanent.
func classify(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("messages request: %w", err)
	}
	wrapped := fmt.Errorf("messages request: %w", err)
	switch {
	case apiErr.StatusCode == http.StatusTooManyRequests, apiErr.StatusCode >= 500:
		return wrapped
	case apiErr.StatusCode >= 400:
		return resilience.Permanent(wrapped)
	default:
		return wrapped
	}
}
