// Package gemini implements the structured prediction protocol on the Gemini
// API: the model answers against a JSON response schema.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/ipc-forecast/internal/domain"
	"github.com/couchcryptid/ipc-forecast/internal/observability"
	"github.com/couchcryptid/ipc-forecast/internal/resilience"
	"google.golang.org/genai"
)

const service = "llm"

// Options configures the Gemini client.
type Options struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client calls GenerateContent with temperature 0.
type Client struct {
	api     *genai.Client
	model   string
	timeout time.Duration
	policy  *resilience.Policy
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewClient creates a Gemini API client. Every request runs under policy.
func NewClient(ctx context.Context, opts Options, policy *resilience.Policy, metrics *observability.Metrics, logger *slog.Logger) (*Client, error) {
	api, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{
		api:     api,
		model:   opts.Model,
		timeout: opts.Timeout,
		policy:  policy,
		metrics: metrics,
		logger:  logger,
	}, nil
}

// Predict asks for a schema-constrained {ipc_phase, justification} object.
func (c *Client) Predict(ctx context.Context, p domain.Prompt) (*domain.PredictionResult, error) {
	text, err := c.generate(ctx, p, predictionSchema())
	if err != nil {
		return nil, err
	}
	return domain.ParseStructuredPrediction(text)
}

// Summarize condenses the articles in the prompt into a short brief.
func (c *Client) Summarize(ctx context.Context, p domain.Prompt) (string, error) {
	text, err := c.generate(ctx, p, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Classify returns a schema-constrained {location, relevant_features} object.
func (c *Client) Classify(ctx context.Context, p domain.Prompt) (string, error) {
	return c.generate(ctx, p, classificationSchema())
}

func (c *Client) generate(ctx context.Context, p domain.Prompt, schema *genai.Schema) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0)),
	}
	if p.System != "" {
		config.SystemInstruction = genai.NewContentFromText(p.System, genai.RoleUser)
	}
	if schema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = schema
	}
	contents := []*genai.Content{genai.NewContentFromText(p.User, genai.RoleUser)}

	return resilience.Call(ctx, c.policy, func(ctx context.Context) (string, error) {
		if c.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		start := time.Now()
		resp, err := c.api.Models.GenerateContent(ctx, c.model, contents, config)
		c.metrics.ExternalDuration.WithLabelValues(service).Observe(time.Since(start).Seconds())
		if err != nil {
			c.metrics.ExternalRequests.WithLabelValues(service, "error").Inc()
			return "", classifyError(err)
		}

		text := responseText(resp)
		if text == "" {
			c.metrics.ExternalRequests.WithLabelValues(service, "empty").Inc()
			c.logger.Warn("model returned no candidates", "model", c.model)
			return "", resilience.Permanent(domain.ErrModelRefusal)
		}
		c.metrics.ExternalRequests.WithLabelValues(service, "success").Inc()
		return text, nil
	})
}

// responseText concatenates the text parts of the first candidate that has any.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.Text != "" {
				b.WriteString(part.Text)
			}
		}
		if b.Len() > 0 {
			break
		}
	}
	return b.String()
}

// API errors render as "Error 429, Message: ..., Status: RESOURCE_EXHAUSTED".
var errorCodeRe = regexp.MustCompile(`Error (\d{3}),`)

// classifyError marks client errors other than 429 as permanent.
func classifyError(err error) error {
	wrapped := fmt.Errorf("generate content: %w", err)
	m := errorCodeRe.FindStringSubmatch(err.Error())
	if m == nil {
		return wrapped
	}
	code, _ := strconv.Atoi(m[1])
	if code >= 400 && code < 500 && code != 429 {
		return resilience.Permanent(wrapped)
	}
	return wrapped
}

func predictionSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"ipc_phase": {
				Type:        genai.TypeString,
				Enum:        []string{"1", "2", "3", "4", "5"},
				Description: "Forecast IPC phase, 1 (Minimal) to 5 (Famine).",
			},
			"justification": {
				Type:        genai.TypeString,
				Description: "Evidence from the articles and weather supporting the phase.",
			},
		},
		Required:         []string{"ipc_phase", "justification"},
		PropertyOrdering: []string{"ipc_phase", "justification"},
	}
}

func classificationSchema() *genai.Schema {
	list := func(desc string) *genai.Schema {
		return &genai.Schema{
			Type:        genai.TypeArray,
			Items:       &genai.Schema{Type: genai.TypeString},
			Description: desc,
		}
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"location":          list("Districts, provinces, or Pakistan central to the article."),
			"relevant_features": list("Food-security features from the supplied list."),
		},
		Required: []string{"location", "relevant_features"},
	}
}
