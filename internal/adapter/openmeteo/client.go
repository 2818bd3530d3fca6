// Package openmeteo fetches historical daily weather from the Open-Meteo
// archive API and reduces it to monthly means.
package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/ipc-forecast/internal/domain"
	"github.com/couchcryptid/ipc-forecast/internal/observability"
	"github.com/couchcryptid/ipc-forecast/internal/resilience"
)

const service = "weather"

// Options configures the archive client.
type Options struct {
	BaseURL  string
	Timezone string
	Timeout  time.Duration
}

// Client implements domain.WeatherSource against the Open-Meteo archive.
type Client struct {
	httpClient *http.Client
	baseURL    string
	timezone   string
	policy     *resilience.Policy
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an archive client. Every request runs under policy.
func NewClient(opts Options, policy *resilience.Policy, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		baseURL:    opts.BaseURL,
		timezone:   opts.Timezone,
		policy:     policy,
		metrics:    metrics,
		logger:     logger,
	}
}

// MonthlyAverages fetches the daily series for q and averages each variable
// per calendar month.
func (c *Client) MonthlyAverages(ctx context.Context, q domain.WeatherQuery) (domain.WeatherMonths, error) {
	series, err := resilience.Call(ctx, c.policy, func(ctx context.Context) (domain.DailySeries, error) {
		return c.fetch(ctx, q)
	})
	if err != nil {
		return nil, fmt.Errorf("weather %.4f,%.4f: %w: %w", q.Lat, q.Lon, domain.ErrWeatherUnavailable, err)
	}
	return domain.AggregateMonthly(series)
}

func (c *Client) fetch(ctx context.Context, q domain.WeatherQuery) (domain.DailySeries, error) {
	params := url.Values{
		"latitude":   {strconv.FormatFloat(q.Lat, 'f', 4, 64)},
		"longitude":  {strconv.FormatFloat(q.Lon, 'f', 4, 64)},
		"start_date": {q.Start.Format(domain.DateLayout)},
		"end_date":   {q.End.Format(domain.DateLayout)},
		"daily":      {strings.Join(q.Variables, ",")},
	}
	if c.timezone != "" {
		params.Set("timezone", c.timezone)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return domain.DailySeries{}, resilience.Permanent(fmt.Errorf("create request: %w", err))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.ExternalDuration.WithLabelValues(service).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.ExternalRequests.WithLabelValues(service, "error").Inc()
		return domain.DailySeries{}, fmt.Errorf("archive request: %w", err)
	}
	defer resp.Body.Close()

	if err := resilience.CheckStatus(service, resp.StatusCode); err != nil {
		c.metrics.ExternalRequests.WithLabelValues(service, "error").Inc()
		return domain.DailySeries{}, err
	}

	var body archiveResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.metrics.ExternalRequests.WithLabelValues(service, "error").Inc()
		return domain.DailySeries{}, resilience.Permanent(fmt.Errorf("decode response: %w", err))
	}

	series, err := body.series(q.Variables)
	if err != nil {
		c.metrics.ExternalRequests.WithLabelValues(service, "error").Inc()
		return domain.DailySeries{}, resilience.Permanent(err)
	}
	c.metrics.ExternalRequests.WithLabelValues(service, "success").Inc()
	c.logger.Debug("weather fetched", "days", len(series.Dates), "lat", q.Lat, "lon", q.Lon)
	return series, nil
}

// Open-Meteo archive response types. The daily block maps "time" and each
// requested variable to a parallel array.

type archiveResponse struct {
	Daily  map[string]json.RawMessage `json:"daily"`
	Error  bool                       `json:"error"`
	Reason string                     `json:"reason"`
}

func (r archiveResponse) series(variables []string) (domain.DailySeries, error) {
	if r.Error {
		return domain.DailySeries{}, fmt.Errorf("archive error: %s", r.Reason)
	}
	rawTime, ok := r.Daily["time"]
	if !ok {
		return domain.DailySeries{}, errors.New("response has no daily.time")
	}

	var s domain.DailySeries
	if err := json.Unmarshal(rawTime, &s.Dates); err != nil {
		return domain.DailySeries{}, fmt.Errorf("decode daily.time: %w", err)
	}

	s.Values = make(map[string][]*float64, len(variables))
	for _, v := range variables {
		raw, ok := r.Daily[v]
		if !ok {
			continue
		}
		var values []*float64
		if err := json.Unmarshal(raw, &values); err != nil {
			return domain.DailySeries{}, fmt.Errorf("decode daily.%s: %w", v, err)
		}
		if len(values) != len(s.Dates) {
			return domain.DailySeries{}, fmt.Errorf("daily.%s has %d values for %d days", v, len(values), len(s.Dates))
		}
		s.Values[v] = values
	}
	return s, nil
}
