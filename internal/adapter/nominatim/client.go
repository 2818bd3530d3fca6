// Package nominatim resolves district names to coordinates through the
// OpenStreetMap Nominatim search API.
package nominatim

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

const service = "geocode"

var errNoResults = errors.New("no results")

// Options configures the Nominatim client.
type Options struct {
	BaseURL   string
	UserAgent string
	Country   string
	Timeout   time.Duration
}

// Client implements domain.Geocoder using the Nominatim search endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	country    string
	policy     *resilience.Policy
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Nominatim geocoding client. Every request runs under policy.
func NewClient(opts Options, policy *resilience.Policy, metrics *observability.Metrics, logger *slog.Logger) *Client {
	country := opts.Country
	if country == "" {
		country = domain.Country
	}
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		userAgent:  opts.UserAgent,
		country:    country,
		policy:     policy,
		metrics:    metrics,
		logger:     logger,
	}
}

// Geocode returns the coordinates of the first search hit for the district.
func (c *Client) Geocode(ctx context.Context, district string) (domain.Coordinates, error) {
	coords, err := resilience.Call(ctx, c.policy, func(ctx context.Context) (domain.Coordinates, error) {
		return c.search(ctx, district)
	})
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("geocode %q: %w: %w", district, domain.ErrGeolocation, err)
	}
	return coords, nil
}

func (c *Client) search(ctx context.Context, district string) (domain.Coordinates, error) {
	params := url.Values{
		"q":      {fmt.Sprintf("%s, %s", district, c.country)},
		"format": {"json"},
		"limit":  {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return domain.Coordinates{}, resilience.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.ExternalDuration.WithLabelValues(service).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.ExternalRequests.WithLabelValues(service, "error").Inc()
		return domain.Coordinates{}, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if err := resilience.CheckStatus(service, resp.StatusCode); err != nil {
		c.metrics.ExternalRequests.WithLabelValues(service, "error").Inc()
		return domain.Coordinates{}, err
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		c.metrics.ExternalRequests.WithLabelValues(service, "error").Inc()
		return domain.Coordinates{}, resilience.Permanent(fmt.Errorf("decode response: %w", err))
	}
	if len(places) == 0 {
		c.metrics.ExternalRequests.WithLabelValues(service, "empty").Inc()
		c.logger.Debug("geocode returned no results", "district", district)
		return domain.Coordinates{}, errNoResults
	}

	coords, err := places[0].coordinates()
	if err != nil {
		c.metrics.ExternalRequests.WithLabelValues(service, "error").Inc()
		return domain.Coordinates{}, resilience.Permanent(err)
	}
	c.metrics.ExternalRequests.WithLabelValues(service, "success").Inc()
	return coords, nil
}

// Nominatim API response types.

type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func (p place) coordinates() (domain.Coordinates, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("parse lat %q: %w", p.Lat, err)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("parse lon %q: %w", p.Lon, err)
	}
	return domain.Coordinates{Lat: lat, Lon: lon}, nil
}
