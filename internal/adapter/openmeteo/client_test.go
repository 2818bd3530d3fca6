package openmeteo

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/ipc-forecast/internal/domain"
	"github.com/couchcryptid/ipc-forecast/internal/observability"
	"github.com/couchcryptid/ipc-forecast/internal/resilience"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const archiveBody = `{
  "latitude": 24.75,
  "longitude": 70.17,
  "daily_units": {"time": "iso8601", "rain_sum": "mm"},
  "daily": {
    "time": ["2024-02-28", "2024-02-29", "2024-03-01"],
    "rain_sum": [1.0, 3.0, null],
    "temperature_2m_mean": [18.0, 20.0, 25.5]
  }
}`

func testQuery() domain.WeatherQuery {
	return domain.WeatherQuery{
		Coordinates: domain.Coordinates{Lat: 24.74468, Lon: 70.17041},
		Start:       time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		End:         time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC),
		Variables:   []string{"rain_sum", "temperature_2m_mean"},
	}
}

func testClient(baseURL string, attempts int) *Client {
	return NewClient(
		Options{BaseURL: baseURL, Timezone: "Asia/Karachi", Timeout: 5 * time.Second},
		resilience.New(service, attempts, resilience.WithBackoff(time.Millisecond, time.Millisecond, 1)),
		observability.NewMetricsForTesting(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func TestClient_MonthlyAverages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "24.7447", q.Get("latitude"))
		assert.Equal(t, "70.1704", q.Get("longitude"))
		assert.Equal(t, "2024-02-01", q.Get("start_date"))
		assert.Equal(t, "2024-11-01", q.Get("end_date"))
		assert.Equal(t, "rain_sum,temperature_2m_mean", q.Get("daily"))
		assert.Equal(t, "Asia/Karachi", q.Get("timezone"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(archiveBody))
	}))
	defer srv.Close()

	got, err := testClient(srv.URL, 1).MonthlyAverages(context.Background(), testQuery())
	require.NoError(t, err)

	want := domain.WeatherMonths{
		"2024-02": {"rain_sum": 2, "temperature_2m_mean": 19},
		"2024-03": {"temperature_2m_mean": 25.5},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MonthlyAverages mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_MonthlyAverages_EmptyTime(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"daily":{"time":[]}}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 1).MonthlyAverages(context.Background(), testQuery())
	require.ErrorIs(t, err, domain.ErrWeatherUnavailable)
}

func TestClient_MonthlyAverages_MissingDaily(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"latitude":24.75}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 3).MonthlyAverages(context.Background(), testQuery())
	require.ErrorIs(t, err, domain.ErrWeatherUnavailable)
	assert.Equal(t, int32(1), calls.Load(), "malformed responses are not retried")
}

func TestClient_MonthlyAverages_MismatchedLengths(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"daily":{"time":["2024-03-01","2024-03-02"],"rain_sum":[1.0]}}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 1).MonthlyAverages(context.Background(), testQuery())
	require.ErrorIs(t, err, domain.ErrWeatherUnavailable)
	assert.Contains(t, err.Error(), "daily.rain_sum")
}

func TestClient_MonthlyAverages_RateLimitedThenOK(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(archiveBody))
	}))
	defer srv.Close()

	got, err := testClient(srv.URL, 5).MonthlyAverages(context.Background(), testQuery())
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_MonthlyAverages_BadRequestNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":true,"reason":"Parameter 'daily' is invalid"}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 5).MonthlyAverages(context.Background(), testQuery())
	require.ErrorIs(t, err, domain.ErrWeatherUnavailable)
	assert.True(t, resilience.IsPermanent(err))
	assert.Equal(t, int32(1), calls.Load())
}
