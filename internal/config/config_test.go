package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "sk-test-key"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", testAPIKey)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "outputs/merged_df_new.csv", cfg.ArticlesPath)
	assert.Equal(t, "outputs/results_ipc_claude-sonnet-4-20250514_Nov-Mar,2024-2025.csv", cfg.ResultsPath)
	assert.Equal(t, "Nov-Mar,2024-2025", cfg.PredictionPeriod)
	assert.Equal(t, time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC), cfg.PredictionDate)
	assert.Equal(t, 9, cfg.BackdateMonths)
	assert.Equal(t, 30, cfg.NumberOfArticles)
	assert.Equal(t, 15, cfg.Workers)
	assert.False(t, cfg.PromptLegacyTitleEcho)
	assert.False(t, cfg.SummarizeArticles)

	assert.Equal(t, ProviderAnthropic, cfg.LLMProvider)
	assert.Equal(t, testAPIKey, cfg.APIKey())
	assert.Equal(t, 4096, cfg.LLMMaxTokens)

	assert.Equal(t, RetryConfig{MaxAttempts: 5, Initial: 60 * time.Second, Max: 300 * time.Second, RateCalls: 100, RatePeriod: time.Minute}, cfg.Geocode)
	assert.Equal(t, cfg.Geocode, cfg.Weather)
	assert.Equal(t, RetryConfig{MaxAttempts: 5, Initial: 60 * time.Second, Max: 200 * time.Second, RateCalls: 30, RatePeriod: time.Minute}, cfg.LLM)

	assert.Equal(t, "DistrictIPCClassifier/1.0", cfg.GeocodeUserAgent)
	assert.Equal(t, 1000, cfg.GeocodeCacheSize)
	assert.Len(t, cfg.WeatherVariables, 11)
	assert.Equal(t, "Asia/Karachi", cfg.WeatherTimezone)
	assert.Equal(t, uint32(3), cfg.BreakerMinRequests)
	assert.InDelta(t, 0.6, cfg.BreakerFailureRatio, 1e-9)

	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "ipc-forecasts", cfg.KafkaResultsTopic)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.Schedule)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "Gemini")
	t.Setenv("GEMINI_API_KEY", testAPIKey)
	t.Setenv("RESULTS_PATH", "/tmp/out.csv")
	t.Setenv("PREDICTION_DATE", "2025-04-01")
	t.Setenv("WORKERS", "4")
	t.Setenv("SAMPLE_SEED", "42")
	t.Setenv("SUMMARIZE_ARTICLES", "true")
	t.Setenv("LLM_MAX_ATTEMPTS", "2")
	t.Setenv("LLM_RATE_CALLS", "10")
	t.Setenv("WEATHER_VARIABLES", "rain_sum, temperature_2m_mean")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("SCHEDULE", "0 6 * * 1")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ProviderGemini, cfg.LLMProvider)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLMModel)
	assert.Equal(t, testAPIKey, cfg.APIKey())
	assert.Equal(t, "/tmp/out.csv", cfg.ResultsPath)
	assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), cfg.PredictionDate)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, uint64(42), cfg.SampleSeed)
	assert.True(t, cfg.SummarizeArticles)
	assert.Equal(t, 2, cfg.LLM.MaxAttempts)
	assert.Equal(t, 10, cfg.LLM.RateCalls)
	assert.Equal(t, []string{"rain_sum", "temperature_2m_mean"}, cfg.WeatherVariables)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "0 6 * * 1", cfg.Schedule)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing api key", map[string]string{"ANTHROPIC_API_KEY": ""}, "ANTHROPIC_API_KEY"},
		{"missing gemini key", map[string]string{"LLM_PROVIDER": "gemini"}, "GEMINI_API_KEY"},
		{"unknown provider", map[string]string{"LLM_PROVIDER": "openai"}, "LLMProvider"},
		{"bad prediction date", map[string]string{"PREDICTION_DATE": "Nov 2024"}, "PREDICTION_DATE"},
		{"bad workers", map[string]string{"WORKERS": "many"}, "WORKERS"},
		{"zero workers", map[string]string{"WORKERS": "0"}, "Workers"},
		{"bad retry", map[string]string{"GEOCODE_RETRY_INITIAL": "soon"}, "GEOCODE_RETRY_INITIAL"},
		{"retry max below initial", map[string]string{"WEATHER_RETRY_MAX": "1s"}, "Max"},
		{"negative duration", map[string]string{"LLM_TIMEOUT": "-1s"}, "LLM_TIMEOUT"},
		{"bad bool", map[string]string{"SUMMARIZE_ARTICLES": "maybe"}, "SUMMARIZE_ARTICLES"},
		{"bad seed", map[string]string{"SAMPLE_SEED": "-1"}, "SAMPLE_SEED"},
		{"bad ratio", map[string]string{"BREAKER_FAILURE_RATIO": "2"}, "BreakerFailureRatio"},
		{"bad schedule", map[string]string{"SCHEDULE": "every day"}, "SCHEDULE"},
		{"bad log level", map[string]string{"LOG_LEVEL": "loud"}, "LogLevel"},
		{"bad shutdown timeout", map[string]string{"SHUTDOWN_TIMEOUT": "not-a-duration"}, "SHUTDOWN_TIMEOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ANTHROPIC_API_KEY", testAPIKey)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
