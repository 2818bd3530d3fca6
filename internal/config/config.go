package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/ipc-forecast/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// LLM providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

var defaultModels = map[string]string{
	ProviderAnthropic: "claude-sonnet-4-20250514",
	ProviderGemini:    "gemini-2.0-flash",
}

// RetryConfig configures the retry policy and shared rate limit for one
// external service.
type RetryConfig struct {
	MaxAttempts int           `validate:"min=1"`
	Initial     time.Duration `validate:"gte=0"`
	Max         time.Duration `validate:"gtefield=Initial"`
	RateCalls   int           `validate:"min=1"`
	RatePeriod  time.Duration `validate:"gt=0"`
}

// Config holds all service settings, populated from environment variables.
type Config struct {
	ArticlesPath string `validate:"required"`
	ResultsPath  string `validate:"required"`
	ResponsesDir string
	ReportPath   string

	PredictionPeriod      string `validate:"required"`
	PredictionDate        time.Time
	BackdateMonths        int `validate:"min=1,max=120"`
	NumberOfArticles      int `validate:"min=1"`
	SampleSeed            uint64
	Workers               int `validate:"min=1,max=256"`
	PromptLegacyTitleEcho bool
	SummarizeArticles     bool

	LLMProvider     string        `validate:"oneof=anthropic gemini"`
	LLMModel        string        `validate:"required"`
	LLMMaxTokens    int           `validate:"min=1"`
	LLMTimeout      time.Duration `validate:"gt=0"`
	AnthropicAPIKey string
	GeminiAPIKey    string

	Geocode RetryConfig
	Weather RetryConfig
	LLM     RetryConfig

	// Nominatim geocoding configuration.
	GeocodeURL       string        `validate:"url"`
	GeocodeUserAgent string        `validate:"required"`
	GeocodeCountry   string        `validate:"required"`
	GeocodeTimeout   time.Duration `validate:"gt=0"`
	GeocodeCacheSize int           `validate:"min=1"`

	// Open-Meteo archive configuration.
	WeatherURL       string        `validate:"url"`
	WeatherTimezone  string        `validate:"required"`
	WeatherVariables []string      `validate:"min=1,dive,required"`
	WeatherTimeout   time.Duration `validate:"gt=0"`
	WeatherCacheDir  string

	BreakerTimeout      time.Duration `validate:"gt=0"`
	BreakerMinRequests  uint32        `validate:"min=1"`
	BreakerFailureRatio float64       `validate:"gt=0,lte=1"`

	// Classification input: a directory of scraped-article JSON files.
	ClassifyInputDir string

	KafkaBrokers      []string
	KafkaResultsTopic string
	DatabaseURL       string

	HTTPAddr        string
	LogLevel        string `validate:"oneof=debug info warn error"`
	LogFormat       string `validate:"oneof=json text"`
	ShutdownTimeout time.Duration
	Schedule        string
}

// Load reads configuration from environment variables, applying defaults where unset.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	predictionDate, err := time.Parse("2006-01-02", sharedcfg.EnvOrDefault("PREDICTION_DATE", "2024-11-01"))
	if err != nil {
		return nil, fmt.Errorf("invalid PREDICTION_DATE: %w", err)
	}

	cfg := &Config{
		ArticlesPath:     sharedcfg.EnvOrDefault("ARTICLES_PATH", filepath.Join("outputs", "merged_df_new.csv")),
		ResponsesDir:     os.Getenv("RESPONSES_DIR"),
		ReportPath:       os.Getenv("REPORT_PATH"),
		PredictionPeriod: sharedcfg.EnvOrDefault("PREDICTION_PERIOD", "Nov-Mar,2024-2025"),
		PredictionDate:   predictionDate,
		LLMProvider:      strings.ToLower(sharedcfg.EnvOrDefault("LLM_PROVIDER", ProviderAnthropic)),
		AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeocodeURL:       sharedcfg.EnvOrDefault("GEOCODE_URL", "https://nominatim.openstreetmap.org"),
		GeocodeUserAgent: sharedcfg.EnvOrDefault("GEOCODE_USER_AGENT", "DistrictIPCClassifier/1.0"),
		GeocodeCountry:   sharedcfg.EnvOrDefault("GEOCODE_COUNTRY", "Pakistan"),
		WeatherURL:       sharedcfg.EnvOrDefault("WEATHER_URL", "https://archive-api.open-meteo.com/v1/archive"),
		WeatherTimezone:  sharedcfg.EnvOrDefault("WEATHER_TIMEZONE", "Asia/Karachi"),
		WeatherCacheDir:  os.Getenv("WEATHER_CACHE_DIR"),
		ClassifyInputDir: sharedcfg.EnvOrDefault("CLASSIFY_INPUT_DIR", "articles"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		HTTPAddr:         sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:         strings.ToLower(sharedcfg.EnvOrDefault("LOG_LEVEL", "info")),
		LogFormat:        strings.ToLower(sharedcfg.EnvOrDefault("LOG_FORMAT", "json")),
		ShutdownTimeout:  shutdownTimeout,
		Schedule:         os.Getenv("SCHEDULE"),
	}
	cfg.KafkaResultsTopic = sharedcfg.EnvOrDefault("KAFKA_RESULTS_TOPIC", "ipc-forecasts")
	cfg.LLMModel = sharedcfg.EnvOrDefault("LLM_MODEL", defaultModels[cfg.LLMProvider])
	cfg.ResultsPath = sharedcfg.EnvOrDefault("RESULTS_PATH",
		filepath.Join("outputs", fmt.Sprintf("results_ipc_%s_%s.csv", cfg.LLMModel, cfg.PredictionPeriod)))

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(v)
	}
	if v := os.Getenv("WEATHER_VARIABLES"); v != "" {
		cfg.WeatherVariables = splitList(v)
	} else {
		cfg.WeatherVariables = slices.Clone(domain.DefaultWeatherVariables)
	}

	ints := []struct {
		key string
		def int
		dst *int
	}{
		{"BACKDATE_MONTHS", 9, &cfg.BackdateMonths},
		{"NUMBER_OF_ARTICLES", 30, &cfg.NumberOfArticles},
		{"WORKERS", 15, &cfg.Workers},
		{"LLM_MAX_TOKENS", 4096, &cfg.LLMMaxTokens},
		{"GEOCODE_CACHE_SIZE", 1000, &cfg.GeocodeCacheSize},
	}
	for _, f := range ints {
		if *f.dst, err = parseInt(f.key, f.def); err != nil {
			return nil, err
		}
	}

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"LLM_TIMEOUT", "120s", &cfg.LLMTimeout},
		{"GEOCODE_TIMEOUT", "10s", &cfg.GeocodeTimeout},
		{"WEATHER_TIMEOUT", "30s", &cfg.WeatherTimeout},
		{"BREAKER_TIMEOUT", "60s", &cfg.BreakerTimeout},
	}
	for _, f := range durations {
		if *f.dst, err = parseDuration(f.key, f.def); err != nil {
			return nil, err
		}
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"PROMPT_LEGACY_TITLE_ECHO", &cfg.PromptLegacyTitleEcho},
		{"SUMMARIZE_ARTICLES", &cfg.SummarizeArticles},
	}
	for _, f := range bools {
		if *f.dst, err = parseBool(f.key); err != nil {
			return nil, err
		}
	}

	if cfg.SampleSeed, err = parseUint(sharedcfg.EnvOrDefault("SAMPLE_SEED", "0"), "SAMPLE_SEED", 64); err != nil {
		return nil, err
	}
	minRequests, err := parseUint(sharedcfg.EnvOrDefault("BREAKER_MIN_REQUESTS", "3"), "BREAKER_MIN_REQUESTS", 32)
	if err != nil {
		return nil, err
	}
	cfg.BreakerMinRequests = uint32(minRequests)
	if cfg.BreakerFailureRatio, err = strconv.ParseFloat(sharedcfg.EnvOrDefault("BREAKER_FAILURE_RATIO", "0.6"), 64); err != nil {
		return nil, fmt.Errorf("invalid BREAKER_FAILURE_RATIO: %w", err)
	}

	if cfg.Geocode, err = parseRetry("GEOCODE", 5, "60s", "300s", 100, "60s"); err != nil {
		return nil, err
	}
	if cfg.Weather, err = parseRetry("WEATHER", 5, "60s", "300s", 100, "60s"); err != nil {
		return nil, err
	}
	if cfg.LLM, err = parseRetry("LLM", 5, "60s", "200s", 30, "60s"); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// APIKey returns the credential for the configured LLM provider.
func (c *Config) APIKey() string {
	if c.LLMProvider == ProviderGemini {
		return c.GeminiAPIKey
	}
	return c.AnthropicAPIKey
}

func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.APIKey() == "" {
		return fmt.Errorf("%s_API_KEY is required when LLM_PROVIDER=%s", strings.ToUpper(c.LLMProvider), c.LLMProvider)
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaResultsTopic == "" {
		return errors.New("KAFKA_RESULTS_TOPIC is required when KAFKA_BROKERS is set")
	}
	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			return fmt.Errorf("invalid SCHEDULE: %w", err)
		}
	}
	return nil
}

func parseRetry(prefix string, attempts int, initial, maxDelay string, calls int, period string) (RetryConfig, error) {
	var rc RetryConfig
	var err error
	if rc.MaxAttempts, err = parseInt(prefix+"_MAX_ATTEMPTS", attempts); err != nil {
		return rc, err
	}
	if rc.Initial, err = parseDuration(prefix+"_RETRY_INITIAL", initial); err != nil {
		return rc, err
	}
	if rc.Max, err = parseDuration(prefix+"_RETRY_MAX", maxDelay); err != nil {
		return rc, err
	}
	if rc.RateCalls, err = parseInt(prefix+"_RATE_CALLS", calls); err != nil {
		return rc, err
	}
	if rc.RatePeriod, err = parseDuration(prefix+"_RATE_PERIOD", period); err != nil {
		return rc, err
	}
	return rc, nil
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func parseUint(s, key string, bits int) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, bits)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}

func parseBool(key string) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
