package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL        = "https://www.ncei.noaa.gov/data/global-hourly/archive/csv/"
	defaultStationHistory = "https://www.ncei.noaa.gov/pub/data/noaa/isd-history.csv"
)

// Config holds all fetcher settings, populated from environment variables.
// The list of years to process comes from the CLI, not from here.
type Config struct {
	BaseURL        string // archive endpoint, always "/"-terminated
	StationHistory string // station history CSV: local path or http(s) URL
	WorkingRoot    string
	TargetCountry  string

	// Retry policy for one year's download.
	MaxAttempts       int
	BaseDelay         time.Duration
	BackoffMultiplier float64
	MaxDelay          time.Duration
	HeaderTimeout     time.Duration

	HTTPAddr  string // metrics/health server; empty disables it
	LogLevel  string
	LogFormat string

	// Kafka year-result publishing (enabled when brokers are set).
	KafkaBrokers    []string
	KafkaEventsTopic string
}

// EventsEnabled reports whether year results should be published to Kafka.
func (c *Config) EventsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	maxAttempts, err := parsePositiveInt("FETCH_MAX_ATTEMPTS", 10)
	if err != nil {
		return nil, err
	}

	baseDelay, err := parsePositiveDuration("FETCH_BASE_DELAY", 30*time.Second)
	if err != nil {
		return nil, err
	}

	maxDelay, err := parsePositiveDuration("FETCH_MAX_DELAY", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	headerTimeout, err := parsePositiveDuration("FETCH_HEADER_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}

	multiplier := 2.0
	if s := os.Getenv("FETCH_BACKOFF_MULTIPLIER"); s != "" {
		multiplier, err = strconv.ParseFloat(s, 64)
		if err != nil || multiplier < 1 {
			return nil, errors.New("invalid FETCH_BACKOFF_MULTIPLIER")
		}
	}

	cfg := &Config{
		BaseURL:        normalizeBaseURL(envOrDefault("ISD_BASE_URL", defaultBaseURL)),
		StationHistory: envOrDefault("STATION_HISTORY", defaultStationHistory),
		WorkingRoot:    envOrDefault("WORKING_ROOT", "isd-data"),
		TargetCountry:  strings.ToUpper(envOrDefault("TARGET_COUNTRY", "US")),

		MaxAttempts:       maxAttempts,
		BaseDelay:         baseDelay,
		BackoffMultiplier: multiplier,
		MaxDelay:          maxDelay,
		HeaderTimeout:     headerTimeout,

		HTTPAddr:  os.Getenv("HTTP_ADDR"),
		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "text"),

		KafkaBrokers:     parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaEventsTopic: eventsTopic(),
	}

	if cfg.TargetCountry == "" {
		return nil, errors.New("TARGET_COUNTRY is required")
	}
	if cfg.StationHistory == "" {
		return nil, errors.New("STATION_HISTORY is required")
	}
	if cfg.EventsEnabled() && cfg.KafkaEventsTopic == "" {
		return nil, errors.New("KAFKA_BROKERS is set but KAFKA_EVENTS_TOPIC is empty")
	}

	return cfg, nil
}

// eventsTopic defaults only when the variable is unset, so an explicitly
// blank topic is caught by validation instead of silently replaced.
func eventsTopic() string {
	if v, ok := os.LookupEnv("KAFKA_EVENTS_TOPIC"); ok {
		return strings.TrimSpace(v)
	}
	return "isd-year-results"
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parsePositiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return n, nil
}

func parsePositiveDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return d, nil
}

func parseBrokers(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}

func normalizeBaseURL(u string) string {
	if !strings.HasSuffix(u, "/") {
		return u + "/"
	}
	return u
}
