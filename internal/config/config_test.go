package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://www.ncei.noaa.gov/data/global-hourly/archive/csv/", cfg.BaseURL)
	assert.Equal(t, "https://www.ncei.noaa.gov/pub/data/noaa/isd-history.csv", cfg.StationHistory)
	assert.Equal(t, "isd-data", cfg.WorkingRoot)
	assert.Equal(t, "US", cfg.TargetCountry)
	assert.Equal(t, 10, cfg.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.BaseDelay)
	assert.Equal(t, 2.0, cfg.BackoffMultiplier)
	assert.Equal(t, 5*time.Minute, cfg.MaxDelay)
	assert.Equal(t, 60*time.Second, cfg.HeaderTimeout)
	assert.Empty(t, cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "isd-year-results", cfg.KafkaEventsTopic)
	assert.False(t, cfg.EventsEnabled())
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("ISD_BASE_URL", "https://mirror.example.org/isd") // no trailing slash
	t.Setenv("STATION_HISTORY", "/data/isd-history.csv")
	t.Setenv("WORKING_ROOT", "/scratch/isd")
	t.Setenv("TARGET_COUNTRY", "ca")
	t.Setenv("FETCH_MAX_ATTEMPTS", "3")
	t.Setenv("FETCH_BASE_DELAY", "250ms")
	t.Setenv("FETCH_BACKOFF_MULTIPLIER", "1.5")
	t.Setenv("FETCH_MAX_DELAY", "10s")
	t.Setenv("FETCH_HEADER_TIMEOUT", "5s")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("KAFKA_EVENTS_TOPIC", "year-results")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://mirror.example.org/isd/", cfg.BaseURL)
	assert.Equal(t, "/data/isd-history.csv", cfg.StationHistory)
	assert.Equal(t, "/scratch/isd", cfg.WorkingRoot)
	assert.Equal(t, "CA", cfg.TargetCountry)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.BaseDelay)
	assert.Equal(t, 1.5, cfg.BackoffMultiplier)
	assert.Equal(t, 10*time.Second, cfg.MaxDelay)
	assert.Equal(t, 5*time.Second, cfg.HeaderTimeout)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "year-results", cfg.KafkaEventsTopic)
	assert.True(t, cfg.EventsEnabled())
}

func TestLoad_EmptyEventsTopic(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker1:9092")
	t.Setenv("KAFKA_EVENTS_TOPIC", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_EVENTS_TOPIC")
}

func TestLoad_InvalidMaxAttempts(t *testing.T) {
	t.Setenv("FETCH_MAX_ATTEMPTS", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FETCH_MAX_ATTEMPTS")
}

func TestLoad_InvalidBaseDelay(t *testing.T) {
	t.Setenv("FETCH_BASE_DELAY", "soon")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FETCH_BASE_DELAY")
}

func TestLoad_InvalidMultiplier(t *testing.T) {
	t.Setenv("FETCH_BACKOFF_MULTIPLIER", "0.5")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FETCH_BACKOFF_MULTIPLIER")
}
