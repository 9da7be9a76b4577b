package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/fire-data-etl/internal/adapter/inpe"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, inpe.DefaultBaseURL, cfg.SourceBaseURL)
	assert.Equal(t, 30*time.Second, cfg.SourceTimeout)
	assert.Equal(t, 2, cfg.SourceMaxConcurrency)
	assert.Equal(t, StoreSQLite, cfg.StoreDriver)
	assert.Equal(t, "focos.db", cfg.StorePath)
	assert.Equal(t, 500, cfg.CommitBatchSize)
	assert.Equal(t, 64, cfg.CacheSize)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.PublishEnabled())
	assert.Equal(t, "fire-focuses", cfg.KafkaTopic)
	assert.Empty(t, cfg.RefreshSchedule)
	assert.Equal(t, 2, cfg.RefreshDays)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("SOURCE_BASE_URL", "http://mirror.local/diario/")
	t.Setenv("SOURCE_TIMEOUT", "5s")
	t.Setenv("SOURCE_MAX_CONCURRENCY", "4")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("COMMIT_BATCH_SIZE", "100")
	t.Setenv("CACHE_SIZE", "16")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_TOPIC", "focos")
	t.Setenv("REFRESH_SCHEDULE", "*/30 * * * *")
	t.Setenv("REFRESH_DAYS", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "http://mirror.local/diario/", cfg.SourceBaseURL)
	assert.Equal(t, 5*time.Second, cfg.SourceTimeout)
	assert.Equal(t, 4, cfg.SourceMaxConcurrency)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, 100, cfg.CommitBatchSize)
	assert.Equal(t, 16, cfg.CacheSize)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.PublishEnabled())
	assert.Equal(t, "focos", cfg.KafkaTopic)
	assert.Equal(t, "*/30 * * * *", cfg.RefreshSchedule)
	assert.Equal(t, 3, cfg.RefreshDays)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		env   string
		value string
	}{
		{"SOURCE_TIMEOUT", "bad"},
		{"SOURCE_TIMEOUT", "0s"},
		{"SOURCE_MAX_CONCURRENCY", "0"},
		{"SOURCE_MAX_CONCURRENCY", "9"},
		{"COMMIT_BATCH_SIZE", "0"},
		{"COMMIT_BATCH_SIZE", "10001"},
		{"CACHE_SIZE", "-1"},
		{"REFRESH_DAYS", "32"},
		{"REFRESH_DAYS", "two"},
		{"STORE_DRIVER", "postgres"},
		{"REFRESH_SCHEDULE", "every day"},
	}
	for _, tt := range tests {
		t.Run(tt.env+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.env, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.env)
		})
	}
}
