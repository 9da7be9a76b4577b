package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/couchcryptid/fire-data-etl/internal/adapter/inpe"
)

// Store drivers.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	SourceBaseURL        string
	SourceTimeout        time.Duration
	SourceMaxConcurrency int

	StoreDriver     string
	StorePath       string
	CommitBatchSize int
	CacheSize       int

	// Publishing is disabled when no brokers are set.
	KafkaBrokers []string
	KafkaTopic   string

	// Scheduled refresh is disabled when the schedule is empty.
	RefreshSchedule string
	RefreshDays     int
}

// PublishEnabled reports whether ingested records go to Kafka.
func (c *Config) PublishEnabled() bool { return len(c.KafkaBrokers) > 0 }

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is loaded first when
// present; variables already set in the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}
	sourceTimeout, err := parsePositiveDuration("SOURCE_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	concurrency, err := parseIntInRange("SOURCE_MAX_CONCURRENCY", 2, 1, 8)
	if err != nil {
		return nil, err
	}
	commitBatch, err := parseIntInRange("COMMIT_BATCH_SIZE", 500, 1, 10000)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseIntInRange("CACHE_SIZE", 64, 1, 100000)
	if err != nil {
		return nil, err
	}
	refreshDays, err := parseIntInRange("REFRESH_DAYS", 2, 1, 31)
	if err != nil {
		return nil, err
	}

	var brokers []string
	if raw := sharedcfg.EnvOrDefault("KAFKA_BROKERS", ""); raw != "" {
		brokers = sharedcfg.ParseBrokers(raw)
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		SourceBaseURL:        sharedcfg.EnvOrDefault("SOURCE_BASE_URL", inpe.DefaultBaseURL),
		SourceTimeout:        sourceTimeout,
		SourceMaxConcurrency: concurrency,

		StoreDriver:     sharedcfg.EnvOrDefault("STORE_DRIVER", StoreSQLite),
		StorePath:       sharedcfg.EnvOrDefault("STORE_PATH", "focos.db"),
		CommitBatchSize: commitBatch,
		CacheSize:       cacheSize,

		KafkaBrokers: brokers,
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "fire-focuses"),

		RefreshSchedule: sharedcfg.EnvOrDefault("REFRESH_SCHEDULE", ""),
		RefreshDays:     refreshDays,
	}

	switch cfg.StoreDriver {
	case StoreSQLite:
		if cfg.StorePath == "" {
			return nil, errors.New("STORE_PATH is required for the sqlite driver")
		}
	case StoreMemory:
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER %q: want sqlite or memory", cfg.StoreDriver)
	}
	if cfg.PublishEnabled() && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	if cfg.RefreshSchedule != "" {
		if _, err := cron.ParseStandard(cfg.RefreshSchedule); err != nil {
			return nil, fmt.Errorf("invalid REFRESH_SCHEDULE: %w", err)
		}
	}

	return cfg, nil
}

func parsePositiveDuration(name, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(name, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive duration", name)
	}
	return d, nil
}

func parseIntInRange(name string, def, lo, hi int) (int, error) {
	raw := sharedcfg.EnvOrDefault(name, "")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: must be an integer in [%d, %d]", name, lo, hi)
	}
	return n, nil
}
