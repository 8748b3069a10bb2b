// Package config reads process settings from environment variables, with
// an optional .env file for development.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all process settings, populated from environment variables.
type Config struct {
	LogLevel  string
	LogFormat string

	// Upstream endpoints. Defaults point at the Environment Canada
	// production hosts; tests and mirrors override them.
	WaterofficeDisclaimerURL string
	WaterofficeDataURL       string
	DatamartBaseURL          string

	HTTPTimeout   time.Duration
	MaxSkipRate   float64
	MaxConcurrent int
	CacheSize     int

	// Watch consumer settings.
	KafkaBrokers       []string
	KafkaTopic         string
	KafkaGroupIDPrefix string
	QueuesDir          string
	WatchLifetime      time.Duration

	HTTPAddr        string
	ShutdownTimeout time.Duration
}

// Load reads configuration from the environment, applying defaults where
// unset. A .env file in the working directory is honoured when present.
func Load() (*Config, error) {
	_ = godotenv.Load() // ignore missing file

	httpTimeout, err := parseDuration("ECGET_HTTP_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	watchLifetime, err := parseDuration("ECGET_WATCH_LIFETIME", "900s")
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDuration("ECGET_SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	maxSkipRate, err := parseMaxSkipRate()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "json"),

		WaterofficeDisclaimerURL: envOrDefault("ECGET_WATEROFFICE_DISCLAIMER_URL", ""),
		WaterofficeDataURL:       envOrDefault("ECGET_WATEROFFICE_DATA_URL", ""),
		DatamartBaseURL:          envOrDefault("ECGET_DATAMART_BASE_URL", ""),

		HTTPTimeout:   httpTimeout,
		MaxSkipRate:   maxSkipRate,
		MaxConcurrent: parsePositiveInt("ECGET_MAX_CONCURRENT", 4),
		CacheSize:     parsePositiveInt("ECGET_CACHE_SIZE", 256),

		KafkaBrokers:       parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:         envOrDefault("KAFKA_TOPIC", "datamart-notifications"),
		KafkaGroupIDPrefix: envOrDefault("KAFKA_GROUP_ID_PREFIX", "ecget"),
		QueuesDir:          envOrDefault("ECGET_QUEUES_DIR", "./queues"),
		WatchLifetime:      watchLifetime,

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		ShutdownTimeout: shutdownTimeout,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func parseMaxSkipRate() (float64, error) {
	s := os.Getenv("ECGET_MAX_SKIP_RATE")
	if s == "" {
		return 0.5, nil
	}
	rate, err := strconv.ParseFloat(s, 64)
	if err != nil || rate < 0 || rate > 1 {
		return 0, errors.New("ECGET_MAX_SKIP_RATE must be a fraction between 0 and 1")
	}
	return rate, nil
}
