package config

import (
	"os"
	"strconv"
	"time"
)

// FromEnv overlays FINTECH_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("FINTECH_DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("FINTECH_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("FINTECH_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("FINTECH_QUEUE_NAME"); v != "" {
		cfg.QueueName = v
	}
	if v := os.Getenv("FINTECH_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}
	if v := os.Getenv("FINTECH_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxRetries = n
		}
	}
	if v := os.Getenv("FINTECH_VISIBILITY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.VisibilityTimeout = Duration(d)
		}
	}
	if v := os.Getenv("FINTECH_REAP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ReapInterval = Duration(d)
		}
	}
	if v := os.Getenv("FINTECH_MONITOR_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.MonitorInterval = Duration(d)
		}
	}
	if v := os.Getenv("FINTECH_FSYNC"); v != "" {
		cfg.Fsync = v
	}
	if v := os.Getenv("FINTECH_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("FINTECH_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}
