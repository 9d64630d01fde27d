package config

import (
	"os"
	"strconv"
	"strings"
)

// FromEnv overlays MCD_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("MCD_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("MCD_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("MCD_FSYNC"); v != "" {
		cfg.Fsync = v
	}
	if v := os.Getenv("MCD_FSYNC_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FsyncIntervalMS = n
		}
	}
	if v := os.Getenv("MCD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("MCD_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("MCD_KAFKA_BROKERS"); v != "" {
		parts := strings.Split(v, ",")
		cfg.Kafka.Brokers = nil
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cfg.Kafka.Brokers = append(cfg.Kafka.Brokers, p)
			}
		}
	}
	if v := os.Getenv("MCD_KAFKA_GROUP_ID"); v != "" {
		cfg.Kafka.GroupID = v
	}
	if v := os.Getenv("MCD_WORKER_WARMUP_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Worker.WarmUpSeconds = n
		}
	}
	if v := os.Getenv("MCD_WORKER_POLL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Worker.PollSeconds = n
		}
	}
	if v := os.Getenv("MCD_WORKER_BACKOFF_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Worker.BackoffSeconds = n
		}
	}
	if v := os.Getenv("MCD_WORKER_DEDUP_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Worker.DedupWindow = n
		}
	}
	if v := os.Getenv("MCD_PLANT_MAX_FILL_LEVEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Plant.MaxFillLevel = n
		}
	}
	if v := os.Getenv("MCD_PLANT_PROCESSING_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Plant.ProcessingDelayMS = n
		}
	}
	if v := os.Getenv("MCD_OTLP_ENDPOINT"); v != "" {
		cfg.Tracing.OTLPEndpoint = v
	}
	if v := os.Getenv("MCD_OTLP_INSECURE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tracing.Insecure = b
		}
	}
}
