package config

import (
	"encoding/json"
	"os"
	"time"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	DataDir  string `json:"dataDir"`
	HTTPAddr string `json:"httpAddr"`
	Fsync    string `json:"fsync"`
	// FsyncIntervalMS is the group-commit window when Fsync is "interval".
	FsyncIntervalMS int           `json:"fsyncIntervalMs"`
	LogLevel        string        `json:"logLevel"`
	LogFormat       string        `json:"logFormat"`
	Kafka           KafkaConfig   `json:"kafka"`
	Worker          WorkerConfig  `json:"worker"`
	Plant           PlantConfig   `json:"plant"`
	Tracing         TracingConfig `json:"tracing"`
}

// FsyncInterval returns the group-commit window as a duration.
func (c Config) FsyncInterval() time.Duration {
	return time.Duration(c.FsyncIntervalMS) * time.Millisecond
}

// KafkaConfig names the brokers and the consumer group of this process.
type KafkaConfig struct {
	Brokers []string `json:"brokers"`
	GroupID string   `json:"groupId"`
}

// WorkerConfig tunes the relay workers.
type WorkerConfig struct {
	WarmUpSeconds  int `json:"warmUpSeconds"`
	PollSeconds    int `json:"pollSeconds"`
	BackoffSeconds int `json:"backoffSeconds"`
	// DedupWindow is the number of response ids the inbox remembers, 0
	// disables duplicate detection.
	DedupWindow int `json:"dedupWindow"`
}

// WarmUp returns the warm-up delay as a duration.
func (w WorkerConfig) WarmUp() time.Duration { return time.Duration(w.WarmUpSeconds) * time.Second }

// Poll returns the idle interval as a duration.
func (w WorkerConfig) Poll() time.Duration { return time.Duration(w.PollSeconds) * time.Second }

// Backoff returns the failure backoff as a duration.
func (w WorkerConfig) Backoff() time.Duration { return time.Duration(w.BackoffSeconds) * time.Second }

// PlantConfig tunes the plant process.
type PlantConfig struct {
	MaxFillLevel      int `json:"maxFillLevel"`
	ProcessingDelayMS int `json:"processingDelayMs"`
}

// ProcessingDelay returns the simulated processing latency as a duration.
func (p PlantConfig) ProcessingDelay() time.Duration {
	return time.Duration(p.ProcessingDelayMS) * time.Millisecond
}

// TracingConfig selects the OTLP trace export target. An empty endpoint
// disables export.
type TracingConfig struct {
	OTLPEndpoint string `json:"otlpEndpoint"`
	Insecure     bool   `json:"insecure"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		DataDir:         DefaultDataDir(),
		HTTPAddr:        ":8080",
		Fsync:           "interval",
		FsyncIntervalMS: 5,
		LogLevel:        "info",
		LogFormat:       "text",
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			GroupID: "dispatch",
		},
		Worker: WorkerConfig{
			WarmUpSeconds:  10,
			PollSeconds:    1,
			BackoffSeconds: 10,
			DedupWindow:    256,
		},
		Plant: PlantConfig{
			MaxFillLevel:      100,
			ProcessingDelayMS: 500,
		},
	}
}

// Load reads configuration from a JSON file. If path is empty, returns
// defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
