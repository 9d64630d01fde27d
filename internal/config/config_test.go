package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("default http addr")
	}
	if cfg.Worker.WarmUp() != 10*time.Second {
		t.Fatalf("default warm up")
	}
	if cfg.Plant.MaxFillLevel != 100 {
		t.Fatalf("default max fill level")
	}
	if cfg.Plant.ProcessingDelay() != 500*time.Millisecond {
		t.Fatalf("default processing delay")
	}
	if len(cfg.Kafka.Brokers) == 0 {
		t.Fatalf("default brokers")
	}
	if cfg.FsyncInterval() != 5*time.Millisecond {
		t.Fatalf("default fsync interval: %v", cfg.FsyncInterval())
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "mcd.json")
	data := []byte(`{"httpAddr":":9999","kafka":{"brokers":["broker-1:9092","broker-2:9092"],"groupId":"plant"},"worker":{"warmUpSeconds":2},"plant":{"maxFillLevel":250}}`)
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Fatalf("expected :9999")
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.GroupID != "plant" {
		t.Fatalf("kafka overlay: %+v", cfg.Kafka)
	}
	if cfg.Worker.WarmUpSeconds != 2 {
		t.Fatalf("expected 2")
	}
	if cfg.Plant.MaxFillLevel != 250 {
		t.Fatalf("expected 250")
	}
	// untouched fields keep defaults
	if cfg.Worker.PollSeconds != 1 {
		t.Fatalf("poll default lost")
	}
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("defaults expected")
	}
}

func TestFromEnv(t *testing.T) {
	cfg := Default()
	os.Setenv("MCD_HTTP_ADDR", ":7070")
	os.Setenv("MCD_FSYNC_INTERVAL_MS", "20")
	os.Setenv("MCD_KAFKA_BROKERS", "a:9092, b:9092")
	os.Setenv("MCD_WORKER_WARMUP_SECONDS", "0")
	os.Setenv("MCD_PLANT_PROCESSING_DELAY_MS", "0")
	t.Cleanup(func() {
		os.Unsetenv("MCD_HTTP_ADDR")
		os.Unsetenv("MCD_FSYNC_INTERVAL_MS")
		os.Unsetenv("MCD_KAFKA_BROKERS")
		os.Unsetenv("MCD_WORKER_WARMUP_SECONDS")
		os.Unsetenv("MCD_PLANT_PROCESSING_DELAY_MS")
	})
	FromEnv(&cfg)
	if cfg.HTTPAddr != ":7070" {
		t.Fatalf("env override addr")
	}
	if cfg.FsyncInterval() != 20*time.Millisecond {
		t.Fatalf("env override fsync interval: %v", cfg.FsyncInterval())
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "b:9092" {
		t.Fatalf("env override brokers: %+v", cfg.Kafka.Brokers)
	}
	if cfg.Worker.WarmUpSeconds != 0 {
		t.Fatalf("env override warm up")
	}
	if cfg.Plant.ProcessingDelayMS != 0 {
		t.Fatalf("env override delay")
	}
}
