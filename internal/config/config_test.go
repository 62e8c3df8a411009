package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Stream != "MINING" {
		t.Errorf("Expected default stream MINING, got %s", cfg.Stream)
	}
	if cfg.MinerWorkers != 4 {
		t.Errorf("Expected default 4 miner workers, got %d", cfg.MinerWorkers)
	}
	if cfg.BackpressureThreshold != 100 {
		t.Errorf("Expected default backpressure threshold 100, got %d", cfg.BackpressureThreshold)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVICE_NAME", "expr-miner")
	t.Setenv("MINER_WORKERS", "8")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.ServiceName != "expr-miner" {
		t.Errorf("SERVICE_NAME override not applied, got %s", cfg.ServiceName)
	}
	if cfg.MinerWorkers != 8 {
		t.Errorf("MINER_WORKERS override not applied, got %d", cfg.MinerWorkers)
	}
}

func TestLoadDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := "# comment line\nHTTP_ADDR=:9999\n"
	if err := os.WriteFile(envFile, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write env file: %v", err)
	}
	defer os.Unsetenv("HTTP_ADDR")

	cfg, err := Load(envFile)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Errorf("Expected HTTP_ADDR from env file, got %s", cfg.HTTPAddr)
	}
}
