package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg = applyDefaults(cfg)

	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("expected :8080, got %s", cfg.HTTP.Addr)
	}
	if cfg.Cache.SnapshotTTL != time.Minute {
		t.Errorf("expected 1m snapshot ttl, got %v", cfg.Cache.SnapshotTTL)
	}
	if cfg.DB.ConnectAttempts != 3 {
		t.Errorf("expected 3 connect attempts, got %d", cfg.DB.ConnectAttempts)
	}
	if cfg.Scan.LookbackDays != 5 || cfg.Scan.UniverseSize != 50 {
		t.Errorf("unexpected scan defaults: %+v", cfg.Scan)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestConfig_ApplyEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("WATCHLIST", "TCS,INFY")
	t.Setenv("SCAN_USE_INTRADAY", "true")
	t.Setenv("UPSTREAM_RPS", "1.5")
	t.Setenv("SCAN_RUN_ON_START", "true")

	cfg := Config{}
	cfg = applyEnv(cfg)

	if cfg.HTTP.Addr != ":9090" {
		t.Errorf("expected :9090, got %s", cfg.HTTP.Addr)
	}
	if len(cfg.Scan.SeedWatchlist) != 2 || !cfg.Scan.UseIntraday || !cfg.Scan.RunOnStart {
		t.Errorf("unexpected scan env: %+v", cfg.Scan)
	}
	if cfg.Upstream.RequestsPerSecond != 1.5 {
		t.Errorf("expected 1.5 rps, got %v", cfg.Upstream.RequestsPerSecond)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
cache:
  historical_ttl: 2h
  history_depth: 15
scan:
  discovery: true
market:
  holidays: ["2024-12-25"]
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Cache.HistoricalTTL != 2*time.Hour || cfg.Cache.HistoryDepth != 15 {
		t.Errorf("unexpected cache config: %+v", cfg.Cache)
	}
	if !cfg.Scan.Discovery || len(cfg.Market.Holidays) != 1 {
		t.Errorf("unexpected config: %+v", cfg)
	}

	if _, err := LoadFromFile(filepath.Join(dir, "missing.yaml")); err != nil {
		t.Errorf("missing file should fall back to defaults: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := applyDefaults(Config{})
	cfg.Cache.HistoryDepth = 3
	cfg.Notifier.Telegram.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error")
	}
}
