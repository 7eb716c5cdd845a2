package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("Addr = %q, want :8080", cfg.Addr)
	}
	if cfg.MinResolution != 8 || cfg.MaxResolution != 12 {
		t.Fatalf("resolution bounds = [%d,%d], want [8,12]", cfg.MinResolution, cfg.MaxResolution)
	}
	if cfg.CellLimit != 15 {
		t.Fatalf("CellLimit = %d, want 15", cfg.CellLimit)
	}
	if cfg.PolygonCellMult != 100 {
		t.Fatalf("PolygonCellMult = %d, want 100", cfg.PolygonCellMult)
	}
	if cfg.PopulationTTL != 240*time.Second {
		t.Fatalf("PopulationTTL = %v, want 240s", cfg.PopulationTTL)
	}
	if cfg.WaitBaseSeconds != 240 {
		t.Fatalf("WaitBaseSeconds = %d, want 240", cfg.WaitBaseSeconds)
	}
	if cfg.Populator.Driver != "kafka" {
		t.Fatalf("Populator.Driver = %q, want kafka", cfg.Populator.Driver)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "elevations.yaml")
	body := []byte("cell_limit: 30\npopulation_ttl: 1m\npopulator:\n  driver: http\n  webhook_url: http://populator.local/run\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("CELL_LIMIT", "45")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// env beats the file, the file beats defaults
	if cfg.CellLimit != 45 {
		t.Fatalf("CellLimit = %d, want 45", cfg.CellLimit)
	}
	if cfg.PopulationTTL != time.Minute {
		t.Fatalf("PopulationTTL = %v, want 1m", cfg.PopulationTTL)
	}
	if cfg.Populator.Driver != "http" || cfg.Populator.WebhookURL != "http://populator.local/run" {
		t.Fatalf("populator overlay not applied: %+v", cfg.Populator)
	}
	if cfg.MaxResolution != 12 {
		t.Fatalf("MaxResolution = %d, want default 12", cfg.MaxResolution)
	}
}

func TestLoadBadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(path, []byte(":\n\t- nope"), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	if _, err := Load(); err == nil {
		t.Fatal("Load accepted a malformed config file")
	}
}

func TestLoadClamps(t *testing.T) {
	t.Setenv("MIN_RESOLUTION", "9")
	t.Setenv("MAX_RESOLUTION", "7")
	t.Setenv("CELL_LIMIT", "-3")
	t.Setenv("ESTIMATED_WAIT", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MinResolution != 8 || cfg.MaxResolution != 12 {
		t.Fatalf("inverted bounds not reset: [%d,%d]", cfg.MinResolution, cfg.MaxResolution)
	}
	if cfg.CellLimit != 15 {
		t.Fatalf("CellLimit = %d, want clamped 15", cfg.CellLimit)
	}
	if cfg.WaitBaseSeconds != 240 {
		t.Fatalf("WaitBaseSeconds = %d, want clamped 240", cfg.WaitBaseSeconds)
	}
}

func TestKafkaBrokerList(t *testing.T) {
	p := PopulatorCfg{Brokers: "broker-1:9092, broker-2:9092,,broker-3:9092 "}
	got := p.KafkaBrokerList()
	want := []string{"broker-1:9092", "broker-2:9092", "broker-3:9092"}
	if len(got) != len(want) {
		t.Fatalf("brokers = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("brokers[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
