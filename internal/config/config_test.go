package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conf.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestNewConfigOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
[logger]
log-level = "debug"

[dmx]
universe = 2
refresh = "500ms"

[engine]
tick = "40ms"

[wled.endpoints]
guirlande = "http://10.0.0.5/json/state"

[force-bridge]
url = "http://10.0.0.9"
`)

	cfg, err := NewConfig(path)
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}

	if cfg.Logger.Level != "debug" {
		t.Errorf("Logger.Level = %q", cfg.Logger.Level)
	}
	if cfg.DMX.Universe != 2 {
		t.Errorf("DMX.Universe = %d", cfg.DMX.Universe)
	}
	if cfg.DMX.Refresh.Duration != 500*time.Millisecond {
		t.Errorf("DMX.Refresh = %v", cfg.DMX.Refresh)
	}
	if cfg.Engine.Tick.Duration != 40*time.Millisecond {
		t.Errorf("Engine.Tick = %v", cfg.Engine.Tick)
	}
	// untouched keys keep their defaults
	if cfg.Engine.Backoff.Duration != 100*time.Millisecond {
		t.Errorf("Engine.Backoff = %v", cfg.Engine.Backoff)
	}
	if cfg.WLED.Endpoints["guirlande"] != "http://10.0.0.5/json/state" {
		t.Errorf("WLED endpoint = %q", cfg.WLED.Endpoints["guirlande"])
	}
	if cfg.Force.URL != "http://10.0.0.9" || cfg.Force.Key != "LETMEIN" {
		t.Errorf("Force = %+v", cfg.Force)
	}
}

func TestNewConfigBadDuration(t *testing.T) {
	path := writeFile(t, "[engine]\ntick = \"soon\"\n")
	if _, err := NewConfig(path); err == nil {
		t.Fatal("expected error for malformed duration")
	}
}

func TestNewConfigMissingFile(t *testing.T) {
	cfg, err := NewConfig(filepath.Join(t.TempDir(), "absent.toml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if cfg.HTTP.Listen != ":5000" {
		t.Errorf("defaults not returned with error, Listen = %q", cfg.HTTP.Listen)
	}
}
