package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.ServerURL = "http://oracle.local"
	cfg.Token = "tok"
	cfg.Group = "printers"
	cfg.MachineID = "printer-1"
	return cfg
}

// ── Validate ─────────────────────────────────────────────────────────────────

func TestValidate_DefaultsNeedOracleSettings(t *testing.T) {
	if err := Defaults().Validate(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for defaults, got %v", err)
	}
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]func(*Config){
		"zero tick":       func(c *Config) { c.TickInterval = 0 },
		"zero filter":     func(c *Config) { c.RemovalFilter = 0 },
		"negative extend": func(c *Config) { c.SessionExtendTicks = -1 },
		"no retries":      func(c *Config) { c.HardwareRetries = 0 },
		"missing pin":     func(c *Config) { c.Pins.Relay = "" },
		"duplicate pin":   func(c *Config) { c.Pins.Green = c.Pins.Red },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

// ── Layering ─────────────────────────────────────────────────────────────────

func TestFromEnv_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "station.yaml")
	yml := `
server_url: http://from-file
token: file-token
group: lasers
machine_id: laser-1
require_card: false
removal_filter: 5s
pins:
  relay: GPIO12
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatalf("write yaml: %v", err)
	}

	t.Setenv("PORTUNUS_CONFIG", path)
	t.Setenv("PORTUNUS_TOKEN", "env-token")
	t.Setenv("PORTUNUS_TICK_INTERVAL", "50ms")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}

	if cfg.ServerURL != "http://from-file" {
		t.Errorf("expected server url from file, got %q", cfg.ServerURL)
	}
	if cfg.Token != "env-token" {
		t.Errorf("expected env to override token, got %q", cfg.Token)
	}
	if cfg.RequireCard {
		t.Error("expected require_card=false from file")
	}
	if cfg.RemovalFilter != 5*time.Second {
		t.Errorf("expected removal filter 5s, got %s", cfg.RemovalFilter)
	}
	if cfg.TickInterval != 50*time.Millisecond {
		t.Errorf("expected tick 50ms, got %s", cfg.TickInterval)
	}
	if cfg.Pins.Relay != "GPIO12" {
		t.Errorf("expected relay pin from file, got %q", cfg.Pins.Relay)
	}
	if cfg.Pins.Red != Defaults().Pins.Red {
		t.Errorf("expected unset pins to keep defaults, got %q", cfg.Pins.Red)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected layered config to validate, got %v", err)
	}
}

func TestFromEnv_MissingFile(t *testing.T) {
	t.Setenv("PORTUNUS_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestFromEnv_BadValuesFallBack(t *testing.T) {
	t.Setenv("PORTUNUS_CONFIG", "")
	t.Setenv("PORTUNUS_STOP_FILTER", "soon")
	t.Setenv("PORTUNUS_SESSION_EXTEND_TICKS", "-4")
	t.Setenv("PORTUNUS_REQUIRE_CARD", "maybe")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	d := Defaults()
	if cfg.StopFilter != d.StopFilter {
		t.Errorf("expected default stop filter, got %s", cfg.StopFilter)
	}
	if cfg.SessionExtendTicks != d.SessionExtendTicks {
		t.Errorf("expected default extend ticks, got %d", cfg.SessionExtendTicks)
	}
	if cfg.RequireCard != d.RequireCard {
		t.Error("expected default require_card")
	}
}

func TestOracleFromEnv(t *testing.T) {
	t.Setenv("PORTUNUS_KNOWN_MACHINES", "printer-1, laser-1 ,")
	t.Setenv("PORTUNUS_ALLOW_ALL", "1")

	o := OracleFromEnv()
	if len(o.KnownMachines) != 2 || o.KnownMachines[1] != "laser-1" {
		t.Errorf("unexpected known machines %v", o.KnownMachines)
	}
	if !o.AllowAll {
		t.Error("expected allow all")
	}
	if o.HTTPAddr != ":8090" {
		t.Errorf("expected default addr, got %q", o.HTTPAddr)
	}
}
