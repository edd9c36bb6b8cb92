package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.yaml", `
log:
  level: debug
  console: false
loop:
  base_period: 50ms
history:
  enabled: true
  retention: 1h
heater:
  max: 80
  hold_time: 5s
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("log.level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Log.ConsoleEnabled() {
		t.Fatal("log.console should be disabled")
	}
	if cfg.Loop.BasePeriod != "50ms" {
		t.Fatalf("loop.base_period = %q, want 50ms", cfg.Loop.BasePeriod)
	}
	if !cfg.History.Enabled {
		t.Fatal("history.enabled should be true")
	}
	if cfg.Heater.Max != 80 {
		t.Fatalf("heater.max = %v, want 80", cfg.Heater.Max)
	}
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json",
		`{"loop":{"base_period":"10ms"},"heater":{"proportional":0.5}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Loop.BasePeriod != "10ms" {
		t.Fatalf("loop.base_period = %q, want 10ms", cfg.Loop.BasePeriod)
	}
	if cfg.Heater.Proportional != 0.5 {
		t.Fatalf("heater.proportional = %v, want 0.5", cfg.Heater.Proportional)
	}
}

func TestLoadYMLExtension(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.yml", `
loop:
  base_period: 25ms
history:
  enabled: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Loop.BasePeriod != "25ms" {
		t.Fatalf("loop.base_period = %q, want 25ms", cfg.Loop.BasePeriod)
	}
	if !cfg.History.Enabled {
		t.Fatal("history.enabled should be true")
	}
}

func TestConsoleDefaultsToEnabled(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.yaml", `loop: {base_period: 100ms}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Log.ConsoleEnabled() {
		t.Fatal("console should default to enabled")
	}
}

func TestUnknownFieldRejected(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.yaml", `loop: {tick_rate: 100ms}`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestBadDurationRejected(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.yaml", `loop: {base_period: fast}`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "loop.base_period") {
		t.Fatalf("error should name the field path, got: %v", err)
	}
}

func TestTrailingDataRejected(t *testing.T) {
	t.Parallel()
	if _, err := Parse("config.json", []byte(`{"loop":{}} {"log":{}}`)); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestParseDurationHelpers(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		def  time.Duration
		want time.Duration
		err  bool
	}{
		{name: "empty uses default", raw: "", def: time.Second, want: time.Second},
		{name: "explicit", raw: "250ms", def: time.Second, want: 250 * time.Millisecond},
		{name: "invalid", raw: "soon", def: time.Second, err: true},
		{name: "negative", raw: "-1s", def: time.Second, err: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := DurationOrDefault("test.field", tt.raw, tt.def)
			if tt.err {
				if err == nil {
					t.Fatalf("DurationOrDefault(%q) expected error", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("DurationOrDefault(%q): %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}
