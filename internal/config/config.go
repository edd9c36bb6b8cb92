// Package config loads the automat daemon configuration.
//
// Configs are JSON or YAML files. YAML is accepted by coercing it to JSON so
// both formats go through the same strict decoder (unknown fields and
// trailing data are rejected). All durations are Go duration strings
// (e.g. "100ms", "10s", "1m").
//
// Runtime reconfiguration is deliberately not supported: task periods are
// multiples of the base period computed once at registration, so the loop
// must be rebuilt to change them. Load once, build the loop, run.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

type Config struct {
	Log     LogConfig     `json:"log"`
	Loop    LoopConfig    `json:"loop"`
	History HistoryConfig `json:"history,omitempty"`
	Heater  HeaterConfig  `json:"heater,omitempty"`
}

type LogConfig struct {
	Level   string        `json:"level,omitempty"`
	Console *bool         `json:"console,omitempty"`
	File    FileLogConfig `json:"file,omitempty"`
}

type FileLogConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}

// LoopConfig controls the scheduler.
//
// Defaults (when fields are omitted/zero):
//   - base_period: "100ms"
type LoopConfig struct {
	BasePeriod string `json:"base_period,omitempty"`
}

// HistoryConfig controls the sqlite tick recorder.
//
// Defaults (when fields are omitted/zero):
//   - path: "./automat-history.db"
//   - retention: "24h"
//   - prune_spec: "@hourly"
//   - buffer: 64
type HistoryConfig struct {
	Enabled   bool   `json:"enabled"`
	Path      string `json:"path,omitempty"`
	Retention string `json:"retention,omitempty"`
	PruneSpec string `json:"prune_spec,omitempty"`
	Buffer    int    `json:"buffer,omitempty"`
}

// HeaterConfig parametrizes the demo heater program. The zero value is
// filled with the reference program's constants; see internal/heater.
type HeaterConfig struct {
	ControllerPeriod string `json:"controller_period,omitempty"`
	ProgrammerPeriod string `json:"programmer_period,omitempty"`

	Ramp     float64 `json:"ramp,omitempty"` // degrees per millisecond
	Max      float64 `json:"max,omitempty"`
	HoldTime string  `json:"hold_time,omitempty"`
	Finish   float64 `json:"finish,omitempty"`

	Proportional float64 `json:"proportional,omitempty"`
	Integral     float64 `json:"integral,omitempty"`
	Differential float64 `json:"differential,omitempty"`
}

// ConsoleEnabled defaults to true when the field is omitted.
func (l LogConfig) ConsoleEnabled() bool {
	return l.Console == nil || *l.Console
}

// Load reads, decodes, and validates the config at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(path, b)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes config bytes. The path is used only to pick the format by
// extension: YAML is re-encoded as JSON first so both formats share the
// strict decoder below.
func Parse(path string, data []byte) (*Config, error) {
	if isYAMLPath(path) {
		jb, err := yamlToJSON(data)
		if err != nil {
			return nil, err
		}
		data = jb
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("invalid config: trailing data")
		}
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate parses every duration field once so malformed values surface at
// load time rather than deep inside service construction.
func (c *Config) validate() error {
	fields := []struct {
		path string
		raw  string
	}{
		{"loop.base_period", c.Loop.BasePeriod},
		{"history.retention", c.History.Retention},
		{"heater.controller_period", c.Heater.ControllerPeriod},
		{"heater.programmer_period", c.Heater.ProgrammerPeriod},
		{"heater.hold_time", c.Heater.HoldTime},
	}
	for _, f := range fields {
		if _, err := DurationField(f.path, f.raw); err != nil {
			return err
		}
	}
	return nil
}
