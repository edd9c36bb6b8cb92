package config

import (
	"fmt"
	"strings"
	"time"
)

// All durations in the config are plain Go duration strings, parsed once at
// load time under the load-once contract. An omitted field reads as "" and
// means "use the built-in default", so the example config may leave out
// anything it does not override.

// DurationField parses one duration value. Empty is allowed and yields 0;
// anything else must be a valid, non-negative duration. Errors name the
// dotted config path of the offending field.
func DurationField(path, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: negative duration %q", path, raw)
	}
	return d, nil
}

// DurationOrDefault resolves a duration field against its built-in default:
// empty (or zero) yields def.
func DurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := DurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
