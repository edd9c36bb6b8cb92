package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// isYAMLPath reports whether the file extension selects the YAML format.
// Everything else is treated as JSON.
func isYAMLPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// yamlToJSON re-encodes a YAML document as JSON so Parse can push both
// formats through the one strict decoder and get identical unknown-field
// and type errors either way.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}
	j, err := json.Marshal(stringifyKeys(doc))
	if err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}
	return j, nil
}

// stringifyKeys flattens the non-string map keys YAML permits, since JSON
// marshaling rejects them.
func stringifyKeys(v any) any {
	switch x := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[fmt.Sprint(k)] = stringifyKeys(e)
		}
		return m
	case map[string]any:
		for k, e := range x {
			x[k] = stringifyKeys(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = stringifyKeys(e)
		}
		return x
	}
	return v
}
