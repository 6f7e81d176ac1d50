package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	yaml "go.yaml.in/yaml/v3"
)

// coerceToJSONBytes converts YAML and TOML configs to JSON so the strict
// JSON decoder (DisallowUnknownFields) handles every format.
//
// Returns (jsonBytes, format, err) where format is "json", "yaml" or "toml".
func coerceToJSONBytes(path string, data []byte) ([]byte, string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, "yaml", fmt.Errorf("yaml unmarshal: %w", err)
		}
		if v == nil {
			return []byte("{}"), "yaml", nil
		}
		j, err := json.Marshal(normalizeYAML(v))
		if err != nil {
			return nil, "yaml", fmt.Errorf("yaml->json marshal: %w", err)
		}
		return j, "yaml", nil
	case ".toml":
		var v map[string]any
		if err := toml.Unmarshal(data, &v); err != nil {
			return nil, "toml", fmt.Errorf("toml unmarshal: %w", err)
		}
		if v == nil {
			v = map[string]any{}
		}
		j, err := json.Marshal(v)
		if err != nil {
			return nil, "toml", fmt.Errorf("toml->json marshal: %w", err)
		}
		return j, "toml", nil
	default:
		return data, "json", nil
	}
}

// normalizeYAML ensures all map keys are strings so the result can be JSON-marshaled.
func normalizeYAML(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = normalizeYAML(v)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[k] = normalizeYAML(v)
		}
		return m
	case []any:
		for i := range x {
			x[i] = normalizeYAML(x[i])
		}
		return x
	default:
		return in
	}
}
