package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

// configFormat picks the decoder from the file extension. Anything that is
// not .yaml/.yml is read as JSON.
func configFormat(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return formatYAML
	default:
		return formatJSON
	}
}

// coerceToJSONBytes returns data as JSON so both formats share the strict
// decoder, along with the detected format.
func coerceToJSONBytes(name string, data []byte) ([]byte, string, error) {
	format := configFormat(name)
	if format == formatJSON {
		return data, format, nil
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, format, fmt.Errorf("yaml config: %w", err)
	}
	out, err := json.Marshal(stringKeys(doc))
	if err != nil {
		return nil, format, fmt.Errorf("yaml config: convert to json: %w", err)
	}
	return out, format, nil
}

// stringKeys rewrites nested maps so every key is a string. Non-string YAML
// keys (`1: x`, `true: y`) are formatted with fmt.Sprint.
func stringKeys(v any) any {
	switch node := v.(type) {
	case map[string]any:
		for k, child := range node {
			node[k] = stringKeys(child)
		}
		return node
	case map[any]any:
		out := make(map[string]any, len(node))
		for k, child := range node {
			out[fmt.Sprint(k)] = stringKeys(child)
		}
		return out
	case []any:
		for i, child := range node {
			node[i] = stringKeys(child)
		}
		return node
	}
	return v
}
