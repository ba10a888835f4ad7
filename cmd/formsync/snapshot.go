package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/formsync-dev/formsync/pkg/formdata"
)

// loadSnapshot reads a snapshot file. YAML is detected by extension,
// everything else is parsed as JSON.
func loadSnapshot(path string) (formdata.FormData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return formdata.FromAny(doc).Map, nil

	default:
		snap := formdata.FormData{}
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return snap, nil
	}
}

// parseScalar interprets a command-line literal: null, booleans, and
// numbers keep their type, quoted strings are unquoted, everything else
// stays a string.
func parseScalar(raw string) *formdata.Value {
	switch raw {
	case "null":
		return formdata.Scalar(nil)
	case "true":
		return formdata.Scalar(true)
	case "false":
		return formdata.Scalar(false)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return formdata.Scalar(f)
	}
	if len(raw) >= 2 && raw[0] == '"' {
		if s, err := strconv.Unquote(raw); err == nil {
			return formdata.Scalar(s)
		}
	}
	return formdata.Scalar(raw)
}

// formatValue renders one diff side for the text table.
func formatValue(v *formdata.Value) string {
	if v == nil {
		return "-"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// printJSON pretty-prints v to stdout.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
