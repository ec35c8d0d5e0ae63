package format

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Write encodes a command result for --format. "" and "json" print JSON (indented
// when pretty), "yaml" prints YAML and "text" prints a table for Tabular values.
func Write(w io.Writer, v any, format string, pretty bool) error {
	switch format {
	case "", "json":
		return WriteJSON(w, v, pretty)
	case "yaml":
		return WriteYAML(w, v)
	case "text":
		return WriteText(w, v)
	}
	return fmt.Errorf("unknown format: %s (want json, yaml or text)", format)
}

// WriteJSON prints v as a single JSON document and a trailing newline.
func WriteJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// WriteYAML prints v as YAML with the same keys the JSON output uses: v goes through
// encoding/json first and the generic result is what yaml.v3 sees.
func WriteYAML(w io.Writer, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
