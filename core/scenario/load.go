package scenario

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a scenario from a JSON or YAML file, applies defaults and
// validates it.
func Load(path string) (Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return Scenario{}, err
	}
	defer func() { _ = f.Close() }()
	s, err := Decode(f, formatOf(path))
	if err != nil {
		return Scenario{}, fmt.Errorf("%s: %w", path, err)
	}
	if s.ID == "" {
		s.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}

// Decode reads a scenario in the given format ("yaml", "yml" or "json").
func Decode(r io.Reader, format string) (Scenario, error) {
	var s Scenario
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&s); err != nil {
			return s, err
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&s); err != nil {
			return s, err
		}
	default:
		return s, fmt.Errorf("unsupported format: %s", format)
	}
	s.SetDefaults()
	return s, s.Validate()
}

// Encode writes s in the given format.
func Encode(w io.Writer, s Scenario, format string) error {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// Save writes s to path, choosing the format from the extension.
func Save(path string, s Scenario) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, s, formatOf(path)); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func formatOf(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}
