package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Path is a filesystem path read from the settings document.
// Decoding rejects non-string scalars, blank values and NUL bytes, and cleans the result.
type Path string

var errBadPath = errors.New("invalid path")

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *Path) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode || node.ShortTag() != "!!str" {
		return fmt.Errorf("%w at line %d: expected a string, got %s", errBadPath, node.Line, node.ShortTag())
	}
	parsed, err := ParsePath(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*p = parsed
	return nil
}

// ParsePath validates and cleans a raw path value.
func ParsePath(raw string) (Path, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", fmt.Errorf("%w: empty value", errBadPath)
	}
	if strings.ContainsRune(value, 0) {
		return "", fmt.Errorf("%w: %q contains a NUL byte", errBadPath, value)
	}
	return Path(filepath.Clean(value)), nil
}

func (p Path) String() string {
	return string(p)
}

// Join appends path elements.
func (p Path) Join(elem ...string) string {
	return filepath.Join(append([]string{string(p)}, elem...)...)
}

// ResolveUnder returns p unchanged when absolute, otherwise p joined under base.
// A relative p that already starts with base is returned as is.
func (p Path) ResolveUnder(base Path) string {
	if filepath.IsAbs(string(p)) || base == "" {
		return string(p)
	}
	if rel, err := filepath.Rel(string(base), string(p)); err == nil && !strings.HasPrefix(rel, "..") {
		return string(p)
	}
	return filepath.Join(string(base), string(p))
}
