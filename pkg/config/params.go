package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// DefaultCVFolds is the fold count used when a params entry omits cv.
const DefaultCVFolds = 5

// SearchSpec is the hyperparameter search configuration for one model.
type SearchSpec struct {
	GridSearch   map[string][]float64 `yaml:"grid_search"`
	RandomSearch map[string][]float64 `yaml:"random_search"`
	NIter        int                  `yaml:"n_iter"`
	CV           int                  `yaml:"cv"`
}

// Random reports whether the entry asks for a randomized search.
func (s SearchSpec) Random() bool {
	return len(s.RandomSearch) > 0
}

// Grid returns the parameter grid to search, preferring random_search when both are set.
func (s SearchSpec) Grid() map[string][]float64 {
	if s.Random() {
		return s.RandomSearch
	}
	return s.GridSearch
}

// Params maps model display names to their search configuration.
type Params map[string]SearchSpec

// Models returns the configured model names in sorted order.
func (p Params) Models() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadParams reads the hyperparameter document at path.
func LoadParams(path string) (Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read params file %s: %w", path, err)
	}
	return ParseParams(data, path)
}

// ParseParams decodes a hyperparameter document, rejecting unknown keys.
func ParseParams(data []byte, source string) (Params, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &LoadError{Kind: ErrEmpty, Source: source}
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var p Params
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &LoadError{Kind: ErrEmpty, Source: source}
		}
		return nil, &LoadError{Kind: ErrInvalid, Source: source, Err: err}
	}

	for _, name := range p.Models() {
		spec := p[name]
		if spec.CV == 0 {
			spec.CV = DefaultCVFolds
		}
		if spec.CV < 2 {
			return nil, &LoadError{Kind: ErrInvalid, Source: source, Err: fmt.Errorf("%s: cv must be at least 2, got %d", name, spec.CV)}
		}
		if spec.NIter < 0 {
			return nil, &LoadError{Kind: ErrInvalid, Source: source, Err: fmt.Errorf("%s: n_iter must not be negative", name)}
		}
		for param, values := range spec.Grid() {
			if len(values) == 0 {
				return nil, &LoadError{Kind: ErrInvalid, Source: source, Err: fmt.Errorf("%s: %s has no candidate values", name, param)}
			}
		}
		p[name] = spec
	}
	return p, nil
}
