package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ModelExt is the file extension of persisted models.
const ModelExt = ".json"

type envelope struct {
	Name   string          `json:"name"`
	Kind   string          `json:"kind"`
	Params Params          `json:"params"`
	State  json.RawMessage `json:"state"`
}

// Model is a fitted regressor together with its display name and hyperparameters.
type Model struct {
	Name   string
	Params Params
	Regressor
}

// SaveModel writes a fitted regressor to path.
func SaveModel(path string, m *Model) error {
	kind := kindOf(m.Name)
	if kind == "" {
		return fmt.Errorf("%w: %q", ErrUnknownModel, m.Name)
	}
	state, err := json.Marshal(m.Regressor)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", m.Name, err)
	}
	params := m.Params
	if params == nil {
		params = Params{}
	}
	return writeJSON(path, envelope{Name: m.Name, Kind: kind, Params: params, State: state})
}

// LoadModel reads a model written by SaveModel.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode model %s: %w", path, err)
	}
	reg, err := emptyForKind(env.Kind)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := json.Unmarshal(env.State, reg); err != nil {
		return nil, fmt.Errorf("failed to decode %s state in %s: %w", env.Name, path, err)
	}
	return &Model{Name: env.Name, Params: env.Params, Regressor: reg}, nil
}

// LoadModels reads every model file in dir, sorted by file name.
func LoadModels(dir string) ([]*Model, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ModelExt) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	models := make([]*Model, 0, len(names))
	for _, name := range names {
		m, err := LoadModel(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, nil
}

// FileName maps a display name to its file name inside a models directory.
func FileName(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "_") + ModelExt
}
