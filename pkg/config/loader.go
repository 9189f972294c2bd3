package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"reflect"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"mlengine/pkg/datacheck"
	"mlengine/pkg/faults"
)

// Load error kinds. Every LoadError also matches faults.ErrConfig.
var (
	ErrEmpty          = errors.New("settings document is empty")
	ErrMalformed      = errors.New("settings document is malformed")
	ErrMissingSection = errors.New("required settings section missing")
	ErrUnknownKeys    = errors.New("unknown settings keys")
	ErrInvalid        = errors.New("invalid settings value")
)

// requiredSections lists the top-level records every document must carry.
var requiredSections = []string{
	"artifacts_root",
	"model",
	"data_ingestion",
	"data_validation_pre_t",
	"data_transformation",
	"data_validation_post_t",
	"data_split",
	"model_preprocessing",
	"model_training",
	"model_validation",
	"model_testing",
}

// LoadError describes why a settings document was rejected.
type LoadError struct {
	Kind   error
	Source string
	Keys   []string
	Err    error
}

func (e *LoadError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "load %s: %v", e.Source, e.Kind)
	if len(e.Keys) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(e.Keys, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Is matches the error kind and faults.ErrConfig.
func (e *LoadError) Is(target error) bool {
	return target == e.Kind || target == faults.ErrConfig
}

// Load reads and validates the settings document at path.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file %s: %w", path, err)
	}
	return LoadBytes(data, path)
}

// LoadBytes validates an in-memory settings document. source names it in errors.
func LoadBytes(data []byte, source string) (*Settings, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &LoadError{Kind: ErrEmpty, Source: source}
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &LoadError{Kind: ErrMalformed, Source: source, Err: err}
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, &LoadError{Kind: ErrEmpty, Source: source}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, &LoadError{Kind: ErrMalformed, Source: source, Err: fmt.Errorf("top level must be a mapping, got %s", root.ShortTag())}
	}

	if missing := missingSections(root); len(missing) > 0 {
		return nil, &LoadError{Kind: ErrMissingSection, Source: source, Keys: missing}
	}
	if unknown := unknownKeys(root, reflect.TypeOf(Settings{}), ""); len(unknown) > 0 {
		return nil, &LoadError{Kind: ErrUnknownKeys, Source: source, Keys: unknown}
	}
	if err := validateSchema(root); err != nil {
		return nil, &LoadError{Kind: ErrInvalid, Source: source, Err: err}
	}

	var s Settings
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, &LoadError{Kind: ErrInvalid, Source: source, Err: err}
	}
	s.applyDefaults()
	if err := s.compileRowRules(); err != nil {
		return nil, &LoadError{Kind: ErrInvalid, Source: source, Err: err}
	}
	return &s, nil
}

func (s *Settings) compileRowRules() error {
	if err := datacheck.CompileRules(s.DataValidationPreT.RowRules); err != nil {
		return fmt.Errorf("data_validation_pre_t.row_rules: %w", err)
	}
	if err := datacheck.CompileRules(s.DataValidationPostT.RowRules); err != nil {
		return fmt.Errorf("data_validation_post_t.row_rules: %w", err)
	}
	return nil
}

func missingSections(root *yaml.Node) []string {
	present := make(map[string]bool, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		present[root.Content[i].Value] = true
	}
	var missing []string
	for _, name := range requiredSections {
		if !present[name] {
			missing = append(missing, name)
		}
	}
	return missing
}

// unknownKeys walks a mapping node against the yaml tags of t and returns the
// dotted names of keys that no field accepts, sorted.
func unknownKeys(node *yaml.Node, t reflect.Type, prefix string) []string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	var out []string
	switch {
	case t.Kind() == reflect.Struct && node.Kind == yaml.MappingNode:
		fields := yamlFields(t)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i].Value, node.Content[i+1]
			name := key
			if prefix != "" {
				name = prefix + "." + key
			}
			ft, ok := fields[key]
			if !ok {
				out = append(out, name)
				continue
			}
			out = append(out, unknownKeys(value, ft, name)...)
		}
	case t.Kind() == reflect.Slice && node.Kind == yaml.SequenceNode:
		for i, item := range node.Content {
			out = append(out, unknownKeys(item, t.Elem(), fmt.Sprintf("%s[%d]", prefix, i))...)
		}
	}
	slices.Sort(out)
	return out
}

// yamlFields maps accepted keys to field types, flattening ",inline" members.
func yamlFields(t reflect.Type) map[string]reflect.Type {
	fields := make(map[string]reflect.Type, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get("yaml")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		if opts == "inline" {
			for k, v := range yamlFields(f.Type) {
				fields[k] = v
			}
			continue
		}
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		fields[name] = f.Type
	}
	return fields
}
