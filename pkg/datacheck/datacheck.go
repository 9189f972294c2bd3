// Package datacheck validates every row of a CSV file against a record schema
// and optional CEL rules.
package datacheck

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"mlengine/pkg/dataset"
)

// Record kinds.
const (
	StudentRecord     = "student"
	TransformedRecord = "student_transformed"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

// ErrRowInvalid is wrapped by every row level failure.
var ErrRowInvalid = errors.New("row failed validation")

// RowError names the failing line of the file (the header is line 1).
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() []error {
	return []error{ErrRowInvalid, e.Err}
}

type rule struct {
	expr string
	prg  cel.Program
}

// Checker validates frames against one record kind.
type Checker struct {
	kind   string
	schema *jsonschema.Schema
	types  map[string]string
	rules  []rule
}

// New compiles the schema for kind and every CEL rule. Rules see the row as `row`.
func New(kind string, rules []string) (*Checker, error) {
	schema, err := compileSchema(kind)
	if err != nil {
		return nil, err
	}

	compiled, err := compileRules(rules)
	if err != nil {
		return nil, err
	}
	return &Checker{kind: kind, schema: schema, types: columnTypes(schema), rules: compiled}, nil
}

// CompileRules reports the first rule that does not compile, without reading any data.
func CompileRules(rules []string) error {
	_, err := compileRules(rules)
	return err
}

func compileRules(rules []string) ([]rule, error) {
	if len(rules) == 0 {
		return nil, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("row", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}
	out := make([]rule, 0, len(rules))
	for _, expr := range rules {
		ast, issues := env.Compile(expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("CEL compile error in %q: %w", expr, issues.Err())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("CEL program error in %q: %w", expr, err)
		}
		out = append(out, rule{expr: expr, prg: prg})
	}
	return out, nil
}

func compileSchema(kind string) (*jsonschema.Schema, error) {
	name := "schemas/" + kind + ".schema.json"
	data, err := schemaFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("unknown record kind %q", kind)
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := "https://mlengine.local/" + name
	if err := c.AddResource(url, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to load %s schema: %w", kind, err)
	}
	schema, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s schema: %w", kind, err)
	}
	return schema, nil
}

// columnTypes maps each declared property to its single JSON type.
func columnTypes(schema *jsonschema.Schema) map[string]string {
	types := make(map[string]string, len(schema.Properties))
	for name, prop := range schema.Properties {
		if len(prop.Types) == 1 {
			types[name] = prop.Types[0]
		}
	}
	return types
}

// Kind returns the record kind this checker validates.
func (c *Checker) Kind() string {
	return c.kind
}

// CheckFile reads a CSV file and checks every row.
func (c *Checker) CheckFile(path string) (int, error) {
	frame, err := dataset.ReadFile(path)
	if err != nil {
		return 0, err
	}
	if err := c.Check(frame); err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return frame.Len(), nil
}

// Check stops at the first failing row.
func (c *Checker) Check(frame *dataset.Frame) error {
	for i := range frame.Rows {
		rec := frame.Record(i)
		if err := c.schema.Validate(c.schemaDoc(rec)); err != nil {
			return &RowError{Line: i + 2, Err: err}
		}
		if err := c.evalRules(typedRow(rec)); err != nil {
			return &RowError{Line: i + 2, Err: err}
		}
	}
	return nil
}

func (c *Checker) evalRules(row map[string]any) error {
	for _, r := range c.rules {
		out, _, err := r.prg.Eval(map[string]any{"row": row})
		if err != nil {
			return fmt.Errorf("rule %q: %w", r.expr, err)
		}
		ok, isBool := out.Value().(bool)
		if !isBool {
			return fmt.Errorf("rule %q: result not boolean", r.expr)
		}
		if !ok {
			return fmt.Errorf("rule %q not satisfied", r.expr)
		}
	}
	return nil
}

var integerCell = regexp.MustCompile(`^-?[0-9]+$`)

// schemaDoc converts cells to the values a JSON decoder would produce.
// The integer/number split is lexical: "72.0" is not an integer and "69" is not a number.
// A cell in the wrong form stays a string so the schema reports the type mismatch.
func (c *Checker) schemaDoc(rec map[string]string) map[string]any {
	doc := make(map[string]any, len(rec))
	for k, v := range rec {
		cell := strings.TrimSpace(v)
		numeric := isNumber(cell)
		switch c.types[k] {
		case "integer":
			numeric = integerCell.MatchString(cell)
		case "number":
			numeric = numeric && !integerCell.MatchString(cell)
		}
		if numeric {
			doc[k] = json.Number(cell)
			continue
		}
		doc[k] = v
	}
	return doc
}

// typedRow converts cells to int64, float64 or string for rule evaluation.
func typedRow(rec map[string]string) map[string]any {
	row := make(map[string]any, len(rec))
	for k, v := range rec {
		cell := strings.TrimSpace(v)
		if n, err := strconv.ParseInt(cell, 10, 64); err == nil {
			row[k] = n
			continue
		}
		if isNumber(cell) {
			f, _ := strconv.ParseFloat(cell, 64)
			row[k] = f
			continue
		}
		row[k] = v
	}
	return row
}

// isNumber accepts decimal literals only; NaN, Inf and hex forms stay strings.
func isNumber(cell string) bool {
	if cell == "" || strings.ContainsAny(cell, "xXnNiI_") {
		return false
	}
	f, err := strconv.ParseFloat(cell, 64)
	return err == nil && !math.IsInf(f, 0)
}
