package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

const settingsSchemaURL = "https://mlengine.local/schemas/settings.schema.json"

//go:embed settings.schema.json
var settingsSchemaJSON []byte

var (
	settingsSchema     *jsonschema.Schema
	settingsSchemaErr  error
	settingsSchemaOnce sync.Once
)

func compiledSettingsSchema() (*jsonschema.Schema, error) {
	settingsSchemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(settingsSchemaURL, bytes.NewReader(settingsSchemaJSON)); err != nil {
			settingsSchemaErr = fmt.Errorf("settings schema load failed: %w", err)
			return
		}
		settingsSchema, settingsSchemaErr = c.Compile(settingsSchemaURL)
		if settingsSchemaErr != nil {
			settingsSchemaErr = fmt.Errorf("settings schema compile failed: %w", settingsSchemaErr)
		}
	})
	return settingsSchema, settingsSchemaErr
}

// validateSchema checks the document against the embedded JSON Schema.
// The YAML tree is round-tripped through JSON so numbers arrive as json.Number.
func validateSchema(root *yaml.Node) error {
	schema, err := compiledSettingsSchema()
	if err != nil {
		return err
	}

	var raw any
	if err := root.Decode(&raw); err != nil {
		return fmt.Errorf("failed to decode settings tree: %w", err)
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("settings are not representable as JSON: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(encoded))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("failed to re-read settings JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
