package dashboard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// DataValidator validates widget payloads against their definition.
type DataValidator interface {
	Validate(def WidgetDefinition, data WidgetData) error
}

// JSONSchemaValidator compiles widget schemas and validates flattened payloads.
type JSONSchemaValidator struct {
	mu       sync.RWMutex
	compiled map[WidgetType]*jsonschema.Schema
}

// NewJSONSchemaValidator builds a validator backed by jsonschema v5.
func NewJSONSchemaValidator() *JSONSchemaValidator {
	return &JSONSchemaValidator{
		compiled: make(map[WidgetType]*jsonschema.Schema),
	}
}

// Validate ensures the payload satisfies the widget schema. RawData payloads
// of unknown types are never validated.
func (v *JSONSchemaValidator) Validate(def WidgetDefinition, data WidgetData) error {
	if len(def.Schema) == 0 {
		return nil
	}
	if _, raw := data.(RawData); raw {
		return nil
	}
	schema, err := v.schemaFor(def)
	if err != nil {
		return err
	}
	payload, err := dataToMap(data)
	if err != nil {
		return fmt.Errorf("dashboard: normalize data for %s: %w", def.Type, err)
	}
	if err := schema.Validate(payload); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidWidgetData, def.Type, err)
	}
	return nil
}

func (v *JSONSchemaValidator) schemaFor(def WidgetDefinition) (*jsonschema.Schema, error) {
	v.mu.RLock()
	schema, ok := v.compiled[def.Type]
	v.mu.RUnlock()
	if ok {
		return schema, nil
	}
	data, err := json.Marshal(def.Schema)
	if err != nil {
		return nil, fmt.Errorf("dashboard: marshal schema %s: %w", def.Type, err)
	}
	compiler := jsonschema.NewCompiler()
	name := string(def.Type) + ".json"
	if err := compiler.AddResource(name, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("dashboard: load schema %s: %w", def.Type, err)
	}
	compiled, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("dashboard: compile schema %s: %w", def.Type, err)
	}
	v.mu.Lock()
	v.compiled[def.Type] = compiled
	v.mu.Unlock()
	return compiled, nil
}

func defaultValidator(skipSchemas bool) DataValidator {
	if skipSchemas {
		return noopDataValidator{}
	}
	return NewJSONSchemaValidator()
}

type noopDataValidator struct{}

func (noopDataValidator) Validate(WidgetDefinition, WidgetData) error { return nil }
