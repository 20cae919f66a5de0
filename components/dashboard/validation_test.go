package dashboard

import (
	"errors"
	"testing"
)

func TestJSONSchemaValidatorRejectsInvalidMetric(t *testing.T) {
	validator := NewJSONSchemaValidator()
	def, ok := NewRegistry().Definition(WidgetMetric)
	if !ok {
		t.Fatalf("expected metric definition")
	}
	valid := MetricData{Title: "Revenue", WorksheetName: "Sheet1", CellAddress: "$B$2", Comparison: ComparisonGreater}
	if err := validator.Validate(def, valid); err != nil {
		t.Fatalf("expected valid metric, got %v", err)
	}
	for _, addr := range []string{"", "A1:B2", "B0", "ABCD1", "1A"} {
		bad := valid
		bad.CellAddress = addr
		err := validator.Validate(def, bad)
		if !errors.Is(err, ErrInvalidWidgetData) {
			t.Fatalf("expected ErrInvalidWidgetData for %q, got %v", addr, err)
		}
	}
	missingSheet := valid
	missingSheet.WorksheetName = ""
	if err := validator.Validate(def, missingSheet); err == nil {
		t.Fatalf("expected validation error for missing worksheet")
	}
}

func TestJSONSchemaValidatorCachesCompiledSchemas(t *testing.T) {
	validator := NewJSONSchemaValidator()
	def := WidgetDefinition{
		Type:   "demo",
		Schema: map[string]any{"type": "object"},
	}
	if err := validator.Validate(def, TextData{}); err != nil {
		t.Fatalf("unexpected error validating data: %v", err)
	}
	if len(validator.compiled) != 1 {
		t.Fatalf("expected schema cache to contain 1 entry, got %d", len(validator.compiled))
	}
	if err := validator.Validate(def, TextData{Content: "x"}); err != nil {
		t.Fatalf("unexpected error on cached validation: %v", err)
	}
	if len(validator.compiled) != 1 {
		t.Fatalf("expected schema cache to remain 1 entry, got %d", len(validator.compiled))
	}
}

func TestJSONSchemaValidatorSkipsRawData(t *testing.T) {
	validator := NewJSONSchemaValidator()
	def := WidgetDefinition{
		Type:   "custom",
		Schema: map[string]any{"type": "object", "required": []string{"never"}},
	}
	if err := validator.Validate(def, RawData{Type: "custom", Raw: []byte(`{"a":1}`)}); err != nil {
		t.Fatalf("expected raw payloads to pass through, got %v", err)
	}
}
