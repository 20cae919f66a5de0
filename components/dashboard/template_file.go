package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	templateVersionV1 = "1"
	// TemplateFileVersion exposes the current template file format version.
	TemplateFileVersion = templateVersionV1
)

// TemplateDocument models a YAML/JSON template file.
type TemplateDocument struct {
	Version        string           `json:"version" yaml:"version"`
	Name           string           `json:"name" yaml:"name"`
	Description    string           `json:"description,omitempty" yaml:"description,omitempty"`
	Widgets        []TemplateWidget `json:"widgets" yaml:"widgets"`
	Layouts        Layouts          `json:"layouts,omitempty" yaml:"layouts,omitempty"`
	BorderSettings *BorderSettings  `json:"borderSettings,omitempty" yaml:"borderSettings,omitempty"`
	Source         string           `json:"-" yaml:"-"`
}

// TemplateWidget is one widget entry; data is decoded per type.
type TemplateWidget struct {
	ID   string         `json:"id" yaml:"id"`
	Type WidgetType     `json:"type" yaml:"type"`
	Data map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
}

// ReadTemplateFile loads a template file from disk.
func ReadTemplateFile(path string) (*TemplateDocument, error) {
	f, err := os.Open(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("dashboard: open template %s: %w", path, err)
	}
	defer f.Close()
	doc, err := DecodeTemplateFile(f)
	if err != nil {
		return nil, fmt.Errorf("dashboard: decode template %s: %w", path, err)
	}
	doc.Source = path
	return doc, nil
}

// DecodeTemplateFile reads a template document from any reader. JSON is
// accepted as a YAML subset.
func DecodeTemplateFile(r io.Reader) (*TemplateDocument, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	var doc TemplateDocument
	if err := decoder.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("dashboard: template is empty")
		}
		return nil, fmt.Errorf("dashboard: parse template: %w", err)
	}
	doc.applyDefaults()
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate ensures the document satisfies required fields.
func (doc *TemplateDocument) Validate() error {
	if doc.Version != templateVersionV1 {
		return fmt.Errorf("dashboard: unsupported template version %q", doc.Version)
	}
	if doc.Name == "" {
		return fmt.Errorf("dashboard: template name is required")
	}
	seen := make(map[string]struct{}, len(doc.Widgets))
	titles := 0
	for idx, widget := range doc.Widgets {
		if widget.ID == "" {
			return fmt.Errorf("dashboard: template widget at index %d is missing id", idx)
		}
		if widget.Type == "" {
			return fmt.Errorf("dashboard: template widget %s missing type", widget.ID)
		}
		if _, exists := seen[widget.ID]; exists {
			return fmt.Errorf("dashboard: template duplicates widget id %s", widget.ID)
		}
		seen[widget.ID] = struct{}{}
		if widget.Type == WidgetTitle {
			titles++
		}
	}
	if titles > 1 {
		return ErrTitleExists
	}
	return nil
}

// Template converts the document into a Template value.
func (doc *TemplateDocument) Template() (Template, error) {
	widgets := make([]Widget, 0, len(doc.Widgets))
	for _, tw := range doc.Widgets {
		raw, err := json.Marshal(tw.Data)
		if err != nil {
			return Template{}, fmt.Errorf("dashboard: template widget %s: %w", tw.ID, err)
		}
		data, err := DecodeWidgetData(tw.Type, raw)
		if err != nil {
			return Template{}, fmt.Errorf("dashboard: template widget %s: %w", tw.ID, err)
		}
		widgets = append(widgets, Widget{ID: tw.ID, Type: tw.Type, Data: data})
	}
	return Template{
		Name:           doc.Name,
		Components:     widgets,
		Layouts:        doc.Layouts.Clone(),
		BorderSettings: doc.BorderSettings.Clone(),
	}, nil
}

func (doc *TemplateDocument) applyDefaults() {
	if doc.Version == "" {
		doc.Version = templateVersionV1
	}
}
