package dashboard

import (
	"fmt"
	"slices"
	"sync"
)

// WidgetDefinition describes one widget type: its catalogue metadata, default
// footprint, payload schema and default payload.
type WidgetDefinition struct {
	Type        WidgetType
	Name        string
	Description string
	Category    string
	DefaultSize Size
	// Schema is a JSON schema applied to the flattened payload.
	Schema map[string]any
	// RequiresDetails holds new widgets pending until external binding
	// fields are supplied.
	RequiresDetails bool
	NewData         func() WidgetData
	// NameLocalized and DescriptionLocalized are keyed by locale ("es",
	// "es-mx") and resolved with a fallback to Name and Description.
	NameLocalized        map[string]string
	DescriptionLocalized map[string]string
}

// WidgetHook lets packages register widget types during init().
type WidgetHook func(reg *Registry) error

var (
	globalHookMu sync.Mutex
	globalHooks  []WidgetHook
)

// RegisterWidgetHook registers a hook executed against new registries.
func RegisterWidgetHook(h WidgetHook) {
	globalHookMu.Lock()
	defer globalHookMu.Unlock()
	globalHooks = append(globalHooks, h)
}

// Registry holds widget definitions keyed by type.
type Registry struct {
	mu          sync.RWMutex
	definitions map[WidgetType]WidgetDefinition
}

// NewRegistry builds a registry with the built-in catalogue and applies global hooks.
func NewRegistry() *Registry {
	reg := &Registry{definitions: map[WidgetType]WidgetDefinition{}}
	for _, def := range DefaultWidgetDefinitions() {
		_ = reg.RegisterDefinition(def)
	}
	_ = reg.ApplyHooks()
	return reg
}

// ApplyHooks executes registered widget hooks.
func (r *Registry) ApplyHooks() error {
	globalHookMu.Lock()
	defer globalHookMu.Unlock()
	for _, hook := range globalHooks {
		if err := hook(r); err != nil {
			return err
		}
	}
	return nil
}

// RegisterDefinition stores widget metadata, replacing any previous entry.
func (r *Registry) RegisterDefinition(def WidgetDefinition) error {
	if def.Type == "" {
		return fmt.Errorf("widget definition type is required")
	}
	def.normalizeLocalizedFields()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.definitions[def.Type] = def
	return nil
}

// Definition fetches a widget definition by type.
func (r *Registry) Definition(typ WidgetType) (WidgetDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.definitions[typ]
	return def, ok
}

// Definitions returns all registered definitions in catalogue order, then
// any extra types sorted by name.
func (r *Registry) Definitions() []WidgetDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]WidgetDefinition, 0, len(r.definitions))
	for _, typ := range KnownWidgetTypes {
		if def, ok := r.definitions[typ]; ok {
			defs = append(defs, def)
		}
	}
	var extra []WidgetDefinition
	for typ, def := range r.definitions {
		if !slices.Contains(KnownWidgetTypes, typ) {
			extra = append(extra, def)
		}
	}
	slices.SortFunc(extra, func(a, b WidgetDefinition) int {
		switch {
		case a.Type < b.Type:
			return -1
		case a.Type > b.Type:
			return 1
		}
		return 0
	})
	return append(defs, extra...)
}

// Sizes returns the default size table of every registered type.
func (r *Registry) Sizes() SizeTable {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sizes := make(SizeTable, len(r.definitions))
	for typ, def := range r.definitions {
		sizes[typ] = def.DefaultSize
	}
	return sizes
}

// NewData returns the default payload for typ, or nil when unknown.
func (r *Registry) NewData(typ WidgetType) WidgetData {
	def, ok := r.Definition(typ)
	if !ok || def.NewData == nil {
		return nil
	}
	return def.NewData()
}
