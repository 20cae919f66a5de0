package dashboard

import "strings"

// ResolveLocalizedValue selects the best translation for the provided locale and falls back to the supplied value.
// Keys are matched case-insensitively, and language-region pairs (`es-mx`) automatically fall back to their
// base language (`es`) when present.
func ResolveLocalizedValue(values map[string]string, locale, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	for _, candidate := range localeCandidates(locale) {
		if value, ok := values[candidate]; ok && value != "" {
			return value
		}
	}
	return fallback
}

func (def *WidgetDefinition) normalizeLocalizedFields() {
	def.NameLocalized = normalizeLocaleMap(def.NameLocalized)
	def.DescriptionLocalized = normalizeLocaleMap(def.DescriptionLocalized)
}

// NameForLocale returns the catalogue name for the locale, falling back to Name.
func (def WidgetDefinition) NameForLocale(locale string) string {
	return ResolveLocalizedValue(def.NameLocalized, locale, def.Name)
}

// DescriptionForLocale returns the localized description if available.
func (def WidgetDefinition) DescriptionForLocale(locale string) string {
	return ResolveLocalizedValue(def.DescriptionLocalized, locale, def.Description)
}

// CatalogueEntry is one widget type as shown in the add-widget menu.
type CatalogueEntry struct {
	Type            WidgetType `json:"type"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Category        string     `json:"category"`
	RequiresDetails bool       `json:"requiresDetails"`
	DefaultSize     Size       `json:"defaultSize"`
}

// Catalogue lists the registered widget types with names resolved for locale.
func (r *Registry) Catalogue(locale string) []CatalogueEntry {
	defs := r.Definitions()
	out := make([]CatalogueEntry, 0, len(defs))
	for _, def := range defs {
		out = append(out, CatalogueEntry{
			Type:            def.Type,
			Name:            def.NameForLocale(locale),
			Description:     def.DescriptionForLocale(locale),
			Category:        def.Category,
			RequiresDetails: def.RequiresDetails,
			DefaultSize:     def.DefaultSize,
		})
	}
	return out
}

func normalizeLocaleMap(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	normalized := make(map[string]string, len(values))
	for key, value := range values {
		key = normalizeLocale(key)
		if key == "" || value == "" {
			continue
		}
		normalized[key] = value
	}
	return normalized
}

func localeCandidates(locale string) []string {
	locale = normalizeLocale(locale)
	if locale == "" {
		return []string{"default"}
	}
	candidates := []string{locale}
	if idx := strings.Index(locale, "-"); idx > 0 {
		candidates = append(candidates, locale[:idx])
	}
	return append(candidates, "default")
}

func normalizeLocale(locale string) string {
	return strings.ReplaceAll(strings.TrimSpace(strings.ToLower(locale)), "_", "-")
}
