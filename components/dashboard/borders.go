package dashboard

import (
	"fmt"
	"strings"
)

// BorderSettings styles the frame drawn around every widget.
type BorderSettings struct {
	ShowBorders bool   `json:"showBorders" yaml:"showBorders"`
	Color       string `json:"color,omitempty" yaml:"color,omitempty"`
	Width       int    `json:"width,omitempty" yaml:"width,omitempty"`
	Style       string `json:"style,omitempty" yaml:"style,omitempty"`
	Radius      int    `json:"radius,omitempty" yaml:"radius,omitempty"`
}

// DefaultBorderSettings mirrors the add-in's initial frame style.
func DefaultBorderSettings() BorderSettings {
	return BorderSettings{
		ShowBorders: true,
		Color:       "#e0e0e0",
		Width:       1,
		Style:       "solid",
		Radius:      4,
	}
}

// Clone returns an independent copy.
func (b *BorderSettings) Clone() *BorderSettings {
	if b == nil {
		return nil
	}
	out := *b
	return &out
}

// CSSVariables exposes the settings as CSS custom properties.
func (b *BorderSettings) CSSVariables() map[string]string {
	if b == nil {
		return nil
	}
	if !b.ShowBorders {
		return map[string]string{"--widget-border": "none"}
	}
	style := b.Style
	if style == "" {
		style = "solid"
	}
	vars := map[string]string{
		"--widget-border": fmt.Sprintf("%dpx %s %s", max(b.Width, 0), style, b.Color),
	}
	if b.Radius > 0 {
		vars["--widget-border-radius"] = fmt.Sprintf("%dpx", b.Radius)
	}
	return vars
}

// CSSVariablesInline renders the CSS variables as a style attribute value in a
// stable order.
func (b *BorderSettings) CSSVariablesInline() string {
	vars := b.CSSVariables()
	if len(vars) == 0 {
		return ""
	}
	var builder strings.Builder
	for _, key := range []string{"--widget-border", "--widget-border-radius"} {
		value, ok := vars[key]
		if !ok || value == "" {
			continue
		}
		builder.WriteString(key)
		builder.WriteString(": ")
		builder.WriteString(value)
		builder.WriteString("; ")
	}
	return strings.TrimSpace(builder.String())
}
