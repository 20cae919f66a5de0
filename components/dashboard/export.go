package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ettle/strcase"
)

// ErrInvalidImport reports a malformed dashboard file.
var ErrInvalidImport = errors.New("dashboard: invalid dashboard file")

// ExportWidgets writes the open dashboard's components as a JSON array.
func (s *Service) ExportWidgets(w io.Writer) error {
	widgets := s.store.State().Widgets
	if widgets == nil {
		widgets = []Widget{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(widgets); err != nil {
		return fmt.Errorf("dashboard: export: %w", err)
	}
	return nil
}

// ExportFileName derives a download name from the dashboard title.
func (s *Service) ExportFileName() string {
	name := strcase.ToKebab(strings.TrimSpace(s.store.State().Title))
	if name == "" {
		name = "dashboard"
	}
	return name + ".json"
}

// ImportWidgets replaces the widget list wholesale with the decoded file. The
// file is either a components array or a full dashboard document.
// History-tracked.
func (s *Service) ImportWidgets(ctx context.Context, r io.Reader) error {
	widgets, layouts, err := DecodeDashboardFile(r)
	if err != nil {
		s.notify(ctx, LevelError, "Invalid dashboard file.")
		return err
	}
	if err := s.store.ReplaceWidgets(widgets, layouts, "import"); err != nil {
		s.notifyMutationError(ctx, err)
		return err
	}
	s.notify(ctx, LevelSuccess, "Dashboard imported.")
	s.recordTelemetry(ctx, "dashboard.import", map[string]any{"widgets": len(widgets)})
	return nil
}

// DecodeDashboardFile parses an exported components array or a full
// DashboardItem. Layouts are nil for a bare array.
func DecodeDashboardFile(r io.Reader) ([]Widget, Layouts, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil, fmt.Errorf("%w: empty file", ErrInvalidImport)
	}
	if trimmed[0] == '{' {
		var item DashboardItem
		if err := json.Unmarshal(trimmed, &item); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidImport, err)
		}
		return item.Components, item.Layouts, nil
	}
	var widgets []Widget
	if err := json.Unmarshal(trimmed, &widgets); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	return widgets, nil, nil
}
