package dashboard

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// NeedsMigration reports whether any chart or image widget still carries a
// legacy chartIndex.
func NeedsMigration(widgets []Widget) bool {
	for _, w := range widgets {
		if legacyChartIndex(w.Data) != nil {
			return true
		}
	}
	return false
}

func legacyChartIndex(data WidgetData) *int {
	switch d := data.(type) {
	case ChartData:
		return d.ChartIndex
	case ImageData:
		return d.ChartIndex
	default:
		return nil
	}
}

// MigrateLegacyCharts rewrites chartIndex bindings into worksheet/range
// bindings. Charts are numbered globally across worksheets in document
// order. Either every legacy widget migrates or none does, and the result is
// persisted immediately. Running it again is a no-op.
func (s *Service) MigrateLegacyCharts(ctx context.Context) error {
	state := s.store.State()
	if !NeedsMigration(state.Widgets) {
		return nil
	}
	accessor, err := s.accessor()
	if err != nil {
		return err
	}
	enumerator, ok := accessor.(ChartEnumerator)
	if !ok {
		return ErrChartsUnsupported
	}
	if err := s.CheckWorkbookBinding(ctx); err != nil {
		return err
	}
	index, err := chartIndexTable(ctx, accessor, enumerator)
	if err != nil {
		return err
	}

	updates := map[string]WidgetData{}
	var errs []error
	for _, w := range state.Widgets {
		idx := legacyChartIndex(w.Data)
		if idx == nil {
			continue
		}
		src, ok := index[*idx]
		if !ok {
			errs = append(errs, fmt.Errorf("widget %s: no chart at index %d", w.ID, *idx))
			continue
		}
		switch d := w.Data.(type) {
		case ChartData:
			d.WorksheetName, d.AssociatedRange, d.ChartIndex = src.Worksheet, src.Range, nil
			updates[w.ID] = d
		case ImageData:
			d.WorksheetName, d.AssociatedRange, d.ChartIndex = src.Worksheet, src.Range, nil
			updates[w.ID] = d
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("dashboard: migrate charts: %w", errors.Join(errs...))
	}
	if err := s.store.Sync(reasonMigrate, applyUpdates(updates)); err != nil {
		return err
	}
	s.logger.Info("legacy charts migrated", zapDashboard(state.ID), zap.Int("widgets", len(updates)))
	s.recordTelemetry(ctx, "dashboard.migrate", map[string]any{"dashboard_id": state.ID, "widgets": len(updates)})
	if err := s.persist(ctx); err != nil {
		return fmt.Errorf("dashboard: persist migration: %w", err)
	}
	return nil
}

func chartIndexTable(ctx context.Context, accessor SpreadsheetAccessor, enumerator ChartEnumerator) (map[int]ChartSource, error) {
	sheets, err := accessor.WorksheetNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("dashboard: list worksheets: %w", err)
	}
	table := map[int]ChartSource{}
	next := 0
	for _, sheet := range sheets {
		charts, err := enumerator.Charts(ctx, sheet)
		if err != nil {
			return nil, fmt.Errorf("dashboard: list charts on %s: %w", sheet, err)
		}
		for _, chart := range charts {
			if chart.Worksheet == "" {
				chart.Worksheet = sheet
			}
			table[next] = chart
			next++
		}
	}
	return table, nil
}
