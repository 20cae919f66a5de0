package dashboard

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// RefreshAllCharts re-reads every bound chart range and metric cell and
// applies the result as one batch. The batch is dropped when any widget
// fails to resolve. Nothing is read when the open workbook is not the
// dashboard's.
func (s *Service) RefreshAllCharts(ctx context.Context) error {
	if !s.Loaded() {
		return ErrNoDashboard
	}
	accessor, err := s.accessor()
	if err != nil {
		return err
	}
	if err := s.CheckWorkbookBinding(ctx); err != nil {
		s.notify(ctx, LevelWarning, "This dashboard belongs to a different workbook. Refresh cancelled.")
		return err
	}
	sheets, err := accessor.WorksheetNames(ctx)
	if err != nil {
		s.notify(ctx, LevelError, "Failed to read worksheets.")
		return fmt.Errorf("dashboard: list worksheets: %w", err)
	}

	state := s.store.State()
	updates := map[string]WidgetData{}
	var errs []error
	var warnings []string
	for _, w := range state.Widgets {
		switch data := w.Data.(type) {
		case ChartData:
			rows, err := s.readBound(ctx, sheets, data.WorksheetName, data.AssociatedRange)
			if err != nil {
				errs = append(errs, fmt.Errorf("chart %q: %w", chartLabel(data.Title, w.ID), err))
				continue
			}
			updates[w.ID] = rebuildChart(data, rows, randomColor)
		case MetricData:
			if err := ValidateCellAddress(data.CellAddress); err != nil {
				errs = append(errs, fmt.Errorf("metric %q: %w", chartLabel(data.Title, w.ID), err))
				continue
			}
			rows, err := s.readBound(ctx, sheets, data.WorksheetName, data.CellAddress)
			if err != nil {
				errs = append(errs, fmt.Errorf("metric %q: %w", chartLabel(data.Title, w.ID), err))
				continue
			}
			value, ok := parseNumber(firstCell(rows))
			if !ok {
				warnings = append(warnings, fmt.Sprintf("Metric %q: cell %s!%s is not numeric.", chartLabel(data.Title, w.ID), data.WorksheetName, data.CellAddress))
				continue
			}
			data.CurrentValue = value
			updates[w.ID] = data
		}
	}
	if len(errs) > 0 {
		err := errors.Join(errs...)
		s.logger.Warn("refresh aborted", zapDashboard(state.ID), zap.Error(err))
		s.notify(ctx, LevelError, "Refresh failed: "+err.Error())
		return fmt.Errorf("dashboard: refresh: %w", err)
	}
	for _, msg := range warnings {
		s.notify(ctx, LevelWarning, msg)
	}
	if len(updates) > 0 {
		if err := s.store.Sync(reasonRefresh, applyUpdates(updates)); err != nil {
			return err
		}
		if err := s.persist(ctx); err != nil {
			s.logger.Warn("refresh save failed", zapDashboard(state.ID), zap.Error(err))
			s.notify(ctx, LevelError, "Charts refreshed but saving failed.")
			return err
		}
	}
	s.refreshSnapshots(ctx, sheets)
	s.notify(ctx, LevelSuccess, "Charts refreshed.")
	s.recordTelemetry(ctx, "dashboard.refresh", map[string]any{
		"dashboard_id": state.ID,
		"updated":      len(updates),
		"warnings":     len(warnings),
	})
	return nil
}

// readBound resolves worksheet against the live sheet list and reads address.
func (s *Service) readBound(ctx context.Context, sheets []string, worksheet, address string) ([][]any, error) {
	if worksheet == "" || !slices.Contains(sheets, worksheet) {
		return nil, fmt.Errorf("%w: %q", ErrWorksheetNotFound, worksheet)
	}
	if address == "" {
		return nil, fmt.Errorf("%w: empty address", ErrInvalidRange)
	}
	rows, err := s.opts.Accessor.ReadRange(ctx, worksheet, address)
	if err != nil {
		return nil, fmt.Errorf("read %s!%s: %w", worksheet, address, err)
	}
	return rows, nil
}

func applyUpdates(updates map[string]WidgetData) func(st *State) error {
	return func(st *State) error {
		for i, w := range st.Widgets {
			if data, ok := updates[w.ID]; ok && data.Kind() == w.Type {
				st.Widgets[i].Data = data.clone()
			}
		}
		return nil
	}
}

// rebuildChart takes labels from the first column and one dataset per
// remaining header column. Existing dataset styling is kept by position.
func rebuildChart(data ChartData, rows [][]any, color func() string) ChartData {
	out := data.clone().(ChartData)
	if len(rows) == 0 {
		out.Labels = []string{}
		out.Datasets = []Dataset{}
		return out
	}
	header, body := rows[0], rows[1:]
	out.Labels = make([]string, 0, len(body))
	for _, row := range body {
		out.Labels = append(out.Labels, cellString(cellAt(row, 0)))
	}
	out.Datasets = make([]Dataset, 0, max(len(header)-1, 0))
	for col := 1; col < len(header); col++ {
		ds := Dataset{Label: cellString(header[col])}
		if prev := col - 1; prev < len(data.Datasets) {
			old := data.Datasets[prev]
			ds.BackgroundColor = old.BackgroundColor
			ds.BorderColor = old.BorderColor
			ds.BorderWidth = old.BorderWidth
		}
		if ds.BackgroundColor == "" {
			ds.BackgroundColor = color()
		}
		if ds.BorderColor == "" {
			ds.BorderColor = ds.BackgroundColor
		}
		ds.Data = make([]float64, 0, len(body))
		for _, row := range body {
			v, _ := parseNumber(cellAt(row, col))
			ds.Data = append(ds.Data, v)
		}
		out.Datasets = append(out.Datasets, ds)
	}
	return out
}

func randomColor() string {
	return fmt.Sprintf("#%06x", rand.IntN(0x1000000))
}

func chartLabel(title, id string) string {
	if title != "" {
		return title
	}
	return id
}

func cellAt(row []any, idx int) any {
	if idx >= 0 && idx < len(row) {
		return row[idx]
	}
	return nil
}

func firstCell(rows [][]any) any {
	if len(rows) == 0 {
		return nil
	}
	return cellAt(rows[0], 0)
}

func cellString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

// parseNumber accepts numeric cell values and numeric strings.
func parseNumber(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// WriteMetricValue writes value into the metric's bound cell and mirrors it
// into currentValue. The address and workbook binding are checked before
// anything is written.
func (s *Service) WriteMetricValue(ctx context.Context, id string, value float64) error {
	accessor, err := s.accessor()
	if err != nil {
		return err
	}
	w, ok := s.store.Widget(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrWidgetNotFound, id)
	}
	metric, ok := w.Data.(MetricData)
	if !ok {
		return fmt.Errorf("%w: %s is not a metric", ErrInvalidWidgetData, id)
	}
	if err := ValidateCellAddress(metric.CellAddress); err != nil {
		s.notify(ctx, LevelError, "Please enter a valid cell address (e.g. B2).")
		return err
	}
	if err := s.CheckWorkbookBinding(ctx); err != nil {
		s.notify(ctx, LevelWarning, "This dashboard belongs to a different workbook.")
		return err
	}
	if err := accessor.WriteCell(ctx, metric.WorksheetName, metric.CellAddress, value); err != nil {
		s.notify(ctx, LevelError, "Failed to write the cell.")
		return fmt.Errorf("dashboard: write %s!%s: %w", metric.WorksheetName, metric.CellAddress, err)
	}
	return s.store.Sync(reasonLiveCell, func(st *State) error {
		idx := findWidget(st.Widgets, id)
		if idx < 0 {
			return errNoChange
		}
		current, ok := st.Widgets[idx].Data.(MetricData)
		if !ok || current.CurrentValue == value {
			return errNoChange
		}
		current.CurrentValue = value
		st.Widgets[idx].Data = current
		return nil
	})
}
