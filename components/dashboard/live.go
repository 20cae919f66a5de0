package dashboard

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// GanttSheet is the worksheet whose table feeds gantt widgets.
const GanttSheet = "Gantt"

const (
	ganttGreen  = "#4caf50"
	ganttYellow = "#ffeb3b"
	ganttRed    = "#f44336"
)

type liveUpdates struct {
	mu      sync.Mutex
	started bool
	subs    map[string]Subscription
}

func metricKey(id string) string { return "metric:" + id }

func ganttKey(sheet string) string { return "gantt:" + sheet }

// StartLiveUpdates subscribes to the worksheets behind metric widgets and to
// the Gantt sheet. Subscriptions are keyed by widget id and sheet name so
// repeated calls never stack handlers.
func (s *Service) StartLiveUpdates(ctx context.Context) error {
	accessor, err := s.accessor()
	if err != nil {
		return err
	}
	s.live.mu.Lock()
	s.live.started = true
	if s.live.subs == nil {
		s.live.subs = map[string]Subscription{}
	}
	s.live.mu.Unlock()

	var errs []error
	if err := s.reconcileLiveSubscriptions(ctx, s.store.State()); err != nil {
		errs = append(errs, err)
	}
	sheets, err := accessor.WorksheetNames(ctx)
	if err != nil {
		return errors.Join(append(errs, fmt.Errorf("dashboard: list worksheets: %w", err))...)
	}
	if slices.Contains(sheets, GanttSheet) {
		key := ganttKey(GanttSheet)
		s.live.mu.Lock()
		_, exists := s.live.subs[key]
		s.live.mu.Unlock()
		if !exists {
			sub, err := accessor.Subscribe(ctx, GanttSheet, func(ctx context.Context, _ SheetChange) {
				if err := s.RefreshGantt(ctx); err != nil {
					s.logger.Warn("gantt live update failed", zapSheet(GanttSheet), zap.Error(err))
				}
			})
			if err != nil {
				errs = append(errs, fmt.Errorf("dashboard: subscribe %s: %w", GanttSheet, err))
			} else {
				s.live.mu.Lock()
				s.live.subs[key] = sub
				s.live.mu.Unlock()
			}
		}
	}
	return errors.Join(errs...)
}

// StopLiveUpdates removes every live subscription.
func (s *Service) StopLiveUpdates() {
	s.live.mu.Lock()
	subs := s.live.subs
	s.live.subs = nil
	s.live.started = false
	s.live.mu.Unlock()
	for key, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			s.logger.Warn("unsubscribe failed", zap.String("subscription", key), zap.Error(err))
		}
	}
}

// LiveSubscriptions lists the active subscription keys, sorted.
func (s *Service) LiveSubscriptions() []string {
	s.live.mu.Lock()
	defer s.live.mu.Unlock()
	keys := make([]string, 0, len(s.live.subs))
	for key := range s.live.subs {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// reconcileLiveSubscriptions subscribes new metric widgets and drops the
// subscriptions of removed ones. It is a no-op until live updates start.
func (s *Service) reconcileLiveSubscriptions(ctx context.Context, state State) error {
	if s.opts.Accessor == nil {
		return nil
	}
	s.live.mu.Lock()
	if !s.live.started {
		s.live.mu.Unlock()
		return nil
	}
	wanted := map[string]MetricData{}
	for _, w := range state.Widgets {
		if m, ok := w.Data.(MetricData); ok && m.WorksheetName != "" {
			wanted[metricKey(w.ID)] = m
		}
	}
	var stale []Subscription
	for key, sub := range s.live.subs {
		if strings.HasPrefix(key, "metric:") {
			if _, ok := wanted[key]; !ok {
				stale = append(stale, sub)
				delete(s.live.subs, key)
			}
		}
	}
	var missing []Widget
	for _, w := range state.Widgets {
		if _, ok := wanted[metricKey(w.ID)]; !ok {
			continue
		}
		if _, ok := s.live.subs[metricKey(w.ID)]; !ok {
			missing = append(missing, w)
		}
	}
	s.live.mu.Unlock()

	for _, sub := range stale {
		_ = sub.Unsubscribe()
	}
	var errs []error
	for _, w := range missing {
		id := w.ID
		metric := w.Data.(MetricData)
		sub, err := s.opts.Accessor.Subscribe(ctx, metric.WorksheetName, func(ctx context.Context, change SheetChange) {
			if err := s.updateMetricFromSheet(ctx, id, change); err != nil {
				s.logger.Warn("metric live update failed", zapWidget(id), zapSheet(change.Worksheet), zap.Error(err))
			}
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("dashboard: subscribe %s: %w", metric.WorksheetName, err))
			continue
		}
		s.live.mu.Lock()
		if _, dup := s.live.subs[metricKey(id)]; dup || !s.live.started {
			s.live.mu.Unlock()
			_ = sub.Unsubscribe()
			continue
		}
		s.live.subs[metricKey(id)] = sub
		s.live.mu.Unlock()
	}
	return errors.Join(errs...)
}

// updateMetricFromSheet re-reads one metric's cell. Each metric updates on
// its own; a failure here never affects other widgets.
func (s *Service) updateMetricFromSheet(ctx context.Context, id string, change SheetChange) error {
	w, ok := s.store.Widget(id)
	if !ok {
		return nil
	}
	metric, ok := w.Data.(MetricData)
	if !ok {
		return nil
	}
	if change.Address != "" && !rangeTouches(change.Address, metric.CellAddress) {
		return nil
	}
	if err := ValidateCellAddress(metric.CellAddress); err != nil {
		return err
	}
	if err := s.CheckWorkbookBinding(ctx); err != nil {
		return err
	}
	rows, err := s.opts.Accessor.ReadRange(ctx, metric.WorksheetName, metric.CellAddress)
	if err != nil {
		return fmt.Errorf("read %s!%s: %w", metric.WorksheetName, metric.CellAddress, err)
	}
	value, ok := parseNumber(firstCell(rows))
	if !ok {
		s.logger.Warn("metric cell is not numeric", zapWidget(id), zapSheet(metric.WorksheetName), zap.String("cell", metric.CellAddress))
		return nil
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

// rangeTouches reports whether the changed range contains cell. Unparseable
// ranges count as touching.
func rangeTouches(changed, cell string) bool {
	ref, err := ParseRange(changed)
	if err != nil {
		return true
	}
	c1, r1, c2, r2, err := ref.Coordinates()
	if err != nil {
		return true
	}
	col, row, err := excelize.CellNameToCoordinates(strings.ReplaceAll(cell, "$", ""))
	if err != nil {
		return true
	}
	return col >= c1 && col <= c2 && row >= r1 && row <= r2
}

// RefreshGantt rebuilds every gantt widget's tasks from the Gantt sheet table.
func (s *Service) RefreshGantt(ctx context.Context) error {
	accessor, err := s.accessor()
	if err != nil {
		return err
	}
	reader, ok := accessor.(TableReader)
	if !ok {
		return fmt.Errorf("dashboard: accessor cannot read tables")
	}
	if !slices.ContainsFunc(s.store.State().Widgets, func(w Widget) bool { return w.Type == WidgetGantt }) {
		return nil
	}
	if err := s.CheckWorkbookBinding(ctx); err != nil {
		return err
	}
	rows, err := reader.TableRows(ctx, GanttSheet)
	if err != nil {
		return fmt.Errorf("dashboard: read %s table: %w", GanttSheet, err)
	}
	tasks := GanttTasksFromRows(rows)
	return s.store.Sync(reasonLiveGantt, func(st *State) error {
		changed := false
		for i, w := range st.Widgets {
			data, ok := w.Data.(GanttData)
			if !ok {
				continue
			}
			data.Tasks = slices.Clone(tasks)
			st.Widgets[i].Data = data
			changed = true
		}
		if !changed {
			return errNoChange
		}
		return nil
	})
}

// GanttTasksFromRows converts table rows (header first) into tasks. Columns
// are matched by header name and fall back to the order name, start, end,
// progress, dependencies.
func GanttTasksFromRows(rows [][]any) []GanttTask {
	if len(rows) < 2 {
		return []GanttTask{}
	}
	cols := ganttColumns(rows[0])
	tasks := make([]GanttTask, 0, len(rows)-1)
	for i, row := range rows[1:] {
		name := strings.TrimSpace(cellString(cellAt(row, cols.name)))
		if name == "" {
			continue
		}
		task := GanttTask{
			ID:           fmt.Sprintf("task-%d", i+1),
			Name:         name,
			Start:        ganttDate(cellAt(row, cols.start)),
			End:          ganttDate(cellAt(row, cols.end)),
			Progress:     ganttProgress(cellAt(row, cols.progress)),
			Dependencies: strings.TrimSpace(cellString(cellAt(row, cols.deps))),
		}
		if cols.id >= 0 {
			if id := strings.TrimSpace(cellString(cellAt(row, cols.id))); id != "" {
				task.ID = id
			}
		}
		task.Color = GanttColor(task.Progress)
		tasks = append(tasks, task)
	}
	return tasks
}

// GanttColor grades progress: above 75 green, above 50 yellow, else red.
func GanttColor(progress float64) string {
	switch {
	case progress > 75:
		return ganttGreen
	case progress > 50:
		return ganttYellow
	default:
		return ganttRed
	}
}

type ganttColumnSet struct {
	id, name, start, end, progress, deps int
}

func ganttColumns(header []any) ganttColumnSet {
	cols := ganttColumnSet{id: -1, name: -1, start: -1, end: -1, progress: -1, deps: -1}
	for i, cell := range header {
		switch strings.ToLower(strings.TrimSpace(cellString(cell))) {
		case "id", "task id":
			cols.id = i
		case "name", "task", "task name":
			cols.name = i
		case "start", "start date":
			cols.start = i
		case "end", "end date", "finish":
			cols.end = i
		case "progress", "% complete", "complete":
			cols.progress = i
		case "dependencies", "depends on":
			cols.deps = i
		}
	}
	if cols.name < 0 {
		return ganttColumnSet{id: -1, name: 0, start: 1, end: 2, progress: 3, deps: 4}
	}
	return cols
}

// ganttDate renders serial dates as ISO days and passes strings through.
func ganttDate(v any) string {
	if f, ok := parseNumber(v); ok && f > 0 {
		if t, err := excelize.ExcelDateToTime(f, false); err == nil {
			return t.Format(time.DateOnly)
		}
	}
	return strings.TrimSpace(cellString(v))
}

// ganttProgress reads "75%", "75" or a 0..1 fraction as a percentage.
func ganttProgress(v any) float64 {
	if s, ok := v.(string); ok {
		trimmed := strings.TrimSpace(s)
		if pct, found := strings.CutSuffix(trimmed, "%"); found {
			f, err := strconv.ParseFloat(strings.TrimSpace(pct), 64)
			if err != nil {
				return 0
			}
			return f
		}
	}
	f, ok := parseNumber(v)
	if !ok {
		return 0
	}
	if f > 0 && f <= 1 {
		return f * 100
	}
	return f
}
