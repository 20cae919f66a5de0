package dashboard

import (
	"context"

	"go.uber.org/zap"
)

// refreshSnapshots re-renders image widgets that snapshot a worksheet chart.
// Failures are logged per widget and never fail the refresh.
func (s *Service) refreshSnapshots(ctx context.Context, sheets []string) {
	if s.opts.Snapshots == nil {
		return
	}
	state := s.store.State()
	updates := map[string]WidgetData{}
	var bound []string
	for _, w := range state.Widgets {
		img, ok := w.Data.(ImageData)
		if !ok || img.WorksheetName == "" || img.AssociatedRange == "" {
			continue
		}
		bound = append(bound, w.ID)
		rows, err := s.readBound(ctx, sheets, img.WorksheetName, img.AssociatedRange)
		if err != nil {
			s.logger.Warn("chart snapshot read failed", zapWidget(w.ID), zapSheet(img.WorksheetName), zap.Error(err))
			continue
		}
		chart := rebuildChart(ChartData{Type: img.ChartType, Title: img.Alt}, rows, snapshotPalette())
		src, err := s.opts.Snapshots.RenderSnapshot(ctx, w.ID, chart)
		if err != nil {
			s.logger.Warn("chart snapshot render failed", zapWidget(w.ID), zap.Error(err))
			continue
		}
		if src == img.Src {
			continue
		}
		img.Src = src
		updates[w.ID] = img
	}
	if r, ok := s.opts.Snapshots.(snapshotRetainer); ok {
		if n := r.Retain(bound); n > 0 {
			s.logger.Debug("dropped stale chart snapshots", zap.Int("count", n))
		}
	}
	if len(updates) == 0 {
		return
	}
	if err := s.store.Sync(reasonSnapshots, applyUpdates(updates)); err != nil {
		s.logger.Warn("chart snapshot apply failed", zap.Error(err))
		return
	}
	if err := s.persist(ctx); err != nil {
		s.logger.Warn("chart snapshot save failed", zapDashboard(state.ID), zap.Error(err))
	}
}

// snapshotRetainer is implemented by renderers that cache per widget.
type snapshotRetainer interface {
	Retain(widgetIDs []string) int
}

// snapshotPalette cycles a fixed palette so identical data renders identically.
func snapshotPalette() func() string {
	palette := []string{"#4e79a7", "#f28e2b", "#e15759", "#76b7b2", "#59a14f", "#edc948"}
	i := 0
	return func() string {
		c := palette[i%len(palette)]
		i++
		return c
	}
}
