package dashboard

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

const (
	reasonRefresh   = "refresh"
	reasonSnapshots = "snapshots"
	reasonMigrate   = "migrate"
	reasonLiveCell  = "live-metric"
	reasonLiveGantt = "live-gantt"
)

// CreateDashboard creates a dashboard bound to the open workbook and opens it.
// New dashboards start with a title widget carrying the title, or
// DefaultDashboardTitle when title is blank.
func (s *Service) CreateDashboard(ctx context.Context, title string) (DashboardItem, error) {
	client, err := s.client()
	if err != nil {
		return DashboardItem{}, err
	}
	workbookID, err := s.EnsureWorkbookID(ctx)
	if err != nil {
		s.notify(ctx, LevelError, "Could not read the workbook id.")
		return DashboardItem{}, err
	}
	title = titleOrDefault(title)
	heading := s.store.NewWidget(WidgetTitle, nil)
	if data, ok := heading.Data.(TitleData); ok {
		data.Content = title
		heading.Data = data
	}
	widgets := []Widget{heading}
	border := DefaultBorderSettings()
	created, err := client.CreateDashboard(ctx, DashboardItem{
		Title:          title,
		Components:     widgets,
		Layouts:        GenerateLayoutsForWidgets(widgets, s.opts.Registry.Sizes()),
		BorderSettings: &border,
		WorkbookID:     workbookID,
	})
	if err != nil {
		s.logger.Warn("create dashboard failed", zap.Error(err))
		s.notify(ctx, LevelError, "Failed to create dashboard.")
		return DashboardItem{}, fmt.Errorf("dashboard: create: %w", err)
	}
	s.open(ctx, created)
	s.notify(ctx, LevelSuccess, "Dashboard created.")
	s.recordTelemetry(ctx, "dashboard.create", map[string]any{"dashboard_id": created.ID})
	return created, nil
}

// LoadDashboard fetches and opens a dashboard. A pending autosave for the
// previous dashboard is cancelled and its live subscriptions removed.
func (s *Service) LoadDashboard(ctx context.Context, id string) (State, error) {
	client, err := s.client()
	if err != nil {
		return State{}, err
	}
	item, err := client.GetDashboard(ctx, id)
	if err != nil {
		if errors.Is(err, ErrDashboardNotFound) {
			s.notify(ctx, LevelError, "Dashboard not found.")
		} else {
			s.notify(ctx, LevelError, "Failed to load dashboard.")
		}
		s.logger.Warn("load dashboard failed", zapDashboard(id), zap.Error(err))
		return State{}, fmt.Errorf("dashboard: load %s: %w", id, err)
	}
	s.open(ctx, item)
	return s.store.State(), nil
}

// OpenDashboard opens an already fetched dashboard.
func (s *Service) OpenDashboard(ctx context.Context, item DashboardItem) State {
	s.open(ctx, item)
	return s.store.State()
}

func (s *Service) open(ctx context.Context, item DashboardItem) {
	s.autosave.Cancel()
	s.StopLiveUpdates()
	s.mu.Lock()
	s.workbookID = item.WorkbookID
	s.versions = cloneVersions(item.Versions)
	s.loaded = true
	s.mu.Unlock()
	s.store.Load(State{
		ID:             item.ID,
		Title:          item.Title,
		Widgets:        item.Components,
		Layouts:        item.Layouts,
		BorderSettings: item.BorderSettings,
	})
	if NeedsMigration(item.Components) {
		if err := s.MigrateLegacyCharts(ctx); err != nil {
			s.logger.Warn("legacy chart migration failed", zapDashboard(item.ID), zap.Error(err))
		}
	}
	if s.opts.Accessor != nil {
		if err := s.StartLiveUpdates(ctx); err != nil {
			s.logger.Warn("live updates unavailable", zapDashboard(item.ID), zap.Error(err))
		}
	}
	s.recordTelemetry(ctx, "dashboard.load", map[string]any{"dashboard_id": item.ID})
}

// DeleteDashboard removes a dashboard. Deleting the open dashboard also
// resets local state.
func (s *Service) DeleteDashboard(ctx context.Context, id string) error {
	client, err := s.client()
	if err != nil {
		return err
	}
	if err := client.DeleteDashboard(ctx, id); err != nil {
		s.logger.Warn("delete dashboard failed", zapDashboard(id), zap.Error(err))
		s.notify(ctx, LevelError, "Failed to delete dashboard.")
		return fmt.Errorf("dashboard: delete %s: %w", id, err)
	}
	if s.store.State().ID == id {
		s.autosave.Cancel()
		s.StopLiveUpdates()
		s.mu.Lock()
		s.workbookID = ""
		s.versions = nil
		s.loaded = false
		s.mu.Unlock()
		s.store.Reset()
	}
	s.notify(ctx, LevelSuccess, "Dashboard deleted.")
	s.recordTelemetry(ctx, "dashboard.delete", map[string]any{"dashboard_id": id})
	return nil
}

// ListDashboards returns every stored dashboard.
func (s *Service) ListDashboards(ctx context.Context) ([]DashboardItem, error) {
	client, err := s.client()
	if err != nil {
		return nil, err
	}
	items, err := client.ListDashboards(ctx)
	if err != nil {
		s.notify(ctx, LevelError, "Failed to load dashboards.")
		return nil, fmt.Errorf("dashboard: list: %w", err)
	}
	return items, nil
}

// Item returns the open dashboard as it would be persisted.
func (s *Service) Item() DashboardItem {
	s.mu.RLock()
	workbookID, versions := s.workbookID, s.versions
	s.mu.RUnlock()
	return s.store.State().Item(workbookID, versions)
}

// Flush persists a pending autosave immediately.
func (s *Service) Flush(ctx context.Context) error {
	if !s.autosave.Cancel() {
		return nil
	}
	return s.save(ctx)
}

// AutosavePending reports whether a debounced save is scheduled.
func (s *Service) AutosavePending() bool { return s.autosave.Pending() }

func (s *Service) onChange(event ChangeEvent) {
	ctx := context.Background()
	if err := s.opts.RefreshHook.DashboardUpdated(ctx, event); err != nil {
		s.logger.Warn("refresh hook failed", zapDashboard(event.State.ID), zap.Error(err))
	}
	if event.Origin != OriginSync && event.Origin != OriginLoad {
		if err := s.reconcileLiveSubscriptions(ctx, event.State); err != nil {
			s.logger.Warn("live subscription update failed", zapDashboard(event.State.ID), zap.Error(err))
		}
	}
	if s.Loaded() && autosaves(event) {
		s.autosave.Trigger()
	}
}

// autosaves reports whether a change is persisted by the debounced save.
// History, load and version changes are persisted by their own operations,
// as are refresh and migration syncs.
func autosaves(event ChangeEvent) bool {
	switch event.Origin {
	case OriginLocal, OriginPresenter:
		return true
	case OriginSync:
		return event.Reason == reasonLiveCell || event.Reason == reasonLiveGantt
	default:
		return false
	}
}

func (s *Service) runAutosave() {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultSaveTimeout)
	defer cancel()
	if err := s.save(ctx); err != nil {
		s.logger.Warn("autosave failed", zapDashboard(s.store.State().ID), zap.Error(err))
	}
}

func (s *Service) save(ctx context.Context) error {
	if err := s.persist(ctx); err != nil {
		s.notify(ctx, LevelError, "Failed to save dashboard.")
		return err
	}
	s.recordTelemetry(ctx, "dashboard.save", map[string]any{"dashboard_id": s.store.State().ID})
	return nil
}

// persist PUTs the full open dashboard.
func (s *Service) persist(ctx context.Context) error {
	client, err := s.client()
	if err != nil {
		return err
	}
	if !s.Loaded() {
		return ErrNoDashboard
	}
	item := s.Item()
	if item.ID == "" {
		return ErrNoDashboard
	}
	if _, err := client.UpdateDashboard(ctx, item); err != nil {
		return fmt.Errorf("dashboard: save %s: %w", item.ID, err)
	}
	return nil
}

func (s *Service) client() (DashboardStoreClient, error) {
	if s.opts.Client == nil {
		return nil, ErrClientUnavailable
	}
	return s.opts.Client, nil
}
