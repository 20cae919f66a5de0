package dashboard

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultAutosaveDelay is the quiet window before a change is persisted.
	DefaultAutosaveDelay = 2 * time.Second
	// DefaultSaveTimeout bounds background saves.
	DefaultSaveTimeout = 30 * time.Second
	// DefaultDashboardTitle replaces a blank title when a dashboard is saved.
	DefaultDashboardTitle = "Untitled dashboard"
)

// Options configures the dashboard Service. Every collaborator is provided via
// interface so hosts can swap implementations.
type Options struct {
	Client        DashboardStoreClient
	Templates     TemplateStore
	Accessor      SpreadsheetAccessor
	Notifier      Notifier
	Telemetry     Telemetry
	Logger        *zap.Logger
	DetailsPrompt DetailsPrompt
	RefreshHook   RefreshHook
	Registry      *Registry
	Validator     DataValidator
	Snapshots     SnapshotRenderer
	AutosaveDelay time.Duration
	MaxHistory    int
	NewID         func(WidgetType) string
	Now           func() time.Time

	// SkipSchemaValidation disables JSON schema checks when no Validator
	// is given.
	SkipSchemaValidation bool
}

// Service orchestrates one open dashboard: its Store, autosave, spreadsheet
// sync, versions and the remote store client.
type Service struct {
	opts     Options
	logger   *zap.Logger
	store    *Store
	autosave *Debouncer

	mu         sync.RWMutex
	workbookID string
	versions   []DashboardVersion
	loaded     bool

	live     liveUpdates
	bg       sync.WaitGroup
	unlisten func()
}

// NewService builds a Service instance with safe defaults.
func NewService(opts Options) *Service {
	if opts.Notifier == nil {
		opts.Notifier = noopNotifier{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.RefreshHook == nil {
		opts.RefreshHook = noopRefreshHook{}
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	if opts.Validator == nil {
		opts.Validator = defaultValidator(opts.SkipSchemaValidation)
	}
	if opts.AutosaveDelay <= 0 {
		opts.AutosaveDelay = DefaultAutosaveDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	opts.Telemetry = normalizeTelemetry(opts.Telemetry)
	s := &Service{
		opts:   opts,
		logger: opts.Logger.Named("dashboard"),
		store: NewStore(StoreOptions{
			Registry:   opts.Registry,
			Validator:  opts.Validator,
			MaxHistory: opts.MaxHistory,
			NewID:      opts.NewID,
		}),
	}
	s.autosave = NewDebouncer(opts.AutosaveDelay, s.runAutosave)
	s.unlisten = s.store.Subscribe(s.onChange)
	return s
}

// Store exposes the underlying widget store.
func (s *Service) Store() *Store { return s.store }

// Registry exposes the widget catalogue.
func (s *Service) Registry() *Registry { return s.opts.Registry }

// State returns a copy of the open dashboard.
func (s *Service) State() State { return s.store.State() }

// WorkbookID returns the workbook id the open dashboard is bound to.
func (s *Service) WorkbookID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.workbookID
}

// Loaded reports whether a dashboard is open.
func (s *Service) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Close cancels a pending autosave, drops live subscriptions and waits for
// background syncs to finish.
func (s *Service) Close() {
	s.autosave.Cancel()
	s.StopLiveUpdates()
	if s.unlisten != nil {
		s.unlisten()
	}
	s.bg.Wait()
}

// AddWidgetRequest captures the data required to add a widget.
type AddWidgetRequest struct {
	Type WidgetType
	// Data overrides the type's default payload.
	Data WidgetData
}

// AddWidgetResult reports the created widget and whether it is waiting for
// details before being committed.
type AddWidgetResult struct {
	Widget  Widget
	Pending bool
}

// AddWidget creates a widget. Types that need external binding details are
// held pending and the DetailsPrompt is asked to collect them.
func (s *Service) AddWidget(ctx context.Context, req AddWidgetRequest) (AddWidgetResult, error) {
	if req.Type == WidgetTitle && hasTitle(s.store.State().Widgets) {
		s.notify(ctx, LevelWarning, "A title widget already exists.")
		return AddWidgetResult{}, ErrTitleExists
	}
	w := s.store.NewWidget(req.Type, req.Data)
	if def, ok := s.opts.Registry.Definition(req.Type); ok && def.RequiresDetails && req.Data == nil {
		s.store.SetPending(w)
		if s.opts.DetailsPrompt != nil {
			if err := s.opts.DetailsPrompt.RequestDetails(ctx, w.Clone()); err != nil {
				s.store.ClearPending()
				s.notify(ctx, LevelError, "Could not open the widget details form.")
				return AddWidgetResult{}, fmt.Errorf("dashboard: request details for %s: %w", w.ID, err)
			}
		}
		s.recordTelemetry(ctx, "dashboard.widget.pending", map[string]any{"widget_id": w.ID, "type": string(w.Type)})
		return AddWidgetResult{Widget: w, Pending: true}, nil
	}
	if err := s.insert(ctx, w); err != nil {
		return AddWidgetResult{}, err
	}
	return AddWidgetResult{Widget: w}, nil
}

// CompletePendingWidget merges the collected details onto the pending
// widget and commits it. The widget stays pending when validation fails.
func (s *Service) CompletePendingWidget(ctx context.Context, details map[string]any) (Widget, error) {
	w, ok := s.store.Pending()
	if !ok {
		return Widget{}, ErrNoPendingWidget
	}
	merged, err := dataToMap(w.Data)
	if err != nil {
		return Widget{}, err
	}
	maps.Copy(merged, details)
	data, err := mapToData(w.Type, merged)
	if err != nil {
		s.notify(ctx, LevelError, "Invalid widget details.")
		return Widget{}, fmt.Errorf("%w: %v", ErrInvalidWidgetData, err)
	}
	w.Data = data
	if metric, ok := data.(MetricData); ok {
		if err := ValidateCellAddress(metric.CellAddress); err != nil {
			s.notify(ctx, LevelError, "Please enter a valid cell address (e.g. B2).")
			return Widget{}, err
		}
	}
	if err := s.insert(ctx, w); err != nil {
		return Widget{}, err
	}
	s.store.ClearPending()
	return w, nil
}

// CancelPendingWidget drops the pending widget. It reports whether one existed.
func (s *Service) CancelPendingWidget() bool {
	_, ok := s.store.ClearPending()
	return ok
}

func (s *Service) insert(ctx context.Context, w Widget) error {
	if err := s.store.InsertWidget(w); err != nil {
		s.notifyMutationError(ctx, err)
		return err
	}
	s.recordTelemetry(ctx, "dashboard.widget.add", map[string]any{"widget_id": w.ID, "type": string(w.Type)})
	return nil
}

// RemoveOptions tunes RemoveWidget.
type RemoveOptions struct {
	// AllowTitle lets callers remove the title widget.
	AllowTitle bool
}

// RemoveWidget deletes the widget. The title widget is refused unless
// AllowTitle is set.
func (s *Service) RemoveWidget(ctx context.Context, id string, opts RemoveOptions) error {
	w, ok := s.store.Widget(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrWidgetNotFound, id)
	}
	if w.Type == WidgetTitle && !opts.AllowTitle {
		s.notify(ctx, LevelWarning, "The title widget cannot be removed.")
		return ErrTitleRemoval
	}
	if err := s.store.RemoveWidget(id); err != nil {
		return err
	}
	s.recordTelemetry(ctx, "dashboard.widget.remove", map[string]any{"widget_id": id})
	return nil
}

// UpdateWidget shallow-merges patch onto the widget's data.
func (s *Service) UpdateWidget(ctx context.Context, id string, patch map[string]any) error {
	if err := s.store.UpdateWidget(id, patch); err != nil {
		s.notifyMutationError(ctx, err)
		return err
	}
	s.recordTelemetry(ctx, "dashboard.widget.update", map[string]any{"widget_id": id, "fields": slices.Sorted(maps.Keys(patch))})
	return nil
}

// CopyWidget duplicates a widget under a fresh id.
func (s *Service) CopyWidget(ctx context.Context, id string) (Widget, error) {
	dup, err := s.store.CopyWidget(id)
	if err != nil {
		s.notifyMutationError(ctx, err)
		return Widget{}, err
	}
	s.recordTelemetry(ctx, "dashboard.widget.copy", map[string]any{"widget_id": id, "copy_id": dup.ID})
	return dup, nil
}

// UpdateLayouts records a grid move or resize.
func (s *Service) UpdateLayouts(ctx context.Context, layouts Layouts) error {
	return s.store.UpdateLayouts(layouts)
}

// SetTitle renames the open dashboard.
func (s *Service) SetTitle(ctx context.Context, title string) error {
	return s.store.SetTitle(title)
}

// SetBorderSettings changes the widget frame style.
func (s *Service) SetBorderSettings(ctx context.Context, settings BorderSettings) error {
	return s.store.SetBorderSettings(settings)
}

// ApplyPresenterState replaces widgets, layouts and border settings with
// state received from the presenter window. The change is autosaved but
// never forwarded back to the presenter.
func (s *Service) ApplyPresenterState(ctx context.Context, state State) {
	s.store.Replace(state, OriginPresenter, "presenter")
	s.recordTelemetry(ctx, "dashboard.presenter.apply", map[string]any{"dashboard_id": s.store.State().ID})
}

// Accessor returns the configured spreadsheet accessor, if any.
func (s *Service) Accessor() SpreadsheetAccessor { return s.opts.Accessor }

// Undo restores the previous snapshot and syncs it to the store in the
// background. Remote failures are logged only.
func (s *Service) Undo(ctx context.Context) bool {
	if !s.store.Undo() {
		return false
	}
	s.syncInBackground("undo")
	return true
}

// Redo re-applies the next snapshot and syncs it in the background.
func (s *Service) Redo(ctx context.Context) bool {
	if !s.store.Redo() {
		return false
	}
	s.syncInBackground("redo")
	return true
}

func (s *Service) CanUndo() bool { return s.store.CanUndo() }
func (s *Service) CanRedo() bool { return s.store.CanRedo() }

func (s *Service) syncInBackground(reason string) {
	if !s.Loaded() || s.opts.Client == nil {
		return
	}
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), DefaultSaveTimeout)
		defer cancel()
		if err := s.persist(ctx); err != nil {
			s.logger.Warn("history sync failed", zap.String("reason", reason), zap.Error(err))
		}
	}()
}

func (s *Service) notifyMutationError(ctx context.Context, err error) {
	switch {
	case errors.Is(err, ErrTitleExists):
		s.notify(ctx, LevelWarning, "A title widget already exists.")
	case errors.Is(err, ErrInvalidWidgetData), errors.Is(err, ErrInvalidCellAddress):
		s.notify(ctx, LevelError, "Invalid widget data: "+err.Error())
	case errors.Is(err, ErrWidgetNotFound):
		s.notify(ctx, LevelError, "Widget not found.")
	}
}

func (s *Service) recordTelemetry(ctx context.Context, event string, payload map[string]any) {
	meta := activityContextFrom(ctx)
	if meta.ActorID != "" {
		payload["actor_id"] = meta.ActorID
	}
	if meta.SessionID != "" {
		payload["session_id"] = meta.SessionID
	}
	s.opts.Telemetry.Record(ctx, event, payload)
}

type noopRefreshHook struct{}

func (noopRefreshHook) DashboardUpdated(context.Context, ChangeEvent) error {
	return nil
}

func zapDashboard(id string) zap.Field { return zap.String("dashboard_id", id) }
func zapWidget(id string) zap.Field    { return zap.String("widget_id", id) }
func zapWorkbook(id string) zap.Field  { return zap.String("workbook_id", id) }
func zapSheet(name string) zap.Field   { return zap.String("worksheet", name) }
