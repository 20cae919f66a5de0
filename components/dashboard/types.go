package dashboard

import (
	"context"
	"strings"
	"time"
)

// DashboardStoreClient is the remote persistence capability for dashboards.
// Implementations must be safe for concurrent use.
type DashboardStoreClient interface {
	ListDashboards(ctx context.Context) ([]DashboardItem, error)
	GetDashboard(ctx context.Context, id string) (DashboardItem, error)
	CreateDashboard(ctx context.Context, item DashboardItem) (DashboardItem, error)
	UpdateDashboard(ctx context.Context, item DashboardItem) (DashboardItem, error)
	DeleteDashboard(ctx context.Context, id string) error
}

// TemplateStore persists reusable widget sets that are not bound to a workbook.
type TemplateStore interface {
	CreateTemplate(ctx context.Context, tpl Template) (Template, error)
	GetTemplate(ctx context.Context, id string) (Template, error)
	UpdateTemplate(ctx context.Context, tpl Template) (Template, error)
	ListTemplates(ctx context.Context) ([]Template, error)
}

// SpreadsheetAccessor is the host document capability consumed by the engine.
type SpreadsheetAccessor interface {
	WorksheetNames(ctx context.Context) ([]string, error)
	ReadRange(ctx context.Context, worksheet, address string) ([][]any, error)
	WriteCell(ctx context.Context, worksheet, address string, value any) error
	CustomProperty(ctx context.Context, name string) (string, bool, error)
	SetCustomProperty(ctx context.Context, name, value string) error
	Subscribe(ctx context.Context, worksheet string, handler SheetChangeHandler) (Subscription, error)
}

// ChartEnumerator is an optional accessor capability listing a worksheet's
// embedded charts in document order.
type ChartEnumerator interface {
	Charts(ctx context.Context, worksheet string) ([]ChartSource, error)
}

// TableReader is an optional accessor capability returning the rows of the
// first table on a worksheet, header row included.
type TableReader interface {
	TableRows(ctx context.Context, worksheet string) ([][]any, error)
}

// SheetChangeHandler receives change notifications for a worksheet.
type SheetChangeHandler func(ctx context.Context, change SheetChange)

// SheetChange describes the range touched by a host edit.
type SheetChange struct {
	Worksheet string
	Address   string
}

// Subscription cancels a worksheet change subscription.
type Subscription interface {
	Unsubscribe() error
}

// ChartSource locates the data behind an embedded worksheet chart.
type ChartSource struct {
	Name      string
	Worksheet string
	Range     string
}

// DetailsPrompt collects the missing external-binding fields for a pending
// widget. Implementations finish the flow by calling
// Service.CompletePendingWidget or Service.CancelPendingWidget.
type DetailsPrompt interface {
	RequestDetails(ctx context.Context, pending Widget) error
}

// RefreshHook notifies transports (SSE/WebSocket) about dashboard changes.
type RefreshHook interface {
	DashboardUpdated(ctx context.Context, event ChangeEvent) error
}

// GridLayoutItem positions one widget within one breakpoint grid.
type GridLayoutItem struct {
	I    string `json:"i" yaml:"i"`
	X    int    `json:"x" yaml:"x"`
	Y    int    `json:"y" yaml:"y"`
	W    int    `json:"w" yaml:"w"`
	H    int    `json:"h" yaml:"h"`
	MinW int    `json:"minW,omitempty" yaml:"minW,omitempty"`
	MinH int    `json:"minH,omitempty" yaml:"minH,omitempty"`
}

// Layouts maps a breakpoint name to its grid items.
type Layouts map[string][]GridLayoutItem

// DashboardItem is the persisted dashboard aggregate.
type DashboardItem struct {
	ID             string             `json:"id"`
	Title          string             `json:"title" validate:"required,max=200"`
	Components     []Widget           `json:"components" validate:"dive"`
	Layouts        Layouts            `json:"layouts"`
	Versions       []DashboardVersion `json:"versions,omitempty" validate:"max=5"`
	BorderSettings *BorderSettings    `json:"borderSettings,omitempty"`
	WorkbookID     string             `json:"workbookId"`
	CreatedAt      time.Time          `json:"createdAt,omitzero"`
	UpdatedAt      time.Time          `json:"updatedAt,omitzero"`
}

// DashboardVersion is an immutable snapshot of a dashboard.
type DashboardVersion struct {
	ID             string          `json:"id"`
	Timestamp      time.Time       `json:"timestamp"`
	Title          string          `json:"title"`
	Components     []Widget        `json:"components"`
	Layouts        Layouts         `json:"layouts"`
	BorderSettings *BorderSettings `json:"borderSettings,omitempty"`
}

// Template is a reusable widget set without a workbook binding.
type Template struct {
	ID             string          `json:"id"`
	Name           string          `json:"name" validate:"required,max=200"`
	Components     []Widget        `json:"components" validate:"dive"`
	Layouts        Layouts         `json:"layouts"`
	BorderSettings *BorderSettings `json:"borderSettings,omitempty"`
	CreatedAt      time.Time       `json:"createdAt,omitzero"`
	UpdatedAt      time.Time       `json:"updatedAt,omitzero"`
}

// State is the in-memory dashboard the Store owns.
type State struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Widgets        []Widget        `json:"components"`
	Layouts        Layouts         `json:"layouts"`
	BorderSettings *BorderSettings `json:"borderSettings,omitempty"`
}

// Snapshot is one undo/redo history entry.
type Snapshot struct {
	Widgets []Widget
	Layouts Layouts
}

// Origin tags why a state transition happened so observers can decide whether
// to persist or forward it.
type Origin string

const (
	// OriginLocal is a user edit in this process.
	OriginLocal Origin = "local"
	// OriginHistory is an undo or redo.
	OriginHistory Origin = "history"
	// OriginPresenter is state received over the presenter channel.
	OriginPresenter Origin = "presenter"
	// OriginSync is data pulled from the spreadsheet.
	OriginSync Origin = "sync"
	// OriginVersion is a version restore.
	OriginVersion Origin = "version"
	// OriginLoad is a dashboard load, switch or reset.
	OriginLoad Origin = "load"
)

// ChangeEvent is emitted after every committed state transition. Seq grows
// monotonically per Store.
type ChangeEvent struct {
	Seq    uint64 `json:"seq"`
	Origin Origin `json:"origin"`
	Reason string `json:"reason"`
	State  State  `json:"state"`
}

func (s State) clone() State {
	s.Widgets = cloneWidgets(s.Widgets)
	s.Layouts = s.Layouts.Clone()
	s.BorderSettings = s.BorderSettings.Clone()
	return s
}

// Item converts the state into a persistable dashboard.
// A blank title is saved as DefaultDashboardTitle.
func (s State) Item(workbookID string, versions []DashboardVersion) DashboardItem {
	return DashboardItem{
		ID:             s.ID,
		Title:          titleOrDefault(s.Title),
		Components:     cloneWidgets(s.Widgets),
		Layouts:        s.Layouts.Clone(),
		Versions:       cloneVersions(versions),
		BorderSettings: s.BorderSettings.Clone(),
		WorkbookID:     workbookID,
	}
}

func titleOrDefault(title string) string {
	if strings.TrimSpace(title) == "" {
		return DefaultDashboardTitle
	}
	return title
}

func cloneVersions(versions []DashboardVersion) []DashboardVersion {
	if versions == nil {
		return nil
	}
	out := make([]DashboardVersion, len(versions))
	for i, v := range versions {
		v.Components = cloneWidgets(v.Components)
		v.Layouts = v.Layouts.Clone()
		v.BorderSettings = v.BorderSettings.Clone()
		out[i] = v
	}
	return out
}
