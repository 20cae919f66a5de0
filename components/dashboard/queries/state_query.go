package queries

import (
	"context"

	gocommand "github.com/goliatone/go-command"

	"github.com/goliatone/go-sheetboard/components/dashboard"
)

// StateInput requests the open dashboard.
type StateInput struct{}

// StateView is the open dashboard plus editor affordances.
type StateView struct {
	State           dashboard.State `json:"state"`
	WorkbookID      string          `json:"workbookId"`
	CanUndo         bool            `json:"canUndo"`
	CanRedo         bool            `json:"canRedo"`
	AutosavePending bool            `json:"autosavePending"`
}

type stateService interface {
	State() dashboard.State
	WorkbookID() string
	CanUndo() bool
	CanRedo() bool
	AutosavePending() bool
}

// StateQuery reads the open dashboard.
type StateQuery struct {
	service stateService
}

// NewStateQuery builds the query.
func NewStateQuery(service stateService) *StateQuery {
	return &StateQuery{service: service}
}

var _ gocommand.Querier[StateInput, StateView] = (*StateQuery)(nil)

func (q *StateQuery) Query(context.Context, StateInput) (StateView, error) {
	return StateView{
		State:           q.service.State(),
		WorkbookID:      q.service.WorkbookID(),
		CanUndo:         q.service.CanUndo(),
		CanRedo:         q.service.CanRedo(),
		AutosavePending: q.service.AutosavePending(),
	}, nil
}

// WidgetInput identifies one widget.
type WidgetInput struct {
	WidgetID string `json:"widget_id"`
}

type widgetService interface {
	State() dashboard.State
}

// WidgetQuery fetches one widget from the open dashboard.
type WidgetQuery struct {
	service widgetService
}

// NewWidgetQuery builds the query.
func NewWidgetQuery(service widgetService) *WidgetQuery {
	return &WidgetQuery{service: service}
}

var _ gocommand.Querier[WidgetInput, dashboard.Widget] = (*WidgetQuery)(nil)

// Query returns dashboard.ErrWidgetNotFound for unknown ids.
func (q *WidgetQuery) Query(_ context.Context, input WidgetInput) (dashboard.Widget, error) {
	for _, w := range q.service.State().Widgets {
		if w.ID == input.WidgetID {
			return w, nil
		}
	}
	return dashboard.Widget{}, dashboard.ErrWidgetNotFound
}
