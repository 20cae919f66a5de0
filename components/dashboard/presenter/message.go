// Package presenter mirrors a dashboard between the editing window (Host)
// and a full-screen presenter window (Viewer) over a message Transport.
package presenter

import (
	"github.com/goliatone/go-sheetboard/components/dashboard"
)

// MessageType discriminates presenter channel messages.
type MessageType string

const (
	// TypeRequestState is sent once by the viewer when it is ready.
	TypeRequestState MessageType = "requestState"
	// TypeInitialState answers requestState with the full dashboard.
	TypeInitialState MessageType = "initialState"
	// TypeUpdateDashboardData carries a full state replacement in either direction.
	TypeUpdateDashboardData MessageType = "updateDashboardData"
	// TypeGetDataFromRange asks the host to read a worksheet range.
	TypeGetDataFromRange MessageType = "getDataFromRange"
	// TypeDataFromRange answers getDataFromRange with cell values.
	TypeDataFromRange MessageType = "dataFromRange"
	// TypeDataFromRangeError answers getDataFromRange with a failure.
	TypeDataFromRangeError MessageType = "dataFromRangeError"
	// TypeClose asks the host to close the presenter window.
	TypeClose MessageType = "close"
	// TypeFullscreenActive reports the viewer's sub-fullscreen state.
	TypeFullscreenActive MessageType = "fullscreenActive"
)

// Message is the flat JSON envelope exchanged on the channel. Only the
// fields relevant to Type are set.
type Message struct {
	Type MessageType `json:"type"`
	Seq  uint64      `json:"seq,omitempty"`

	ID             string                    `json:"id,omitempty"`
	Title          string                    `json:"title,omitempty"`
	Components     []dashboard.Widget        `json:"components,omitempty"`
	Layouts        dashboard.Layouts         `json:"layouts,omitempty"`
	BorderSettings *dashboard.BorderSettings `json:"borderSettings,omitempty"`

	CurrentWorkbookID   string   `json:"currentWorkbookId,omitempty"`
	AvailableWorksheets []string `json:"availableWorksheets,omitempty"`

	WidgetID      string  `json:"widgetId,omitempty"`
	WorksheetName string  `json:"worksheetName,omitempty"`
	Range         string  `json:"range,omitempty"`
	Values        [][]any `json:"values,omitempty"`
	Error         string  `json:"error,omitempty"`

	Active bool `json:"active,omitempty"`
}

func stateMessage(typ MessageType, seq uint64, state dashboard.State) Message {
	return Message{
		Type:           typ,
		Seq:            seq,
		ID:             state.ID,
		Title:          state.Title,
		Components:     state.Widgets,
		Layouts:        state.Layouts,
		BorderSettings: state.BorderSettings,
	}
}

// State extracts the dashboard carried by a state message.
func (m Message) State() dashboard.State {
	return dashboard.State{
		ID:             m.ID,
		Title:          m.Title,
		Widgets:        m.Components,
		Layouts:        m.Layouts,
		BorderSettings: m.BorderSettings,
	}
}
