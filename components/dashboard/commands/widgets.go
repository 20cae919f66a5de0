package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	gocommand "github.com/goliatone/go-command"

	"github.com/goliatone/go-sheetboard/components/dashboard"
)

// Actor identifies who issued a command. Both fields are optional.
type Actor struct {
	ActorID   string `json:"actor_id"`
	SessionID string `json:"session_id"`
}

func (a Actor) context(ctx context.Context) context.Context {
	if a.ActorID == "" && a.SessionID == "" {
		return ctx
	}
	return dashboard.ContextWithActivity(ctx, dashboard.ActivityContext{ActorID: a.ActorID, SessionID: a.SessionID})
}

// AddWidgetInput adds a widget of Type. Data overrides the type defaults.
type AddWidgetInput struct {
	Actor
	Type dashboard.WidgetType `json:"type"`
	Data json.RawMessage      `json:"data,omitempty"`
}

type addService interface {
	AddWidget(ctx context.Context, req dashboard.AddWidgetRequest) (dashboard.AddWidgetResult, error)
}

// AddWidgetCommand wraps Service.AddWidget.
type AddWidgetCommand struct {
	service   addService
	telemetry Telemetry
}

// NewAddWidgetCommand creates the command.
func NewAddWidgetCommand(service addService, telemetry Telemetry) *AddWidgetCommand {
	return &AddWidgetCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[AddWidgetInput] = (*AddWidgetCommand)(nil)

// Execute decodes the optional payload and adds the widget.
func (c *AddWidgetCommand) Execute(ctx context.Context, msg AddWidgetInput) error {
	if c.service == nil {
		return errors.New("add command requires service")
	}
	if msg.Type == "" {
		return fmt.Errorf("%w: add command requires widget type", ErrInvalidInput)
	}
	req := dashboard.AddWidgetRequest{Type: msg.Type}
	if len(msg.Data) > 0 {
		data, err := dashboard.DecodeWidgetData(msg.Type, msg.Data)
		if err != nil {
			return fmt.Errorf("%w: %v", dashboard.ErrInvalidWidgetData, err)
		}
		req.Data = data
	}
	ctx = msg.Actor.context(ctx)
	res, err := c.service.AddWidget(ctx, req)
	if err != nil {
		return err
	}
	c.telemetry.Record(ctx, "dashboard.command.add", map[string]any{
		"widget_id": res.Widget.ID,
		"type":      string(msg.Type),
		"pending":   res.Pending,
	})
	return nil
}

// UpdateWidgetInput shallow-merges Patch into the widget's data.
type UpdateWidgetInput struct {
	Actor
	WidgetID string         `json:"widget_id"`
	Patch    map[string]any `json:"patch"`
}

type updateService interface {
	UpdateWidget(ctx context.Context, id string, patch map[string]any) error
}

// UpdateWidgetCommand wraps Service.UpdateWidget.
type UpdateWidgetCommand struct {
	service   updateService
	telemetry Telemetry
}

// NewUpdateWidgetCommand creates the command.
func NewUpdateWidgetCommand(service updateService, telemetry Telemetry) *UpdateWidgetCommand {
	return &UpdateWidgetCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[UpdateWidgetInput] = (*UpdateWidgetCommand)(nil)

func (c *UpdateWidgetCommand) Execute(ctx context.Context, msg UpdateWidgetInput) error {
	if c.service == nil {
		return errors.New("update command requires service")
	}
	if msg.WidgetID == "" {
		return fmt.Errorf("%w: update command requires widget id", ErrInvalidInput)
	}
	ctx = msg.Actor.context(ctx)
	if err := c.service.UpdateWidget(ctx, msg.WidgetID, msg.Patch); err != nil {
		return err
	}
	c.telemetry.Record(ctx, "dashboard.command.update", map[string]any{"widget_id": msg.WidgetID})
	return nil
}

// RemoveWidgetInput deletes a widget. The title widget is refused unless
// AllowTitle is set.
type RemoveWidgetInput struct {
	Actor
	WidgetID   string `json:"widget_id"`
	AllowTitle bool   `json:"allow_title"`
}

type removeService interface {
	RemoveWidget(ctx context.Context, id string, opts dashboard.RemoveOptions) error
}

// RemoveWidgetCommand wraps Service.RemoveWidget.
type RemoveWidgetCommand struct {
	service   removeService
	telemetry Telemetry
}

// NewRemoveWidgetCommand creates the command.
func NewRemoveWidgetCommand(service removeService, telemetry Telemetry) *RemoveWidgetCommand {
	return &RemoveWidgetCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[RemoveWidgetInput] = (*RemoveWidgetCommand)(nil)

func (c *RemoveWidgetCommand) Execute(ctx context.Context, msg RemoveWidgetInput) error {
	if c.service == nil {
		return errors.New("remove command requires service")
	}
	if msg.WidgetID == "" {
		return fmt.Errorf("%w: remove command requires widget id", ErrInvalidInput)
	}
	ctx = msg.Actor.context(ctx)
	if err := c.service.RemoveWidget(ctx, msg.WidgetID, dashboard.RemoveOptions{AllowTitle: msg.AllowTitle}); err != nil {
		return err
	}
	c.telemetry.Record(ctx, "dashboard.command.remove", map[string]any{"widget_id": msg.WidgetID})
	return nil
}

// CopyWidgetInput duplicates a widget under a fresh id.
type CopyWidgetInput struct {
	Actor
	WidgetID string `json:"widget_id"`
}

type copyService interface {
	CopyWidget(ctx context.Context, id string) (dashboard.Widget, error)
}

// CopyWidgetCommand wraps Service.CopyWidget.
type CopyWidgetCommand struct {
	service   copyService
	telemetry Telemetry
}

// NewCopyWidgetCommand creates the command.
func NewCopyWidgetCommand(service copyService, telemetry Telemetry) *CopyWidgetCommand {
	return &CopyWidgetCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[CopyWidgetInput] = (*CopyWidgetCommand)(nil)

func (c *CopyWidgetCommand) Execute(ctx context.Context, msg CopyWidgetInput) error {
	if c.service == nil {
		return errors.New("copy command requires service")
	}
	if msg.WidgetID == "" {
		return fmt.Errorf("%w: copy command requires widget id", ErrInvalidInput)
	}
	ctx = msg.Actor.context(ctx)
	copied, err := c.service.CopyWidget(ctx, msg.WidgetID)
	if err != nil {
		return err
	}
	c.telemetry.Record(ctx, "dashboard.command.copy", map[string]any{
		"widget_id": msg.WidgetID,
		"copy_id":   copied.ID,
	})
	return nil
}
