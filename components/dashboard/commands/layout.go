package commands

import (
	"context"
	"errors"
	"fmt"

	gocommand "github.com/goliatone/go-command"

	"github.com/goliatone/go-sheetboard/components/dashboard"
)

// UpdateLayoutsInput replaces the grid layouts, typically after a drag or
// resize in the editor.
type UpdateLayoutsInput struct {
	Actor
	Layouts dashboard.Layouts `json:"layouts"`
}

type layoutService interface {
	UpdateLayouts(ctx context.Context, layouts dashboard.Layouts) error
}

// UpdateLayoutsCommand wraps Service.UpdateLayouts.
type UpdateLayoutsCommand struct {
	service   layoutService
	telemetry Telemetry
}

// NewUpdateLayoutsCommand creates the command.
func NewUpdateLayoutsCommand(service layoutService, telemetry Telemetry) *UpdateLayoutsCommand {
	return &UpdateLayoutsCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[UpdateLayoutsInput] = (*UpdateLayoutsCommand)(nil)

func (c *UpdateLayoutsCommand) Execute(ctx context.Context, msg UpdateLayoutsInput) error {
	if c.service == nil {
		return errors.New("layout command requires service")
	}
	if len(msg.Layouts) == 0 {
		return fmt.Errorf("%w: layout command requires layouts", ErrInvalidInput)
	}
	ctx = msg.Actor.context(ctx)
	if err := c.service.UpdateLayouts(ctx, msg.Layouts); err != nil {
		return err
	}
	c.telemetry.Record(ctx, "dashboard.command.layouts", map[string]any{"breakpoints": len(msg.Layouts)})
	return nil
}

// SettingsInput changes dashboard-level settings. Nil fields are left alone.
type SettingsInput struct {
	Actor
	Title          *string                   `json:"title,omitempty"`
	BorderSettings *dashboard.BorderSettings `json:"border_settings,omitempty"`
}

type settingsService interface {
	SetTitle(ctx context.Context, title string) error
	SetBorderSettings(ctx context.Context, settings dashboard.BorderSettings) error
}

// SettingsCommand wraps Service.SetTitle and Service.SetBorderSettings.
type SettingsCommand struct {
	service   settingsService
	telemetry Telemetry
}

// NewSettingsCommand creates the command.
func NewSettingsCommand(service settingsService, telemetry Telemetry) *SettingsCommand {
	return &SettingsCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[SettingsInput] = (*SettingsCommand)(nil)

func (c *SettingsCommand) Execute(ctx context.Context, msg SettingsInput) error {
	if c.service == nil {
		return errors.New("settings command requires service")
	}
	if msg.Title == nil && msg.BorderSettings == nil {
		return fmt.Errorf("%w: settings command requires title or border settings", ErrInvalidInput)
	}
	ctx = msg.Actor.context(ctx)
	if msg.Title != nil {
		if err := c.service.SetTitle(ctx, *msg.Title); err != nil {
			return err
		}
	}
	if msg.BorderSettings != nil {
		if err := c.service.SetBorderSettings(ctx, *msg.BorderSettings); err != nil {
			return err
		}
	}
	c.telemetry.Record(ctx, "dashboard.command.settings", map[string]any{
		"title":   msg.Title != nil,
		"borders": msg.BorderSettings != nil,
	})
	return nil
}
