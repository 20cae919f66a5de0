package commands

import (
	"context"
	"errors"
	"fmt"

	gocommand "github.com/goliatone/go-command"

	"github.com/goliatone/go-sheetboard/components/dashboard"
)

// SaveTemplateInput stores the open dashboard's widgets as a named template.
type SaveTemplateInput struct {
	Actor
	Name string `json:"name"`
}

// ApplyTemplateInput replaces the open dashboard's widgets with a template.
type ApplyTemplateInput struct {
	Actor
	TemplateID string `json:"template_id"`
}

type templateService interface {
	SaveAsTemplate(ctx context.Context, name string) (dashboard.Template, error)
	ApplyTemplate(ctx context.Context, id string) error
}

// SaveTemplateCommand wraps Service.SaveAsTemplate.
type SaveTemplateCommand struct {
	service   templateService
	telemetry Telemetry
}

// NewSaveTemplateCommand creates the command.
func NewSaveTemplateCommand(service templateService, telemetry Telemetry) *SaveTemplateCommand {
	return &SaveTemplateCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[SaveTemplateInput] = (*SaveTemplateCommand)(nil)

func (c *SaveTemplateCommand) Execute(ctx context.Context, msg SaveTemplateInput) error {
	if c.service == nil {
		return errors.New("save template command requires service")
	}
	if msg.Name == "" {
		return fmt.Errorf("%w: save template command requires name", ErrInvalidInput)
	}
	ctx = msg.Actor.context(ctx)
	tpl, err := c.service.SaveAsTemplate(ctx, msg.Name)
	if err != nil {
		return err
	}
	c.telemetry.Record(ctx, "dashboard.command.template_save", map[string]any{"template_id": tpl.ID})
	return nil
}

// ApplyTemplateCommand wraps Service.ApplyTemplate.
type ApplyTemplateCommand struct {
	service   templateService
	telemetry Telemetry
}

// NewApplyTemplateCommand creates the command.
func NewApplyTemplateCommand(service templateService, telemetry Telemetry) *ApplyTemplateCommand {
	return &ApplyTemplateCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[ApplyTemplateInput] = (*ApplyTemplateCommand)(nil)

func (c *ApplyTemplateCommand) Execute(ctx context.Context, msg ApplyTemplateInput) error {
	if c.service == nil {
		return errors.New("apply template command requires service")
	}
	if msg.TemplateID == "" {
		return fmt.Errorf("%w: apply template command requires template id", ErrInvalidInput)
	}
	ctx = msg.Actor.context(ctx)
	if err := c.service.ApplyTemplate(ctx, msg.TemplateID); err != nil {
		return err
	}
	c.telemetry.Record(ctx, "dashboard.command.template_apply", map[string]any{"template_id": msg.TemplateID})
	return nil
}

// SeedTemplatesInput imports every template file in Dir that is not stored yet.
type SeedTemplatesInput struct {
	Dir string `json:"dir"`
}

// SeedTemplatesCommand wraps dashboard.SeedTemplates.
type SeedTemplatesCommand struct {
	service   *dashboard.Service
	telemetry Telemetry
}

// NewSeedTemplatesCommand creates the command.
func NewSeedTemplatesCommand(service *dashboard.Service, telemetry Telemetry) *SeedTemplatesCommand {
	return &SeedTemplatesCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[SeedTemplatesInput] = (*SeedTemplatesCommand)(nil)

// Execute seeds templates. Files that fail are reported together after the
// rest were imported.
func (c *SeedTemplatesCommand) Execute(ctx context.Context, msg SeedTemplatesInput) error {
	if c.service == nil {
		return errors.New("seed command requires service")
	}
	if msg.Dir == "" {
		return fmt.Errorf("%w: seed command requires a directory", ErrInvalidInput)
	}
	seeded, err := dashboard.SeedTemplates(ctx, c.service, msg.Dir)
	c.telemetry.Record(ctx, "dashboard.command.seed", map[string]any{
		"dir":       msg.Dir,
		"templates": len(seeded),
	})
	return err
}
