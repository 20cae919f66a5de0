package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	gocommand "github.com/goliatone/go-command"

	"github.com/goliatone/go-sheetboard/components/dashboard"
)

// SaveVersionInput snapshots the open dashboard.
type SaveVersionInput struct {
	Actor
}

// RestoreVersionInput replaces the open dashboard with a saved version.
type RestoreVersionInput struct {
	Actor
	VersionID string `json:"version_id"`
}

type versionService interface {
	SaveDashboardVersion(ctx context.Context) (dashboard.DashboardVersion, error)
	RestoreDashboardVersion(ctx context.Context, id string) error
}

// SaveVersionCommand wraps Service.SaveDashboardVersion.
type SaveVersionCommand struct {
	service   versionService
	telemetry Telemetry
}

// NewSaveVersionCommand creates the command.
func NewSaveVersionCommand(service versionService, telemetry Telemetry) *SaveVersionCommand {
	return &SaveVersionCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[SaveVersionInput] = (*SaveVersionCommand)(nil)

func (c *SaveVersionCommand) Execute(ctx context.Context, msg SaveVersionInput) error {
	if c.service == nil {
		return errors.New("save version command requires service")
	}
	ctx = msg.Actor.context(ctx)
	version, err := c.service.SaveDashboardVersion(ctx)
	if err != nil {
		return err
	}
	c.telemetry.Record(ctx, "dashboard.command.version_save", map[string]any{"version_id": version.ID})
	return nil
}

// RestoreVersionCommand wraps Service.RestoreDashboardVersion.
type RestoreVersionCommand struct {
	service   versionService
	telemetry Telemetry
}

// NewRestoreVersionCommand creates the command.
func NewRestoreVersionCommand(service versionService, telemetry Telemetry) *RestoreVersionCommand {
	return &RestoreVersionCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[RestoreVersionInput] = (*RestoreVersionCommand)(nil)

func (c *RestoreVersionCommand) Execute(ctx context.Context, msg RestoreVersionInput) error {
	if c.service == nil {
		return errors.New("restore version command requires service")
	}
	if msg.VersionID == "" {
		return fmt.Errorf("%w: restore version command requires version id", ErrInvalidInput)
	}
	ctx = msg.Actor.context(ctx)
	if err := c.service.RestoreDashboardVersion(ctx, msg.VersionID); err != nil {
		return err
	}
	c.telemetry.Record(ctx, "dashboard.command.version_restore", map[string]any{"version_id": msg.VersionID})
	return nil
}

// ImportWidgetsInput carries an exported dashboard file.
type ImportWidgetsInput struct {
	Actor
	Document json.RawMessage `json:"document"`
}

type importService interface {
	ImportWidgets(ctx context.Context, r io.Reader) error
}

// ImportWidgetsCommand replaces the open dashboard's widgets with an
// exported file's contents.
type ImportWidgetsCommand struct {
	service   importService
	telemetry Telemetry
}

// NewImportWidgetsCommand creates the command.
func NewImportWidgetsCommand(service importService, telemetry Telemetry) *ImportWidgetsCommand {
	return &ImportWidgetsCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[ImportWidgetsInput] = (*ImportWidgetsCommand)(nil)

func (c *ImportWidgetsCommand) Execute(ctx context.Context, msg ImportWidgetsInput) error {
	if c.service == nil {
		return errors.New("import command requires service")
	}
	if len(msg.Document) == 0 {
		return fmt.Errorf("%w: import command requires a document", ErrInvalidInput)
	}
	ctx = msg.Actor.context(ctx)
	if err := c.service.ImportWidgets(ctx, bytes.NewReader(msg.Document)); err != nil {
		return err
	}
	c.telemetry.Record(ctx, "dashboard.command.import", map[string]any{"bytes": len(msg.Document)})
	return nil
}
