package commands

import (
	"context"
	"errors"
	"fmt"

	gocommand "github.com/goliatone/go-command"
)

// RefreshScope selects what a refresh pulls from the spreadsheet.
type RefreshScope string

const (
	// RefreshCharts re-reads every range-bound chart, table and metric.
	RefreshCharts RefreshScope = "charts"
	// RefreshGantt re-reads the Gantt sheet table.
	RefreshGantt RefreshScope = "gantt"
	// RefreshAll does both.
	RefreshAll RefreshScope = "all"
)

// RefreshInput pulls fresh data from the spreadsheet.
type RefreshInput struct {
	Actor
	Scope RefreshScope `json:"scope"`
}

type refreshService interface {
	RefreshAllCharts(ctx context.Context) error
	RefreshGantt(ctx context.Context) error
}

// RefreshCommand wraps the Service refresh operations.
type RefreshCommand struct {
	service   refreshService
	telemetry Telemetry
}

// NewRefreshCommand creates the command.
func NewRefreshCommand(service refreshService, telemetry Telemetry) *RefreshCommand {
	return &RefreshCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[RefreshInput] = (*RefreshCommand)(nil)

// Execute runs the refresh for msg.Scope. An empty scope means charts.
func (c *RefreshCommand) Execute(ctx context.Context, msg RefreshInput) error {
	if c.service == nil {
		return errors.New("refresh command requires service")
	}
	scope := msg.Scope
	if scope == "" {
		scope = RefreshCharts
	}
	ctx = msg.Actor.context(ctx)
	var errs []error
	switch scope {
	case RefreshCharts:
		errs = append(errs, c.service.RefreshAllCharts(ctx))
	case RefreshGantt:
		errs = append(errs, c.service.RefreshGantt(ctx))
	case RefreshAll:
		errs = append(errs, c.service.RefreshAllCharts(ctx), c.service.RefreshGantt(ctx))
	default:
		return fmt.Errorf("%w: refresh command: unknown scope %q", ErrInvalidInput, scope)
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	c.telemetry.Record(ctx, "dashboard.command.refresh", map[string]any{"scope": string(scope)})
	return nil
}
