package commands

import (
	"context"
	"errors"
	"fmt"

	gocommand "github.com/goliatone/go-command"
)

// ErrNothingToReplay is returned when the requested history stack is empty.
var ErrNothingToReplay = errors.New("commands: history stack is empty")

// HistoryAction selects the direction of a history step.
type HistoryAction string

const (
	ActionUndo HistoryAction = "undo"
	ActionRedo HistoryAction = "redo"
)

// HistoryInput steps the undo history once.
type HistoryInput struct {
	Actor
	Action HistoryAction `json:"action"`
}

type historyService interface {
	Undo(ctx context.Context) bool
	Redo(ctx context.Context) bool
}

// HistoryCommand wraps Service.Undo and Service.Redo.
type HistoryCommand struct {
	service   historyService
	telemetry Telemetry
}

// NewHistoryCommand creates the command.
func NewHistoryCommand(service historyService, telemetry Telemetry) *HistoryCommand {
	return &HistoryCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[HistoryInput] = (*HistoryCommand)(nil)

func (c *HistoryCommand) Execute(ctx context.Context, msg HistoryInput) error {
	if c.service == nil {
		return errors.New("history command requires service")
	}
	ctx = msg.Actor.context(ctx)
	var moved bool
	switch msg.Action {
	case ActionUndo:
		moved = c.service.Undo(ctx)
	case ActionRedo:
		moved = c.service.Redo(ctx)
	default:
		return fmt.Errorf("%w: history command: unknown action %q", ErrInvalidInput, msg.Action)
	}
	if !moved {
		return fmt.Errorf("%w: %s", ErrNothingToReplay, msg.Action)
	}
	c.telemetry.Record(ctx, "dashboard.command.history", map[string]any{"action": string(msg.Action)})
	return nil
}
