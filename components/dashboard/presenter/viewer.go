package presenter

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-sheetboard/components/dashboard"
)

// ErrRequestSuperseded is returned to a range request replaced by a newer
// request for the same widget.
var ErrRequestSuperseded = errors.New("presenter: range request superseded")

const sendTimeout = 10 * time.Second

// RangeError is the host's failure reply to a range request.
type RangeError struct {
	WidgetID string
	Message  string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("presenter: range for widget %s: %s", e.WidgetID, e.Message)
}

// ViewerOptions configures the presenter-window side of the channel.
type ViewerOptions struct {
	Registry *dashboard.Registry
	Logger   *zap.Logger
}

// Viewer mirrors the host's dashboard into its own Store. Local edits made
// through Store are pushed to the host.
type Viewer struct {
	store     *dashboard.Store
	transport Transport
	logger    *zap.Logger

	mu         sync.Mutex
	lastSeq    uint64
	workbookID string
	worksheets []string
	pending    map[string]chan rangeReply

	ready       chan struct{}
	readyOnce   sync.Once
	unsubscribe func()
}

type rangeReply struct {
	values [][]any
	err    error
}

// NewViewer builds a viewer with an empty store.
func NewViewer(transport Transport, opts ViewerOptions) *Viewer {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	v := &Viewer{
		store:     dashboard.NewStore(dashboard.StoreOptions{Registry: opts.Registry}),
		transport: transport,
		logger:    opts.Logger.Named("presenter.viewer"),
		pending:   map[string]chan rangeReply{},
		ready:     make(chan struct{}),
	}
	v.unsubscribe = v.store.Subscribe(v.onChange)
	return v
}

// Store is the mirrored dashboard. Mutations on it are sent to the host.
func (v *Viewer) Store() *dashboard.Store { return v.store }

// WorkbookID is the host workbook id from the initial state.
func (v *Viewer) WorkbookID() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.workbookID
}

// Worksheets lists the host workbook's worksheets from the initial state.
func (v *Viewer) Worksheets() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.worksheets)
}

// WaitReady blocks until the initial state arrived.
func (v *Viewer) WaitReady(ctx context.Context) error {
	select {
	case <-v.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run requests the initial state and applies host messages until the
// transport closes or ctx is done.
func (v *Viewer) Run(ctx context.Context) error {
	defer v.failPending(ErrClosed)
	if err := v.transport.Send(ctx, Message{Type: TypeRequestState}); err != nil {
		return fmt.Errorf("presenter: request state: %w", err)
	}
	for {
		msg, err := v.transport.Receive(ctx)
		if err != nil {
			if errors.Is(err, ErrMalformedMessage) {
				v.logger.Warn("dropping malformed presenter message", zap.Error(err))
				continue
			}
			if errors.Is(err, ErrClosed) {
				return nil
			}
			return err
		}
		v.handle(msg)
	}
}

func (v *Viewer) handle(msg Message) {
	switch msg.Type {
	case TypeInitialState:
		v.mu.Lock()
		v.lastSeq = msg.Seq
		v.workbookID = msg.CurrentWorkbookID
		v.worksheets = slices.Clone(msg.AvailableWorksheets)
		v.mu.Unlock()
		v.store.Load(msg.State())
		v.readyOnce.Do(func() { close(v.ready) })
	case TypeUpdateDashboardData:
		v.mu.Lock()
		stale := msg.Seq <= v.lastSeq
		if !stale {
			v.lastSeq = msg.Seq
		}
		v.mu.Unlock()
		if stale {
			v.logger.Debug("dropping stale presenter update", zap.Uint64("seq", msg.Seq))
			return
		}
		v.store.Replace(msg.State(), dashboard.OriginPresenter, "presenter")
	case TypeDataFromRange:
		v.resolve(msg.WidgetID, rangeReply{values: msg.Values})
	case TypeDataFromRangeError:
		v.resolve(msg.WidgetID, rangeReply{err: &RangeError{WidgetID: msg.WidgetID, Message: msg.Error}})
	default:
		v.logger.Warn("unknown presenter message", zap.String("type", string(msg.Type)))
	}
}

// onChange pushes local edits to the host.
func (v *Viewer) onChange(event dashboard.ChangeEvent) {
	if event.Origin != dashboard.OriginLocal && event.Origin != dashboard.OriginHistory {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	msg := stateMessage(TypeUpdateDashboardData, event.Seq, event.State)
	if err := v.transport.Send(ctx, msg); err != nil {
		v.logger.Warn("push presenter update failed", zap.Uint64("seq", event.Seq), zap.Error(err))
	}
}

// RequestRange asks the host to read worksheet!rng for widgetID. There is no
// protocol timeout; the call returns when the host answers, ctx is done or
// the channel closes. A newer request for the same widget supersedes this one.
func (v *Viewer) RequestRange(ctx context.Context, widgetID, worksheet, rng string) ([][]any, error) {
	ch := make(chan rangeReply, 1)
	v.mu.Lock()
	if prev, ok := v.pending[widgetID]; ok {
		prev <- rangeReply{err: ErrRequestSuperseded}
	}
	v.pending[widgetID] = ch
	v.mu.Unlock()

	err := v.transport.Send(ctx, Message{
		Type:          TypeGetDataFromRange,
		WidgetID:      widgetID,
		WorksheetName: worksheet,
		Range:         rng,
	})
	if err != nil {
		v.forget(widgetID, ch)
		return nil, err
	}
	select {
	case reply := <-ch:
		return reply.values, reply.err
	case <-ctx.Done():
		v.forget(widgetID, ch)
		return nil, ctx.Err()
	}
}

// SetFullscreen tells the host whether the viewer is in sub-fullscreen.
func (v *Viewer) SetFullscreen(ctx context.Context, active bool) error {
	return v.transport.Send(ctx, Message{Type: TypeFullscreenActive, Active: active})
}

// Close asks the host to close the presenter window and closes the transport.
func (v *Viewer) Close(ctx context.Context) error {
	v.unsubscribe()
	sendErr := v.transport.Send(ctx, Message{Type: TypeClose})
	if errors.Is(sendErr, ErrClosed) {
		sendErr = nil
	}
	return errors.Join(sendErr, v.transport.Close())
}

func (v *Viewer) resolve(widgetID string, reply rangeReply) {
	v.mu.Lock()
	ch, ok := v.pending[widgetID]
	delete(v.pending, widgetID)
	v.mu.Unlock()
	if !ok {
		v.logger.Debug("range reply without pending request", zap.String("widget_id", widgetID))
		return
	}
	ch <- reply
}

func (v *Viewer) forget(widgetID string, ch chan rangeReply) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.pending[widgetID] == ch {
		delete(v.pending, widgetID)
	}
}

func (v *Viewer) failPending(err error) {
	v.mu.Lock()
	pending := v.pending
	v.pending = map[string]chan rangeReply{}
	v.mu.Unlock()
	for _, ch := range pending {
		ch <- rangeReply{err: err}
	}
}
