package presenter

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/goliatone/go-sheetboard/components/dashboard"
)

// HostOptions configures the editing-window side of the channel.
type HostOptions struct {
	Logger *zap.Logger
	// OnClose runs when the viewer asks to close the presenter window.
	OnClose func()
	// OnFullscreen runs when the viewer enters or leaves sub-fullscreen.
	OnFullscreen func(active bool)
}

// Host serves a Viewer from the editing window: it answers state and range
// requests, forwards every change that did not come from the viewer and
// applies the viewer's edits.
type Host struct {
	svc       *dashboard.Service
	transport Transport
	logger    *zap.Logger
	opts      HostOptions

	mu         sync.Mutex
	latest     *Message
	lastRemote uint64
	fullscreen bool
	closed     bool

	wake        chan struct{}
	done        chan struct{}
	closeOnce   sync.Once
	unsubscribe func()
}

// NewHost attaches a host to svc. Changes are queued from this point on and
// sent once Run is called.
func NewHost(svc *dashboard.Service, transport Transport, opts HostOptions) *Host {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	h := &Host{
		svc:       svc,
		transport: transport,
		logger:    opts.Logger.Named("presenter.host"),
		opts:      opts,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	h.unsubscribe = svc.Store().Subscribe(h.onChange)
	return h
}

// Run serves the channel until the viewer closes it, the transport fails
// or ctx is done. The host is closed on return.
func (h *Host) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer h.Close()
	go h.writeLoop(ctx)

	for {
		msg, err := h.transport.Receive(ctx)
		if err != nil {
			if errors.Is(err, ErrMalformedMessage) {
				h.logger.Warn("dropping malformed presenter message", zap.Error(err))
				continue
			}
			if errors.Is(err, ErrClosed) {
				return nil
			}
			return err
		}
		if h.handle(ctx, msg) {
			return nil
		}
	}
}

// EditingEnabled reports whether editing affordances should be shown in
// the host window. They are hidden while the viewer is in sub-fullscreen.
func (h *Host) EditingEnabled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.fullscreen
}

// Done is closed once the host stops.
func (h *Host) Done() <-chan struct{} { return h.done }

// Close detaches from the store and closes the transport.
func (h *Host) Close() error {
	var err error
	h.closeOnce.Do(func() {
		h.mu.Lock()
		h.closed = true
		h.latest = nil
		h.mu.Unlock()
		h.unsubscribe()
		close(h.done)
		err = h.transport.Close()
	})
	return err
}

func (h *Host) onChange(event dashboard.ChangeEvent) {
	if event.Origin == dashboard.OriginPresenter {
		return
	}
	msg := stateMessage(TypeUpdateDashboardData, event.Seq, event.State)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	if h.latest == nil || h.latest.Seq < msg.Seq {
		h.latest = &msg
	}
	h.mu.Unlock()
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// writeLoop sends the newest queued state. Intermediate states are skipped
// since every update carries the full dashboard.
func (h *Host) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-h.wake:
		}
		h.mu.Lock()
		msg := h.latest
		h.latest = nil
		h.mu.Unlock()
		if msg == nil {
			continue
		}
		if err := h.transport.Send(ctx, *msg); err != nil {
			if errors.Is(err, ErrClosed) || ctx.Err() != nil {
				return
			}
			h.logger.Warn("presenter update failed", zap.Uint64("seq", msg.Seq), zap.Error(err))
		}
	}
}

// handle processes one inbound message and reports whether the channel
// should stop.
func (h *Host) handle(ctx context.Context, msg Message) bool {
	switch msg.Type {
	case TypeRequestState:
		h.sendInitialState(ctx)
	case TypeUpdateDashboardData:
		h.mu.Lock()
		stale := msg.Seq != 0 && msg.Seq <= h.lastRemote
		if !stale {
			h.lastRemote = msg.Seq
		}
		h.mu.Unlock()
		if stale {
			h.logger.Debug("dropping stale presenter update", zap.Uint64("seq", msg.Seq))
			return false
		}
		h.svc.ApplyPresenterState(ctx, msg.State())
	case TypeGetDataFromRange:
		h.answerRange(ctx, msg)
	case TypeFullscreenActive:
		h.mu.Lock()
		h.fullscreen = msg.Active
		h.mu.Unlock()
		if h.opts.OnFullscreen != nil {
			h.opts.OnFullscreen(msg.Active)
		}
	case TypeClose:
		if h.opts.OnClose != nil {
			h.opts.OnClose()
		}
		return true
	default:
		h.logger.Warn("unknown presenter message", zap.String("type", string(msg.Type)))
	}
	return false
}

func (h *Host) sendInitialState(ctx context.Context) {
	state, seq := h.svc.Store().StateSeq()
	msg := stateMessage(TypeInitialState, seq, state)
	msg.CurrentWorkbookID = h.svc.WorkbookID()
	if current, err := h.svc.CurrentWorkbookID(ctx); err == nil && current != "" {
		msg.CurrentWorkbookID = current
	}
	if accessor := h.svc.Accessor(); accessor != nil {
		sheets, err := accessor.WorksheetNames(ctx)
		if err != nil {
			h.logger.Warn("list worksheets failed", zap.Error(err))
		}
		msg.AvailableWorksheets = sheets
	}
	if err := h.transport.Send(ctx, msg); err != nil {
		h.logger.Warn("send initial state failed", zap.Error(err))
	}
}

func (h *Host) answerRange(ctx context.Context, req Message) {
	reply := Message{WidgetID: req.WidgetID, WorksheetName: req.WorksheetName, Range: req.Range}
	accessor := h.svc.Accessor()
	if accessor == nil {
		reply.Type = TypeDataFromRangeError
		reply.Error = dashboard.ErrAccessorUnavailable.Error()
	} else if values, err := accessor.ReadRange(ctx, req.WorksheetName, req.Range); err != nil {
		reply.Type = TypeDataFromRangeError
		reply.Error = err.Error()
		h.logger.Warn("presenter range read failed",
			zap.String("widget_id", req.WidgetID),
			zap.String("worksheet", req.WorksheetName),
			zap.String("range", req.Range),
			zap.Error(err))
	} else {
		reply.Type = TypeDataFromRange
		reply.Values = values
	}
	if err := h.transport.Send(ctx, reply); err != nil {
		h.logger.Warn("send range reply failed", zap.String("widget_id", req.WidgetID), zap.Error(err))
	}
}
