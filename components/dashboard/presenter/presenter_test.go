package presenter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-sheetboard/components/dashboard"
)

const waitFor = 2 * time.Second

func TestViewerReceivesInitialState(t *testing.T) {
	h := startPair(t, HostOptions{})

	state := h.viewer.Store().State()
	assert.Equal(t, "dash-1", state.ID)
	assert.Equal(t, "Ops", state.Title)
	require.Len(t, state.Widgets, 1)
	assert.Equal(t, "title-0", state.Widgets[0].ID)
	assert.Equal(t, "wb-1", h.viewer.WorkbookID())
	assert.Equal(t, []string{"Sheet1", "Sheet2"}, h.viewer.Worksheets())
}

func TestHostEditReachesViewer(t *testing.T) {
	h := startPair(t, HostOptions{})
	res, err := h.svc.AddWidget(context.Background(), dashboard.AddWidgetRequest{Type: dashboard.WidgetText})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := h.viewer.Store().Widget(res.Widget.ID)
		return ok
	}, waitFor, 5*time.Millisecond)
	assert.True(t, h.viewer.Store().State().Layouts.Has("lg", res.Widget.ID))
}

func TestViewerEditReachesHostWithoutEcho(t *testing.T) {
	h := startPair(t, HostOptions{})
	before := h.hostSide.updates()

	store := h.viewer.Store()
	w := store.NewWidget(dashboard.WidgetText, dashboard.TextData{Content: "from presenter"})
	require.NoError(t, store.InsertWidget(w))

	require.Eventually(t, func() bool {
		_, ok := h.svc.Store().Widget(w.ID)
		return ok
	}, waitFor, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, h.hostSide.updates(), "host must not echo presenter edits")

	got, _ := h.svc.Store().Widget(w.ID)
	assert.Equal(t, "from presenter", got.Data.(dashboard.TextData).Content)
	assert.False(t, h.svc.CanUndo(), "presenter edits are not part of host history")
}

func TestRequestRangeReturnsValues(t *testing.T) {
	h := startPair(t, HostOptions{})
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	values, err := h.viewer.RequestRange(ctx, "table-1", "Sheet1", "A1:B2")
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"a", 1.0}, {"b", 2.0}}, values)
}

func TestRequestRangeReportsHostFailure(t *testing.T) {
	h := startPair(t, HostOptions{})
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	_, err := h.viewer.RequestRange(ctx, "table-1", "Missing", "A1")
	var rangeErr *RangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, "table-1", rangeErr.WidgetID)
	assert.Contains(t, rangeErr.Message, "Missing")
}

func TestRequestRangeHonoursContext(t *testing.T) {
	viewerSide, remote := Pipe()
	viewer := NewViewer(viewerSide, ViewerOptions{})
	go func() { _ = viewer.Run(context.Background()) }()
	t.Cleanup(func() { _ = remote.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := viewer.RequestRange(ctx, "table-1", "Sheet1", "A1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRequestRangeSupersededByNewerRequest(t *testing.T) {
	viewerSide, remote := Pipe()
	viewer := NewViewer(viewerSide, ViewerOptions{})
	go func() { _ = viewer.Run(context.Background()) }()
	t.Cleanup(func() { _ = remote.Close() })
	ctx := context.Background()

	expectMessage(t, remote, TypeRequestState)
	first := make(chan error, 1)
	go func() {
		_, err := viewer.RequestRange(ctx, "table-1", "Sheet1", "A1")
		first <- err
	}()
	expectMessage(t, remote, TypeGetDataFromRange)

	second := make(chan [][]any, 1)
	go func() {
		values, _ := viewer.RequestRange(ctx, "table-1", "Sheet1", "A1:A2")
		second <- values
	}()
	select {
	case err := <-first:
		assert.ErrorIs(t, err, ErrRequestSuperseded)
	case <-time.After(waitFor):
		t.Fatalf("first request was not superseded")
	}
	expectMessage(t, remote, TypeGetDataFromRange)
	require.NoError(t, remote.Send(ctx, Message{Type: TypeDataFromRange, WidgetID: "table-1", Values: [][]any{{"x"}, {"y"}}}))
	select {
	case values := <-second:
		assert.Equal(t, [][]any{{"x"}, {"y"}}, values)
	case <-time.After(waitFor):
		t.Fatalf("second request got no reply")
	}
}

func TestViewerDropsStaleUpdates(t *testing.T) {
	viewerSide, remote := Pipe()
	viewer := NewViewer(viewerSide, ViewerOptions{})
	var applied atomic.Int32
	viewer.Store().Subscribe(func(event dashboard.ChangeEvent) {
		if event.Origin == dashboard.OriginPresenter {
			applied.Add(1)
		}
	})
	go func() { _ = viewer.Run(context.Background()) }()
	t.Cleanup(func() { _ = remote.Close() })
	ctx := context.Background()

	expectMessage(t, remote, TypeRequestState)
	initial := stateMessage(TypeInitialState, 5, dashboard.State{ID: "dash-1", Title: "Ops"})
	require.NoError(t, remote.Send(ctx, initial))
	stale := stateMessage(TypeUpdateDashboardData, 4, dashboard.State{Widgets: []dashboard.Widget{textWidget("text-old")}})
	require.NoError(t, remote.Send(ctx, stale))
	fresh := stateMessage(TypeUpdateDashboardData, 6, dashboard.State{Widgets: []dashboard.Widget{textWidget("text-new")}})
	require.NoError(t, remote.Send(ctx, fresh))

	require.Eventually(t, func() bool { return applied.Load() == 1 }, waitFor, 5*time.Millisecond)
	_, ok := viewer.Store().Widget("text-new")
	assert.True(t, ok)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), applied.Load())
	_, ok = viewer.Store().Widget("text-old")
	assert.False(t, ok)
	assert.Equal(t, "Ops", viewer.Store().State().Title)
}

func TestHostDropsStaleViewerUpdates(t *testing.T) {
	svc, _ := newHostService(t)
	hostSide, remote := Pipe()
	host := NewHost(svc, hostSide, HostOptions{})
	go func() { _ = host.Run(context.Background()) }()
	t.Cleanup(func() { _ = host.Close() })
	ctx := context.Background()

	fresh := stateMessage(TypeUpdateDashboardData, 3, dashboard.State{Widgets: []dashboard.Widget{textWidget("text-new")}})
	stale := stateMessage(TypeUpdateDashboardData, 2, dashboard.State{Widgets: []dashboard.Widget{textWidget("text-old")}})
	require.NoError(t, remote.Send(ctx, fresh))
	require.NoError(t, remote.Send(ctx, stale))
	require.NoError(t, remote.Send(ctx, Message{Type: TypeRequestState}))

	msg := expectMessage(t, remote, TypeInitialState)
	require.Len(t, msg.Components, 1)
	assert.Equal(t, "text-new", msg.Components[0].ID)
}

func TestViewerCloseStopsHost(t *testing.T) {
	var closed atomic.Bool
	h := startPair(t, HostOptions{OnClose: func() { closed.Store(true) }})

	require.NoError(t, h.viewer.Close(context.Background()))
	select {
	case <-h.host.Done():
	case <-time.After(waitFor):
		t.Fatalf("host did not stop")
	}
	select {
	case err := <-h.hostErr:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatalf("host Run did not return")
	}
	assert.True(t, closed.Load())
}

func TestFullscreenTogglesEditing(t *testing.T) {
	var mu sync.Mutex
	var seen []bool
	h := startPair(t, HostOptions{OnFullscreen: func(active bool) {
		mu.Lock()
		seen = append(seen, active)
		mu.Unlock()
	}})
	ctx := context.Background()
	require.True(t, h.host.EditingEnabled())

	require.NoError(t, h.viewer.SetFullscreen(ctx, true))
	require.Eventually(t, func() bool { return !h.host.EditingEnabled() }, waitFor, 5*time.Millisecond)
	require.NoError(t, h.viewer.SetFullscreen(ctx, false))
	require.Eventually(t, h.host.EditingEnabled, waitFor, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false}, seen)
}

func TestWebSocketRoundTrip(t *testing.T) {
	svc, _ := newHostService(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := dashboard.Upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		host := NewHost(svc, NewWebSocketTransport(conn), HostOptions{})
		_ = host.Run(r.Context())
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	viewer := NewViewer(NewWebSocketTransport(conn), ViewerOptions{})
	go func() { _ = viewer.Run(context.Background()) }()
	defer viewer.Close(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, viewer.WaitReady(ctx))
	assert.Equal(t, "Ops", viewer.Store().State().Title)

	res, err := svc.AddWidget(ctx, dashboard.AddWidgetRequest{Type: dashboard.WidgetText})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		got, ok := viewer.Store().Widget(res.Widget.ID)
		if !ok {
			return false
		}
		_, typed := got.Data.(dashboard.TextData)
		return typed
	}, waitFor, 5*time.Millisecond)

	values, err := viewer.RequestRange(ctx, "table-1", "Sheet1", "A1:B2")
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"a", 1.0}, {"b", 2.0}}, values)
}

type pair struct {
	svc      *dashboard.Service
	host     *Host
	hostErr  chan error
	hostSide *countingTransport
	viewer   *Viewer
}

func startPair(t *testing.T, opts HostOptions) *pair {
	t.Helper()
	svc, _ := newHostService(t)
	hostEnd, viewerEnd := Pipe()
	counting := &countingTransport{Transport: hostEnd}
	host := NewHost(svc, counting, opts)
	viewer := NewViewer(viewerEnd, ViewerOptions{})

	hostErr := make(chan error, 1)
	go func() { hostErr <- host.Run(context.Background()) }()
	go func() { _ = viewer.Run(context.Background()) }()
	t.Cleanup(func() { _ = host.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, viewer.WaitReady(ctx))
	return &pair{svc: svc, host: host, hostErr: hostErr, hostSide: counting, viewer: viewer}
}

func newHostService(t *testing.T) (*dashboard.Service, *rangeAccessor) {
	t.Helper()
	acc := &rangeAccessor{
		sheets: []string{"Sheet1", "Sheet2"},
		ranges: map[string][][]any{"Sheet1!A1:B2": {{"a", 1.0}, {"b", 2.0}}},
	}
	svc := dashboard.NewService(dashboard.Options{Accessor: acc, AutosaveDelay: time.Hour})
	t.Cleanup(svc.Close)
	svc.OpenDashboard(context.Background(), dashboard.DashboardItem{
		ID:         "dash-1",
		Title:      "Ops",
		WorkbookID: "wb-1",
		Components: []dashboard.Widget{{ID: "title-0", Type: dashboard.WidgetTitle, Data: dashboard.TitleData{Content: "Ops"}}},
	})
	return svc, acc
}

func textWidget(id string) dashboard.Widget {
	return dashboard.Widget{ID: id, Type: dashboard.WidgetText, Data: dashboard.TextData{Content: id}}
}

func expectMessage(t *testing.T, tr Transport, typ MessageType) Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	msg, err := tr.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, typ, msg.Type)
	return msg
}

type countingTransport struct {
	Transport
	sent atomic.Int32
}

func (c *countingTransport) Send(ctx context.Context, msg Message) error {
	if msg.Type == TypeUpdateDashboardData {
		c.sent.Add(1)
	}
	return c.Transport.Send(ctx, msg)
}

func (c *countingTransport) updates() int32 { return c.sent.Load() }

type rangeAccessor struct {
	sheets []string
	ranges map[string][][]any
}

func (a *rangeAccessor) WorksheetNames(context.Context) ([]string, error) {
	return a.sheets, nil
}

func (a *rangeAccessor) ReadRange(_ context.Context, worksheet, address string) ([][]any, error) {
	values, ok := a.ranges[worksheet+"!"+address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", dashboard.ErrWorksheetNotFound, worksheet)
	}
	return values, nil
}

func (a *rangeAccessor) WriteCell(context.Context, string, string, any) error {
	return errors.New("read-only")
}

func (a *rangeAccessor) CustomProperty(_ context.Context, name string) (string, bool, error) {
	if name == dashboard.WorkbookIDProperty {
		return "wb-1", true, nil
	}
	return "", false, nil
}

func (a *rangeAccessor) SetCustomProperty(context.Context, string, string) error { return nil }

func (a *rangeAccessor) Subscribe(context.Context, string, dashboard.SheetChangeHandler) (dashboard.Subscription, error) {
	return noopSubscription{}, nil
}

type noopSubscription struct{}

func (noopSubscription) Unsubscribe() error { return nil }
