package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// DefaultEventBacklog is how many change events a BroadcastHook keeps for
// reconnecting clients.
const DefaultEventBacklog = 128

const subscriberBuffer = 16

// EventFilter selects the change events a subscriber receives. Zero fields
// match everything. Buffered events with Seq greater than After are replayed
// on subscribe.
type EventFilter struct {
	DashboardID string
	Origins     []Origin
	After       uint64
}

// Match reports whether event passes the dashboard and origin filters.
func (f EventFilter) Match(event ChangeEvent) bool {
	if f.DashboardID != "" && event.State.ID != f.DashboardID {
		return false
	}
	return len(f.Origins) == 0 || slices.Contains(f.Origins, event.Origin)
}

// EventFilterFromRequest reads the filter from the "dashboard" and "origin"
// query parameters and the resume point from the Last-Event-ID header or the
// "after" query parameter.
func EventFilterFromRequest(r *http.Request) (EventFilter, error) {
	q := r.URL.Query()
	after := r.Header.Get("Last-Event-ID")
	if after == "" {
		after = q.Get("after")
	}
	return ParseEventFilter(q.Get("dashboard"), q["origin"], after)
}

// ParseEventFilter builds a filter from raw parameters. Origins may be
// comma separated.
func ParseEventFilter(dashboardID string, origins []string, after string) (EventFilter, error) {
	filter := EventFilter{DashboardID: dashboardID}
	for _, raw := range origins {
		for _, origin := range strings.Split(raw, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				filter.Origins = append(filter.Origins, Origin(origin))
			}
		}
	}
	if after != "" {
		seq, err := strconv.ParseUint(after, 10, 64)
		if err != nil {
			return EventFilter{}, fmt.Errorf("%w: bad event id %q", ErrInvalidEventFilter, after)
		}
		filter.After = seq
	}
	return filter, nil
}

// BroadcastHook fans out dashboard change events to in-process subscribers
// and keeps a bounded backlog for replay. Slow subscribers miss live events
// rather than block the store.
type BroadcastHook struct {
	mu      sync.RWMutex
	subs    map[int]subscriber
	next    int
	backlog []ChangeEvent
	head    int
	size    int
}

type subscriber struct {
	ch     chan ChangeEvent
	filter EventFilter
}

// NewBroadcastHook creates a broadcast hook with DefaultEventBacklog.
func NewBroadcastHook() *BroadcastHook {
	return NewBroadcastHookWithBacklog(DefaultEventBacklog)
}

// NewBroadcastHookWithBacklog creates a hook that keeps the last n events.
func NewBroadcastHookWithBacklog(n int) *BroadcastHook {
	if n < 0 {
		n = 0
	}
	return &BroadcastHook{
		subs:    make(map[int]subscriber),
		backlog: make([]ChangeEvent, n),
	}
}

// DashboardUpdated satisfies the RefreshHook interface. The event is
// recorded in the backlog and sent to every matching subscriber.
func (h *BroadcastHook) DashboardUpdated(ctx context.Context, event ChangeEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record(event)
	for _, sub := range h.subs {
		if !sub.filter.Match(event) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
		}
	}
	return nil
}

func (h *BroadcastHook) record(event ChangeEvent) {
	if len(h.backlog) == 0 {
		return
	}
	h.backlog[(h.head+h.size)%len(h.backlog)] = event
	if h.size < len(h.backlog) {
		h.size++
		return
	}
	h.head = (h.head + 1) % len(h.backlog)
}

// Backlog returns buffered events matching filter, oldest first.
func (h *BroadcastHook) Backlog(filter EventFilter) []ChangeEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.replay(filter)
}

func (h *BroadcastHook) replay(filter EventFilter) []ChangeEvent {
	var out []ChangeEvent
	for i := 0; i < h.size; i++ {
		event := h.backlog[(h.head+i)%len(h.backlog)]
		if event.Seq > filter.After && filter.Match(event) {
			out = append(out, event)
		}
	}
	return out
}

// Subscribe returns a channel of change events and a cancel func. When
// filter.After is set, buffered events after it are queued first.
func (h *BroadcastHook) Subscribe(filter EventFilter) (<-chan ChangeEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var missed []ChangeEvent
	if filter.After > 0 {
		missed = h.replay(filter)
	}
	id := h.next
	h.next++
	ch := make(chan ChangeEvent, len(missed)+subscriberBuffer)
	for _, event := range missed {
		ch <- event
	}
	h.subs[id] = subscriber{ch: ch, filter: filter}
	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub.ch)
		}
	}
	return ch, cancel
}

// Upgrader is shared by the change stream and the presenter channel.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades the request and streams change events as JSON.
func (h *BroadcastHook) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	filter, err := EventFilterFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	conn, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	events, cancel := h.Subscribe(filter)
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}
}

// ServeSSE streams change events as Server-Sent Events. Each event id is the
// store sequence so EventSource reconnects resume from Last-Event-ID.
func (h *BroadcastHook) ServeSSE(w http.ResponseWriter, r *http.Request) {
	filter, err := EventFilterFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	events, cancel := h.Subscribe(filter)
	defer cancel()

	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := writeSSE(w, event); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, event ChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\ndata: %s\n\n", event.Seq, payload)
	return err
}
