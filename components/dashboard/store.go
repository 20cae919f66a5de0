package dashboard

import (
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/google/uuid"
)

// StoreOptions configures a Store.
type StoreOptions struct {
	Registry   *Registry
	Validator  DataValidator
	MaxHistory int

	// SkipSchemaValidation accepts any payload whose Go type matches the
	// widget type. Ignored when Validator is set.
	SkipSchemaValidation bool

	// NewID overrides widget id generation; used by tests.
	NewID func(WidgetType) string
}

// Store owns the dashboard state, its undo history and the pending widget
// slot. Every mutation reads the latest committed state under the lock and
// emits one ChangeEvent to subscribers after the lock is released.
type Store struct {
	mu        sync.Mutex
	state     State
	history   *History
	pending   *Widget
	seq       uint64
	listeners []listenerEntry
	nextID    int

	registry  *Registry
	validator DataValidator
	newID     func(WidgetType) string
}

type listenerEntry struct {
	id int
	fn func(ChangeEvent)
}

// NewStore builds an empty Store.
func NewStore(opts StoreOptions) *Store {
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	if opts.Validator == nil {
		opts.Validator = defaultValidator(opts.SkipSchemaValidation)
	}
	if opts.NewID == nil {
		opts.NewID = func(typ WidgetType) string { return fmt.Sprintf("%s-%s", typ, uuid.NewString()) }
	}
	return &Store{
		state:     State{Layouts: Layouts{}},
		history:   NewHistory(opts.MaxHistory),
		registry:  opts.Registry,
		validator: opts.Validator,
		newID:     opts.NewID,
	}
}

// Registry exposes the widget definitions the store validates against.
func (s *Store) Registry() *Registry { return s.registry }

// Subscribe registers fn for every committed change. The returned func
// removes the subscription.
func (s *Store) Subscribe(fn func(ChangeEvent)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listenerEntry{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// State returns a deep copy of the committed state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Seq returns the sequence number of the last committed change.
func (s *Store) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// StateSeq returns the committed state together with its sequence number.
func (s *Store) StateSeq() (State, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone(), s.seq
}

// Widget returns a copy of one widget.
func (s *Store) Widget(id string) (Widget, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := findWidget(s.state.Widgets, id)
	if idx < 0 {
		return Widget{}, false
	}
	return s.state.Widgets[idx].Clone(), true
}

// NewWidget builds an uncommitted widget with a fresh id. A nil data
// payload is filled with the type's default.
func (s *Store) NewWidget(typ WidgetType, data WidgetData) Widget {
	if data == nil {
		data = s.registry.NewData(typ)
	}
	if data == nil {
		data = RawData{Type: typ}
	}
	return Widget{ID: s.newID(typ), Type: typ, Data: data}
}

// InsertWidget validates and commits w, then catches up layouts for every
// widget missing an entry. History-tracked.
func (s *Store) InsertWidget(w Widget) error {
	if w.ID == "" || w.Type == "" {
		return fmt.Errorf("%w: id and type are required", ErrInvalidWidgetData)
	}
	if err := s.validate(w); err != nil {
		return err
	}
	return s.commit(OriginLocal, "add", true, func(st *State) error {
		if w.Type == WidgetTitle && hasTitle(st.Widgets) {
			return ErrTitleExists
		}
		if findWidget(st.Widgets, w.ID) >= 0 {
			return fmt.Errorf("%w: %s", ErrWidgetExists, w.ID)
		}
		st.Widgets = append(st.Widgets, w.Clone())
		st.Layouts = UpdateLayoutsForNewWidgets(st.Layouts, st.Widgets, s.registry.Sizes())
		return nil
	})
}

// RemoveWidget drops the widget and its layout entries. History-tracked.
func (s *Store) RemoveWidget(id string) error {
	return s.commit(OriginLocal, "remove", true, func(st *State) error {
		idx := findWidget(st.Widgets, id)
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrWidgetNotFound, id)
		}
		st.Widgets = append(st.Widgets[:idx:idx], st.Widgets[idx+1:]...)
		st.Layouts = st.Layouts.without(id)
		return nil
	})
}

// UpdateWidget shallow-merges patch onto the widget payload. The type never
// changes; widgets of unknown type are left untouched. History-tracked.
func (s *Store) UpdateWidget(id string, patch map[string]any) error {
	return s.commit(OriginLocal, "update", true, func(st *State) error {
		idx := findWidget(st.Widgets, id)
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrWidgetNotFound, id)
		}
		w := st.Widgets[idx]
		if _, raw := w.Data.(RawData); raw {
			return errNoChange
		}
		merged, err := dataToMap(w.Data)
		if err != nil {
			return fmt.Errorf("dashboard: flatten widget %s: %w", id, err)
		}
		maps.Copy(merged, patch)
		data, err := mapToData(w.Type, merged)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidWidgetData, id, err)
		}
		w.Data = data
		if err := s.validate(w); err != nil {
			return err
		}
		st.Widgets[idx] = w
		return nil
	})
}

// ReplaceWidgetData swaps a widget payload wholesale. History-tracked.
func (s *Store) ReplaceWidgetData(id string, data WidgetData) error {
	return s.commit(OriginLocal, "update", true, func(st *State) error {
		idx := findWidget(st.Widgets, id)
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrWidgetNotFound, id)
		}
		w := st.Widgets[idx]
		w.Data = data
		if err := s.validate(w); err != nil {
			return err
		}
		st.Widgets[idx] = w
		return nil
	})
}

// CopyWidget inserts an independent duplicate under a fresh id and returns it.
func (s *Store) CopyWidget(id string) (Widget, error) {
	src, ok := s.Widget(id)
	if !ok {
		return Widget{}, fmt.Errorf("%w: %s", ErrWidgetNotFound, id)
	}
	dup := s.NewWidget(src.Type, src.Data)
	if err := s.InsertWidget(dup); err != nil {
		return Widget{}, err
	}
	return dup, nil
}

// ReplaceWidgets swaps the whole widget list. Layouts are kept for ids they
// cover and generated for the rest; nil layouts are rebuilt from scratch.
// History-tracked.
func (s *Store) ReplaceWidgets(widgets []Widget, layouts Layouts, reason string) error {
	for _, w := range widgets {
		if err := s.validate(w); err != nil {
			return err
		}
	}
	return s.commit(OriginLocal, reason, true, func(st *State) error {
		seen := make(map[string]struct{}, len(widgets))
		titles := 0
		for _, w := range widgets {
			if _, dup := seen[w.ID]; dup || w.ID == "" {
				return fmt.Errorf("%w: %q", ErrWidgetExists, w.ID)
			}
			seen[w.ID] = struct{}{}
			if w.Type == WidgetTitle {
				titles++
			}
		}
		if titles > 1 {
			return ErrTitleExists
		}
		st.Widgets = cloneWidgets(widgets)
		if st.Widgets == nil {
			st.Widgets = []Widget{}
		}
		st.Layouts = normalizeLayouts(layouts, st.Widgets, s.registry.Sizes())
		return nil
	})
}

// UpdateLayouts records a grid move or resize. History-tracked.
func (s *Store) UpdateLayouts(layouts Layouts) error {
	return s.commit(OriginLocal, "layout", true, func(st *State) error {
		next := RepairLayouts(layouts, st.Widgets, s.registry.Sizes())
		st.Layouts = MirrorWideBreakpoints(UpdateLayoutsForNewWidgets(next, st.Widgets, s.registry.Sizes()))
		return nil
	})
}

// SetTitle renames the dashboard. Not history-tracked.
func (s *Store) SetTitle(title string) error {
	return s.commit(OriginLocal, "title", false, func(st *State) error {
		st.Title = title
		return nil
	})
}

// SetBorderSettings changes widget borders. Not history-tracked.
func (s *Store) SetBorderSettings(settings BorderSettings) error {
	return s.commit(OriginLocal, "borders", false, func(st *State) error {
		st.BorderSettings = settings.Clone()
		return nil
	})
}

// Undo restores the previous snapshot. It reports false when there is
// nothing to undo.
func (s *Store) Undo() bool {
	return s.travel("undo", s.history.Undo)
}

// Redo re-applies the next snapshot. It reports false when there is
// nothing to redo.
func (s *Store) Redo() bool {
	return s.travel("redo", s.history.Redo)
}

func (s *Store) travel(reason string, step func(Snapshot) (Snapshot, bool)) bool {
	moved := false
	_ = s.commit(OriginHistory, reason, false, func(st *State) error {
		snap, ok := step(Snapshot{Widgets: st.Widgets, Layouts: st.Layouts})
		if !ok {
			return errNoChange
		}
		st.Widgets = cloneWidgets(snap.Widgets)
		st.Layouts = snap.Layouts.Clone()
		moved = true
		return nil
	})
	return moved
}

func (s *Store) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanUndo()
}

func (s *Store) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanRedo()
}

// Load replaces the state for a freshly opened dashboard and resets history.
func (s *Store) Load(state State) {
	_ = s.commit(OriginLoad, "load", false, func(st *State) error {
		*st = state.clone()
		st.Layouts = normalizeLayouts(st.Layouts, st.Widgets, s.registry.Sizes())
		s.history.Reset()
		s.pending = nil
		return nil
	})
}

// Reset clears the store back to an empty dashboard.
func (s *Store) Reset() {
	s.Load(State{})
}

// Replace swaps widgets, layouts and border settings from an external
// source without touching history. The id and title are kept unless state
// carries them.
func (s *Store) Replace(state State, origin Origin, reason string) {
	_ = s.commit(origin, reason, false, func(st *State) error {
		next := state.clone()
		if next.ID == "" {
			next.ID = st.ID
		}
		if next.Title == "" {
			next.Title = st.Title
		}
		if next.BorderSettings == nil {
			next.BorderSettings = st.BorderSettings
		}
		next.Layouts = normalizeLayouts(next.Layouts, next.Widgets, s.registry.Sizes())
		*st = next
		return nil
	})
}

// Sync applies fn as a spreadsheet-driven update. Not history-tracked.
func (s *Store) Sync(reason string, fn func(st *State) error) error {
	return s.commit(OriginSync, reason, false, fn)
}

// SetPending holds w until its details are supplied.
func (s *Store) SetPending(w Widget) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := w.Clone()
	s.pending = &pending
}

// Pending returns the widget awaiting details.
func (s *Store) Pending() (Widget, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return Widget{}, false
	}
	return s.pending.Clone(), true
}

// ClearPending drops the pending widget and returns it.
func (s *Store) ClearPending() (Widget, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return Widget{}, false
	}
	w := *s.pending
	s.pending = nil
	return w, true
}

func (s *Store) validate(w Widget) error {
	if w.Data != nil && w.Data.Kind() != w.Type {
		return fmt.Errorf("%w: %s payload for %s widget", ErrInvalidWidgetData, w.Data.Kind(), w.Type)
	}
	def, ok := s.registry.Definition(w.Type)
	if !ok {
		return nil
	}
	return s.validator.Validate(def, w.Data)
}

var errNoChange = errors.New("dashboard: no change")

// commit runs fn on a copy of the state and publishes the result. When
// track is set the pre-mutation widgets and layouts are pushed to history.
func (s *Store) commit(origin Origin, reason string, track bool, fn func(st *State) error) error {
	s.mu.Lock()
	next := s.state.clone()
	if err := fn(&next); err != nil {
		s.mu.Unlock()
		if errors.Is(err, errNoChange) {
			return nil
		}
		return err
	}
	if track {
		s.history.Record(Snapshot{Widgets: s.state.Widgets, Layouts: s.state.Layouts})
	}
	s.state = next
	s.seq++
	event := ChangeEvent{Seq: s.seq, Origin: origin, Reason: reason, State: next.clone()}
	listeners := make([]func(ChangeEvent), len(s.listeners))
	for i, l := range s.listeners {
		listeners[i] = l.fn
	}
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(event)
	}
	return nil
}
