package dashboard

// DefaultMaxHistory bounds the undo stack when no depth is configured.
const DefaultMaxHistory = 50

// History is a linear undo/redo stack of full-value snapshots. It is not
// safe for concurrent use; Store serializes access.
type History struct {
	past   []Snapshot
	future []Snapshot
	max    int
}

// NewHistory creates a history keeping at most max past entries.
func NewHistory(max int) *History {
	if max <= 0 {
		max = DefaultMaxHistory
	}
	return &History{max: max}
}

// Record pushes the pre-mutation snapshot and clears the redo stack.
func (h *History) Record(s Snapshot) {
	h.past = append(h.past, s.clone())
	if over := len(h.past) - h.max; over > 0 {
		h.past = append(h.past[:0:0], h.past[over:]...)
	}
	h.future = nil
}

// Undo pops the latest past snapshot and stores current on the redo stack.
func (h *History) Undo(current Snapshot) (Snapshot, bool) {
	if len(h.past) == 0 {
		return Snapshot{}, false
	}
	last := h.past[len(h.past)-1]
	h.past = h.past[:len(h.past)-1]
	h.future = append(h.future, current.clone())
	return last, true
}

// Redo pops the latest future snapshot and stores current on the undo stack.
func (h *History) Redo(current Snapshot) (Snapshot, bool) {
	if len(h.future) == 0 {
		return Snapshot{}, false
	}
	next := h.future[len(h.future)-1]
	h.future = h.future[:len(h.future)-1]
	h.past = append(h.past, current.clone())
	return next, true
}

func (h *History) CanUndo() bool { return len(h.past) > 0 }
func (h *History) CanRedo() bool { return len(h.future) > 0 }

// Reset drops both stacks.
func (h *History) Reset() {
	h.past = nil
	h.future = nil
}

func (s Snapshot) clone() Snapshot {
	return Snapshot{Widgets: cloneWidgets(s.Widgets), Layouts: s.Layouts.Clone()}
}
