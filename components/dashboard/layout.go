package dashboard

import "slices"

// Breakpoint is a responsive grid tier with its own column count.
type Breakpoint struct {
	Name string
	Cols int
}

// Breakpoints are the tiers the calculator places widgets on. The wide tiers
// (xl, xxl) are mirrored from lg.
var Breakpoints = []Breakpoint{
	{Name: "lg", Cols: 12},
	{Name: "md", Cols: 10},
	{Name: "sm", Cols: 6},
}

var mirroredBreakpoints = []string{"xl", "xxl"}

// TrackedBreakpoints lists every breakpoint a complete layout carries.
func TrackedBreakpoints() []string {
	names := make([]string, 0, len(Breakpoints)+len(mirroredBreakpoints))
	for _, bp := range Breakpoints {
		names = append(names, bp.Name)
	}
	return append(names, mirroredBreakpoints...)
}

// Size is a widget's default footprint in grid units.
type Size struct {
	W    int `json:"w" yaml:"w"`
	H    int `json:"h" yaml:"h"`
	MinW int `json:"minW" yaml:"minW"`
	MinH int `json:"minH" yaml:"minH"`
}

// SizeTable maps widget types to their default footprint.
type SizeTable map[WidgetType]Size

var fallbackSize = Size{W: 4, H: 4, MinW: 2, MinH: 2}

// For returns the default size for typ, falling back to a generic block.
func (t SizeTable) For(typ WidgetType) Size {
	if size, ok := t[typ]; ok && size.W > 0 && size.H > 0 {
		return size
	}
	return fallbackSize
}

// Clone returns a deep copy of the layouts.
func (l Layouts) Clone() Layouts {
	if l == nil {
		return nil
	}
	out := make(Layouts, len(l))
	for bp, items := range l {
		out[bp] = slices.Clone(items)
	}
	return out
}

// Has reports whether the breakpoint carries an entry for id.
func (l Layouts) Has(breakpoint, id string) bool {
	return slices.ContainsFunc(l[breakpoint], func(item GridLayoutItem) bool { return item.I == id })
}

// Item returns the entry for id on the breakpoint.
func (l Layouts) Item(breakpoint, id string) (GridLayoutItem, bool) {
	idx := slices.IndexFunc(l[breakpoint], func(item GridLayoutItem) bool { return item.I == id })
	if idx < 0 {
		return GridLayoutItem{}, false
	}
	return l[breakpoint][idx], true
}

// without drops id from every breakpoint.
func (l Layouts) without(id string) Layouts {
	out := make(Layouts, len(l))
	for bp, items := range l {
		out[bp] = slices.DeleteFunc(slices.Clone(items), func(item GridLayoutItem) bool { return item.I == id })
	}
	return out
}

// GenerateLayoutsForWidgets rebuilds every breakpoint from scratch, stacking
// widgets top to bottom in list order.
func GenerateLayoutsForWidgets(widgets []Widget, sizes SizeTable) Layouts {
	layouts := make(Layouts, len(Breakpoints)+len(mirroredBreakpoints))
	for _, bp := range Breakpoints {
		items := make([]GridLayoutItem, 0, len(widgets))
		y := 0
		for _, w := range widgets {
			item := placeItem(w, bp.Cols, y, sizes)
			items = append(items, item)
			y += item.H
		}
		layouts[bp.Name] = items
	}
	return MirrorWideBreakpoints(layouts)
}

// UpdateLayoutsForNewWidgets appends entries for widgets missing from a
// breakpoint below the current bottom edge. Existing entries are untouched.
func UpdateLayoutsForNewWidgets(layouts Layouts, widgets []Widget, sizes SizeTable) Layouts {
	out := layouts.Clone()
	if out == nil {
		out = make(Layouts, len(Breakpoints)+len(mirroredBreakpoints))
	}
	for _, bp := range Breakpoints {
		items := out[bp.Name]
		if items == nil {
			items = []GridLayoutItem{}
		}
		present := make(map[string]struct{}, len(items))
		for _, item := range items {
			present[item.I] = struct{}{}
		}
		y := bottomEdge(items)
		for _, w := range widgets {
			if _, ok := present[w.ID]; ok {
				continue
			}
			item := placeItem(w, bp.Cols, y, sizes)
			items = append(items, item)
			y += item.H
		}
		out[bp.Name] = items
	}
	return MirrorWideBreakpoints(out)
}

// RepairLayouts replaces non-positive widths and heights with the widget
// type's default size.
func RepairLayouts(layouts Layouts, widgets []Widget, sizes SizeTable) Layouts {
	out := layouts.Clone()
	types := make(map[string]WidgetType, len(widgets))
	for _, w := range widgets {
		types[w.ID] = w.Type
	}
	for bp, items := range out {
		cols := columnsFor(bp)
		for i, item := range items {
			if item.W > 0 && item.H > 0 {
				continue
			}
			size := sizes.For(types[item.I])
			if item.W <= 0 {
				item.W = min(size.W, cols)
			}
			if item.H <= 0 {
				item.H = size.H
			}
			items[i] = item
		}
	}
	return out
}

// MirrorWideBreakpoints copies lg into the wide breakpoints.
func MirrorWideBreakpoints(layouts Layouts) Layouts {
	lg, ok := layouts["lg"]
	if !ok {
		return layouts
	}
	for _, name := range mirroredBreakpoints {
		layouts[name] = slices.Clone(lg)
	}
	return layouts
}

// normalizeLayouts brings a loaded or restored layout set back to the
// completeness invariant.
func normalizeLayouts(layouts Layouts, widgets []Widget, sizes SizeTable) Layouts {
	if len(layouts) == 0 {
		return GenerateLayoutsForWidgets(widgets, sizes)
	}
	return RepairLayouts(UpdateLayoutsForNewWidgets(layouts, widgets, sizes), widgets, sizes)
}

func placeItem(w Widget, cols, y int, sizes SizeTable) GridLayoutItem {
	size := sizes.For(w.Type)
	width := min(size.W, cols)
	x := 0
	if w.Type == WidgetTitle {
		x = (cols - width) / 2
	}
	return GridLayoutItem{
		I:    w.ID,
		X:    x,
		Y:    y,
		W:    width,
		H:    size.H,
		MinW: min(size.MinW, width),
		MinH: size.MinH,
	}
}

func bottomEdge(items []GridLayoutItem) int {
	bottom := 0
	for _, item := range items {
		bottom = max(bottom, item.Y+item.H)
	}
	return bottom
}

func columnsFor(breakpoint string) int {
	for _, bp := range Breakpoints {
		if bp.Name == breakpoint {
			return bp.Cols
		}
	}
	return Breakpoints[0].Cols
}

// layoutIDs returns the set of ids present in a breakpoint; used by tests and
// the completeness check.
func layoutIDs(items []GridLayoutItem) map[string]struct{} {
	ids := make(map[string]struct{}, len(items))
	for _, item := range items {
		ids[item.I] = struct{}{}
	}
	return ids
}

// LayoutComplete reports whether every widget has a positive-sized entry in
// every tracked breakpoint.
func LayoutComplete(layouts Layouts, widgets []Widget) bool {
	for _, bp := range TrackedBreakpoints() {
		ids := layoutIDs(layouts[bp])
		for _, w := range widgets {
			if _, ok := ids[w.ID]; !ok {
				return false
			}
		}
		for _, item := range layouts[bp] {
			if item.W <= 0 || item.H <= 0 {
				return false
			}
		}
	}
	return true
}
