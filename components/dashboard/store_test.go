package dashboard

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreUpdateWidgetMergesShallow(t *testing.T) {
	store := NewStore(StoreOptions{})
	chart := store.NewWidget(WidgetChart, nil)
	require.NoError(t, store.InsertWidget(chart))

	require.NoError(t, store.UpdateWidget(chart.ID, map[string]any{"title": "Revenue", "type": "line"}))
	got, ok := store.Widget(chart.ID)
	require.True(t, ok)
	data := got.Data.(ChartData)
	assert.Equal(t, "Revenue", data.Title)
	assert.Equal(t, "line", data.Type)
	assert.Equal(t, chart.Data.(ChartData).Labels, data.Labels)
	assert.Equal(t, WidgetChart, got.Type)
}

func TestStoreUpdateWidgetRejectsInvalidPatch(t *testing.T) {
	store := NewStore(StoreOptions{})
	chart := store.NewWidget(WidgetChart, nil)
	require.NoError(t, store.InsertWidget(chart))
	seq := store.Seq()

	err := store.UpdateWidget(chart.ID, map[string]any{"associatedRange": "not a range"})
	require.ErrorIs(t, err, ErrInvalidWidgetData)
	assert.Equal(t, seq, store.Seq())
	assert.Equal(t, chart.Data, mustWidget(t, store, chart.ID).Data)
}

func TestStoreKeepsUnknownWidgetTypes(t *testing.T) {
	raw := json.RawMessage(`{"points":[1,2,3],"style":"dots"}`)
	store := NewStore(StoreOptions{})
	store.Load(State{ID: "d1", Widgets: []Widget{{ID: "spark-1", Type: "sparkline", Data: RawData{Type: "sparkline", Raw: raw}}}})

	require.NoError(t, store.UpdateWidget("spark-1", map[string]any{"style": "bars"}))
	got := mustWidget(t, store, "spark-1")
	assert.JSONEq(t, string(raw), string(got.Data.(RawData).Raw))
	assert.True(t, LayoutComplete(store.State().Layouts, store.State().Widgets))
}

func TestStoreUpdateOfUnknownWidgetIsNoop(t *testing.T) {
	store := NewStore(StoreOptions{})
	store.Load(State{ID: "d1", Widgets: []Widget{{ID: "spark-1", Type: "sparkline", Data: RawData{Type: "sparkline", Raw: json.RawMessage(`{}`)}}}})
	var events int
	store.Subscribe(func(ChangeEvent) { events++ })
	seq := store.Seq()

	require.NoError(t, store.UpdateWidget("spark-1", map[string]any{"style": "bars"}))
	assert.Equal(t, seq, store.Seq())
	assert.False(t, store.CanUndo())
	assert.Zero(t, events)
}

func TestStoreSkipSchemaValidation(t *testing.T) {
	bad := Widget{ID: "metric-1", Type: WidgetMetric, Data: MetricData{Title: "Revenue", CellAddress: "A1:B2"}}

	strict := NewStore(StoreOptions{})
	require.ErrorIs(t, strict.InsertWidget(bad), ErrInvalidWidgetData)

	lenient := NewStore(StoreOptions{SkipSchemaValidation: true})
	require.NoError(t, lenient.InsertWidget(bad))
	assert.Equal(t, bad.Data, mustWidget(t, lenient, "metric-1").Data)
	require.ErrorIs(t, lenient.InsertWidget(Widget{ID: "x", Type: WidgetText, Data: LineData{}}), ErrInvalidWidgetData)
}

func TestStoreCopyWidgetIsIndependent(t *testing.T) {
	store := NewStore(StoreOptions{})
	text := store.NewWidget(WidgetText, TextData{Content: "original"})
	require.NoError(t, store.InsertWidget(text))

	dup, err := store.CopyWidget(text.ID)
	require.NoError(t, err)
	assert.NotEqual(t, text.ID, dup.ID)
	require.NoError(t, store.UpdateWidget(dup.ID, map[string]any{"content": "copy"}))
	assert.Equal(t, "original", mustWidget(t, store, text.ID).Data.(TextData).Content)
	assert.Equal(t, "copy", mustWidget(t, store, dup.ID).Data.(TextData).Content)
}

func TestStoreRejectsPayloadTypeMismatch(t *testing.T) {
	store := NewStore(StoreOptions{})
	err := store.InsertWidget(Widget{ID: "x", Type: WidgetText, Data: LineData{}})
	require.ErrorIs(t, err, ErrInvalidWidgetData)
	assert.Empty(t, store.State().Widgets)
}

func TestStoreReplaceWidgetsGuards(t *testing.T) {
	store := NewStore(StoreOptions{})
	err := store.ReplaceWidgets([]Widget{
		{ID: "t1", Type: WidgetTitle, Data: TitleData{}},
		{ID: "t2", Type: WidgetTitle, Data: TitleData{}},
	}, nil, "import")
	require.ErrorIs(t, err, ErrTitleExists)

	err = store.ReplaceWidgets([]Widget{
		{ID: "a", Type: WidgetText, Data: TextData{}},
		{ID: "a", Type: WidgetLine, Data: LineData{}},
	}, nil, "import")
	require.ErrorIs(t, err, ErrWidgetExists)
	assert.False(t, store.CanUndo())
}

func TestStoreEmitsOrderedEvents(t *testing.T) {
	store := NewStore(StoreOptions{})
	var (
		mu     sync.Mutex
		events []ChangeEvent
	)
	cancel := store.Subscribe(func(e ChangeEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	})
	text := store.NewWidget(WidgetText, nil)
	require.NoError(t, store.InsertWidget(text))
	require.NoError(t, store.SetTitle("Renamed"))
	require.True(t, store.Undo())
	require.NoError(t, store.Sync("refresh", func(*State) error { return nil }))
	cancel()
	require.NoError(t, store.SetTitle("Ignored"))

	require.Len(t, events, 4)
	origins := []Origin{OriginLocal, OriginLocal, OriginHistory, OriginSync}
	for i, e := range events {
		assert.Equal(t, uint64(i+1), e.Seq)
		assert.Equal(t, origins[i], e.Origin)
	}
	assert.Equal(t, "Renamed", events[1].State.Title)
	assert.Equal(t, "Renamed", events[2].State.Title)
}

func TestStoreStateIsACopy(t *testing.T) {
	store := NewStore(StoreOptions{})
	chart := store.NewWidget(WidgetChart, nil)
	require.NoError(t, store.InsertWidget(chart))

	state := store.State()
	data := state.Widgets[0].Data.(ChartData)
	data.Datasets[0].Data[0] = 99
	state.Layouts["lg"][0].W = 1

	fresh := store.State()
	assert.Equal(t, float64(0), fresh.Widgets[0].Data.(ChartData).Datasets[0].Data[0])
	assert.NotEqual(t, 1, fresh.Layouts["lg"][0].W)
}

func TestStoreConcurrentMutations(t *testing.T) {
	store := NewStore(StoreOptions{})
	text := store.NewWidget(WidgetText, nil)
	require.NoError(t, store.InsertWidget(text))

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = store.InsertWidget(store.NewWidget(WidgetLine, nil))
		}()
		go func() {
			defer wg.Done()
			_ = store.UpdateWidget(text.ID, map[string]any{"fontSize": i + 10})
		}()
	}
	wg.Wait()
	state := store.State()
	assert.Len(t, state.Widgets, 21)
	assert.True(t, LayoutComplete(state.Layouts, state.Widgets))
	assert.Equal(t, uint64(41), store.Seq())
}

func TestHistoryCapDropsOldest(t *testing.T) {
	h := NewHistory(2)
	for i := range 3 {
		h.Record(Snapshot{Widgets: []Widget{{ID: string(rune('a' + i))}}})
	}
	snap, ok := h.Undo(Snapshot{})
	require.True(t, ok)
	assert.Equal(t, "c", snap.Widgets[0].ID)
	snap, ok = h.Undo(Snapshot{})
	require.True(t, ok)
	assert.Equal(t, "b", snap.Widgets[0].ID)
	_, ok = h.Undo(Snapshot{})
	assert.False(t, ok)
}

func TestHistoryRecordClearsFuture(t *testing.T) {
	h := NewHistory(0)
	h.Record(Snapshot{})
	_, ok := h.Undo(Snapshot{Widgets: []Widget{{ID: "now"}}})
	require.True(t, ok)
	require.True(t, h.CanRedo())
	h.Record(Snapshot{})
	assert.False(t, h.CanRedo())
}

func TestDebouncerCoalescesTriggers(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	d := NewDebouncer(20*time.Millisecond, func() {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	for range 5 {
		d.Trigger()
		time.Sleep(2 * time.Millisecond)
	}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 1
	}, time.Second, 5*time.Millisecond)
	assert.False(t, d.Pending())
}

func TestDebouncerCancelAndFlush(t *testing.T) {
	calls := 0
	d := NewDebouncer(time.Hour, func() { calls++ })
	assert.False(t, d.Cancel())
	d.Trigger()
	assert.True(t, d.Pending())
	assert.True(t, d.Cancel())
	assert.False(t, d.Flush())
	d.Trigger()
	assert.True(t, d.Flush())
	assert.Equal(t, 1, calls)
}

func mustWidget(t *testing.T, store *Store, id string) Widget {
	t.Helper()
	w, ok := store.Widget(id)
	if !ok {
		t.Fatalf("widget %s not found", id)
	}
	return w
}
