package dashboard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiveMetricUpdatesFromSheetChange(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	metric := addBoundMetric(t, env, "Sheet1", "B2")
	assert.Equal(t, []string{"metric:" + metric.ID}, env.svc.LiveSubscriptions())

	env.acc.setRange("Sheet1", "B2", [][]any{{42.0}})
	env.acc.fire(ctx, "Sheet1", "A1:C3")
	assert.Equal(t, float64(42), mustWidget(t, env.svc.Store(), metric.ID).Data.(MetricData).CurrentValue)
	assert.True(t, env.svc.AutosavePending())

	reads := env.acc.readCount()
	env.acc.fire(ctx, "Sheet1", "F10")
	assert.Equal(t, reads, env.acc.readCount())
}

func TestLiveSubscriptionsDoNotStack(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	metric := addBoundMetric(t, env, "Sheet1", "B2")
	require.NoError(t, env.svc.StartLiveUpdates(ctx))
	require.NoError(t, env.svc.StartLiveUpdates(ctx))
	assert.Equal(t, 1, env.acc.handlerCount("Sheet1"))

	require.NoError(t, env.svc.RemoveWidget(ctx, metric.ID, RemoveOptions{}))
	assert.Zero(t, env.acc.handlerCount("Sheet1"))
	assert.Empty(t, env.svc.LiveSubscriptions())
}

func TestLiveUpdatesDroppedOnDashboardSwitch(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	addBoundMetric(t, env, "Sheet1", "B2")
	other, err := env.client.CreateDashboard(ctx, DashboardItem{Title: "Empty", WorkbookID: "wb-1"})
	require.NoError(t, err)

	_, err = env.svc.LoadDashboard(ctx, other.ID)
	require.NoError(t, err)
	assert.Zero(t, env.acc.handlerCount("Sheet1"))
	assert.Empty(t, env.svc.LiveSubscriptions())
}

func TestGanttRefreshFromTable(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.acc.sheets = append(env.acc.sheets, GanttSheet)
	require.NoError(t, env.svc.StartLiveUpdates(ctx))
	require.NoError(t, env.svc.StartLiveUpdates(ctx))
	assert.Equal(t, 1, env.acc.handlerCount(GanttSheet))

	gantt, err := env.svc.AddWidget(ctx, AddWidgetRequest{Type: WidgetGantt})
	require.NoError(t, err)
	env.acc.tables[GanttSheet] = [][]any{
		{"Task", "Start", "End", "Progress", "Dependencies"},
		{"Design", "2024-01-01", "2024-01-10", "80%", ""},
		{"Build", 45292.0, 45302.0, 0.6, "Design"},
		{"", nil, nil, nil, nil},
	}
	env.acc.fire(ctx, GanttSheet, "A1:E4")

	tasks := mustWidget(t, env.svc.Store(), gantt.Widget.ID).Data.(GanttData).Tasks
	require.Len(t, tasks, 2)
	assert.Equal(t, "Design", tasks[0].Name)
	assert.Equal(t, float64(80), tasks[0].Progress)
	assert.Equal(t, ganttGreen, tasks[0].Color)
	assert.Equal(t, "2024-01-01", tasks[1].Start)
	assert.Equal(t, "2024-01-11", tasks[1].End)
	assert.InDelta(t, 60, tasks[1].Progress, 0.0001)
	assert.Equal(t, ganttYellow, tasks[1].Color)
	assert.Equal(t, "Design", tasks[1].Dependencies)
}

func TestGanttColumnsPositionalFallback(t *testing.T) {
	tasks := GanttTasksFromRows([][]any{
		{"A", "B", "C", "D"},
		{"Ship", "2024-02-01", "2024-02-02", "25"},
	})
	require.Len(t, tasks, 1)
	assert.Equal(t, "Ship", tasks[0].Name)
	assert.Equal(t, "2024-02-01", tasks[0].Start)
	assert.Equal(t, float64(25), tasks[0].Progress)
	assert.Equal(t, ganttRed, tasks[0].Color)
	assert.Equal(t, "task-1", tasks[0].ID)
}

func TestGanttPartialHeader(t *testing.T) {
	rows := [][]any{
		{"Task", "Start", "End"},
		{"Design", "2024-01-01", "2024-01-10"},
	}
	tasks := GanttTasksFromRows(rows)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Design", tasks[0].Name)
	assert.Equal(t, "2024-01-10", tasks[0].End)
	assert.Zero(t, tasks[0].Progress)
	assert.Empty(t, tasks[0].Dependencies)
	assert.Equal(t, ganttRed, tasks[0].Color)

	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.acc.sheets = append(env.acc.sheets, GanttSheet)
	require.NoError(t, env.svc.StartLiveUpdates(ctx))
	gantt, err := env.svc.AddWidget(ctx, AddWidgetRequest{Type: WidgetGantt})
	require.NoError(t, err)
	env.acc.tables[GanttSheet] = rows
	env.acc.fire(ctx, GanttSheet, "A1:C2")

	got := mustWidget(t, env.svc.Store(), gantt.Widget.ID).Data.(GanttData).Tasks
	require.Len(t, got, 1)
	assert.Equal(t, "Design", got[0].Name)
	assert.Zero(t, got[0].Progress)
}

func TestGanttColor(t *testing.T) {
	cases := map[float64]string{100: ganttGreen, 75.5: ganttGreen, 75: ganttYellow, 51: ganttYellow, 50: ganttRed, 0: ganttRed}
	for progress, want := range cases {
		if got := GanttColor(progress); got != want {
			t.Fatalf("progress %v: expected %s, got %s", progress, want, got)
		}
	}
}
