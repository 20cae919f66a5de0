package dashboard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addBoundChart(t *testing.T, env *testEnv, sheet, rng string) Widget {
	t.Helper()
	res, err := env.svc.AddWidget(context.Background(), AddWidgetRequest{
		Type: WidgetChart,
		Data: ChartData{
			Type:            "bar",
			Title:           "Sales",
			Labels:          []string{"old"},
			Datasets:        []Dataset{{Label: "old", Data: []float64{1}, BackgroundColor: "#123456", BorderWidth: 2}},
			WorksheetName:   sheet,
			AssociatedRange: rng,
		},
	})
	require.NoError(t, err)
	return res.Widget
}

func addBoundMetric(t *testing.T, env *testEnv, sheet, cell string) Widget {
	t.Helper()
	res, err := env.svc.AddWidget(context.Background(), AddWidgetRequest{
		Type: WidgetMetric,
		Data: MetricData{Title: "Revenue", WorksheetName: sheet, CellAddress: cell, Comparison: ComparisonGreater},
	})
	require.NoError(t, err)
	require.False(t, res.Pending)
	return res.Widget
}

func TestRefreshAllChartsRebuildsBoundWidgets(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	chart := addBoundChart(t, env, "Sheet1", "A1:C3")
	metric := addBoundMetric(t, env, "Sheet2", "B2")

	env.acc.setRange("Sheet1", "A1:C3", [][]any{
		{"Month", "North", "South"},
		{"Jan", 10.0, "12"},
		{"Feb", 20.0, 24.0},
	})
	env.acc.setRange("Sheet2", "B2", [][]any{{"1250.5"}})

	require.NoError(t, env.svc.RefreshAllCharts(ctx))

	got := mustWidget(t, env.svc.Store(), chart.ID).Data.(ChartData)
	assert.Equal(t, []string{"Jan", "Feb"}, got.Labels)
	require.Len(t, got.Datasets, 2)
	assert.Equal(t, "North", got.Datasets[0].Label)
	assert.Equal(t, []float64{10, 20}, got.Datasets[0].Data)
	assert.Equal(t, "#123456", got.Datasets[0].BackgroundColor)
	assert.Equal(t, "#123456", got.Datasets[0].BorderColor)
	assert.Equal(t, 2, got.Datasets[0].BorderWidth)
	assert.Equal(t, []float64{12, 24}, got.Datasets[1].Data)
	assert.Regexp(t, `^#[0-9a-f]{6}$`, got.Datasets[1].BackgroundColor)
	assert.Equal(t, got.Datasets[1].BackgroundColor, got.Datasets[1].BorderColor)
	assert.Equal(t, "Sheet1", got.WorksheetName)

	assert.Equal(t, 1250.5, mustWidget(t, env.svc.Store(), metric.ID).Data.(MetricData).CurrentValue)
	assert.Equal(t, 1, env.client.updateCount())
	assert.Equal(t, 1, env.notes.Count(LevelSuccess))
}

func TestRefreshRefusesForeignWorkbook(t *testing.T) {
	env := newTestEnv(t, nil)
	addBoundChart(t, env, "Sheet1", "A1:C3")
	env.acc.props[WorkbookIDProperty] = "wb-2"

	err := env.svc.RefreshAllCharts(context.Background())
	require.ErrorIs(t, err, ErrWorkbookMismatch)
	assert.Zero(t, env.acc.readCount())
	assert.Zero(t, env.client.updateCount())
	assert.Equal(t, 1, env.notes.Count(LevelWarning))
}

func TestRefreshIsAllOrNothing(t *testing.T) {
	env := newTestEnv(t, nil)
	chart := addBoundChart(t, env, "Sheet1", "A1:B2")
	addBoundMetric(t, env, "Archive", "C3")
	env.acc.setRange("Sheet1", "A1:B2", [][]any{{"x", "y"}, {"a", 1.0}})
	before := env.svc.State()
	seq := env.svc.Store().Seq()

	err := env.svc.RefreshAllCharts(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWorksheetNotFound))
	assert.Equal(t, before.Widgets, env.svc.State().Widgets)
	assert.Equal(t, seq, env.svc.Store().Seq())
	assert.Equal(t, "Sales", mustWidget(t, env.svc.Store(), chart.ID).Data.(ChartData).Title)
	assert.Zero(t, env.client.updateCount())
	assert.Equal(t, 1, env.notes.Count(LevelError))
}

func TestRefreshAbortsOnUnboundChart(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	chart := addBoundChart(t, env, "Sheet1", "A1:B2")
	unbound, err := env.svc.AddWidget(ctx, AddWidgetRequest{Type: WidgetChart})
	require.NoError(t, err)
	env.acc.setRange("Sheet1", "A1:B2", [][]any{{"x", "y"}, {"a", 1.0}})
	seq := env.svc.Store().Seq()

	err = env.svc.RefreshAllCharts(ctx)
	require.ErrorIs(t, err, ErrWorksheetNotFound)
	assert.Contains(t, err.Error(), unbound.Widget.Data.(ChartData).Title)
	assert.Equal(t, []string{"old"}, mustWidget(t, env.svc.Store(), chart.ID).Data.(ChartData).Labels)
	assert.Equal(t, seq, env.svc.Store().Seq())
	assert.Zero(t, env.client.updateCount())
	assert.Equal(t, 1, env.notes.Count(LevelError))
	assert.Zero(t, env.notes.Count(LevelSuccess))
}

func TestRefreshWarnsOnNonNumericMetric(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	metric := addBoundMetric(t, env, "Sheet1", "A1")
	env.acc.setRange("Sheet1", "A1", [][]any{{"42.5"}})
	require.NoError(t, env.svc.RefreshAllCharts(ctx))
	require.Equal(t, 42.5, mustWidget(t, env.svc.Store(), metric.ID).Data.(MetricData).CurrentValue)
	warnings := env.notes.Count(LevelWarning)

	env.acc.setRange("Sheet1", "A1", [][]any{{"n/a"}})
	require.NoError(t, env.svc.RefreshAllCharts(ctx))
	assert.Equal(t, 42.5, mustWidget(t, env.svc.Store(), metric.ID).Data.(MetricData).CurrentValue)
	assert.Equal(t, warnings+1, env.notes.Count(LevelWarning))
}

func TestRefreshRequiresLoadedDashboard(t *testing.T) {
	svc := NewService(Options{Accessor: newFakeAccessor()})
	defer svc.Close()
	require.ErrorIs(t, svc.RefreshAllCharts(context.Background()), ErrNoDashboard)
}

func TestRefreshRendersSnapshots(t *testing.T) {
	renderer := &stubSnapshots{src: "data:text/html;base64,AAAA"}
	env := newTestEnv(t, func(o *Options) { o.Snapshots = renderer })
	ctx := context.Background()
	img, err := env.svc.AddWidget(ctx, AddWidgetRequest{
		Type: WidgetImage,
		Data: ImageData{Alt: "Pipeline", ChartType: "pie", WorksheetName: "Sheet2", AssociatedRange: "A1:B3"},
	})
	require.NoError(t, err)
	env.acc.setRange("Sheet2", "A1:B3", [][]any{{"Stage", "Deals"}, {"Lead", 4.0}, {"Won", 2.0}})

	require.NoError(t, env.svc.RefreshAllCharts(ctx))
	got := mustWidget(t, env.svc.Store(), img.Widget.ID).Data.(ImageData)
	assert.Equal(t, renderer.src, got.Src)
	require.Len(t, renderer.charts, 1)
	assert.Equal(t, []string{"Lead", "Won"}, renderer.charts[0].Labels)
	assert.Equal(t, "pie", renderer.charts[0].Type)
}

func TestWriteMetricValue(t *testing.T) {
	env := newTestEnv(t, nil)
	metric := addBoundMetric(t, env, "Sheet1", "C4")

	require.NoError(t, env.svc.WriteMetricValue(context.Background(), metric.ID, 77))
	assert.Equal(t, []string{"Sheet1!C4"}, env.acc.writes)
	assert.Equal(t, float64(77), mustWidget(t, env.svc.Store(), metric.ID).Data.(MetricData).CurrentValue)

	env.acc.props[WorkbookIDProperty] = "other"
	require.ErrorIs(t, env.svc.WriteMetricValue(context.Background(), metric.ID, 1), ErrWorkbookMismatch)
	assert.Len(t, env.acc.writes, 1)
}

func TestRebuildChartEmptyRange(t *testing.T) {
	got := rebuildChart(ChartData{Title: "x", Labels: []string{"a"}}, nil, randomColor)
	assert.Empty(t, got.Labels)
	assert.Empty(t, got.Datasets)
	assert.Equal(t, "x", got.Title)
}

type stubSnapshots struct {
	src    string
	charts []ChartData
}

func (s *stubSnapshots) RenderSnapshot(_ context.Context, _ string, chart ChartData) (string, error) {
	s.charts = append(s.charts, chart)
	return s.src, nil
}
