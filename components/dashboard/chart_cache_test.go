package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingRender(calls *int) func(ChartData) (string, error) {
	return func(chart ChartData) (string, error) {
		*calls++
		return chart.Title, nil
	}
}

func TestSnapshotCacheReusesUnchangedChart(t *testing.T) {
	cache := NewSnapshotCache(time.Minute)
	chart := ChartData{Type: "bar", Title: "Sales", Labels: []string{"Q1"}, Datasets: []Dataset{{Label: "North", Data: []float64{1}}}}
	calls := 0

	first, err := cache.Snapshot("image-1", chart, countingRender(&calls))
	require.NoError(t, err)
	second, err := cache.Snapshot("image-1", chart, countingRender(&calls))
	require.NoError(t, err)

	assert.Equal(t, "Sales", first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
	assert.Equal(t, CacheStats{Entries: 1, Hits: 1, Misses: 1}, cache.Stats())
}

func TestSnapshotCacheReplacesEntryWhenDataChanges(t *testing.T) {
	cache := NewSnapshotCache(time.Minute)
	chart := ChartData{Type: "bar", Title: "Sales", Datasets: []Dataset{{Data: []float64{1}}}}
	calls := 0

	_, err := cache.Snapshot("image-1", chart, countingRender(&calls))
	require.NoError(t, err)
	changed := chart.clone().(ChartData)
	changed.Datasets[0].Data[0] = 2
	changed.Title = "Sales v2"
	html, err := cache.Snapshot("image-1", changed, countingRender(&calls))
	require.NoError(t, err)

	assert.Equal(t, "Sales v2", html)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, cache.Stats().Entries)
}

func TestSnapshotCacheExpires(t *testing.T) {
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	cache := NewSnapshotCache(time.Minute)
	cache.now = func() time.Time { return now }
	chart := ChartData{Type: "pie", Title: "Mix"}
	calls := 0

	_, err := cache.Snapshot("image-1", chart, countingRender(&calls))
	require.NoError(t, err)
	now = now.Add(59 * time.Second)
	_, err = cache.Snapshot("image-1", chart, countingRender(&calls))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	now = now.Add(time.Second)
	_, err = cache.Snapshot("image-1", chart, countingRender(&calls))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestSnapshotCacheKeepsEntryOnRenderError(t *testing.T) {
	cache := NewSnapshotCache(0)
	chart := ChartData{Type: "bar", Title: "Sales"}
	calls := 0
	_, err := cache.Snapshot("image-1", chart, countingRender(&calls))
	require.NoError(t, err)

	boom := errors.New("boom")
	broken := ChartData{Type: "radar", Title: "Broken"}
	_, err = cache.Snapshot("image-1", broken, func(ChartData) (string, error) { return "", boom })
	require.ErrorIs(t, err, boom)

	html, err := cache.Snapshot("image-1", chart, countingRender(&calls))
	require.NoError(t, err)
	assert.Equal(t, "Sales", html)
	assert.Equal(t, 1, calls)
}

func TestSnapshotCacheRetain(t *testing.T) {
	cache := NewSnapshotCache(time.Minute)
	calls := 0
	for _, id := range []string{"image-1", "image-2", "image-3"} {
		_, err := cache.Snapshot(id, ChartData{Title: id}, countingRender(&calls))
		require.NoError(t, err)
	}

	assert.Equal(t, 2, cache.Retain([]string{"image-2", "image-9"}))
	assert.Equal(t, 1, cache.Stats().Entries)
	assert.Zero(t, cache.Retain([]string{"image-2"}))
}

func TestChartHashIgnoresBinding(t *testing.T) {
	a := ChartData{Type: "bar", Labels: []string{"Q1"}, Datasets: []Dataset{{Label: "Sales", Data: []float64{1}}}}
	b := a.clone().(ChartData)
	b.WorksheetName = "Sheet1"
	b.AssociatedRange = "A1:B2"
	assert.Equal(t, chartHash(a), chartHash(b))

	b.Datasets[0].Data[0] = 2
	assert.NotEqual(t, chartHash(a), chartHash(b))
}

func TestRefreshDropsSnapshotsOfRemovedImages(t *testing.T) {
	cache := NewSnapshotCache(time.Minute)
	renderer := NewEChartsSnapshotRenderer(WithChartCache(cache))
	env := newTestEnv(t, func(o *Options) { o.Snapshots = renderer })
	ctx := context.Background()
	env.acc.setRange("Sheet2", "A1:B3", [][]any{{"Stage", "Deals"}, {"Lead", 4.0}, {"Won", 2.0}})

	var ids []string
	for _, alt := range []string{"Pipeline", "Funnel"} {
		res, err := env.svc.AddWidget(ctx, AddWidgetRequest{
			Type: WidgetImage,
			Data: ImageData{Alt: alt, ChartType: "pie", WorksheetName: "Sheet2", AssociatedRange: "A1:B3"},
		})
		require.NoError(t, err)
		ids = append(ids, res.Widget.ID)
	}
	require.NoError(t, env.svc.RefreshAllCharts(ctx))
	assert.Equal(t, 2, cache.Stats().Entries)
	assert.NotEmpty(t, mustWidget(t, env.svc.Store(), ids[0]).Data.(ImageData).Src)

	require.NoError(t, env.svc.RemoveWidget(ctx, ids[1], RemoveOptions{}))
	require.NoError(t, env.svc.RefreshAllCharts(ctx))
	stats := cache.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, uint64(1), stats.Hits)
}
