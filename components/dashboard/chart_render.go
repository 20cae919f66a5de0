package dashboard

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

const defaultChartHeight = "360px"

// SnapshotRenderer turns chart data into an image widget source.
type SnapshotRenderer interface {
	RenderSnapshot(ctx context.Context, widgetID string, chart ChartData) (string, error)
}

// EChartsSnapshotRenderer renders chart snapshots as self-contained go-echarts
// HTML documents wrapped in a data URL.
type EChartsSnapshotRenderer struct {
	cache      RenderCache
	theme      string
	assetsHost string
}

// EChartsOption customizes the renderer.
type EChartsOption func(*EChartsSnapshotRenderer)

// WithChartCache replaces the snapshot cache. A nil cache renders every
// request.
func WithChartCache(cache RenderCache) EChartsOption {
	return func(r *EChartsSnapshotRenderer) {
		r.cache = cache
	}
}

// WithChartTheme sets a static theme (defaults to Westeros).
func WithChartTheme(theme string) EChartsOption {
	return func(r *EChartsSnapshotRenderer) {
		r.theme = theme
	}
}

// WithChartAssetsHost rewrites the assets host so ECharts JS loads from a CDN.
func WithChartAssetsHost(host string) EChartsOption {
	return func(r *EChartsSnapshotRenderer) {
		r.assetsHost = host
	}
}

// NewEChartsSnapshotRenderer builds a renderer with its own snapshot cache.
func NewEChartsSnapshotRenderer(options ...EChartsOption) *EChartsSnapshotRenderer {
	r := &EChartsSnapshotRenderer{
		cache:      NewSnapshotCache(DefaultSnapshotTTL),
		theme:      types.ThemeWesteros,
		assetsHost: DefaultEChartsAssetsHost(),
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// RenderSnapshot renders chart and returns a data URL.
func (r *EChartsSnapshotRenderer) RenderSnapshot(ctx context.Context, widgetID string, chart ChartData) (string, error) {
	var (
		html string
		err  error
	)
	if r.cache != nil {
		html, err = r.cache.Snapshot(widgetID, chart, r.render)
	} else {
		html, err = r.render(chart)
	}
	if err != nil {
		return "", err
	}
	return "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(html)), nil
}

// Retain forgets cached snapshots of widgets not in widgetIDs.
func (r *EChartsSnapshotRenderer) Retain(widgetIDs []string) int {
	if r.cache == nil {
		return 0
	}
	return r.cache.Retain(widgetIDs)
}

func (r *EChartsSnapshotRenderer) render(chart ChartData) (string, error) {
	switch strings.ToLower(chart.Type) {
	case "", "bar", "column":
		bar := charts.NewBar()
		bar.SetGlobalOptions(r.globalChartOptions(chart.Title)...)
		bar.SetXAxis(chart.Labels)
		for _, ds := range chart.Datasets {
			bar.AddSeries(ds.Label, toBarData(chart.Labels, ds.Data))
		}
		return renderChart(bar)
	case "line", "area":
		line := charts.NewLine()
		line.SetGlobalOptions(r.globalChartOptions(chart.Title)...)
		line.SetXAxis(chart.Labels)
		for _, ds := range chart.Datasets {
			line.AddSeries(ds.Label, toLineData(chart.Labels, ds.Data))
		}
		line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))
		return renderChart(line)
	case "pie", "doughnut":
		pie := charts.NewPie()
		pie.SetGlobalOptions(r.globalChartOptions(chart.Title)...)
		for _, ds := range chart.Datasets {
			pie.AddSeries(ds.Label, toPieData(chart.Labels, ds.Data))
		}
		if strings.EqualFold(chart.Type, "doughnut") {
			pie.SetSeriesOptions(charts.WithPieChartOpts(opts.PieChart{Radius: []string{"40%", "70%"}}))
		}
		return renderChart(pie)
	case "scatter":
		scatter := charts.NewScatter()
		scatter.SetGlobalOptions(r.globalChartOptions(chart.Title)...)
		for _, ds := range chart.Datasets {
			scatter.AddSeries(ds.Label, toScatterData(ds.Data))
		}
		return renderChart(scatter)
	default:
		return "", fmt.Errorf("unsupported chart type: %s", chart.Type)
	}
}

func renderChart(renderable interface{ Render(io.Writer) error }) (string, error) {
	var buf bytes.Buffer
	if err := renderable.Render(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (r *EChartsSnapshotRenderer) globalChartOptions(title string) []charts.GlobalOpts {
	initOpts := opts.Initialization{
		Theme:  r.theme,
		Width:  "100%",
		Height: defaultChartHeight,
	}
	if r.assetsHost != "" {
		initOpts.AssetsHost = r.assetsHost
	}
	return []charts.GlobalOpts{
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithInitializationOpts(initOpts),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	}
}

func toBarData(labels []string, values []float64) []opts.BarData {
	data := make([]opts.BarData, len(values))
	for i, v := range values {
		data[i] = opts.BarData{Name: labelAt(labels, i), Value: v}
	}
	return data
}

func toLineData(labels []string, values []float64) []opts.LineData {
	data := make([]opts.LineData, len(values))
	for i, v := range values {
		data[i] = opts.LineData{Name: labelAt(labels, i), Value: v}
	}
	return data
}

func toPieData(labels []string, values []float64) []opts.PieData {
	data := make([]opts.PieData, len(values))
	for i, v := range values {
		name := labelAt(labels, i)
		if name == "" {
			name = fmt.Sprintf("Slice %d", i+1)
		}
		data[i] = opts.PieData{Name: name, Value: v}
	}
	return data
}

func toScatterData(values []float64) []opts.ScatterData {
	data := make([]opts.ScatterData, len(values))
	for i, v := range values {
		data[i] = opts.ScatterData{Value: []float64{float64(i + 1), v}}
	}
	return data
}

func labelAt(labels []string, i int) string {
	if i < len(labels) {
		return labels[i]
	}
	return ""
}
