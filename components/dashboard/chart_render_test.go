package dashboard

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeSnapshot(t *testing.T, src string) string {
	t.Helper()
	payload, ok := strings.CutPrefix(src, "data:text/html;base64,")
	require.True(t, ok, "unexpected src %q", src)
	html, err := base64.StdEncoding.DecodeString(payload)
	require.NoError(t, err)
	return string(html)
}

func TestEChartsSnapshotRendererRendersKnownTypes(t *testing.T) {
	renderer := NewEChartsSnapshotRenderer(WithChartCache(NewSnapshotCache(time.Minute)), WithChartAssetsHost("https://cdn.example.com/echarts/"))
	for _, typ := range []string{"bar", "line", "pie", "doughnut", "scatter"} {
		src, err := renderer.RenderSnapshot(context.Background(), "img-1", ChartData{
			Type:     typ,
			Title:    "Pipeline " + typ,
			Labels:   []string{"Lead", "Won"},
			Datasets: []Dataset{{Label: "Deals", Data: []float64{4, 2}}},
		})
		require.NoError(t, err, typ)
		html := decodeSnapshot(t, src)
		assert.Contains(t, html, "Pipeline "+typ)
		assert.Contains(t, html, "cdn.example.com")
	}
}

func TestEChartsSnapshotRendererRejectsUnknownType(t *testing.T) {
	renderer := NewEChartsSnapshotRenderer(WithChartCache(nil))
	_, err := renderer.RenderSnapshot(context.Background(), "img-1", ChartData{Type: "radar"})
	require.Error(t, err)
}
