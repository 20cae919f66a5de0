package workbook

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/goliatone/go-sheetboard/components/dashboard"
)

func newSalesFile(t *testing.T) *excelize.File {
	t.Helper()
	f := excelize.NewFile()
	t.Cleanup(func() { _ = f.Close() })
	rows := [][]any{
		{"Month", "Revenue", "Cost"},
		{"Jan", 10, 4},
		{"Feb", 12.5, 5},
		{"Mar", 9, 6},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	return f
}

func TestReadRangeTypesValues(t *testing.T) {
	acc := New(newSalesFile(t), Options{})
	require.NoError(t, acc.file.SetCellValue("Sheet1", "D2", true))

	rows, err := acc.ReadRange(context.Background(), "Sheet1", "A1:D3")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []any{"Month", "Revenue", "Cost", nil}, rows[0])
	assert.Equal(t, []any{"Jan", float64(10), float64(4), true}, rows[1])
	assert.Equal(t, 12.5, rows[2][1])
}

func TestReadRangeHonoursQualifiedAddress(t *testing.T) {
	acc := New(newSalesFile(t), Options{})

	rows, err := acc.ReadRange(context.Background(), "Other", "Sheet1!$B$2")
	require.NoError(t, err)
	assert.Equal(t, [][]any{{float64(10)}}, rows)
}

func TestReadRangeUnknownSheet(t *testing.T) {
	acc := New(newSalesFile(t), Options{})

	_, err := acc.ReadRange(context.Background(), "Missing", "A1")
	assert.True(t, errors.Is(err, dashboard.ErrWorksheetNotFound), "got %v", err)

	_, err = acc.ReadRange(context.Background(), "Sheet1", "not a range")
	assert.True(t, errors.Is(err, dashboard.ErrInvalidRange), "got %v", err)
}

func TestWriteCellNotifiesSubscribers(t *testing.T) {
	f := newSalesFile(t)
	_, err := f.NewSheet("Other")
	require.NoError(t, err)
	acc := New(f, Options{})
	ctx := context.Background()

	var (
		mu      sync.Mutex
		changes []dashboard.SheetChange
	)
	sub, err := acc.Subscribe(ctx, "Sheet1", func(_ context.Context, change dashboard.SheetChange) {
		mu.Lock()
		changes = append(changes, change)
		mu.Unlock()
	})
	require.NoError(t, err)
	_, err = acc.Subscribe(ctx, "Other", func(context.Context, dashboard.SheetChange) {
		t.Error("unexpected notification for Other")
	})
	require.NoError(t, err)

	require.NoError(t, acc.WriteCell(ctx, "Sheet1", "$B$2", 42))
	rows, err := acc.ReadRange(ctx, "Sheet1", "B2")
	require.NoError(t, err)
	assert.Equal(t, float64(42), rows[0][0])

	mu.Lock()
	assert.Equal(t, []dashboard.SheetChange{{Worksheet: "Sheet1", Address: "B2"}}, changes)
	mu.Unlock()

	require.NoError(t, sub.Unsubscribe())
	assert.Equal(t, 1, acc.subscriberCount())
	require.NoError(t, acc.WriteCell(ctx, "Sheet1", "B3", 1))
	mu.Lock()
	assert.Len(t, changes, 1)
	mu.Unlock()
}

func TestWriteCellRejectsBadAddress(t *testing.T) {
	acc := New(newSalesFile(t), Options{})

	err := acc.WriteCell(context.Background(), "Sheet1", "B2:C3", 1)
	assert.True(t, errors.Is(err, dashboard.ErrInvalidCellAddress), "got %v", err)

	_, err = acc.Subscribe(context.Background(), "Missing", func(context.Context, dashboard.SheetChange) {})
	assert.True(t, errors.Is(err, dashboard.ErrWorksheetNotFound), "got %v", err)
}

func TestCustomProperties(t *testing.T) {
	acc := New(newSalesFile(t), Options{})
	ctx := context.Background()

	_, ok, err := acc.CustomProperty(ctx, dashboard.WorkbookIDProperty)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, acc.SetCustomProperty(ctx, dashboard.WorkbookIDProperty, "wb-1"))
	v, ok, err := acc.CustomProperty(ctx, dashboard.WorkbookIDProperty)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "wb-1", v)
}

func TestTableRowsReadsFirstTable(t *testing.T) {
	f := newSalesFile(t)
	require.NoError(t, f.AddTable("Sheet1", &excelize.Table{Range: "A1:C4", Name: "Sales"}))
	acc := New(f, Options{})

	rows, err := acc.TableRows(context.Background(), "Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Mar", rows[3][0])
}

func TestTableRowsFallsBackToUsedRange(t *testing.T) {
	acc := New(newSalesFile(t), Options{})

	rows, err := acc.TableRows(context.Background(), "Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Len(t, rows[0], 3)
}

func TestChartsReportBoundingRange(t *testing.T) {
	f := newSalesFile(t)
	require.NoError(t, f.AddChart("Sheet1", "F2", &excelize.Chart{
		Type: excelize.Col,
		Series: []excelize.ChartSeries{
			{Name: "Sheet1!$B$1", Categories: "Sheet1!$A$2:$A$4", Values: "Sheet1!$B$2:$B$4"},
			{Name: "Sheet1!$C$1", Categories: "Sheet1!$A$2:$A$4", Values: "Sheet1!$C$2:$C$4"},
		},
	}))
	require.NoError(t, f.AddChart("Sheet1", "F20", &excelize.Chart{
		Type: excelize.Line,
		Series: []excelize.ChartSeries{
			{Name: "Sheet1!$B$1", Categories: "Sheet1!$A$2:$A$3", Values: "Sheet1!$B$2:$B$3"},
		},
	}))
	acc := New(f, Options{})

	charts, err := acc.Charts(context.Background(), "Sheet1")
	require.NoError(t, err)
	require.Len(t, charts, 2)
	assert.Equal(t, "Sheet1", charts[0].Worksheet)
	assert.Equal(t, "A1:C4", charts[0].Range)
	assert.Equal(t, "A1:B3", charts[1].Range)
}

func TestChartsOnSheetWithoutDrawing(t *testing.T) {
	acc := New(newSalesFile(t), Options{})

	charts, err := acc.Charts(context.Background(), "Sheet1")
	require.NoError(t, err)
	assert.Empty(t, charts)
}

func TestOpenAndSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.xlsx")
	require.NoError(t, newSalesFile(t).SaveAs(path))

	acc, err := Open(path, Options{})
	require.NoError(t, err)
	require.NoError(t, acc.WriteCell(context.Background(), "Sheet1", "B2", 99))
	require.NoError(t, acc.Save())
	require.NoError(t, acc.Close())

	reopened, err := Open(path, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })
	rows, err := reopened.ReadRange(context.Background(), "Sheet1", "B2")
	require.NoError(t, err)
	assert.Equal(t, float64(99), rows[0][0])
}

func TestServiceRefreshFromWorkbook(t *testing.T) {
	acc := New(newSalesFile(t), Options{})
	store := dashboard.NewInMemoryDashboardStore()
	svc := dashboard.NewService(dashboard.Options{Client: store, Accessor: acc, AutosaveDelay: time.Hour})
	defer svc.Close()
	ctx := context.Background()

	_, err := svc.CreateDashboard(ctx, "Sales")
	require.NoError(t, err)
	_, err = svc.AddWidget(ctx, dashboard.AddWidgetRequest{
		Type: dashboard.WidgetChart,
		Data: dashboard.ChartData{
			Type:            "bar",
			Title:           "Revenue",
			WorksheetName:   "Sheet1",
			AssociatedRange: "A1:B4",
		},
	})
	require.NoError(t, err)
	require.NoError(t, svc.RefreshAllCharts(ctx))

	var chart dashboard.ChartData
	for _, w := range svc.State().Widgets {
		if c, ok := w.Data.(dashboard.ChartData); ok {
			chart = c
		}
	}
	assert.Equal(t, []string{"Jan", "Feb", "Mar"}, chart.Labels)
	require.Len(t, chart.Datasets, 1)
	assert.Equal(t, []float64{10, 12.5, 9}, chart.Datasets[0].Data)
}
