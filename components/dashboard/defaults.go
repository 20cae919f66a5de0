package dashboard

const (
	cellAddressPattern  = `^\$?[A-Za-z]{1,3}\$?[1-9][0-9]*$`
	rangeAddressPattern = `^$|^\$?[A-Za-z]{1,3}\$?[1-9][0-9]*(:\$?[A-Za-z]{1,3}\$?[1-9][0-9]*)?$`
)

var defaultWidgetDefinitions = []WidgetDefinition{
	{
		Type:        WidgetTitle,
		Name:        "Title",
		Description: "Dashboard heading, one per dashboard",
		Category:    "text",
		DefaultSize: Size{W: 6, H: 1, MinW: 3, MinH: 1},
		NewData: func() WidgetData {
			return TitleData{Content: "Dashboard Title", FontSize: 28, TextAlign: "center"}
		},
		Schema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"content": map[string]any{"type": "string"}},
		},
	},
	{
		Type:        WidgetText,
		Name:        "Text",
		Description: "Free-form rich text",
		Category:    "text",
		DefaultSize: Size{W: 4, H: 4, MinW: 2, MinH: 2},
		NewData: func() WidgetData {
			return TextData{Content: "Enter your text here", FontSize: 14}
		},
	},
	{
		Type:        WidgetChart,
		Name:        "Chart",
		Description: "Chart bound to a worksheet range",
		Category:    "charts",
		DefaultSize: Size{W: 6, H: 8, MinW: 3, MinH: 4},
		NewData: func() WidgetData {
			return ChartData{
				Type:   "bar",
				Title:  "New Chart",
				Labels: []string{"January", "February", "March"},
				Datasets: []Dataset{{
					Label:           "Series 1",
					Data:            []float64{0, 0, 0},
					BackgroundColor: "#4e79a7",
				}},
			}
		},
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"type":            map[string]any{"type": "string"},
				"labels":          map[string]any{"type": []string{"array", "null"}, "items": map[string]any{"type": "string"}},
				"datasets":        map[string]any{"type": []string{"array", "null"}, "items": map[string]any{"type": "object"}},
				"associatedRange": map[string]any{"type": "string", "pattern": rangeAddressPattern},
			},
		},
	},
	{
		Type:        WidgetGantt,
		Name:        "Gantt",
		Description: "Timeline fed from the Gantt sheet",
		Category:    "charts",
		DefaultSize: Size{W: 12, H: 8, MinW: 6, MinH: 4},
		NewData: func() WidgetData {
			return GanttData{Title: "Project Timeline", Tasks: []GanttTask{}}
		},
	},
	{
		Type:        WidgetImage,
		Name:        "Image",
		Description: "Static image or worksheet chart snapshot",
		Category:    "media",
		DefaultSize: Size{W: 4, H: 6, MinW: 2, MinH: 3},
		NewData: func() WidgetData {
			return ImageData{Alt: "Image"}
		},
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"associatedRange": map[string]any{"type": "string", "pattern": rangeAddressPattern},
			},
		},
	},
	{
		Type:            WidgetMetric,
		Name:            "Metric",
		Description:     "KPI bound to a single cell",
		Category:        "stats",
		DefaultSize:     Size{W: 3, H: 3, MinW: 2, MinH: 2},
		RequiresDetails: true,
		NewData: func() WidgetData {
			return MetricData{Title: "New Metric", Comparison: ComparisonGreater, Format: "number"}
		},
		Schema: map[string]any{
			"type":     "object",
			"required": []string{"worksheetName", "cellAddress"},
			"properties": map[string]any{
				"worksheetName": map[string]any{"type": "string", "minLength": 1},
				"cellAddress":   map[string]any{"type": "string", "pattern": cellAddressPattern},
				"targetValue":   map[string]any{"type": "number"},
				"currentValue":  map[string]any{"type": "number"},
				"comparison":    map[string]any{"enum": []string{"", "greater", "less"}},
			},
		},
	},
	{
		Type:        WidgetReport,
		Name:        "Report",
		Description: "Rendered report block",
		Category:    "text",
		DefaultSize: Size{W: 6, H: 6, MinW: 3, MinH: 3},
		NewData: func() WidgetData {
			return ReportData{Title: "Report"}
		},
	},
	{
		Type:        WidgetLine,
		Name:        "Line",
		Description: "Decorative separator",
		Category:    "layout",
		DefaultSize: Size{W: 12, H: 1, MinW: 2, MinH: 1},
		NewData: func() WidgetData {
			return LineData{Orientation: "horizontal", Color: "#000000", Thickness: 2}
		},
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"orientation": map[string]any{"enum": []string{"", "horizontal", "vertical"}},
				"thickness":   map[string]any{"type": "integer", "minimum": 0},
			},
		},
	},
	{
		Type:        WidgetTable,
		Name:        "Table",
		Description: "Table bound to a worksheet range",
		Category:    "data",
		DefaultSize: Size{W: 6, H: 6, MinW: 3, MinH: 3},
		NewData: func() WidgetData {
			return TableData{Title: "New Table", Columns: []string{}, Rows: [][]string{}}
		},
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"associatedRange": map[string]any{"type": "string", "pattern": rangeAddressPattern},
			},
		},
	},
}

// DefaultWidgetDefinitions exposes the built-in widget catalogue.
func DefaultWidgetDefinitions() []WidgetDefinition {
	out := make([]WidgetDefinition, len(defaultWidgetDefinitions))
	copy(out, defaultWidgetDefinitions)
	return out
}

// DefaultSizeTable returns the built-in default sizes keyed by widget type.
func DefaultSizeTable() SizeTable {
	sizes := make(SizeTable, len(defaultWidgetDefinitions))
	for _, def := range defaultWidgetDefinitions {
		sizes[def.Type] = def.DefaultSize
	}
	return sizes
}
