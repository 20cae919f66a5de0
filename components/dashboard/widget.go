package dashboard

import (
	"encoding/json"
	"fmt"
	"slices"
)

// WidgetType discriminates the widget payload variants.
type WidgetType string

const (
	WidgetTitle  WidgetType = "title"
	WidgetText   WidgetType = "text"
	WidgetChart  WidgetType = "chart"
	WidgetGantt  WidgetType = "gantt"
	WidgetImage  WidgetType = "image"
	WidgetMetric WidgetType = "metric"
	WidgetReport WidgetType = "report"
	WidgetLine   WidgetType = "line"
	WidgetTable  WidgetType = "table"
)

// KnownWidgetTypes lists every type the engine understands, in catalogue order.
var KnownWidgetTypes = []WidgetType{
	WidgetTitle, WidgetText, WidgetChart, WidgetGantt, WidgetImage,
	WidgetMetric, WidgetReport, WidgetLine, WidgetTable,
}

// Widget is one element placed on a dashboard. ID is stable for the widget's
// lifetime and is the join key for layouts, history and the presenter channel.
type Widget struct {
	ID   string     `json:"id" validate:"required"`
	Type WidgetType `json:"type" validate:"required"`
	Data WidgetData `json:"data"`
}

// WidgetData is the closed set of widget payloads. Only types in this package
// implement it.
type WidgetData interface {
	Kind() WidgetType
	clone() WidgetData
}

// TitleData is the dashboard heading. At most one may exist.
type TitleData struct {
	Content   string `json:"content"`
	FontSize  int    `json:"fontSize,omitempty"`
	Color     string `json:"color,omitempty"`
	TextAlign string `json:"textAlign,omitempty"`
}

// TextData is free-form rich text.
type TextData struct {
	Content         string `json:"content"`
	FontSize        int    `json:"fontSize,omitempty"`
	Color           string `json:"color,omitempty"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
}

// Dataset is one chart series with its styling.
type Dataset struct {
	Label           string    `json:"label"`
	Data            []float64 `json:"data"`
	BackgroundColor string    `json:"backgroundColor,omitempty"`
	BorderColor     string    `json:"borderColor,omitempty"`
	BorderWidth     int       `json:"borderWidth,omitempty"`
}

// ChartData is a chart bound to a worksheet range.
type ChartData struct {
	Type            string    `json:"type"`
	Title           string    `json:"title"`
	Labels          []string  `json:"labels"`
	Datasets        []Dataset `json:"datasets"`
	WorksheetName   string    `json:"worksheetName,omitempty"`
	AssociatedRange string    `json:"associatedRange,omitempty"`
	ChartIndex      *int      `json:"chartIndex,omitempty"`
}

// GanttTask is one row of a gantt chart.
type GanttTask struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Start        string  `json:"start"`
	End          string  `json:"end"`
	Progress     float64 `json:"progress"`
	Dependencies string  `json:"dependencies,omitempty"`
	Color        string  `json:"color,omitempty"`
}

// GanttData holds tasks derived from the Gantt sheet table.
type GanttData struct {
	Title string      `json:"title"`
	Tasks []GanttTask `json:"tasks"`
}

// ImageData is a static image or a snapshot of a worksheet chart.
type ImageData struct {
	Src             string `json:"src"`
	Alt             string `json:"alt,omitempty"`
	ChartType       string `json:"chartType,omitempty"`
	WorksheetName   string `json:"worksheetName,omitempty"`
	AssociatedRange string `json:"associatedRange,omitempty"`
	ChartIndex      *int   `json:"chartIndex,omitempty"`
}

// Comparison controls how a metric's current value is judged against its target.
type Comparison string

const (
	ComparisonGreater Comparison = "greater"
	ComparisonLess    Comparison = "less"
)

// MetricData is a KPI bound to a single worksheet cell.
type MetricData struct {
	Title         string     `json:"title"`
	WorksheetName string     `json:"worksheetName"`
	CellAddress   string     `json:"cellAddress"`
	TargetValue   float64    `json:"targetValue"`
	Comparison    Comparison `json:"comparison"`
	CurrentValue  float64    `json:"currentValue"`
	Format        string     `json:"format"`
}

// ReportData is a rendered report block.
type ReportData struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// LineData is a decorative separator.
type LineData struct {
	Orientation string `json:"orientation"`
	Color       string `json:"color"`
	Thickness   int    `json:"thickness"`
}

// TableData is a table bound to a worksheet range.
type TableData struct {
	Title           string     `json:"title"`
	Columns         []string   `json:"columns"`
	Rows            [][]string `json:"rows"`
	WorksheetName   string     `json:"worksheetName,omitempty"`
	AssociatedRange string     `json:"associatedRange,omitempty"`
}

// RawData preserves payloads of widget types this build does not know.
type RawData struct {
	Type WidgetType
	Raw  json.RawMessage
}

func (TitleData) Kind() WidgetType  { return WidgetTitle }
func (TextData) Kind() WidgetType   { return WidgetText }
func (ChartData) Kind() WidgetType  { return WidgetChart }
func (GanttData) Kind() WidgetType  { return WidgetGantt }
func (ImageData) Kind() WidgetType  { return WidgetImage }
func (MetricData) Kind() WidgetType { return WidgetMetric }
func (ReportData) Kind() WidgetType { return WidgetReport }
func (LineData) Kind() WidgetType   { return WidgetLine }
func (TableData) Kind() WidgetType  { return WidgetTable }
func (d RawData) Kind() WidgetType  { return d.Type }

func (d TitleData) clone() WidgetData  { return d }
func (d TextData) clone() WidgetData   { return d }
func (d ReportData) clone() WidgetData { return d }
func (d LineData) clone() WidgetData   { return d }
func (d MetricData) clone() WidgetData { return d }

func (d ChartData) clone() WidgetData {
	d.Labels = slices.Clone(d.Labels)
	if d.Datasets != nil {
		datasets := make([]Dataset, len(d.Datasets))
		for i, ds := range d.Datasets {
			ds.Data = slices.Clone(ds.Data)
			datasets[i] = ds
		}
		d.Datasets = datasets
	}
	d.ChartIndex = cloneIntPtr(d.ChartIndex)
	return d
}

func (d GanttData) clone() WidgetData {
	d.Tasks = slices.Clone(d.Tasks)
	return d
}

func (d ImageData) clone() WidgetData {
	d.ChartIndex = cloneIntPtr(d.ChartIndex)
	return d
}

func (d TableData) clone() WidgetData {
	d.Columns = slices.Clone(d.Columns)
	if d.Rows != nil {
		rows := make([][]string, len(d.Rows))
		for i, row := range d.Rows {
			rows[i] = slices.Clone(row)
		}
		d.Rows = rows
	}
	return d
}

func (d RawData) clone() WidgetData {
	d.Raw = slices.Clone(d.Raw)
	return d
}

// MarshalJSON keeps unknown payloads byte-for-byte.
func (d RawData) MarshalJSON() ([]byte, error) {
	if len(d.Raw) == 0 {
		return []byte("null"), nil
	}
	return d.Raw, nil
}

func cloneIntPtr(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

// Clone returns a deep copy of the widget.
func (w Widget) Clone() Widget {
	if w.Data != nil {
		w.Data = w.Data.clone()
	}
	return w
}

// UnmarshalJSON decodes the payload variant selected by type.
func (w *Widget) UnmarshalJSON(b []byte) error {
	var envelope struct {
		ID   string          `json:"id"`
		Type WidgetType      `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &envelope); err != nil {
		return err
	}
	data, err := DecodeWidgetData(envelope.Type, envelope.Data)
	if err != nil {
		return fmt.Errorf("dashboard: widget %s: %w", envelope.ID, err)
	}
	w.ID = envelope.ID
	w.Type = envelope.Type
	w.Data = data
	return nil
}

// DecodeWidgetData decodes raw JSON into the payload for the given type.
// Unknown types are preserved as RawData.
func DecodeWidgetData(typ WidgetType, raw json.RawMessage) (WidgetData, error) {
	switch typ {
	case WidgetTitle:
		return decodeInto[TitleData](raw)
	case WidgetText:
		return decodeInto[TextData](raw)
	case WidgetChart:
		return decodeInto[ChartData](raw)
	case WidgetGantt:
		return decodeInto[GanttData](raw)
	case WidgetImage:
		return decodeInto[ImageData](raw)
	case WidgetMetric:
		return decodeInto[MetricData](raw)
	case WidgetReport:
		return decodeInto[ReportData](raw)
	case WidgetLine:
		return decodeInto[LineData](raw)
	case WidgetTable:
		return decodeInto[TableData](raw)
	default:
		return RawData{Type: typ, Raw: slices.Clone(raw)}, nil
	}
}

func decodeInto[T WidgetData](raw json.RawMessage) (WidgetData, error) {
	var out T
	if len(raw) == 0 || string(raw) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s data: %w", out.Kind(), err)
	}
	return out, nil
}

// dataToMap flattens a payload into a generic map for merging and schema checks.
func dataToMap(data WidgetData) (map[string]any, error) {
	if data == nil {
		return map[string]any{}, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if string(b) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// mapToData rebuilds a typed payload from a generic map.
func mapToData(typ WidgetType, m map[string]any) (WidgetData, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return DecodeWidgetData(typ, b)
}

func cloneWidgets(widgets []Widget) []Widget {
	if widgets == nil {
		return nil
	}
	out := make([]Widget, len(widgets))
	for i, w := range widgets {
		out[i] = w.Clone()
	}
	return out
}

func findWidget(widgets []Widget, id string) int {
	return slices.IndexFunc(widgets, func(w Widget) bool { return w.ID == id })
}

func hasTitle(widgets []Widget) bool {
	return slices.ContainsFunc(widgets, func(w Widget) bool { return w.Type == WidgetTitle })
}
