package dashboard

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndApplyTemplate(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	_, err := env.svc.AddWidget(ctx, AddWidgetRequest{Type: WidgetReport})
	require.NoError(t, err)
	border := DefaultBorderSettings()
	border.Color = "#ff0000"
	require.NoError(t, env.svc.SetBorderSettings(ctx, border))

	tpl, err := env.svc.SaveAsTemplate(ctx, "Weekly")
	require.NoError(t, err)
	require.Len(t, tpl.Components, 2)

	other := newTestEnv(t, func(o *Options) { o.Templates = env.client })
	require.NoError(t, other.svc.ApplyTemplate(ctx, tpl.ID))

	state := other.svc.State()
	require.Len(t, state.Widgets, 2)
	for i, w := range state.Widgets {
		assert.Equal(t, tpl.Components[i].Type, w.Type)
		assert.NotEqual(t, tpl.Components[i].ID, w.ID)
		assert.Equal(t, tpl.Components[i].Data, w.Data)
	}
	assert.True(t, LayoutComplete(state.Layouts, state.Widgets))
	require.NotNil(t, state.BorderSettings)
	assert.Equal(t, "#ff0000", state.BorderSettings.Color)

	list, err := other.svc.ListTemplates(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestApplyMissingTemplate(t *testing.T) {
	env := newTestEnv(t, nil)
	err := env.svc.ApplyTemplate(context.Background(), "missing")
	require.ErrorIs(t, err, ErrTemplateNotFound)
	assert.Equal(t, 1, env.notes.Count(LevelError))
}

const weeklyTemplate = `
version: "1"
name: Weekly Ops
widgets:
  - id: heading
    type: title
    data:
      content: Weekly Ops
  - id: kpi
    type: metric
    data:
      title: Tickets
      worksheetName: Support
      cellAddress: B2
layouts:
  lg:
    - {i: heading, x: 0, y: 0, w: 12, h: 2}
    - {i: kpi, x: 0, y: 2, w: 3, h: 3}
`

func TestDecodeTemplateFile(t *testing.T) {
	doc, err := DecodeTemplateFile(strings.NewReader(weeklyTemplate))
	require.NoError(t, err)
	assert.Equal(t, "Weekly Ops", doc.Name)
	tpl, err := doc.Template()
	require.NoError(t, err)
	require.Len(t, tpl.Components, 2)
	metric, ok := tpl.Components[1].Data.(MetricData)
	require.True(t, ok)
	assert.Equal(t, "Support", metric.WorksheetName)
	assert.Equal(t, 3, tpl.Layouts["lg"][1].W)
}

func TestDecodeTemplateFileRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown field": "version: \"1\"\nname: x\nextra: true\n",
		"bad version":   "version: \"2\"\nname: x\n",
		"missing name":  "version: \"1\"\n",
		"duplicate ids": "version: \"1\"\nname: x\nwidgets:\n  - {id: a, type: text}\n  - {id: a, type: line}\n",
		"two titles":    "version: \"1\"\nname: x\nwidgets:\n  - {id: a, type: title}\n  - {id: b, type: title}\n",
		"empty":         "",
	}
	for name, body := range cases {
		if _, err := DecodeTemplateFile(strings.NewReader(body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestImportTemplateDocumentFromDisk(t *testing.T) {
	env := newTestEnv(t, nil)
	path := filepath.Join(t.TempDir(), "weekly.yaml")
	require.NoError(t, os.WriteFile(path, []byte(weeklyTemplate), 0o600))

	doc, err := ReadTemplateFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, doc.Source)
	tpl, err := env.svc.ImportTemplateDocument(context.Background(), doc)
	require.NoError(t, err)
	assert.NotEmpty(t, tpl.ID)

	doc.Widgets[1].Data["cellAddress"] = "not-a-cell"
	_, err = env.svc.ImportTemplateDocument(context.Background(), doc)
	require.ErrorIs(t, err, ErrInvalidWidgetData)
}
