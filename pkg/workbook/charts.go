package workbook

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/goliatone/go-sheetboard/components/dashboard"
)

const (
	relNamespace = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	drawingRel   = "/drawing"
)

type relationships struct {
	Items []relationship `xml:"Relationship"`
}

type relationship struct {
	ID     string `xml:"Id,attr"`
	Type   string `xml:"Type,attr"`
	Target string `xml:"Target,attr"`
}

type workbookSheets struct {
	Sheets []struct {
		Name string `xml:"name,attr"`
		RID  string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
	} `xml:"sheets>sheet"`
}

type drawingChart struct {
	name string
	rid  string
}

// Charts lists the charts embedded in worksheet in drawing order. Each
// chart's range is the bounding box of its series name, category and value
// references.
func (a *Accessor) Charts(_ context.Context, worksheet string) ([]dashboard.ChartSource, error) {
	a.mu.Lock()
	if err := a.checkSheet(worksheet); err != nil {
		a.mu.Unlock()
		return nil, err
	}
	buf, err := a.file.WriteToBuffer()
	a.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("workbook: serialize: %w", err)
	}
	pkg, err := openPackage(buf.Bytes())
	if err != nil {
		return nil, err
	}

	sheetPart, err := pkg.sheetPart(worksheet)
	if err != nil {
		return nil, err
	}
	sheetRels, err := pkg.rels(sheetPart)
	if err != nil {
		return nil, err
	}
	var out []dashboard.ChartSource
	for _, rel := range sheetRels {
		if !strings.HasSuffix(rel.Type, drawingRel) {
			continue
		}
		drawingPart := resolve(sheetPart, rel.Target)
		charts, err := pkg.drawingCharts(drawingPart)
		if err != nil {
			return nil, err
		}
		drawingRels, err := pkg.rels(drawingPart)
		if err != nil {
			return nil, err
		}
		targets := make(map[string]string, len(drawingRels))
		for _, r := range drawingRels {
			targets[r.ID] = resolve(drawingPart, r.Target)
		}
		for _, c := range charts {
			chartPart, ok := targets[c.rid]
			if !ok {
				continue
			}
			src, err := pkg.chartSource(chartPart, worksheet)
			if err != nil {
				return nil, err
			}
			src.Name = c.name
			out = append(out, src)
		}
	}
	return out, nil
}

type xlsxPackage struct {
	files map[string]*zip.File
}

func openPackage(b []byte) (*xlsxPackage, error) {
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, fmt.Errorf("workbook: open package: %w", err)
	}
	pkg := &xlsxPackage{files: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		pkg.files[f.Name] = f
	}
	return pkg, nil
}

func (p *xlsxPackage) open(name string) (io.ReadCloser, bool, error) {
	f, ok := p.files[name]
	if !ok {
		return nil, false, nil
	}
	rc, err := f.Open()
	if err != nil {
		return nil, true, fmt.Errorf("workbook: open %s: %w", name, err)
	}
	return rc, true, nil
}

func (p *xlsxPackage) decode(name string, v any) (bool, error) {
	rc, ok, err := p.open(name)
	if !ok || err != nil {
		return ok, err
	}
	defer rc.Close()
	if err := xml.NewDecoder(rc).Decode(v); err != nil {
		return true, fmt.Errorf("workbook: decode %s: %w", name, err)
	}
	return true, nil
}

func (p *xlsxPackage) rels(part string) ([]relationship, error) {
	var rels relationships
	if _, err := p.decode(relsPath(part), &rels); err != nil {
		return nil, err
	}
	return rels.Items, nil
}

func (p *xlsxPackage) sheetPart(worksheet string) (string, error) {
	var wb workbookSheets
	if _, err := p.decode("xl/workbook.xml", &wb); err != nil {
		return "", err
	}
	rels, err := p.rels("xl/workbook.xml")
	if err != nil {
		return "", err
	}
	for _, sheet := range wb.Sheets {
		if sheet.Name != worksheet {
			continue
		}
		for _, rel := range rels {
			if rel.ID == sheet.RID {
				return resolve("xl/workbook.xml", rel.Target), nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s", dashboard.ErrWorksheetNotFound, worksheet)
}

// drawingCharts walks a drawing part and returns its chart frames in order.
func (p *xlsxPackage) drawingCharts(part string) ([]drawingChart, error) {
	rc, ok, err := p.open(part)
	if !ok || err != nil {
		return nil, err
	}
	defer rc.Close()
	dec := xml.NewDecoder(rc)
	var (
		out      []drawingChart
		lastName string
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("workbook: decode %s: %w", part, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "cNvPr":
			lastName = attr(start, "", "name")
		case "chart":
			if rid := attr(start, relNamespace, "id"); rid != "" {
				out = append(out, drawingChart{name: lastName, rid: rid})
			}
		}
	}
}

// chartSource collects every formula inside the chart's series and returns
// their bounding range.
func (p *xlsxPackage) chartSource(part, worksheet string) (dashboard.ChartSource, error) {
	rc, ok, err := p.open(part)
	if err != nil {
		return dashboard.ChartSource{}, err
	}
	if !ok {
		return dashboard.ChartSource{}, fmt.Errorf("workbook: missing chart part %s", part)
	}
	defer rc.Close()
	dec := xml.NewDecoder(rc)
	var (
		stack    []string
		formulas []string
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return dashboard.ChartSource{}, fmt.Errorf("workbook: decode %s: %w", part, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name.Local)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 && stack[len(stack)-1] == "f" && inSeries(stack) {
				if f := strings.TrimSpace(string(t)); f != "" {
					formulas = append(formulas, f)
				}
			}
		}
	}
	return boundingSource(worksheet, formulas)
}

func boundingSource(worksheet string, formulas []string) (dashboard.ChartSource, error) {
	if len(formulas) == 0 {
		return dashboard.ChartSource{}, fmt.Errorf("workbook: chart on %s has no data references", worksheet)
	}
	src := dashboard.ChartSource{Worksheet: worksheet}
	var col1, row1, col2, row2 int
	for i, f := range formulas {
		ref, err := dashboard.ParseRange(f)
		if err != nil {
			return dashboard.ChartSource{}, fmt.Errorf("workbook: chart reference %q: %w", f, err)
		}
		c1, r1, c2, r2, err := ref.Coordinates()
		if err != nil {
			return dashboard.ChartSource{}, err
		}
		if i == 0 {
			if ref.Worksheet != "" {
				src.Worksheet = ref.Worksheet
			}
			col1, row1, col2, row2 = c1, r1, c2, r2
			continue
		}
		col1, row1 = min(col1, c1), min(row1, r1)
		col2, row2 = max(col2, c2), max(row2, r2)
	}
	start, err := excelize.CoordinatesToCellName(col1, row1)
	if err != nil {
		return dashboard.ChartSource{}, err
	}
	end, err := excelize.CoordinatesToCellName(col2, row2)
	if err != nil {
		return dashboard.ChartSource{}, err
	}
	src.Range = start + ":" + end
	return src, nil
}

func inSeries(stack []string) bool {
	for _, name := range stack {
		if name == "ser" {
			return true
		}
	}
	return false
}

func attr(start xml.StartElement, space, local string) string {
	for _, a := range start.Attr {
		if a.Name.Local == local && a.Name.Space == space {
			return a.Value
		}
	}
	return ""
}

func relsPath(part string) string {
	return path.Join(path.Dir(part), "_rels", path.Base(part)+".rels")
}

// resolve turns a relationship target into a package path relative to the
// part that owns the relationship.
func resolve(owner, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Join(path.Dir(owner), target)
}
