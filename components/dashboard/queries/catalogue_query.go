package queries

import (
	"bytes"
	"context"
	"io"

	gocommand "github.com/goliatone/go-command"

	"github.com/goliatone/go-sheetboard/components/dashboard"
)

// VersionsInput lists the saved versions of the open dashboard.
type VersionsInput struct{}

type versionService interface {
	Versions() []dashboard.DashboardVersion
}

// VersionsQuery lists saved versions, newest first.
type VersionsQuery struct {
	service versionService
}

// NewVersionsQuery builds the query.
func NewVersionsQuery(service versionService) *VersionsQuery {
	return &VersionsQuery{service: service}
}

var _ gocommand.Querier[VersionsInput, []dashboard.DashboardVersion] = (*VersionsQuery)(nil)

func (q *VersionsQuery) Query(context.Context, VersionsInput) ([]dashboard.DashboardVersion, error) {
	return q.service.Versions(), nil
}

// CatalogueInput selects the locale for widget names.
type CatalogueInput struct {
	Locale string `json:"locale"`
}

type catalogueService interface {
	Registry() *dashboard.Registry
}

// CatalogueQuery lists the widget types offered by the add-widget menu.
type CatalogueQuery struct {
	service catalogueService
}

// NewCatalogueQuery builds the query.
func NewCatalogueQuery(service catalogueService) *CatalogueQuery {
	return &CatalogueQuery{service: service}
}

var _ gocommand.Querier[CatalogueInput, []dashboard.CatalogueEntry] = (*CatalogueQuery)(nil)

func (q *CatalogueQuery) Query(_ context.Context, input CatalogueInput) ([]dashboard.CatalogueEntry, error) {
	registry := q.service.Registry()
	if registry == nil {
		registry = dashboard.NewRegistry()
	}
	return registry.Catalogue(input.Locale), nil
}

// ExportInput requests the export file of the open dashboard.
type ExportInput struct{}

// ExportFile is a downloadable export.
type ExportFile struct {
	FileName string
	Body     []byte
}

type exportService interface {
	ExportWidgets(w io.Writer) error
	ExportFileName() string
}

// ExportQuery renders the export file.
type ExportQuery struct {
	service exportService
}

// NewExportQuery builds the query.
func NewExportQuery(service exportService) *ExportQuery {
	return &ExportQuery{service: service}
}

var _ gocommand.Querier[ExportInput, ExportFile] = (*ExportQuery)(nil)

func (q *ExportQuery) Query(context.Context, ExportInput) (ExportFile, error) {
	var buf bytes.Buffer
	if err := q.service.ExportWidgets(&buf); err != nil {
		return ExportFile{}, err
	}
	return ExportFile{FileName: q.service.ExportFileName(), Body: buf.Bytes()}, nil
}
