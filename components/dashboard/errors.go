package dashboard

import "errors"

var (
	ErrTitleExists         = errors.New("dashboard: a title widget already exists")
	ErrWidgetNotFound      = errors.New("dashboard: widget not found")
	ErrWidgetExists        = errors.New("dashboard: widget id already in use")
	ErrInvalidWidgetData   = errors.New("dashboard: invalid widget data")
	ErrTitleRemoval        = errors.New("dashboard: the title widget cannot be removed")
	ErrWorkbookMismatch    = errors.New("dashboard: open workbook does not match the dashboard")
	ErrVersionNotFound     = errors.New("dashboard: version not found")
	ErrDashboardNotFound   = errors.New("dashboard: dashboard not found")
	ErrTemplateNotFound    = errors.New("dashboard: template not found")
	ErrInvalidCellAddress  = errors.New("dashboard: invalid cell address")
	ErrInvalidRange        = errors.New("dashboard: invalid range address")
	ErrWorksheetNotFound   = errors.New("dashboard: worksheet not found")
	ErrNoDashboard         = errors.New("dashboard: no dashboard loaded")
	ErrNoPendingWidget     = errors.New("dashboard: no widget pending details")
	ErrChartsUnsupported   = errors.New("dashboard: spreadsheet accessor cannot enumerate charts")
	ErrAccessorUnavailable = errors.New("dashboard: spreadsheet accessor not configured")
	ErrClientUnavailable   = errors.New("dashboard: dashboard store client not configured")
	ErrInvalidEventFilter  = errors.New("dashboard: invalid event filter")
)
