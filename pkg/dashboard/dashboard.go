// Package dashboard is the public entry point to the sheetboard engine.
package dashboard

import (
	core "github.com/goliatone/go-sheetboard/components/dashboard"
)

// Service exposes the underlying components/dashboard.Service type.
type Service = core.Service

// Options re-export for convenience.
type Options = core.Options

type (
	State                = core.State
	Widget               = core.Widget
	WidgetType           = core.WidgetType
	DashboardItem        = core.DashboardItem
	DashboardVersion     = core.DashboardVersion
	Template             = core.Template
	ChangeEvent          = core.ChangeEvent
	DashboardStoreClient = core.DashboardStoreClient
	TemplateStore        = core.TemplateStore
	SpreadsheetAccessor  = core.SpreadsheetAccessor
)

// NewService proxies to the internal constructor.
func NewService(opts Options) *Service {
	return core.NewService(opts)
}

// NewInMemoryStore returns a process-local dashboard and template store.
func NewInMemoryStore() *core.InMemoryDashboardStore {
	return core.NewInMemoryDashboardStore()
}
