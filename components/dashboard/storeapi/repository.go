// Package storeapi serves dashboards and templates over REST for the
// remote store client.
package storeapi

import (
	"github.com/goliatone/go-sheetboard/components/dashboard"
)

// Repository persists dashboards and templates. Lookups of unknown ids fail
// with dashboard.ErrDashboardNotFound or dashboard.ErrTemplateNotFound.
type Repository interface {
	dashboard.DashboardStoreClient
	dashboard.TemplateStore
}

// NewMemoryRepository keeps everything in process memory.
func NewMemoryRepository() Repository {
	return dashboard.NewInMemoryDashboardStore()
}
