package dashboard

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// WorkbookIDProperty is the document custom property holding the workbook id.
const WorkbookIDProperty = "dashboardWorkbookId"

// EnsureWorkbookID returns the open document's workbook id, generating and
// storing one on first use.
func (s *Service) EnsureWorkbookID(ctx context.Context) (string, error) {
	accessor, err := s.accessor()
	if err != nil {
		return "", err
	}
	id, ok, err := accessor.CustomProperty(ctx, WorkbookIDProperty)
	if err != nil {
		return "", fmt.Errorf("dashboard: read workbook id: %w", err)
	}
	if ok && id != "" {
		return id, nil
	}
	id = uuid.NewString()
	if err := accessor.SetCustomProperty(ctx, WorkbookIDProperty, id); err != nil {
		return "", fmt.Errorf("dashboard: store workbook id: %w", err)
	}
	s.logger.Info("workbook id generated", zapWorkbook(id))
	return id, nil
}

// CurrentWorkbookID reads the open document's workbook id without creating one.
func (s *Service) CurrentWorkbookID(ctx context.Context) (string, error) {
	accessor, err := s.accessor()
	if err != nil {
		return "", err
	}
	id, _, err := accessor.CustomProperty(ctx, WorkbookIDProperty)
	if err != nil {
		return "", fmt.Errorf("dashboard: read workbook id: %w", err)
	}
	return id, nil
}

// CheckWorkbookBinding fails with ErrWorkbookMismatch unless the open
// document is the one the loaded dashboard is bound to.
func (s *Service) CheckWorkbookBinding(ctx context.Context) error {
	bound := s.WorkbookID()
	current, err := s.CurrentWorkbookID(ctx)
	if err != nil {
		return err
	}
	if bound == "" || current != bound {
		return fmt.Errorf("%w: open %q, dashboard %q", ErrWorkbookMismatch, current, bound)
	}
	return nil
}

func (s *Service) accessor() (SpreadsheetAccessor, error) {
	if s.opts.Accessor == nil {
		return nil, ErrAccessorUnavailable
	}
	return s.opts.Accessor, nil
}
