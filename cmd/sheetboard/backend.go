package main

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/goliatone/go-sheetboard/components/dashboard"
	"github.com/goliatone/go-sheetboard/pkg/config"
	"github.com/goliatone/go-sheetboard/pkg/remote"
	"github.com/goliatone/go-sheetboard/pkg/workbook"
)

var errStoreURLRequired = errors.New("store url is required (set store.url or SHEETBOARD_STORE_URL)")

type workbookDeps struct {
	file *workbook.Accessor
}

// accessor returns nil when no workbook is configured so the service sees
// an absent capability rather than a typed nil.
func (w workbookDeps) accessor() dashboard.SpreadsheetAccessor {
	if w.file == nil {
		return nil
	}
	return w.file
}

type storeDeps struct {
	dashboards dashboard.DashboardStoreClient
	templates  dashboard.TemplateStore
}

func openWorkbook(cfg config.Config, logger *zap.Logger) (workbookDeps, error) {
	if cfg.Workbook.Path == "" {
		logger.Info("no workbook configured; spreadsheet features disabled")
		return workbookDeps{}, nil
	}
	acc, err := workbook.Open(cfg.Workbook.Path, workbook.Options{Logger: logger})
	if err != nil {
		return workbookDeps{}, err
	}
	return workbookDeps{file: acc}, nil
}

// openBackend uses the remote store when configured. allowMemory lets a
// long-running process fall back to an in-process store.
func openBackend(cfg config.Config, logger *zap.Logger, allowMemory bool) (storeDeps, error) {
	if cfg.Store.URL == "" {
		if !allowMemory {
			return storeDeps{}, errStoreURLRequired
		}
		logger.Warn("no store url configured; dashboards are kept in memory")
		mem := dashboard.NewInMemoryDashboardStore()
		return storeDeps{dashboards: mem, templates: mem}, nil
	}
	client, err := remote.NewClient(remote.Config{BaseURL: cfg.Store.URL, APIKey: cfg.Store.APIKey})
	if err != nil {
		return storeDeps{}, err
	}
	return storeDeps{dashboards: client, templates: client}, nil
}

func newService(cfg config.Config, logger *zap.Logger, wb workbookDeps, backend storeDeps, hook dashboard.RefreshHook) *dashboard.Service {
	return dashboard.NewService(dashboard.Options{
		Client:        backend.dashboards,
		Templates:     backend.templates,
		Accessor:      wb.accessor(),
		Notifier:      logNotifier(logger),
		Telemetry:     dashboard.ZapTelemetry{Logger: logger.Named("telemetry")},
		Logger:        logger,
		RefreshHook:   hook,
		AutosaveDelay: cfg.Dashboard.AutosaveDelay,
		MaxHistory:    cfg.Dashboard.HistoryDepth,

		SkipSchemaValidation: cfg.Dashboard.SkipSchemas,
	})
}

func logNotifier(logger *zap.Logger) dashboard.Notifier {
	logger = logger.Named("notify")
	return dashboard.NotifierFunc(func(_ context.Context, n dashboard.Notification) {
		switch n.Level {
		case dashboard.LevelError:
			logger.Error(n.Message)
		case dashboard.LevelWarning:
			logger.Warn(n.Message)
		default:
			logger.Info(n.Message)
		}
	})
}

// session is a loaded dashboard for one-shot commands.
type session struct {
	svc *dashboard.Service
	wb  workbookDeps
}

func openSession(a *app, dashboardID string, needWorkbook bool) (*session, error) {
	backend, err := openBackend(a.cfg, a.logger, false)
	if err != nil {
		return nil, err
	}
	wb, err := openWorkbook(a.cfg, a.logger)
	if err != nil {
		return nil, err
	}
	if needWorkbook && wb.file == nil {
		return nil, errors.New("workbook path is required (set workbook.path or SHEETBOARD_WORKBOOK)")
	}
	svc := newService(a.cfg, a.logger, wb, backend, nil)
	s := &session{svc: svc, wb: wb}
	if dashboardID != "" {
		if _, err := svc.LoadDashboard(a.ctx, dashboardID); err != nil {
			_ = s.close(a.ctx, false)
			return nil, err
		}
	}
	return s, nil
}

// close flushes pending saves and releases the workbook, saving it when
// saveWorkbook is set.
func (s *session) close(ctx context.Context, saveWorkbook bool) error {
	errs := []error{s.svc.Flush(ctx)}
	s.svc.Close()
	if s.wb.file != nil {
		if saveWorkbook {
			errs = append(errs, s.wb.file.Save())
		}
		errs = append(errs, s.wb.file.Close())
	}
	return errors.Join(errs...)
}
