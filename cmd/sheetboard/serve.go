package main

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gofiber/fiber/v2"
	router "github.com/goliatone/go-router"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/goliatone/go-sheetboard/components/dashboard"
	"github.com/goliatone/go-sheetboard/components/dashboard/gorouter"
	"github.com/goliatone/go-sheetboard/components/dashboard/httpapi"
	"github.com/goliatone/go-sheetboard/components/dashboard/storeapi"
	"github.com/goliatone/go-sheetboard/pkg/config"
)

type serveStoreCmd struct{}

func (cmd *serveStoreCmd) Run(a *app) error {
	fxApp := fx.New(
		fx.WithLogger(func() fxevent.Logger { return &fxevent.ZapLogger{Logger: a.logger} }),
		fx.Supply(a.logger),
		fx.Supply(storeapi.Config{
			Addr:          a.cfg.Server.StoreAddr,
			APIKey:        a.cfg.Store.APIKey,
			MongoURI:      a.cfg.Mongo.URI,
			MongoDatabase: a.cfg.Mongo.Database,
		}),
		storeapi.Module,
	)
	return runUntilDone(a.ctx, fxApp)
}

type serveEditorCmd struct {
	Dashboard string `help:"Dashboard id to open on start."`
	Create    string `help:"Create and open a dashboard with this title on start."`
	Router    string `help:"HTTP stack serving the editor API." enum:"mux,fiber" default:"mux"`
}

func (cmd *serveEditorCmd) Run(a *app) error {
	fxApp := fx.New(
		fx.WithLogger(func() fxevent.Logger { return &fxevent.ZapLogger{Logger: a.logger} }),
		fx.Supply(a.logger, a.cfg, openRequest{dashboardID: cmd.Dashboard, createTitle: cmd.Create}),
		fx.Provide(
			provideWorkbook,
			provideBackend,
			dashboard.NewBroadcastHook,
			provideService,
			func(svc *dashboard.Service, hook *dashboard.BroadcastHook, logger *zap.Logger) *httpapi.Handlers {
				return httpapi.NewHandlers(svc, dashboard.ZapTelemetry{Logger: logger}, hook, logger)
			},
		),
		fx.Invoke(openOnStart, scheduleRefresh, editorServer(cmd.Router)),
	)
	return runUntilDone(a.ctx, fxApp)
}

type openRequest struct {
	dashboardID string
	createTitle string
}

// runUntilDone starts app and stops it when ctx is cancelled.
func runUntilDone(ctx context.Context, app *fx.App) error {
	if err := app.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancel()
	return app.Stop(stopCtx)
}

func provideWorkbook(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (workbookDeps, error) {
	deps, err := openWorkbook(cfg, logger)
	if err != nil {
		return workbookDeps{}, err
	}
	if deps.file != nil {
		lc.Append(fx.Hook{OnStop: func(context.Context) error {
			return errors.Join(deps.file.Save(), deps.file.Close())
		}})
	}
	return deps, nil
}

func provideBackend(cfg config.Config, logger *zap.Logger) (storeDeps, error) {
	return openBackend(cfg, logger, true)
}

func provideService(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger, wb workbookDeps, backend storeDeps, hook *dashboard.BroadcastHook) *dashboard.Service {
	svc := newService(cfg, logger, wb, backend, hook)
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error {
		err := svc.Flush(ctx)
		svc.Close()
		return err
	}})
	return svc
}

func openOnStart(lc fx.Lifecycle, svc *dashboard.Service, cfg config.Config, req openRequest, logger *zap.Logger) {
	lc.Append(fx.Hook{OnStart: func(ctx context.Context) error {
		if dir := cfg.Dashboard.TemplatesDir; dir != "" {
			seeded, err := dashboard.SeedTemplates(ctx, svc, dir)
			if err != nil {
				logger.Warn("template seeding failed", zap.String("dir", dir), zap.Error(err))
			} else {
				logger.Info("templates seeded", zap.Int("count", len(seeded)))
			}
		}
		switch {
		case req.dashboardID != "":
			_, err := svc.LoadDashboard(ctx, req.dashboardID)
			return err
		case req.createTitle != "":
			_, err := svc.CreateDashboard(ctx, req.createTitle)
			return err
		}
		return nil
	}})
}

func scheduleRefresh(lc fx.Lifecycle, svc *dashboard.Service, cfg config.Config, logger *zap.Logger) error {
	spec := cfg.Dashboard.RefreshSchedule
	if spec == "" {
		return nil
	}
	scheduler := dashboard.NewRefreshScheduler(svc, logger)
	if _, err := scheduler.Schedule(spec); err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			scheduler.Start()
			logger.Info("refresh scheduled", zap.String("spec", spec))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			select {
			case <-scheduler.Stop().Done():
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
	return nil
}

func editorServer(stack string) any {
	if stack == "fiber" {
		return startFiberEditorServer
	}
	return startEditorServer
}

func startEditorServer(lc fx.Lifecycle, handlers *httpapi.Handlers, cfg config.Config, logger *zap.Logger) {
	srv := &http.Server{Addr: cfg.Server.EditorAddr, Handler: handlers.Routes()}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			logger.Info("editor listening", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("editor server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

func startFiberEditorServer(lc fx.Lifecycle, handlers *httpapi.Handlers, svc *dashboard.Service, hook *dashboard.BroadcastHook, cfg config.Config, logger *zap.Logger) error {
	server := router.NewFiberAdapter()
	if err := gorouter.Register(gorouter.Config[*fiber.App]{
		Router:    server.Router(),
		Handlers:  handlers,
		Service:   svc,
		Broadcast: hook,
		Logger:    logger,
	}); err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			logger.Info("editor listening", zap.String("addr", cfg.Server.EditorAddr), zap.String("router", "fiber"))
			go func() {
				if err := server.Serve(cfg.Server.EditorAddr); err != nil {
					logger.Error("editor server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
	return nil
}
