package gorouter

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	router "github.com/goliatone/go-router"
	"go.uber.org/zap"

	"github.com/goliatone/go-sheetboard/components/dashboard"
	"github.com/goliatone/go-sheetboard/components/dashboard/commands"
	"github.com/goliatone/go-sheetboard/components/dashboard/httpapi"
	"github.com/goliatone/go-sheetboard/components/dashboard/presenter"
	"github.com/goliatone/go-sheetboard/components/dashboard/queries"
)

// Config wires the editor API onto a go-router router.
type Config[T any] struct {
	Router   router.Router[T]
	Handlers *httpapi.Handlers
	// Service backs the presenter channel. The route is skipped when nil.
	Service *dashboard.Service
	// Broadcast defaults to Handlers.Events.
	Broadcast *dashboard.BroadcastHook
	BasePath  string
	Routes    RouteConfig
	Logger    *zap.Logger
}

// RouteConfig customizes the relative paths of the editor endpoints.
type RouteConfig struct {
	State          string
	Widgets        string
	WidgetID       string
	CopyWidget     string
	Layouts        string
	Settings       string
	History        string
	Refresh        string
	Versions       string
	RestoreVersion string
	Catalogue      string
	Export         string
	Import         string
	Events         string
	EventsSocket   string
	Presenter      string
}

// Register mounts the editor API on a go-router router: JSON endpoints for
// widgets, history, refresh and versions, a change backlog, and websockets
// for change events and the presenter channel.
func Register[T any](cfg Config[T]) error {
	if cfg.Router == nil {
		return errors.New("gorouter: router is required")
	}
	if cfg.Handlers == nil {
		return errors.New("gorouter: handlers are required")
	}
	routes := defaultRouteConfig(cfg.Routes)
	base := cfg.BasePath
	if base == "" {
		base = "/api"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("gorouter")
	broadcast := cfg.Broadcast
	if broadcast == nil {
		broadcast = cfg.Handlers.Events
	}

	group := cfg.Router.Group(base)
	registerWidgets(group, cfg.Handlers, logger, routes)
	registerDashboard(group, cfg.Handlers, logger, routes)
	if broadcast != nil {
		registerEvents(group, broadcast, routes)
	}
	if cfg.Service != nil {
		registerPresenter(group, cfg.Service, logger, routes.Presenter)
	}
	return nil
}

func registerWidgets[T any](r router.Router[T], h *httpapi.Handlers, logger *zap.Logger, routes RouteConfig) {
	r.Post(routes.Widgets, router.WrapHandler(func(ctx router.Context) error {
		if h.Add == nil {
			return notImplemented(ctx)
		}
		var payload commands.AddWidgetInput
		if err := json.Unmarshal(ctx.Body(), &payload); err != nil {
			return respondError(ctx, logger, http.StatusBadRequest, err)
		}
		if err := h.Add.Execute(ctx.Context(), payload); err != nil {
			return fail(ctx, logger, err)
		}
		return respondState(ctx, h, logger, http.StatusCreated)
	}))

	r.Get(routes.WidgetID, router.WrapHandler(func(ctx router.Context) error {
		if h.Widget == nil {
			return notImplemented(ctx)
		}
		widget, err := h.Widget.Query(ctx.Context(), queries.WidgetInput{WidgetID: ctx.Param("id")})
		if err != nil {
			return fail(ctx, logger, err)
		}
		return ctx.JSON(http.StatusOK, widget)
	}))

	r.Patch(routes.WidgetID, router.WrapHandler(func(ctx router.Context) error {
		if h.Update == nil {
			return notImplemented(ctx)
		}
		var payload commands.UpdateWidgetInput
		if err := json.Unmarshal(ctx.Body(), &payload); err != nil {
			return respondError(ctx, logger, http.StatusBadRequest, err)
		}
		payload.WidgetID = ctx.Param("id")
		if err := h.Update.Execute(ctx.Context(), payload); err != nil {
			return fail(ctx, logger, err)
		}
		return respondState(ctx, h, logger, http.StatusOK)
	}))

	r.Delete(routes.WidgetID, router.WrapHandler(func(ctx router.Context) error {
		if h.Remove == nil {
			return notImplemented(ctx)
		}
		id := ctx.Param("id")
		if id == "" {
			return respondError(ctx, logger, http.StatusBadRequest, errors.New("widget id is required"))
		}
		allowTitle, _ := strconv.ParseBool(ctx.Query("allow_title"))
		if err := h.Remove.Execute(ctx.Context(), commands.RemoveWidgetInput{WidgetID: id, AllowTitle: allowTitle}); err != nil {
			return fail(ctx, logger, err)
		}
		return respondState(ctx, h, logger, http.StatusOK)
	}))

	r.Post(routes.CopyWidget, router.WrapHandler(func(ctx router.Context) error {
		if h.Copy == nil {
			return notImplemented(ctx)
		}
		if err := h.Copy.Execute(ctx.Context(), commands.CopyWidgetInput{WidgetID: ctx.Param("id")}); err != nil {
			return fail(ctx, logger, err)
		}
		return respondState(ctx, h, logger, http.StatusCreated)
	}))
}

func registerDashboard[T any](r router.Router[T], h *httpapi.Handlers, logger *zap.Logger, routes RouteConfig) {
	r.Get(routes.State, router.WrapHandler(func(ctx router.Context) error {
		return respondState(ctx, h, logger, http.StatusOK)
	}))

	r.Put(routes.Layouts, router.WrapHandler(func(ctx router.Context) error {
		if h.Layouts == nil {
			return notImplemented(ctx)
		}
		var payload commands.UpdateLayoutsInput
		if err := json.Unmarshal(ctx.Body(), &payload); err != nil {
			return respondError(ctx, logger, http.StatusBadRequest, err)
		}
		if err := h.Layouts.Execute(ctx.Context(), payload); err != nil {
			return fail(ctx, logger, err)
		}
		return respondState(ctx, h, logger, http.StatusOK)
	}))

	r.Patch(routes.Settings, router.WrapHandler(func(ctx router.Context) error {
		if h.Settings == nil {
			return notImplemented(ctx)
		}
		var payload commands.SettingsInput
		if err := json.Unmarshal(ctx.Body(), &payload); err != nil {
			return respondError(ctx, logger, http.StatusBadRequest, err)
		}
		if err := h.Settings.Execute(ctx.Context(), payload); err != nil {
			return fail(ctx, logger, err)
		}
		return respondState(ctx, h, logger, http.StatusOK)
	}))

	r.Post(routes.History, router.WrapHandler(func(ctx router.Context) error {
		if h.History == nil {
			return notImplemented(ctx)
		}
		input := commands.HistoryInput{Action: commands.HistoryAction(ctx.Param("action"))}
		if err := h.History.Execute(ctx.Context(), input); err != nil {
			return fail(ctx, logger, err)
		}
		return respondState(ctx, h, logger, http.StatusOK)
	}))

	r.Post(routes.Refresh, router.WrapHandler(func(ctx router.Context) error {
		if h.Refresh == nil {
			return notImplemented(ctx)
		}
		input := commands.RefreshInput{Scope: commands.RefreshScope(ctx.Query("scope"))}
		if err := h.Refresh.Execute(ctx.Context(), input); err != nil {
			return fail(ctx, logger, err)
		}
		return ctx.JSON(http.StatusAccepted, map[string]string{"status": "refreshed"})
	}))

	r.Get(routes.Versions, router.WrapHandler(func(ctx router.Context) error {
		if h.Versions == nil {
			return notImplemented(ctx)
		}
		versions, err := h.Versions.Query(ctx.Context(), queries.VersionsInput{})
		if err != nil {
			return fail(ctx, logger, err)
		}
		if versions == nil {
			versions = []dashboard.DashboardVersion{}
		}
		return ctx.JSON(http.StatusOK, versions)
	}))

	r.Post(routes.Versions, router.WrapHandler(func(ctx router.Context) error {
		if h.SaveVersion == nil {
			return notImplemented(ctx)
		}
		if err := h.SaveVersion.Execute(ctx.Context(), commands.SaveVersionInput{}); err != nil {
			return fail(ctx, logger, err)
		}
		return ctx.JSON(http.StatusCreated, map[string]string{"status": "saved"})
	}))

	r.Post(routes.RestoreVersion, router.WrapHandler(func(ctx router.Context) error {
		if h.RestoreVersion == nil {
			return notImplemented(ctx)
		}
		input := commands.RestoreVersionInput{VersionID: ctx.Param("id")}
		if err := h.RestoreVersion.Execute(ctx.Context(), input); err != nil {
			return fail(ctx, logger, err)
		}
		return respondState(ctx, h, logger, http.StatusOK)
	}))

	r.Get(routes.Catalogue, router.WrapHandler(func(ctx router.Context) error {
		if h.Catalogue == nil {
			return notImplemented(ctx)
		}
		entries, err := h.Catalogue.Query(ctx.Context(), queries.CatalogueInput{Locale: inferLocale(ctx)})
		if err != nil {
			return fail(ctx, logger, err)
		}
		return ctx.JSON(http.StatusOK, entries)
	}))

	r.Get(routes.Export, router.WrapHandler(func(ctx router.Context) error {
		if h.Export == nil {
			return notImplemented(ctx)
		}
		file, err := h.Export.Query(ctx.Context(), queries.ExportInput{})
		if err != nil {
			return fail(ctx, logger, err)
		}
		ctx.SetHeader("Content-Type", "application/json")
		ctx.SetHeader("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.FileName))
		return ctx.Send(file.Body)
	}))

	r.Post(routes.Import, router.WrapHandler(func(ctx router.Context) error {
		if h.Import == nil {
			return notImplemented(ctx)
		}
		if err := h.Import.Execute(ctx.Context(), commands.ImportWidgetsInput{Document: ctx.Body()}); err != nil {
			return fail(ctx, logger, err)
		}
		return respondState(ctx, h, logger, http.StatusOK)
	}))
}

// registerEvents serves the buffered change backlog as JSON for polling
// clients and streams live events over a websocket.
func registerEvents[T any](r router.Router[T], hook *dashboard.BroadcastHook, routes RouteConfig) {
	r.Get(routes.Events, router.WrapHandler(func(ctx router.Context) error {
		filter, err := filterFromContext(ctx)
		if err != nil {
			return respondError(ctx, nil, http.StatusBadRequest, err)
		}
		events := hook.Backlog(filter)
		if events == nil {
			events = []dashboard.ChangeEvent{}
		}
		return ctx.JSON(http.StatusOK, events)
	}))

	r.WebSocket(routes.EventsSocket, router.DefaultWebSocketConfig(), func(ws router.WebSocketContext) error {
		filter, err := filterFromContext(ws)
		if err != nil {
			return ws.Close()
		}
		events, cancel := hook.Subscribe(filter)
		defer cancel()
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return nil
				}
				if err := ws.WriteJSON(event); err != nil {
					return err
				}
			case <-ws.Context().Done():
				return ws.Close()
			}
		}
	})
}

func registerPresenter[T any](r router.Router[T], svc *dashboard.Service, logger *zap.Logger, path string) {
	r.WebSocket(path, router.DefaultWebSocketConfig(), func(ws router.WebSocketContext) error {
		host := presenter.NewHost(svc, presenter.NewWebSocketTransport(ws), presenter.HostOptions{Logger: logger})
		if err := host.Run(ws.Context()); err != nil && !errors.Is(err, presenter.ErrClosed) {
			logger.Warn("presenter channel ended", zap.Error(err))
		}
		return nil
	})
}

func filterFromContext(ctx router.Context) (dashboard.EventFilter, error) {
	after := ctx.Header("Last-Event-ID")
	if after == "" {
		after = ctx.Query("after")
	}
	var origins []string
	if origin := ctx.Query("origin"); origin != "" {
		origins = []string{origin}
	}
	return dashboard.ParseEventFilter(ctx.Query("dashboard"), origins, after)
}

func respondState(ctx router.Context, h *httpapi.Handlers, logger *zap.Logger, status int) error {
	if h.State == nil {
		return ctx.JSON(status, map[string]string{"status": http.StatusText(status)})
	}
	view, err := h.State.Query(ctx.Context(), queries.StateInput{})
	if err != nil {
		return fail(ctx, logger, err)
	}
	return ctx.JSON(status, view)
}

func fail(ctx router.Context, logger *zap.Logger, err error) error {
	return respondError(ctx, logger, httpapi.StatusFor(err), err)
}

func respondError(ctx router.Context, logger *zap.Logger, status int, err error) error {
	if status >= http.StatusInternalServerError && logger != nil {
		logger.Error("dashboard api request failed", zap.Error(err))
	}
	return ctx.JSON(status, map[string]string{"error": err.Error()})
}

func notImplemented(ctx router.Context) error {
	return ctx.JSON(http.StatusNotImplemented, map[string]string{"error": "not implemented"})
}

func inferLocale(ctx router.Context) string {
	if locale := ctx.Query("locale"); locale != "" {
		return httpapi.PrimaryLanguage(locale)
	}
	return httpapi.PrimaryLanguage(ctx.Header("Accept-Language"))
}

func defaultRouteConfig(routes RouteConfig) RouteConfig {
	if routes.State == "" {
		routes.State = "/state"
	}
	if routes.Widgets == "" {
		routes.Widgets = "/widgets"
	}
	if routes.WidgetID == "" {
		routes.WidgetID = "/widgets/:id"
	}
	if routes.CopyWidget == "" {
		routes.CopyWidget = "/widgets/:id/copy"
	}
	if routes.Layouts == "" {
		routes.Layouts = "/layouts"
	}
	if routes.Settings == "" {
		routes.Settings = "/settings"
	}
	if routes.History == "" {
		routes.History = "/history/:action"
	}
	if routes.Refresh == "" {
		routes.Refresh = "/refresh"
	}
	if routes.Versions == "" {
		routes.Versions = "/versions"
	}
	if routes.RestoreVersion == "" {
		routes.RestoreVersion = "/versions/:id/restore"
	}
	if routes.Catalogue == "" {
		routes.Catalogue = "/catalogue"
	}
	if routes.Export == "" {
		routes.Export = "/export"
	}
	if routes.Import == "" {
		routes.Import = "/import"
	}
	if routes.Events == "" {
		routes.Events = "/events"
	}
	if routes.EventsSocket == "" {
		routes.EventsSocket = "/events/ws"
	}
	if routes.Presenter == "" {
		routes.Presenter = "/presenter"
	}
	return routes
}
