package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	gocommand "github.com/goliatone/go-command"
	"go.uber.org/zap"

	"github.com/goliatone/go-sheetboard/components/dashboard"
	"github.com/goliatone/go-sheetboard/components/dashboard/commands"
	"github.com/goliatone/go-sheetboard/components/dashboard/queries"
)

const maxImportBytes = 8 << 20

// Handlers exposes HTTP endpoints backed by shared commands and queries.
// Nil fields answer 501.
type Handlers struct {
	Add            gocommand.Commander[commands.AddWidgetInput]
	Update         gocommand.Commander[commands.UpdateWidgetInput]
	Remove         gocommand.Commander[commands.RemoveWidgetInput]
	Copy           gocommand.Commander[commands.CopyWidgetInput]
	Layouts        gocommand.Commander[commands.UpdateLayoutsInput]
	Settings       gocommand.Commander[commands.SettingsInput]
	History        gocommand.Commander[commands.HistoryInput]
	Refresh        gocommand.Commander[commands.RefreshInput]
	SaveVersion    gocommand.Commander[commands.SaveVersionInput]
	RestoreVersion gocommand.Commander[commands.RestoreVersionInput]
	Import         gocommand.Commander[commands.ImportWidgetsInput]

	State     gocommand.Querier[queries.StateInput, queries.StateView]
	Widget    gocommand.Querier[queries.WidgetInput, dashboard.Widget]
	Versions  gocommand.Querier[queries.VersionsInput, []dashboard.DashboardVersion]
	Catalogue gocommand.Querier[queries.CatalogueInput, []dashboard.CatalogueEntry]
	Export    gocommand.Querier[queries.ExportInput, queries.ExportFile]

	// Events streams change events over SSE.
	Events *dashboard.BroadcastHook
	// Presenter serves the presenter channel websocket.
	Presenter http.Handler

	Logger *zap.Logger
}

// NewHandlers wires every command and query to svc.
func NewHandlers(svc *dashboard.Service, telemetry commands.Telemetry, events *dashboard.BroadcastHook, logger *zap.Logger) *Handlers {
	return &Handlers{
		Add:            commands.NewAddWidgetCommand(svc, telemetry),
		Update:         commands.NewUpdateWidgetCommand(svc, telemetry),
		Remove:         commands.NewRemoveWidgetCommand(svc, telemetry),
		Copy:           commands.NewCopyWidgetCommand(svc, telemetry),
		Layouts:        commands.NewUpdateLayoutsCommand(svc, telemetry),
		Settings:       commands.NewSettingsCommand(svc, telemetry),
		History:        commands.NewHistoryCommand(svc, telemetry),
		Refresh:        commands.NewRefreshCommand(svc, telemetry),
		SaveVersion:    commands.NewSaveVersionCommand(svc, telemetry),
		RestoreVersion: commands.NewRestoreVersionCommand(svc, telemetry),
		Import:         commands.NewImportWidgetsCommand(svc, telemetry),
		State:          queries.NewStateQuery(svc),
		Widget:         queries.NewWidgetQuery(svc),
		Versions:       queries.NewVersionsQuery(svc),
		Catalogue:      queries.NewCatalogueQuery(svc),
		Export:         queries.NewExportQuery(svc),
		Events:         events,
		Presenter:      PresenterHandler(svc, logger),
		Logger:         logger,
	}
}

// Routes registers the API on a new mux.
func (h *Handlers) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /state", h.HandleState)
	mux.HandleFunc("POST /widgets", h.HandleAddWidget)
	mux.HandleFunc("GET /widgets/{id}", h.HandleGetWidget)
	mux.HandleFunc("PATCH /widgets/{id}", h.HandleUpdateWidget)
	mux.HandleFunc("DELETE /widgets/{id}", h.HandleRemoveWidget)
	mux.HandleFunc("POST /widgets/{id}/copy", h.HandleCopyWidget)
	mux.HandleFunc("PUT /layouts", h.HandleUpdateLayouts)
	mux.HandleFunc("PATCH /settings", h.HandleSettings)
	mux.HandleFunc("POST /history/{action}", h.HandleHistory)
	mux.HandleFunc("POST /refresh", h.HandleRefresh)
	mux.HandleFunc("GET /versions", h.HandleListVersions)
	mux.HandleFunc("POST /versions", h.HandleSaveVersion)
	mux.HandleFunc("POST /versions/{id}/restore", h.HandleRestoreVersion)
	mux.HandleFunc("GET /catalogue", h.HandleCatalogue)
	mux.HandleFunc("GET /export", h.HandleExport)
	mux.HandleFunc("POST /import", h.HandleImport)
	mux.HandleFunc("GET /events", h.HandleEvents)
	mux.HandleFunc("GET /events/ws", h.HandleEventsWebSocket)
	mux.HandleFunc("GET /presenter", h.HandlePresenter)
	return mux
}

func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request) {
	if h.State == nil {
		notImplemented(w)
		return
	}
	view, err := h.State.Query(r.Context(), queries.StateInput{})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handlers) HandleAddWidget(w http.ResponseWriter, r *http.Request) {
	if h.Add == nil {
		notImplemented(w)
		return
	}
	var payload commands.AddWidgetInput
	if !decode(w, r, &payload) {
		return
	}
	if err := h.Add.Execute(r.Context(), payload); err != nil {
		h.fail(w, err)
		return
	}
	h.respondState(w, r, http.StatusCreated)
}

func (h *Handlers) HandleGetWidget(w http.ResponseWriter, r *http.Request) {
	if h.Widget == nil {
		notImplemented(w)
		return
	}
	widget, err := h.Widget.Query(r.Context(), queries.WidgetInput{WidgetID: r.PathValue("id")})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, widget)
}

func (h *Handlers) HandleUpdateWidget(w http.ResponseWriter, r *http.Request) {
	if h.Update == nil {
		notImplemented(w)
		return
	}
	var payload commands.UpdateWidgetInput
	if !decode(w, r, &payload) {
		return
	}
	payload.WidgetID = r.PathValue("id")
	if err := h.Update.Execute(r.Context(), payload); err != nil {
		h.fail(w, err)
		return
	}
	h.respondState(w, r, http.StatusOK)
}

func (h *Handlers) HandleRemoveWidget(w http.ResponseWriter, r *http.Request) {
	if h.Remove == nil {
		notImplemented(w)
		return
	}
	allowTitle, _ := strconv.ParseBool(r.URL.Query().Get("allow_title"))
	input := commands.RemoveWidgetInput{WidgetID: r.PathValue("id"), AllowTitle: allowTitle}
	if err := h.Remove.Execute(r.Context(), input); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) HandleCopyWidget(w http.ResponseWriter, r *http.Request) {
	if h.Copy == nil {
		notImplemented(w)
		return
	}
	if err := h.Copy.Execute(r.Context(), commands.CopyWidgetInput{WidgetID: r.PathValue("id")}); err != nil {
		h.fail(w, err)
		return
	}
	h.respondState(w, r, http.StatusCreated)
}

func (h *Handlers) HandleUpdateLayouts(w http.ResponseWriter, r *http.Request) {
	if h.Layouts == nil {
		notImplemented(w)
		return
	}
	var payload commands.UpdateLayoutsInput
	if !decode(w, r, &payload) {
		return
	}
	if err := h.Layouts.Execute(r.Context(), payload); err != nil {
		h.fail(w, err)
		return
	}
	h.respondState(w, r, http.StatusOK)
}

func (h *Handlers) HandleSettings(w http.ResponseWriter, r *http.Request) {
	if h.Settings == nil {
		notImplemented(w)
		return
	}
	var payload commands.SettingsInput
	if !decode(w, r, &payload) {
		return
	}
	if err := h.Settings.Execute(r.Context(), payload); err != nil {
		h.fail(w, err)
		return
	}
	h.respondState(w, r, http.StatusOK)
}

func (h *Handlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if h.History == nil {
		notImplemented(w)
		return
	}
	input := commands.HistoryInput{Action: commands.HistoryAction(r.PathValue("action"))}
	if err := h.History.Execute(r.Context(), input); err != nil {
		h.fail(w, err)
		return
	}
	h.respondState(w, r, http.StatusOK)
}

func (h *Handlers) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if h.Refresh == nil {
		notImplemented(w)
		return
	}
	input := commands.RefreshInput{Scope: commands.RefreshScope(r.URL.Query().Get("scope"))}
	if err := h.Refresh.Execute(r.Context(), input); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handlers) HandleListVersions(w http.ResponseWriter, r *http.Request) {
	if h.Versions == nil {
		notImplemented(w)
		return
	}
	versions, err := h.Versions.Query(r.Context(), queries.VersionsInput{})
	if err != nil {
		h.fail(w, err)
		return
	}
	if versions == nil {
		versions = []dashboard.DashboardVersion{}
	}
	writeJSON(w, http.StatusOK, versions)
}

func (h *Handlers) HandleSaveVersion(w http.ResponseWriter, r *http.Request) {
	if h.SaveVersion == nil {
		notImplemented(w)
		return
	}
	if err := h.SaveVersion.Execute(r.Context(), commands.SaveVersionInput{}); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handlers) HandleRestoreVersion(w http.ResponseWriter, r *http.Request) {
	if h.RestoreVersion == nil {
		notImplemented(w)
		return
	}
	input := commands.RestoreVersionInput{VersionID: r.PathValue("id")}
	if err := h.RestoreVersion.Execute(r.Context(), input); err != nil {
		h.fail(w, err)
		return
	}
	h.respondState(w, r, http.StatusOK)
}

func (h *Handlers) HandleCatalogue(w http.ResponseWriter, r *http.Request) {
	if h.Catalogue == nil {
		notImplemented(w)
		return
	}
	locale := r.URL.Query().Get("locale")
	if locale == "" {
		locale = r.Header.Get("Accept-Language")
	}
	entries, err := h.Catalogue.Query(r.Context(), queries.CatalogueInput{Locale: PrimaryLanguage(locale)})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	if h.Export == nil {
		notImplemented(w)
		return
	}
	file, err := h.Export.Query(r.Context(), queries.ExportInput{})
	if err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.FileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Body)
}

func (h *Handlers) HandleImport(w http.ResponseWriter, r *http.Request) {
	if h.Import == nil {
		notImplemented(w)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.Import.Execute(r.Context(), commands.ImportWidgetsInput{Document: body}); err != nil {
		h.fail(w, err)
		return
	}
	h.respondState(w, r, http.StatusOK)
}

func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if h.Events == nil {
		notImplemented(w)
		return
	}
	h.Events.ServeSSE(w, r)
}

func (h *Handlers) HandleEventsWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.Events == nil {
		notImplemented(w)
		return
	}
	h.Events.ServeWebSocket(w, r)
}

func (h *Handlers) HandlePresenter(w http.ResponseWriter, r *http.Request) {
	if h.Presenter == nil {
		notImplemented(w)
		return
	}
	h.Presenter.ServeHTTP(w, r)
}

// respondState writes the current state when a State query is wired, or
// just the status otherwise.
func (h *Handlers) respondState(w http.ResponseWriter, r *http.Request, status int) {
	if h.State == nil {
		w.WriteHeader(status)
		return
	}
	view, err := h.State.Query(r.Context(), queries.StateInput{})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, status, view)
}

func (h *Handlers) fail(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError && h.Logger != nil {
		h.Logger.Error("dashboard api request failed", zap.Error(err))
	}
	http.Error(w, err.Error(), status)
}

// StatusFor maps dashboard and command errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, commands.ErrInvalidInput),
		errors.Is(err, dashboard.ErrInvalidWidgetData),
		errors.Is(err, dashboard.ErrInvalidCellAddress),
		errors.Is(err, dashboard.ErrInvalidRange),
		errors.Is(err, dashboard.ErrInvalidImport),
		errors.Is(err, dashboard.ErrInvalidEventFilter):
		return http.StatusBadRequest
	case errors.Is(err, dashboard.ErrWidgetNotFound),
		errors.Is(err, dashboard.ErrVersionNotFound),
		errors.Is(err, dashboard.ErrTemplateNotFound),
		errors.Is(err, dashboard.ErrDashboardNotFound),
		errors.Is(err, dashboard.ErrWorksheetNotFound):
		return http.StatusNotFound
	case errors.Is(err, commands.ErrNothingToReplay),
		errors.Is(err, dashboard.ErrTitleExists),
		errors.Is(err, dashboard.ErrTitleRemoval),
		errors.Is(err, dashboard.ErrWidgetExists),
		errors.Is(err, dashboard.ErrWorkbookMismatch),
		errors.Is(err, dashboard.ErrNoDashboard):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func notImplemented(w http.ResponseWriter) {
	http.Error(w, "not implemented", http.StatusNotImplemented)
}

// PrimaryLanguage keeps the first tag of an Accept-Language header.
func PrimaryLanguage(header string) string {
	for i, r := range header {
		if r == ',' || r == ';' {
			return header[:i]
		}
	}
	return header
}
