package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/goliatone/go-sheetboard/components/dashboard"
	"github.com/goliatone/go-sheetboard/components/dashboard/presenter"
)

// PresenterHandler upgrades the request and serves one presenter window
// until it closes.
func PresenterHandler(svc *dashboard.Service, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := dashboard.Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("presenter upgrade failed", zap.Error(err))
			return
		}
		host := presenter.NewHost(svc, presenter.NewWebSocketTransport(conn), presenter.HostOptions{
			Logger: logger,
			OnFullscreen: func(active bool) {
				logger.Debug("presenter fullscreen changed", zap.Bool("active", active))
			},
		})
		if err := host.Run(r.Context()); err != nil {
			logger.Warn("presenter channel ended", zap.Error(err))
		}
	})
}
