package dashboard

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// RefreshScheduler runs RefreshAllCharts on a cron schedule.
type RefreshScheduler struct {
	cron    *cron.Cron
	service *Service
	logger  *zap.Logger
}

// NewRefreshScheduler builds a stopped scheduler for svc.
func NewRefreshScheduler(svc *Service, logger *zap.Logger) *RefreshScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RefreshScheduler{
		cron:    cron.New(),
		service: svc,
		logger:  logger.Named("refresh-scheduler"),
	}
}

// Schedule registers a refresh job on spec, e.g. "@every 5m" or "0 * * * *".
func (r *RefreshScheduler) Schedule(spec string) (cron.EntryID, error) {
	id, err := r.cron.AddFunc(spec, r.run)
	if err != nil {
		return 0, fmt.Errorf("dashboard: invalid refresh schedule %q: %w", spec, err)
	}
	return id, nil
}

// Entries returns the registered jobs.
func (r *RefreshScheduler) Entries() []cron.Entry {
	return r.cron.Entries()
}

// Start begins running jobs in the background.
func (r *RefreshScheduler) Start() { r.cron.Start() }

// Stop halts the scheduler and returns a context done once running jobs end.
func (r *RefreshScheduler) Stop() context.Context { return r.cron.Stop() }

func (r *RefreshScheduler) run() {
	if !r.service.Loaded() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), DefaultSaveTimeout)
	defer cancel()
	if err := r.service.RefreshAllCharts(ctx); err != nil {
		r.logger.Warn("scheduled refresh failed", zap.Error(err))
	}
}
