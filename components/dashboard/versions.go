package dashboard

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxVersions caps the saved versions per dashboard.
const MaxVersions = 5

// Versions lists the open dashboard's versions, newest first.
func (s *Service) Versions() []DashboardVersion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneVersions(s.versions)
}

// SaveDashboardVersion snapshots the open dashboard, keeps the newest
// MaxVersions and persists.
func (s *Service) SaveDashboardVersion(ctx context.Context) (DashboardVersion, error) {
	if !s.Loaded() {
		return DashboardVersion{}, ErrNoDashboard
	}
	state := s.store.State()
	version := DashboardVersion{
		ID:             uuid.NewString(),
		Timestamp:      s.opts.Now().UTC(),
		Title:          state.Title,
		Components:     state.Widgets,
		Layouts:        state.Layouts,
		BorderSettings: state.BorderSettings,
	}
	if version.Components == nil {
		version.Components = []Widget{}
	}
	s.mu.Lock()
	s.versions = prependVersion(s.versions, version)
	s.mu.Unlock()

	if err := s.persist(ctx); err != nil {
		s.logger.Warn("version save failed", zapDashboard(state.ID), zap.Error(err))
		s.notify(ctx, LevelError, "Failed to save version.")
		return version, err
	}
	s.notify(ctx, LevelSuccess, "Version saved.")
	s.recordTelemetry(ctx, "dashboard.version.save", map[string]any{"dashboard_id": state.ID, "version_id": version.ID})
	return version, nil
}

func prependVersion(versions []DashboardVersion, v DashboardVersion) []DashboardVersion {
	out := append([]DashboardVersion{v}, versions...)
	if len(out) > MaxVersions {
		out = out[:MaxVersions]
	}
	return slices.Clip(out)
}

// RestoreDashboardVersion replaces widgets, layouts and title (and border
// settings when the version has them) with the version's values and
// persists. History and the version list are left alone.
func (s *Service) RestoreDashboardVersion(ctx context.Context, id string) error {
	if !s.Loaded() {
		return ErrNoDashboard
	}
	var (
		version DashboardVersion
		found   bool
	)
	for _, v := range s.Versions() {
		if v.ID == id {
			version, found = v, true
			break
		}
	}
	if !found {
		s.notify(ctx, LevelError, "Version not found.")
		return fmt.Errorf("%w: %s", ErrVersionNotFound, id)
	}
	current := s.store.State()
	s.store.Replace(State{
		ID:             current.ID,
		Title:          version.Title,
		Widgets:        version.Components,
		Layouts:        version.Layouts,
		BorderSettings: version.BorderSettings,
	}, OriginVersion, "restore")
	if err := s.persist(ctx); err != nil {
		s.logger.Warn("version restore save failed", zapDashboard(current.ID), zap.Error(err))
		s.notify(ctx, LevelError, "Version restored locally but saving failed.")
		return err
	}
	s.notify(ctx, LevelSuccess, "Version restored.")
	s.recordTelemetry(ctx, "dashboard.version.restore", map[string]any{"dashboard_id": current.ID, "version_id": id})
	return nil
}
