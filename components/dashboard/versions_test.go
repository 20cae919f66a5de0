package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveVersionKeepsNewestFive(t *testing.T) {
	clock := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	env := newTestEnv(t, func(o *Options) {
		o.Now = func() time.Time {
			clock = clock.Add(time.Minute)
			return clock
		}
	})
	ctx := context.Background()
	var saved []DashboardVersion
	for range 7 {
		v, err := env.svc.SaveDashboardVersion(ctx)
		require.NoError(t, err)
		saved = append(saved, v)
	}
	versions := env.svc.Versions()
	require.Len(t, versions, MaxVersions)
	assert.Equal(t, saved[6].ID, versions[0].ID)
	assert.Equal(t, saved[2].ID, versions[4].ID)
	for i := 1; i < len(versions); i++ {
		assert.True(t, versions[i-1].Timestamp.After(versions[i].Timestamp))
	}
	stored, err := env.client.GetDashboard(ctx, env.dashboardID)
	require.NoError(t, err)
	assert.Len(t, stored.Versions, MaxVersions)
}

func TestRestoreVersionReplacesContent(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	_, err := env.svc.AddWidget(ctx, AddWidgetRequest{Type: WidgetText})
	require.NoError(t, err)
	snapshot := env.svc.State()
	v, err := env.svc.SaveDashboardVersion(ctx)
	require.NoError(t, err)

	_, err = env.svc.AddWidget(ctx, AddWidgetRequest{Type: WidgetChart})
	require.NoError(t, err)
	require.NoError(t, env.svc.SetTitle(ctx, "Renamed"))
	canUndo := env.svc.CanUndo()
	updates := env.client.updateCount()

	require.NoError(t, env.svc.RestoreDashboardVersion(ctx, v.ID))
	state := env.svc.State()
	assert.Equal(t, snapshot.Widgets, state.Widgets)
	assert.Equal(t, snapshot.Layouts, state.Layouts)
	assert.Equal(t, snapshot.Title, state.Title)
	assert.Equal(t, canUndo, env.svc.CanUndo())
	assert.Len(t, env.svc.Versions(), 1)
	assert.Equal(t, updates+1, env.client.updateCount())
}

func TestRestoreUnknownVersion(t *testing.T) {
	env := newTestEnv(t, nil)
	err := env.svc.RestoreDashboardVersion(context.Background(), "nope")
	require.ErrorIs(t, err, ErrVersionNotFound)
	assert.Equal(t, 1, env.notes.Count(LevelError))
}
