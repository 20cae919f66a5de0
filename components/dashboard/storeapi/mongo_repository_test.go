package storeapi

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/goliatone/go-sheetboard/components/dashboard"
)

func storedDashboard(t *testing.T, id string) bson.D {
	t.Helper()
	body, err := json.Marshal(dashboard.DashboardItem{
		Title:      "Ops",
		WorkbookID: "wb-1",
		Components: []dashboard.Widget{{ID: "text-1", Type: dashboard.WidgetText, Data: dashboard.TextData{Content: "hi"}}},
	})
	require.NoError(t, err)
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "title", Value: "Ops"},
		{Key: "workbookId", Value: "wb-1"},
		{Key: "body", Value: body},
		{Key: "createdAt", Value: created},
		{Key: "updatedAt", Value: created},
	}
}

func TestMongoRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("get decodes stored body", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "sheetboard.dashboards", mtest.FirstBatch, storedDashboard(mt.T, "dash-1")))

		item, err := repo.GetDashboard(context.Background(), "dash-1")
		require.NoError(t, err)
		assert.Equal(t, "dash-1", item.ID)
		assert.Equal(t, "wb-1", item.WorkbookID)
		require.Len(t, item.Components, 1)
		assert.Equal(t, dashboard.TextData{Content: "hi"}, item.Components[0].Data)
	})

	mt.Run("get missing maps to not found", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "sheetboard.dashboards", mtest.FirstBatch))

		_, err := repo.GetDashboard(context.Background(), "missing")
		assert.True(t, errors.Is(err, dashboard.ErrDashboardNotFound), "got %v", err)
	})

	mt.Run("create assigns id", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		item, err := repo.CreateDashboard(context.Background(), dashboard.DashboardItem{Title: "Ops"})
		require.NoError(t, err)
		assert.NotEmpty(t, item.ID)
		assert.NotNil(t, item.Components)
		assert.False(t, item.CreatedAt.IsZero())
	})

	mt.Run("update without match is not found", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		_, err := repo.UpdateDashboard(context.Background(), dashboard.DashboardItem{ID: "missing", Title: "Ops"})
		assert.True(t, errors.Is(err, dashboard.ErrDashboardNotFound), "got %v", err)
	})

	mt.Run("delete reports missing documents", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.DB)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}),
		)

		require.NoError(t, repo.DeleteDashboard(context.Background(), "dash-1"))
		err := repo.DeleteDashboard(context.Background(), "dash-1")
		assert.True(t, errors.Is(err, dashboard.ErrDashboardNotFound), "got %v", err)
	})

	mt.Run("list decodes every document", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "sheetboard.dashboards", mtest.FirstBatch,
			storedDashboard(mt.T, "dash-1"),
			storedDashboard(mt.T, "dash-2"),
		))

		items, err := repo.ListDashboards(context.Background())
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "dash-2", items[1].ID)
	})
}
