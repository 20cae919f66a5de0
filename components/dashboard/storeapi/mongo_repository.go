package storeapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/goliatone/go-sheetboard/components/dashboard"
)

const (
	dashboardsCollection = "dashboards"
	templatesCollection  = "templates"
)

// document is the stored shape for both collections. The widget payloads
// are kept as JSON so unknown widget types round trip untouched.
type document struct {
	ID         string    `bson:"_id"`
	Title      string    `bson:"title"`
	WorkbookID string    `bson:"workbookId,omitempty"`
	Body       []byte    `bson:"body"`
	CreatedAt  time.Time `bson:"createdAt"`
	UpdatedAt  time.Time `bson:"updatedAt"`
}

// MongoRepository stores dashboards and templates in two collections.
type MongoRepository struct {
	dashboards *mongo.Collection
	templates  *mongo.Collection
	now        func() time.Time
}

// NewMongoRepository binds the repository to db.
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		dashboards: db.Collection(dashboardsCollection),
		templates:  db.Collection(templatesCollection),
		now:        time.Now,
	}
}

// ConnectMongo opens a client and verifies it with a ping.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("storeapi: connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("storeapi: ping mongo: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the workbook lookup index.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.dashboards.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "workbookId", Value: 1}},
	})
	return err
}

func (r *MongoRepository) ListDashboards(ctx context.Context) ([]dashboard.DashboardItem, error) {
	docs, err := findAll(ctx, r.dashboards)
	if err != nil {
		return nil, err
	}
	items := make([]dashboard.DashboardItem, 0, len(docs))
	for _, doc := range docs {
		item, err := doc.dashboard()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *MongoRepository) GetDashboard(ctx context.Context, id string) (dashboard.DashboardItem, error) {
	var doc document
	err := r.dashboards.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return dashboard.DashboardItem{}, fmt.Errorf("%w: %s", dashboard.ErrDashboardNotFound, id)
	}
	if err != nil {
		return dashboard.DashboardItem{}, err
	}
	return doc.dashboard()
}

func (r *MongoRepository) CreateDashboard(ctx context.Context, item dashboard.DashboardItem) (dashboard.DashboardItem, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := r.now().UTC()
	item.CreatedAt, item.UpdatedAt = now, now
	if item.Components == nil {
		item.Components = []dashboard.Widget{}
	}
	doc, err := newDocument(item.ID, item.Title, item.WorkbookID, item, now)
	if err != nil {
		return dashboard.DashboardItem{}, err
	}
	if _, err := r.dashboards.InsertOne(ctx, doc); err != nil {
		return dashboard.DashboardItem{}, fmt.Errorf("storeapi: insert dashboard: %w", err)
	}
	return item, nil
}

func (r *MongoRepository) UpdateDashboard(ctx context.Context, item dashboard.DashboardItem) (dashboard.DashboardItem, error) {
	item.UpdatedAt = r.now().UTC()
	body, err := json.Marshal(item)
	if err != nil {
		return dashboard.DashboardItem{}, err
	}
	res, err := r.dashboards.UpdateOne(ctx, bson.M{"_id": item.ID}, bson.M{"$set": bson.M{
		"title":      item.Title,
		"workbookId": item.WorkbookID,
		"body":       body,
		"updatedAt":  item.UpdatedAt,
	}})
	if err != nil {
		return dashboard.DashboardItem{}, fmt.Errorf("storeapi: update dashboard: %w", err)
	}
	if res.MatchedCount == 0 {
		return dashboard.DashboardItem{}, fmt.Errorf("%w: %s", dashboard.ErrDashboardNotFound, item.ID)
	}
	return item, nil
}

func (r *MongoRepository) DeleteDashboard(ctx context.Context, id string) error {
	res, err := r.dashboards.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("storeapi: delete dashboard: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", dashboard.ErrDashboardNotFound, id)
	}
	return nil
}

func (r *MongoRepository) CreateTemplate(ctx context.Context, tpl dashboard.Template) (dashboard.Template, error) {
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	now := r.now().UTC()
	tpl.CreatedAt, tpl.UpdatedAt = now, now
	doc, err := newDocument(tpl.ID, tpl.Name, "", tpl, now)
	if err != nil {
		return dashboard.Template{}, err
	}
	if _, err := r.templates.InsertOne(ctx, doc); err != nil {
		return dashboard.Template{}, fmt.Errorf("storeapi: insert template: %w", err)
	}
	return tpl, nil
}

func (r *MongoRepository) GetTemplate(ctx context.Context, id string) (dashboard.Template, error) {
	var doc document
	err := r.templates.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return dashboard.Template{}, fmt.Errorf("%w: %s", dashboard.ErrTemplateNotFound, id)
	}
	if err != nil {
		return dashboard.Template{}, err
	}
	return doc.template()
}

func (r *MongoRepository) UpdateTemplate(ctx context.Context, tpl dashboard.Template) (dashboard.Template, error) {
	tpl.UpdatedAt = r.now().UTC()
	body, err := json.Marshal(tpl)
	if err != nil {
		return dashboard.Template{}, err
	}
	res, err := r.templates.UpdateOne(ctx, bson.M{"_id": tpl.ID}, bson.M{"$set": bson.M{
		"title":     tpl.Name,
		"body":      body,
		"updatedAt": tpl.UpdatedAt,
	}})
	if err != nil {
		return dashboard.Template{}, fmt.Errorf("storeapi: update template: %w", err)
	}
	if res.MatchedCount == 0 {
		return dashboard.Template{}, fmt.Errorf("%w: %s", dashboard.ErrTemplateNotFound, tpl.ID)
	}
	return tpl, nil
}

func (r *MongoRepository) ListTemplates(ctx context.Context) ([]dashboard.Template, error) {
	docs, err := findAll(ctx, r.templates)
	if err != nil {
		return nil, err
	}
	out := make([]dashboard.Template, 0, len(docs))
	for _, doc := range docs {
		tpl, err := doc.template()
		if err != nil {
			return nil, err
		}
		out = append(out, tpl)
	}
	return out, nil
}

func findAll(ctx context.Context, coll *mongo.Collection) ([]document, error) {
	cursor, err := coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("storeapi: find %s: %w", coll.Name(), err)
	}
	var docs []document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("storeapi: decode %s: %w", coll.Name(), err)
	}
	return docs, nil
}

func newDocument(id, title, workbookID string, v any, now time.Time) (document, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return document{}, err
	}
	return document{
		ID:         id,
		Title:      title,
		WorkbookID: workbookID,
		Body:       body,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (d document) dashboard() (dashboard.DashboardItem, error) {
	var item dashboard.DashboardItem
	if err := json.Unmarshal(d.Body, &item); err != nil {
		return dashboard.DashboardItem{}, fmt.Errorf("storeapi: decode dashboard %s: %w", d.ID, err)
	}
	item.ID = d.ID
	item.CreatedAt = d.CreatedAt
	item.UpdatedAt = d.UpdatedAt
	return item, nil
}

func (d document) template() (dashboard.Template, error) {
	var tpl dashboard.Template
	if err := json.Unmarshal(d.Body, &tpl); err != nil {
		return dashboard.Template{}, fmt.Errorf("storeapi: decode template %s: %w", d.ID, err)
	}
	tpl.ID = d.ID
	tpl.CreatedAt = d.CreatedAt
	tpl.UpdatedAt = d.UpdatedAt
	return tpl, nil
}
