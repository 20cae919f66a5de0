package dashboard

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryDashboardStore is a concurrency-safe DashboardStoreClient and
// TemplateStore used for local mode and tests.
type InMemoryDashboardStore struct {
	mu         sync.RWMutex
	dashboards map[string]DashboardItem
	templates  map[string]Template
	now        func() time.Time
}

// NewInMemoryDashboardStore creates an empty store.
func NewInMemoryDashboardStore() *InMemoryDashboardStore {
	return &InMemoryDashboardStore{
		dashboards: make(map[string]DashboardItem),
		templates:  make(map[string]Template),
		now:        time.Now,
	}
}

func (s *InMemoryDashboardStore) ListDashboards(context.Context) ([]DashboardItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DashboardItem, 0, len(s.dashboards))
	for _, item := range s.dashboards {
		out = append(out, cloneItem(item))
	}
	slices.SortFunc(out, func(a, b DashboardItem) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *InMemoryDashboardStore) GetDashboard(_ context.Context, id string) (DashboardItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.dashboards[id]
	if !ok {
		return DashboardItem{}, fmt.Errorf("%w: %s", ErrDashboardNotFound, id)
	}
	return cloneItem(item), nil
}

func (s *InMemoryDashboardStore) CreateDashboard(_ context.Context, item DashboardItem) (DashboardItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if _, exists := s.dashboards[item.ID]; exists {
		return DashboardItem{}, fmt.Errorf("dashboard: dashboard %s already exists", item.ID)
	}
	now := s.now().UTC()
	item.CreatedAt, item.UpdatedAt = now, now
	if item.Components == nil {
		item.Components = []Widget{}
	}
	s.dashboards[item.ID] = cloneItem(item)
	return cloneItem(item), nil
}

// UpdateDashboard replaces the stored document (last write wins).
func (s *InMemoryDashboardStore) UpdateDashboard(_ context.Context, item DashboardItem) (DashboardItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.dashboards[item.ID]
	if !ok {
		return DashboardItem{}, fmt.Errorf("%w: %s", ErrDashboardNotFound, item.ID)
	}
	item.CreatedAt = prev.CreatedAt
	item.UpdatedAt = s.now().UTC()
	s.dashboards[item.ID] = cloneItem(item)
	return cloneItem(item), nil
}

func (s *InMemoryDashboardStore) DeleteDashboard(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dashboards[id]; !ok {
		return fmt.Errorf("%w: %s", ErrDashboardNotFound, id)
	}
	delete(s.dashboards, id)
	return nil
}

func (s *InMemoryDashboardStore) CreateTemplate(_ context.Context, tpl Template) (Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	now := s.now().UTC()
	tpl.CreatedAt, tpl.UpdatedAt = now, now
	s.templates[tpl.ID] = cloneTemplate(tpl)
	return cloneTemplate(tpl), nil
}

func (s *InMemoryDashboardStore) GetTemplate(_ context.Context, id string) (Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tpl, ok := s.templates[id]
	if !ok {
		return Template{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	return cloneTemplate(tpl), nil
}

func (s *InMemoryDashboardStore) UpdateTemplate(_ context.Context, tpl Template) (Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.templates[tpl.ID]
	if !ok {
		return Template{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, tpl.ID)
	}
	tpl.CreatedAt = prev.CreatedAt
	tpl.UpdatedAt = s.now().UTC()
	s.templates[tpl.ID] = cloneTemplate(tpl)
	return cloneTemplate(tpl), nil
}

func (s *InMemoryDashboardStore) ListTemplates(context.Context) ([]Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Template, 0, len(s.templates))
	for _, tpl := range s.templates {
		out = append(out, cloneTemplate(tpl))
	}
	slices.SortFunc(out, func(a, b Template) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func cloneItem(item DashboardItem) DashboardItem {
	item.Components = cloneWidgets(item.Components)
	item.Layouts = item.Layouts.Clone()
	item.Versions = cloneVersions(item.Versions)
	item.BorderSettings = item.BorderSettings.Clone()
	return item
}

func cloneTemplate(tpl Template) Template {
	tpl.Components = cloneWidgets(tpl.Components)
	tpl.Layouts = tpl.Layouts.Clone()
	tpl.BorderSettings = tpl.BorderSettings.Clone()
	return tpl
}

var (
	_ DashboardStoreClient = (*InMemoryDashboardStore)(nil)
	_ TemplateStore        = (*InMemoryDashboardStore)(nil)
)
