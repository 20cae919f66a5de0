package dashboard

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// SaveAsTemplate stores the open dashboard's widgets, layouts and borders as
// a reusable template without its workbook binding.
func (s *Service) SaveAsTemplate(ctx context.Context, name string) (Template, error) {
	templates, err := s.templates()
	if err != nil {
		return Template{}, err
	}
	state := s.store.State()
	widgets := state.Widgets
	if widgets == nil {
		widgets = []Widget{}
	}
	created, err := templates.CreateTemplate(ctx, Template{
		Name:           name,
		Components:     widgets,
		Layouts:        state.Layouts,
		BorderSettings: state.BorderSettings,
	})
	if err != nil {
		s.logger.Warn("save template failed", zapDashboard(state.ID), zap.Error(err))
		s.notify(ctx, LevelError, "Failed to save template.")
		return Template{}, fmt.Errorf("dashboard: save template: %w", err)
	}
	s.notify(ctx, LevelSuccess, "Template saved.")
	s.recordTelemetry(ctx, "dashboard.template.save", map[string]any{"template_id": created.ID})
	return created, nil
}

// ApplyTemplate replaces the open dashboard's widgets with a template's.
// Widgets get fresh ids so one template can seed many dashboards.
// History-tracked.
func (s *Service) ApplyTemplate(ctx context.Context, id string) error {
	templates, err := s.templates()
	if err != nil {
		return err
	}
	tpl, err := templates.GetTemplate(ctx, id)
	if err != nil {
		s.notify(ctx, LevelError, "Template not found.")
		return fmt.Errorf("dashboard: load template %s: %w", id, err)
	}
	widgets, layouts := s.reassignIDs(tpl.Components, tpl.Layouts)
	if err := s.store.ReplaceWidgets(widgets, layouts, "template"); err != nil {
		s.notifyMutationError(ctx, err)
		return err
	}
	if tpl.BorderSettings != nil {
		if err := s.store.SetBorderSettings(*tpl.BorderSettings); err != nil {
			return err
		}
	}
	s.notify(ctx, LevelSuccess, "Template applied.")
	s.recordTelemetry(ctx, "dashboard.template.apply", map[string]any{"template_id": id})
	return nil
}

// ListTemplates returns every stored template.
func (s *Service) ListTemplates(ctx context.Context) ([]Template, error) {
	templates, err := s.templates()
	if err != nil {
		return nil, err
	}
	return templates.ListTemplates(ctx)
}

// ImportTemplateDocument validates a decoded template file and stores it.
func (s *Service) ImportTemplateDocument(ctx context.Context, doc *TemplateDocument) (Template, error) {
	templates, err := s.templates()
	if err != nil {
		return Template{}, err
	}
	tpl, err := doc.Template()
	if err != nil {
		return Template{}, err
	}
	for _, w := range tpl.Components {
		if err := s.store.validate(w); err != nil {
			return Template{}, err
		}
	}
	return templates.CreateTemplate(ctx, tpl)
}

func (s *Service) reassignIDs(widgets []Widget, layouts Layouts) ([]Widget, Layouts) {
	mapping := make(map[string]string, len(widgets))
	out := make([]Widget, len(widgets))
	for i, w := range widgets {
		fresh := s.store.NewWidget(w.Type, w.Data)
		mapping[w.ID] = fresh.ID
		out[i] = fresh.Clone()
	}
	if layouts == nil {
		return out, nil
	}
	remapped := make(Layouts, len(layouts))
	for bp, items := range layouts {
		next := make([]GridLayoutItem, 0, len(items))
		for _, item := range items {
			if id, ok := mapping[item.I]; ok {
				item.I = id
				next = append(next, item)
			}
		}
		remapped[bp] = next
	}
	return out, remapped
}

func (s *Service) templates() (TemplateStore, error) {
	if s.opts.Templates == nil {
		return nil, fmt.Errorf("dashboard: template store not configured")
	}
	return s.opts.Templates, nil
}
