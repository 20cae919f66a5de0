package dashboard

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// SeedTemplates imports every .yaml, .yml and .json template file in dir
// whose name is not already stored. It returns the created templates.
func SeedTemplates(ctx context.Context, service *Service, dir string) ([]Template, error) {
	if service == nil {
		return nil, errors.New("dashboard: service is required to seed templates")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("dashboard: read template dir %s: %w", dir, err)
	}
	existing, err := service.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(existing))
	for _, tpl := range existing {
		names = append(names, tpl.Name)
	}

	var (
		created []Template
		seedErr error
	)
	for _, entry := range entries {
		if entry.IsDir() || !isTemplateFile(entry.Name()) {
			continue
		}
		doc, err := ReadTemplateFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			seedErr = errors.Join(seedErr, err)
			continue
		}
		if slices.Contains(names, doc.Name) {
			continue
		}
		tpl, err := service.ImportTemplateDocument(ctx, doc)
		if err != nil {
			seedErr = errors.Join(seedErr, fmt.Errorf("seed template %s: %w", entry.Name(), err))
			continue
		}
		names = append(names, tpl.Name)
		created = append(created, tpl)
	}
	return created, seedErr
}

func isTemplateFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}
