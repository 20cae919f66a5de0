package dashboard

import (
	"context"
	"errors"
)

// RefreshHooks fans a change out to several hooks, e.g. the SSE broadcaster
// and the presenter host. Every hook is called; errors are joined.
type RefreshHooks []RefreshHook

// DashboardUpdated forwards event to each hook in order.
func (h RefreshHooks) DashboardUpdated(ctx context.Context, event ChangeEvent) error {
	var errs []error
	for _, hook := range h {
		if hook == nil {
			continue
		}
		if err := hook.DashboardUpdated(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RefreshHookFunc adapts a function to RefreshHook.
type RefreshHookFunc func(ctx context.Context, event ChangeEvent) error

func (f RefreshHookFunc) DashboardUpdated(ctx context.Context, event ChangeEvent) error {
	return f(ctx, event)
}
