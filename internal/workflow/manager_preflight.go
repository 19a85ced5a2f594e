package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MayankTamakuwala/TranscriBelt/internal/logging"
	"github.com/MayankTamakuwala/TranscriBelt/internal/preflight"
)

// RunPreflight checks workspaces, pipeline binaries, and publish targets
// before any worker claims a job. Every failed check is logged and joined
// into the returned error.
func (m *Manager) RunPreflight(ctx context.Context) error {
	var errs []error
	for _, r := range preflight.RunWorkerChecks(ctx, m.cfg) {
		attrs := []logging.Attr{
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
		}
		if r.Passed {
			m.logger.LogAttrs(ctx, slog.LevelDebug, "preflight ok", append(attrs, logging.String(logging.FieldEventType, "preflight_passed"))...)
			continue
		}
		m.logger.LogAttrs(ctx, slog.LevelError, "preflight failed", append(attrs,
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String(logging.FieldErrorHint, "worker stays down until this is fixed"),
		)...)
		errs = append(errs, fmt.Errorf("%s: %s", r.Name, r.Detail))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("worker preflight: %w", errors.Join(errs...))
}
