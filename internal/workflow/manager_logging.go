package workflow

import (
	"context"
	"log/slog"

	"github.com/MayankTamakuwala/TranscriBelt/internal/logging"
	"github.com/MayankTamakuwala/TranscriBelt/internal/pipeline"
	"github.com/MayankTamakuwala/TranscriBelt/internal/services"
)

func (m *Manager) workerLogger(workerID string) *slog.Logger {
	return m.logger.With(logging.String(logging.FieldWorker, workerID))
}

func withJobContext(ctx context.Context, jobID, workerID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if jobID != "" {
		ctx = services.WithJobID(ctx, jobID)
	}
	if workerID != "" {
		ctx = services.WithWorker(ctx, workerID)
	}
	return ctx
}

func (m *Manager) cleanupWorkspace(jobID string, logger *slog.Logger) error {
	return pipeline.Cleanup(m.cfg, jobID, m.cfg.Workflow.KeepWorkspace, logger)
}
