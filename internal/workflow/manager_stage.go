package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/MayankTamakuwala/TranscriBelt/internal/logging"
	"github.com/MayankTamakuwala/TranscriBelt/internal/pipeline"
	"github.com/MayankTamakuwala/TranscriBelt/internal/queue"
	"github.com/MayankTamakuwala/TranscriBelt/internal/services"
)

// runJob drives one claimed job to a terminal stage. The job runs on a
// context detached from parent: stopping the daemon ends claiming, not the
// job, and Stop waits for it to finish.
func (m *Manager) runJob(parent context.Context, workerID string, job *queue.Job, workerLogger *slog.Logger) {
	ctx := withJobContext(context.WithoutCancel(parent), job.ID, workerID)
	logger := workerLogger.With(logging.String(logging.FieldJobID, job.ID))
	started := time.Now()

	m.trackActive(job.ID, workerID)
	defer m.untrackActive(job.ID)

	logger.Info("job claimed",
		logging.String(logging.FieldEventType, "job_claimed"),
		logging.String("input", job.InputPath),
	)

	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, job.ID, workerID)

	stepName, err := m.runSteps(ctx, job, workerID, logger)

	hbCancel()
	hbWG.Wait()

	if err != nil {
		m.failJob(ctx, workerID, stepName, job, err, logger)
	} else {
		m.completeJob(ctx, workerID, job, logger, time.Since(started))
	}

	if cleanupErr := m.cleanupWorkspace(job.ID, logger); cleanupErr != nil {
		logger.Warn("workspace cleanup failed; files left on disk",
			logging.Error(cleanupErr),
			logging.String(logging.FieldEventType, "workspace_cleanup_failed"),
			logging.String(logging.FieldErrorHint, "remove the job directories manually"),
		)
	}
}

// runSteps executes every configured step in order and returns the name of
// the step that failed, if any. A panic in a step is returned as that step's
// failure.
func (m *Manager) runSteps(ctx context.Context, job *queue.Job, workerID string, logger *slog.Logger) (current string, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("stage panicked",
				logging.String(logging.FieldStage, current),
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
				logging.Alert("stage_panic"),
				logging.String(logging.FieldEventType, "stage_panic"),
			)
			err = services.NewStageFailure(current, "internal error", services.Wrap(services.ErrExternalTool, "", "panic", "internal error", nil))
		}
	}()

	for _, step := range m.stepList() {
		current = step.Name
		if err := m.executeStep(ctx, step, job, logger); err != nil {
			return step.Name, err
		}
		if step.Checkpoint == "" {
			continue
		}
		updated, err := m.store.Checkpoint(ctx, job.ID, workerID, step.Checkpoint, checkpointMessages[step.Checkpoint])
		if err != nil {
			return step.Name, fmt.Errorf("persist checkpoint %s: %w", step.Checkpoint, err)
		}
		job.Stage = updated.Stage
		job.Progress = updated.Progress
		job.ProgressMessage = updated.ProgressMessage
		job.UpdatedAt = updated.UpdatedAt
		m.publishStatus(ctx, updated, logger)
		m.setLastJob(updated)
	}
	return "", nil
}

func (m *Manager) executeStep(ctx context.Context, step pipeline.Step, job *queue.Job, logger *slog.Logger) error {
	stepCtx := services.WithStage(ctx, step.Name)
	stepLogger := logger.With(logging.String(logging.FieldStage, step.Name))
	start := time.Now()
	stepLogger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("job_stage", string(job.Stage)),
	)

	err := step.Handler.Prepare(stepCtx, job)
	if err == nil {
		err = step.Handler.Execute(stepCtx, job)
	}
	elapsed := time.Since(start)
	m.metrics.StageObserved(step.Name, elapsed, err)
	if err != nil {
		return services.NewStageError(step.Name, err)
	}

	stepLogger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("stage_duration", elapsed),
	)
	return nil
}

func (m *Manager) completeJob(ctx context.Context, workerID string, job *queue.Job, logger *slog.Logger, elapsed time.Duration) {
	resultURL := strings.TrimSpace(job.ResultURL)
	done, err := m.store.Complete(ctx, job.ID, workerID, resultURL)
	if err != nil {
		if errors.Is(err, queue.ErrNotOwner) || errors.Is(err, queue.ErrTerminal) {
			logger.Warn("job finished after it was reaped; result discarded",
				logging.Error(err),
				logging.String(logging.FieldEventType, "job_result_discarded"),
			)
			return
		}
		m.failJob(ctx, workerID, "", job, fmt.Errorf("persist completion: %w", err), logger)
		return
	}
	m.publishStatus(ctx, done, logger)
	m.setLastJob(done)
	m.metrics.JobFinished(outcomeCompleted)
	logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_completed"),
		logging.String("result_url", resultURL),
		logging.Duration("job_duration", elapsed),
	)
	m.notifyCompleted(ctx, done)
}
