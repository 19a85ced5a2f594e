package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MayankTamakuwala/TranscriBelt/internal/logging"
	"github.com/MayankTamakuwala/TranscriBelt/internal/queue"
	"github.com/MayankTamakuwala/TranscriBelt/internal/services"
)

func (m *Manager) failJob(ctx context.Context, workerID, stageName string, job *queue.Job, stageErr error, logger *slog.Logger) {
	message := classifyFailure(stageName, stageErr)
	details := services.Details(stageErr)
	if details.Stage != "" {
		stageName = details.Stage
	}

	attrs := []logging.Attr{
		logging.String(logging.FieldStage, stageName),
		logging.String("error_message", message),
		logging.Alert("stage_failure"),
		logging.String(logging.FieldErrorKind, string(details.Kind)),
		logging.String(logging.FieldErrorHint, details.Hint),
	}
	if details.Cause != nil {
		attrs = append(attrs, logging.Error(details.Cause))
	} else {
		attrs = append(attrs, logging.Error(stageErr))
	}
	attrs = append(attrs, logging.String(logging.FieldEventType, "job_failed"))
	logger.Error("job failed", logging.Args(attrs...)...)

	m.setLastError(stageErr)
	failed, err := m.store.Fail(ctx, job.ID, workerID, message)
	if err != nil {
		if errors.Is(err, queue.ErrNotOwner) || errors.Is(err, queue.ErrTerminal) {
			logger.Debug("job already terminal; failure not recorded", logging.Error(err))
		} else {
			logger.Error("failed to persist job failure",
				logging.Error(err),
				logging.String(logging.FieldEventType, "job_fail_persist_failed"),
				logging.String(logging.FieldErrorHint, "the reaper will fail the job once its heartbeat expires"),
			)
		}
		return
	}
	m.publishStatus(ctx, failed, logger)
	m.setLastJob(failed)
	m.metrics.JobFinished(outcomeFailed)
	m.notifyFailed(ctx, failed, stageName)
}

// classifyFailure derives the message stored on the job: the stage and its
// curated message. Tool output and other causes stay in the logs.
func classifyFailure(stageName string, stageErr error) string {
	if stageErr == nil {
		return failureMessage(stageName, "failed without error detail")
	}
	var se *services.StageError
	if !errors.As(stageErr, &se) {
		return failureMessage(stageName, "failed")
	}
	return services.UserMessage(stageErr)
}

func failureMessage(stageName, defaultMsg string) string {
	if stageName != "" {
		return fmt.Sprintf("%s %s", stageName, defaultMsg)
	}
	return fmt.Sprintf("workflow %s", defaultMsg)
}

// ReapStale fails every claimed job whose heartbeat expired and publishes
// their terminal snapshots. It returns the reaped jobs.
func (m *Manager) ReapStale(ctx context.Context) ([]*queue.Job, error) {
	lost, err := m.heartbeat.FailStale(ctx, m.now())
	if err != nil {
		return nil, err
	}
	for _, job := range lost {
		logger := logging.WithContext(withJobContext(ctx, job.ID, job.WorkerID), m.logger)
		logger.Warn("job heartbeat expired; marked failed",
			logging.String(logging.FieldEventType, "job_lost"),
			logging.String(logging.FieldErrorHint, "check worker host health and heartbeat_timeout"),
			logging.Alert("job_lost"),
		)
		m.publishStatus(ctx, job, logger)
		m.metrics.JobFinished(outcomeLost)
		m.notifyFailed(ctx, job, "")
	}
	return lost, nil
}

// ReapOrphans fails every claimed job left by a previous daemon. Call it
// before Start while holding the worker lock.
func (m *Manager) ReapOrphans(ctx context.Context) ([]*queue.Job, error) {
	orphans, err := m.store.FailOrphaned(ctx)
	if err != nil {
		return nil, err
	}
	for _, job := range orphans {
		logger := logging.WithContext(withJobContext(ctx, job.ID, job.WorkerID), m.logger)
		logger.Warn("job orphaned by restart; marked failed",
			logging.String(logging.FieldEventType, "job_orphaned"),
			logging.String(logging.FieldErrorHint, "resubmit the video"),
		)
		m.publishStatus(ctx, job, logger)
		m.metrics.JobFinished(outcomeLost)
	}
	return orphans, nil
}
