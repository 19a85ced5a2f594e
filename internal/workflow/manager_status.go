package workflow

import (
	"context"
	"errors"
	"log/slog"

	"github.com/MayankTamakuwala/TranscriBelt/internal/logging"
	"github.com/MayankTamakuwala/TranscriBelt/internal/queue"
	"github.com/MayankTamakuwala/TranscriBelt/internal/stage"
	"github.com/MayankTamakuwala/TranscriBelt/internal/status"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool
	Workers     int
	ActiveJobs  map[string]string
	LastError   string
	LastJob     *queue.Job
	QueueStats  map[queue.Stage]int
	StageHealth stage.Report
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastJob := m.lastJob
	steps := m.steps
	active := make(map[string]string, len(m.active))
	for jobID, worker := range m.active {
		active[jobID] = worker
	}
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}

	health := make(stage.Report, len(steps))
	for _, step := range steps {
		health[step.Name] = step.Handler.HealthCheck(ctx)
	}

	summary := StatusSummary{
		Running:     running,
		Workers:     m.workers,
		ActiveJobs:  active,
		QueueStats:  stats,
		StageHealth: health,
	}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastJob != nil {
		copy := *lastJob
		summary.LastJob = &copy
	}
	return summary
}

// publishStatus mirrors the queue row into the snapshot store. The queue is
// authoritative, so a failed snapshot write is logged and otherwise ignored.
func (m *Manager) publishStatus(ctx context.Context, job *queue.Job, logger *slog.Logger) {
	if m.statuses == nil || job == nil {
		return
	}
	applied, err := m.statuses.Put(ctx, status.FromJob(job))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		logger.Warn("status snapshot write failed; pollers fall back to the queue",
			logging.Error(err),
			logging.String(logging.FieldEventType, "status_write_failed"),
			logging.String(logging.FieldErrorHint, "check state database access"),
		)
		return
	}
	if !applied {
		logger.Debug("status snapshot not applied",
			logging.String("stage", string(job.Stage)),
			logging.Float64("progress", job.Progress),
		)
	}
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(job *queue.Job) {
	m.mu.Lock()
	if job != nil {
		copy := *job
		m.lastJob = &copy
	} else {
		m.lastJob = nil
	}
	m.mu.Unlock()
}

func (m *Manager) trackActive(jobID, workerID string) {
	m.mu.Lock()
	m.active[jobID] = workerID
	m.mu.Unlock()
}

func (m *Manager) untrackActive(jobID string) {
	m.mu.Lock()
	delete(m.active, jobID)
	m.mu.Unlock()
}
