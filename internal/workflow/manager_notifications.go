package workflow

import (
	"context"
	"errors"

	"github.com/MayankTamakuwala/TranscriBelt/internal/logging"
	"github.com/MayankTamakuwala/TranscriBelt/internal/notifications"
	"github.com/MayankTamakuwala/TranscriBelt/internal/queue"
)

func (m *Manager) notifyCompleted(ctx context.Context, job *queue.Job) {
	m.publish(ctx, notifications.EventJobCompleted, notifications.Payload{
		"jobID":     job.ID,
		"resultURL": job.ResultURL,
	})
}

func (m *Manager) notifyFailed(ctx context.Context, job *queue.Job, stageName string) {
	m.publish(ctx, notifications.EventJobFailed, notifications.Payload{
		"jobID": job.ID,
		"stage": stageName,
		"error": job.ErrorMessage,
	})
}

func (m *Manager) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Publish(ctx, event, payload); err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("daemon shutting down, could not send notification", logging.String("event", string(event)))
			return
		}
		m.logger.Debug("notification failed",
			logging.String("event", string(event)),
			logging.Error(err),
		)
	}
}
