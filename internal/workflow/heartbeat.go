package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/MayankTamakuwala/TranscriBelt/internal/logging"
	"github.com/MayankTamakuwala/TranscriBelt/internal/queue"
)

// HeartbeatMonitor refreshes claimed jobs and fails the ones whose worker
// went quiet.
type HeartbeatMonitor struct {
	store             *queue.Store
	logger            *slog.Logger
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
}

// NewHeartbeatMonitor creates a new monitor.
func NewHeartbeatMonitor(store *queue.Store, logger *slog.Logger, interval, timeout time.Duration) *HeartbeatMonitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &HeartbeatMonitor{
		store:             store,
		logger:            logger,
		heartbeatInterval: interval,
		heartbeatTimeout:  timeout,
	}
}

// FailStale fails claimed jobs whose heartbeat is older than the timeout as
// measured from now.
func (h *HeartbeatMonitor) FailStale(ctx context.Context, now time.Time) ([]*queue.Job, error) {
	if h.heartbeatTimeout <= 0 {
		return nil, nil
	}
	return h.store.FailStale(ctx, now.Add(-h.heartbeatTimeout))
}

// StartLoop refreshes the heartbeat of jobID until ctx is cancelled. It stops
// early once the job is no longer owned by workerID.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup, jobID, workerID string) {
	defer wg.Done()
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	logger := logging.WithContext(ctx, logging.NewComponentLogger(h.logger, "workflow-heartbeat"))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := h.store.UpdateHeartbeat(ctx, jobID, workerID)
			switch {
			case err == nil:
			case errors.Is(err, context.Canceled):
				return
			case errors.Is(err, queue.ErrNotOwner), errors.Is(err, queue.ErrTerminal):
				logger.Warn("job no longer owned by this worker; heartbeat stopped",
					logging.Error(err),
					logging.String(logging.FieldEventType, "heartbeat_lost"),
				)
				return
			default:
				logger.Warn("heartbeat update failed", logging.Error(err))
			}
		}
	}
}
