package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MayankTamakuwala/TranscriBelt/internal/config"
	"github.com/MayankTamakuwala/TranscriBelt/internal/logging"
	"github.com/MayankTamakuwala/TranscriBelt/internal/metrics"
	"github.com/MayankTamakuwala/TranscriBelt/internal/notifications"
	"github.com/MayankTamakuwala/TranscriBelt/internal/pipeline"
	"github.com/MayankTamakuwala/TranscriBelt/internal/queue"
	"github.com/MayankTamakuwala/TranscriBelt/internal/status"
)

// StatusWriter receives the job snapshots pollers read. *status.Store
// satisfies it.
type StatusWriter interface {
	Put(ctx context.Context, snap status.Snapshot) (bool, error)
}

// Manager coordinates the worker pool that runs pipeline steps.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	statuses     StatusWriter
	logger       *slog.Logger
	notifier     notifications.Service
	metrics      *metrics.Metrics
	heartbeat    *HeartbeatMonitor
	pollInterval time.Duration
	workers      int
	now          func() time.Time

	steps []pipeline.Step

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
	lastJob *queue.Job
	active  map[string]string
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithNotifier replaces the ntfy service built from config.
func WithNotifier(notifier notifications.Service) ManagerOption {
	return func(m *Manager) {
		if notifier != nil {
			m.notifier = notifier
		}
	}
}

// WithMetrics records stage timings and job outcomes.
func WithMetrics(mx *metrics.Metrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = mx
	}
}

// WithClock overrides the reaper's time source.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager constructs a workflow manager. statuses may be nil when no
// snapshot store is shared with the ingress.
func NewManager(cfg *config.Config, store *queue.Store, statuses StatusWriter, logger *slog.Logger, opts ...ManagerOption) *Manager {
	logger = logging.NewComponentLogger(logger, "workflow-manager")
	workers := cfg.Workflow.Workers
	if workers <= 0 {
		workers = 1
	}
	pollInterval := cfg.PollInterval()
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	m := &Manager{
		cfg:          cfg,
		store:        store,
		statuses:     statuses,
		logger:       logger,
		notifier:     notifications.NewService(cfg),
		pollInterval: pollInterval,
		workers:      workers,
		now:          time.Now,
		active:       make(map[string]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.heartbeat = NewHeartbeatMonitor(store, logger, cfg.HeartbeatInterval(), cfg.HeartbeatTimeout())
	return m
}

// ConfigureStages registers the pipeline steps every job runs.
func (m *Manager) ConfigureStages(set pipeline.Set) {
	steps := set.Steps()
	m.mu.Lock()
	m.steps = steps
	m.mu.Unlock()
}

func (m *Manager) stepList() []pipeline.Step {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.steps
}
