package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/MayankTamakuwala/TranscriBelt/internal/api"
	"github.com/MayankTamakuwala/TranscriBelt/internal/artifacts"
	"github.com/MayankTamakuwala/TranscriBelt/internal/config"
	"github.com/MayankTamakuwala/TranscriBelt/internal/logging"
	"github.com/MayankTamakuwala/TranscriBelt/internal/media"
	"github.com/MayankTamakuwala/TranscriBelt/internal/messaging"
	"github.com/MayankTamakuwala/TranscriBelt/internal/metrics"
	"github.com/MayankTamakuwala/TranscriBelt/internal/notifications"
	"github.com/MayankTamakuwala/TranscriBelt/internal/objectstore"
	"github.com/MayankTamakuwala/TranscriBelt/internal/pipeline"
	"github.com/MayankTamakuwala/TranscriBelt/internal/preflight"
	"github.com/MayankTamakuwala/TranscriBelt/internal/queue"
	"github.com/MayankTamakuwala/TranscriBelt/internal/ratelimit"
	"github.com/MayankTamakuwala/TranscriBelt/internal/services/llm"
	"github.com/MayankTamakuwala/TranscriBelt/internal/staging"
	"github.com/MayankTamakuwala/TranscriBelt/internal/statedb"
	"github.com/MayankTamakuwala/TranscriBelt/internal/status"
	"github.com/MayankTamakuwala/TranscriBelt/internal/summary"
	"github.com/MayankTamakuwala/TranscriBelt/internal/transcription"
	"github.com/MayankTamakuwala/TranscriBelt/internal/workflow"
)

const maintenanceInterval = time.Minute

// WorkspaceSweepAge is how long an unclaimed job directory survives before
// maintenance may remove it.
const WorkspaceSweepAge = time.Hour

// Daemon owns the shared stores and the components of each enabled role.
type Daemon struct {
	cfg      *config.Config
	roles    Roles
	logger   *slog.Logger
	metrics  *metrics.Metrics
	notifier notifications.Service

	state    *statedb.DB
	store    *queue.Store
	statuses *status.Store
	limiter  *ratelimit.Limiter
	objects  objectstore.Store
	messages messaging.Queue
	records  summary.RecordStore

	workflow *workflow.Manager
	poller   *summary.Poller
	server   *apiServer

	lock *flock.Flock

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type options struct {
	runner     media.Runner
	engine     transcription.Engine
	summarizer summary.Summarizer
	notifier   notifications.Service
	metrics    *metrics.Metrics
}

// Option customizes collaborators New would otherwise build from config.
type Option func(*options)

// WithRunner replaces the exec runner used for ffmpeg and whisperx.
func WithRunner(r media.Runner) Option {
	return func(o *options) { o.runner = r }
}

// WithEngine replaces the configured transcription engine.
func WithEngine(e transcription.Engine) Option {
	return func(o *options) { o.engine = e }
}

// WithSummarizer replaces the LLM summarizer.
func WithSummarizer(s summary.Summarizer) Option {
	return func(o *options) { o.summarizer = s }
}

// WithNotifier replaces the ntfy service.
func WithNotifier(n notifications.Service) Option {
	return func(o *options) { o.notifier = n }
}

// WithMetrics shares a metrics registry with the caller.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// New opens the stores the selected roles need and wires their components.
// Nothing runs until Start.
func New(ctx context.Context, cfg *config.Config, roles Roles, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires a config")
	}
	if len(roles) == 0 {
		return nil, errors.New("daemon requires at least one role")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = metrics.New()
	}
	if o.notifier == nil {
		o.notifier = notifications.NewService(cfg)
	}

	d := &Daemon{
		cfg:      cfg,
		roles:    roles,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		metrics:  o.metrics,
		notifier: o.notifier,
		lock:     flock.New(cfg.LockPath()),
	}
	if err := d.open(ctx, logger, o); err != nil {
		d.closeStores()
		return nil, err
	}
	return d, nil
}

func (d *Daemon) open(ctx context.Context, logger *slog.Logger, o options) error {
	cfg := d.cfg
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	var err error
	if d.state, err = statedb.Open(ctx, cfg); err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	d.statuses = status.NewStore(d.state, cfg.StatusTTL())

	if d.roles.Has(RoleIngress) || d.roles.Has(RoleWorker) {
		if d.store, err = queue.Open(cfg); err != nil {
			return fmt.Errorf("open job queue: %w", err)
		}
	}
	if d.objects, err = objectstore.Open(cfg.Storage); err != nil {
		return fmt.Errorf("open object store: %w", err)
	}
	if d.roles.Has(RoleWorker) || d.roles.Has(RoleConsumer) {
		if d.messages, err = messaging.Open(cfg.Messaging, d.state); err != nil {
			return fmt.Errorf("open message queue: %w", err)
		}
	}
	if d.roles.Has(RoleIngress) || d.roles.Has(RoleConsumer) {
		if d.records, err = summary.Open(cfg.Summary, d.state); err != nil {
			return fmt.Errorf("open summary store: %w", err)
		}
	}

	if d.roles.Has(RoleWorker) {
		publisher := artifacts.New(d.objects, d.messages, d.store, logger)
		set, err := pipeline.Build(cfg, pipeline.Options{
			Runner:    o.runner,
			Engine:    o.engine,
			Publisher: publisher,
			Metrics:   d.metrics,
			Logger:    logger,
		})
		if err != nil {
			return fmt.Errorf("build pipeline: %w", err)
		}
		d.workflow = workflow.NewManager(cfg, d.store, d.statuses, logger,
			workflow.WithNotifier(d.notifier),
			workflow.WithMetrics(d.metrics),
		)
		d.workflow.ConfigureStages(set)
	}

	if d.roles.Has(RoleConsumer) {
		summarizer := o.summarizer
		if summarizer == nil {
			summarizer = llm.FromConfig(cfg.LLM)
		}
		consumer := summary.NewConsumer(d.objects, summarizer, d.records, logger,
			summary.WithNotifier(d.notifier),
			summary.WithMetrics(d.metrics),
		)
		wait := time.Duration(cfg.Messaging.WaitSeconds) * time.Second
		d.poller = summary.NewPoller(d.messages, consumer, cfg.Messaging.BatchSize, wait, logger)
	}

	if d.roles.Has(RoleIngress) {
		if cfg.RateLimit.Enabled {
			d.limiter = ratelimit.New(d.state, cfg.RateLimit.Requests, cfg.RateLimitWindow())
		}
		var limiter api.Limiter
		if d.limiter != nil {
			limiter = d.limiter
		}
		d.server = newAPIServer(cfg, apiDeps{
			submitter: api.NewSubmitter(cfg, limiter, d.store, d.statuses, logger, api.WithSubmitMetrics(d.metrics)),
			statuses:  api.NewStatusService(d.statuses, d.store),
			downloads: api.NewDownloadService(d.store, d.objects),
			review:    api.NewReviewService(d.objects, d.records),
			health:    d.Health,
			metrics:   d.metrics,
		}, logger)
	}
	return nil
}

// Start launches every enabled role. The worker role fails fast when the
// lock is held elsewhere or preflight checks fail.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return errors.New("daemon already running")
	}
	runCtx, cancel := context.WithCancel(ctx)

	if d.roles.Has(RoleWorker) {
		if err := d.startWorker(runCtx); err != nil {
			cancel()
			return err
		}
	}
	if d.roles.Has(RoleConsumer) {
		d.reportPreflight("consumer", preflight.RunConsumerChecks(runCtx, d.cfg))
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := d.poller.Run(runCtx); err != nil {
				d.logger.Error("summary poller stopped", logging.Error(err))
			}
		}()
	}
	if d.roles.Has(RoleIngress) {
		d.reportPreflight("ingress", preflight.RunIngressChecks(d.cfg))
		if err := d.server.start(runCtx); err != nil {
			cancel()
			d.wg.Wait()
			d.stopWorker()
			return err
		}
	}

	d.wg.Add(1)
	go d.runMaintenance(runCtx)

	d.cancel = cancel
	d.running = true
	d.logger.Info("transcribelt daemon started",
		logging.String("roles", d.roles.String()),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

func (d *Daemon) startWorker(ctx context.Context) error {
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire worker lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another worker already holds %s", d.cfg.LockPath())
	}
	if _, err := d.workflow.ReapOrphans(ctx); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("fail orphaned jobs: %w", err)
	}
	if err := d.workflow.RunPreflight(ctx); err != nil {
		_ = d.lock.Unlock()
		return err
	}
	if err := d.workflow.Start(ctx); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	return nil
}

func (d *Daemon) stopWorker() {
	if d.workflow == nil {
		return
	}
	d.workflow.Stop()
	if d.lock.Locked() {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release worker lock", logging.Error(err))
		}
	}
}

// reportPreflight logs check results for roles that can run degraded.
func (d *Daemon) reportPreflight(role string, results []preflight.Result) {
	for _, r := range preflight.Failed(results) {
		logging.WarnWithContext(d.logger, "preflight check failed; role starts degraded", "preflight_failed",
			logging.String("role", role),
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
		)
	}
}

// Stop shuts down every role. In-flight jobs finish their current step.
func (d *Daemon) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	cancel := d.cancel
	d.running = false
	d.cancel = nil
	d.mu.Unlock()

	cancel()
	d.server.stop()
	d.stopWorker()
	d.wg.Wait()
	d.logger.Info("transcribelt daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and releases its stores.
func (d *Daemon) Close() error {
	d.Stop()
	return d.closeStores()
}

func (d *Daemon) closeStores() error {
	var errs []error
	if d.store != nil {
		errs = append(errs, d.store.Close())
		d.store = nil
	}
	if d.state != nil {
		errs = append(errs, d.state.Close())
		d.state = nil
	}
	return errors.Join(errs...)
}

// Addr reports the ingress listen address once started.
func (d *Daemon) Addr() string {
	return d.server.addr()
}

// Health summarizes the process for GET /healthz.
func (d *Daemon) Health(ctx context.Context) api.HealthResponse {
	var resp api.HealthResponse
	if d.workflow != nil {
		resp = api.FromStatusSummary(d.workflow.Status(ctx))
	} else {
		resp = api.HealthResponse{Status: "ok"}
		if d.store != nil {
			if stats, err := d.store.Stats(ctx); err == nil {
				resp.QueueStats = api.MergeQueueStats(stats)
			}
		}
	}
	if err := d.state.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.LastError = "state database unreachable"
	}
	resp.Roles = d.roles.Names()
	return resp
}

func (d *Daemon) runMaintenance(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Maintain(ctx)
		}
	}
}

// Maintain purges expired status snapshots and rate-limit windows, then
// sweeps job directories left behind by reaped or never-enqueued jobs.
func (d *Daemon) Maintain(ctx context.Context) {
	d.sweepWorkspaces(ctx)
	if n, err := d.statuses.PurgeExpired(ctx); err != nil {
		logging.WarnWithContext(d.logger, "status purge failed", "maintenance_failed", logging.Error(err))
	} else if n > 0 {
		d.logger.Debug("expired status snapshots purged", logging.Int64("count", n))
	}
	if d.limiter == nil {
		return
	}
	if n, err := d.limiter.PurgeExpired(ctx); err != nil {
		logging.WarnWithContext(d.logger, "rate limit purge failed", "maintenance_failed", logging.Error(err))
	} else if n > 0 {
		d.logger.Debug("expired rate limit windows purged", logging.Int64("count", n))
	}
}

func (d *Daemon) sweepWorkspaces(ctx context.Context) {
	if d.store == nil || d.cfg.Workflow.KeepWorkspace {
		return
	}
	opts := staging.SweepOptions{MinAge: WorkspaceSweepAge, Keep: staging.KeepActive(d.store)}
	for _, root := range []string{d.cfg.Paths.StagingDir, d.cfg.Paths.WorkDir} {
		result := staging.Sweep(ctx, root, opts, d.logger)
		if len(result.Removed) > 0 {
			d.logger.Info("stale job directories swept",
				logging.String("root", root),
				logging.Int("count", len(result.Removed)),
				logging.Int64("bytes", result.Bytes()),
				logging.String(logging.FieldEventType, "workspace_sweep"),
			)
		}
	}
}
