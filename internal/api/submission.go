package api

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/MayankTamakuwala/TranscriBelt/internal/config"
	"github.com/MayankTamakuwala/TranscriBelt/internal/logging"
	"github.com/MayankTamakuwala/TranscriBelt/internal/metrics"
	"github.com/MayankTamakuwala/TranscriBelt/internal/queue"
	"github.com/MayankTamakuwala/TranscriBelt/internal/ratelimit"
	"github.com/MayankTamakuwala/TranscriBelt/internal/services"
	"github.com/MayankTamakuwala/TranscriBelt/internal/status"
)

// AcceptedMessage is returned with every 202.
const AcceptedMessage = "Video accepted for processing"

// Limiter decides whether a client may submit. *ratelimit.Limiter satisfies it.
type Limiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Decision, error)
}

// Enqueuer records a new job. *queue.Store satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, id, inputPath, clientKey string) (*queue.Job, error)
}

// StatusWriter publishes job snapshots. *status.Store satisfies it.
type StatusWriter interface {
	Put(ctx context.Context, snap status.Snapshot) (bool, error)
}

// ThrottleError reports a rate-limit breach and when the window reopens.
type ThrottleError struct {
	RetryAfter time.Duration
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("%s, retry after %s", services.ErrThrottled, e.RetryAfter.Round(time.Second))
}

func (e *ThrottleError) Unwrap() error { return services.ErrThrottled }

// Upload is one submitted video.
type Upload struct {
	ClientKey    string
	DeclaredType string
	Body         io.Reader
}

// Submitter admits uploads into the job queue.
type Submitter struct {
	cfg      *config.Config
	limiter  Limiter
	queue    Enqueuer
	statuses StatusWriter
	metrics  *metrics.Metrics
	logger   *slog.Logger
	newID    func() string
}

// SubmitterOption configures optional Submitter behavior.
type SubmitterOption func(*Submitter)

// WithSubmitMetrics counts submissions by result.
func WithSubmitMetrics(m *metrics.Metrics) SubmitterOption {
	return func(s *Submitter) { s.metrics = m }
}

// WithIDGenerator replaces uuid.NewString for tests.
func WithIDGenerator(fn func() string) SubmitterOption {
	return func(s *Submitter) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewSubmitter builds a Submitter. limiter and statuses may be nil.
func NewSubmitter(cfg *config.Config, limiter Limiter, queue Enqueuer, statuses StatusWriter, logger *slog.Logger, opts ...SubmitterOption) *Submitter {
	s := &Submitter{
		cfg:      cfg,
		limiter:  limiter,
		queue:    queue,
		statuses: statuses,
		logger:   logging.NewComponentLogger(logger, "ingress"),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit runs the admission sequence: rate limit, type checks, staging, and
// enqueue. Nothing is staged or enqueued for a throttled or invalid upload,
// and a local failure removes whatever was staged.
func (s *Submitter) Submit(ctx context.Context, up Upload) (SubmitResponse, error) {
	resp, err := s.submit(ctx, up)
	s.metrics.Submission(submissionResult(err))
	return resp, err
}

func (s *Submitter) submit(ctx context.Context, up Upload) (SubmitResponse, error) {
	logger := logging.WithContext(ctx, s.logger).With(logging.String(logging.FieldClientKey, up.ClientKey))

	if s.limiter != nil {
		decision, err := s.limiter.Allow(ctx, up.ClientKey)
		if err != nil {
			return SubmitResponse{}, services.Wrap(services.ErrTransient, "ingress", "rate_limit", "Could not check rate limit", err)
		}
		if !decision.Allowed {
			logger.Info("submission throttled",
				logging.String(logging.FieldEventType, "submission_throttled"),
				logging.Int("count", decision.Count),
				logging.Int("limit", decision.Limit),
			)
			return SubmitResponse{}, &ThrottleError{RetryAfter: decision.RetryAfter}
		}
	}

	if err := CheckDeclaredType(up.DeclaredType); err != nil {
		return SubmitResponse{}, err
	}
	if up.Body == nil {
		return SubmitResponse{}, ErrEmptyUpload
	}
	body := bufio.NewReaderSize(up.Body, SniffLen)
	head, err := body.Peek(SniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		if isTooLarge(err) {
			return SubmitResponse{}, ErrTooLarge
		}
		return SubmitResponse{}, services.Wrap(services.ErrTransient, "ingress", "read", "Could not read upload", err)
	}
	container, err := SniffVideo(head)
	if err != nil {
		return SubmitResponse{}, err
	}

	jobID := s.newID()
	dir := s.cfg.JobStagingDir(jobID)
	inputPath := filepath.Join(dir, "input"+container.Extension)
	size, err := s.stage(dir, inputPath, body)
	if err != nil {
		_ = os.RemoveAll(dir)
		return SubmitResponse{}, err
	}

	job, err := s.queue.Enqueue(ctx, jobID, inputPath, up.ClientKey)
	if err != nil {
		_ = os.RemoveAll(dir)
		return SubmitResponse{}, services.Wrap(services.ErrTransient, "ingress", "enqueue", "Could not enqueue job", err)
	}
	if s.statuses != nil {
		if _, err := s.statuses.Put(ctx, status.FromJob(job)); err != nil {
			logger.Warn("initial status snapshot failed; status falls back to the queue",
				logging.String(logging.FieldJobID, jobID),
				logging.Error(err),
				logging.String(logging.FieldEventType, "status_write_failed"),
			)
		}
	}

	logger.Info("job submitted",
		logging.String(logging.FieldJobID, jobID),
		logging.String(logging.FieldEventType, "job_submitted"),
		logging.String("content_type", container.ContentType),
		logging.Int64("size_bytes", size),
	)
	return SubmitResponse{JobID: jobID, Message: AcceptedMessage}, nil
}

// stage streams body to path and fsyncs it, enforcing the upload cap.
func (s *Submitter) stage(dir, path string, body io.Reader) (int64, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, services.Wrap(services.ErrTransient, "ingress", "stage", "Could not create staging directory", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "ingress", "stage", "Could not create staging file", err)
	}
	limit := s.cfg.MaxUploadBytes()
	reader := body
	if limit > 0 {
		reader = io.LimitReader(body, limit+1)
	}
	n, err := io.Copy(f, reader)
	if err != nil {
		f.Close()
		if isTooLarge(err) {
			return n, ErrTooLarge
		}
		return n, services.Wrap(services.ErrTransient, "ingress", "stage", "Could not write upload", err)
	}
	if limit > 0 && n > limit {
		f.Close()
		return n, ErrTooLarge
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return n, services.Wrap(services.ErrTransient, "ingress", "stage", "Could not flush upload", err)
	}
	if err := f.Close(); err != nil {
		return n, services.Wrap(services.ErrTransient, "ingress", "stage", "Could not close upload", err)
	}
	return n, nil
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func submissionResult(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case errors.Is(err, services.ErrThrottled):
		return "throttled"
	case errors.Is(err, ErrTooLarge):
		return "too_large"
	case errors.Is(err, services.ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}
