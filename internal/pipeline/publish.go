package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/MayankTamakuwala/TranscriBelt/internal/artifacts"
	"github.com/MayankTamakuwala/TranscriBelt/internal/config"
	"github.com/MayankTamakuwala/TranscriBelt/internal/logging"
	"github.com/MayankTamakuwala/TranscriBelt/internal/metrics"
	"github.com/MayankTamakuwala/TranscriBelt/internal/queue"
	"github.com/MayankTamakuwala/TranscriBelt/internal/services"
	"github.com/MayankTamakuwala/TranscriBelt/internal/stage"
)

// Publisher uploads the captioned video and then the SRT. Only the SRT
// triggers a downstream message. On success job.ResultURL points at the
// video download.
type Publisher struct {
	cfg       *config.Config
	publisher *artifacts.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewPublisher builds the publish stage.
func NewPublisher(cfg *config.Config, publisher *artifacts.Publisher, m *metrics.Metrics, logger *slog.Logger) *Publisher {
	return &Publisher{cfg: cfg, publisher: publisher, metrics: m, logger: logging.NewComponentLogger(logger, "publish")}
}

func (p *Publisher) Prepare(context.Context, *queue.Job) error {
	if p.publisher == nil {
		return stage.Failure(StagePublish, services.ErrConfiguration, "init", "Artifact publisher unavailable", nil)
	}
	return nil
}

func (p *Publisher) Execute(ctx context.Context, job *queue.Job) error {
	ws := WorkspaceFor(p.cfg, job)
	video, err := p.publisher.Publish(ctx, job.ID, ws.OutputPath(), queue.ArtifactVideo)
	if err != nil {
		return p.fail("video", err)
	}
	p.metrics.ArtifactPublished(string(queue.ArtifactVideo))

	if _, err := p.publisher.Publish(ctx, job.ID, ws.SubtitlePath(), queue.ArtifactText); err != nil {
		return p.fail("subtitles", err)
	}
	p.metrics.ArtifactPublished(string(queue.ArtifactText))

	job.ResultURL = artifacts.DownloadURL(p.cfg.API.PublicURL, video.Name)
	logging.WithContext(ctx, p.logger).Info("artifacts published",
		logging.String(logging.FieldEventType, "published"),
		logging.String("result_url", job.ResultURL),
	)
	return nil
}

func (p *Publisher) fail(what string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	marker := services.ErrTransient
	if errors.Is(err, services.ErrConfiguration) {
		marker = services.ErrConfiguration
	}
	return stage.Failure(StagePublish, marker, "upload "+what, "Publishing failed", err)
}

func (p *Publisher) HealthCheck(context.Context) stage.Health {
	if p.publisher == nil {
		return stage.Unhealthy(StagePublish, "object store not configured")
	}
	return stage.Healthy(StagePublish)
}
