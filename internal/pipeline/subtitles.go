package pipeline

import (
	"context"
	"log/slog"

	"github.com/MayankTamakuwala/TranscriBelt/internal/config"
	"github.com/MayankTamakuwala/TranscriBelt/internal/logging"
	"github.com/MayankTamakuwala/TranscriBelt/internal/queue"
	"github.com/MayankTamakuwala/TranscriBelt/internal/services"
	"github.com/MayankTamakuwala/TranscriBelt/internal/stage"
	"github.com/MayankTamakuwala/TranscriBelt/internal/subtitles"
	"github.com/MayankTamakuwala/TranscriBelt/internal/transcript"
)

// SubtitleBuilder writes the SRT sidecar. An empty transcript yields an
// empty file.
type SubtitleBuilder struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewSubtitleBuilder builds the SRT stage.
func NewSubtitleBuilder(cfg *config.Config, logger *slog.Logger) *SubtitleBuilder {
	return &SubtitleBuilder{cfg: cfg, logger: logging.NewComponentLogger(logger, "subtitles")}
}

func (s *SubtitleBuilder) Prepare(context.Context, *queue.Job) error { return nil }

func (s *SubtitleBuilder) Execute(ctx context.Context, job *queue.Job) error {
	ws := WorkspaceFor(s.cfg, job)
	tr, err := transcript.Load(ws.TranscriptPath())
	if err != nil {
		return stage.Failure(StageSubtitles, services.ErrTransient, "load transcript", "Transcript missing", err)
	}
	cues := subtitles.Build(tr)
	if err := subtitles.WriteFile(ws.SubtitlePath(), cues); err != nil {
		return stage.Failure(StageSubtitles, services.ErrTransient, "write", "Could not write subtitles", err)
	}
	logging.WithContext(ctx, s.logger).Info("subtitles written",
		logging.String(logging.FieldEventType, "subtitles_built"),
		logging.Int("cues", len(cues)),
	)
	return nil
}

func (s *SubtitleBuilder) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(StageSubtitles)
}
