package pipeline

import (
	"context"
	"log/slog"

	"github.com/MayankTamakuwala/TranscriBelt/internal/config"
	"github.com/MayankTamakuwala/TranscriBelt/internal/logging"
	"github.com/MayankTamakuwala/TranscriBelt/internal/media"
	"github.com/MayankTamakuwala/TranscriBelt/internal/queue"
	"github.com/MayankTamakuwala/TranscriBelt/internal/services"
	"github.com/MayankTamakuwala/TranscriBelt/internal/stage"
)

// Muxer joins the captioned video with the original audio track.
type Muxer struct {
	cfg    *config.Config
	tools  *media.Tools
	logger *slog.Logger
}

// NewMuxer builds the mux stage.
func NewMuxer(cfg *config.Config, tools *media.Tools, logger *slog.Logger) *Muxer {
	return &Muxer{cfg: cfg, tools: tools, logger: logging.NewComponentLogger(logger, "muxer")}
}

func (m *Muxer) Prepare(context.Context, *queue.Job) error { return nil }

func (m *Muxer) Execute(ctx context.Context, job *queue.Job) error {
	ws := WorkspaceFor(m.cfg, job)
	video := ws.VideoSource()
	if err := m.tools.Mux(ctx, video, ws.Input, ws.OutputPath()); err != nil {
		return stage.Failure(StageMux, services.ErrExternalTool, "ffmpeg", "Muxing failed", err)
	}
	logging.WithContext(ctx, m.logger).Info("output muxed",
		logging.String(logging.FieldEventType, "muxed"),
		logging.Bool("rendered", video != ws.Input),
	)
	return nil
}

func (m *Muxer) HealthCheck(context.Context) stage.Health {
	return binaryHealth(StageMux, "ffmpeg", m.cfg.Media.FFmpegBinary)
}
