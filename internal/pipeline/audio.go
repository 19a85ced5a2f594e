package pipeline

import (
	"context"
	"log/slog"

	"github.com/MayankTamakuwala/TranscriBelt/internal/config"
	"github.com/MayankTamakuwala/TranscriBelt/internal/deps"
	"github.com/MayankTamakuwala/TranscriBelt/internal/logging"
	"github.com/MayankTamakuwala/TranscriBelt/internal/media"
	"github.com/MayankTamakuwala/TranscriBelt/internal/queue"
	"github.com/MayankTamakuwala/TranscriBelt/internal/services"
	"github.com/MayankTamakuwala/TranscriBelt/internal/stage"
)

// AudioExtractor writes a 16 kHz mono WAV for the transcription engine.
type AudioExtractor struct {
	cfg    *config.Config
	tools  *media.Tools
	logger *slog.Logger
}

// NewAudioExtractor builds the audio stage.
func NewAudioExtractor(cfg *config.Config, tools *media.Tools, logger *slog.Logger) *AudioExtractor {
	return &AudioExtractor{cfg: cfg, tools: tools, logger: logging.NewComponentLogger(logger, "audio")}
}

func (a *AudioExtractor) Prepare(_ context.Context, job *queue.Job) error {
	return WorkspaceFor(a.cfg, job).Ensure()
}

func (a *AudioExtractor) Execute(ctx context.Context, job *queue.Job) error {
	ws := WorkspaceFor(a.cfg, job)
	silent, err := a.tools.ExtractAudio(ctx, ws.Input, ws.AudioPath())
	if err != nil {
		return stage.Failure(StageAudio, services.ErrExternalTool, "ffmpeg", "Audio extraction failed", err)
	}
	logging.WithContext(ctx, a.logger).Info("audio extracted",
		logging.String(logging.FieldEventType, "audio_extracted"),
		logging.Bool("synthesized_silence", silent),
	)
	return nil
}

func (a *AudioExtractor) HealthCheck(context.Context) stage.Health {
	return binaryHealth(StageAudio, "ffmpeg", a.cfg.Media.FFmpegBinary)
}

func binaryHealth(name, label, command string) stage.Health {
	status := deps.Lookup(label, command)
	if !status.Available {
		return stage.Unhealthy(name, status.Detail)
	}
	return stage.Healthy(name)
}
