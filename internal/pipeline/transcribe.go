package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/MayankTamakuwala/TranscriBelt/internal/config"
	"github.com/MayankTamakuwala/TranscriBelt/internal/logging"
	"github.com/MayankTamakuwala/TranscriBelt/internal/queue"
	"github.com/MayankTamakuwala/TranscriBelt/internal/services"
	"github.com/MayankTamakuwala/TranscriBelt/internal/stage"
	"github.com/MayankTamakuwala/TranscriBelt/internal/transcription"
)

// Transcriber runs the speech engine and stores a normalized transcript.
type Transcriber struct {
	cfg    *config.Config
	engine transcription.Engine
	logger *slog.Logger
}

// NewTranscriber wraps engine as a pipeline stage.
func NewTranscriber(cfg *config.Config, engine transcription.Engine, logger *slog.Logger) *Transcriber {
	return &Transcriber{cfg: cfg, engine: engine, logger: logging.NewComponentLogger(logger, "transcriber")}
}

func (t *Transcriber) Prepare(_ context.Context, job *queue.Job) error {
	if t.engine == nil {
		return stage.Failure(StageTranscribe, services.ErrConfiguration, "init", "Transcription engine unavailable", nil)
	}
	return WorkspaceFor(t.cfg, job).Ensure()
}

func (t *Transcriber) Execute(ctx context.Context, job *queue.Job) error {
	ws := WorkspaceFor(t.cfg, job)
	tr, err := t.engine.Transcribe(ctx, ws.AudioPath(), ws.Dir)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return stage.Failure(StageTranscribe, services.ErrExternalTool, "transcribe", "Transcription failed", err)
	}
	tr.Normalize()
	if err := tr.Validate(t.cfg.Workflow.RejectUnorderedSegments); err != nil {
		return stage.Failure(StageTranscribe, services.ErrValidation, "validate", "Transcript timing invalid", err)
	}
	if err := tr.Save(ws.TranscriptPath()); err != nil {
		return stage.Failure(StageTranscribe, services.ErrTransient, "save", "Could not store transcript", err)
	}
	logging.WithContext(ctx, t.logger).Info("transcript ready",
		logging.String(logging.FieldEventType, "transcribed"),
		logging.Int("segments", len(tr.Segments)),
		logging.String("language", tr.Language),
	)
	return nil
}

func (t *Transcriber) HealthCheck(context.Context) stage.Health {
	if t.engine == nil {
		return stage.Unhealthy(StageTranscribe, "engine not configured")
	}
	if _, ok := t.engine.(*transcription.WhisperX); ok {
		return binaryHealth(StageTranscribe, "whisperx", t.cfg.Transcription.Binary)
	}
	return stage.Healthy(StageTranscribe)
}
