package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/MayankTamakuwala/TranscriBelt/internal/captions"
	"github.com/MayankTamakuwala/TranscriBelt/internal/config"
	"github.com/MayankTamakuwala/TranscriBelt/internal/logging"
	"github.com/MayankTamakuwala/TranscriBelt/internal/media"
	"github.com/MayankTamakuwala/TranscriBelt/internal/queue"
	"github.com/MayankTamakuwala/TranscriBelt/internal/services"
	"github.com/MayankTamakuwala/TranscriBelt/internal/stage"
	"github.com/MayankTamakuwala/TranscriBelt/internal/transcript"
)

// FrameRater reports the presentation frame rate of a video.
type FrameRater interface {
	Probe(ctx context.Context, path string) (media.ProbeResult, error)
}

// CaptionRenderer burns captions into every frame that has an active
// segment and re-encodes a silent video.
type CaptionRenderer struct {
	cfg    *config.Config
	codec  media.FrameCodec
	probe  FrameRater
	style  captions.Style
	logger *slog.Logger
}

// NewCaptionRenderer builds the render stage. *media.Tools satisfies both
// codec and probe.
func NewCaptionRenderer(cfg *config.Config, codec media.FrameCodec, probe FrameRater, style captions.Style, logger *slog.Logger) *CaptionRenderer {
	return &CaptionRenderer{
		cfg:    cfg,
		codec:  codec,
		probe:  probe,
		style:  style,
		logger: logging.NewComponentLogger(logger, "renderer"),
	}
}

func (r *CaptionRenderer) Prepare(_ context.Context, job *queue.Job) error {
	ws := WorkspaceFor(r.cfg, job)
	// A rendered file from an earlier attempt must not be mistaken for output.
	if err := os.Remove(ws.RenderedPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear previous render: %w", err)
	}
	return os.RemoveAll(ws.FramesDir())
}

func (r *CaptionRenderer) Execute(ctx context.Context, job *queue.Job) error {
	ws := WorkspaceFor(r.cfg, job)
	logger := logging.WithContext(ctx, r.logger)

	tr, err := transcript.Load(ws.TranscriptPath())
	if err != nil {
		return stage.Failure(StageRender, services.ErrTransient, "load transcript", "Transcript missing", err)
	}
	if tr.Empty() {
		logger.Info("no captions to draw; reusing input video",
			logging.String(logging.FieldEventType, "render_skipped"),
		)
		return nil
	}

	probe, err := r.probe.Probe(ctx, ws.Input)
	if err != nil {
		return stage.Failure(StageRender, services.ErrExternalTool, "ffprobe", "Could not inspect video", err)
	}
	fps, err := probe.FrameRate()
	if err != nil {
		return stage.Failure(StageRender, services.ErrValidation, "frame rate", "Video frame rate unknown", err)
	}

	frames, err := r.codec.Decode(ctx, ws.Input, ws.FramesDir())
	if err != nil {
		return stage.Failure(StageRender, services.ErrExternalTool, "decode", "Frame decode failed", err)
	}
	defer os.RemoveAll(ws.FramesDir())

	renderer := captions.NewRenderer(tr, r.style)
	drawn := 0
	for i, path := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		t := float64(i) / fps
		if _, active := renderer.Active(t); !active {
			continue
		}
		frame, err := media.LoadFrame(path)
		if err != nil {
			return stage.Failure(StageRender, services.ErrTransient, "load frame", "Could not read frame", err)
		}
		out, changed := renderer.Render(frame, t)
		if !changed {
			continue
		}
		if err := media.SaveFrame(path, out); err != nil {
			return stage.Failure(StageRender, services.ErrTransient, "save frame", "Could not write frame", err)
		}
		drawn++
	}

	if err := r.codec.Encode(ctx, ws.FramesDir(), fps, ws.RenderedPath()); err != nil {
		return stage.Failure(StageRender, services.ErrExternalTool, "encode", "Frame encode failed", err)
	}
	logger.Info("captions rendered",
		logging.String(logging.FieldEventType, "captions_rendered"),
		logging.Int("frames", len(frames)),
		logging.Int("frames_drawn", drawn),
		logging.Float64("fps", fps),
	)
	return nil
}

func (r *CaptionRenderer) HealthCheck(context.Context) stage.Health {
	return binaryHealth(StageRender, "ffmpeg", r.cfg.Media.FFmpegBinary)
}
