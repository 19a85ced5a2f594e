package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/MayankTamakuwala/TranscriBelt/internal/artifacts"
	"github.com/MayankTamakuwala/TranscriBelt/internal/captions"
	"github.com/MayankTamakuwala/TranscriBelt/internal/config"
	"github.com/MayankTamakuwala/TranscriBelt/internal/media"
	"github.com/MayankTamakuwala/TranscriBelt/internal/metrics"
	"github.com/MayankTamakuwala/TranscriBelt/internal/queue"
	"github.com/MayankTamakuwala/TranscriBelt/internal/stage"
	"github.com/MayankTamakuwala/TranscriBelt/internal/transcription"
)

// Stage names used in logs, metrics, and failure messages.
const (
	StageAudio      = "extract_audio"
	StageTranscribe = "transcribe"
	StageSubtitles  = "build_subtitles"
	StageRender     = "render_captions"
	StageMux        = "mux"
	StagePublish    = "publish"
)

// Step binds a handler to the checkpoint persisted after it succeeds. Steps
// without a checkpoint run between checkpoints.
type Step struct {
	Name       string
	Handler    stage.Handler
	Checkpoint queue.Stage
}

// Set holds the concrete handlers the workflow manager runs in order.
type Set struct {
	Audio      stage.Handler
	Transcribe stage.Handler
	Subtitles  stage.Handler
	Render     stage.Handler
	Mux        stage.Handler
	Publish    stage.Handler
}

// Steps lists the handlers in execution order. Nil handlers are skipped.
func (s Set) Steps() []Step {
	all := []Step{
		{Name: StageAudio, Handler: s.Audio, Checkpoint: queue.StageAudioExtracted},
		{Name: StageTranscribe, Handler: s.Transcribe, Checkpoint: queue.StageTranscribed},
		{Name: StageSubtitles, Handler: s.Subtitles, Checkpoint: queue.StageSubtitlesBuilt},
		{Name: StageRender, Handler: s.Render},
		{Name: StageMux, Handler: s.Mux},
		{Name: StagePublish, Handler: s.Publish},
	}
	steps := make([]Step, 0, len(all))
	for _, step := range all {
		if step.Handler != nil {
			steps = append(steps, step)
		}
	}
	return steps
}

// Options carries the collaborators Build cannot derive from config.
type Options struct {
	// Runner executes ffmpeg, ffprobe, and whisperx. Nil uses media.ExecRunner.
	Runner media.Runner
	// Engine overrides the configured transcription engine.
	Engine    transcription.Engine
	Publisher *artifacts.Publisher
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Build assembles the standard stage set from cfg.
func Build(cfg *config.Config, opts Options) (Set, error) {
	tools := media.NewTools(cfg.Media, opts.Runner)
	engine := opts.Engine
	if engine == nil {
		var err error
		engine, err = transcription.New(cfg.Transcription, opts.Runner)
		if err != nil {
			return Set{}, err
		}
	}
	style, err := captions.StyleFromConfig(cfg.Captions)
	if err != nil {
		return Set{}, fmt.Errorf("caption style: %w", err)
	}
	return Set{
		Audio:      NewAudioExtractor(cfg, tools, opts.Logger),
		Transcribe: NewTranscriber(cfg, engine, opts.Logger),
		Subtitles:  NewSubtitleBuilder(cfg, opts.Logger),
		Render:     NewCaptionRenderer(cfg, tools, tools, style, opts.Logger),
		Mux:        NewMuxer(cfg, tools, opts.Logger),
		Publish:    NewPublisher(cfg, opts.Publisher, opts.Metrics, opts.Logger),
	}, nil
}
