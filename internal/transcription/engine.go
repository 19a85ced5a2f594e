package transcription

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MayankTamakuwala/TranscriBelt/internal/config"
	"github.com/MayankTamakuwala/TranscriBelt/internal/media"
	"github.com/MayankTamakuwala/TranscriBelt/internal/transcript"
)

// Engine converts an audio file into a timed transcript.
type Engine interface {
	Transcribe(ctx context.Context, audioPath, workDir string) (transcript.Transcript, error)
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, audioPath, workDir string) (transcript.Transcript, error)

// Transcribe calls f.
func (f EngineFunc) Transcribe(ctx context.Context, audioPath, workDir string) (transcript.Transcript, error) {
	return f(ctx, audioPath, workDir)
}

// WhisperX drives the whisperx CLI and reads its JSON output.
type WhisperX struct {
	cfg    config.Transcription
	runner media.Runner
}

// NewWhisperX builds the adapter. A nil runner uses media.ExecRunner.
func NewWhisperX(cfg config.Transcription, runner media.Runner) *WhisperX {
	if runner == nil {
		runner = media.ExecRunner{}
	}
	return &WhisperX{cfg: cfg, runner: runner}
}

// New selects the engine named in cfg.
func New(cfg config.Transcription, runner media.Runner) (Engine, error) {
	switch cfg.Engine {
	case config.EngineWhisperX, "":
		return NewWhisperX(cfg, runner), nil
	default:
		return nil, fmt.Errorf("unsupported transcription engine %q", cfg.Engine)
	}
}

// Transcribe runs whisperx on audioPath with word alignment, writing output
// into workDir.
func (w *WhisperX) Transcribe(ctx context.Context, audioPath, workDir string) (transcript.Transcript, error) {
	if audioPath == "" {
		return transcript.Transcript{}, fmt.Errorf("whisperx: audio path required")
	}
	if workDir == "" {
		workDir = filepath.Dir(audioPath)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return transcript.Transcript{}, fmt.Errorf("whisperx: ensure output dir: %w", err)
	}
	if w.cfg.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(w.cfg.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	if _, err := w.runner.Run(ctx, w.binary(), w.args(audioPath, workDir)...); err != nil {
		return transcript.Transcript{}, fmt.Errorf("whisperx: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	jsonPath := filepath.Join(workDir, base+".json")
	f, err := os.Open(jsonPath)
	if err != nil {
		return transcript.Transcript{}, fmt.Errorf("whisperx: open output: %w", err)
	}
	defer f.Close()
	return transcript.ParseWhisperX(f)
}

func (w *WhisperX) binary() string {
	if w.cfg.Binary == "" {
		return "whisperx"
	}
	return w.cfg.Binary
}

func (w *WhisperX) args(audioPath, outputDir string) []string {
	model := w.cfg.Model
	if model == "" {
		model = "base"
	}
	args := []string{
		audioPath,
		"--model", model,
		"--output_dir", outputDir,
		"--output_format", "json",
	}
	if w.cfg.Device != "" {
		args = append(args, "--device", w.cfg.Device)
	}
	if w.cfg.ComputeType != "" {
		args = append(args, "--compute_type", w.cfg.ComputeType)
	}
	if w.cfg.Language != "" {
		args = append(args, "--language", w.cfg.Language)
	}
	return args
}
