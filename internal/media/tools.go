package media

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/MayankTamakuwala/TranscriBelt/internal/config"
)

// Tools wraps the ffmpeg and ffprobe invocations used by the pipeline.
type Tools struct {
	ffmpeg     string
	ffprobe    string
	sampleRate int
	videoCodec string
	timeout    time.Duration
	runner     Runner
}

// NewTools builds Tools from the [media] section. A nil runner uses ExecRunner.
func NewTools(cfg config.Media, runner Runner) *Tools {
	if runner == nil {
		runner = ExecRunner{}
	}
	t := &Tools{
		ffmpeg:     cfg.FFmpegBinary,
		ffprobe:    cfg.FFprobeBinary,
		sampleRate: cfg.AudioSampleRate,
		videoCodec: cfg.VideoCodec,
		runner:     runner,
	}
	if t.ffmpeg == "" {
		t.ffmpeg = "ffmpeg"
	}
	if t.ffprobe == "" {
		t.ffprobe = "ffprobe"
	}
	if t.sampleRate <= 0 {
		t.sampleRate = 16000
	}
	if t.videoCodec == "" {
		t.videoCodec = "libx264"
	}
	if cfg.CommandTimeoutSeconds > 0 {
		t.timeout = time.Duration(cfg.CommandTimeoutSeconds) * time.Second
	}
	return t
}

func (t *Tools) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.timeout)
}

func (t *Tools) ffmpegRun(ctx context.Context, args ...string) error {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()
	base := []string{"-hide_banner", "-nostdin", "-loglevel", "error", "-y"}
	if _, err := t.runner.Run(ctx, t.ffmpeg, append(base, args...)...); err != nil {
		return err
	}
	return nil
}

// ExtractAudio writes a mono PCM WAV of the input's first audio stream. Inputs
// without audio get a silent track of the same duration so downstream stages
// always have something to transcribe.
func (t *Tools) ExtractAudio(ctx context.Context, input, dest string) (silent bool, err error) {
	probe, err := t.Probe(ctx, input)
	if err != nil {
		return false, fmt.Errorf("probe input: %w", err)
	}
	rate := strconv.Itoa(t.sampleRate)
	if !probe.HasAudio() {
		duration := probe.DurationSeconds()
		if duration <= 0 {
			duration = 1
		}
		args := []string{
			"-f", "lavfi",
			"-i", "anullsrc=r=" + rate + ":cl=mono",
			"-t", strconv.FormatFloat(duration, 'f', 3, 64),
			"-c:a", "pcm_s16le",
			dest,
		}
		if err := t.ffmpegRun(ctx, args...); err != nil {
			return true, fmt.Errorf("synthesize silent audio: %w", err)
		}
		return true, nil
	}
	args := []string{
		"-i", input,
		"-vn",
		"-ac", "1",
		"-ar", rate,
		"-c:a", "pcm_s16le",
		dest,
	}
	if err := t.ffmpegRun(ctx, args...); err != nil {
		return false, fmt.Errorf("extract audio: %w", err)
	}
	return false, nil
}

// Mux copies the video stream of video and the first audio stream of
// audioSource, if any, into dest.
func (t *Tools) Mux(ctx context.Context, video, audioSource, dest string) error {
	args := []string{
		"-i", video,
		"-i", audioSource,
		"-map", "0:v:0",
		"-map", "1:a:0?",
		"-c:v", "copy",
		"-c:a", "aac",
		"-movflags", "+faststart",
		"-shortest",
		dest,
	}
	if err := t.ffmpegRun(ctx, args...); err != nil {
		return fmt.Errorf("mux: %w", err)
	}
	return nil
}
