package media

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/disintegration/imaging"
)

const framePattern = "frame_%08d.png"

// FrameCodec turns a video into numbered still frames and back.
type FrameCodec interface {
	// Decode writes every frame of input into dir and returns the frame paths
	// in presentation order.
	Decode(ctx context.Context, input, dir string) ([]string, error)
	// Encode assembles the frames in dir into a silent video at fps.
	Encode(ctx context.Context, dir string, fps float64, dest string) error
}

// Decode implements FrameCodec with ffmpeg's image2 muxer.
func (t *Tools) Decode(ctx context.Context, input, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure frame dir: %w", err)
	}
	args := []string{
		"-i", input,
		"-map", "0:v:0",
		"-fps_mode", "passthrough",
		"-f", "image2",
		filepath.Join(dir, framePattern),
	}
	if err := t.ffmpegRun(ctx, args...); err != nil {
		return nil, fmt.Errorf("decode frames: %w", err)
	}
	return ListFrames(dir)
}

// Encode implements FrameCodec.
func (t *Tools) Encode(ctx context.Context, dir string, fps float64, dest string) error {
	if fps <= 0 {
		return fmt.Errorf("encode frames: invalid frame rate %v", fps)
	}
	args := []string{
		"-framerate", strconv.FormatFloat(fps, 'f', -1, 64),
		"-i", filepath.Join(dir, framePattern),
		"-an",
		"-c:v", t.videoCodec,
		"-pix_fmt", "yuv420p",
		dest,
	}
	if err := t.ffmpegRun(ctx, args...); err != nil {
		return fmt.Errorf("encode frames: %w", err)
	}
	return nil
}

// ListFrames returns the decoded frame files in dir, sorted by number.
func ListFrames(dir string) ([]string, error) {
	frames, err := filepath.Glob(filepath.Join(dir, "frame_*.png"))
	if err != nil {
		return nil, err
	}
	sort.Strings(frames)
	return frames, nil
}

// LoadFrame decodes a PNG frame.
func LoadFrame(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load frame: %w", err)
	}
	return img, nil
}

// SaveFrame encodes img as PNG at path, replacing any existing file.
func SaveFrame(path string, img image.Image) error {
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("save frame: %w", err)
	}
	return nil
}
