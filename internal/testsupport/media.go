package testsupport

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
)

// FakeMedia stands in for ffmpeg and ffprobe. ffprobe returns ProbeJSON;
// ffmpeg writes a placeholder to its output path, or Frames solid PNGs when
// asked to decode into a frame pattern.
type FakeMedia struct {
	ProbeJSON string
	Frames    int
	Width     int
	Height    int
	// FailOn makes any ffmpeg call whose arguments contain it fail.
	FailOn string

	mu    sync.Mutex
	calls [][]string
}

// SilentVideoProbe describes a 2 second 10 fps 64x48 video with no audio.
const SilentVideoProbe = `{"streams":[{"index":0,"codec_type":"video","codec_name":"h264","width":64,"height":48,"r_frame_rate":"10/1","avg_frame_rate":"10/1"}],"format":{"duration":"2.000"}}`

// NewFakeMedia returns a fake for a silent 20-frame video.
func NewFakeMedia() *FakeMedia {
	return &FakeMedia{ProbeJSON: SilentVideoProbe, Frames: 20, Width: 64, Height: 48}
}

// Run implements media.Runner.
func (f *FakeMedia) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()

	if strings.Contains(filepath.Base(name), "ffprobe") {
		return []byte(f.ProbeJSON), nil
	}
	if f.FailOn != "" && strings.Contains(strings.Join(args, " "), f.FailOn) {
		return nil, errors.New("ffmpeg: exit status 1")
	}
	if len(args) == 0 {
		return nil, errors.New("ffmpeg: no arguments")
	}
	dest := args[len(args)-1]
	if strings.Contains(dest, "%08d") {
		return nil, f.writeFrames(dest)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, err
	}
	return nil, os.WriteFile(dest, []byte("fake media output"), 0o644)
}

func (f *FakeMedia) writeFrames(pattern string) error {
	frame := imaging.New(f.Width, f.Height, color.NRGBA{R: 40, G: 40, B: 40, A: 255})
	for i := 1; i <= f.Frames; i++ {
		if err := imaging.Save(image.Image(frame), fmt.Sprintf(pattern, i)); err != nil {
			return err
		}
	}
	return nil
}

// Calls returns a copy of every recorded invocation.
func (f *FakeMedia) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsContaining counts invocations whose arguments include arg.
func (f *FakeMedia) CallsContaining(arg string) int {
	n := 0
	for _, call := range f.Calls() {
		for _, a := range call {
			if a == arg {
				n++
				break
			}
		}
	}
	return n
}
