package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/MayankTamakuwala/TranscriBelt/internal/config"
)

// versionProbeTimeout bounds each "<binary> -version" call.
const versionProbeTimeout = 5 * time.Second

// Binary is an external program a pipeline stage shells out to.
type Binary struct {
	Name        string
	Command     string
	Purpose     string
	VersionFlag string
	Optional    bool
}

// Status is a resolved Binary.
type Status struct {
	Binary
	Path      string
	Version   string
	Available bool
	Detail    string
}

// Pipeline lists the binaries the worker needs for cfg. The transcription
// binary only appears when the whisperx engine is selected.
func Pipeline(cfg *config.Config) []Binary {
	if cfg == nil {
		return nil
	}
	bins := []Binary{
		{Name: "FFmpeg", Command: cfg.Media.FFmpegBinary, Purpose: "audio extraction, frame decode/encode, muxing", VersionFlag: "-version"},
		{Name: "FFprobe", Command: cfg.Media.FFprobeBinary, Purpose: "stream and frame-rate inspection", VersionFlag: "-version"},
	}
	if cfg.Transcription.Engine == config.EngineWhisperX || cfg.Transcription.Engine == "" {
		bins = append(bins, Binary{Name: "WhisperX", Command: cfg.Transcription.Binary, Purpose: "speech-to-text with word alignment", VersionFlag: "--version"})
	}
	return bins
}

// Lookup resolves command on PATH without running it. Stage health checks
// use it on every /healthz call.
func Lookup(name, command string) Status {
	return lookup(Binary{Name: name, Command: command})
}

// Resolve looks up every binary and, for those found, asks for a version
// string. A failed version probe leaves the binary available.
func Resolve(ctx context.Context, bins []Binary) []Status {
	out := make([]Status, 0, len(bins))
	for _, b := range bins {
		st := lookup(b)
		if st.Available && b.VersionFlag != "" {
			st.Version = probeVersion(ctx, st.Path, b.VersionFlag)
		}
		out = append(out, st)
	}
	return out
}

func lookup(b Binary) Status {
	b.Command = strings.TrimSpace(b.Command)
	st := Status{Binary: b}
	if b.Command == "" {
		st.Detail = "command not configured"
		return st
	}
	path, err := exec.LookPath(b.Command)
	if err != nil {
		st.Detail = fmt.Sprintf("binary %q not found on PATH", b.Command)
		return st
	}
	st.Path = path
	st.Available = true
	return st
}

// probeVersion returns the first non-empty output line, or "" when the
// binary does not answer in time.
func probeVersion(ctx context.Context, path, flag string) string {
	ctx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, path, flag).CombinedOutput()
	if err != nil && len(out) == 0 {
		return ""
	}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			if len(line) > 120 {
				line = line[:120]
			}
			return line
		}
	}
	return ""
}
