package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MayankTamakuwala/TranscriBelt/internal/config"
	"github.com/MayankTamakuwala/TranscriBelt/internal/logging"
	"github.com/MayankTamakuwala/TranscriBelt/internal/queue"
)

// Workspace names the scratch files one job produces. Every path is derived
// from the job id, so stages hand work to each other through the filesystem.
type Workspace struct {
	JobID string
	Dir   string
	Input string
}

// WorkspaceFor returns the workspace of job under the configured work dir.
func WorkspaceFor(cfg *config.Config, job *queue.Job) Workspace {
	return Workspace{JobID: job.ID, Dir: cfg.JobWorkDir(job.ID), Input: job.InputPath}
}

// Ensure creates the workspace directory.
func (w Workspace) Ensure() error {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	return nil
}

func (w Workspace) AudioPath() string      { return filepath.Join(w.Dir, "audio.wav") }
func (w Workspace) TranscriptPath() string { return filepath.Join(w.Dir, "transcript.json") }
func (w Workspace) FramesDir() string      { return filepath.Join(w.Dir, "frames") }
func (w Workspace) RenderedPath() string   { return filepath.Join(w.Dir, "rendered.mp4") }

// SubtitlePath is unique per job because artifact names are unique globally.
func (w Workspace) SubtitlePath() string {
	return filepath.Join(w.Dir, fmt.Sprintf("captions_%s.srt", w.JobID))
}

// OutputPath is the captioned video. Job ids are uuids.
func (w Workspace) OutputPath() string {
	return filepath.Join(w.Dir, fmt.Sprintf("captioned_%s.mp4", w.JobID))
}

// VideoSource is the rendered video when one exists, otherwise the input.
// Transcripts without segments skip rendering entirely.
func (w Workspace) VideoSource() string {
	if info, err := os.Stat(w.RenderedPath()); err == nil && !info.IsDir() {
		return w.RenderedPath()
	}
	return w.Input
}

// Cleanup removes the work and staging directories of jobID. Keep leaves the
// work directory in place for debugging; staging is always removed.
func Cleanup(cfg *config.Config, jobID string, keep bool, logger *slog.Logger) error {
	dirs := []string{cfg.JobStagingDir(jobID)}
	if !keep {
		dirs = append(dirs, cfg.JobWorkDir(jobID))
	}
	var errs []error
	for _, dir := range dirs {
		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)
	if err != nil && logger != nil {
		logging.WarnWithContext(logger, "workspace cleanup incomplete", "workspace_cleanup_failed",
			logging.String(logging.FieldJobID, jobID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the leftover directories manually"),
		)
	}
	return err
}
