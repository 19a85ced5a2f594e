// Package staging reclaims per-job directories that outlived their job.
//
// Uploads land in paths.staging_dir/<job_id> and workers scratch in
// paths.work_dir/<job_id>. A finished job removes both, but a reaped job or an
// ingress that crashed between staging and enqueue leaves them behind.
package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MayankTamakuwala/TranscriBelt/internal/logging"
	"github.com/MayankTamakuwala/TranscriBelt/internal/queue"
)

// KeepFunc reports whether the directory for jobID must be preserved.
type KeepFunc func(ctx context.Context, jobID string) (bool, error)

// JobLookup is the slice of the queue the sweeper needs.
type JobLookup interface {
	GetByID(ctx context.Context, id string) (*queue.Job, error)
}

// KeepActive preserves directories whose job is still queued or running.
// Unknown and terminal jobs are eligible for removal.
func KeepActive(jobs JobLookup) KeepFunc {
	return func(ctx context.Context, jobID string) (bool, error) {
		job, err := jobs.GetByID(ctx, jobID)
		if err != nil {
			return true, err
		}
		return job != nil && !job.IsTerminal(), nil
	}
}

// SweepOptions controls which directories are removed.
type SweepOptions struct {
	// MinAge protects directories modified more recently than this, which
	// covers an upload staged but not yet enqueued.
	MinAge time.Duration
	Keep   KeepFunc
	DryRun bool
	Now    func() time.Time
}

// Result lists what a sweep removed and what it could not.
type Result struct {
	Removed []DirInfo
	Errors  []SweepError
}

// SweepError pairs a directory with the error that stopped its removal.
type SweepError struct {
	Path string
	Err  error
}

// Bytes totals the size of removed directories.
func (r Result) Bytes() int64 {
	var total int64
	for _, d := range r.Removed {
		total += d.Size
	}
	return total
}

// Sweep removes job directories under root that are older than MinAge and
// not kept. A lookup error keeps the directory.
func Sweep(ctx context.Context, root string, opts SweepOptions, logger *slog.Logger) Result {
	var result Result
	if logger == nil {
		logger = logging.NewNop()
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	dirs, err := List(root)
	if err != nil {
		result.Errors = append(result.Errors, SweepError{Path: root, Err: err})
		return result
	}
	cutoff := now().Add(-opts.MinAge)

	for _, dir := range dirs {
		if ctx.Err() != nil {
			break
		}
		if dir.ModTime.After(cutoff) {
			continue
		}
		if opts.Keep != nil {
			keep, err := opts.Keep(ctx, dir.Name)
			if err != nil {
				result.Errors = append(result.Errors, SweepError{Path: dir.Path, Err: err})
				continue
			}
			if keep {
				continue
			}
		}
		if !opts.DryRun {
			if err := os.RemoveAll(dir.Path); err != nil {
				result.Errors = append(result.Errors, SweepError{Path: dir.Path, Err: err})
				logger.Warn("failed to remove stale job directory",
					logging.String("path", dir.Path),
					logging.Error(err),
					logging.String(logging.FieldEventType, "workspace_sweep_failed"),
					logging.String(logging.FieldErrorHint, "check directory permissions"),
				)
				continue
			}
			logger.Info("removed stale job directory",
				logging.String(logging.FieldJobID, dir.Name),
				logging.String("path", dir.Path),
				logging.Duration("age", now().Sub(dir.ModTime)),
				logging.String(logging.FieldEventType, "workspace_swept"),
			)
		}
		result.Removed = append(result.Removed, dir)
	}
	return result
}

// DirInfo describes one job directory.
type DirInfo struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
}

// List returns the job directories under root. A missing root is empty.
func List(root string) ([]DirInfo, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var dirs []DirInfo
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(root, entry.Name())
		dirs = append(dirs, DirInfo{
			Name:    entry.Name(),
			Path:    path,
			ModTime: info.ModTime(),
			Size:    dirSize(path),
		})
	}
	return dirs, nil
}

// dirSize is best effort; unreadable entries count as zero.
func dirSize(path string) int64 {
	var size int64
	_ = filepath.WalkDir(path, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			if info, err := d.Info(); err == nil {
				size += info.Size()
			}
		}
		return nil
	})
	return size
}
