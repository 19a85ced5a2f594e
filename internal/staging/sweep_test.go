package staging_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MayankTamakuwala/TranscriBelt/internal/logging"
	"github.com/MayankTamakuwala/TranscriBelt/internal/queue"
	"github.com/MayankTamakuwala/TranscriBelt/internal/staging"
	"github.com/MayankTamakuwala/TranscriBelt/internal/testsupport"
)

func makeJobDir(t *testing.T, root, name string, age time.Duration) string {
	t.Helper()
	dir := filepath.Join(root, name)
	testsupport.WriteFile(t, filepath.Join(dir, "input.mp4"), 2048)
	stamp := time.Now().Add(-age)
	if err := os.Chtimes(dir, stamp, stamp); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	return dir
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestSweepMissingRootIsEmpty(t *testing.T) {
	for _, root := range []string{"", "   ", filepath.Join(t.TempDir(), "absent")} {
		result := staging.Sweep(context.Background(), root, staging.SweepOptions{}, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Fatalf("expected empty result for %q, got %+v", root, result)
		}
	}
}

func TestSweepHonorsMinAge(t *testing.T) {
	root := t.TempDir()
	old := makeJobDir(t, root, "job-old", 3*time.Hour)
	recent := makeJobDir(t, root, "job-recent", 10*time.Minute)

	result := staging.Sweep(context.Background(), root, staging.SweepOptions{MinAge: time.Hour}, logging.NewNop())
	if len(result.Removed) != 1 || result.Removed[0].Name != "job-old" {
		t.Fatalf("expected only job-old removed, got %+v", result.Removed)
	}
	if result.Bytes() != 2048 {
		t.Fatalf("expected 2048 bytes reclaimed, got %d", result.Bytes())
	}
	if exists(old) {
		t.Fatal("old directory still present")
	}
	if !exists(recent) {
		t.Fatal("recent directory was removed")
	}
}

func TestSweepKeepsActiveJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewJob(t, store, cfg, "job-queued")
	stamp := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(cfg.JobStagingDir("job-queued"), stamp, stamp); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	orphan := makeJobDir(t, cfg.Paths.StagingDir, "job-orphan", 2*time.Hour)

	result := staging.Sweep(context.Background(), cfg.Paths.StagingDir, staging.SweepOptions{
		MinAge: time.Hour,
		Keep:   staging.KeepActive(store),
	}, logging.NewNop())

	if len(result.Removed) != 1 || result.Removed[0].Name != "job-orphan" {
		t.Fatalf("expected only the orphan removed, got %+v", result.Removed)
	}
	if exists(orphan) {
		t.Fatal("orphan directory still present")
	}
	if !exists(cfg.JobStagingDir("job-queued")) {
		t.Fatal("queued job lost its staged upload")
	}
}

type failingLookup struct{}

func (failingLookup) GetByID(context.Context, string) (*queue.Job, error) {
	return nil, errors.New("database is locked")
}

func TestSweepKeepsDirectoryWhenLookupFails(t *testing.T) {
	root := t.TempDir()
	dir := makeJobDir(t, root, "job-x", 2*time.Hour)

	result := staging.Sweep(context.Background(), root, staging.SweepOptions{Keep: staging.KeepActive(failingLookup{})}, logging.NewNop())
	if len(result.Errors) != 1 || len(result.Removed) != 0 {
		t.Fatalf("expected one lookup error and nothing removed, got %+v", result)
	}
	if !exists(dir) {
		t.Fatal("directory removed despite lookup failure")
	}
}

func TestSweepDryRunLeavesFiles(t *testing.T) {
	root := t.TempDir()
	dir := makeJobDir(t, root, "job-dry", 2*time.Hour)

	result := staging.Sweep(context.Background(), root, staging.SweepOptions{DryRun: true}, logging.NewNop())
	if len(result.Removed) != 1 {
		t.Fatalf("expected one candidate, got %+v", result.Removed)
	}
	if !exists(dir) {
		t.Fatal("dry run removed the directory")
	}
}
