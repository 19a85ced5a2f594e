package testsupport

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/MayankTamakuwala/TranscriBelt/internal/config"
	"github.com/MayankTamakuwala/TranscriBelt/internal/queue"
	"github.com/MayankTamakuwala/TranscriBelt/internal/statedb"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenStateDB opens the shared state database for tests and registers cleanup.
func MustOpenStateDB(t testing.TB, cfg *config.Config) *statedb.DB {
	t.Helper()

	db, err := statedb.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("statedb.Open: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

// NewJob enqueues a job with a staged input file for tests.
func NewJob(t testing.TB, store *queue.Store, cfg *config.Config, id string) *queue.Job {
	t.Helper()

	input := filepath.Join(cfg.JobStagingDir(id), "input.mp4")
	WriteVideo(t, input, 1024)
	job, err := store.Enqueue(context.Background(), id, input, "127.0.0.1")
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return job
}
