package api_test

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MayankTamakuwala/TranscriBelt/internal/api"
	"github.com/MayankTamakuwala/TranscriBelt/internal/objectstore"
	"github.com/MayankTamakuwala/TranscriBelt/internal/queue"
	"github.com/MayankTamakuwala/TranscriBelt/internal/services"
	"github.com/MayankTamakuwala/TranscriBelt/internal/status"
	"github.com/MayankTamakuwala/TranscriBelt/internal/summary"
	"github.com/MayankTamakuwala/TranscriBelt/internal/testsupport"
)

func TestStatusPrefersSnapshotAndFallsBackToQueue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	statuses := status.NewStore(testsupport.MustOpenStateDB(t, cfg), cfg.StatusTTL())
	svc := api.NewStatusService(statuses, store)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, cfg, "job-1")

	got, err := svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, api.StatusQueued, got.Status)
	assert.Equal(t, "queued", got.Stage)

	snap := status.FromJob(job)
	snap.Stage = queue.StageTranscribed
	snap.Progress = queue.StageTranscribed.Progress()
	snap.Message = "Transcription finished"
	snap.UpdatedAt = time.Now().Add(time.Second)
	_, err = statuses.Put(ctx, snap)
	require.NoError(t, err)

	got, err = svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, api.StatusProcessing, got.Status)
	assert.Equal(t, "transcribed", got.Stage)
	assert.InDelta(t, 0.5, got.Progress, 1e-9)
	assert.False(t, got.Terminal())

	_, err = svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, api.ErrJobNotFound)
	assert.ErrorIs(t, err, services.ErrNotFound)
}

type staleSnapshots struct {
	snap *status.Snapshot
}

func (s staleSnapshots) Get(context.Context, string) (*status.Snapshot, error) {
	return s.snap, nil
}

func TestStatusNeverReportsOlderSnapshotThanQueue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, cfg, "job-2")
	stale := status.FromJob(job)
	stale.Stage = queue.StageAudioExtracted
	stale.Progress = queue.StageAudioExtracted.Progress()

	claimed, err := store.ClaimNext(ctx, "worker-1")
	require.NoError(t, err)
	require.NotNil(t, claimed)
	for _, stage := range []queue.Stage{queue.StageAudioExtracted, queue.StageTranscribed} {
		_, err = store.Checkpoint(ctx, job.ID, "worker-1", stage, "")
		require.NoError(t, err)
	}

	svc := api.NewStatusService(staleSnapshots{snap: &stale}, store)
	got, err := svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "transcribed", got.Stage)
	assert.InDelta(t, queue.StageTranscribed.Progress(), got.Progress, 1e-9)

	terminal := stale
	terminal.Stage = queue.StageCompleted
	terminal.Progress = 1.0
	svc = api.NewStatusService(staleSnapshots{snap: &terminal}, store)
	got, err = svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, got.Terminal())
}

func TestJobServiceListFiltersByStage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	svc := api.NewJobService(store)
	ctx := context.Background()

	testsupport.NewJob(t, store, cfg, "a")
	testsupport.NewJob(t, store, cfg, "b")

	all, err := svc.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	queued, err := svc.List(ctx, 10, "queued")
	require.NoError(t, err)
	assert.Len(t, queued, 2)

	done, err := svc.List(ctx, 10, "completed")
	require.NoError(t, err)
	assert.Empty(t, done)

	_, err = svc.List(ctx, 10, "bogus")
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestDownloadResolvesPublishedArtifact(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	objects, err := objectstore.NewFilesystem(cfg.Storage.Root)
	require.NoError(t, err)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, cfg, "job-dl")
	payload := []byte("1\n00:00:00,000 --> 00:00:01,000\nhello\n")
	key := objectstore.JoinKey(job.ID, "captions_job-dl.srt")
	url, err := objects.Put(ctx, key, bytes.NewReader(payload), int64(len(payload)), "application/x-subrip")
	require.NoError(t, err)
	_, _, err = store.RecordArtifact(ctx, queue.Artifact{
		JobID: job.ID, Kind: queue.ArtifactText, Key: key, Name: "captions_job-dl.srt",
		URL: url, Size: int64(len(payload)), ContentType: "application/x-subrip",
	})
	require.NoError(t, err)

	svc := api.NewDownloadService(store, objects)
	dl, err := svc.Open(ctx, "captions_job-dl.srt")
	require.NoError(t, err)
	defer dl.Body.Close()
	body, err := io.ReadAll(dl.Body)
	require.NoError(t, err)
	assert.Equal(t, payload, body)
	assert.Equal(t, "application/x-subrip", dl.ContentType)

	for _, name := range []string{"nope.mp4", "../etc/passwd", "", ".hidden"} {
		_, err := svc.Open(ctx, name)
		assert.ErrorIs(t, err, api.ErrArtifactNotFound, name)
	}
}

func TestReviewCommentsLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	records := summary.NewSQLStore(testsupport.MustOpenStateDB(t, cfg))
	objects, err := objectstore.NewFilesystem(cfg.Storage.Root)
	require.NoError(t, err)
	svc := api.NewReviewService(objects, records)
	svc.SetClock(func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) })
	ctx := context.Background()

	require.NoError(t, records.PutSummary(ctx, "job-9", "The **main** point."))

	html, err := svc.Summary(ctx, "job-9", "")
	require.NoError(t, err)
	assert.Contains(t, html.Summary, "<strong>main</strong>")
	raw, err := svc.Summary(ctx, "job-9", "raw")
	require.NoError(t, err)
	assert.Equal(t, "The **main** point.", raw.Summary)
	_, err = svc.Summary(ctx, "job-9", "pdf")
	assert.ErrorIs(t, err, services.ErrValidation)

	added, err := svc.AddComment(ctx, "job-9", api.CommentRequest{Text: "check this"})
	require.NoError(t, err)
	assert.NotEmpty(t, added.CommentID)
	assert.Equal(t, "2026-05-01T12:00:00.000Z", added.Timestamp)

	_, err = svc.AddComment(ctx, "job-9", api.CommentRequest{Text: "  "})
	assert.ErrorIs(t, err, services.ErrValidation)

	edited, err := svc.EditComment(ctx, "job-9", added.CommentID, "checked")
	require.NoError(t, err)
	assert.True(t, edited.Edited)
	assert.Equal(t, "checked", edited.Text)

	list, err := svc.Comments(ctx, "job-9")
	require.NoError(t, err)
	require.Len(t, list.Comments, 1)

	_, err = svc.EditComment(ctx, "job-9", "missing", "x")
	assert.ErrorIs(t, err, summary.ErrCommentNotFound)

	remaining, err := svc.DeleteComment(ctx, "job-9", added.CommentID)
	require.NoError(t, err)
	assert.Empty(t, remaining.Comments)

	_, err = svc.Summary(ctx, "unknown", "")
	assert.ErrorIs(t, err, services.ErrNotFound)
}
