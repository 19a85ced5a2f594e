package api_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MayankTamakuwala/TranscriBelt/internal/api"
	"github.com/MayankTamakuwala/TranscriBelt/internal/config"
	"github.com/MayankTamakuwala/TranscriBelt/internal/logging"
	"github.com/MayankTamakuwala/TranscriBelt/internal/queue"
	"github.com/MayankTamakuwala/TranscriBelt/internal/ratelimit"
	"github.com/MayankTamakuwala/TranscriBelt/internal/services"
	"github.com/MayankTamakuwala/TranscriBelt/internal/status"
	"github.com/MayankTamakuwala/TranscriBelt/internal/testsupport"
)

type submitHarness struct {
	cfg       *config.Config
	store     *queue.Store
	statuses  *status.Store
	limiter   *ratelimit.Limiter
	submitter *api.Submitter
	now       *time.Time
}

func newSubmitHarness(t *testing.T, opts ...testsupport.ConfigOption) *submitHarness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	db := testsupport.MustOpenStateDB(t, cfg)
	h := &submitHarness{
		cfg:      cfg,
		store:    testsupport.MustOpenStore(t, cfg),
		statuses: status.NewStore(db, cfg.StatusTTL()),
	}
	if cfg.RateLimit.Enabled {
		h.limiter = ratelimit.New(db, cfg.RateLimit.Requests, cfg.RateLimitWindow())
		now := time.Date(2026, 5, 1, 10, 0, 30, 0, time.UTC)
		h.now = &now
		h.limiter.SetClock(func() time.Time { return *h.now })
	}
	var limiter api.Limiter
	if h.limiter != nil {
		limiter = h.limiter
	}
	h.submitter = api.NewSubmitter(cfg, limiter, h.store, h.statuses, logging.NewNop())
	return h
}

func videoBody(size int) *bytes.Reader {
	body := make([]byte, size)
	copy(body, mp4Header())
	return bytes.NewReader(body)
}

func TestSubmitStagesAndEnqueues(t *testing.T) {
	h := newSubmitHarness(t)
	ctx := context.Background()

	resp, err := h.submitter.Submit(ctx, api.Upload{ClientKey: "10.0.0.1", DeclaredType: "video/mp4", Body: videoBody(4096)})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.JobID)
	assert.Equal(t, api.AcceptedMessage, resp.Message)

	job, err := h.store.GetByID(ctx, resp.JobID)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, queue.StageQueued, job.Stage)
	assert.Equal(t, "10.0.0.1", job.ClientKey)
	assert.Equal(t, filepath.Join(h.cfg.JobStagingDir(resp.JobID), "input.mp4"), job.InputPath)

	info, err := os.Stat(job.InputPath)
	require.NoError(t, err)
	assert.EqualValues(t, 4096, info.Size())

	snap, err := h.statuses.Get(ctx, resp.JobID)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, queue.StageQueued, snap.Stage)
}

func TestSubmitRejectsNonVideoWithoutStaging(t *testing.T) {
	h := newSubmitHarness(t)
	ctx := context.Background()

	_, err := h.submitter.Submit(ctx, api.Upload{ClientKey: "c", DeclaredType: "image/png", Body: videoBody(128)})
	assert.ErrorIs(t, err, api.ErrUnsupportedMedia)

	_, err = h.submitter.Submit(ctx, api.Upload{ClientKey: "c", Body: bytes.NewReader([]byte("plain text body that is not video"))})
	assert.ErrorIs(t, err, api.ErrUnsupportedMedia)

	jobs, err := h.store.List(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, jobs)
	entries, err := os.ReadDir(h.cfg.Paths.StagingDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSubmitEnforcesSizeCap(t *testing.T) {
	h := newSubmitHarness(t)
	h.cfg.API.MaxUploadMB = 1
	ctx := context.Background()

	_, err := h.submitter.Submit(ctx, api.Upload{ClientKey: "c", Body: videoBody(1<<20 + 1)})
	require.ErrorIs(t, err, api.ErrTooLarge)

	entries, err := os.ReadDir(h.cfg.Paths.StagingDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "oversized upload must not leave a staged file")

	resp, err := h.submitter.Submit(ctx, api.Upload{ClientKey: "c", Body: videoBody(1 << 20)})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.JobID)
}

type failingEnqueuer struct{}

func (failingEnqueuer) Enqueue(context.Context, string, string, string) (*queue.Job, error) {
	return nil, errors.New("database is locked")
}

func TestSubmitRemovesStagedFileWhenEnqueueFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	submitter := api.NewSubmitter(cfg, nil, failingEnqueuer{}, nil, logging.NewNop(),
		api.WithIDGenerator(func() string { return "job-fixed" }))

	_, err := submitter.Submit(context.Background(), api.Upload{ClientKey: "c", Body: videoBody(256)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrTransient))
	assert.NotContains(t, api.ClientMessage(err), "database is locked")

	_, statErr := os.Stat(cfg.JobStagingDir("job-fixed"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestSubmitRateLimitWindow(t *testing.T) {
	h := newSubmitHarness(t, testsupport.WithRateLimit(2, 60))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := h.submitter.Submit(ctx, api.Upload{ClientKey: "10.0.0.9", Body: videoBody(128)})
		require.NoError(t, err)
	}
	_, err := h.submitter.Submit(ctx, api.Upload{ClientKey: "10.0.0.9", Body: videoBody(128)})
	var throttle *api.ThrottleError
	require.ErrorAs(t, err, &throttle)
	assert.Equal(t, 30*time.Second, throttle.RetryAfter)

	_, err = h.submitter.Submit(ctx, api.Upload{ClientKey: "10.0.0.10", Body: videoBody(128)})
	assert.NoError(t, err, "other clients have their own window")

	*h.now = h.now.Add(time.Minute)
	_, err = h.submitter.Submit(ctx, api.Upload{ClientKey: "10.0.0.9", Body: videoBody(128)})
	assert.NoError(t, err)

	jobs, err := h.store.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, jobs, 4)
}

func TestSubmitConcurrentUploadsGetDistinctJobs(t *testing.T) {
	h := newSubmitHarness(t)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	ids := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := h.submitter.Submit(ctx, api.Upload{ClientKey: fmt.Sprintf("client-%d", i), Body: videoBody(1024 + i)})
			ids[i], errs[i] = resp.JobID, err
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.False(t, seen[ids[i]], "duplicate job id %s", ids[i])
		seen[ids[i]] = true

		job, err := h.store.GetByID(ctx, ids[i])
		require.NoError(t, err)
		info, err := os.Stat(job.InputPath)
		require.NoError(t, err)
		assert.EqualValues(t, 1024+i, info.Size())
	}
}
