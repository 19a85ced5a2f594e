package workflow_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MayankTamakuwala/TranscriBelt/internal/artifacts"
	"github.com/MayankTamakuwala/TranscriBelt/internal/config"
	"github.com/MayankTamakuwala/TranscriBelt/internal/messaging"
	"github.com/MayankTamakuwala/TranscriBelt/internal/notifications"
	"github.com/MayankTamakuwala/TranscriBelt/internal/objectstore"
	"github.com/MayankTamakuwala/TranscriBelt/internal/pipeline"
	"github.com/MayankTamakuwala/TranscriBelt/internal/queue"
	"github.com/MayankTamakuwala/TranscriBelt/internal/services"
	"github.com/MayankTamakuwala/TranscriBelt/internal/stage"
	"github.com/MayankTamakuwala/TranscriBelt/internal/status"
	"github.com/MayankTamakuwala/TranscriBelt/internal/testsupport"
	"github.com/MayankTamakuwala/TranscriBelt/internal/transcript"
	"github.com/MayankTamakuwala/TranscriBelt/internal/transcription"
	"github.com/MayankTamakuwala/TranscriBelt/internal/workflow"
)

const testJobID = "0b6f2a52-2f0e-4a51-8d7c-3f3c1a9e5d10"

type stubStage struct {
	name        string
	executeHook func(*queue.Job)
	executeErr  error
	panics      bool

	mu    sync.Mutex
	calls int
}

func newStubStage(name string) *stubStage {
	return &stubStage{name: name}
}

func (s *stubStage) Prepare(context.Context, *queue.Job) error { return nil }

func (s *stubStage) Execute(_ context.Context, job *queue.Job) error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.panics {
		panic("boom")
	}
	if s.executeHook != nil {
		s.executeHook(job)
	}
	return s.executeErr
}

func (s *stubStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(s.name)
}

func (s *stubStage) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordingStatuses struct {
	mu    sync.Mutex
	snaps []status.Snapshot
}

func (r *recordingStatuses) Put(_ context.Context, snap status.Snapshot) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, snap)
	return true, nil
}

func (r *recordingStatuses) Snapshots() []status.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]status.Snapshot(nil), r.snaps...)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
	last   notifications.Payload
}

func (n *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	n.last = payload
	return nil
}

func (n *recordingNotifier) Events() []notifications.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifications.Event(nil), n.events...)
}

type stubSet struct {
	audio, transcribe, subtitles, render, mux, publish *stubStage
}

func newStubSet() *stubSet {
	set := &stubSet{
		audio:      newStubStage(pipeline.StageAudio),
		transcribe: newStubStage(pipeline.StageTranscribe),
		subtitles:  newStubStage(pipeline.StageSubtitles),
		render:     newStubStage(pipeline.StageRender),
		mux:        newStubStage(pipeline.StageMux),
		publish:    newStubStage(pipeline.StagePublish),
	}
	set.publish.executeHook = func(job *queue.Job) {
		job.ResultURL = "/download/captioned_" + job.ID + ".mp4"
	}
	return set
}

func (s *stubSet) Set() pipeline.Set {
	return pipeline.Set{
		Audio:      s.audio,
		Transcribe: s.transcribe,
		Subtitles:  s.subtitles,
		Render:     s.render,
		Mux:        s.mux,
		Publish:    s.publish,
	}
}

type harness struct {
	cfg      *config.Config
	store    *queue.Store
	statuses *recordingStatuses
	notifier *recordingNotifier
	mgr      *workflow.Manager
}

func newHarness(t *testing.T, opts ...workflow.ManagerOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	h := &harness{
		cfg:      cfg,
		store:    store,
		statuses: &recordingStatuses{},
		notifier: &recordingNotifier{},
	}
	opts = append([]workflow.ManagerOption{workflow.WithNotifier(h.notifier)}, opts...)
	h.mgr = workflow.NewManager(cfg, store, h.statuses, nil, opts...)
	return h
}

func (h *harness) run(t *testing.T, set pipeline.Set, jobID string) *queue.Job {
	t.Helper()
	testsupport.NewJob(t, h.store, h.cfg, jobID)
	h.mgr.ConfigureStages(set)
	if err := h.mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	job := waitTerminal(t, h.store, jobID)
	h.mgr.Stop()
	return job
}

func waitTerminal(t *testing.T, store *queue.Store, id string) *queue.Job {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if job != nil && job.IsTerminal() {
			return job
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish in time", id)
	return nil
}

func TestManagerCompletesJobWithMonotonicProgress(t *testing.T) {
	h := newHarness(t)
	stubs := newStubSet()

	job := h.run(t, stubs.Set(), testJobID)

	if job.Stage != queue.StageCompleted || job.Progress != 1.0 {
		t.Fatalf("expected completed at 1.0, got %s %.2f", job.Stage, job.Progress)
	}
	if job.ResultURL != "/download/captioned_"+testJobID+".mp4" {
		t.Fatalf("unexpected result url %q", job.ResultURL)
	}

	snaps := h.statuses.Snapshots()
	wantStages := []queue.Stage{queue.StageAudioExtracted, queue.StageTranscribed, queue.StageSubtitlesBuilt, queue.StageCompleted}
	if len(snaps) != len(wantStages) {
		t.Fatalf("expected %d snapshots, got %d: %+v", len(wantStages), len(snaps), snaps)
	}
	last := -1.0
	for i, snap := range snaps {
		if snap.Stage != wantStages[i] {
			t.Fatalf("snapshot %d stage = %s, want %s", i, snap.Stage, wantStages[i])
		}
		if snap.Progress < last {
			t.Fatalf("progress moved backwards: %.2f after %.2f", snap.Progress, last)
		}
		last = snap.Progress
	}
	if last != 1.0 || snaps[len(snaps)-1].ResultURL != job.ResultURL {
		t.Fatalf("final snapshot should carry 1.0 and the result url, got %+v", snaps[len(snaps)-1])
	}

	events := h.notifier.Events()
	if len(events) != 1 || events[0] != notifications.EventJobCompleted {
		t.Fatalf("expected one completion notification, got %v", events)
	}
	if _, err := os.Stat(h.cfg.JobStagingDir(testJobID)); !os.IsNotExist(err) {
		t.Fatalf("staging dir should be removed, stat err = %v", err)
	}
}

func TestManagerFailsJobOnStageError(t *testing.T) {
	h := newHarness(t)
	stubs := newStubSet()
	stubs.transcribe.executeErr = stage.Failure(pipeline.StageTranscribe, services.ErrExternalTool, "whisperx", "transcription failed", errors.New("exit status 1"))

	job := h.run(t, stubs.Set(), testJobID)

	if job.Stage != queue.StageError || job.Progress != 1.0 {
		t.Fatalf("expected error at 1.0, got %s %.2f", job.Stage, job.Progress)
	}
	if !strings.HasPrefix(job.ErrorMessage, "transcribe: ") || strings.Contains(job.ErrorMessage, services.ErrExternalTool.Error()) {
		t.Fatalf("unexpected error message %q", job.ErrorMessage)
	}
	if stubs.subtitles.Calls() != 0 || stubs.publish.Calls() != 0 {
		t.Fatal("steps after the failure must not run")
	}
	snaps := h.statuses.Snapshots()
	if final := snaps[len(snaps)-1]; final.Stage != queue.StageError || final.Error != job.ErrorMessage {
		t.Fatalf("unexpected final snapshot %+v", final)
	}
	events := h.notifier.Events()
	if len(events) != 1 || events[0] != notifications.EventJobFailed {
		t.Fatalf("expected one failure notification, got %v", events)
	}
}

func TestManagerFinishesRunningJobAfterShutdown(t *testing.T) {
	h := newHarness(t)
	stubs := newStubSet()
	started := make(chan struct{})
	release := make(chan struct{})
	stubs.transcribe.executeHook = func(*queue.Job) {
		close(started)
		<-release
	}

	testsupport.NewJob(t, h.store, h.cfg, testJobID)
	h.mgr.ConfigureStages(stubs.Set())
	ctx, cancel := context.WithCancel(context.Background())
	if err := h.mgr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-started:
	case <-time.After(10 * time.Second):
		t.Fatal("transcribe never started")
	}

	cancel()
	stopped := make(chan struct{})
	go func() {
		h.mgr.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
		t.Fatal("Stop returned while a job was still running")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	select {
	case <-stopped:
	case <-time.After(10 * time.Second):
		t.Fatal("Stop did not return after the job finished")
	}

	job, err := h.store.GetByID(context.Background(), testJobID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job.Stage != queue.StageCompleted {
		t.Fatalf("expected completed after shutdown, got %s (%s)", job.Stage, job.ErrorMessage)
	}
	if stubs.publish.Calls() != 1 {
		t.Fatalf("expected publish to run once, got %d", stubs.publish.Calls())
	}
}

func TestManagerStoresCuratedFailureMessage(t *testing.T) {
	h := newHarness(t)
	stubs := newStubSet()
	stderr := "ffmpeg: exit status 1: /var/lib/transcribelt/work/3f2a/rendered.mp4: Invalid data found when processing input"
	stubs.mux.executeErr = stage.Failure(pipeline.StageMux, services.ErrExternalTool, "ffmpeg", "Muxing failed", errors.New(stderr))

	job := h.run(t, stubs.Set(), testJobID)

	if job.Stage != queue.StageError {
		t.Fatalf("expected error stage, got %s", job.Stage)
	}
	if job.ErrorMessage != "mux: Muxing failed" {
		t.Fatalf("unexpected error message %q", job.ErrorMessage)
	}
	snaps := h.statuses.Snapshots()
	if final := snaps[len(snaps)-1]; strings.Contains(final.Error, "/var/lib") || strings.Contains(final.Error, "exit status") {
		t.Fatalf("status leaked tool output: %q", final.Error)
	}
}

func TestManagerRecoversStagePanic(t *testing.T) {
	h := newHarness(t)
	stubs := newStubSet()
	stubs.render.panics = true

	job := h.run(t, stubs.Set(), testJobID)

	if job.Stage != queue.StageError {
		t.Fatalf("expected error stage, got %s", job.Stage)
	}
	if job.ErrorMessage != "render_captions: internal error" {
		t.Fatalf("unexpected error message %q", job.ErrorMessage)
	}
	if strings.Contains(job.ErrorMessage, "boom") {
		t.Fatal("panic value must not reach clients")
	}
}

func TestManagerRunsJobsConcurrently(t *testing.T) {
	h := newHarness(t)
	h.cfg.Workflow.Workers = 3
	h.mgr = workflow.NewManager(h.cfg, h.store, h.statuses, nil, workflow.WithNotifier(h.notifier))

	ids := []string{
		"a3c4b7f0-0000-4000-8000-000000000001",
		"a3c4b7f0-0000-4000-8000-000000000002",
		"a3c4b7f0-0000-4000-8000-000000000003",
	}
	for _, id := range ids {
		testsupport.NewJob(t, h.store, h.cfg, id)
	}
	h.mgr.ConfigureStages(newStubSet().Set())
	if err := h.mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.mgr.Stop()

	for _, id := range ids {
		if job := waitTerminal(t, h.store, id); job.Stage != queue.StageCompleted {
			t.Fatalf("job %s ended in %s: %s", id, job.Stage, job.ErrorMessage)
		}
	}
}

func TestStartRequiresStages(t *testing.T) {
	h := newHarness(t)
	if err := h.mgr.Start(context.Background()); err == nil {
		h.mgr.Stop()
		t.Fatal("expected error without configured stages")
	}
}

func TestReapStaleFailsLostJobs(t *testing.T) {
	future := time.Now().Add(time.Hour)
	h := newHarness(t, workflow.WithClock(func() time.Time { return future }))
	testsupport.NewJob(t, h.store, h.cfg, testJobID)
	if _, err := h.store.ClaimNext(context.Background(), "ghost"); err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}

	lost, err := h.mgr.ReapStale(context.Background())
	if err != nil {
		t.Fatalf("ReapStale: %v", err)
	}
	if len(lost) != 1 || lost[0].ErrorMessage != queue.WorkerLostReason {
		t.Fatalf("expected one lost job, got %+v", lost)
	}
	snaps := h.statuses.Snapshots()
	if len(snaps) != 1 || snaps[0].Stage != queue.StageError {
		t.Fatalf("expected terminal snapshot, got %+v", snaps)
	}
	if events := h.notifier.Events(); len(events) != 1 || events[0] != notifications.EventJobFailed {
		t.Fatalf("expected failure notification, got %v", events)
	}
}

func TestReapStaleKeepsFreshJobs(t *testing.T) {
	h := newHarness(t)
	testsupport.NewJob(t, h.store, h.cfg, testJobID)
	if _, err := h.store.ClaimNext(context.Background(), "worker-1"); err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	lost, err := h.mgr.ReapStale(context.Background())
	if err != nil || len(lost) != 0 {
		t.Fatalf("fresh job must survive, got %v %v", lost, err)
	}
}

func TestReapOrphansFailsClaimedJobs(t *testing.T) {
	h := newHarness(t)
	testsupport.NewJob(t, h.store, h.cfg, testJobID)
	if _, err := h.store.ClaimNext(context.Background(), "worker-1"); err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	orphans, err := h.mgr.ReapOrphans(context.Background())
	if err != nil {
		t.Fatalf("ReapOrphans: %v", err)
	}
	if len(orphans) != 1 || orphans[0].ErrorMessage != queue.DaemonRestartedReason {
		t.Fatalf("expected one orphan, got %+v", orphans)
	}
}

func TestStatusReportsStageHealth(t *testing.T) {
	h := newHarness(t)
	h.mgr.ConfigureStages(newStubSet().Set())
	summary := h.mgr.Status(context.Background())
	if summary.Running {
		t.Fatal("manager should not be running")
	}
	if len(summary.StageHealth) != 6 || !summary.StageHealth[pipeline.StageMux].Ready {
		t.Fatalf("unexpected stage health %+v", summary.StageHealth)
	}
}

func TestManagerCaptionsSilentVideoEndToEnd(t *testing.T) {
	h := newHarness(t)
	fake := testsupport.NewFakeMedia()
	db := testsupport.MustOpenStateDB(t, h.cfg)
	objects, err := objectstore.NewFilesystem(h.cfg.Storage.Root)
	if err != nil {
		t.Fatalf("NewFilesystem: %v", err)
	}
	downstream := messaging.NewLocal(db, h.cfg.Messaging.QueueName, 0)
	set, err := pipeline.Build(h.cfg, pipeline.Options{
		Runner: fake,
		Engine: transcription.EngineFunc(func(context.Context, string, string) (transcript.Transcript, error) {
			return transcript.Transcript{Language: "en"}, nil
		}),
		Publisher: artifacts.New(objects, downstream, h.store, nil),
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	job := h.run(t, set, testJobID)

	if job.Stage != queue.StageCompleted {
		t.Fatalf("expected completed, got %s: %s", job.Stage, job.ErrorMessage)
	}
	if job.ResultURL != "/download/captioned_"+testJobID+".mp4" {
		t.Fatalf("unexpected result url %q", job.ResultURL)
	}
	srt, err := h.store.ArtifactFor(context.Background(), testJobID, queue.ArtifactText)
	if err != nil || srt == nil || srt.Size != 0 {
		t.Fatalf("expected an empty srt artifact, got %+v %v", srt, err)
	}
	depth, err := downstream.Depth(context.Background())
	if err != nil || depth != 1 {
		t.Fatalf("expected one downstream message, got %d (%v)", depth, err)
	}
	if _, err := os.Stat(h.cfg.JobWorkDir(testJobID)); !os.IsNotExist(err) {
		t.Fatalf("work dir should be removed, stat err = %v", err)
	}
}
